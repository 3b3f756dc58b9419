package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/xyangyan/CsdBERT/pkg/config"

	_ "github.com/lib/pq"
)

var DebugLog func(string, ...interface{})

type DB struct {
	conn    *sql.DB
	enabled bool
}

// RunRecord is one row of experiment run history.
type RunRecord struct {
	ID         int64
	Benchmark  string
	Task       string
	Status     string
	Threshold  int
	OutputDir  string
	MetricName string
	BestMetric sql.NullFloat64
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

const (
	DBName = "csdbert_runs"

	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

func New(cfg *config.Database) (*DB, error) {
	db := &DB{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		fmt.Println("[INF] Run tracking database disabled.")
		return db, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		fmt.Println("[INF] Run tracking database disabled.")
		return db, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		fmt.Println("[INF] Run tracking database disabled.")
		return db, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		fmt.Println("[INF] Run tracking database disabled.")
		return db, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			fmt.Println("[INF] Run tracking database disabled.")
			return db, fmt.Errorf("failed to create database: %w", err)
		}
		fmt.Printf("[INF] Database '%s' created successfully.\n", DBName)
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		fmt.Println("[INF] Run tracking database disabled.")
		return db, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		fmt.Println("[INF] Run tracking database disabled.")
		return db, fmt.Errorf("failed to ping database: %w", err)
	}

	db.conn = conn
	fmt.Println("[INF] Run tracking database active.")

	if err := db.initSchema(); err != nil {
		return db, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	if !db.enabled || db.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id SERIAL PRIMARY KEY,
		benchmark VARCHAR(16) NOT NULL,
		task VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'RUNNING',
		infer_threshold INTEGER NOT NULL DEFAULT 0,
		output_dir TEXT NOT NULL DEFAULT '',
		metric_name VARCHAR(32),
		best_metric DOUBLE PRECISION,
		started_at TIMESTAMP NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_task ON runs(task);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_benchmark ON runs(benchmark);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *DB) IsEnabled() bool {
	return db.enabled && db.conn != nil
}

// StartRun records a new experiment run as RUNNING and returns its id.
func (db *DB) StartRun(benchmark, task string, threshold int, outputDir string) (int64, error) {
	if !db.IsEnabled() {
		return 0, nil
	}

	if DebugLog != nil {
		DebugLog("recording run for %s/%s in database", benchmark, task)
	}

	var id int64
	err := db.conn.QueryRow(`
		INSERT INTO runs (benchmark, task, status, infer_threshold, output_dir, started_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id
	`, benchmark, task, StatusRunning, threshold, outputDir).Scan(&id)
	if err != nil {
		return 0, err
	}

	return id, nil
}

// FinishRun closes out a run with its final status and, when the eval
// sweep produced one, the best value of the task metric.
func (db *DB) FinishRun(id int64, status, metricName string, bestMetric *float64) error {
	if !db.IsEnabled() || id == 0 {
		return nil
	}

	if DebugLog != nil {
		DebugLog("marking run %d as %s in database", id, status)
	}

	best := sql.NullFloat64{}
	if bestMetric != nil {
		best = sql.NullFloat64{Float64: *bestMetric, Valid: true}
	}

	_, err := db.conn.Exec(`
		UPDATE runs
		SET status = $2, metric_name = $3, best_metric = $4, finished_at = NOW()
		WHERE id = $1
	`, id, status, metricName, best)
	return err
}

// QueryRuns returns the run history for one task, newest first.
func (db *DB) QueryRuns(task string, status string) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT id, benchmark, task, status, infer_threshold, output_dir, metric_name, best_metric, started_at, finished_at
		FROM runs
		WHERE task = $1
	`
	args := []interface{}{task}

	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}

	query += " ORDER BY started_at DESC"

	return db.queryRecords(query, args...)
}

// QueryAllRuns returns the run history across all tasks.
func (db *DB) QueryAllRuns(status string) ([]RunRecord, error) {
	if !db.IsEnabled() {
		return nil, fmt.Errorf("database is not enabled")
	}

	query := `
		SELECT id, benchmark, task, status, infer_threshold, output_dir, metric_name, best_metric, started_at, finished_at
		FROM runs
	`
	var args []interface{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY benchmark, task, started_at DESC"

	return db.queryRecords(query, args...)
}

func (db *DB) queryRecords(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var metricName sql.NullString
		if err := rows.Scan(&r.ID, &r.Benchmark, &r.Task, &r.Status, &r.Threshold,
			&r.OutputDir, &metricName, &r.BestMetric, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		r.MetricName = metricName.String
		records = append(records, r)
	}

	return records, rows.Err()
}
