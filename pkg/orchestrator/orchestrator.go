package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xyangyan/CsdBERT/pkg/benchmark"
	"github.com/xyangyan/CsdBERT/pkg/checkpoint"
	"github.com/xyangyan/CsdBERT/pkg/config"
	"github.com/xyangyan/CsdBERT/pkg/database"
	"github.com/xyangyan/CsdBERT/pkg/elastic"
	"github.com/xyangyan/CsdBERT/pkg/session"
	"github.com/xyangyan/CsdBERT/pkg/trainer"

	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

type Orchestrator struct {
	config        *config.Config
	configManager *config.Manager
	logger        *logrus.Logger
	db            *database.DB
}

// RunOptions carries the CLI overrides for one experiment run. Zero
// values mean "use the task preset".
type RunOptions struct {
	Benchmark      benchmark.Benchmark
	Task           string
	Model          string
	Device         string
	LearningRate   string
	WarmupRate     string
	Epochs         int
	BatchSize      int
	MaxSeqLength   int
	InferThreshold int
	TrainOnly      bool
	EvalOnly       bool
	DryRun         bool
}

type StageStat struct {
	Name     string
	Duration time.Duration
	Status   string
}

type RunResult struct {
	Benchmark   benchmark.Benchmark
	Task        string
	MetricName  string
	OutputDir   string
	LogDir      string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Success     bool
	Errors      []error
	Stages      []StageStat
	Checkpoints []checkpoint.Checkpoint
	Results     []trainer.EvalResult
	Best        *trainer.EvalResult
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewOrchestrator(configPath string) (*Orchestrator, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	configManager := config.NewManager(configPath)
	if err := configManager.LoadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg := configManager.GetConfig()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Warnf("Database initialization failed: %v", err)
	}

	return &Orchestrator{
		config:        cfg,
		configManager: configManager,
		logger:        logger,
		db:            db,
	}, nil
}

func (o *Orchestrator) GetConfig() *config.Config {
	return o.config
}

func (o *Orchestrator) GetDB() *database.DB {
	return o.db
}

// buildRunConfig merges the task preset with the CLI overrides into
// the flat manifest both trainer invocations share. The task name is
// the single source of truth: it parameterizes the data, output and
// log directories.
func (o *Orchestrator) buildRunConfig(task benchmark.Task, options RunOptions) (*trainer.RunConfig, error) {
	envVar := task.Benchmark.EnvVar()
	datasetRoot := o.config.DatasetRoot(envVar)
	if datasetRoot == "" {
		return nil, fmt.Errorf("%s is not set and no dataset root is configured", envVar)
	}

	preset := task.Preset

	cfg := &trainer.RunConfig{
		PythonBin: o.config.Trainer.PythonBin,
		Script:    o.config.TrainerScript(task.Benchmark.Script()),

		ModelNameOrPath: o.config.Model.NameOrPath,
		TaskName:        task.Name,
		DoLowerCase:     o.config.Model.DoLowerCase,
		DataDir:         filepath.Join(datasetRoot, task.DataDirName()),
		LogDir:          filepath.Join(o.config.DefaultSettings.LogRoot, string(task.Benchmark), "kernel", task.Name),
		OutputDir:       filepath.Join(o.config.DefaultSettings.OutputRoot, string(task.Benchmark), "kernel", task.Name),

		NumHiddenLayers: o.config.Model.NumHiddenLayers,
		NumOutputLayers: o.config.Model.NumOutputLayers,
		MaxSeqLength:    preset.MaxSeqLength,

		TrainBatchSize: preset.TrainBatchSize,
		EvalBatchSize:  preset.EvalBatchSize,
		LearningRate:   preset.LearningRate,
		WeightDecay:    preset.WeightDecay,
		SaveSteps:      preset.SaveSteps,
		LoggingSteps:   preset.LoggingSteps,
		NumTrainEpochs: preset.NumTrainEpochs,
		WarmupRate:     preset.WarmupRate,

		EvaluateDuringTraining: true,
		OverwriteOutputDir:     true,
		InferThreshold:         preset.InferThreshold,

		DatasetEnvVar: envVar,
		DatasetRoot:   datasetRoot,
		Device:        o.config.DeviceSelection(),
	}

	if options.Model != "" {
		cfg.ModelNameOrPath = options.Model
	}
	if options.Device != "" {
		cfg.Device = options.Device
	}
	if options.LearningRate != "" {
		cfg.LearningRate = options.LearningRate
	}
	if options.WarmupRate != "" {
		cfg.WarmupRate = options.WarmupRate
	}
	if options.Epochs > 0 {
		cfg.NumTrainEpochs = options.Epochs
	}
	if options.BatchSize > 0 {
		cfg.TrainBatchSize = options.BatchSize
		cfg.EvalBatchSize = options.BatchSize
	}
	if options.MaxSeqLength > 0 {
		cfg.MaxSeqLength = options.MaxSeqLength
	}
	if options.InferThreshold >= 0 {
		cfg.InferThreshold = options.InferThreshold
	}

	return cfg, nil
}

// RunExperiment performs one experiment: a training invocation of the
// external trainer followed by an evaluation invocation over all saved
// checkpoints. The two stages run strictly in sequence; a trainer
// failure stops the run and its exit status is propagated unchanged.
func (o *Orchestrator) RunExperiment(options RunOptions) (*RunResult, error) {
	startTime := time.Now()

	task, err := benchmark.Lookup(options.Benchmark, options.Task)
	if err != nil {
		return nil, err
	}

	runCfg, err := o.buildRunConfig(task, options)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Benchmark:  task.Benchmark,
		Task:       task.Name,
		MetricName: task.Metric,
		OutputDir:  runCfg.OutputDir,
		LogDir:     runCfg.LogDir,
		StartTime:  startTime,
		Errors:     []error{},
	}

	if options.DryRun {
		fmt.Println(trainer.CommandLine(runCfg, runCfg.TrainArgs()))
		fmt.Println(trainer.CommandLine(runCfg, runCfg.EvalArgs()))
		result.Success = true
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		return result, nil
	}

	if _, err := os.Stat(runCfg.DataDir); os.IsNotExist(err) {
		o.logger.Warnf("Dataset directory %s does not exist; download the %s data first", runCfg.DataDir, task.Benchmark)
	}

	if !options.EvalOnly {
		if err := o.resolvePretrainedModel(runCfg); err != nil {
			return nil, err
		}
	}

	runID, err := o.db.StartRun(string(task.Benchmark), task.Name, runCfg.InferThreshold, runCfg.OutputDir)
	if err != nil {
		o.logger.Warnf("Failed to record run in database: %v", err)
	}

	if !options.EvalOnly {
		o.logger.Infof("Starting training for %s/%s (lr=%s, epochs=%d)",
			task.Benchmark, task.Name, runCfg.LearningRate, runCfg.NumTrainEpochs)

		stageStart := time.Now()
		if err := trainer.Train(runCfg); err != nil {
			result.Stages = append(result.Stages, StageStat{Name: "train", Duration: time.Since(stageStart), Status: "failed"})
			result.Errors = append(result.Errors, err)
			o.finishRun(runID, database.StatusFailed, task.Metric, nil)
			o.finalize(result, startTime)
			return result, err
		}
		result.Stages = append(result.Stages, StageStat{Name: "train", Duration: time.Since(stageStart), Status: "ok"})
	}

	if !options.TrainOnly {
		o.logger.Infof("Evaluating all checkpoints for %s/%s (infer_threshold=%d)",
			task.Benchmark, task.Name, runCfg.InferThreshold)

		stageStart := time.Now()
		if err := trainer.Evaluate(runCfg); err != nil {
			result.Stages = append(result.Stages, StageStat{Name: "eval", Duration: time.Since(stageStart), Status: "failed"})
			result.Errors = append(result.Errors, err)
			o.finishRun(runID, database.StatusFailed, task.Metric, nil)
			o.finalize(result, startTime)
			return result, err
		}
		result.Stages = append(result.Stages, StageStat{Name: "eval", Duration: time.Since(stageStart), Status: "ok"})

		o.collectResults(runCfg, task, result)
	}

	var best *float64
	if result.Best != nil {
		value := result.Best.Metrics[task.Metric]
		best = &value
	}
	o.finishRun(runID, database.StatusCompleted, task.Metric, best)

	if o.config.Elastic.Enabled && len(result.Results) > 0 {
		if err := o.indexMetrics(result); err != nil {
			o.logger.Warnf("Failed to index metrics in elasticsearch: %v", err)
		}
	}

	result.Success = true
	o.finalize(result, startTime)
	return result, nil
}

func (o *Orchestrator) finalize(result *RunResult, startTime time.Time) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
}

func (o *Orchestrator) finishRun(runID int64, status, metric string, best *float64) {
	if err := o.db.FinishRun(runID, status, metric, best); err != nil {
		o.logger.Warnf("Failed to update run in database: %v", err)
	}
}

func (o *Orchestrator) resolvePretrainedModel(runCfg *trainer.RunConfig) error {
	sess, err := session.New(o.config)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	downloader := checkpoint.NewDownloader(sess)
	modelPath, err := downloader.ResolveModel(runCfg.ModelNameOrPath, false)
	if err != nil {
		return fmt.Errorf("failed to resolve pretrained weights: %w", err)
	}

	if modelPath != runCfg.ModelNameOrPath {
		if DebugLog != nil {
			DebugLog("resolved %s to %s", runCfg.ModelNameOrPath, modelPath)
		}
		runCfg.ModelNameOrPath = modelPath
	}

	return nil
}

func (o *Orchestrator) collectResults(runCfg *trainer.RunConfig, task benchmark.Task, result *RunResult) {
	checkpoints, err := checkpoint.Discover(runCfg.OutputDir)
	if err != nil {
		o.logger.Warnf("Checkpoint discovery failed: %v", err)
		return
	}
	result.Checkpoints = checkpoints

	results, err := trainer.CollectResults(runCfg.OutputDir, checkpoint.Paths(checkpoints))
	if err != nil {
		o.logger.Warnf("Failed to collect eval results: %v", err)
		return
	}
	result.Results = results

	if len(results) == 0 {
		o.logger.Warnf("No eval results found under %s", runCfg.OutputDir)
		return
	}

	result.Best = trainer.BestResult(results, task.Metric)
	if result.Best != nil {
		o.logger.Infof("Best checkpoint: %s (%s=%.4f)",
			result.Best.Checkpoint, task.Metric, result.Best.Metrics[task.Metric])
	}
}

type metricDoc struct {
	Benchmark          string             `json:"benchmark"`
	Task               string             `json:"task"`
	Checkpoint         string             `json:"checkpoint"`
	Step               int                `json:"step"`
	InferThreshold     int                `json:"infer_threshold"`
	AvgInferenceLayers float64            `json:"avg_inference_layers"`
	SpeedUp            float64            `json:"speed_up"`
	Metrics            map[string]float64 `json:"metrics"`
	Timestamp          time.Time          `json:"timestamp"`
}

// indexMetrics writes the per-checkpoint eval metrics to a JSONL file
// next to the checkpoints and bulk-indexes it.
func (o *Orchestrator) indexMetrics(result *RunResult) error {
	path := filepath.Join(result.OutputDir, "eval_metrics.jsonl")

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}

	now := time.Now()
	for _, r := range result.Results {
		doc := metricDoc{
			Benchmark:          string(result.Benchmark),
			Task:               result.Task,
			Checkpoint:         r.Checkpoint,
			Step:               r.Step,
			InferThreshold:     r.InferThreshold,
			AvgInferenceLayers: r.AvgInferenceLayers,
			SpeedUp:            r.SpeedUp,
			Metrics:            r.Metrics,
			Timestamp:          now,
		}
		line, err := json.Marshal(doc)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		if _, err := fmt.Fprintln(file, string(line)); err != nil {
			file.Close()
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return err
	}

	client, err := elastic.New(elastic.Config{
		URL:      o.config.Elastic.URL,
		Username: o.config.Elastic.Username,
		Password: o.config.Elastic.Password,
		Index:    o.config.Elastic.Index,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.IndexJSONLinesFile(ctx, path); err != nil {
		return err
	}

	if DebugLog != nil {
		DebugLog("indexed %d metric documents from %s", len(result.Results), path)
	}

	return nil
}
