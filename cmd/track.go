package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/xyangyan/CsdBERT/pkg/database"
	"github.com/xyangyan/CsdBERT/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	trackStatus string
	trackAll    bool
)

var trackCmd = &cobra.Command{
	Use:   "track [task]",
	Short: "Query experiment run history",
	Long:  `Query the run history database for a specific task or all tasks`,
	Run:   runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackStatus, "status", "", "filter by status (running, completed, failed)")
	trackCmd.Flags().BoolVar(&trackAll, "all", false, "query all tasks")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	if !trackAll && len(args) == 0 {
		color.Red("Error: either provide a task or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if trackAll && len(args) > 0 {
		color.Red("Error: cannot use both task and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	db := orch.GetDB()
	if db == nil || !db.IsEnabled() {
		color.Red("Error: Database is not enabled. Please enable it in config.yaml")
		os.Exit(1)
	}

	if trackStatus != "" {
		trackStatus = strings.ToUpper(trackStatus)
	}

	var records []database.RunRecord

	if trackAll {
		records, err = db.QueryAllRuns(trackStatus)
		if err != nil {
			color.Red("Failed to query database: %v", err)
			os.Exit(1)
		}
	} else {
		task := args[0]
		records, err = db.QueryRuns(task, trackStatus)
		if err != nil {
			color.Red("Failed to query database: %v", err)
			os.Exit(1)
		}

		if len(records) == 0 {
			color.Yellow("[INF] Task %s not found in database.", task)
			os.Exit(0)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("BENCHMARK\tTASK\tSTATUS\tTHRESHOLD\tBEST\tSTARTED\tFINISHED"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, r := range records {
		statusColor := color.GreenString
		if r.Status == database.StatusFailed {
			statusColor = color.RedString
		} else if r.Status == database.StatusRunning {
			statusColor = color.YellowString
		}

		best := "-"
		if r.BestMetric.Valid {
			best = fmt.Sprintf("%s=%.4f", r.MetricName, r.BestMetric.Float64)
		}

		finished := "-"
		if r.FinishedAt.Valid {
			finished = r.FinishedAt.Time.Format("2006-01-02 15:04:05")
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Benchmark,
			r.Task,
			statusColor(r.Status),
			r.Threshold,
			best,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			finished,
		)
	}
	w.Flush()

	color.Green("\nTotal records: %d", len(records))
}
