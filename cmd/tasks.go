package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/xyangyan/CsdBERT/pkg/benchmark"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tasksBenchmark string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List available benchmark tasks",
	Long:  `List the GLUE and ELUE tasks the launcher knows, with their preset hyperparameters`,
	Run:   runTasks,
}

func init() {
	tasksCmd.Flags().StringVarP(&tasksBenchmark, "benchmark", "b", "", "benchmark suite: glue or elue (default: both)")
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) {
	var benchmarks []benchmark.Benchmark
	if tasksBenchmark == "" {
		benchmarks = []benchmark.Benchmark{benchmark.Glue, benchmark.Elue}
	} else {
		b, err := benchmark.ParseBenchmark(tasksBenchmark)
		if err != nil {
			color.Red("Error: %v", err)
			os.Exit(1)
		}
		benchmarks = []benchmark.Benchmark{b}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, color.CyanString("BENCHMARK\tTASK\tMETRIC\tLR\tEPOCHS\tBATCH\tSAVE_STEPS"))
	fmt.Fprintln(w, strings.Repeat("-", 80))

	total := 0
	for _, b := range benchmarks {
		for _, task := range benchmark.Tasks(b) {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
				b,
				task.Name,
				task.Metric,
				task.Preset.LearningRate,
				task.Preset.NumTrainEpochs,
				task.Preset.TrainBatchSize,
				task.Preset.SaveSteps,
			)
			total++
		}
	}
	w.Flush()

	color.Green("\nTotal tasks: %d", total)
}
