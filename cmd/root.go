package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xyangyan/CsdBERT/pkg/benchmark"
	"github.com/xyangyan/CsdBERT/pkg/checkpoint"
	"github.com/xyangyan/CsdBERT/pkg/config"
	"github.com/xyangyan/CsdBERT/pkg/database"
	"github.com/xyangyan/CsdBERT/pkg/orchestrator"
	"github.com/xyangyan/CsdBERT/pkg/session"
	"github.com/xyangyan/CsdBERT/pkg/trainer"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configFile     string
	benchmarkName  string
	taskName       string
	modelName      string
	device         string
	learningRate   string
	warmupRate     string
	epochs         int
	batchSize      int
	seqLength      int
	inferThreshold int
	trainOnly      bool
	evalOnly       bool
	dryRun         bool
	silent         bool
	verbose        bool
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "csdbert",
	Short: "experiment launcher for contrastive self-distillation fine-tuning",
	Long:  `launches train and eval runs of the kernel-alignment trainer on GLUE and ELUE tasks`,
	Run:   runExperiment,
}

func Execute() {
	hasSilentFlag := false
	for i, arg := range os.Args {
		switch arg {
		case "-benchmark":
			os.Args[i] = "--benchmark"
		case "-task":
			os.Args[i] = "--task"
		case "-model":
			os.Args[i] = "--model"
		case "-lr":
			os.Args[i] = "--lr"
		case "-device":
			os.Args[i] = "--device"
		case "-threshold":
			os.Args[i] = "--threshold"
		case "-warmup":
			os.Args[i] = "--warmup"
		case "-epochs":
			os.Args[i] = "--epochs"
		case "-batch-size":
			os.Args[i] = "--batch-size"
		case "-seq-length":
			os.Args[i] = "--seq-length"
		case "-train-only":
			os.Args[i] = "--train-only"
		case "-eval-only":
			os.Args[i] = "--eval-only"
		case "-dry-run":
			os.Args[i] = "--dry-run"
		case "-silent":
			os.Args[i] = "--silent"
			hasSilentFlag = true
		case "--silent":
			hasSilentFlag = true
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	trainer.DebugLog = DebugLog
	checkpoint.DebugLog = DebugLog
	session.DebugLog = DebugLog
	database.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
EXPERIMENT:
   -b, -benchmark string   benchmark suite: glue or elue (default: glue)
   -t, -task string        task to fine-tune on (e.g., RTE; default: $TASK_NAME)
   -model string           pretrained weights source (default: fnlp/elasticbert-base)
   -device string          accelerator selection (default: $CUDA_VISIBLE_DEVICES)

HYPERPARAMETERS:
   -lr string              learning rate override (e.g., '3e-5')
   -e, -epochs int         number of training epochs override
   -batch-size int         per-GPU batch size override (train and eval)
   -seq-length int         maximum sequence length override
   -warmup string          warmup rate override
   -threshold int          kernel-alignment early-exit threshold for evaluation

MODES:
   -train-only             run the training invocation only
   -eval-only              run the evaluation invocation only
   -dry-run                print the trainer command lines without running them

TRACK:
   -status string          filter by status (running, completed, failed)
   -all                    query all tasks

OUTPUT:
   -silent                 silent mode - no banner or extra output

CONFIGURATION:
   -c, -config string      config file path (default: config/config.yaml)

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: config/config.yaml)")

	rootCmd.Flags().StringVarP(&benchmarkName, "benchmark", "b", "glue", "benchmark suite: glue or elue")
	rootCmd.Flags().StringVarP(&taskName, "task", "t", "", "task to fine-tune on (default: $TASK_NAME)")
	rootCmd.Flags().StringVar(&modelName, "model", "", "pretrained weights source")
	rootCmd.Flags().StringVar(&device, "device", "", "accelerator selection (default: $CUDA_VISIBLE_DEVICES)")
	rootCmd.Flags().StringVar(&learningRate, "lr", "", "learning rate override")
	rootCmd.Flags().StringVar(&warmupRate, "warmup", "", "warmup rate override")
	rootCmd.Flags().IntVarP(&epochs, "epochs", "e", 0, "number of training epochs override")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 0, "per-GPU batch size override")
	rootCmd.Flags().IntVar(&seqLength, "seq-length", 0, "maximum sequence length override")
	rootCmd.Flags().IntVar(&inferThreshold, "threshold", -1, "kernel-alignment early-exit threshold")
	rootCmd.Flags().BoolVar(&trainOnly, "train-only", false, "run the training invocation only")
	rootCmd.Flags().BoolVar(&evalOnly, "eval-only", false, "run the evaluation invocation only")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the trainer command lines without running them")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(updateCmd)
}

func runExperiment(cmd *cobra.Command, args []string) {
	if taskName == "" {
		taskName = os.Getenv("TASK_NAME")
	}

	if taskName == "" {
		color.Red("Error: either -t (task) or the TASK_NAME environment variable is required")
		cmd.Help()
		os.Exit(1)
	}

	if trainOnly && evalOnly {
		color.Red("Error: cannot use both -train-only and -eval-only flags together")
		cmd.Help()
		os.Exit(1)
	}

	bench, err := benchmark.ParseBenchmark(benchmarkName)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}

	Verbose = verbose

	if verbose {
		setDebugLogFunctions()
	}

	orch, err := orchestrator.NewOrchestrator(configFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	options := orchestrator.RunOptions{
		Benchmark:      bench,
		Task:           taskName,
		Model:          modelName,
		Device:         device,
		LearningRate:   learningRate,
		WarmupRate:     warmupRate,
		Epochs:         epochs,
		BatchSize:      batchSize,
		MaxSeqLength:   seqLength,
		InferThreshold: inferThreshold,
		TrainOnly:      trainOnly,
		EvalOnly:       evalOnly,
		DryRun:         dryRun,
	}

	result, err := orch.RunExperiment(options)
	if err != nil {
		color.Red("Run failed for %s/%s: %v", benchmarkName, taskName, err)
		os.Exit(1)
	}

	if !silent && !dryRun {
		displaySummary(result)
	}

	if result.Success {
		os.Exit(0)
	} else {
		os.Exit(1)
	}
}

func printBanner() {
	banner := color.CyanString(`
┌─┐┌─┐┌┬┐┌┐ ┌─┐┬─┐┌┬┐
│  └─┐ ││├┴┐├┤ ├┬┘ │
└─┘└─┘─┴┘└─┘└─┘┴└─ ┴  @xyangyan
`)
	info := color.HiBlackString("contrastive self-distillation fine-tuning with kernel-alignment early exit")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}

func displaySummary(result *orchestrator.RunResult) {
	color.Green("\nRun completed: %s/%s in %v", result.Benchmark, result.Task, result.Duration)

	if len(result.Checkpoints) > 0 {
		color.Cyan("Evaluated %d checkpoints under %s", len(result.Checkpoints), result.OutputDir)
	}

	if result.Best != nil {
		color.Cyan("Best checkpoint: %s (%s=%.4f)",
			result.Best.Checkpoint, result.MetricName, result.Best.Metrics[result.MetricName])
		if result.Best.SpeedUp > 0 {
			color.Cyan("Avg. inference layers: %.2f (speed up %.2fx at infer_threshold=%d)",
				result.Best.AvgInferenceLayers, result.Best.SpeedUp, result.Best.InferThreshold)
		}
	}

	if len(result.Stages) > 0 {
		fmt.Println()
		fmt.Printf(" %-10s %-15s %-10s\n", "Stage", "Duration", "Status")
		color.Cyan(strings.Repeat("─", 40))
		for _, stage := range result.Stages {
			fmt.Printf(" %-10s %-15v %-10s\n", stage.Name, stage.Duration.Round(time.Millisecond), stage.Status)
		}
	}
}
