package benchmark

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultModel is the pretrained backbone the kernel-alignment trainer
// fine-tunes from.
const DefaultModel = "fnlp/elasticbert-base"

type Benchmark string

const (
	Glue Benchmark = "glue"
	Elue Benchmark = "elue"
)

// EnvVar returns the environment variable holding the dataset root
// for this benchmark suite.
func (b Benchmark) EnvVar() string {
	switch b {
	case Elue:
		return "ELUE_DIR"
	default:
		return "GLUE_DIR"
	}
}

// Script returns the trainer entry point for this benchmark suite.
func (b Benchmark) Script() string {
	switch b {
	case Elue:
		return "run_elue_kernel.py"
	default:
		return "run_glue_kernel.py"
	}
}

func ParseBenchmark(s string) (Benchmark, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "glue":
		return Glue, nil
	case "elue":
		return Elue, nil
	default:
		return "", fmt.Errorf("unknown benchmark: %s (expected 'glue' or 'elue')", s)
	}
}

// Preset carries the hyperparameters the release scripts pin for a task.
// Learning rate and warmup rate stay strings so the values reach the
// trainer exactly as written.
type Preset struct {
	LearningRate   string
	WeightDecay    string
	TrainBatchSize int
	EvalBatchSize  int
	MaxSeqLength   int
	NumTrainEpochs int
	WarmupRate     string
	SaveSteps      int
	LoggingSteps   int
	InferThreshold int
}

type Task struct {
	Name      string
	Benchmark Benchmark
	Metric    string
	Preset    Preset
}

// DataDirName is the subdirectory of the benchmark dataset root that
// holds this task's data, e.g. $GLUE_DIR/RTE.
func (t Task) DataDirName() string {
	return t.Name
}

var smallTaskPreset = Preset{
	LearningRate:   "2e-5",
	WeightDecay:    "0.1",
	TrainBatchSize: 32,
	EvalBatchSize:  32,
	MaxSeqLength:   128,
	NumTrainEpochs: 10,
	WarmupRate:     "0.1",
	SaveSteps:      50,
	LoggingSteps:   50,
	InferThreshold: 1,
}

var largeTaskPreset = Preset{
	LearningRate:   "2e-5",
	WeightDecay:    "0.1",
	TrainBatchSize: 32,
	EvalBatchSize:  32,
	MaxSeqLength:   128,
	NumTrainEpochs: 3,
	WarmupRate:     "0.1",
	SaveSteps:      500,
	LoggingSteps:   500,
	InferThreshold: 1,
}

var registry = []Task{
	{Name: "CoLA", Benchmark: Glue, Metric: "mcc", Preset: smallTaskPreset},
	{Name: "SST-2", Benchmark: Glue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "MRPC", Benchmark: Glue, Metric: "f1", Preset: smallTaskPreset},
	{Name: "STS-B", Benchmark: Glue, Metric: "spearmanr", Preset: smallTaskPreset},
	{Name: "QQP", Benchmark: Glue, Metric: "f1", Preset: largeTaskPreset},
	{Name: "MNLI", Benchmark: Glue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "QNLI", Benchmark: Glue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "RTE", Benchmark: Glue, Metric: "acc", Preset: smallTaskPreset},
	{Name: "WNLI", Benchmark: Glue, Metric: "acc", Preset: smallTaskPreset},

	{Name: "SST-2", Benchmark: Elue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "IMDb", Benchmark: Elue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "MRPC", Benchmark: Elue, Metric: "f1", Preset: smallTaskPreset},
	{Name: "STS-B", Benchmark: Elue, Metric: "spearmanr", Preset: smallTaskPreset},
	{Name: "SNLI", Benchmark: Elue, Metric: "acc", Preset: largeTaskPreset},
	{Name: "SciTail", Benchmark: Elue, Metric: "acc", Preset: smallTaskPreset},
}

// Lookup resolves a task by name within a benchmark suite. Matching is
// case-insensitive; the returned task carries the canonical name the
// dataset directories use.
func Lookup(b Benchmark, name string) (Task, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, task := range registry {
		if task.Benchmark == b && strings.ToLower(task.Name) == needle {
			return task, nil
		}
	}

	names := make([]string, 0, len(registry))
	for _, task := range registry {
		if task.Benchmark == b {
			names = append(names, task.Name)
		}
	}
	return Task{}, fmt.Errorf("unknown %s task: %s (available: %s)", b, name, strings.Join(names, ", "))
}

// Tasks returns the tasks of a benchmark suite sorted by name.
func Tasks(b Benchmark) []Task {
	var tasks []Task
	for _, task := range registry {
		if task.Benchmark == b {
			tasks = append(tasks, task)
		}
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].Name < tasks[j].Name
	})
	return tasks
}
