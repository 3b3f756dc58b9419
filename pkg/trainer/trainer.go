package trainer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var DebugLog func(string, ...interface{})

// RunConfig is the flat hyperparameter manifest one experiment run
// forwards to the external trainer. It is built once per invocation
// and never mutated afterwards; the train and eval invocations share
// the same config, eval merely adds the checkpoint sweep and the
// early-exit threshold on top.
type RunConfig struct {
	PythonBin string
	Script    string

	ModelNameOrPath string
	TaskName        string
	DoLowerCase     bool
	DataDir         string
	LogDir          string
	OutputDir       string

	NumHiddenLayers int
	NumOutputLayers int
	MaxSeqLength    int

	TrainBatchSize int
	EvalBatchSize  int
	LearningRate   string
	WeightDecay    string
	SaveSteps      int
	LoggingSteps   int
	NumTrainEpochs int
	WarmupRate     string

	EvaluateDuringTraining bool
	OverwriteOutputDir     bool
	InferThreshold         int

	DatasetEnvVar string
	DatasetRoot   string
	Device        string
}

func (c *RunConfig) commonArgs() []string {
	return []string{
		"--model_name_or_path", c.ModelNameOrPath,
		"--task_name", c.TaskName,
		"--data_dir", c.DataDir,
		"--log_dir", c.LogDir,
		"--output_dir", c.OutputDir,
		"--num_hidden_layers", strconv.Itoa(c.NumHiddenLayers),
		"--num_output_layers", strconv.Itoa(c.NumOutputLayers),
		"--max_seq_length", strconv.Itoa(c.MaxSeqLength),
		"--per_gpu_train_batch_size", strconv.Itoa(c.TrainBatchSize),
		"--per_gpu_eval_batch_size", strconv.Itoa(c.EvalBatchSize),
		"--learning_rate", c.LearningRate,
		"--weight_decay", c.WeightDecay,
		"--save_steps", strconv.Itoa(c.SaveSteps),
		"--logging_steps", strconv.Itoa(c.LoggingSteps),
		"--num_train_epochs", strconv.Itoa(c.NumTrainEpochs),
		"--warmup_rate", c.WarmupRate,
	}
}

// TrainArgs builds the argument list of the training invocation. The
// eval-only flags (--eval_all_checkpoints, --infer_threshold) never
// appear here.
func (c *RunConfig) TrainArgs() []string {
	args := []string{c.Script}
	args = append(args, c.commonArgs()...)
	args = append(args, "--do_train")
	if c.DoLowerCase {
		args = append(args, "--do_lower_case")
	}
	if c.EvaluateDuringTraining {
		args = append(args, "--evaluate_during_training")
	}
	if c.OverwriteOutputDir {
		args = append(args, "--overwrite_output_dir")
	}
	return args
}

// EvalArgs builds the argument list of the evaluation invocation: the
// shared hyperparameter set plus the sweep over every saved checkpoint
// and the kernel-alignment early-exit threshold.
func (c *RunConfig) EvalArgs() []string {
	args := []string{c.Script}
	args = append(args, c.commonArgs()...)
	args = append(args, "--do_eval")
	if c.DoLowerCase {
		args = append(args, "--do_lower_case")
	}
	args = append(args,
		"--eval_all_checkpoints",
		fmt.Sprintf("--infer_threshold=%d", c.InferThreshold),
	)
	return args
}

// Environ returns the process environment for a trainer invocation:
// the current environment plus the dataset root, the task name, and
// the accelerator selection.
func (c *RunConfig) Environ() []string {
	env := os.Environ()
	if c.DatasetEnvVar != "" && c.DatasetRoot != "" {
		env = append(env, c.DatasetEnvVar+"="+c.DatasetRoot)
	}
	env = append(env, "TASK_NAME="+c.TaskName)
	env = append(env, "CUDA_VISIBLE_DEVICES="+c.Device)
	return env
}

func getPythonPath(preferred string) (string, error) {
	if preferred != "" {
		if path, err := exec.LookPath(preferred); err == nil {
			return path, nil
		}
		if _, err := os.Stat(preferred); err == nil {
			return preferred, nil
		}
		return "", fmt.Errorf("python interpreter not found: %s", preferred)
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	if conda := os.Getenv("CONDA_PREFIX"); conda != "" {
		path := filepath.Join(conda, "bin", "python")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("python interpreter not found")
}

func run(cfg *RunConfig, args []string) error {
	pythonPath, err := getPythonPath(cfg.PythonBin)
	if err != nil {
		return err
	}

	if DebugLog != nil {
		DebugLog("executing: %s %s", pythonPath, strings.Join(args, " "))
	}

	cmd := exec.Command(pythonPath, args...)
	cmd.Env = cfg.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// Train runs the training invocation. The trainer's exit status is
// propagated through the returned error, not interpreted.
func Train(cfg *RunConfig) error {
	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	if err := run(cfg, cfg.TrainArgs()); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	return nil
}

// Evaluate runs the evaluation invocation over all saved checkpoints.
func Evaluate(cfg *RunConfig) error {
	if err := run(cfg, cfg.EvalArgs()); err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	return nil
}

// CommandLine renders an invocation the way it would be typed in a
// shell, for dry runs.
func CommandLine(cfg *RunConfig, args []string) string {
	python := cfg.PythonBin
	if python == "" {
		python = "python"
	}
	return python + " " + strings.Join(args, " ")
}
