package orchestrator

import (
	"path/filepath"
	"testing"

	"github.com/xyangyan/CsdBERT/pkg/benchmark"
	"github.com/xyangyan/CsdBERT/pkg/config"
)

func testOrchestrator() *Orchestrator {
	return &Orchestrator{config: config.Default()}
}

func TestBuildRunConfigRTEScenario(t *testing.T) {
	t.Setenv("GLUE_DIR", "/data/glue")
	t.Setenv("CUDA_VISIBLE_DEVICES", "0")

	o := testOrchestrator()
	task, err := benchmark.Lookup(benchmark.Glue, "RTE")
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := o.buildRunConfig(task, RunOptions{Benchmark: benchmark.Glue, Task: "RTE", InferThreshold: -1})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TaskName != "RTE" {
		t.Errorf("TaskName = %q", cfg.TaskName)
	}
	if cfg.DataDir != "/data/glue/RTE" {
		t.Errorf("DataDir = %q, want /data/glue/RTE", cfg.DataDir)
	}
	if want := filepath.Join("ckpts", "glue", "kernel", "RTE"); cfg.OutputDir != want {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, want)
	}
	if want := filepath.Join("logs", "glue", "kernel", "RTE"); cfg.LogDir != want {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, want)
	}
	if cfg.InferThreshold != 1 {
		t.Errorf("InferThreshold = %d, want preset 1", cfg.InferThreshold)
	}
	if cfg.Script != filepath.Join(".", "run_glue_kernel.py") {
		t.Errorf("Script = %q", cfg.Script)
	}
	if cfg.Device != "0" {
		t.Errorf("Device = %q, want 0", cfg.Device)
	}
	if cfg.DatasetEnvVar != "GLUE_DIR" || cfg.DatasetRoot != "/data/glue" {
		t.Errorf("dataset env = %s=%s", cfg.DatasetEnvVar, cfg.DatasetRoot)
	}
}

func TestBuildRunConfigMissingDatasetRoot(t *testing.T) {
	t.Setenv("ELUE_DIR", "")

	o := testOrchestrator()
	task, err := benchmark.Lookup(benchmark.Elue, "SNLI")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.buildRunConfig(task, RunOptions{InferThreshold: -1}); err == nil {
		t.Error("expected error when no dataset root is available")
	}
}

func TestBuildRunConfigOverrides(t *testing.T) {
	t.Setenv("GLUE_DIR", "/data/glue")

	o := testOrchestrator()
	task, err := benchmark.Lookup(benchmark.Glue, "MRPC")
	if err != nil {
		t.Fatal(err)
	}

	options := RunOptions{
		Model:          "./local-elasticbert",
		Device:         "3",
		LearningRate:   "3e-5",
		Epochs:         5,
		BatchSize:      16,
		MaxSeqLength:   256,
		InferThreshold: 2,
	}

	cfg, err := o.buildRunConfig(task, options)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.ModelNameOrPath != "./local-elasticbert" {
		t.Errorf("ModelNameOrPath = %q", cfg.ModelNameOrPath)
	}
	if cfg.Device != "3" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.LearningRate != "3e-5" {
		t.Errorf("LearningRate = %q", cfg.LearningRate)
	}
	if cfg.NumTrainEpochs != 5 {
		t.Errorf("NumTrainEpochs = %d", cfg.NumTrainEpochs)
	}
	if cfg.TrainBatchSize != 16 || cfg.EvalBatchSize != 16 {
		t.Errorf("batch sizes = %d/%d", cfg.TrainBatchSize, cfg.EvalBatchSize)
	}
	if cfg.MaxSeqLength != 256 {
		t.Errorf("MaxSeqLength = %d", cfg.MaxSeqLength)
	}
	if cfg.InferThreshold != 2 {
		t.Errorf("InferThreshold = %d", cfg.InferThreshold)
	}
}

func TestBuildRunConfigZeroThresholdOverride(t *testing.T) {
	t.Setenv("GLUE_DIR", "/data/glue")

	o := testOrchestrator()
	task, err := benchmark.Lookup(benchmark.Glue, "RTE")
	if err != nil {
		t.Fatal(err)
	}

	// 0 disables the early exit and must not fall back to the preset
	cfg, err := o.buildRunConfig(task, RunOptions{InferThreshold: 0})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InferThreshold != 0 {
		t.Errorf("InferThreshold = %d, want 0", cfg.InferThreshold)
	}
}
