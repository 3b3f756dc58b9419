package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
trainer:
  python_bin: /opt/conda/bin/python
  script_dir: ./finetune-dynamic
datasets:
  glue_dir: /data/glue
  elue_dir: /data/elue
model:
  name_or_path: fnlp/elasticbert-base
  num_hidden_layers: 12
  num_output_layers: 2
  do_lower_case: true
default_settings:
  timeout: 720
  device: "1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(path)
	if err := manager.LoadConfig(); err != nil {
		t.Fatal(err)
	}

	cfg := manager.GetConfig()
	if cfg.Trainer.PythonBin != "/opt/conda/bin/python" {
		t.Errorf("PythonBin = %q", cfg.Trainer.PythonBin)
	}
	if cfg.Datasets.ElueDir != "/data/elue" {
		t.Errorf("ElueDir = %q", cfg.Datasets.ElueDir)
	}
	if cfg.Model.NumOutputLayers != 2 {
		t.Errorf("NumOutputLayers = %d", cfg.Model.NumOutputLayers)
	}
	// defaults survive a partial file
	if cfg.DefaultSettings.OutputRoot != "./ckpts" {
		t.Errorf("OutputRoot = %q", cfg.DefaultSettings.OutputRoot)
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if err := manager.LoadConfig(); err == nil {
		t.Error("expected error for explicitly given missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.DefaultSettings.Timeout = 0 }},
		{"zero hidden layers", func(c *Config) { c.Model.NumHiddenLayers = 0 }},
		{"zero output layers", func(c *Config) { c.Model.NumOutputLayers = 0 }},
		{"output exceeds hidden", func(c *Config) { c.Model.NumOutputLayers = 13 }},
	}

	manager := NewManager("")
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := manager.validateConfig(cfg); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}

	if err := manager.validateConfig(Default()); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestDatasetRootPrefersEnv(t *testing.T) {
	cfg := Default()
	cfg.Datasets.GlueDir = "/from/config"

	t.Setenv("GLUE_DIR", "/from/env")
	if got := cfg.DatasetRoot("GLUE_DIR"); got != "/from/env" {
		t.Errorf("DatasetRoot = %q, want /from/env", got)
	}

	t.Setenv("GLUE_DIR", "")
	if got := cfg.DatasetRoot("GLUE_DIR"); got != "/from/config" {
		t.Errorf("DatasetRoot = %q, want /from/config", got)
	}
}

func TestDeviceSelectionPrefersEnv(t *testing.T) {
	cfg := Default()

	t.Setenv("CUDA_VISIBLE_DEVICES", "2,3")
	if got := cfg.DeviceSelection(); got != "2,3" {
		t.Errorf("DeviceSelection = %q, want 2,3", got)
	}
}

func TestTrainerScript(t *testing.T) {
	cfg := Default()
	cfg.Trainer.ScriptDir = "/src/finetune-dynamic"

	want := filepath.Join("/src/finetune-dynamic", "run_glue_kernel.py")
	if got := cfg.TrainerScript("run_glue_kernel.py"); got != want {
		t.Errorf("TrainerScript = %q, want %q", got, want)
	}
}
