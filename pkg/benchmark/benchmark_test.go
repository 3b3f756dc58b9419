package benchmark

import (
	"strings"
	"testing"
)

func TestLookupCaseInsensitive(t *testing.T) {
	for _, name := range []string{"RTE", "rte", "Rte"} {
		task, err := Lookup(Glue, name)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", name, err)
		}
		if task.Name != "RTE" {
			t.Errorf("Lookup(%q) returned canonical name %q, want RTE", name, task.Name)
		}
	}
}

func TestLookupUnknownTask(t *testing.T) {
	_, err := Lookup(Glue, "IMDb")
	if err == nil {
		t.Fatal("expected error for IMDb on glue, got nil")
	}
	if !strings.Contains(err.Error(), "unknown glue task") {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := Lookup(Elue, "IMDb"); err != nil {
		t.Errorf("IMDb should exist on elue: %v", err)
	}
}

func TestBenchmarkEnvVarAndScript(t *testing.T) {
	if got := Glue.EnvVar(); got != "GLUE_DIR" {
		t.Errorf("Glue.EnvVar() = %q", got)
	}
	if got := Elue.EnvVar(); got != "ELUE_DIR" {
		t.Errorf("Elue.EnvVar() = %q", got)
	}
	if got := Glue.Script(); got != "run_glue_kernel.py" {
		t.Errorf("Glue.Script() = %q", got)
	}
	if got := Elue.Script(); got != "run_elue_kernel.py" {
		t.Errorf("Elue.Script() = %q", got)
	}
}

func TestParseBenchmark(t *testing.T) {
	tests := []struct {
		in      string
		want    Benchmark
		wantErr bool
	}{
		{"glue", Glue, false},
		{"GLUE", Glue, false},
		{" elue ", Elue, false},
		{"superglue", "", true},
	}

	for _, tt := range tests {
		got, err := ParseBenchmark(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseBenchmark(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseBenchmark(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBenchmark(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTasksSortedAndComplete(t *testing.T) {
	glue := Tasks(Glue)
	if len(glue) != 9 {
		t.Errorf("expected 9 glue tasks, got %d", len(glue))
	}

	for i := 1; i < len(glue); i++ {
		if glue[i-1].Name >= glue[i].Name {
			t.Errorf("tasks not sorted: %q before %q", glue[i-1].Name, glue[i].Name)
		}
	}

	elue := Tasks(Elue)
	if len(elue) != 6 {
		t.Errorf("expected 6 elue tasks, got %d", len(elue))
	}
}

func TestPresetsCarryThreshold(t *testing.T) {
	for _, b := range []Benchmark{Glue, Elue} {
		for _, task := range Tasks(b) {
			if task.Preset.InferThreshold != 1 {
				t.Errorf("%s/%s: infer threshold preset = %d, want 1", b, task.Name, task.Preset.InferThreshold)
			}
			if task.Preset.LearningRate == "" || task.Preset.WarmupRate == "" {
				t.Errorf("%s/%s: incomplete preset", b, task.Name)
			}
		}
	}
}

func TestDataDirNameMatchesTaskName(t *testing.T) {
	task, err := Lookup(Glue, "rte")
	if err != nil {
		t.Fatal(err)
	}
	if task.DataDirName() != "RTE" {
		t.Errorf("DataDirName() = %q, want RTE", task.DataDirName())
	}
}
