package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverOrdersByStep(t *testing.T) {
	outputDir := t.TempDir()

	for _, name := range []string{"checkpoint-500", "checkpoint-50", "checkpoint-1000", "runs", "checkpoint-abc"} {
		if err := os.MkdirAll(filepath.Join(outputDir, name), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// files never count as checkpoints
	if err := os.WriteFile(filepath.Join(outputDir, "checkpoint-9"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	checkpoints, err := Discover(outputDir)
	if err != nil {
		t.Fatal(err)
	}

	wantSteps := []int{50, 500, 1000}
	if len(checkpoints) != len(wantSteps) {
		t.Fatalf("expected %d checkpoints, got %d", len(wantSteps), len(checkpoints))
	}

	for i, want := range wantSteps {
		if checkpoints[i].Step != want {
			t.Errorf("checkpoint[%d].Step = %d, want %d", i, checkpoints[i].Step, want)
		}
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing output directory")
	}
}

func TestPaths(t *testing.T) {
	checkpoints := []Checkpoint{
		{Path: "a/checkpoint-50", Step: 50},
		{Path: "a/checkpoint-100", Step: 100},
	}

	paths := Paths(checkpoints)
	if len(paths) != 2 || paths[0] != "a/checkpoint-50" || paths[1] != "a/checkpoint-100" {
		t.Errorf("unexpected paths: %v", paths)
	}
}
