package trainer

import (
	"os"
	"path/filepath"
	"testing"
)

func writeResults(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "eval_results.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestParseEvalResults(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir, `acc = 0.7148
loss = 0.6234

*** infer_threshold = 1 Avg. Inference Layers = 8.50 Speed Up = 1.41 ***
`)

	result, err := ParseEvalResults(filepath.Join(dir, "eval_results.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if got := result.Metrics["acc"]; got != 0.7148 {
		t.Errorf("acc = %v, want 0.7148", got)
	}
	if got := result.Metrics["loss"]; got != 0.6234 {
		t.Errorf("loss = %v, want 0.6234", got)
	}
	if result.InferThreshold != 1 {
		t.Errorf("InferThreshold = %d, want 1", result.InferThreshold)
	}
	if result.AvgInferenceLayers != 8.50 {
		t.Errorf("AvgInferenceLayers = %v, want 8.50", result.AvgInferenceLayers)
	}
	if result.SpeedUp != 1.41 {
		t.Errorf("SpeedUp = %v, want 1.41", result.SpeedUp)
	}
}

func TestParseEvalResultsSkipsGarbage(t *testing.T) {
	dir := t.TempDir()
	writeResults(t, dir, `evaluating checkpoint ckpts/glue/kernel/RTE/checkpoint-50
acc = not-a-number
f1 = 0.88
`)

	result, err := ParseEvalResults(filepath.Join(dir, "eval_results.txt"))
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Metrics) != 1 {
		t.Errorf("expected 1 parsed metric, got %d: %v", len(result.Metrics), result.Metrics)
	}
	if got := result.Metrics["f1"]; got != 0.88 {
		t.Errorf("f1 = %v, want 0.88", got)
	}
}

func TestCollectResultsAndBest(t *testing.T) {
	outputDir := t.TempDir()

	ckpt50 := filepath.Join(outputDir, "checkpoint-50")
	ckpt100 := filepath.Join(outputDir, "checkpoint-100")
	ckpt150 := filepath.Join(outputDir, "checkpoint-150")

	writeResults(t, ckpt50, "acc = 0.66\n")
	writeResults(t, ckpt100, "acc = 0.72\n")
	// checkpoint-150 produced no eval file
	if err := os.MkdirAll(ckpt150, 0755); err != nil {
		t.Fatal(err)
	}

	results, err := CollectResults(outputDir, []string{ckpt50, ckpt100, ckpt150})
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	best := BestResult(results, "acc")
	if best == nil {
		t.Fatal("BestResult returned nil")
	}
	if best.Step != 100 {
		t.Errorf("best step = %d, want 100", best.Step)
	}
	if best.Metrics["acc"] != 0.72 {
		t.Errorf("best acc = %v, want 0.72", best.Metrics["acc"])
	}
}

func TestBestResultMissingMetric(t *testing.T) {
	results := []EvalResult{
		{Metrics: map[string]float64{"loss": 0.4}},
	}
	if best := BestResult(results, "acc"); best != nil {
		t.Errorf("expected nil best for missing metric, got %+v", best)
	}
}
