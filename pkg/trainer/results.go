package trainer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// EvalResult holds the metrics the trainer wrote for one evaluated
// checkpoint, plus the early-exit summary line when present.
type EvalResult struct {
	Checkpoint         string
	Step               int
	Metrics            map[string]float64
	InferThreshold     int
	AvgInferenceLayers float64
	SpeedUp            float64
}

// The trainer appends a summary of the kernel-alignment early exit:
// *** infer_threshold = 1 Avg. Inference Layers = 8.50 Speed Up = 1.41 ***
var exitSummaryRe = regexp.MustCompile(
	`\*\*\*\s*infer_threshold\s*=\s*(\d+)\s+Avg\. Inference Layers\s*=\s*([0-9.]+)\s+Speed Up\s*=\s*([0-9.]+)\s*\*\*\*`,
)

// ParseEvalResults reads a trainer eval_results.txt: "metric = value"
// lines with an optional early-exit summary. Unparseable lines are
// skipped, matching how loosely the trainer formats the file.
func ParseEvalResults(path string) (*EvalResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result := &EvalResult{
		Metrics: make(map[string]float64),
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := exitSummaryRe.FindStringSubmatch(line); m != nil {
			result.InferThreshold, _ = strconv.Atoi(m[1])
			result.AvgInferenceLayers, _ = strconv.ParseFloat(m[2], 64)
			result.SpeedUp, _ = strconv.ParseFloat(m[3], 64)
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		number, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}

		result.Metrics[key] = number
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// CollectResults gathers eval results for every checkpoint directory
// under outputDir, plus the final weights evaluated at the output dir
// root. Checkpoints without an eval_results.txt are skipped.
func CollectResults(outputDir string, checkpoints []string) ([]EvalResult, error) {
	dirs := append([]string{outputDir}, checkpoints...)

	var results []EvalResult
	for _, dir := range dirs {
		path := filepath.Join(dir, "eval_results.txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		result, err := ParseEvalResults(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		result.Checkpoint = dir
		result.Step = checkpointStep(dir)
		results = append(results, *result)
	}

	return results, nil
}

var checkpointDirRe = regexp.MustCompile(`checkpoint-(\d+)$`)

func checkpointStep(dir string) int {
	if m := checkpointDirRe.FindStringSubmatch(filepath.Base(dir)); m != nil {
		step, _ := strconv.Atoi(m[1])
		return step
	}
	return 0
}

// BestResult picks the checkpoint with the highest value of the task
// metric. Returns nil when no evaluated checkpoint carries the metric.
func BestResult(results []EvalResult, metric string) *EvalResult {
	var best *EvalResult
	for i := range results {
		value, ok := results[i].Metrics[metric]
		if !ok {
			continue
		}
		if best == nil || value > best.Metrics[metric] {
			best = &results[i]
		}
	}
	return best
}
