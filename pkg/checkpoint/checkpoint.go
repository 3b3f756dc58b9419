package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

var DebugLog func(string, ...interface{})

// Checkpoint is one saved snapshot of model parameters produced by the
// external trainer under the run output directory.
type Checkpoint struct {
	Path string
	Step int
}

var checkpointDirRe = regexp.MustCompile(`^checkpoint-(\d+)$`)

// Discover lists the checkpoint-<step> directories under outputDir,
// ordered by training step. This is the set --eval_all_checkpoints
// sweeps over.
func Discover(outputDir string) ([]Checkpoint, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		m := checkpointDirRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}

		step, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		checkpoints = append(checkpoints, Checkpoint{
			Path: filepath.Join(outputDir, entry.Name()),
			Step: step,
		})
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Step < checkpoints[j].Step
	})

	if DebugLog != nil {
		DebugLog("found %d checkpoints under %s", len(checkpoints), outputDir)
	}

	return checkpoints, nil
}

// Paths returns the checkpoint directories in step order.
func Paths(checkpoints []Checkpoint) []string {
	paths := make([]string, 0, len(checkpoints))
	for _, c := range checkpoints {
		paths = append(paths, c.Path)
	}
	return paths
}
