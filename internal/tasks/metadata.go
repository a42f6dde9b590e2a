package tasks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// RunMetadata records the outcome of one task invocation.
type RunMetadata struct {
	Status      string  `json:"status"`
	Started     string  `json:"started"`
	Ended       string  `json:"ended"`
	DurationSec float64 `json:"duration_sec"`
	Task        string  `json:"task"`
	Config      string  `json:"config"`
}

// RunWithMetadata executes fn and writes a run-metadata record next to
// the task outputs. The record is written on failure too.
func RunWithMetadata(path, task, configPath string, fn func() error) error {
	started := time.Now().UTC()
	runErr := fn()
	ended := time.Now().UTC()

	md := RunMetadata{
		Status:      "success",
		Started:     started.Format(time.RFC3339),
		Ended:       ended.Format(time.RFC3339),
		DurationSec: ended.Sub(started).Seconds(),
		Task:        task,
		Config:      configPath,
	}
	if runErr != nil {
		md.Status = "failed"
	}
	if err := writeMetadata(path, md); err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}
	return runErr
}

func writeMetadata(path string, md RunMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "metadata: mkdir")
	}
	raw, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return errors.Wrap(err, "metadata: marshal")
	}
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "metadata: write %s", path)
}
