package tasks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMetadata(t *testing.T, path string) RunMetadata {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var md RunMetadata
	require.NoError(t, json.Unmarshal(raw, &md))
	return md
}

func TestRunWithMetadataSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-metadata.json")
	err := RunWithMetadata(path, "data", "analysis.toml", func() error { return nil })
	require.NoError(t, err)

	md := readMetadata(t, path)
	assert.Equal(t, "success", md.Status)
	assert.Equal(t, "data", md.Task)
	assert.Equal(t, "analysis.toml", md.Config)
	assert.GreaterOrEqual(t, md.DurationSec, 0.0)
	assert.NotEmpty(t, md.Started)
	assert.NotEmpty(t, md.Ended)
}

func TestRunWithMetadataFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-metadata.json")
	boom := errors.New("boom")
	err := RunWithMetadata(path, "signal", "", func() error { return boom })
	assert.ErrorIs(t, err, boom)

	md := readMetadata(t, path)
	assert.Equal(t, "failed", md.Status)
	assert.Equal(t, "signal", md.Task)
}
