package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.log")
	log := New(Options{Level: "debug", File: path, MaxSizeMB: 1})

	log.Info("hello from test")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(raw)
	assert.True(t, strings.Contains(line, `"msg":"hello from test"`), line)
	assert.True(t, strings.Contains(line, `"timestamp":`), line)
}

func TestNewHonoursLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	log := New(Options{Level: "warn", File: path})

	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "dropped")
	assert.Contains(t, string(raw), "kept")
}
