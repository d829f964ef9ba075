package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace":    TRACE,
		"DEBUG":    DEBUG,
		" info ":   INFO,
		"warning":  WARN,
		"warn":     WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"verbose":  INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "CRITICAL", CRITICAL.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, WARN)

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)
	log.Named("runner").Error("failed: %s", "boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Contains(t, out, "[ERROR] runner: failed: boom")
	assert.False(t, log.Enabled(DEBUG))

	log.SetMinLevel(TRACE)
	assert.True(t, log.Enabled(TRACE))
	log.Trace("now visible")
	assert.Contains(t, buf.String(), "[TRACE] now visible")
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := NewFileLogger(path, DEBUG, false)
	require.NoError(t, err)

	log.Debug("tick %d", 7)
	log.Named("can").Critical("bus off")
	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[DEBUG] tick 7")
	assert.Contains(t, lines[1], "[CRITICAL] can: bus off")
}
