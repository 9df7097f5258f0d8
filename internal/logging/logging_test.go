package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLogger_EmitsJSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("component", "test"))

	log.Info("archive created", String("archive", "1700000000"), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "archive created", line["message"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "1700000000", line["archive"])
	assert.Equal(t, "boom", line["err"])
	assert.Contains(t, line["caller"], "logging_test.go")
}

func TestWriterLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")

	log.Info("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestZeroAndNopLoggersDiscard(t *testing.T) {
	var zero Logger
	assert.NotPanics(t, func() { zero.Error("nothing") })
	assert.NotPanics(t, func() { Nop().Error("nothing") })
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scheduler.log")

	log, closer, err := New(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	log.Debug("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning", zerolog.InfoLevel))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus", zerolog.InfoLevel))
}
