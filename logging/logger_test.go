package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(createLogger(&buf, "production"))

	l.Info("upload finished", "object_key", "uploads/1_a.zip")
	l.Debug("dropped at info level")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "upload finished", line["msg"])
	require.Equal(t, "uploads/1_a.zip", line["object_key"])
}

func TestDevLoggerKeepsDebugAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(createLogger(&buf, "dev")).With("deck_id", "d1")

	l.Debug("slide appended", "slide_id", "s1")

	require.Contains(t, buf.String(), "slide appended")
	require.Contains(t, buf.String(), "deck_id=d1")
	require.Contains(t, buf.String(), "slide_id=s1")
}
