package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Init)
	return &buf
}

func TestSetLevel(t *testing.T) {
	buf := capture(t)

	SetLevel("warn")
	Info("hidden %d", 1)
	Warn("shown %d", 2)
	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
	assert.False(t, IsDebug())

	SetLevel("DEBUG")
	Debug("detail")
	assert.Contains(t, buf.String(), "detail")
	assert.True(t, IsDebug())

	SetLevel("chatty")
	Debug("dropped")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestSetFormat_JSON(t *testing.T) {
	buf := capture(t)
	SetFormat("json")

	WithField("cluster", "2025-10-01").Info("published")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "published", line["msg"])
	assert.Equal(t, "2025-10-01", line["cluster"])
	assert.Equal(t, "info", line["level"])
}
