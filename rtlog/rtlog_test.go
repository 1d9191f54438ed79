package rtlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := New(handler, logiface.LevelInformational)

	logger.Info().Str("component", "driver").Log("loop started")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "loop started", record["msg"])
	assert.Equal(t, "driver", record["component"])
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := New(handler, logiface.LevelInformational)

	logger.Debug().Log("should not appear")
	assert.Zero(t, buf.Len())

	logger.Warning().Log("should appear")
	assert.NotZero(t, buf.Len())
}

func TestOr_FallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), Or(nil))

	custom := New(nil, logiface.LevelDebug)
	assert.Same(t, custom, Or(custom))
}

func TestRaiseVerbosity_SaturatesAtTrace(t *testing.T) {
	assert.Equal(t, logiface.LevelDebug, RaiseVerbosity(logiface.LevelInformational, 1))
	assert.Equal(t, logiface.LevelTrace, RaiseVerbosity(logiface.LevelInformational, 100))
}
