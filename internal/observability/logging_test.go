package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf, Format: "json"})

	ctx := WithCorrelation(context.Background(), "corr-1", 42)
	logger.Info(ctx, EventToolCall, "calling provider", "api_key", "sk-abcdefghijklmnopqrstuvwxyz123456")

	out := buf.String()
	require.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz123456")
	require.Contains(t, out, "[REDACTED]")

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &record))
	require.Equal(t, "corr-1", record["correlation_id"])
	require.Equal(t, string(EventToolCall), record["event_type"])
}

func TestLogLevelFromString(t *testing.T) {
	require.Equal(t, LogLevelFromString("debug").String(), "DEBUG")
	require.Equal(t, LogLevelFromString("bogus").String(), "INFO")
}
