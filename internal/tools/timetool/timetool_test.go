package timetool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecuteDefaultsToUTC(t *testing.T) {
	tool := New("time", "current time")
	result, err := tool.Execute(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "UTC")
}

func TestExecuteRespectsRequestedTimezone(t *testing.T) {
	tool := New("time", "current time")
	input, _ := json.Marshal(Input{Timezone: "America/New_York"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Contains(t, result.Content, "America/New_York")
}

func TestExecuteRejectsUnknownTimezone(t *testing.T) {
	tool := New("time", "current time")
	input, _ := json.Marshal(Input{Timezone: "Mars/Olympus_Mons"})
	result, err := tool.Execute(context.Background(), input)
	require.NoError(t, err)
	require.True(t, result.IsError)
}
