package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsReminderTrigger(t *testing.T) {
	trigger := QueuePayload{
		Source: SourceCron,
		Type:   QueueTypeTool,
		Content: QueueContent{
			Metadata: &QueueMetadata{ToolName: "reminder_trigger"},
		},
	}
	require.True(t, trigger.IsReminderTrigger())

	human := QueuePayload{Source: SourceUser, Type: QueueTypeHuman}
	require.False(t, human.IsReminderTrigger())

	wrongTool := QueuePayload{
		Source:  SourceCron,
		Type:    QueueTypeTool,
		Content: QueueContent{Metadata: &QueueMetadata{ToolName: "other"}},
	}
	require.False(t, wrongTool.IsReminderTrigger())
}
