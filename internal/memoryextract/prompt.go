package memoryextract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vladmesh/secretary/pkg/models"
)

const factExtractionSystemPrompt = `You extract durable long-term facts about a user from a conversation.
Respond with a JSON array only, each element shaped {"text":"...","memory_type":"user_fact|preference|event|conversation_insight|extracted_knowledge","importance":1-10}.
Do not repeat any fact already listed as known. If nothing new is worth remembering, respond with [].`

// buildExtractionPrompt renders the fixed fact-extraction prompt for
// one conversation, interpolating the conversation's messages and a
// "do not duplicate" preamble built from the user's existing memories
// (spec §4.8 step 4).
func buildExtractionPrompt(conv models.Conversation, existing []models.Memory) string {
	var sb strings.Builder
	sb.WriteString("Known facts already recorded for this user (do not repeat these):\n")
	if len(existing) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, m := range existing {
		sb.WriteString("- ")
		sb.WriteString(m.Text)
		sb.WriteString("\n")
	}

	sb.WriteString("\nConversation transcript (JSON):\n")
	type turn struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	turns := make([]turn, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		turns = append(turns, turn{Role: string(m.Role), Content: m.Content})
	}
	encoded, _ := json.Marshal(turns)
	sb.Write(encoded)
	return sb.String()
}

// parseExtractionResult parses a completed batch's raw text into
// candidate facts, per spec §4.8 step 5: ignore non-list or
// non-object entries, clamp importance to 1..10, default unknown
// memory types to user_fact.
func parseExtractionResult(raw string) []models.ExtractedFact {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var parsed []map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil
	}

	facts := make([]models.ExtractedFact, 0, len(parsed))
	for _, entry := range parsed {
		text, ok := entry["text"].(string)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		memType := normalizeMemoryType(entry["memory_type"])
		importance := 5
		switch v := entry["importance"].(type) {
		case float64:
			importance = int(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				importance = int(n)
			}
		}
		facts = append(facts, models.ExtractedFact{
			Text:       text,
			MemoryType: memType,
			Importance: models.ClampImportance(importance),
		})
	}
	return facts
}

func normalizeMemoryType(v any) models.MemoryType {
	s, _ := v.(string)
	switch models.MemoryType(s) {
	case models.MemoryTypeUserFact, models.MemoryTypePreference, models.MemoryTypeEvent,
		models.MemoryTypeConversationInsight, models.MemoryTypeExtractedKnowledge:
		return models.MemoryType(s)
	default:
		return models.MemoryTypeUserFact
	}
}

func fmtFacts(n int) string {
	if n == 1 {
		return "1 fact"
	}
	return fmt.Sprintf("%d facts", n)
}
