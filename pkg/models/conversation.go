package models

// Conversation is a window of recent messages for one (user_id,
// assistant_id) pair, as returned by the REST Data Plane's recent-
// conversations listing consumed by the Memory Extractor (C8). It is
// not a persisted entity of its own — every Message inside it already
// belongs to that pair's canonical history (spec §3).
type Conversation struct {
	UserID      int64     `json:"user_id"`
	AssistantID string    `json:"assistant_id"`
	Messages    []Message `json:"messages"`
}
