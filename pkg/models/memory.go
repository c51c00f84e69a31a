package models

import "time"

// MemoryType classifies a long-term memory row.
type MemoryType string

const (
	MemoryTypeUserFact            MemoryType = "user_fact"
	MemoryTypePreference          MemoryType = "preference"
	MemoryTypeEvent               MemoryType = "event"
	MemoryTypeConversationInsight MemoryType = "conversation_insight"
	MemoryTypeExtractedKnowledge  MemoryType = "extracted_knowledge"
)

// Memory is a durable, embedded textual fact retrieved by semantic
// similarity and injected into an assistant's system prompt. AssistantID
// empty means the memory is shared across all of the user's assistants.
type Memory struct {
	ID              string     `json:"id"`
	UserID          int64      `json:"user_id"`
	AssistantID     string     `json:"assistant_id,omitempty"`
	Text            string     `json:"text"`
	Embedding       []float32  `json:"embedding,omitempty"`
	MemoryType      MemoryType `json:"memory_type"`
	Importance      int        `json:"importance"`
	SourceMessageID *int64     `json:"source_message_id,omitempty"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
}

// ClampImportance enforces the 1..10 invariant from spec §3.
func ClampImportance(v int) int {
	switch {
	case v < 1:
		return 1
	case v > 10:
		return 10
	default:
		return v
	}
}

// MemorySearchRequest is the payload sent to the RAG service's
// /api/memory/search endpoint.
type MemorySearchRequest struct {
	Query       string `json:"query"`
	UserID      int64  `json:"user_id"`
	AssistantID string `json:"assistant_id,omitempty"`
	Limit       int    `json:"limit"`
	Threshold   float64 `json:"threshold"`
}

// MemorySearchResult pairs a memory with its similarity score.
type MemorySearchResult struct {
	Memory Memory  `json:"memory"`
	Score  float64 `json:"score"`
}

// BatchJobStatus tracks a fact-extraction batch's lifecycle.
type BatchJobStatus string

const (
	BatchJobPending    BatchJobStatus = "pending"
	BatchJobProcessing BatchJobStatus = "processing"
	BatchJobCompleted  BatchJobStatus = "completed"
	BatchJobFailed     BatchJobStatus = "failed"
)

// BatchJob tracks an out-of-process fact-extraction batch submitted to an
// LLM provider's batch API.
type BatchJob struct {
	ID                string         `json:"id"`
	BatchID           string         `json:"batch_id"`
	UserID            int64          `json:"user_id"`
	Status            BatchJobStatus `json:"status"`
	Provider          string         `json:"provider"`
	Model             string         `json:"model"`
	MessagesProcessed int            `json:"messages_processed"`
	FactsExtracted    int            `json:"facts_extracted"`
	WindowStart       time.Time      `json:"window_start"`
	WindowEnd         time.Time      `json:"window_end"`
}

// ExtractedFact is one candidate row parsed out of a completed batch
// result, prior to deduplication against existing memories.
type ExtractedFact struct {
	Text       string     `json:"text"`
	MemoryType MemoryType `json:"memory_type"`
	Importance int        `json:"importance"`
}

// GlobalSettings gates the Memory Extractor (C8). Read via the REST Data
// Plane before every run.
type GlobalSettings struct {
	MemoryExtractionEnabled bool    `json:"memory_extraction_enabled"`
	Provider                string  `json:"provider"`
	Model                   string  `json:"model"`
	DedupThreshold          float64 `json:"dedup_threshold"`
}
