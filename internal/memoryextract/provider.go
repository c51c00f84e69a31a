// Package memoryextract implements the Memory Extractor (C8): a
// periodic batch job that scans recent conversations, submits a
// provider batch per conversation, and deduplicates extracted facts
// against stored memories before persisting them as new Memory rows.
// Turns what would otherwise be synchronous, in-process fact capture
// into an out-of-band, provider-batched job with resumable state.
package memoryextract

import (
	"context"

	"github.com/vladmesh/secretary/pkg/models"
)

// BatchProvider is the pluggable interface every provider adapter
// implements; spec §4.8 keeps provider specifics out of scope beyond
// this three-method contract (submit_batch, get_batch_status,
// get_batch_results).
type BatchProvider interface {
	// SubmitBatch submits one provider batch job for a single prompt
	// and returns the provider's own batch handle.
	SubmitBatch(ctx context.Context, provider, model, prompt string) (providerBatchID string, err error)
	// GetBatchStatus polls a previously submitted batch.
	GetBatchStatus(ctx context.Context, providerBatchID string) (models.BatchJobStatus, error)
	// GetBatchResults downloads a completed batch's raw text output —
	// expected to be a JSON array of {text, memory_type, importance}
	// candidate facts (spec §4.8 step 5).
	GetBatchResults(ctx context.Context, providerBatchID string) (string, error)
}
