package memoryextract

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladmesh/secretary/internal/jobs"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/pkg/models"
)

// Config configures one extraction run (spec §4.8).
type Config struct {
	Provider        string
	Model           string
	MinMessages     int
	ConversationCap int
	DedupThreshold  float64
}

// Extractor runs the Memory Extractor (C8) job body. It keeps
// last-run state in-process only; per spec §4.8 it is otherwise
// "stateless between runs apart from the GlobalSettings read".
type Extractor struct {
	rest     RESTClient
	rag      RESTClient
	provider BatchProvider
	logger   *observability.Logger
	metrics  *observability.Metrics
	cfg      Config
	execs    jobs.ExecutionStore

	mu      sync.Mutex
	lastRun time.Time
}

// Option configures an Extractor beyond Config.
type Option func(*Extractor)

// WithExecutionStore records one JobExecution row per run in the
// local Postgres-backed job log (internal/jobs).
func WithExecutionStore(execs jobs.ExecutionStore) Option {
	return func(e *Extractor) {
		if execs != nil {
			e.execs = execs
		}
	}
}

// New builds an Extractor.
func New(rest, rag RESTClient, provider BatchProvider, logger *observability.Logger, metrics *observability.Metrics, cfg Config, opts ...Option) *Extractor {
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = 2
	}
	if cfg.ConversationCap <= 0 {
		cfg.ConversationCap = 50
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = 0.85
	}
	e := &Extractor{rest: rest, rag: rag, provider: provider, logger: logger, metrics: metrics, cfg: cfg, execs: jobs.NoopStore{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one extraction cycle (spec §4.8 steps 1-5).
func (e *Extractor) Run(ctx context.Context) error {
	start := time.Now()
	exec, execErr := e.execs.Start(ctx, uuid.NewString(), "memory_extraction")

	err := e.run(ctx)

	if e.metrics != nil {
		e.metrics.RecordJob("memory_extraction", time.Since(start).Seconds(), err)
	}
	if execErr == nil {
		status, errMsg := "success", ""
		if err != nil {
			status, errMsg = "error", err.Error()
		}
		_ = e.execs.Finish(ctx, exec.ID, status, errMsg)
	}
	return err
}

func (e *Extractor) run(ctx context.Context) error {
	settings, err := fetchGlobalSettings(ctx, e.rest)
	if err != nil {
		return err
	}
	if !settings.MemoryExtractionEnabled {
		if e.logger != nil {
			e.logger.Info(ctx, observability.EventJobEnd, "memory extraction disabled, skipping run")
		}
		return nil
	}

	provider := settings.Provider
	if provider == "" {
		provider = e.cfg.Provider
	}
	model := settings.Model
	if model == "" {
		model = e.cfg.Model
	}
	dedupThreshold := settings.DedupThreshold
	if dedupThreshold <= 0 {
		dedupThreshold = e.cfg.DedupThreshold
	}

	// Step 2: resume any batch left open from a prior run.
	if err := e.resumeOpenBatches(ctx, dedupThreshold); err != nil && e.logger != nil {
		e.logger.Warn(ctx, observability.EventError, "resume open batch jobs failed", "error", err)
	}

	since := e.since()
	conversations, err := fetchConversationsSince(ctx, e.rest, since, e.cfg.MinMessages, e.cfg.ConversationCap)
	if err != nil {
		return err
	}

	byUser := groupByUser(conversations)
	for userID, userConvs := range byUser {
		existing, err := fetchUserMemories(ctx, e.rest, userID, 50)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn(ctx, observability.EventError, "fetch existing memories failed", "user_id", userID, "error", err)
			}
			continue
		}

		for _, conv := range userConvs {
			if err := e.submitConversation(ctx, conv, existing, provider, model); err != nil && e.logger != nil {
				e.logger.Warn(ctx, observability.EventError, "submit conversation batch failed", "user_id", userID, "error", err)
			}
		}
	}

	e.mu.Lock()
	e.lastRun = time.Now()
	e.mu.Unlock()
	return nil
}

func (e *Extractor) since() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRun
}

func (e *Extractor) submitConversation(ctx context.Context, conv models.Conversation, existing []models.Memory, provider, model string) error {
	prompt := buildExtractionPrompt(conv, existing)
	providerBatchID, err := e.provider.SubmitBatch(ctx, provider, model, prompt)
	if err != nil {
		return err
	}

	windowStart, windowEnd := conversationWindow(conv)
	job := models.BatchJob{
		ID:                uuid.NewString(),
		BatchID:           providerBatchID,
		UserID:            conv.UserID,
		Status:            models.BatchJobProcessing,
		Provider:          provider,
		Model:             model,
		MessagesProcessed: len(conv.Messages),
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
	}
	saved, err := createBatchJob(ctx, e.rest, job)
	if err != nil {
		return err
	}

	// The synchronous OpenAI adapter always has the result ready
	// immediately; a truly asynchronous provider would leave this
	// batch pending/processing for a later resume cycle to pick up.
	return e.pollAndProcess(ctx, saved, e.cfg.DedupThreshold)
}

func (e *Extractor) resumeOpenBatches(ctx context.Context, dedupThreshold float64) error {
	open, err := fetchOpenBatchJobs(ctx, e.rest)
	if err != nil {
		return err
	}
	for _, job := range open {
		if err := e.pollAndProcess(ctx, job, dedupThreshold); err != nil && e.logger != nil {
			e.logger.Warn(ctx, observability.EventError, "resume batch job failed", "batch_job_id", job.ID, "error", err)
		}
	}
	return nil
}

func (e *Extractor) pollAndProcess(ctx context.Context, job models.BatchJob, dedupThreshold float64) error {
	status, err := e.provider.GetBatchStatus(ctx, job.BatchID)
	if err != nil {
		return err
	}
	switch status {
	case models.BatchJobCompleted:
		raw, err := e.provider.GetBatchResults(ctx, job.BatchID)
		if err != nil {
			return err
		}
		return e.processResults(ctx, job, raw, dedupThreshold)
	case models.BatchJobFailed:
		job.Status = models.BatchJobFailed
		return updateBatchJob(ctx, e.rest, job)
	default:
		// Still pending/processing: leave it for the next resume cycle.
		return nil
	}
}

// processResults implements spec §4.8 step 5.
func (e *Extractor) processResults(ctx context.Context, job models.BatchJob, raw string, dedupThreshold float64) error {
	facts := parseExtractionResult(raw)

	extracted := 0
	for _, fact := range facts {
		matches, err := searchMemories(ctx, e.rag, models.MemorySearchRequest{
			Query:     fact.Text,
			UserID:    job.UserID,
			Limit:     1,
			Threshold: dedupThreshold,
		})
		if err != nil {
			if e.logger != nil {
				e.logger.Warn(ctx, observability.EventError, "memory dedup search failed", "user_id", job.UserID, "error", err)
			}
			continue
		}
		if len(matches) > 0 {
			continue // near-duplicate already recorded (spec P8)
		}

		if err := createMemory(ctx, e.rag, models.Memory{
			ID:         uuid.NewString(),
			UserID:     job.UserID,
			Text:       fact.Text,
			MemoryType: fact.MemoryType,
			Importance: fact.Importance,
		}); err != nil {
			if e.logger != nil {
				e.logger.Warn(ctx, observability.EventError, "create memory failed", "user_id", job.UserID, "error", err)
			}
			continue
		}
		extracted++
	}

	job.Status = models.BatchJobCompleted
	job.FactsExtracted = extracted
	if e.logger != nil {
		e.logger.Info(ctx, observability.EventJobEnd, "batch job processed", "batch_job_id", job.ID, "extracted", fmtFacts(extracted))
	}
	return updateBatchJob(ctx, e.rest, job)
}

func groupByUser(conversations []models.Conversation) map[int64][]models.Conversation {
	out := make(map[int64][]models.Conversation)
	for _, c := range conversations {
		out[c.UserID] = append(out[c.UserID], c)
	}
	return out
}

func conversationWindow(conv models.Conversation) (time.Time, time.Time) {
	if len(conv.Messages) == 0 {
		now := time.Now()
		return now, now
	}
	start := conv.Messages[0].Timestamp
	end := conv.Messages[0].Timestamp
	for _, m := range conv.Messages {
		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}
	return start, end
}
