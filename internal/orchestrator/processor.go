package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/queue"
)

// InputQueue is the subset of queue.StreamClient the orchestrator
// consumes from.
type InputQueue interface {
	Read(ctx context.Context) (*queue.Message, error)
	Ack(ctx context.Context, messageID string) error
	Fail(ctx context.Context, msg *queue.Message, cause error) error
}

// OutputQueue is the subset of queue.StreamClient the orchestrator
// publishes replies to.
type OutputQueue interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// MalformedPayloadError marks a payload the orchestrator could not
// even parse or classify — spec §4.7's failure policy acks these
// immediately (with an error reply) instead of retrying, since no
// amount of redelivery will fix malformed JSON.
type MalformedPayloadError struct {
	Err error
}

func (e *MalformedPayloadError) Error() string { return "malformed payload: " + e.Err.Error() }
func (e *MalformedPayloadError) Unwrap() error  { return e.Err }

// Processor drains InputQueue, classifies and dispatches each
// envelope to the agent graph via Runner, and publishes the result to
// OutputQueue — the Orchestrator's (C7) consume loop.
type Processor struct {
	Input   InputQueue
	Output  OutputQueue
	Runner  *Runner
	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Run drains Input until ctx is canceled, processing one message at a
// time. A blocked Read with no messages (queue.ErrNoMessages) is not
// an error; the caller's StreamClient.Read already blocks for its
// configured timeout, so this loop simply retries.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := p.Input.Read(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrNoMessages) {
				continue
			}
			return fmt.Errorf("read from input queue: %w", err)
		}

		p.handle(ctx, msg)
	}
}

// handle processes exactly one message, applying spec §4.7's failure
// policy: a malformed envelope is acked with an error reply and never
// retried; any other failure is left for the queue's own retry/DLQ
// bookkeeping via Fail.
func (p *Processor) handle(ctx context.Context, msg *queue.Message) {
	if msg.Duplicate {
		if ackErr := p.Input.Ack(ctx, msg.ID); ackErr != nil && p.Logger != nil {
			p.Logger.Error(ctx, observability.EventError, "ack failed for duplicate delivery", "message_id", msg.ID, "error", ackErr)
		}
		return
	}

	start := time.Now()
	env, err := p.parse(msg.Payload)
	if err != nil {
		p.replyError(ctx, 0, err)
		if ackErr := p.Input.Ack(ctx, msg.ID); ackErr != nil && p.Logger != nil {
			p.Logger.Error(ctx, observability.EventError, "ack failed for malformed payload", "message_id", msg.ID, "error", ackErr)
		}
		return
	}

	response, err := p.dispatch(ctx, env)
	if err != nil {
		var malformed *MalformedPayloadError
		if errors.As(err, &malformed) {
			p.replyError(ctx, env.UserID, err)
			if ackErr := p.Input.Ack(ctx, msg.ID); ackErr != nil && p.Logger != nil {
				p.Logger.Error(ctx, observability.EventError, "ack failed for malformed envelope", "message_id", msg.ID, "error", ackErr)
			}
			return
		}

		msg.UserID = env.UserID
		if failErr := p.Input.Fail(ctx, msg, err); failErr != nil && p.Logger != nil {
			p.Logger.Error(ctx, observability.EventError, "fail bookkeeping errored", "message_id", msg.ID, "error", failErr)
		}
		return
	}

	out := p.buildSuccess(env, response)
	if _, err := p.Output.Publish(ctx, out); err != nil && p.Logger != nil {
		p.Logger.Error(ctx, observability.EventError, "publish reply failed", "message_id", msg.ID, "error", err)
	}

	if ackErr := p.Input.Ack(ctx, msg.ID); ackErr != nil && p.Logger != nil {
		p.Logger.Error(ctx, observability.EventError, "ack failed after success", "message_id", msg.ID, "error", ackErr)
	}

	if p.Metrics != nil {
		p.Metrics.RecordJob("orchestrator:dispatch", time.Since(start).Seconds(), nil)
	}
}

func (p *Processor) parse(payload json.RawMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, &MalformedPayloadError{Err: err}
	}
	if env.UserID == 0 {
		return Envelope{}, &MalformedPayloadError{Err: errors.New("missing user_id")}
	}
	return env, nil
}

// dispatch classifies the envelope (spec §4.7) and runs it through the
// agent graph, returning the final reply text.
func (p *Processor) dispatch(ctx context.Context, env Envelope) (string, error) {
	if env.isReminderTrigger() {
		assistantID := env.Content.Metadata.AssistantID
		if assistantID == "" {
			return "", &MalformedPayloadError{Err: errors.New("reminder trigger missing metadata.assistant_id")}
		}
		return p.Runner.ProcessTrigger(ctx, assistantID, env.UserID, env.Content.Message)
	}
	return p.Runner.ProcessForUser(ctx, env.UserID, env.Content.Message)
}

func (p *Processor) buildSuccess(env Envelope, response string) OutputEnvelope {
	if env.isReminderTrigger() {
		meta := env.Content.Metadata
		return OutputEnvelope{
			UserID:   env.UserID,
			Status:   OutputStatusSuccess,
			Response: response,
			Type:     "assistant",
			Source:   "reminder_trigger",
			Metadata: &meta,
		}
	}
	return OutputEnvelope{
		UserID:   env.UserID,
		Status:   OutputStatusSuccess,
		Response: response,
		Type:     "assistant",
	}
}

func (p *Processor) replyError(ctx context.Context, userID int64, cause error) {
	out := OutputEnvelope{UserID: userID, Status: OutputStatusError, Response: cause.Error(), Type: "error"}
	if _, err := p.Output.Publish(ctx, out); err != nil && p.Logger != nil {
		p.Logger.Error(ctx, observability.EventError, "publish error reply failed", "error", err)
	}
}
