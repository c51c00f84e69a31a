// Package observability provides the ambient structured logging and
// metrics stack shared by every service binary (C9).
package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Logger is a structured logger with automatic correlation-id/user-id
// propagation and secret redaction.
type Logger struct {
	logger  *slog.Logger
	config  LogConfig
	redacts []*regexp.Regexp
}

// LogConfig configures the logging behavior.
type LogConfig struct {
	Level          string
	Format         string // "json" or "text"
	Output         io.Writer
	AddSource      bool
	RedactPatterns []string
}

// ContextKey is the type for context keys used by the logger.
type ContextKey string

const (
	CorrelationIDKey ContextKey = "correlation_id"
	UserIDKey        ContextKey = "user_id"
	ServiceKey       ContextKey = "service"
)

// EventType is the closed set of canonical event kinds every log line
// must carry, per spec §4.9.
type EventType string

const (
	EventRequestIn  EventType = "request_in"
	EventRequestOut EventType = "request_out"
	EventQueuePush  EventType = "queue_push"
	EventQueuePop   EventType = "queue_pop"
	EventJobStart   EventType = "job_start"
	EventJobEnd     EventType = "job_end"
	EventLLMCall    EventType = "llm_call"
	EventToolCall   EventType = "tool_call"
	EventError      EventType = "error"
	EventInfo       EventType = "info"
)

// DefaultRedactPatterns covers common secret shapes: API keys, bearer
// tokens, passwords, OpenAI-style keys, and JWTs.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["\']?([^\s"']{8,})["\']?`,
	`sk-[a-zA-Z0-9]{20,}`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	`(?i)(secret|key|token)[\s:=]+["\']?([a-fA-F0-9]{32,})["\']?`,
}

// NewLogger builds a Logger from config, defaulting Output to stdout,
// Level to info, and Format to json.
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Level == "" {
		config.Level = "info"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{Level: LogLevelFromString(config.Level), AddSource: config.AddSource}
	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	redacts := make([]*regexp.Regexp, 0, len(DefaultRedactPatterns)+len(config.RedactPatterns))
	for _, pattern := range append(DefaultRedactPatterns, config.RedactPatterns...) {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), config: config, redacts: redacts}
}

// WithCorrelation returns a context carrying correlation_id and user_id,
// set on receive and cleared on completion by the caller (orchestrator
// input-consumer loop, REST client, scheduler dispatch).
func WithCorrelation(ctx context.Context, correlationID string, userID int64) context.Context {
	ctx = context.WithValue(ctx, CorrelationIDKey, correlationID)
	if userID != 0 {
		ctx = context.WithValue(ctx, UserIDKey, userID)
	}
	return ctx
}

// CorrelationID reads the correlation id from ctx, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey).(string)
	return id
}

func (l *Logger) Debug(ctx context.Context, event EventType, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, event, msg, args...)
}

func (l *Logger) Info(ctx context.Context, event EventType, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, event, msg, args...)
}

func (l *Logger) Warn(ctx context.Context, event EventType, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, event, msg, args...)
}

func (l *Logger) Error(ctx context.Context, event EventType, msg string, args ...any) {
	l.log(ctx, slog.LevelError, event, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, event EventType, msg string, args ...any) {
	msg = l.redactString(msg)

	redactedArgs := make([]any, len(args))
	for i, arg := range args {
		redactedArgs[i] = l.redactValue(arg)
	}

	attrs := make([]any, 0, len(redactedArgs)+6)
	attrs = append(attrs, "event_type", string(event))
	if cid := CorrelationID(ctx); cid != "" {
		attrs = append(attrs, "correlation_id", cid)
	}
	if uid, ok := ctx.Value(UserIDKey).(int64); ok && uid != 0 {
		attrs = append(attrs, "user_id", uid)
	}
	if svc, ok := ctx.Value(ServiceKey).(string); ok && svc != "" {
		attrs = append(attrs, "service", svc)
	}
	attrs = append(attrs, redactedArgs...)

	l.logger.Log(ctx, level, msg, attrs...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	case []byte:
		return l.redactString(string(val))
	case map[string]any:
		return l.redactMap(val)
	default:
		if b, err := json.Marshal(v); err == nil {
			return l.redactString(string(b))
		}
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (l *Logger) redactMap(m map[string]any) map[string]any {
	sensitive := map[string]bool{
		"password": true, "passwd": true, "secret": true, "token": true,
		"api_key": true, "apikey": true, "authorization": true,
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		if sensitive[strings.ToLower(strings.ReplaceAll(k, "-", "_"))] {
			result[k] = "[REDACTED]"
		} else {
			result[k] = l.redactValue(v)
		}
	}
	return result
}

// WithFields returns a derived logger with static fields attached to every
// record it emits (e.g. "service", "orchestrator").
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), config: l.config, redacts: l.redacts}
}

// LogLevelFromString converts a string to a slog.Level, defaulting to info.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
