// Package calendar implements the calendar tool type (spec §4.5):
// create or list events against an external calendar service, with an
// "invalid grant" recovery path that requests a fresh OAuth URL rather
// than failing the run. Grounded on the original Python
// assistant_service/src/tools/calendar_tool.py's BaseGoogleCalendarTool
// (auth check before every call, _handle_http_status_error's
// invalid_grant detection), reshaped into a single tool handling both
// actions since spec §4.5 lists `calendar (create/list)` as one
// tool_type row, not two.
package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/toolkit"
)

// RESTClient is the subset of restclient.Client the calendar tool
// needs, narrowed for testability without a live calendar service.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

// Tool implements the calendar tool type.
type Tool struct {
	name        string
	description string
	rest        RESTClient
}

// New builds the calendar handler.
func New(name, description string, rest RESTClient) *Tool {
	return &Tool{name: name, description: description, rest: rest}
}

func (t *Tool) Name() string        { return t.name }
func (t *Tool) Description() string { return t.description }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {"type": "string", "enum": ["create", "list"], "description": "Whether to create a new event or list existing ones"},
			"title": {"type": "string", "description": "Event title (required for create)"},
			"start_time": {"type": "string", "description": "Event start time in ISO 8601, e.g. 2026-08-01T15:00:00+00:00 (required for create)"},
			"end_time": {"type": "string", "description": "Event end time in ISO 8601 (required for create)"},
			"description": {"type": "string", "description": "Optional event description"},
			"location": {"type": "string", "description": "Optional event location"},
			"time_min": {"type": "string", "description": "Lower bound for listing events, ISO 8601 (optional)"},
			"time_max": {"type": "string", "description": "Upper bound for listing events, ISO 8601 (optional)"}
		},
		"required": ["action"]
	}`)
}

// Input is the parsed tool call payload.
type Input struct {
	Action      string `json:"action"`
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
	Location    string `json:"location"`
	TimeMin     string `json:"time_min"`
	TimeMax     string `json:"time_max"`
}

type createEventRequest struct {
	Title       string `json:"title"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

type calendarEvent struct {
	Summary string `json:"summary"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// tokenResponse is the stored OAuth credential C2 returns for a user,
// shaped to feed straight into an oauth2.Token for its Valid() check.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

// Execute creates or lists calendar events, depending on Action.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*toolkit.Result, error) {
	var input Input
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}

	inv := toolkit.InvocationFromContext(ctx)

	switch input.Action {
	case "create":
		return t.create(ctx, inv, input)
	case "list":
		return t.list(ctx, inv, input)
	default:
		return &toolkit.Result{Content: "action must be 'create' or 'list'", IsError: true}, nil
	}
}

func (t *Tool) create(ctx context.Context, inv toolkit.Invocation, input Input) (*toolkit.Result, error) {
	if input.Title == "" || input.StartTime == "" || input.EndTime == "" {
		return &toolkit.Result{Content: "title, start_time, and end_time are required to create an event", IsError: true}, nil
	}

	if authURL := t.checkAuth(ctx, inv); authURL != "" {
		return &toolkit.Result{Content: fmt.Sprintf("Please authorize calendar access before creating an event: %s", authURL)}, nil
	}

	var created calendarEvent
	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/calendar/events/{user_id}",
		Method:           "POST",
		Path:             fmt.Sprintf("/calendar/events/%d", inv.UserID),
		Body: createEventRequest{
			Title:       input.Title,
			StartTime:   input.StartTime,
			EndTime:     input.EndTime,
			Description: input.Description,
			Location:    input.Location,
		},
	}, &created)
	if err != nil {
		return t.recoverFromInvalidGrant(ctx, inv, err, "create the event")
	}

	summary := created.Summary
	if summary == "" {
		summary = input.Title
	}
	return &toolkit.Result{Content: fmt.Sprintf("Event '%s' created.", summary)}, nil
}

func (t *Tool) list(ctx context.Context, inv toolkit.Invocation, input Input) (*toolkit.Result, error) {
	if authURL := t.checkAuth(ctx, inv); authURL != "" {
		return &toolkit.Result{Content: fmt.Sprintf("Please authorize calendar access before listing events: %s", authURL)}, nil
	}

	path := fmt.Sprintf("/calendar/events/%d", inv.UserID)
	var query []string
	if input.TimeMin != "" {
		query = append(query, "time_min="+input.TimeMin)
	}
	if input.TimeMax != "" {
		query = append(query, "time_max="+input.TimeMax)
	}
	if len(query) > 0 {
		path += "?" + strings.Join(query, "&")
	}

	var events []calendarEvent
	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/calendar/events/{user_id}",
		Method:           "GET",
		Path:             path,
	}, &events)
	if err != nil {
		return t.recoverFromInvalidGrant(ctx, inv, err, "list events")
	}

	if len(events) == 0 {
		return &toolkit.Result{Content: "You have no events in that period."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your events:\n\n")
	for _, ev := range events {
		start := formatEventTime(ev.Start)
		end := formatEventTime(ev.End)
		if end != "" {
			sb.WriteString(fmt.Sprintf("- %s (%s - %s)\n", ev.Summary, start, end))
		} else {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", ev.Summary, start))
		}
	}
	return &toolkit.Result{Content: sb.String()}, nil
}

func formatEventTime(s string) string {
	if s == "" {
		return ""
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return parsed.Format("2006-01-02 15:04")
	}
	return s
}

// checkAuth mirrors the original's _check_auth: fetch the stored OAuth
// token and, if it is missing or expired per oauth2.Token.Valid(),
// request a fresh authorization URL and return it so the caller can
// prompt for re-authorization before attempting the calendar call at
// all. Returns "" when the existing token is still good. A failure to
// fetch either the token or the auth URL is treated as "no token" —
// the action still goes ahead and will hit recoverFromInvalidGrant's
// reactive path if the upstream genuinely rejects it.
func (t *Tool) checkAuth(ctx context.Context, inv toolkit.Invocation) string {
	var tok tokenResponse
	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/calendar/token/{user_id}",
		Method:           "GET",
		Path:             fmt.Sprintf("/calendar/token/%d", inv.UserID),
	}, &tok)

	if err == nil {
		token := &oauth2.Token{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			Expiry:       tok.Expiry,
		}
		if token.Valid() {
			return ""
		}
	}

	var auth authURLResponse
	if err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/calendar/auth/url/{user_id}",
		Method:           "GET",
		Path:             fmt.Sprintf("/calendar/auth/url/%d", inv.UserID),
	}, &auth); err != nil {
		return ""
	}
	return auth.AuthURL
}

// recoverFromInvalidGrant matches the original's _handle_http_status_error:
// a 500 response whose body mentions "invalid_grant" means the stored
// OAuth token is dead. Request a fresh authorization URL and hand it
// back as the tool's result instead of surfacing the raw error.
func (t *Tool) recoverFromInvalidGrant(ctx context.Context, inv toolkit.Invocation, origErr error, action string) (*toolkit.Result, error) {
	var respErr *restclient.ServiceResponseError
	if !errors.As(origErr, &respErr) || respErr.Status != http.StatusInternalServerError || !strings.Contains(respErr.Detail, "invalid_grant") {
		return nil, fmt.Errorf("calendar %s: %w", action, origErr)
	}

	var auth authURLResponse
	err := t.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/calendar/auth/url/{user_id}",
		Method:           "GET",
		Path:             fmt.Sprintf("/calendar/auth/url/%d", inv.UserID),
	}, &auth)
	if err != nil || auth.AuthURL == "" {
		return &toolkit.Result{
			Content: "Your calendar authorization has expired and a new link could not be obtained. Please reconnect your calendar or contact an administrator.",
			IsError: true,
		}, nil
	}

	return &toolkit.Result{
		Content: fmt.Sprintf("Your calendar authorization has expired. Please re-authorize to %s: %s", action, auth.AuthURL),
	}, nil
}
