// Package factory implements the Agent Factory (C4): resolving a
// user's assigned secretary assistant and its tool set into a ready-
// to-invoke runtime instance, with an assignment cache, an instance
// cache, and a background refresh loop so neither cache serves
// arbitrarily stale data.
package factory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/restclient"
	"github.com/vladmesh/secretary/internal/sessions"
	"github.com/vladmesh/secretary/internal/toolkit"
	"github.com/vladmesh/secretary/pkg/models"
)

// Instance is a fully resolved, ready-to-run agent: its assistant
// definition and the tool registry scoped to the tools assigned to it.
type Instance struct {
	Assistant models.Assistant
	Tools     *toolkit.Registry
	BuiltAt   time.Time
}

// RESTClient is the subset of restclient.Client the factory needs,
// narrowed to an interface so it can be faked in tests without a live
// REST Data Plane.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}

// ToolBuilder constructs a toolkit.Tool from a models.Tool row, given
// the ID of the assistant the tool is being built for. Most builders
// ignore assistantID; the sub_assistant builder needs it to reject a
// tool that would delegate an assistant to itself.
type ToolBuilder func(tool models.Tool, assistantID string) (toolkit.Tool, error)

// Factory resolves (user_id) -> Instance, caching both the
// user's assignment (which assistant ID they're pointed at) and the
// constructed Instance for that assistant, refreshing both on an
// interval so a tool or assistant definition edited in the REST Data
// Plane eventually takes effect without an orchestrator restart.
type Factory struct {
	rest    RESTClient
	locker  sessions.Locker
	logger  *observability.Logger
	metrics *observability.Metrics

	builders map[models.ToolType]ToolBuilder

	refreshInterval time.Duration

	mu          sync.RWMutex
	assignments map[int64]string           // user_id -> secretary assistant_id
	instances   map[string]*Instance       // assistant_id -> instance
	lastBuilt   map[string]time.Time       // assistant_id -> last build time
}

// New constructs a Factory. Call Start to begin the background refresh
// loop; the factory is still usable without it, just never refreshes.
func New(rest RESTClient, locker sessions.Locker, logger *observability.Logger, metrics *observability.Metrics, refreshInterval time.Duration) *Factory {
	if refreshInterval <= 0 {
		refreshInterval = 10 * time.Minute
	}
	return &Factory{
		rest:            rest,
		locker:          locker,
		logger:          logger,
		metrics:         metrics,
		builders:        make(map[models.ToolType]ToolBuilder),
		refreshInterval: refreshInterval,
		assignments:     make(map[int64]string),
		instances:       make(map[string]*Instance),
		lastBuilt:       make(map[string]time.Time),
	}
}

// RegisterToolBuilder wires a ToolType to its constructor. Must be
// called for all nine spec §3 tool types before any instance is built.
func (f *Factory) RegisterToolBuilder(toolType models.ToolType, builder ToolBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[toolType] = builder
}

// Resolve returns the agent Instance a user should be routed to,
// constructing it on first use and serving the cached copy afterward.
// Concurrent resolutions for the same user serialize through the
// sessions.Locker so the factory never double-constructs.
func (f *Factory) Resolve(ctx context.Context, userID int64) (*Instance, error) {
	lockKey := strconv.FormatInt(userID, 10)
	if err := f.locker.Lock(ctx, lockKey); err != nil {
		return nil, fmt.Errorf("acquire factory lock for user %d: %w", userID, err)
	}
	defer f.locker.Unlock(lockKey)

	assistantID, err := f.resolveAssignment(ctx, userID)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	instance, ok := f.instances[assistantID]
	f.mu.RUnlock()
	if ok {
		return instance, nil
	}

	return f.buildInstance(ctx, assistantID)
}

// ResolveAssistant returns the Instance for a specific assistant ID,
// bypassing the user->secretary assignment lookup. This is how the
// sub_assistant tool delegates to a named sub-assistant (spec §4.5)
// rather than whichever secretary the calling user is assigned to.
func (f *Factory) ResolveAssistant(ctx context.Context, assistantID string) (*Instance, error) {
	if err := f.locker.Lock(ctx, "assistant:"+assistantID); err != nil {
		return nil, fmt.Errorf("acquire factory lock for assistant %s: %w", assistantID, err)
	}
	defer f.locker.Unlock("assistant:" + assistantID)

	f.mu.RLock()
	instance, ok := f.instances[assistantID]
	f.mu.RUnlock()
	if ok {
		return instance, nil
	}

	return f.buildInstance(ctx, assistantID)
}

func (f *Factory) resolveAssignment(ctx context.Context, userID int64) (string, error) {
	f.mu.RLock()
	assistantID, ok := f.assignments[userID]
	f.mu.RUnlock()
	if ok {
		return assistantID, nil
	}

	var assignment models.UserSecretaryAssignment
	err := f.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/users/{id}/secretary",
		Method:           "GET",
		Path:             fmt.Sprintf("/users/%d/secretary", userID),
		CacheKey:         fmt.Sprintf("assignment:%d", userID),
		CacheTTL:         5 * time.Minute,
	}, &assignment)
	if err != nil {
		return "", fmt.Errorf("fetch secretary assignment for user %d: %w", userID, err)
	}
	if assignment.SecretaryID == "" {
		return "", &NoSecretaryAssigned{UserID: userID}
	}

	f.mu.Lock()
	f.assignments[userID] = assignment.SecretaryID
	f.mu.Unlock()
	return assignment.SecretaryID, nil
}

func (f *Factory) buildInstance(ctx context.Context, assistantID string) (*Instance, error) {
	var assistant models.Assistant
	err := f.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/assistants/{id}",
		Method:           "GET",
		Path:             "/assistants/" + assistantID,
		CacheKey:         "assistant:" + assistantID,
		CacheTTL:         10 * time.Minute,
	}, &assistant)
	if err != nil {
		return nil, fmt.Errorf("fetch assistant %s: %w", assistantID, err)
	}

	var tools []models.Tool
	err = f.rest.Do(ctx, restclient.CallOptions{
		EndpointTemplate: "/assistants/{id}/tools",
		Method:           "GET",
		Path:             "/assistants/" + assistantID + "/tools",
		CacheKey:         "assistant_tools:" + assistantID,
		CacheTTL:         10 * time.Minute,
	}, &tools)
	if err != nil {
		return nil, fmt.Errorf("fetch tools for assistant %s: %w", assistantID, err)
	}

	registry := toolkit.NewRegistry()
	f.mu.RLock()
	builders := make(map[models.ToolType]ToolBuilder, len(f.builders))
	for k, v := range f.builders {
		builders[k] = v
	}
	f.mu.RUnlock()

	for _, toolRow := range tools {
		build, ok := builders[toolRow.ToolType]
		if !ok {
			if f.logger != nil {
				f.logger.Warn(ctx, observability.EventError, "no builder registered for tool type",
					"assistant_id", assistantID, "tool_type", string(toolRow.ToolType))
			}
			continue
		}
		tool, err := build(toolRow, assistantID)
		if err != nil {
			return nil, fmt.Errorf("build tool %s for assistant %s: %w", toolRow.Name, assistantID, err)
		}
		if err := registry.Register(tool); err != nil {
			return nil, fmt.Errorf("register tool %s for assistant %s: %w", toolRow.Name, assistantID, err)
		}
	}

	instance := &Instance{Assistant: assistant, Tools: registry, BuiltAt: time.Now()}

	f.mu.Lock()
	f.instances[assistantID] = instance
	f.lastBuilt[assistantID] = instance.BuiltAt
	f.mu.Unlock()

	return instance, nil
}

// Start runs the background refresh loop until ctx is canceled,
// rebuilding every cached assistant instance and clearing the
// assignment cache so next Resolve re-fetches from the REST Data
// Plane — spec §4.4's "background refresh every 10 minutes".
func (f *Factory) Start(ctx context.Context) {
	ticker := time.NewTicker(f.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.refreshAll(ctx)
		}
	}
}

func (f *Factory) refreshAll(ctx context.Context) {
	f.mu.Lock()
	assistantIDs := make([]string, 0, len(f.instances))
	for id := range f.instances {
		assistantIDs = append(assistantIDs, id)
	}
	f.assignments = make(map[int64]string)
	f.mu.Unlock()

	for _, id := range assistantIDs {
		if _, err := f.buildInstance(ctx, id); err != nil && f.logger != nil {
			f.logger.Error(ctx, observability.EventError, "background refresh failed", "assistant_id", id, "error", err)
		}
	}
}
