package reminders

import (
	"context"

	"github.com/vladmesh/secretary/internal/restclient"
)

// RESTClient is the subset of restclient.Client the reminder tools
// need, narrowed to an interface for the same testability reason
// internal/factory.RESTClient is narrowed.
type RESTClient interface {
	Do(ctx context.Context, opts restclient.CallOptions, out any) error
}
