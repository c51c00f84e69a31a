package restclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vladmesh/secretary/internal/observability"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	logger := observability.NewLogger(observability.LogConfig{})
	metrics := observability.NewMetrics()
	client := New("rest-data-plane", srv.URL, srv.Client(), logger, metrics)
	return client, srv
}

func TestClientDoSuccess(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 42}`))
	})
	defer srv.Close()

	var out struct {
		ID int64 `json:"id"`
	}
	err := client.Do(context.Background(), CallOptions{
		EndpointTemplate: "/users/{id}",
		Method:           http.MethodGet,
		Path:             "/users/42",
	}, &out)

	require.NoError(t, err)
	require.Equal(t, int64(42), out.ID)
}

func TestClientDoRetriesThenFails(t *testing.T) {
	calls := 0
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()
	client.MaxRetries = 2

	err := client.Do(context.Background(), CallOptions{
		EndpointTemplate: "/users/{id}",
		Method:           http.MethodGet,
		Path:             "/users/42",
	}, nil)

	require.Error(t, err)
	require.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestClientDoOpensCircuitAfterFailures(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()
	client.MaxRetries = 0

	for i := 0; i < 6; i++ {
		_ = client.Do(context.Background(), CallOptions{
			EndpointTemplate: "/flaky",
			Method:           http.MethodGet,
			Path:             "/flaky",
		}, nil)
	}

	breaker := client.Breakers.Get("rest-data-plane:/flaky")
	require.Equal(t, "open", breaker.State())
}

func TestClientDoDoesNotRetryOn4xx(t *testing.T) {
	calls := 0
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail": "bad input"}`))
	})
	defer srv.Close()
	client.MaxRetries = 2

	err := client.Do(context.Background(), CallOptions{
		EndpointTemplate: "/users/{id}",
		Method:           http.MethodGet,
		Path:             "/users/42",
	}, nil)

	require.Error(t, err)
	require.Equal(t, 1, calls, "a 4xx must not be retried")

	var respErr *ServiceResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusBadRequest, respErr.Status)
	require.Contains(t, respErr.Detail, "bad input")
}

func TestClientDoWrapsServerErrorAsServiceResponseError(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()
	client.MaxRetries = 0

	err := client.Do(context.Background(), CallOptions{
		EndpointTemplate: "/users/{id}",
		Method:           http.MethodGet,
		Path:             "/users/42",
	}, nil)

	var respErr *ServiceResponseError
	require.True(t, errors.As(err, &respErr))
	require.Equal(t, http.StatusInternalServerError, respErr.Status)
}

func TestClientDoSurfacesServiceUnavailableWhenCircuitOpen(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()
	client.MaxRetries = 0

	for i := 0; i < 6; i++ {
		_ = client.Do(context.Background(), CallOptions{
			EndpointTemplate: "/flaky2",
			Method:           http.MethodGet,
			Path:             "/flaky2",
		}, nil)
	}

	err := client.Do(context.Background(), CallOptions{
		EndpointTemplate: "/flaky2",
		Method:           http.MethodGet,
		Path:             "/flaky2",
	}, nil)

	var unavailable *ServiceUnavailable
	require.True(t, errors.As(err, &unavailable))
}

func TestRetryableClassifiesStatusCodes(t *testing.T) {
	require.True(t, retryable(&ServiceResponseError{Status: 500}))
	require.True(t, retryable(&ServiceResponseError{Status: 503}))
	require.False(t, retryable(&ServiceResponseError{Status: 400}))
	require.False(t, retryable(&ServiceResponseError{Status: 404}))
	require.True(t, retryable(errors.New("connection refused")))
}

func TestCachePrefix(t *testing.T) {
	require.Equal(t, "assistant", cachePrefix("assistant:123"))
	require.Equal(t, "flat", cachePrefix("flat"))
}
