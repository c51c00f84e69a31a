package restclient

import (
	"errors"
	"fmt"
)

// ServiceTimeout indicates a call exceeded its connect or overall
// timeout budget (spec §4.2's "Timeout split into connect + overall").
type ServiceTimeout struct {
	Service  string
	Endpoint string
}

func (e *ServiceTimeout) Error() string {
	return fmt.Sprintf("%s %s: timed out", e.Service, e.Endpoint)
}

// ServiceUnavailable indicates the target service could not be reached
// at all: a connection failure, or a circuit breaker that has tripped
// open and is failing fast without even attempting the call (spec
// §4.2: "In open, calls fail fast with ServiceUnavailable").
type ServiceUnavailable struct {
	Service  string
	Endpoint string
	Reason   string
}

func (e *ServiceUnavailable) Error() string {
	return fmt.Sprintf("%s %s: service unavailable: %s", e.Service, e.Endpoint, e.Reason)
}

// ServiceResponseError wraps a non-2xx HTTP response. A 4xx is a
// validation failure and is never retried (spec §4.2, §7); a 5xx is
// transient and retried by Do's backoff loop until it either succeeds
// or the circuit trips open.
type ServiceResponseError struct {
	Service  string
	Endpoint string
	Status   int
	Detail   string
}

func (e *ServiceResponseError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Service, e.Endpoint, e.Status, e.Detail)
}

// retryable reports whether err should be retried within Do's backoff
// loop. Only a 5xx ServiceResponseError, or any other transport-level
// error (timeout, connection failure) is retryable; a 4xx is terminal.
func retryable(err error) bool {
	var resp *ServiceResponseError
	if errors.As(err, &resp) {
		return resp.Status >= 500
	}
	return true
}
