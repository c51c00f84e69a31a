package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDLQStreamName(t *testing.T) {
	c := &StreamClient{stream: "queue:to_secretary"}
	require.Equal(t, "queue:to_secretary:dlq", c.dlqStream())
}

func TestRetryKey(t *testing.T) {
	c := &StreamClient{}
	require.Equal(t, "msg_retry:123-0", c.retryKey("123-0"))
}

func TestIsBusyGroupErr(t *testing.T) {
	require.False(t, isBusyGroupErr(nil))
	require.True(t, isBusyGroupErr(busyGroupErr{}))
}

type busyGroupErr struct{}

func (busyGroupErr) Error() string { return "BUSYGROUP Consumer Group name already exists" }

type customRetryError struct{ msg string }

func (e customRetryError) Error() string { return e.msg }

func TestErrorTypeName(t *testing.T) {
	require.Equal(t, "", errorTypeName(nil))
	require.Equal(t, "queue.customRetryError", errorTypeName(customRetryError{msg: "boom"}))
	require.Equal(t, "*errors.errorString", errorTypeName(errors.New("plain")))
}
