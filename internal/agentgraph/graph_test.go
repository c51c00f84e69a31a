package agentgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStep struct {
	name string
	err  error
	ran  bool
}

func (s *fakeStep) Name() string { return s.name }
func (s *fakeStep) Run(ctx context.Context, st *State) error {
	s.ran = true
	return s.err
}

func TestGraphRunAllStepsOnSuccess(t *testing.T) {
	first := &fakeStep{name: "first"}
	second := &fakeStep{name: "second"}
	finalizer := &fakeStep{name: "finalizer"}

	g := New([]Step{first, second}, finalizer, nil, nil)
	st := &State{}

	require.NoError(t, g.Run(context.Background(), st))
	require.True(t, first.ran)
	require.True(t, second.ran)
	require.True(t, finalizer.ran)
	require.False(t, st.ErrorOccurred)
}

func TestGraphRunAlwaysRunsFinalizerOnFailure(t *testing.T) {
	failing := errors.New("boom")
	first := &fakeStep{name: "first"}
	second := &fakeStep{name: "second", err: failing}
	third := &fakeStep{name: "third"}
	finalizer := &fakeStep{name: "finalizer"}

	g := New([]Step{first, second, third}, finalizer, nil, nil)
	st := &State{}

	err := g.Run(context.Background(), st)
	require.Error(t, err)
	require.True(t, first.ran)
	require.True(t, second.ran)
	require.False(t, third.ran, "steps after the failing one must be skipped")
	require.True(t, finalizer.ran, "finalizer must always run")
	require.True(t, st.ErrorOccurred)
}

func TestGraphRunReturnsOriginalErrorEvenIfFinalizerFails(t *testing.T) {
	stepErr := errors.New("step failed")
	finalizerErr := errors.New("finalizer failed too")
	first := &fakeStep{name: "first", err: stepErr}
	finalizer := &fakeStep{name: "finalizer", err: finalizerErr}

	g := New([]Step{first}, finalizer, nil, nil)
	st := &State{}

	err := g.Run(context.Background(), st)
	require.ErrorIs(t, err, stepErr)
	require.True(t, finalizer.ran)
}
