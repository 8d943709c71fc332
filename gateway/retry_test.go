package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type scriptedCaller struct {
	errs  []error
	calls int
}

func (s *scriptedCaller) Call(_ context.Context, _, _ string, _ any, _ any) error {
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: time.Millisecond}
}

func TestRetryingCallerRetriesTransientFailures(t *testing.T) {
	next := &scriptedCaller{errs: []error{
		fmt.Errorf("%w: dial", ErrConnection),
		fmt.Errorf("%w: slow", ErrTimeout),
	}}
	rc := NewRetryingCaller(next, fastPolicy(), discardLogger())

	err := rc.Call(context.Background(), "http://x", "tool", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingCallerGivesUpAfterAttempts(t *testing.T) {
	timeout := fmt.Errorf("%w: slow", ErrTimeout)
	next := &scriptedCaller{errs: []error{timeout, timeout, timeout, timeout}}
	rc := NewRetryingCaller(next, fastPolicy(), discardLogger())

	err := rc.Call(context.Background(), "http://x", "tool", nil, nil)
	assert.Same(t, timeout, err)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingCallerDoesNotRetryToolErrors(t *testing.T) {
	toolErr := &ToolError{Code: "E012", Message: "AUTH_TOKEN_INVALID"}
	next := &scriptedCaller{errs: []error{toolErr}}
	rc := NewRetryingCaller(next, fastPolicy(), discardLogger())

	err := rc.Call(context.Background(), "http://x", "tool", nil, nil)
	te, ok := AsToolError(err)
	require.True(t, ok)
	assert.Same(t, toolErr, te)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingCallerToolErrorOnLastAttempt(t *testing.T) {
	toolErr := &ToolError{Code: "E006", Message: "MATCH_ALREADY_RUNNING"}
	next := &scriptedCaller{errs: []error{ErrTimeout, ErrTimeout, toolErr}}
	rc := NewRetryingCaller(next, fastPolicy(), discardLogger())

	err := rc.Call(context.Background(), "http://x", "tool", nil, nil)
	assert.Same(t, toolErr, err)
	assert.Equal(t, 3, next.calls)
}

func TestRetryingCallerStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &scriptedCaller{errs: []error{ErrConnection, ErrConnection, ErrConnection}}
	rc := NewRetryingCaller(next, RetryPolicy{Attempts: 3, Delay: time.Hour}, discardLogger())

	err := rc.Call(ctx, "http://x", "tool", nil, nil)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Equal(t, 1, next.calls)
}

func TestRetryUsesFixedDelay(t *testing.T) {
	var (
		calls  int
		delays []time.Duration
	)
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, Delay: 5 * time.Millisecond}, func() error {
		calls++
		return ErrTimeout
	}, func(_ error, d time.Duration) {
		delays = append(delays, d)
	})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, delays)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&CallError{Err: fmt.Errorf("%w: x", ErrTimeout)}))
	assert.True(t, IsRetryable(&CallError{Err: fmt.Errorf("%w: x", ErrConnection)}))
	assert.False(t, IsRetryable(&CallError{Err: &ToolError{Message: "bad"}}))
	assert.False(t, IsRetryable(errors.New("other")))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, classify(ctx, context.DeadlineExceeded, nil), ErrTimeout)
	assert.ErrorIs(t, classify(ctx, io.ErrUnexpectedEOF, nil), ErrConnection)
	assert.ErrorIs(t, classify(ctx, errors.New("dial tcp: connection refused"), nil), ErrConnection)
	assert.ErrorIs(t, classify(ctx, errors.New("handshake failed"), ErrConnection), ErrConnection)

	_, isTool := AsToolError(classify(ctx, errors.New("unknown tool"), nil))
	assert.True(t, isTool)
}
