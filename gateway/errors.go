package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/Dosada05/agent-league/models"
)

// Retryable failure classes. Everything else surfaces immediately.
var (
	ErrTimeout    = errors.New("remote call timed out")
	ErrConnection = errors.New("remote endpoint unreachable")
)

// ToolError is a failure reported by the remote tool itself.
type ToolError struct {
	Code    string
	Message string
	Payload *models.LeagueError
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error %s: %s", e.Code, e.Message)
	}
	return "tool error: " + e.Message
}

// CallError carries the endpoint and tool of a failed call.
type CallError struct {
	Endpoint string
	Tool     string
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call %s at %s: %v", e.Tool, e.Endpoint, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection)
}

// AsToolError returns the remote tool error wrapped in err, if any.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

var connectionHints = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"broken pipe",
	"server closed",
	"EOF",
}

// classify maps a transport failure onto the error taxonomy. fallback is used
// when nothing more specific matches; a nil fallback yields a ToolError.
func classify(ctx context.Context, err error, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	// The SDK does not always wrap the underlying transport error.
	msg := err.Error()
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "Client.Timeout") {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	for _, hint := range connectionHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %w", ErrConnection, err)
		}
	}

	if fallback != nil {
		return fmt.Errorf("%w: %w", fallback, err)
	}
	return &ToolError{Message: msg}
}
