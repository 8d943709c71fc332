package gateway

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const maxParallelNotifications = 16

type Target struct {
	ID       string
	Endpoint string
}

// Notifier delivers best-effort notifications. Failures are logged and never
// returned, so a dead agent cannot stall the league.
type Notifier struct {
	caller Caller
	logger *slog.Logger
}

func NewNotifier(caller Caller, logger *slog.Logger) *Notifier {
	return &Notifier{caller: caller, logger: logger}
}

// Broadcast sends the payload built by payloadFor to every target concurrently
// and returns how many deliveries succeeded.
func (n *Notifier) Broadcast(ctx context.Context, targets []Target, tool string, payloadFor func(Target) any) int {
	var (
		g         errgroup.Group
		delivered atomic.Int64
	)
	g.SetLimit(maxParallelNotifications)

	for _, target := range targets {
		g.Go(func() error {
			if n.Notify(ctx, target, tool, payloadFor(target)) {
				delivered.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(delivered.Load())
}

// Notify sends a single notification and reports whether it was acknowledged.
func (n *Notifier) Notify(ctx context.Context, target Target, tool string, payload any) bool {
	if err := n.caller.Call(ctx, target.Endpoint, tool, payload, nil); err != nil {
		n.logger.Warn("notification not delivered",
			slog.String("tool", tool),
			slog.String("target", target.ID),
			slog.String("endpoint", target.Endpoint),
			slog.Any("error", err),
		)
		return false
	}
	return true
}
