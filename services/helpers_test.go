package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCaller records every call and delegates to fn when set.
type fakeCaller struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, endpoint, tool string, args any, out any) error
}

func newFakeCaller(fn func(ctx context.Context, endpoint, tool string, args any, out any) error) *fakeCaller {
	return &fakeCaller{calls: make(map[string]int), fn: fn}
}

func (f *fakeCaller) Call(ctx context.Context, endpoint, tool string, args any, out any) error {
	f.mu.Lock()
	f.calls[tool]++
	f.mu.Unlock()
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, endpoint, tool, args, out)
}

func (f *fakeCaller) count(tool string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tool]
}

func testRegistry(t *testing.T, open bool) RegistryService {
	t.Helper()
	r := NewRegistryService(RegistryConfig{
		LeagueID:                "league_test",
		GameType:                "even_odd",
		RequiredProtocolVersion: "2.1.0",
	}, nil, discardLogger())
	if !open {
		r.CloseRegistration()
	}
	return r
}

func registerPlayers(t *testing.T, r RegistryService, n int) []*models.RegistrationResponse {
	t.Helper()
	out := make([]*models.RegistrationResponse, 0, n)
	for i := 0; i < n; i++ {
		resp, err := r.RegisterPlayer(context.Background(), &models.PlayerMeta{
			DisplayName:     "agent",
			ProtocolVersion: "2.1.0",
			GameTypes:       []string{"even_odd"},
			ContactEndpoint: "http://player.test/mcp",
		})
		require.NoError(t, err)
		require.Equal(t, models.RegistrationAccepted, resp.Status)
		out = append(out, resp)
	}
	return out
}

func registerReferee(t *testing.T, r RegistryService, endpoint string) *models.RegistrationResponse {
	t.Helper()
	resp, err := r.RegisterReferee(context.Background(), &models.RefereeMeta{
		DisplayName:     "ref",
		Version:         "1.0.0",
		GameTypes:       []string{"even_odd"},
		ContactEndpoint: endpoint,
	})
	require.NoError(t, err)
	return resp
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
