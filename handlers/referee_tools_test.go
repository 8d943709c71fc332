package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/services"
)

func newRefereeTools(t *testing.T, caller gateway.Caller) (*RefereeToolsHandler, *services.MatchRunner) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	coordinator := services.NewMatchCoordinator(services.CoordinatorConfig{
		ManagerEndpoint: "http://manager.test/mcp",
		DefaultGameType: games.GameTypeEvenOdd,
		ChoiceAttempts:  1,
		Points:          games.DefaultPoints(),
	}, games.NewRegistry(games.NewEvenOdd()), caller, caller, discardLogger())
	coordinator.SetIdentity(services.RefereeIdentity{RefereeID: "REF01", AuthToken: "tok_ref", LeagueID: "league_test"})

	runner := services.NewMatchRunner(ctx, coordinator, 2, discardLogger())
	t.Cleanup(func() {
		cancel()
		runner.Wait()
	})
	return NewRefereeToolsHandler(runner, coordinator, discardLogger()), runner
}

func startRequest(matchID string) models.StartMatchRequest {
	return models.StartMatchRequest{
		ConversationID:  "conv-" + matchID,
		LeagueID:        "league_test",
		RoundID:         1,
		MatchID:         matchID,
		GameType:        games.GameTypeEvenOdd,
		PlayerA:         "P01",
		PlayerB:         "P02",
		PlayerAEndpoint: "http://p01.test/mcp",
		PlayerBEndpoint: "http://p02.test/mcp",
	}
}

func TestStartMatchTool(t *testing.T) {
	// Приглашения висят, пока тест не завершится, так что матч остаётся активным.
	caller := gateway.CallerFunc(func(ctx context.Context, _, _ string, _ any, _ any) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h, runner := newRefereeTools(t, caller)

	out, err := h.StartMatch(context.Background(), startRequest("R1M1"))
	require.NoError(t, err)
	assert.Equal(t, &models.StartMatchResponse{Status: "STARTED", MatchID: "R1M1"}, out)
	assert.Contains(t, runner.Active(), "R1M1")

	_, err = h.StartMatch(context.Background(), startRequest("R1M1"))
	le := requireLeagueError(t, err)
	assert.Equal(t, CodeDuplicateReport, le.ErrorCode)
	assert.Equal(t, "MATCH_ALREADY_RUNNING", le.ErrorDescription)
	assert.Equal(t, "referee:REF01", le.Sender)
	assert.Equal(t, "R1M1", le.Context["match_id"])
	assert.Equal(t, "conv-R1M1", le.ConversationID)
}

func TestStartMatchToolRejectsBadRequests(t *testing.T) {
	h, runner := newRefereeTools(t, gateway.CallerFunc(func(context.Context, string, string, any, any) error { return nil }))

	req := startRequest("R1M2")
	req.PlayerBEndpoint = ""
	_, err := h.StartMatch(context.Background(), req)
	le := requireLeagueError(t, err)
	assert.Equal(t, CodeMissingField, le.ErrorCode)
	assert.Equal(t, "player_B_endpoint", le.Context["missing_field"])

	req = startRequest("R1M2")
	req.GameType = "chess"
	_, err = h.StartMatch(context.Background(), req)
	le = requireLeagueError(t, err)
	assert.Equal(t, CodeRegistrationError, le.ErrorCode)
	assert.Equal(t, "GAME_TYPE_NOT_SUPPORTED", le.ErrorDescription)

	assert.Empty(t, runner.Active())
}

func TestRefereeNotifyLeagueCompleted(t *testing.T) {
	h, _ := newRefereeTools(t, gateway.CallerFunc(func(context.Context, string, string, any, any) error { return nil }))

	out, err := h.NotifyLeagueCompleted(context.Background(), models.LeagueCompleted{
		LeagueID: "league_test",
		Champion: &models.Champion{PlayerID: "P01", Points: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, models.NewAck(), out)
}
