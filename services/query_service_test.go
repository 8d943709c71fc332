package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/models"
)

type queryFixture struct {
	league   *leagueService
	queries  QueryService
	players  []*models.RegistrationResponse
	referees []*models.RegistrationResponse
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	registry := testRegistry(t, true)
	players := registerPlayers(t, registry, 4)
	refs := []*models.RegistrationResponse{
		registerReferee(t, registry, "http://ref1.test/mcp"),
		registerReferee(t, registry, "http://ref2.test/mcp"),
	}
	league := newTestLeague(registry, newFakeCaller(nil))
	require.NoError(t, league.closeRegistration(context.Background()))
	return &queryFixture{
		league:   league,
		queries:  NewQueryService(league, registry, discardLogger()),
		players:  players,
		referees: refs,
	}
}

func (f *queryFixture) ask(t *testing.T, player int, queryType string, params map[string]any) *models.LeagueQueryResponse {
	t.Helper()
	p := f.players[player]
	resp, err := f.queries.HandleQuery(context.Background(), &models.LeagueQuery{
		Sender:         models.FormatSender(models.RolePlayer, p.PlayerID),
		AuthToken:      p.AuthToken,
		ConversationID: "conv-1",
		QueryType:      queryType,
		QueryParams:    params,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MsgLeagueQueryResponse, resp.MessageType)
	assert.Equal(t, "conv-1", resp.ConversationID)
	assert.Equal(t, queryType, resp.QueryType)
	return resp
}

func (f *queryFixture) finish(t *testing.T, matchID, winner, loser string) {
	t.Helper()
	ref := f.referees[0]
	require.True(t, f.league.markDispatched(matchID, ref.RefereeID))
	_, err := f.league.ReportMatchResult(context.Background(),
		refereeReport(ref, matchID, winner, map[string]int{winner: 3, loser: 0}))
	require.NoError(t, err)
}

func TestHandleQueryRequiresAuthentication(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.queries.HandleQuery(context.Background(), &models.LeagueQuery{
		Sender:    "player:P01",
		QueryType: models.QueryGetStandings,
	})
	assert.ErrorIs(t, err, ErrAuthTokenMissing)

	_, err = f.queries.HandleQuery(context.Background(), &models.LeagueQuery{
		Sender:    "player:P01",
		AuthToken: f.players[1].AuthToken,
		QueryType: models.QueryGetStandings,
	})
	assert.ErrorIs(t, err, ErrAuthTokenInvalid)
}

func TestHandleQueryStandings(t *testing.T) {
	f := newQueryFixture(t)
	f.finish(t, "R1M1", "P01", "P04")

	resp := f.ask(t, 1, models.QueryGetStandings, nil)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	standings := data["standings"].([]models.Standing)
	require.Len(t, standings, 2)
	assert.Equal(t, "P01", standings[0].ParticipantID)
	assert.Equal(t, 3, standings[0].Points)
}

func TestHandleQuerySchedule(t *testing.T) {
	f := newQueryFixture(t)
	f.finish(t, "R1M2", "P02", "P03")

	resp := f.ask(t, 0, models.QueryGetSchedule, nil)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, 6, data["total_matches"])

	items := data["schedule"].([]models.ScheduleItem)
	require.Len(t, items, 6)
	assert.Equal(t, models.ScheduleItem{MatchID: "R1M1", RoundID: 1, PlayerA: "P01", PlayerB: "P04"}, items[0])
	assert.True(t, items[1].Completed)
	for _, it := range items[2:] {
		assert.False(t, it.Completed)
	}
}

func TestHandleQueryNextMatch(t *testing.T) {
	f := newQueryFixture(t)

	resp := f.ask(t, 0, models.QueryGetNextMatch, nil)
	next := resp.Data.(map[string]any)["next_match"].(*models.NextMatch)
	assert.Equal(t, &models.NextMatch{
		MatchID:         "R1M1",
		RoundID:         1,
		OpponentID:      "P04",
		RefereeEndpoint: "http://ref1.test/mcp",
	}, next)

	// Second match of a round goes to the second referee.
	resp = f.ask(t, 0, models.QueryGetNextMatch, map[string]any{"player_id": "P03"})
	next = resp.Data.(map[string]any)["next_match"].(*models.NextMatch)
	assert.Equal(t, "R1M2", next.MatchID)
	assert.Equal(t, "P02", next.OpponentID)
	assert.Equal(t, "http://ref2.test/mcp", next.RefereeEndpoint)

	f.finish(t, "R1M1", "P01", "P04")
	resp = f.ask(t, 0, models.QueryGetNextMatch, nil)
	next = resp.Data.(map[string]any)["next_match"].(*models.NextMatch)
	assert.Equal(t, "R2M3", next.MatchID)
	assert.Equal(t, "P03", next.OpponentID)
}

func TestHandleQueryNextMatchWhenNothingLeft(t *testing.T) {
	f := newQueryFixture(t)
	f.finish(t, "R1M1", "P01", "P04")
	f.finish(t, "R2M3", "P01", "P03")
	f.finish(t, "R3M5", "P01", "P02")

	resp := f.ask(t, 0, models.QueryGetNextMatch, nil)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Nil(t, data["next_match"])
	assert.Equal(t, "No upcoming matches", data["message"])
}

func TestHandleQueryPlayerStats(t *testing.T) {
	f := newQueryFixture(t)
	f.finish(t, "R1M1", "P01", "P04")

	resp := f.ask(t, 3, models.QueryGetPlayerStats, nil)
	require.True(t, resp.Success)
	stats := resp.Data.(*models.PlayerStats)
	assert.Equal(t, "P04", stats.PlayerID)
	assert.Equal(t, 1, stats.Stats.Played)
	assert.Equal(t, 1, stats.Stats.Losses)
	assert.NotEmpty(t, stats.RegisteredAt)

	resp = f.ask(t, 3, models.QueryGetPlayerStats, map[string]any{"player_id": "P99"})
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, QueryErrPlayerNotRegistered, resp.Error.Code)
	assert.Equal(t, "PLAYER_NOT_REGISTERED", resp.Error.Message)
}

func TestHandleQueryUnknownType(t *testing.T) {
	f := newQueryFixture(t)

	resp := f.ask(t, 0, "GET_WEATHER", nil)
	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, QueryErrUnknownType, resp.Error.Code)
	assert.Equal(t, "Unknown query_type: GET_WEATHER", resp.Error.Message)
}

func TestNextMatchForWithoutSchedule(t *testing.T) {
	assert.Nil(t, NextMatchFor(&models.LeagueSnapshot{}, "P01"))
	assert.Nil(t, NextMatchFor(&models.LeagueSnapshot{}, ""))
}

func TestNextMatchForSkipsRefereesOfOtherGames(t *testing.T) {
	referee := func(id string, gameTypes ...string) *models.Participant {
		return &models.Participant{ID: id, Role: models.RoleReferee, Endpoint: "http://" + id + ".test/mcp", GameTypes: gameTypes}
	}
	snap := &models.LeagueSnapshot{
		GameType: "even_odd",
		Schedule: []models.ScheduleEntry{
			{PlayerA: "P01", PlayerB: "P04", RoundID: 1, MatchSeq: 1},
			{PlayerA: "P02", PlayerB: "P03", RoundID: 1, MatchSeq: 2},
		},
		Referees: []*models.Participant{
			referee("REF01", "chess"),
			referee("REF02", "even_odd"),
			referee("REF03", "even_odd", "chess"),
		},
	}

	assert.Equal(t, "http://REF02.test/mcp", NextMatchFor(snap, "P01").RefereeEndpoint)
	assert.Equal(t, "http://REF03.test/mcp", NextMatchFor(snap, "P03").RefereeEndpoint)
}
