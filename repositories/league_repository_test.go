package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/Dosada05/agent-league/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testLeague = "league_test"

func newSQLiteRepo(t *testing.T) LeagueRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo, err := NewSQLLeagueRepository(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	return repo
}

func repoImplementations(t *testing.T) map[string]LeagueRepository {
	return map[string]LeagueRepository{
		"memory": NewMemoryLeagueRepository(),
		"sqlite": newSQLiteRepo(t),
	}
}

func strPtr(s string) *string { return &s }

func TestLeagueRepositoryMatches(t *testing.T) {
	for name, repo := range repoImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Millisecond)

			pending := &models.MatchRecord{MatchID: "R10M19", RoundID: 10, PlayerA: "P01", PlayerB: "P02", Status: models.MatchStatusPending}
			done := &models.MatchRecord{
				MatchID:     "R2M3",
				RoundID:     2,
				PlayerA:     "P01",
				PlayerB:     "P03",
				RefereeID:   "REF01",
				Status:      models.MatchStatusCompleted,
				Winner:      strPtr("P03"),
				Score:       map[string]int{"P01": 0, "P03": 3},
				Details:     map[string]any{"drawn_number": float64(7)},
				CompletedAt: &now,
			}
			require.NoError(t, repo.SaveMatch(ctx, testLeague, pending))
			require.NoError(t, repo.SaveMatch(ctx, testLeague, done))

			got, err := repo.GetMatch(ctx, testLeague, "R2M3")
			require.NoError(t, err)
			assert.Equal(t, models.MatchStatusCompleted, got.Status)
			require.NotNil(t, got.Winner)
			assert.Equal(t, "P03", *got.Winner)
			assert.Equal(t, map[string]int{"P01": 0, "P03": 3}, got.Score)
			assert.Equal(t, float64(7), got.Details["drawn_number"])
			require.NotNil(t, got.CompletedAt)
			assert.True(t, now.Equal(*got.CompletedAt))

			list, err := repo.ListMatches(ctx, testLeague)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "R2M3", list[0].MatchID)
			assert.Equal(t, "R10M19", list[1].MatchID)

			_, err = repo.GetMatch(ctx, testLeague, "R9M9")
			assert.ErrorIs(t, err, ErrMatchNotFound)
		})
	}
}

func TestLeagueRepositoryUpsertsMatch(t *testing.T) {
	for name, repo := range repoImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := &models.MatchRecord{MatchID: "R1M1", RoundID: 1, PlayerA: "P01", PlayerB: "P02", Status: models.MatchStatusInProgress}
			require.NoError(t, repo.SaveMatch(ctx, testLeague, m))

			m.Status = models.MatchStatusTechnicalLoss
			m.Score = map[string]int{"P01": 0, "P02": 0}
			require.NoError(t, repo.SaveMatch(ctx, testLeague, m))

			got, err := repo.GetMatch(ctx, testLeague, "R1M1")
			require.NoError(t, err)
			assert.Equal(t, models.MatchStatusTechnicalLoss, got.Status)
			assert.Nil(t, got.Winner)

			list, err := repo.ListMatches(ctx, testLeague)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestLeagueRepositoryStandings(t *testing.T) {
	for name, repo := range repoImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.LatestStandings(ctx, testLeague)
			assert.ErrorIs(t, err, ErrStandingsNotFound)

			for round := 1; round <= 2; round++ {
				require.NoError(t, repo.SaveStandings(ctx, &models.StandingsSnapshot{
					LeagueID:  testLeague,
					RoundID:   round,
					Standings: []models.Standing{{ParticipantID: "P01", Points: 3 * round, Rank: 1}},
					CreatedAt: time.Now(),
				}))
			}

			latest, err := repo.LatestStandings(ctx, testLeague)
			require.NoError(t, err)
			assert.Equal(t, 2, latest.RoundID)
			require.Len(t, latest.Standings, 1)
			assert.Equal(t, 6, latest.Standings[0].Points)
		})
	}
}

func TestLeagueRepositoryParticipantsAndRounds(t *testing.T) {
	for name, repo := range repoImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.SaveParticipant(ctx, testLeague, &models.Participant{
				ID: "P02", Role: models.RolePlayer, DisplayName: "Bob", Endpoint: "http://b", GameTypes: []string{"even_odd"}, RegisteredAt: time.Now(),
			}))
			require.NoError(t, repo.SaveParticipant(ctx, testLeague, &models.Participant{
				ID: "P01", Role: models.RolePlayer, DisplayName: "Alice", Endpoint: "http://a", GameTypes: []string{"even_odd"}, RegisteredAt: time.Now(),
			}))

			ps, err := repo.ListParticipants(ctx, testLeague)
			require.NoError(t, err)
			require.Len(t, ps, 2)
			assert.Equal(t, "P01", ps[0].ID)
			assert.Equal(t, []string{"even_odd"}, ps[0].GameTypes)

			require.NoError(t, repo.SaveSchedule(ctx, testLeague, []models.ScheduleEntry{
				{PlayerA: "P01", PlayerB: "P02", RoundID: 1, MatchSeq: 1},
			}))
			require.NoError(t, repo.SaveRound(ctx, testLeague, &models.RoundTracking{
				RoundID: 1, MatchIDs: []string{"R1M1"}, CompletedCount: 1, Status: models.RoundStatusCompleted,
			}))
		})
	}
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", rebind(DialectPostgres, "SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "SELECT 1 WHERE a = ?", rebind(DialectSQLite, "SELECT 1 WHERE a = ?"))
}
