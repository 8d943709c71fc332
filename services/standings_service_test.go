package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/agent-league/models"
)

func completed(matchID, a, b string, winner *string, score map[string]int) *models.MatchRecord {
	return &models.MatchRecord{
		MatchID: matchID,
		PlayerA: a,
		PlayerB: b,
		Status:  models.MatchStatusCompleted,
		Winner:  winner,
		Score:   score,
	}
}

func TestCalculateStandingsRoundOneExample(t *testing.T) {
	results := map[string]*models.MatchRecord{
		"R1M1": completed("R1M1", "P01", "P02", stringPtr("P01"), map[string]int{"P01": 3, "P02": 0}),
		"R1M2": completed("R1M2", "P03", "P04", nil, map[string]int{"P03": 1, "P04": 1}),
	}

	standings := CalculateStandings(results)
	require.Len(t, standings, 4)

	ids := []string{}
	for _, s := range standings {
		ids = append(ids, s.ParticipantID)
	}
	assert.Equal(t, []string{"P01", "P03", "P04", "P02"}, ids)

	assert.Equal(t, models.Standing{ParticipantID: "P01", Played: 1, Wins: 1, Points: 3, Rank: 1}, standings[0])
	assert.Equal(t, models.Standing{ParticipantID: "P03", Played: 1, Draws: 1, Points: 1, Rank: 2}, standings[1])
	assert.Equal(t, models.Standing{ParticipantID: "P04", Played: 1, Draws: 1, Points: 1, Rank: 3}, standings[2])
	assert.Equal(t, models.Standing{ParticipantID: "P02", Played: 1, Losses: 1, Points: 0, Rank: 4}, standings[3])
}

func TestCalculateStandingsTieBreakChain(t *testing.T) {
	// P02, P05 and P06 have 4 points and one win; P02 has more draws.
	// P01, P03 and P04 have 1 point and one draw; the id decides.
	results := map[string]*models.MatchRecord{
		"R1M1": completed("R1M1", "P05", "P04", stringPtr("P05"), map[string]int{"P05": 3, "P04": 0}),
		"R1M2": completed("R1M2", "P02", "P06", nil, map[string]int{"P02": 1, "P06": 1}),
		"R2M3": completed("R2M3", "P05", "P06", stringPtr("P06"), map[string]int{"P05": 0, "P06": 3}),
		"R2M4": completed("R2M4", "P02", "P04", nil, map[string]int{"P02": 1, "P04": 1}),
		"R3M5": completed("R3M5", "P05", "P02", nil, map[string]int{"P05": 1, "P02": 1}),
		"R3M6": completed("R3M6", "P03", "P01", nil, map[string]int{"P03": 1, "P01": 1}),
		"R4M7": completed("R4M7", "P02", "P03", stringPtr("P02"), map[string]int{"P02": 1, "P03": 0}),
	}

	standings := CalculateStandings(results)
	order := make([]string, 0, len(standings))
	for _, s := range standings {
		order = append(order, s.ParticipantID)
	}
	assert.Equal(t, []string{"P02", "P05", "P06", "P01", "P03", "P04"}, order)
	for i, s := range standings {
		assert.Equal(t, i+1, s.Rank)
	}
}

func TestCalculateStandingsPointsAreConserved(t *testing.T) {
	results := map[string]*models.MatchRecord{
		"R1M1": completed("R1M1", "P01", "P02", stringPtr("P02"), map[string]int{"P01": 0, "P02": 3}),
		"R1M2": completed("R1M2", "P03", "P04", nil, map[string]int{"P03": 1, "P04": 1}),
		"R2M3": {
			MatchID: "R2M3",
			PlayerA: "P01",
			PlayerB: "P03",
			Status:  models.MatchStatusTechnicalLoss,
			Winner:  stringPtr("P03"),
			Score:   map[string]int{"P01": 0, "P03": 3},
			Details: map[string]any{"technical_loss": true},
		},
		"R2M4": {MatchID: "R2M4", PlayerA: "P02", PlayerB: "P04", Status: models.MatchStatusInProgress},
	}

	reported := 0
	for _, m := range results {
		for _, pts := range m.Score {
			reported += pts
		}
	}

	standings := CalculateStandings(results)
	awarded := 0
	for _, s := range standings {
		awarded += s.Points
		assert.Equal(t, s.Played, s.Wins+s.Draws+s.Losses)
	}
	assert.Equal(t, reported, awarded)

	// Technical losses count as played.
	p01 := StandingFor(standings, "P01")
	assert.Equal(t, 2, p01.Played)
	assert.Equal(t, 2, p01.Losses)
}

func TestCalculateStandingsIsDeterministic(t *testing.T) {
	results := map[string]*models.MatchRecord{
		"R1M1": completed("R1M1", "P01", "P02", nil, map[string]int{"P01": 1, "P02": 1}),
		"R1M2": completed("R1M2", "P03", "P04", nil, map[string]int{"P03": 1, "P04": 1}),
	}
	first := CalculateStandings(results)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, CalculateStandings(results))
	}
}

func TestCalculateStandingsEmpty(t *testing.T) {
	assert.Empty(t, CalculateStandings(nil))
	assert.Nil(t, Champion(nil))
}

func TestStandingForUnknownParticipant(t *testing.T) {
	s := StandingFor(nil, "P07")
	assert.Equal(t, models.Standing{ParticipantID: "P07"}, s)
}

func TestWithDisplayNamesFallsBackToID(t *testing.T) {
	in := []models.Standing{{ParticipantID: "P01"}, {ParticipantID: "P02"}}
	out := WithDisplayNames(in, map[string]string{"P01": "Alice"})
	assert.Equal(t, "Alice", out[0].DisplayName)
	assert.Equal(t, "P02", out[1].DisplayName)
	assert.Empty(t, in[0].DisplayName)
}

func TestWriteStandingsTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteStandingsTable(&buf, "Final standings", []models.Standing{
		{ParticipantID: "P01", DisplayName: "Alice", Played: 3, Wins: 3, Points: 9, Rank: 1},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Final standings")
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Alice")
}
