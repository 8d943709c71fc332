package brackets

import (
	"fmt"
	"testing"

	"github.com/Dosada05/agent-league/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playerIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%02d", i+1)
	}
	return ids
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func TestGenerateScheduleFourPlayers(t *testing.T) {
	schedule, err := GenerateSchedule(playerIDs(4))
	require.NoError(t, err)

	want := []struct {
		id   string
		a, b string
	}{
		{"R1M1", "P01", "P04"},
		{"R1M2", "P02", "P03"},
		{"R2M3", "P01", "P03"},
		{"R2M4", "P04", "P02"},
		{"R3M5", "P01", "P02"},
		{"R3M6", "P03", "P04"},
	}
	require.Len(t, schedule, len(want))
	for i, w := range want {
		assert.Equal(t, w.id, schedule[i].MatchID())
		assert.Equal(t, w.a, schedule[i].PlayerA)
		assert.Equal(t, w.b, schedule[i].PlayerB)
	}
}

func TestGenerateScheduleCoversEveryPairOnce(t *testing.T) {
	for n := 2; n <= 12; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			ids := playerIDs(n)
			schedule, err := GenerateSchedule(ids)
			require.NoError(t, err)

			assert.Len(t, schedule, n*(n-1)/2)

			pairs := make(map[string]bool)
			matchIDs := make(map[string]bool)
			perRound := make(map[int]map[string]bool)
			for i, e := range schedule {
				assert.NotEqual(t, e.PlayerA, e.PlayerB)
				key := pairKey(e.PlayerA, e.PlayerB)
				assert.False(t, pairs[key], "pair %s scheduled twice", key)
				pairs[key] = true

				assert.False(t, matchIDs[e.MatchID()])
				matchIDs[e.MatchID()] = true
				assert.Equal(t, i+1, e.MatchSeq)

				if perRound[e.RoundID] == nil {
					perRound[e.RoundID] = make(map[string]bool)
				}
				assert.False(t, perRound[e.RoundID][e.PlayerA], "%s plays twice in round %d", e.PlayerA, e.RoundID)
				assert.False(t, perRound[e.RoundID][e.PlayerB], "%s plays twice in round %d", e.PlayerB, e.RoundID)
				perRound[e.RoundID][e.PlayerA] = true
				perRound[e.RoundID][e.PlayerB] = true
			}

			wantRounds := n - 1
			if n%2 == 1 {
				wantRounds = n
			}
			assert.Equal(t, wantRounds, TotalRounds(schedule))
			for r := 1; r <= wantRounds; r++ {
				assert.NotEmpty(t, perRound[r], "round %d has no matches", r)
			}
		})
	}
}

func TestGenerateScheduleIsDeterministic(t *testing.T) {
	ids := playerIDs(6)
	first, err := GenerateSchedule(ids)
	require.NoError(t, err)
	second, err := GenerateSchedule(ids)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateScheduleOddFieldSitsEachPlayerOutOnce(t *testing.T) {
	ids := playerIDs(5)
	schedule, err := GenerateSchedule(ids)
	require.NoError(t, err)

	sitOuts := make(map[string]int)
	for round, entries := range Rounds(schedule) {
		playing := make(map[string]bool)
		for _, e := range entries {
			playing[e.PlayerA] = true
			playing[e.PlayerB] = true
		}
		assert.Len(t, entries, 2, "round %d", round)
		for _, id := range ids {
			if !playing[id] {
				sitOuts[id]++
			}
		}
	}
	for _, id := range ids {
		assert.Equal(t, 1, sitOuts[id], id)
	}
}

func TestGenerateScheduleRejectsBadInput(t *testing.T) {
	_, err := GenerateSchedule(nil)
	assert.Error(t, err)

	_, err = GenerateSchedule([]string{"P01"})
	assert.Error(t, err)

	_, err = GenerateSchedule([]string{"P01", "P01"})
	assert.Error(t, err)

	_, err = GenerateSchedule([]string{"P01", ""})
	assert.Error(t, err)
}

func TestRoundRobinGeneratorImplementsInterface(t *testing.T) {
	var g ScheduleGenerator = NewRoundRobinGenerator()
	assert.Equal(t, "RoundRobin", g.GetName())

	schedule, err := g.GenerateSchedule([]string{"P01", "P02"})
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduleEntry{{PlayerA: "P01", PlayerB: "P02", RoundID: 1, MatchSeq: 1}}, schedule)
}
