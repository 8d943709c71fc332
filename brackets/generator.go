package brackets

import (
	"github.com/Dosada05/agent-league/models"
)

// ScheduleGenerator turns an ordered list of player ids into pairings.
type ScheduleGenerator interface {
	GenerateSchedule(playerIDs []string) ([]models.ScheduleEntry, error)

	GetName() string
}

// Rounds groups a flat schedule by round id, preserving order inside each round.
func Rounds(schedule []models.ScheduleEntry) map[int][]models.ScheduleEntry {
	byRound := make(map[int][]models.ScheduleEntry)
	for _, e := range schedule {
		byRound[e.RoundID] = append(byRound[e.RoundID], e)
	}
	return byRound
}

func TotalRounds(schedule []models.ScheduleEntry) int {
	maxRound := 0
	for _, e := range schedule {
		if e.RoundID > maxRound {
			maxRound = e.RoundID
		}
	}
	return maxRound
}
