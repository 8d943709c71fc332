package brackets

import (
	"fmt"

	"github.com/Dosada05/agent-league/models"
)

// byeSlot pads an odd field. Pairings against it produce no match.
const byeSlot = ""

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() ScheduleGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

func (g *RoundRobinGenerator) GenerateSchedule(playerIDs []string) ([]models.ScheduleEntry, error) {
	return GenerateSchedule(playerIDs)
}

// GenerateSchedule builds a single round robin with the circle method.
// The first id stays fixed; in every round position i plays position n-1-i,
// then the remaining ids rotate one step to the right. Match sequence numbers
// are global and start at 1, so ids read R1M1, R1M2, R2M3, ...
//
// An odd field gets a bye slot appended, which yields n rounds where each
// player sits out once.
func GenerateSchedule(playerIDs []string) ([]models.ScheduleEntry, error) {
	if len(playerIDs) < 2 {
		return nil, fmt.Errorf("round robin: not enough participants (found %d, min 2 required)", len(playerIDs))
	}

	seen := make(map[string]struct{}, len(playerIDs))
	for _, id := range playerIDs {
		if id == byeSlot {
			return nil, fmt.Errorf("round robin: empty participant id")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("round robin: duplicate participant id %q", id)
		}
		seen[id] = struct{}{}
	}

	slots := make([]string, len(playerIDs), len(playerIDs)+1)
	copy(slots, playerIDs)
	if len(slots)%2 == 1 {
		slots = append(slots, byeSlot)
	}

	n := len(slots)
	schedule := make([]models.ScheduleEntry, 0, len(playerIDs)*(len(playerIDs)-1)/2)
	seq := 0

	for round := 1; round < n; round++ {
		for i := 0; i < n/2; i++ {
			a, b := slots[i], slots[n-1-i]
			if a == byeSlot || b == byeSlot {
				continue
			}
			seq++
			schedule = append(schedule, models.ScheduleEntry{
				PlayerA:  a,
				PlayerB:  b,
				RoundID:  round,
				MatchSeq: seq,
			})
		}
		slots = rotate(slots)
	}

	return schedule, nil
}

// rotate keeps slots[0] and moves the last element to position 1.
func rotate(slots []string) []string {
	n := len(slots)
	next := make([]string, 0, n)
	next = append(next, slots[0], slots[n-1])
	next = append(next, slots[1:n-1]...)
	return next
}
