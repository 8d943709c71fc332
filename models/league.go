package models

import "time"

type LeaguePhase string

const (
	PhaseRegistering   LeaguePhase = "REGISTERING"
	PhaseScheduled     LeaguePhase = "SCHEDULED"
	PhaseRunningRounds LeaguePhase = "RUNNING_ROUNDS"
	PhaseComplete      LeaguePhase = "COMPLETE"
)

type RoundStatus string

const (
	RoundStatusPending    RoundStatus = "PENDING"
	RoundStatusInProgress RoundStatus = "IN_PROGRESS"
	RoundStatusCompleted  RoundStatus = "COMPLETED"
)

type RoundTracking struct {
	RoundID        int         `json:"round_id" db:"round_id"`
	MatchIDs       []string    `json:"match_ids"`
	CompletedCount int         `json:"completed_count" db:"completed_count"`
	Status         RoundStatus `json:"status" db:"status"`
	StartedAt      *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
}

func (r *RoundTracking) Expected() int {
	return len(r.MatchIDs)
}

// LeagueSnapshot is a consistent, copy-on-read view of the league state.
type LeagueSnapshot struct {
	LeagueID        string                  `json:"league_id"`
	RunID           string                  `json:"run_id"`
	GameType        string                  `json:"game_type"`
	Phase           LeaguePhase             `json:"phase"`
	CurrentRound    int                     `json:"current_round"`
	TotalRounds     int                     `json:"total_rounds"`
	Schedule        []ScheduleEntry         `json:"schedule"`
	Matches         map[string]*MatchRecord `json:"matches"`
	Rounds          []RoundTracking         `json:"rounds"`
	CompletedRounds []int                   `json:"completed_rounds"`
	Players         []*Participant          `json:"players"`
	Referees        []*Participant          `json:"referees"`
}

// ActiveReferees returns the referees that can run the league's game type,
// in registration order. Matches are dispatched over this list.
func (s *LeagueSnapshot) ActiveReferees() []*Participant {
	var out []*Participant
	for _, r := range s.Referees {
		if r.SupportsGame(s.GameType) {
			out = append(out, r)
		}
	}
	return out
}

// Results returns only the matches that reached a terminal state.
func (s *LeagueSnapshot) Results() map[string]*MatchRecord {
	out := make(map[string]*MatchRecord, len(s.Matches))
	for id, m := range s.Matches {
		if m.IsTerminal() {
			out[id] = m
		}
	}
	return out
}

func (s *LeagueSnapshot) DisplayNames() map[string]string {
	names := make(map[string]string, len(s.Players))
	for _, p := range s.Players {
		names[p.ID] = p.DisplayName
	}
	return names
}
