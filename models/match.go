package models

import (
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchStatusPending       MatchStatus = "PENDING"
	MatchStatusInProgress    MatchStatus = "IN_PROGRESS"
	MatchStatusCompleted     MatchStatus = "COMPLETED"
	MatchStatusTechnicalLoss MatchStatus = "TECHNICAL_LOSS"
)

// MatchPhase is the referee-side lifecycle of a single match.
type MatchPhase string

const (
	MatchPhaseInviting          MatchPhase = "INVITING"
	MatchPhaseCollectingChoices MatchPhase = "COLLECTING_CHOICES"
	MatchPhaseResolving         MatchPhase = "RESOLVING"
	MatchPhaseNotifying         MatchPhase = "NOTIFYING"
	MatchPhaseReporting         MatchPhase = "REPORTING"
	MatchPhaseDone              MatchPhase = "DONE"
	MatchPhaseTechnicalLoss     MatchPhase = "TECHNICAL_LOSS"
)

// IsTerminal reports whether no further transitions are allowed.
func (p MatchPhase) IsTerminal() bool {
	return p == MatchPhaseDone || p == MatchPhaseTechnicalLoss
}

// ScheduleEntry is one pairing produced by the schedule generator.
type ScheduleEntry struct {
	PlayerA  string `json:"player_A_id"`
	PlayerB  string `json:"player_B_id"`
	RoundID  int    `json:"round_id"`
	MatchSeq int    `json:"match_seq"`
}

func (e ScheduleEntry) MatchID() string {
	return FormatMatchID(e.RoundID, e.MatchSeq)
}

func (e ScheduleEntry) Involves(playerID string) bool {
	return e.PlayerA == playerID || e.PlayerB == playerID
}

func (e ScheduleEntry) Opponent(playerID string) string {
	if e.PlayerA == playerID {
		return e.PlayerB
	}
	return e.PlayerA
}

func FormatMatchID(roundID, seq int) string {
	return fmt.Sprintf("R%dM%d", roundID, seq)
}

// MatchResult is what a referee reports back for a finished match.
// A nil Winner means a draw, or a technical loss where nobody responded.
type MatchResult struct {
	Winner  *string        `json:"winner"`
	Score   map[string]int `json:"score"`
	Details map[string]any `json:"details,omitempty"`
}

type MatchRecord struct {
	MatchID      string         `json:"match_id" db:"match_id"`
	RoundID      int            `json:"round_id" db:"round_id"`
	PlayerA      string         `json:"player_A_id" db:"player_a_id"`
	PlayerB      string         `json:"player_B_id" db:"player_b_id"`
	RefereeID    string         `json:"referee_id,omitempty" db:"referee_id"`
	Status       MatchStatus    `json:"status" db:"status"`
	Winner       *string        `json:"winner,omitempty" db:"winner"`
	Score        map[string]int `json:"score,omitempty" db:"score"`
	Details      map[string]any `json:"details,omitempty" db:"details"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty" db:"dispatched_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

func NewMatchRecord(e ScheduleEntry) *MatchRecord {
	return &MatchRecord{
		MatchID: e.MatchID(),
		RoundID: e.RoundID,
		PlayerA: e.PlayerA,
		PlayerB: e.PlayerB,
		Status:  MatchStatusPending,
	}
}

func (m *MatchRecord) IsTerminal() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusTechnicalLoss
}

func (m *MatchRecord) HasPlayer(id string) bool {
	return m.PlayerA == id || m.PlayerB == id
}

// IsTechnicalLoss reports whether the record carries a technical loss marker in
// its status or in the reported details.
func (m *MatchRecord) IsTechnicalLoss() bool {
	if m.Status == MatchStatusTechnicalLoss {
		return true
	}
	if m.Details == nil {
		return false
	}
	v, ok := m.Details["technical_loss"].(bool)
	return ok && v
}

// Clone returns a deep-enough copy so that readers never share maps with the live record.
func (m *MatchRecord) Clone() *MatchRecord {
	c := *m
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	if m.Score != nil {
		c.Score = make(map[string]int, len(m.Score))
		for k, v := range m.Score {
			c.Score[k] = v
		}
	}
	if m.Details != nil {
		c.Details = make(map[string]any, len(m.Details))
		for k, v := range m.Details {
			c.Details[k] = v
		}
	}
	return &c
}
