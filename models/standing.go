package models

import "time"

type Standing struct {
	ParticipantID string `json:"player_id" db:"participant_id"`
	DisplayName   string `json:"display_name,omitempty" db:"-"`
	Played        int    `json:"played" db:"played"`
	Wins          int    `json:"wins" db:"wins"`
	Draws         int    `json:"draws" db:"draws"`
	Losses        int    `json:"losses" db:"losses"`
	Points        int    `json:"points" db:"points"`
	Rank          int    `json:"rank" db:"rank"`
}

// StandingsSnapshot is the persisted table after a round completes.
type StandingsSnapshot struct {
	LeagueID  string     `json:"league_id" db:"league_id"`
	RoundID   int        `json:"round_id" db:"round_id"`
	Standings []Standing `json:"standings"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}
