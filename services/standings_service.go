package services

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/Dosada05/agent-league/models"
)

// CalculateStandings folds terminal match records into a ranked table.
//
// Every participant named in a score map gets a row. Points are summed as
// reported, technical losses included. Rows are ordered by points, wins and
// draws (all descending), then by participant id; ranks follow that order and
// are never shared.
func CalculateStandings(results map[string]*models.MatchRecord) []models.Standing {
	rows := make(map[string]*models.Standing)
	row := func(id string) *models.Standing {
		r, ok := rows[id]
		if !ok {
			r = &models.Standing{ParticipantID: id}
			rows[id] = r
		}
		return r
	}

	for _, m := range results {
		if m == nil || !m.IsTerminal() {
			continue
		}
		for id, points := range m.Score {
			r := row(id)
			r.Played++
			r.Points += points
			switch {
			case m.Winner == nil:
				r.Draws++
			case *m.Winner == id:
				r.Wins++
			default:
				r.Losses++
			}
		}
	}

	standings := make([]models.Standing, 0, len(rows))
	for _, r := range rows {
		standings = append(standings, *r)
	}
	sort.Slice(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		if a.Draws != b.Draws {
			return a.Draws > b.Draws
		}
		return a.ParticipantID < b.ParticipantID
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// WithDisplayNames fills DisplayName from names, falling back to the id.
func WithDisplayNames(standings []models.Standing, names map[string]string) []models.Standing {
	out := make([]models.Standing, len(standings))
	for i, s := range standings {
		s.DisplayName = names[s.ParticipantID]
		if s.DisplayName == "" {
			s.DisplayName = s.ParticipantID
		}
		out[i] = s
	}
	return out
}

// StandingFor returns the row of participantID, or a zero row when the
// participant has not played yet.
func StandingFor(standings []models.Standing, participantID string) models.Standing {
	for _, s := range standings {
		if s.ParticipantID == participantID {
			return s
		}
	}
	return models.Standing{ParticipantID: participantID}
}

// Champion returns the rank 1 row, or nil for an empty table.
func Champion(standings []models.Standing) *models.Standing {
	if len(standings) == 0 {
		return nil
	}
	top := standings[0]
	return &top
}

// WriteStandingsTable prints the operator view of a standings table.
func WriteStandingsTable(w io.Writer, title string, standings []models.Standing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", title)
	fmt.Fprintln(tw, "RANK\tPLAYER\tNAME\tPLAYED\tW\tD\tL\tPTS")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Rank, s.ParticipantID, s.DisplayName, s.Played, s.Wins, s.Draws, s.Losses, s.Points)
	}
	return tw.Flush()
}
