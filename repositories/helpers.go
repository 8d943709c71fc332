package repositories

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/agent-league/models"
)

// rebind rewrites ? placeholders into $1..$n for postgres.
func rebind(dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored timestamp %q: %w", s.String, err)
	}
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func sortMatches(matches []*models.MatchRecord) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundID != matches[j].RoundID {
			return matches[i].RoundID < matches[j].RoundID
		}
		return matchSeq(matches[i].MatchID) < matchSeq(matches[j].MatchID)
	})
}

// matchSeq extracts the global sequence from an id like R2M4.
func matchSeq(matchID string) int {
	idx := strings.LastIndexByte(matchID, 'M')
	if idx < 0 {
		return 0
	}
	n, _ := strconv.Atoi(matchID[idx+1:])
	return n
}
