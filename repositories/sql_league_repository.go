package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/agent-league/models"
	"github.com/lib/pq"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS league_participants (
		league_id      TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		role           TEXT NOT NULL,
		display_name   TEXT NOT NULL,
		endpoint       TEXT NOT NULL,
		game_types     TEXT NOT NULL,
		registered_at  TEXT NOT NULL,
		PRIMARY KEY (league_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS league_schedule (
		league_id   TEXT NOT NULL,
		match_id    TEXT NOT NULL,
		round_id    INTEGER NOT NULL,
		match_seq   INTEGER NOT NULL,
		player_a_id TEXT NOT NULL,
		player_b_id TEXT NOT NULL,
		PRIMARY KEY (league_id, match_id)
	)`,
	`CREATE TABLE IF NOT EXISTS league_matches (
		league_id     TEXT NOT NULL,
		match_id      TEXT NOT NULL,
		round_id      INTEGER NOT NULL,
		player_a_id   TEXT NOT NULL,
		player_b_id   TEXT NOT NULL,
		referee_id    TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		winner        TEXT,
		score         TEXT,
		details       TEXT,
		dispatched_at TEXT,
		completed_at  TEXT,
		PRIMARY KEY (league_id, match_id)
	)`,
	`CREATE TABLE IF NOT EXISTS league_rounds (
		league_id       TEXT NOT NULL,
		round_id        INTEGER NOT NULL,
		match_ids       TEXT NOT NULL,
		completed_count INTEGER NOT NULL,
		status          TEXT NOT NULL,
		started_at      TEXT,
		completed_at    TEXT,
		PRIMARY KEY (league_id, round_id)
	)`,
	`CREATE TABLE IF NOT EXISTS league_standings (
		league_id  TEXT NOT NULL,
		round_id   INTEGER NOT NULL,
		standings  TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (league_id, round_id)
	)`,
}

type sqlLeagueRepository struct {
	db      *sql.DB
	dialect string
}

// NewSQLLeagueRepository creates the schema if needed. The same queries serve
// postgres and sqlite; only placeholders differ.
func NewSQLLeagueRepository(ctx context.Context, db *sql.DB, dialect string) (LeagueRepository, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create league schema: %w", err)
		}
	}
	return &sqlLeagueRepository{db: db, dialect: dialect}, nil
}

func (r *sqlLeagueRepository) q(query string) string {
	return rebind(r.dialect, query)
}

func (r *sqlLeagueRepository) SaveParticipant(ctx context.Context, leagueID string, p *models.Participant) error {
	query := r.q(`
		INSERT INTO league_participants
			(league_id, participant_id, role, display_name, endpoint, game_types, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (league_id, participant_id) DO UPDATE SET
			display_name = excluded.display_name,
			endpoint = excluded.endpoint,
			game_types = excluded.game_types`)

	registeredAt := p.RegisteredAt
	_, err := r.db.ExecContext(ctx, query,
		leagueID, p.ID, string(p.Role), p.DisplayName, p.Endpoint,
		strings.Join(p.GameTypes, ","), formatTime(&registeredAt),
	)
	return r.handleError(err, "save participant "+p.ID)
}

func (r *sqlLeagueRepository) SaveSchedule(ctx context.Context, leagueID string, schedule []models.ScheduleEntry) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schedule transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, r.q(`DELETE FROM league_schedule WHERE league_id = ?`), leagueID); err != nil {
		return fmt.Errorf("failed to clear schedule: %w", err)
	}

	insert := r.q(`
		INSERT INTO league_schedule (league_id, match_id, round_id, match_seq, player_a_id, player_b_id)
		VALUES (?, ?, ?, ?, ?, ?)`)
	for _, e := range schedule {
		if _, err = tx.ExecContext(ctx, insert, leagueID, e.MatchID(), e.RoundID, e.MatchSeq, e.PlayerA, e.PlayerB); err != nil {
			return r.handleError(err, "insert schedule entry "+e.MatchID())
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schedule: %w", err)
	}
	return nil
}

func (r *sqlLeagueRepository) SaveMatch(ctx context.Context, leagueID string, m *models.MatchRecord) error {
	score, err := marshalNullable(m.Score)
	if err != nil {
		return fmt.Errorf("failed to encode score for %s: %w", m.MatchID, err)
	}
	details, err := marshalNullable(m.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details for %s: %w", m.MatchID, err)
	}

	query := r.q(`
		INSERT INTO league_matches
			(league_id, match_id, round_id, player_a_id, player_b_id, referee_id, status,
			 winner, score, details, dispatched_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (league_id, match_id) DO UPDATE SET
			referee_id = excluded.referee_id,
			status = excluded.status,
			winner = excluded.winner,
			score = excluded.score,
			details = excluded.details,
			dispatched_at = excluded.dispatched_at,
			completed_at = excluded.completed_at`)

	_, err = r.db.ExecContext(ctx, query,
		leagueID, m.MatchID, m.RoundID, m.PlayerA, m.PlayerB, m.RefereeID, string(m.Status),
		nullString(m.Winner), score, details, formatTime(m.DispatchedAt), formatTime(m.CompletedAt),
	)
	return r.handleError(err, "save match "+m.MatchID)
}

func (r *sqlLeagueRepository) SaveRound(ctx context.Context, leagueID string, rt *models.RoundTracking) error {
	matchIDs, err := json.Marshal(rt.MatchIDs)
	if err != nil {
		return fmt.Errorf("failed to encode round %d match ids: %w", rt.RoundID, err)
	}

	query := r.q(`
		INSERT INTO league_rounds
			(league_id, round_id, match_ids, completed_count, status, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (league_id, round_id) DO UPDATE SET
			match_ids = excluded.match_ids,
			completed_count = excluded.completed_count,
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`)

	_, err = r.db.ExecContext(ctx, query,
		leagueID, rt.RoundID, string(matchIDs), rt.CompletedCount, string(rt.Status),
		formatTime(rt.StartedAt), formatTime(rt.CompletedAt),
	)
	return r.handleError(err, fmt.Sprintf("save round %d", rt.RoundID))
}

func (r *sqlLeagueRepository) SaveStandings(ctx context.Context, snapshot *models.StandingsSnapshot) error {
	payload, err := json.Marshal(snapshot.Standings)
	if err != nil {
		return fmt.Errorf("failed to encode standings: %w", err)
	}
	createdAt := snapshot.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := r.q(`
		INSERT INTO league_standings (league_id, round_id, standings, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (league_id, round_id) DO UPDATE SET
			standings = excluded.standings,
			created_at = excluded.created_at`)

	_, err = r.db.ExecContext(ctx, query, snapshot.LeagueID, snapshot.RoundID, string(payload), formatTime(&createdAt))
	return r.handleError(err, fmt.Sprintf("save standings for round %d", snapshot.RoundID))
}

const matchColumns = `match_id, round_id, player_a_id, player_b_id, referee_id, status,
		       winner, score, details, dispatched_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*models.MatchRecord, error) {
	var (
		m                       models.MatchRecord
		status                  string
		winner, score, details  sql.NullString
		dispatchedAt, completed sql.NullString
	)
	if err := row.Scan(&m.MatchID, &m.RoundID, &m.PlayerA, &m.PlayerB, &m.RefereeID, &status,
		&winner, &score, &details, &dispatchedAt, &completed); err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)
	if winner.Valid {
		w := winner.String
		m.Winner = &w
	}
	if score.Valid {
		if err := json.Unmarshal([]byte(score.String), &m.Score); err != nil {
			return nil, fmt.Errorf("invalid stored score for %s: %w", m.MatchID, err)
		}
	}
	if details.Valid {
		if err := json.Unmarshal([]byte(details.String), &m.Details); err != nil {
			return nil, fmt.Errorf("invalid stored details for %s: %w", m.MatchID, err)
		}
	}
	var err error
	if m.DispatchedAt, err = parseTime(dispatchedAt); err != nil {
		return nil, err
	}
	if m.CompletedAt, err = parseTime(completed); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *sqlLeagueRepository) GetMatch(ctx context.Context, leagueID, matchID string) (*models.MatchRecord, error) {
	query := r.q(`SELECT ` + matchColumns + ` FROM league_matches WHERE league_id = ? AND match_id = ?`)
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, leagueID, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %s: %w", matchID, err)
	}
	return m, nil
}

func (r *sqlLeagueRepository) ListMatches(ctx context.Context, leagueID string) ([]*models.MatchRecord, error) {
	query := r.q(`SELECT ` + matchColumns + ` FROM league_matches WHERE league_id = ?`)
	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.MatchRecord, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating match rows: %w", err)
	}
	sortMatches(matches)
	return matches, nil
}

func (r *sqlLeagueRepository) ListParticipants(ctx context.Context, leagueID string) ([]*models.Participant, error) {
	query := r.q(`
		SELECT participant_id, role, display_name, endpoint, game_types, registered_at
		FROM league_participants
		WHERE league_id = ?
		ORDER BY participant_id`)
	rows, err := r.db.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Participant, 0)
	for rows.Next() {
		var (
			p            models.Participant
			role         string
			gameTypes    string
			registeredAt sql.NullString
		)
		if err := rows.Scan(&p.ID, &role, &p.DisplayName, &p.Endpoint, &gameTypes, &registeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", err)
		}
		p.Role = models.ParticipantRole(role)
		if gameTypes != "" {
			p.GameTypes = strings.Split(gameTypes, ",")
		}
		t, err := parseTime(registeredAt)
		if err != nil {
			return nil, err
		}
		if t != nil {
			p.RegisteredAt = *t
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *sqlLeagueRepository) LatestStandings(ctx context.Context, leagueID string) (*models.StandingsSnapshot, error) {
	query := r.q(`
		SELECT round_id, standings, created_at
		FROM league_standings
		WHERE league_id = ?
		ORDER BY round_id DESC
		LIMIT 1`)

	var (
		snap      = models.StandingsSnapshot{LeagueID: leagueID}
		payload   string
		createdAt sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, leagueID).Scan(&snap.RoundID, &payload, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStandingsNotFound
		}
		return nil, fmt.Errorf("failed to scan standings: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &snap.Standings); err != nil {
		return nil, fmt.Errorf("invalid stored standings: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	if t != nil {
		snap.CreatedAt = *t
	}
	return &snap, nil
}

func (r *sqlLeagueRepository) handleError(err error, op string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("failed to %s: postgres %s (%s): %w", op, pqErr.Code.Name(), pqErr.Constraint, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

func marshalNullable(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case map[string]int:
		if val == nil {
			return sql.NullString{}, nil
		}
	case map[string]any:
		if val == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
