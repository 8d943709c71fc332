package repositories

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/Dosada05/agent-league/models"
)

var (
	ErrStandingsNotFound = errors.New("standings snapshot not found")
	ErrMatchNotFound     = errors.New("match not found")
)

// LeagueRepository persists the observable league state. The league keeps its
// authoritative state in memory; the repository is a write-behind record.
type LeagueRepository interface {
	SaveParticipant(ctx context.Context, leagueID string, p *models.Participant) error
	SaveSchedule(ctx context.Context, leagueID string, schedule []models.ScheduleEntry) error
	SaveMatch(ctx context.Context, leagueID string, m *models.MatchRecord) error
	SaveRound(ctx context.Context, leagueID string, r *models.RoundTracking) error
	SaveStandings(ctx context.Context, snapshot *models.StandingsSnapshot) error

	GetMatch(ctx context.Context, leagueID, matchID string) (*models.MatchRecord, error)
	ListMatches(ctx context.Context, leagueID string) ([]*models.MatchRecord, error)
	ListParticipants(ctx context.Context, leagueID string) ([]*models.Participant, error)
	LatestStandings(ctx context.Context, leagueID string) (*models.StandingsSnapshot, error)
}

type memoryLeagueRepository struct {
	mu           sync.RWMutex
	participants map[string]map[string]*models.Participant
	schedules    map[string][]models.ScheduleEntry
	matches      map[string]map[string]*models.MatchRecord
	rounds       map[string]map[int]models.RoundTracking
	standings    map[string][]*models.StandingsSnapshot
}

func NewMemoryLeagueRepository() LeagueRepository {
	return &memoryLeagueRepository{
		participants: make(map[string]map[string]*models.Participant),
		schedules:    make(map[string][]models.ScheduleEntry),
		matches:      make(map[string]map[string]*models.MatchRecord),
		rounds:       make(map[string]map[int]models.RoundTracking),
		standings:    make(map[string][]*models.StandingsSnapshot),
	}
}

func (r *memoryLeagueRepository) SaveParticipant(_ context.Context, leagueID string, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.participants[leagueID] == nil {
		r.participants[leagueID] = make(map[string]*models.Participant)
	}
	cp := *p
	r.participants[leagueID][p.ID] = &cp
	return nil
}

func (r *memoryLeagueRepository) SaveSchedule(_ context.Context, leagueID string, schedule []models.ScheduleEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[leagueID] = append([]models.ScheduleEntry(nil), schedule...)
	return nil
}

func (r *memoryLeagueRepository) SaveMatch(_ context.Context, leagueID string, m *models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matches[leagueID] == nil {
		r.matches[leagueID] = make(map[string]*models.MatchRecord)
	}
	r.matches[leagueID][m.MatchID] = m.Clone()
	return nil
}

func (r *memoryLeagueRepository) SaveRound(_ context.Context, leagueID string, rt *models.RoundTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rounds[leagueID] == nil {
		r.rounds[leagueID] = make(map[int]models.RoundTracking)
	}
	cp := *rt
	cp.MatchIDs = append([]string(nil), rt.MatchIDs...)
	r.rounds[leagueID][rt.RoundID] = cp
	return nil
}

func (r *memoryLeagueRepository) SaveStandings(_ context.Context, snapshot *models.StandingsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *snapshot
	cp.Standings = append([]models.Standing(nil), snapshot.Standings...)
	r.standings[snapshot.LeagueID] = append(r.standings[snapshot.LeagueID], &cp)
	return nil
}

func (r *memoryLeagueRepository) GetMatch(_ context.Context, leagueID, matchID string) (*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[leagueID][matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (r *memoryLeagueRepository) ListMatches(_ context.Context, leagueID string) ([]*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.MatchRecord, 0, len(r.matches[leagueID]))
	for _, m := range r.matches[leagueID] {
		out = append(out, m.Clone())
	}
	sortMatches(out)
	return out, nil
}

func (r *memoryLeagueRepository) ListParticipants(_ context.Context, leagueID string) ([]*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Participant, 0, len(r.participants[leagueID]))
	for _, p := range r.participants[leagueID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryLeagueRepository) LatestStandings(_ context.Context, leagueID string) (*models.StandingsSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snaps := r.standings[leagueID]
	if len(snaps) == 0 {
		return nil, ErrStandingsNotFound
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.RoundID >= latest.RoundID {
			latest = s
		}
	}
	cp := *latest
	cp.Standings = append([]models.Standing(nil), latest.Standings...)
	return &cp, nil
}
