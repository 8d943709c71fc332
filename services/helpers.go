package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
)

// --- Общие хелперы ---

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(s string) *string {
	return &s
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// newConversationID returns an id in the "{kind}-{uuid}" shape agents echo back.
func newConversationID(kind string) string {
	return kind + "-" + uuid.NewString()
}

func timestampNow() string {
	return models.Timestamp(time.Now())
}

// --- Хелперы для рассылок ---

func participantTargets(participants []*models.Participant) []gateway.Target {
	targets := make([]gateway.Target, 0, len(participants))
	for _, p := range participants {
		if p == nil || p.Endpoint == "" {
			continue
		}
		targets = append(targets, gateway.Target{ID: p.ID, Endpoint: p.Endpoint})
	}
	return targets
}

func finalStandings(standings []models.Standing) []models.FinalStanding {
	out := make([]models.FinalStanding, 0, len(standings))
	for _, s := range standings {
		out = append(out, models.FinalStanding{Rank: s.Rank, PlayerID: s.ParticipantID, Points: s.Points})
	}
	return out
}

// decodeInto re-decodes a loosely typed payload (as produced by JSON
// decoding into any) into T.
func decodeInto[T any](v any) (*T, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}
