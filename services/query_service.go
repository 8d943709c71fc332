package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/agent-league/models"
)

const (
	QueryErrUnknownType         = "E003"
	QueryErrPlayerNotRegistered = "E005"
	QueryErrInternal            = "E000"
)

type QueryService interface {
	// HandleQuery answers a LEAGUE_QUERY. Authentication failures are
	// returned as errors; query failures travel inside the response.
	HandleQuery(ctx context.Context, q *models.LeagueQuery) (*models.LeagueQueryResponse, error)
	Standings(ctx context.Context) []models.Standing
}

type queryService struct {
	league   LeagueService
	registry RegistryService
	logger   *slog.Logger
}

func NewQueryService(league LeagueService, registry RegistryService, logger *slog.Logger) QueryService {
	return &queryService{league: league, registry: registry, logger: logger}
}

func (s *queryService) Standings(_ context.Context) []models.Standing {
	return s.league.Standings()
}

func (s *queryService) HandleQuery(_ context.Context, q *models.LeagueQuery) (*models.LeagueQueryResponse, error) {
	if q == nil {
		return nil, missingField("query_type")
	}
	sender, err := s.registry.Authenticate(q.Sender, q.AuthToken)
	if err != nil {
		return nil, err
	}

	conversationID := q.ConversationID
	if conversationID == "" {
		conversationID = newConversationID("query")
	}
	resp := &models.LeagueQueryResponse{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgLeagueQueryResponse,
		Sender:         models.ManagerSender,
		Timestamp:      timestampNow(),
		ConversationID: conversationID,
		QueryType:      q.QueryType,
	}

	data, qerr := s.answer(q, sender)
	if qerr != nil {
		s.logger.Info("league query failed",
			slog.String("sender", q.Sender),
			slog.String("query_type", q.QueryType),
			slog.String("code", qerr.Code),
		)
		resp.Error = qerr
		return resp, nil
	}
	resp.Success = true
	resp.Data = data
	return resp, nil
}

func (s *queryService) answer(q *models.LeagueQuery, sender *models.Participant) (any, *models.QueryError) {
	switch q.QueryType {
	case models.QueryGetStandings:
		return map[string]any{"standings": s.league.Standings()}, nil

	case models.QueryGetSchedule:
		snap := s.league.Snapshot()
		items := make([]models.ScheduleItem, 0, len(snap.Schedule))
		for _, e := range snap.Schedule {
			m := snap.Matches[e.MatchID()]
			items = append(items, models.ScheduleItem{
				MatchID:   e.MatchID(),
				RoundID:   e.RoundID,
				PlayerA:   e.PlayerA,
				PlayerB:   e.PlayerB,
				Completed: m != nil && m.IsTerminal(),
			})
		}
		return map[string]any{"schedule": items, "total_matches": len(items)}, nil

	case models.QueryGetNextMatch:
		next := NextMatchFor(s.league.Snapshot(), queryPlayerID(q, sender))
		if next == nil {
			return map[string]any{"next_match": nil, "message": "No upcoming matches"}, nil
		}
		return map[string]any{"next_match": next}, nil

	case models.QueryGetPlayerStats:
		playerID := queryPlayerID(q, sender)
		p, ok := s.registry.Participant(playerID)
		if !ok || p.Role != models.RolePlayer {
			return nil, &models.QueryError{Code: QueryErrPlayerNotRegistered, Message: "PLAYER_NOT_REGISTERED"}
		}
		stats := StandingFor(s.league.Standings(), playerID)
		stats.DisplayName = p.DisplayName
		return &models.PlayerStats{
			PlayerID:     p.ID,
			DisplayName:  p.DisplayName,
			Stats:        stats,
			RegisteredAt: models.Timestamp(p.RegisteredAt),
		}, nil

	default:
		return nil, &models.QueryError{Code: QueryErrUnknownType, Message: fmt.Sprintf("Unknown query_type: %s", q.QueryType)}
	}
}

// queryPlayerID takes query_params.player_id, falling back to the sender
// when a player asks about itself.
func queryPlayerID(q *models.LeagueQuery, sender *models.Participant) string {
	if id, ok := q.QueryParams["player_id"].(string); ok && id != "" {
		return id
	}
	if sender != nil && sender.Role == models.RolePlayer {
		return sender.ID
	}
	return ""
}

// NextMatchFor finds the first scheduled match of playerID that has not
// finished. The referee is the assigned one, or the one the rotation would
// pick for that slot of the round.
func NextMatchFor(snap *models.LeagueSnapshot, playerID string) *models.NextMatch {
	if playerID == "" {
		return nil
	}
	referees := snap.ActiveReferees()
	slot := make(map[int]int)
	for _, e := range snap.Schedule {
		index := slot[e.RoundID]
		slot[e.RoundID]++

		m := snap.Matches[e.MatchID()]
		if !e.Involves(playerID) || (m != nil && m.IsTerminal()) {
			continue
		}
		next := &models.NextMatch{
			MatchID:    e.MatchID(),
			RoundID:    e.RoundID,
			OpponentID: e.Opponent(playerID),
		}
		if m != nil && m.RefereeID != "" {
			for _, r := range snap.Referees {
				if r.ID == m.RefereeID {
					next.RefereeEndpoint = r.Endpoint
				}
			}
		} else if len(referees) > 0 {
			next.RefereeEndpoint = referees[index%len(referees)].Endpoint
		}
		return next
	}
	return nil
}
