package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/Dosada05/agent-league/games"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
)

const (
	StrategyRandom    = "random"
	StrategyEven      = "even"
	StrategyOdd       = "odd"
	StrategyAlternate = "alternate"
)

// Strategy picks a parity for a choose_parity call.
type Strategy interface {
	Name() string
	Choose(roundID int) string
}

type strategyFunc struct {
	name   string
	choose func(roundID int) string
}

func (s strategyFunc) Name() string              { return s.name }
func (s strategyFunc) Choose(roundID int) string { return s.choose(roundID) }

// NewStrategy accepts the short names and the long "always_even" style aliases.
func NewStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyRandom:
		return strategyFunc{StrategyRandom, func(int) string {
			if rand.IntN(2) == 0 {
				return games.ChoiceEven
			}
			return games.ChoiceOdd
		}}, nil
	case StrategyEven, "always_even":
		return strategyFunc{StrategyEven, func(int) string { return games.ChoiceEven }}, nil
	case StrategyOdd, "always_odd":
		return strategyFunc{StrategyOdd, func(int) string { return games.ChoiceOdd }}, nil
	case StrategyAlternate, "alternating":
		// even rounds -> even, odd rounds -> odd
		return strategyFunc{StrategyAlternate, games.Parity}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// PlayerIdentity is what the player received from the manager at registration.
type PlayerIdentity struct {
	PlayerID  string
	AuthToken string
	LeagueID  string
}

// GameRecord is one finished match as the player saw it.
type GameRecord struct {
	MatchID  string            `json:"match_id"`
	RoundID  int               `json:"round_id"`
	Opponent string            `json:"opponent_id"`
	Choice   string            `json:"choice"`
	Status   models.GameStatus `json:"status"`
	Won      bool              `json:"won"`
}

type PlayerConfig struct {
	ManagerEndpoint string
}

// PlayerService is the player agent's side of the protocol.
type PlayerService struct {
	cfg      PlayerConfig
	strategy Strategy
	caller   gateway.Caller
	logger   *slog.Logger

	mu          sync.Mutex
	identity    PlayerIdentity
	invitations map[string]*models.GameInvitation
	choices     map[string]string
	history     []GameRecord
	standings   []models.Standing
	stats       *models.PlayerStats
	champion    *models.Champion
}

func NewPlayerService(cfg PlayerConfig, strategy Strategy, caller gateway.Caller, logger *slog.Logger) *PlayerService {
	return &PlayerService{
		cfg:         cfg,
		strategy:    strategy,
		caller:      caller,
		logger:      logger,
		invitations: make(map[string]*models.GameInvitation),
		choices:     make(map[string]string),
	}
}

func (s *PlayerService) SetIdentity(id PlayerIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

func (s *PlayerService) Identity() PlayerIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *PlayerService) HandleInvitation(_ context.Context, inv *models.GameInvitation) models.Ack {
	if inv != nil && inv.MatchID != "" {
		s.mu.Lock()
		s.invitations[inv.MatchID] = inv
		s.mu.Unlock()
		s.logger.Info("game invitation accepted",
			slog.String("match_id", inv.MatchID),
			slog.String("opponent_id", inv.OpponentID),
			slog.String("role", inv.RoleInMatch),
		)
	}
	return models.NewAck()
}

func (s *PlayerService) ChooseParity(_ context.Context, call *models.ChooseParityCall) (*models.ChooseParityResponse, error) {
	if call == nil || call.MatchID == "" {
		return nil, missingField("match_id")
	}

	s.mu.Lock()
	roundID := 0
	if call.Context != nil {
		roundID = call.Context.RoundID
	}
	if inv, ok := s.invitations[call.MatchID]; ok && roundID == 0 {
		roundID = inv.RoundID
	}
	choice := s.strategy.Choose(roundID)
	s.choices[call.MatchID] = choice
	playerID := s.identity.PlayerID
	s.mu.Unlock()

	s.logger.Info("parity chosen",
		slog.String("match_id", call.MatchID),
		slog.String("strategy", s.strategy.Name()),
		slog.String("choice", choice),
	)
	return &models.ChooseParityResponse{
		Protocol:     models.ProtocolName,
		MessageType:  models.MsgChooseParityResponse,
		Sender:       models.FormatSender(models.RolePlayer, playerID),
		Timestamp:    timestampNow(),
		MatchID:      call.MatchID,
		ParityChoice: choice,
	}, nil
}

func (s *PlayerService) HandleGameOver(_ context.Context, msg *models.GameOver) models.Ack {
	if msg == nil || msg.GameResult == nil {
		return models.NewAck()
	}
	s.mu.Lock()
	rec := GameRecord{
		MatchID: msg.MatchID,
		Choice:  s.choices[msg.MatchID],
		Status:  msg.GameResult.Status,
		Won:     msg.GameResult.WinnerPlayerID != nil && *msg.GameResult.WinnerPlayerID == s.identity.PlayerID,
	}
	if inv, ok := s.invitations[msg.MatchID]; ok {
		rec.RoundID = inv.RoundID
		rec.Opponent = inv.OpponentID
	}
	delete(s.invitations, msg.MatchID)
	delete(s.choices, msg.MatchID)
	s.history = append(s.history, rec)
	s.mu.Unlock()

	s.logger.Info("game over",
		slog.String("match_id", msg.MatchID),
		slog.String("status", string(rec.Status)),
		slog.Bool("won", rec.Won),
		slog.Int("drawn_number", msg.GameResult.DrawnNumber),
	)
	return models.NewAck()
}

func (s *PlayerService) HandleRoundAnnouncement(_ context.Context, msg *models.RoundAnnouncement) models.Ack {
	if msg != nil {
		mine := 0
		id := s.Identity().PlayerID
		for _, m := range msg.Matches {
			if m.PlayerA == id || m.PlayerB == id {
				mine++
			}
		}
		s.logger.Info("round announced", slog.Int("round_id", msg.RoundID), slog.Int("my_matches", mine))
	}
	return models.NewAck()
}

func (s *PlayerService) HandleStandings(_ context.Context, msg *models.StandingsUpdate) models.Ack {
	if msg != nil {
		s.mu.Lock()
		s.standings = append([]models.Standing(nil), msg.Standings...)
		s.mu.Unlock()
		s.logger.Info("standings received", slog.Int("round_id", msg.RoundID), slog.Int("rows", len(msg.Standings)))
	}
	return models.NewAck()
}

// HandleRoundCompleted acknowledges the round and refreshes the player's own
// stats from the manager in the background.
func (s *PlayerService) HandleRoundCompleted(ctx context.Context, msg *models.RoundCompleted) models.Ack {
	if msg != nil {
		s.logger.Info("round completed", slog.Int("round_id", msg.RoundID), slog.Any("next_round_id", msg.NextRoundID))
		go s.refreshStats(context.WithoutCancel(ctx))
	}
	return models.NewAck()
}

func (s *PlayerService) HandleLeagueCompleted(_ context.Context, msg *models.LeagueCompleted) models.Ack {
	if msg != nil && msg.Champion != nil {
		s.mu.Lock()
		champion := *msg.Champion
		s.champion = &champion
		s.mu.Unlock()
		s.logger.Info("league completed",
			slog.String("champion", msg.Champion.PlayerID),
			slog.Int("champion_points", msg.Champion.Points),
		)
	}
	return models.NewAck()
}

// QueryLeague sends an authenticated LEAGUE_QUERY to the manager.
func (s *PlayerService) QueryLeague(ctx context.Context, queryType string, params map[string]any) (*models.LeagueQueryResponse, error) {
	id := s.Identity()
	if id.PlayerID == "" {
		return nil, ErrAuthTokenMissing
	}
	q := &models.LeagueQuery{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgLeagueQuery,
		Sender:         models.FormatSender(models.RolePlayer, id.PlayerID),
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("query"),
		AuthToken:      id.AuthToken,
		LeagueID:       id.LeagueID,
		QueryType:      queryType,
		QueryParams:    params,
	}
	var resp models.LeagueQueryResponse
	if err := s.caller.Call(ctx, s.cfg.ManagerEndpoint, models.ToolHandleLeagueQuery, q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *PlayerService) refreshStats(ctx context.Context) {
	resp, err := s.QueryLeague(ctx, models.QueryGetPlayerStats, nil)
	if err != nil {
		s.logger.Warn("failed to refresh stats", slog.Any("error", err))
		return
	}
	if !resp.Success || resp.Data == nil {
		return
	}
	stats, err := decodeInto[models.PlayerStats](resp.Data)
	if err != nil {
		s.logger.Warn("unexpected stats payload", slog.Any("error", err))
		return
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
	s.logger.Info("stats refreshed", slog.Int("points", stats.Stats.Points), slog.Int("played", stats.Stats.Played))
}

// PlayerStatus is the player's local view, served on its status endpoint.
type PlayerStatus struct {
	PlayerID  string              `json:"player_id"`
	LeagueID  string              `json:"league_id"`
	Strategy  string              `json:"strategy"`
	History   []GameRecord        `json:"history"`
	Standings []models.Standing   `json:"standings,omitempty"`
	Stats     *models.PlayerStats `json:"stats,omitempty"`
	Champion  *models.Champion    `json:"champion,omitempty"`
}

func (s *PlayerService) Status() *PlayerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &PlayerStatus{
		PlayerID:  s.identity.PlayerID,
		LeagueID:  s.identity.LeagueID,
		Strategy:  s.strategy.Name(),
		History:   append([]GameRecord(nil), s.history...),
		Standings: append([]models.Standing(nil), s.standings...),
		Stats:     s.stats,
		Champion:  s.champion,
	}
}

// History returns the finished games in arrival order.
func (s *PlayerService) History() []GameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]GameRecord(nil), s.history...)
}

func (s *PlayerService) Stats() *models.PlayerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return nil
	}
	cp := *s.stats
	return &cp
}

// RegisterReferee registers a referee agent with the manager.
func RegisterReferee(ctx context.Context, caller gateway.Caller, managerEndpoint string, meta *models.RefereeMeta) (*models.RegistrationResponse, error) {
	req := &models.RefereeRegisterRequest{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgRefereeRegisterRequest,
		Sender:         "referee:" + meta.DisplayName,
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("register"),
		RefereeMeta:    meta,
	}
	return register(ctx, caller, managerEndpoint, models.ToolRegisterReferee, req)
}

// RegisterPlayer registers a player agent with the manager.
func RegisterPlayer(ctx context.Context, caller gateway.Caller, managerEndpoint string, meta *models.PlayerMeta) (*models.RegistrationResponse, error) {
	req := &models.PlayerRegisterRequest{
		Protocol:       models.ProtocolName,
		MessageType:    models.MsgLeagueRegisterRequest,
		Sender:         "player:" + meta.DisplayName,
		Timestamp:      timestampNow(),
		ConversationID: newConversationID("register"),
		PlayerMeta:     meta,
	}
	return register(ctx, caller, managerEndpoint, models.ToolRegisterPlayer, req)
}

func register(ctx context.Context, caller gateway.Caller, endpoint, tool string, req any) (*models.RegistrationResponse, error) {
	var resp models.RegistrationResponse
	if err := caller.Call(ctx, endpoint, tool, req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", tool, err)
	}
	if resp.Status != models.RegistrationAccepted {
		return &resp, fmt.Errorf("%s rejected: %s", tool, derefString(resp.Reason))
	}
	return &resp, nil
}
