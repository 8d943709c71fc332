package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/services"
)

// ManagerToolsHandler отдаёт инструменты менеджера лиги: регистрацию,
// приём результатов и запросы к таблице.
type ManagerToolsHandler struct {
	registry services.RegistryService
	league   services.LeagueService
	queries  services.QueryService
	logger   *slog.Logger
}

func NewManagerToolsHandler(
	registry services.RegistryService,
	league services.LeagueService,
	queries services.QueryService,
	logger *slog.Logger,
) *ManagerToolsHandler {
	return &ManagerToolsHandler{
		registry: registry,
		league:   league,
		queries:  queries,
		logger:   logger,
	}
}

func (h *ManagerToolsHandler) Register(s *gateway.ToolServer) error {
	return errors.Join(
		gateway.AddTool(s, models.ToolRegisterReferee, "Register a referee with the league", h.RegisterReferee),
		gateway.AddTool(s, models.ToolRegisterPlayer, "Register a player with the league", h.RegisterPlayer),
		gateway.AddTool(s, models.ToolReportMatchResult, "Report the result of a finished match", h.ReportMatchResult),
		gateway.AddTool(s, models.ToolGetStandings, "Current league standings", h.GetStandings),
		gateway.AddTool(s, models.ToolHandleLeagueQuery, "Authenticated league queries", h.HandleLeagueQuery),
	)
}

func (h *ManagerToolsHandler) RegisterReferee(ctx context.Context, req models.RefereeRegisterRequest) (any, error) {
	resp, err := h.registry.RegisterReferee(ctx, req.RefereeMeta)
	if err != nil {
		return nil, h.leagueError(err, models.MsgRefereeRegisterRequest, req.ConversationID)
	}
	return resp, nil
}

func (h *ManagerToolsHandler) RegisterPlayer(ctx context.Context, req models.PlayerRegisterRequest) (any, error) {
	resp, err := h.registry.RegisterPlayer(ctx, req.PlayerMeta)
	if err != nil {
		return nil, h.leagueError(err, models.MsgLeagueRegisterRequest, req.ConversationID)
	}
	return resp, nil
}

func (h *ManagerToolsHandler) ReportMatchResult(ctx context.Context, req models.MatchResultReport) (any, error) {
	ack, err := h.league.ReportMatchResult(ctx, &req)
	if err != nil {
		le := h.leagueError(err, models.MsgMatchResultReport, req.ConversationID)
		if req.MatchID != "" {
			le.Context["match_id"] = req.MatchID
		}
		if le.ErrorCode == CodeAuthTokenInvalid {
			le.Context["sender"] = req.Sender
		}
		return nil, le
	}
	return ack, nil
}

func (h *ManagerToolsHandler) GetStandings(ctx context.Context, _ models.StandingsRequest) (any, error) {
	standings := h.queries.Standings(ctx)
	if standings == nil {
		standings = []models.Standing{}
	}
	return &models.StandingsResponse{Standings: standings}, nil
}

func (h *ManagerToolsHandler) HandleLeagueQuery(ctx context.Context, q models.LeagueQuery) (any, error) {
	resp, err := h.queries.HandleQuery(ctx, &q)
	if err != nil {
		le := h.leagueError(err, models.MsgLeagueQuery, q.ConversationID)
		if le.ErrorCode == CodeAuthTokenInvalid {
			le.Context["sender"] = q.Sender
		}
		return nil, le
	}
	return resp, nil
}

func (h *ManagerToolsHandler) leagueError(err error, originalType, conversationID string) *models.LeagueError {
	le := mapServiceErrorToLeagueError(err, originalType)
	le.ConversationID = conversationID
	if le.ErrorCode == CodeInternal {
		h.logger.Error("tool call failed", slog.String("message_type", originalType), slog.Any("error", err))
	} else {
		h.logger.Warn("tool call rejected",
			slog.String("message_type", originalType),
			slog.String("error_code", le.ErrorCode),
			slog.Any("error", err),
		)
	}
	return le
}
