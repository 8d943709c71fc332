package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/services"
)

type RefereeToolsHandler struct {
	runner      *services.MatchRunner
	coordinator *services.MatchCoordinator
	logger      *slog.Logger
}

func NewRefereeToolsHandler(runner *services.MatchRunner, coordinator *services.MatchCoordinator, logger *slog.Logger) *RefereeToolsHandler {
	return &RefereeToolsHandler{runner: runner, coordinator: coordinator, logger: logger}
}

func (h *RefereeToolsHandler) Register(s *gateway.ToolServer) error {
	return errors.Join(
		gateway.AddTool(s, models.ToolStartMatch, "Start refereeing a scheduled match", h.StartMatch),
		gateway.AddTool(s, models.ToolNotifyLeagueComplete, "League completion notice", h.NotifyLeagueCompleted),
	)
}

// StartMatch принимает матч и сразу отвечает STARTED, сама игра идёт в фоне.
func (h *RefereeToolsHandler) StartMatch(_ context.Context, req models.StartMatchRequest) (any, error) {
	resp, err := h.runner.Start(&req)
	if err != nil {
		le := mapServiceErrorToLeagueError(err, models.MsgStartMatch)
		le.ConversationID = req.ConversationID
		if id, ok := h.coordinator.Identity(); ok {
			le.Sender = models.FormatSender(models.RoleReferee, id.RefereeID)
		}
		if req.MatchID != "" {
			le.Context["match_id"] = req.MatchID
		}
		h.logger.Warn("start_match rejected",
			slog.String("match_id", req.MatchID),
			slog.String("error_code", le.ErrorCode),
			slog.Any("error", err),
		)
		return nil, le
	}
	h.logger.Info("match accepted", slog.String("match_id", req.MatchID), slog.Int("round_id", req.RoundID))
	return resp, nil
}

func (h *RefereeToolsHandler) NotifyLeagueCompleted(_ context.Context, msg models.LeagueCompleted) (any, error) {
	attrs := []any{slog.String("league_id", msg.LeagueID), slog.Int("total_matches", msg.TotalMatches)}
	if msg.Champion != nil {
		attrs = append(attrs, slog.String("champion", msg.Champion.PlayerID))
	}
	h.logger.Info("league completed", attrs...)
	return models.NewAck(), nil
}
