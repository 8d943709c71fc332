package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/services"
)

type PlayerToolsHandler struct {
	player *services.PlayerService
	logger *slog.Logger
}

func NewPlayerToolsHandler(player *services.PlayerService, logger *slog.Logger) *PlayerToolsHandler {
	return &PlayerToolsHandler{player: player, logger: logger}
}

func (h *PlayerToolsHandler) Register(s *gateway.ToolServer) error {
	return errors.Join(
		gateway.AddTool(s, models.ToolReceiveInvitation, "Accept a game invitation", h.ReceiveInvitation),
		gateway.AddTool(s, models.ToolChooseParity, "Choose even or odd", h.ChooseParity),
		gateway.AddTool(s, models.ToolReceiveGameOver, "Game result notice", h.ReceiveGameOver),
		gateway.AddTool(s, models.ToolNotifyRound, "Round announcement", h.NotifyRound),
		gateway.AddTool(s, models.ToolNotifyStandings, "Standings update", h.NotifyStandings),
		gateway.AddTool(s, models.ToolNotifyRoundCompleted, "Round completion notice", h.NotifyRoundCompleted),
		gateway.AddTool(s, models.ToolNotifyLeagueComplete, "League completion notice", h.NotifyLeagueCompleted),
	)
}

func (h *PlayerToolsHandler) ReceiveInvitation(ctx context.Context, inv models.GameInvitation) (any, error) {
	return h.player.HandleInvitation(ctx, &inv), nil
}

func (h *PlayerToolsHandler) ChooseParity(ctx context.Context, call models.ChooseParityCall) (any, error) {
	resp, err := h.player.ChooseParity(ctx, &call)
	if err != nil {
		le := mapServiceErrorToLeagueError(err, models.MsgChooseParityCall)
		le.Sender = models.FormatSender(models.RolePlayer, h.player.Identity().PlayerID)
		le.ConversationID = call.ConversationID
		return nil, le
	}
	return resp, nil
}

func (h *PlayerToolsHandler) ReceiveGameOver(ctx context.Context, msg models.GameOver) (any, error) {
	return h.player.HandleGameOver(ctx, &msg), nil
}

func (h *PlayerToolsHandler) NotifyRound(ctx context.Context, msg models.RoundAnnouncement) (any, error) {
	return h.player.HandleRoundAnnouncement(ctx, &msg), nil
}

func (h *PlayerToolsHandler) NotifyStandings(ctx context.Context, msg models.StandingsUpdate) (any, error) {
	return h.player.HandleStandings(ctx, &msg), nil
}

func (h *PlayerToolsHandler) NotifyRoundCompleted(ctx context.Context, msg models.RoundCompleted) (any, error) {
	return h.player.HandleRoundCompleted(ctx, &msg), nil
}

func (h *PlayerToolsHandler) NotifyLeagueCompleted(ctx context.Context, msg models.LeagueCompleted) (any, error) {
	return h.player.HandleLeagueCompleted(ctx, &msg), nil
}

// Status отдаёт локальное состояние игрока: историю, таблицу и чемпиона.
func (h *PlayerToolsHandler) Status(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, h.player.Status(), nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
