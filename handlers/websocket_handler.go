package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/agent-league/brackets"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Зрители только читают ленту событий, Origin не проверяем.
		return true
	},
}

type WebSocketHandler struct {
	hub      *brackets.Hub
	leagueID string
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *brackets.Hub, leagueID string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, leagueID: leagueID, logger: logger}
}

// ServeWs подключает зрителя к комнате лиги. Комната совпадает с league_id.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		h.logger.Warn("websocket upgrade failed", slog.String("remote_addr", r.RemoteAddr), slog.Any("error", err))
		return
	}

	client := &brackets.Client{
		Hub:  h.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: h.leagueID,
	}
	if !h.hub.Join(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "league server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()

	h.logger.Debug("spectator joined", slog.String("room", h.leagueID), slog.String("remote_addr", r.RemoteAddr))
}
