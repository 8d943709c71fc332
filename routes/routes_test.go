package routes

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/Dosada05/agent-league/brackets"
	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/handlers"
)

func TestManagerRoutesWithoutAdmin(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := chi.NewRouter()
	SetupManagerRoutes(router, ManagerRoutes{
		Tools:     gateway.NewToolServer("manager", "0.0.0", logger),
		WebSocket: handlers.NewWebSocketHandler(brackets.NewHub(logger), "league_test", logger),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefereeRoutesHaveNoStatus(t *testing.T) {
	router := chi.NewRouter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	SetupRefereeRoutes(router, gateway.NewToolServer("referee", "0.0.0", logger))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
