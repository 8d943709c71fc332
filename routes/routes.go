package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/Dosada05/agent-league/gateway"
	"github.com/Dosada05/agent-league/handlers"
	"github.com/Dosada05/agent-league/middleware"
)

type ManagerRoutes struct {
	Tools     *gateway.ToolServer
	WebSocket *handlers.WebSocketHandler
	// Admin nil, если ADMIN_PASSWORD_HASH не задан.
	Admin          *handlers.AdminHandler
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

func SetupManagerRoutes(router chi.Router, rt ManagerRoutes) {
	useCommon(router)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", health)

	router.With(middleware.RateLimit(rt.RateLimitRPS, rt.RateLimitBurst)).Handle("/mcp", rt.Tools.Handler())

	router.Get("/ws/league", rt.WebSocket.ServeWs)

	if rt.Admin == nil {
		return
	}
	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", rt.Admin.Login)

		// Защищенные маршруты оператора
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.JWTSecret))

			r.Get("/league", rt.Admin.GetLeague)
			r.Get("/standings", rt.Admin.GetStandings)
			r.Get("/matches/{matchID}", rt.Admin.GetMatch)
		})
	})
}

func SetupRefereeRoutes(router chi.Router, tools *gateway.ToolServer) {
	useCommon(router)
	router.Get("/health", health)
	router.Handle("/mcp", tools.Handler())
}

func SetupPlayerRoutes(router chi.Router, tools *gateway.ToolServer, player *handlers.PlayerToolsHandler) {
	useCommon(router)
	router.Get("/health", health)
	router.Handle("/mcp", tools.Handler())
	router.Get("/status", player.Status)
}

func useCommon(router chi.Router) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
