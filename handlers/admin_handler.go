package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/agent-league/services"
	"github.com/Dosada05/agent-league/utils"
)

const (
	adminSubject  = "league_admin"
	adminTokenTTL = 12 * time.Hour
)

type LoginInput struct {
	Password string `json:"password"`
}

// AdminHandler отдаёт оператору состояние лиги. Вход по паролю, дальше JWT.
type AdminHandler struct {
	league       services.LeagueService
	passwordHash string
	jwtSecret    []byte
}

func NewAdminHandler(league services.LeagueService, passwordHash, jwtSecret string) *AdminHandler {
	return &AdminHandler{
		league:       league,
		passwordHash: passwordHash,
		jwtSecret:    []byte(jwtSecret),
	}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input LoginInput

	err := readJSON(w, r, &input)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if input.Password == "" {
		badRequestResponse(w, r, errors.New("password is required"))
		return
	}

	if !utils.CheckPasswordHash(input.Password, h.passwordHash) {
		unauthorizedResponse(w, r, "invalid credentials")
		return
	}

	now := timeNow()
	claims := jwt.MapClaims{
		"sub":  adminSubject,
		"role": "admin",
		"exp":  now.Add(adminTokenTTL).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		serverErrorResponse(w, r, fmt.Errorf("failed to sign token: %w", err))
		return
	}

	err = writeJSON(w, http.StatusOK, jsonResponse{"token": tokenString}, nil)
	if err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) GetLeague(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, jsonResponse{"league": h.league.Snapshot()}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) GetStandings(w http.ResponseWriter, r *http.Request) {
	response := jsonResponse{
		"phase":     h.league.Phase(),
		"standings": h.league.Standings(),
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	if matchID == "" {
		badRequestResponse(w, r, errors.New("match id is required"))
		return
	}

	match, ok := h.league.Snapshot().Matches[matchID]
	if !ok {
		notFoundResponse(w, r)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
