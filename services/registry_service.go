package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/agent-league/models"
	"github.com/Dosada05/agent-league/repositories"
	"github.com/Dosada05/agent-league/utils"
)

const reasonGameTypeNotSupported = "Game type not supported"

// defaultProtocolVersion is assumed when a player omits protocol_version.
const defaultProtocolVersion = "1.0.0"

type RegistryConfig struct {
	LeagueID                string
	GameType                string
	RequiredProtocolVersion string
}

type RegistryService interface {
	RegisterReferee(ctx context.Context, meta *models.RefereeMeta) (*models.RegistrationResponse, error)
	RegisterPlayer(ctx context.Context, meta *models.PlayerMeta) (*models.RegistrationResponse, error)

	ValidateToken(sender, token string) bool
	Authenticate(sender, token string) (*models.Participant, error)

	CloseRegistration() bool
	RegistrationOpen() bool

	Players() []*models.Participant
	Referees() []*models.Participant
	Participant(id string) (*models.Participant, bool)
}

type registryService struct {
	cfg    RegistryConfig
	repo   repositories.LeagueRepository
	logger *slog.Logger
	now    func() time.Time

	mu             sync.RWMutex
	open           bool
	playerCounter  int
	refereeCounter int
	participants   map[string]*models.Participant
	players        []string
	referees       []string
}

func NewRegistryService(cfg RegistryConfig, repo repositories.LeagueRepository, logger *slog.Logger) RegistryService {
	return &registryService{
		cfg:          cfg,
		repo:         repo,
		logger:       logger,
		now:          time.Now,
		open:         true,
		participants: make(map[string]*models.Participant),
	}
}

func (s *registryService) RegisterReferee(ctx context.Context, meta *models.RefereeMeta) (*models.RegistrationResponse, error) {
	if meta == nil {
		return nil, missingField("referee_meta")
	}
	switch {
	case meta.DisplayName == "":
		return nil, missingField("display_name")
	case meta.Version == "":
		return nil, missingField("version")
	case len(meta.GameTypes) == 0:
		return nil, missingField("game_types")
	case meta.ContactEndpoint == "":
		return nil, missingField("contact_endpoint")
	}

	maxConcurrent := meta.MaxConcurrentMatches
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	p, err := s.register(models.RoleReferee, func(id string) *models.Participant {
		return &models.Participant{
			ID:                   id,
			Role:                 models.RoleReferee,
			DisplayName:          meta.DisplayName,
			Version:              meta.Version,
			Endpoint:             meta.ContactEndpoint,
			GameTypes:            append([]string(nil), meta.GameTypes...),
			MaxConcurrentMatches: maxConcurrent,
		}
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, p)

	s.logger.Info("referee registered",
		slog.String("referee_id", p.ID),
		slog.String("display_name", p.DisplayName),
		slog.String("endpoint", p.Endpoint),
	)

	return &models.RegistrationResponse{
		MessageType: models.MsgRefereeRegisterResponse,
		Status:      models.RegistrationAccepted,
		RefereeID:   p.ID,
		AuthToken:   p.AuthToken,
	}, nil
}

func (s *registryService) RegisterPlayer(ctx context.Context, meta *models.PlayerMeta) (*models.RegistrationResponse, error) {
	if !s.RegistrationOpen() {
		return nil, ErrRegistrationClosed
	}
	if meta == nil {
		return nil, missingField("player_meta")
	}

	version := meta.ProtocolVersion
	if version == "" {
		version = defaultProtocolVersion
	}
	if majorVersion(version) != majorVersion(s.cfg.RequiredProtocolVersion) {
		return nil, fmt.Errorf("%w: provided %s, required %s", ErrProtocolVersionMismatch, version, s.cfg.RequiredProtocolVersion)
	}

	if !containsString(meta.GameTypes, s.cfg.GameType) {
		reason := reasonGameTypeNotSupported
		s.logger.Info("player registration rejected",
			slog.String("display_name", meta.DisplayName),
			slog.String("reason", reason),
		)
		return &models.RegistrationResponse{
			MessageType: models.MsgLeagueRegisterResponse,
			Status:      models.RegistrationRejected,
			Reason:      &reason,
		}, nil
	}

	if meta.ContactEndpoint == "" {
		return nil, missingField("contact_endpoint")
	}

	p, err := s.register(models.RolePlayer, func(id string) *models.Participant {
		name := meta.DisplayName
		if name == "" {
			name = "Player " + id
		}
		return &models.Participant{
			ID:              id,
			Role:            models.RolePlayer,
			DisplayName:     name,
			Version:         meta.AgentVersion,
			ProtocolVersion: version,
			Endpoint:        meta.ContactEndpoint,
			GameTypes:       append([]string(nil), meta.GameTypes...),
		}
	})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, p)

	s.logger.Info("player registered",
		slog.String("player_id", p.ID),
		slog.String("display_name", p.DisplayName),
		slog.String("endpoint", p.Endpoint),
	)

	return &models.RegistrationResponse{
		MessageType: models.MsgLeagueRegisterResponse,
		Status:      models.RegistrationAccepted,
		PlayerID:    p.ID,
		AuthToken:   p.AuthToken,
		LeagueID:    s.cfg.LeagueID,
	}, nil
}

// register assigns the next id for role and stores the participant built by
// build, all under one lock so concurrent registrations never share an id.
func (s *registryService) register(role models.ParticipantRole, build func(id string) *models.Participant) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Закрытие могло произойти между проверкой и захватом блокировки.
	if role == models.RolePlayer && !s.open {
		return nil, ErrRegistrationClosed
	}

	var id string
	switch role {
	case models.RolePlayer:
		s.playerCounter++
		id = models.FormatParticipantID(models.PlayerIDPrefix, s.playerCounter)
	case models.RoleReferee:
		s.refereeCounter++
		id = models.FormatParticipantID(models.RefereeIDPrefix, s.refereeCounter)
	default:
		return nil, fmt.Errorf("unknown participant role %q", role)
	}

	token, err := utils.GenerateAuthToken(id)
	if err != nil {
		return nil, fmt.Errorf("failed to mint token for %s: %w", id, err)
	}

	p := build(id)
	p.AuthToken = token
	p.RegisteredAt = s.now().UTC()

	s.participants[id] = p
	if role == models.RolePlayer {
		s.players = append(s.players, id)
	} else {
		s.referees = append(s.referees, id)
	}

	cp := *p
	return &cp, nil
}

func (s *registryService) persist(ctx context.Context, p *models.Participant) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveParticipant(ctx, s.cfg.LeagueID, p); err != nil {
		s.logger.Error("failed to persist participant", slog.String("id", p.ID), slog.Any("error", err))
	}
}

func (s *registryService) ValidateToken(sender, token string) bool {
	_, err := s.Authenticate(sender, token)
	return err == nil
}

// Authenticate resolves sender ("role:id") to its participant when token is
// the one issued at registration.
func (s *registryService) Authenticate(sender, token string) (*models.Participant, error) {
	if token == "" {
		return nil, ErrAuthTokenMissing
	}
	role, id := models.ParseSender(sender)
	if role == "" || id == "" {
		return nil, ErrAuthTokenInvalid
	}

	s.mu.RLock()
	p, ok := s.participants[id]
	s.mu.RUnlock()

	if !ok || p.Role != role || !utils.TokensEqual(p.AuthToken, token) {
		return nil, ErrAuthTokenInvalid
	}
	cp := *p
	return &cp, nil
}

// CloseRegistration closes the player window and reports whether this call did it.
func (s *registryService) CloseRegistration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return false
	}
	s.open = false
	s.logger.Info("player registration closed", slog.Int("players", len(s.players)), slog.Int("referees", len(s.referees)))
	return true
}

func (s *registryService) RegistrationOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

func (s *registryService) Players() []*models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.players)
}

func (s *registryService) Referees() []*models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.referees)
}

func (s *registryService) Participant(id string) (*models.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (s *registryService) copyOf(ids []string) []*models.Participant {
	out := make([]*models.Participant, 0, len(ids))
	for _, id := range ids {
		cp := *s.participants[id]
		out = append(out, &cp)
	}
	return out
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	return major
}
