package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Общие параметры, которые читают все три процесса лиги.
type Common struct {
	ServerPort      int           `env:"SERVER_PORT"`
	PublicEndpoint  string        `env:"PUBLIC_ENDPOINT"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	CallTimeout     time.Duration `env:"CALL_TIMEOUT" envDefault:"10s"`
	RetryAttempts   int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay      time.Duration `env:"RETRY_DELAY" envDefault:"2s"`
	OTELEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type Scoring struct {
	WinPoints           int `env:"WIN_POINTS" envDefault:"3"`
	DrawPoints          int `env:"DRAW_POINTS" envDefault:"1"`
	LossPoints          int `env:"LOSS_POINTS" envDefault:"0"`
	TechnicalLossPoints int `env:"TECHNICAL_LOSS_POINTS" envDefault:"0"`
}

type Manager struct {
	Common
	Scoring

	LeagueID                string        `env:"LEAGUE_ID" envDefault:"league_2025_even_odd"`
	GameType                string        `env:"GAME_TYPE" envDefault:"even_odd"`
	RegistrationTimeout     time.Duration `env:"REGISTRATION_TIMEOUT" envDefault:"60s"`
	RequiredProtocolVersion string        `env:"REQUIRED_PROTOCOL_VERSION" envDefault:"2.1.0"`
	MinPlayers              int           `env:"MIN_PLAYERS" envDefault:"2"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`

	JWTSecretKey      string `env:"JWT_SECRET_KEY"`
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	R2AccountID       string `env:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `env:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `env:"R2_BUCKET_NAME"`
	R2PublicBaseURL   string `env:"R2_PUBLIC_BASE_URL"`

	ResendAPIKey string   `env:"RESEND_API_KEY"`
	ReportFrom   string   `env:"REPORT_EMAIL_FROM"`
	ReportTo     []string `env:"REPORT_EMAIL_TO" envSeparator:","`
}

type Referee struct {
	Common

	DisplayName          string        `env:"REFEREE_NAME" envDefault:"Referee"`
	Version              string        `env:"REFEREE_VERSION" envDefault:"1.0.0"`
	ManagerEndpoint      string        `env:"MANAGER_ENDPOINT" envDefault:"http://localhost:8000/mcp"`
	GameTypes            []string      `env:"GAME_TYPES" envSeparator:"," envDefault:"even_odd"`
	MaxConcurrentMatches int           `env:"MAX_CONCURRENT_MATCHES" envDefault:"2"`
	ChoiceTimeout        time.Duration `env:"CHOICE_TIMEOUT" envDefault:"30s"`
	ChoiceAttempts       int           `env:"CHOICE_ATTEMPTS" envDefault:"3"`
	ChoiceRetryDelay     time.Duration `env:"CHOICE_RETRY_DELAY" envDefault:"2s"`
	InvitationTimeout    time.Duration `env:"INVITATION_TIMEOUT" envDefault:"5s"`
}

type Player struct {
	Common

	DisplayName     string   `env:"PLAYER_NAME" envDefault:"Player"`
	AgentVersion    string   `env:"PLAYER_VERSION" envDefault:"1.0.0"`
	ProtocolVersion string   `env:"PROTOCOL_VERSION" envDefault:"2.1.0"`
	ManagerEndpoint string   `env:"MANAGER_ENDPOINT" envDefault:"http://localhost:8000/mcp"`
	GameTypes       []string `env:"GAME_TYPES" envSeparator:"," envDefault:"even_odd"`
	Strategy        string   `env:"STRATEGY" envDefault:"random"`
}

// LoadManager загружает конфигурацию менеджера лиги.
func LoadManager() (*Manager, error) {
	cfg := &Manager{}
	if err := parse(cfg, 8000); err != nil {
		return nil, err
	}
	if err := cfg.Common.validate(); err != nil {
		return nil, err
	}
	if cfg.GameType == "" {
		return nil, fmt.Errorf("GAME_TYPE must not be empty")
	}
	if cfg.RegistrationTimeout <= 0 {
		return nil, fmt.Errorf("REGISTRATION_TIMEOUT must be positive, got %s", cfg.RegistrationTimeout)
	}
	if cfg.MinPlayers < 2 {
		return nil, fmt.Errorf("MIN_PLAYERS must be at least 2, got %d", cfg.MinPlayers)
	}
	switch cfg.StoreDriver {
	case "memory":
	case "postgres", "sqlite":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=%s", cfg.StoreDriver)
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.AdminPasswordHash != "" && cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}
	return cfg, nil
}

// R2Enabled reports whether every archive setting is present.
func (m *Manager) R2Enabled() bool {
	return m.R2AccountID != "" && m.R2AccessKeyID != "" && m.R2SecretAccessKey != "" &&
		m.R2BucketName != "" && m.R2PublicBaseURL != ""
}

func (m *Manager) EmailEnabled() bool {
	return m.ResendAPIKey != "" && m.ReportFrom != "" && len(m.ReportTo) > 0
}

func (m *Manager) AdminEnabled() bool {
	return m.AdminPasswordHash != "" && m.JWTSecretKey != ""
}

func LoadReferee() (*Referee, error) {
	cfg := &Referee{}
	if err := parse(cfg, 8001); err != nil {
		return nil, err
	}
	if err := cfg.Common.validate(); err != nil {
		return nil, err
	}
	if len(cfg.GameTypes) == 0 {
		return nil, fmt.Errorf("GAME_TYPES must list at least one game")
	}
	if cfg.MaxConcurrentMatches <= 0 {
		return nil, fmt.Errorf("MAX_CONCURRENT_MATCHES must be positive, got %d", cfg.MaxConcurrentMatches)
	}
	if cfg.ChoiceAttempts <= 0 {
		return nil, fmt.Errorf("CHOICE_ATTEMPTS must be positive, got %d", cfg.ChoiceAttempts)
	}
	return cfg, nil
}

func LoadPlayer() (*Player, error) {
	cfg := &Player{}
	if err := parse(cfg, 8101); err != nil {
		return nil, err
	}
	if err := cfg.Common.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type withCommon interface {
	common() *Common
}

func (m *Manager) common() *Common { return &m.Common }
func (r *Referee) common() *Common { return &r.Common }
func (p *Player) common() *Common  { return &p.Common }

func parse(cfg withCommon, defaultPort int) error {
	// .env нужен только для локальной разработки, его отсутствие не ошибка.
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c := cfg.common()
	if c.ServerPort == 0 {
		c.ServerPort = defaultPort
	}
	if c.PublicEndpoint == "" {
		c.PublicEndpoint = fmt.Sprintf("http://localhost:%d/mcp", c.ServerPort)
	}
	return nil
}

func (c *Common) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	return nil
}

func (c *Common) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
