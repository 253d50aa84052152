package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/susu3304/bidgame/internal/guess"
)

// minJWTSecretLen matches the HS256 key size.
const minJWTSecretLen = 32

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"bidgame.db"`

	// Web Server
	WebBind      string `env:"WEB_BIND" envDefault:"0.0.0.0:3000"`
	// WebUIBaseURL is derived from DiscordRedirectURI and used for round links.
	WebUIBaseURL string

	// Session. Required; signs API bearer tokens.
	JWTSecret string `env:"JWT_SECRET"`

	// Discord Bot
	DiscordToken      string `env:"DISCORD_TOKEN"`
	AnnounceChannelID string `env:"ANNOUNCE_CHANNEL_ID"`

	// Discord OAuth2
	DiscordClientID     string `env:"DISCORD_CLIENT_ID"`
	DiscordClientSecret string `env:"DISCORD_CLIENT_SECRET"`
	DiscordRedirectURI  string `env:"DISCORD_REDIRECT_URI" envDefault:"http://localhost:3000/api/auth/callback"`

	// Game
	JoinWindow     time.Duration `env:"JOIN_WINDOW" envDefault:"5m"`
	FinalizeWindow time.Duration `env:"FINALIZE_WINDOW" envDefault:"10m"`
	StakeDecimals  int32         `env:"STAKE_DECIMALS" envDefault:"2"`
	// FaucetAmount is credited by the deposit command, in base units. Zero disables it.
	FaucetAmount int64 `env:"FAUCET_AMOUNT" envDefault:"0"`

	// Logging
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Extract base URL from redirect URI
	cfg.WebUIBaseURL = extractBaseURL(cfg.DiscordRedirectURI)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	if c.DiscordClientID != "" && c.DiscordClientSecret == "" {
		return fmt.Errorf("DISCORD_CLIENT_SECRET is required when DISCORD_CLIENT_ID is set")
	}
	if c.StakeDecimals < 0 || c.StakeDecimals > 18 {
		return fmt.Errorf("STAKE_DECIMALS must be between 0 and 18, got %d", c.StakeDecimals)
	}
	if c.FaucetAmount < 0 {
		return fmt.Errorf("FAUCET_AMOUNT must not be negative")
	}
	if err := c.Windows().Validate(); err != nil {
		return fmt.Errorf("JOIN_WINDOW/FINALIZE_WINDOW: %w", err)
	}
	return nil
}

func (c *Config) Windows() guess.Windows {
	return guess.Windows{Join: c.JoinWindow, Finalize: c.FinalizeWindow}
}

// BotEnabled reports whether a Discord bot token is configured.
func (c *Config) BotEnabled() bool {
	return c.DiscordToken != ""
}

// OAuthEnabled reports whether Discord login can issue tokens.
func (c *Config) OAuthEnabled() bool {
	return c.DiscordClientID != ""
}

func extractBaseURL(redirectURI string) string {
	// e.g., "http://localhost:3000/api/auth/callback" -> "http://localhost:3000"
	parsed, err := url.Parse(redirectURI)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "http://localhost:3000"
	}

	return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
}
