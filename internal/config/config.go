package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config is the full process configuration, read once at startup.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	DatabasePath     string `env:"DATABASE_PATH" envDefault:"data/bastion.db"`
	IncidentLogPath  string `env:"INCIDENT_LOG_PATH" envDefault:"data/incidents.json"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile          string `env:"LOG_FILE"`
	StatsListenAddr  string `env:"STATS_LISTEN_ADDR" envDefault:":8179"`
	TelegramTokenKey string `env:"TELEGRAM_TOKEN_KEY"`

	Threat ThreatDefaults

	InitSlashCommands bool `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
}

// ThreatDefaults are the global anti-nuke settings applied to any guild that
// has not overridden them. Env names match the original deployment.
type ThreatDefaults struct {
	Threshold      float64 `env:"THREAT_SCORE_THRESHOLD" envDefault:"25"`
	DecayPerSecond float64 `env:"SCORE_DECAY_PER_SECOND" envDefault:"2"`
	ChannelDelete  float64 `env:"SCORE_PER_CHANNEL_DELETE" envDefault:"10"`
	ChannelCreate  float64 `env:"SCORE_PER_CHANNEL_CREATE" envDefault:"10"`
	RoleCreate     float64 `env:"SCORE_PER_ROLE_CREATE" envDefault:"5"`
	Ban            float64 `env:"SCORE_PER_BAN" envDefault:"8"`
	Kick           float64 `env:"SCORE_PER_KICK" envDefault:"8"`
	WebhookCreate  float64 `env:"SCORE_PER_WEBHOOK_CREATE" envDefault:"5"`
}

// New reads configuration from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
