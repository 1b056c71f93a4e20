package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the chat service.
type Config struct {
	Addr            string        `env:"ADDR" env-default:":8080"`
	DatabaseDSN     string        `env:"DB_DSN" env-required:"true"`
	JWTSecret       string        `env:"JWT_SECRET" env-required:"true"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" env-default:"24h"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"10s"`

	Log struct {
		Format string `env:"LOG_FORMAT" env-default:"text"`
		Level  string `env:"LOG_LEVEL" env-default:"info"`
	}

	Chat struct {
		Path           string   `env:"WS_PATH" env-default:"/ws"`
		AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" env-separator:","`
		HistoryLimit   int      `env:"HISTORY_LIMIT" env-default:"50"`
		SendBuffer     int      `env:"SEND_BUFFER" env-default:"256"`
	}

	Bridge struct {
		RedisAddr       string `env:"BRIDGE_REDIS_ADDR"`
		InboundChannel  string `env:"BRIDGE_INBOUND_CHANNEL" env-default:"chat:discord:inbound"`
		OutboundChannel string `env:"BRIDGE_OUTBOUND_CHANNEL" env-default:"chat:discord:outbound"`
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if cfg.DatabaseDSN == "" || cfg.JWTSecret == "" {
		return nil, errors.New("DB_DSN and JWT_SECRET must be set")
	}
	if cfg.Chat.HistoryLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.Chat.HistoryLimit)
	}
	return &cfg, nil
}

// BridgeEnabled reports whether the Discord relay should be started.
func (c *Config) BridgeEnabled() bool {
	return c.Bridge.RedisAddr != ""
}
