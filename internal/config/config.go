package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"fairplay-backend/internal/models"
)

const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"casino.db"`

	RedisURL  string `env:"REDIS_URL"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	APIKey    string        `env:"API_KEY"`

	StartingBalance decimal.Decimal `env:"STARTING_BALANCE" envDefault:"1000"`
	PointValue      decimal.Decimal `env:"POINT_VALUE" envDefault:"0.000180"`
	AutoClientSeed  bool            `env:"AUTO_CLIENT_SEED" envDefault:"true"`

	RoundIdleTimeout time.Duration `env:"ROUND_IDLE_TIMEOUT" envDefault:"120s"`
	SweepInterval    time.Duration `env:"ROUND_SWEEP_INTERVAL" envDefault:"30s"`

	HouseEdgeCoinflip decimal.Decimal `env:"HOUSE_EDGE_COINFLIP" envDefault:"0.02"`
	HouseEdgeSlots    decimal.Decimal `env:"HOUSE_EDGE_SLOTS" envDefault:"0.06"`
	HouseEdgeMines    decimal.Decimal `env:"HOUSE_EDGE_MINES" envDefault:"0.08"`
	HouseEdgeBlinko   decimal.Decimal `env:"HOUSE_EDGE_BLINKO" envDefault:"0.07"`
	HouseEdgeDefault  decimal.Decimal `env:"HOUSE_EDGE_DEFAULT" envDefault:"0.05"`

	RateLimitPlays   int           `env:"RATE_LIMIT_PLAYS" envDefault:"30"`
	RateLimitReveals int           `env:"RATE_LIMIT_REVEALS" envDefault:"120"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load parses the environment. Callers load a .env file first if they want one.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RoundIdleTimeout <= 0 {
		return fmt.Errorf("ROUND_IDLE_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("ROUND_SWEEP_INTERVAL must be positive")
	}
	if c.StartingBalance.IsNegative() {
		return fmt.Errorf("STARTING_BALANCE must not be negative")
	}
	for game, edge := range c.HouseEdges() {
		if edge.IsNegative() || edge.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("house edge for %s must be in [0, 1), got %s", game, edge)
		}
	}
	if c.HouseEdgeDefault.IsNegative() || c.HouseEdgeDefault.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("HOUSE_EDGE_DEFAULT must be in [0, 1), got %s", c.HouseEdgeDefault)
	}
	return nil
}

func (c *Config) HouseEdges() map[models.GameType]decimal.Decimal {
	return map[models.GameType]decimal.Decimal{
		models.GameTypeCoinFlip: c.HouseEdgeCoinflip,
		models.GameTypeSlots:    c.HouseEdgeSlots,
		models.GameTypeMines:    c.HouseEdgeMines,
		models.GameTypeBlinko:   c.HouseEdgeBlinko,
	}
}

func (c *Config) Production() bool {
	return c.Env == "production"
}
