// Package config loads service configuration from an optional YAML file, an optional .env file
// and SLOTAUCTION_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/slotauction/core"
)

const DefaultJWTSecret = "slotauction-dev-secret"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Auction AuctionConfig `yaml:"auction"`
	Store   StoreConfig   `yaml:"store"`
	Logger  LoggerConfig  `yaml:"logger"`
	Client  ClientConfig  `yaml:"client"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type AuctionConfig struct {
	TickInterval  time.Duration `yaml:"tick_interval"`
	Location      string        `yaml:"location"`
	DefaultK      int           `yaml:"default_k"`
	Alpha         float64       `yaml:"alpha"`
	Beta          float64       `yaml:"beta"`
	Gamma         float64       `yaml:"gamma"`
	ScoringMode   string        `yaml:"scoring_mode"`
	NotifyBids    bool          `yaml:"notify_bids"`
	BidLogWorkers int           `yaml:"bid_log_workers"`
}

// Coefficients returns the configured default scoring coefficients.
func (a AuctionConfig) Coefficients() core.Coefficients {
	return core.Coefficients{Alpha: a.Alpha, Beta: a.Beta, Gamma: a.Gamma}
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	BoltPath    string `yaml:"bolt_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode"` // development or production
	Level      string `yaml:"level"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

type ClientConfig struct {
	WSURL             string        `yaml:"ws_url"`
	APIURL            string        `yaml:"api_url"`
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	ResultsRetryDelay time.Duration `yaml:"results_retry_delay"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			JWTSecret: DefaultJWTSecret,
			TokenTTL:  24 * time.Hour,
		},
		Auction: AuctionConfig{
			TickInterval:  time.Second,
			Location:      "UTC",
			DefaultK:      5,
			Alpha:         core.DefaultCoefficients.Alpha,
			Beta:          core.DefaultCoefficients.Beta,
			Gamma:         core.DefaultCoefficients.Gamma,
			ScoringMode:   "linear",
			BidLogWorkers: 8,
		},
		Store: StoreConfig{
			Driver:   "memory",
			BoltPath: "slotauction.db",
		},
		Logger: LoggerConfig{
			Mode:     "development",
			Level:    "info",
			Filename: "logs/slotauction.log",
		},
		Client: ClientConfig{
			WSURL:             "ws://localhost:8080/ws",
			APIURL:            "http://localhost:8080",
			MaxAttempts:       5,
			BaseDelay:         time.Second,
			ResultsRetryDelay: time.Second,
		},
	}
}

// Load reads configuration from path (optional), then .env, then the environment.
func Load(path string) (*Config, error) {
	// Attempt to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type override struct {
	key   string
	apply func(string) error
}

func applyEnvOverrides(cfg *Config) error {
	overrides := []override{
		{"SLOTAUCTION_SERVER_ADDR", setString(&cfg.Server.Addr)},
		{"SLOTAUCTION_JWT_SECRET", setString(&cfg.Auth.JWTSecret)},
		{"SLOTAUCTION_TOKEN_TTL", setDuration(&cfg.Auth.TokenTTL)},
		{"SLOTAUCTION_TICK_INTERVAL", setDuration(&cfg.Auction.TickInterval)},
		{"SLOTAUCTION_DEFAULT_K", setInt(&cfg.Auction.DefaultK)},
		{"SLOTAUCTION_SCORING_MODE", setString(&cfg.Auction.ScoringMode)},
		{"SLOTAUCTION_NOTIFY_BIDS", setBool(&cfg.Auction.NotifyBids)},
		{"SLOTAUCTION_BID_LOG_WORKERS", setInt(&cfg.Auction.BidLogWorkers)},
		{"SLOTAUCTION_STORE_DRIVER", setString(&cfg.Store.Driver)},
		{"SLOTAUCTION_BOLT_PATH", setString(&cfg.Store.BoltPath)},
		{"SLOTAUCTION_POSTGRES_DSN", setString(&cfg.Store.PostgresDSN)},
		{"SLOTAUCTION_LOG_MODE", setString(&cfg.Logger.Mode)},
		{"SLOTAUCTION_LOG_LEVEL", setString(&cfg.Logger.Level)},
		{"SLOTAUCTION_LOG_FILE", setString(&cfg.Logger.Filename)},
		{"SLOTAUCTION_WS_URL", setString(&cfg.Client.WSURL)},
		{"SLOTAUCTION_API_URL", setString(&cfg.Client.APIURL)},
	}

	for _, o := range overrides {
		value, ok := os.LookupEnv(o.key)
		if !ok || value == "" {
			continue
		}
		if err := o.apply(value); err != nil {
			return fmt.Errorf("invalid value for %s: %q: %w", o.key, value, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(v string) (err error) {
		*dst, err = cast.ToIntE(v)
		return err
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) (err error) {
		*dst, err = cast.ToBoolE(v)
		return err
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) (err error) {
		*dst, err = cast.ToDurationE(v)
		return err
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Auth.JWTSecret == "":
		return fmt.Errorf("auth.jwt_secret is required")
	case c.Auction.TickInterval < time.Second:
		return fmt.Errorf("auction.tick_interval must be at least 1s, got %s", c.Auction.TickInterval)
	case c.Auction.DefaultK < 1:
		return fmt.Errorf("auction.default_k must be at least 1, got %d", c.Auction.DefaultK)
	case c.Auction.BidLogWorkers < 1:
		return fmt.Errorf("auction.bid_log_workers must be at least 1, got %d", c.Auction.BidLogWorkers)
	case c.Client.MaxAttempts < 1:
		return fmt.Errorf("client.max_attempts must be at least 1, got %d", c.Client.MaxAttempts)
	case c.Client.BaseDelay <= 0:
		return fmt.Errorf("client.base_delay must be positive")
	}

	if _, err := core.ScorerFor(c.Auction.ScoringMode); err != nil {
		return fmt.Errorf("auction.scoring_mode: %w", err)
	}
	if _, err := time.LoadLocation(c.Auction.Location); err != nil {
		return fmt.Errorf("auction.location: %w", err)
	}
	switch c.Store.Driver {
	case "memory", "bolt", "postgres":
	default:
		return fmt.Errorf("store.driver must be memory, bolt or postgres, got %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
	}
	return nil
}
