package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`
	CookieSecure          bool   `envconfig:"COOKIE_SECURE" default:"false"`

	BusinessTimezone string `envconfig:"BUSINESS_TIMEZONE" default:"Europe/Istanbul"`
	RolloverSchedule string `envconfig:"ROLLOVER_SCHEDULE" default:"@every 1m"`
	RolloverEnabled  bool   `envconfig:"ROLLOVER_ENABLED" default:"true"`

	StatsCacheTTLSeconds int `envconfig:"STATS_CACHE_TTL_SECONDS" default:"30"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	SeedDemoData      bool   `envconfig:"SEED_DEMO_DATA" default:"true"`
	SeedAdminPassword string `envconfig:"SEED_ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then the process environment, which
// wins over the file.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !isMissingFile(err) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)

	if cfg.AccessTokenTTLMinutes < 1 {
		cfg.AccessTokenTTLMinutes = 480
	}
	if cfg.StatsCacheTTLSeconds < 1 {
		cfg.StatsCacheTTLSeconds = 30
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves the timezone that decides which calendar day "today" is.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.StatsCacheTTLSeconds) * time.Second
}
