package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	APIURL        string        `mapstructure:"api_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
	DBPath        string        `mapstructure:"db_path"`

	Poll PollConfig `mapstructure:"poll"`

	QuizTimer bool `mapstructure:"quiz_timer"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // "text" or "json"
}

// PollConfig drives the upload completion poller.
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Warmup   time.Duration `mapstructure:"warmup"`
	Settle   time.Duration `mapstructure:"settle"`
	MaxWait  time.Duration `mapstructure:"max_wait"` // 0 waits forever
}

var envKeys = map[string]string{
	"api_url":        "OPTIMA_API_URL",
	"timeout":        "OPTIMA_TIMEOUT",
	"upload_timeout": "OPTIMA_UPLOAD_TIMEOUT",
	"db_path":        "OPTIMA_DB_PATH",
	"poll.interval":  "OPTIMA_POLL_INTERVAL",
	"poll.warmup":    "OPTIMA_POLL_WARMUP",
	"poll.settle":    "OPTIMA_POLL_SETTLE",
	"poll.max_wait":  "OPTIMA_POLL_MAX_WAIT",
	"quiz_timer":     "OPTIMA_QUIZ_TIMER",
	"log_level":      "OPTIMA_LOG_LEVEL",
	"log_format":     "OPTIMA_LOG_FORMAT",
}

// Load reads an optional .env file, then the OPTIMA_* environment
// variables, falling back to defaults.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("api_url", "http://localhost:8000")
	v.SetDefault("timeout", "180s")
	v.SetDefault("upload_timeout", "300s")
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("poll.interval", "2s")
	v.SetDefault("poll.warmup", "2s")
	v.SetDefault("poll.settle", "1s")
	v.SetDefault("poll.max_wait", "5m")
	v.SetDefault("quiz_timer", true)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unable to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIURL == "" {
		return fmt.Errorf("config: OPTIMA_API_URL must not be empty")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("config: OPTIMA_API_URL=%q must start with http:// or https://", c.APIURL)
	}
	if c.Timeout <= 0 || c.UploadTimeout <= 0 {
		return fmt.Errorf("config: timeouts must be positive")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("config: OPTIMA_POLL_INTERVAL must be positive")
	}
	if c.Poll.Warmup < 0 || c.Poll.Settle < 0 || c.Poll.MaxWait < 0 {
		return fmt.Errorf("config: poll delays must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: OPTIMA_LOG_FORMAT=%q must be text or json", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to slog's level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("config: OPTIMA_LOG_LEVEL=%q: %w", s, err)
	}
	return level, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".optima", "optima.db")
	}
	return filepath.Join(home, ".optima", "optima.db")
}
