package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrInvalidCourseID is returned when a course identifier is not a positive integer.
var ErrInvalidCourseID = errors.New("invalid course id")

var courseIDPattern = regexp.MustCompile(`^[1-9][0-9]*$`)

type Config struct {
	ContentBaseURL string `env:"CONTENT_BASE_URL" envDefault:"https://www.udemy.com"`
	AccessToken    string `env:"CONTENT_ACCESS_TOKEN,required,notEmpty"`
	SessionCookie  string `env:"CONTENT_SESSION_COOKIE" envDefault:"access_token"`

	OutputDir        string `env:"OUTPUT_DIR" envDefault:"./output"`
	Lanes            int    `env:"LANES" envDefault:"5"`
	PreferredLocale  string `env:"PREFERRED_LOCALE" envDefault:"en_US"`
	DownloadCaptions bool   `env:"DOWNLOAD_CAPTIONS" envDefault:"false"`
	DateLocale       string `env:"DATE_LOCALE"`

	SettlePostNavigation time.Duration `env:"SETTLE_POST_NAVIGATION" envDefault:"5s"`
	SettlePostClick      time.Duration `env:"SETTLE_POST_CLICK" envDefault:"1500ms"`
	SettlePostPanelOpen  time.Duration `env:"SETTLE_POST_PANEL_OPEN" envDefault:"1s"`
	TextRetries          int           `env:"TEXT_RETRIES" envDefault:"5"`
	TextRetryDelay       time.Duration `env:"TEXT_RETRY_DELAY" envDefault:"1s"`
	ToggleTimeout        time.Duration `env:"TOGGLE_TIMEOUT" envDefault:"3s"`
	NavigationTimeout    time.Duration `env:"NAVIGATION_TIMEOUT" envDefault:"60s"`

	FetchAttempts int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	FetchBackoff  time.Duration `env:"FETCH_BACKOFF" envDefault:"2s"`
	FetchRate     float64       `env:"FETCH_RATE" envDefault:"5"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`

	ChromePath string `env:"CHROME_PATH"`
	Headless   bool   `env:"HEADLESS" envDefault:"true"`

	S3 S3Config

	DatabaseURL string `env:"DATABASE_URL"`

	HTTPAddr     string        `env:"HTTP_ADDR"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the optional S3-compatible artifact backend.
type S3Config struct {
	Bucket     string `env:"S3_BUCKET"`
	Endpoint   string `env:"S3_ENDPOINT"`
	Region     string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKey  string `env:"S3_ACCESS_KEY"`
	SecretKey  string `env:"S3_SECRET_KEY"`
	Prefix     string `env:"S3_PREFIX"`
	LocalCache bool   `env:"S3_LOCAL_CACHE" envDefault:"true"`
}

// Enabled reports whether an S3 bucket is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile         string
	OutputDir       string
	LogLevel        string
	PreferredLocale string
	HTTPAddr        string
	Lanes           int
	// Captions is tri-state: nil leaves the env value untouched.
	Captions *bool
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.PreferredLocale != "" {
		cfg.PreferredLocale = overrides.PreferredLocale
	}
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.Lanes != 0 {
		cfg.Lanes = overrides.Lanes
	}
	if overrides.Captions != nil {
		cfg.DownloadCaptions = *overrides.Captions
	}
	if cfg.DateLocale == "" {
		cfg.DateLocale = cfg.PreferredLocale
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs type and range checks. There is no cross-field validation.
func (c *Config) Validate() error {
	if c.Lanes < 1 {
		return fmt.Errorf("LANES must be >= 1, got %d", c.Lanes)
	}
	if c.TextRetries < 1 {
		return fmt.Errorf("TEXT_RETRIES must be >= 1, got %d", c.TextRetries)
	}
	if c.FetchAttempts < 1 {
		return fmt.Errorf("FETCH_ATTEMPTS must be >= 1, got %d", c.FetchAttempts)
	}
	if c.FetchRate <= 0 {
		return fmt.Errorf("FETCH_RATE must be > 0, got %g", c.FetchRate)
	}
	if strings.TrimSpace(c.PreferredLocale) == "" {
		return errors.New("PREFERRED_LOCALE must not be empty")
	}
	for name, d := range map[string]time.Duration{
		"SETTLE_POST_NAVIGATION": c.SettlePostNavigation,
		"SETTLE_POST_CLICK":      c.SettlePostClick,
		"SETTLE_POST_PANEL_OPEN": c.SettlePostPanelOpen,
		"TEXT_RETRY_DELAY":       c.TextRetryDelay,
		"FETCH_BACKOFF":          c.FetchBackoff,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	if c.ToggleTimeout <= 0 || c.NavigationTimeout <= 0 {
		return errors.New("TOGGLE_TIMEOUT and NAVIGATION_TIMEOUT must be positive")
	}
	return nil
}

// ParseCourseID validates a course identifier supplied by the operator.
func ParseCourseID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !courseIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCourseID, s)
	}
	return s, nil
}
