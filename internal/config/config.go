package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// HTTP Server
	Port           string   `env:"PORT" envDefault:"8081"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"false"`
	SessionSecret  string   `env:"SESSION_SECRET"`
	BcryptCost     int      `env:"BCRYPT_COST" envDefault:"10"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`

	// Backend selection
	DataBackend string `env:"DATA_BACKEND" envDefault:"file"`

	// Local files
	WishesFile   string `env:"WISHES_FILE" envDefault:"wunschliste.json"`
	PlanningFile string `env:"PLANNING_FILE" envDefault:"planung.json"`

	// Database
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/wunschliste.db"`

	// Firestore
	FirestoreProjectID       string `env:"FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string `env:"FIRESTORE_CREDENTIALS_FILE"`
	FirestoreCredentialsJSON string `env:"FIRESTORE_CREDENTIALS_JSON"`
	FirestoreRoot            string `env:"FIRESTORE_ROOT" envDefault:"wunschliste"`

	// AMQP, optional
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"wunschliste"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"resync"`

	// Worker
	SyncInterval time.Duration `env:"SYNC_INTERVAL" envDefault:"30s"`

	// Planning
	EventDays      []string `env:"EVENT_DAYS" envSeparator:","`
	AdventImageDir string   `env:"ADVENT_IMAGE_DIR" envDefault:"static/advent"`

	// Uploads
	ImageMaxBytes     int   `env:"IMAGE_MAX_BYTES" envDefault:"307200"`
	ImageMaxDimension int   `env:"IMAGE_MAX_DIMENSION" envDefault:"1280"`
	UploadMaxBytes    int64 `env:"UPLOAD_MAX_BYTES" envDefault:"20971520"`
}

// Backend names accepted by DATA_BACKEND.
var validBackends = []string{"file", "sqlite", "firestore", "memory"}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "file" || c.DataBackend == "firestore" {
		if c.WishesFile == "" || c.PlanningFile == "" {
			errors = append(errors, "WISHES_FILE and PLANNING_FILE cannot be empty when using the file store")
		} else if c.WishesFile == c.PlanningFile {
			errors = append(errors, "WISHES_FILE and PLANNING_FILE must be different files")
		}
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.DataBackend == "firestore" {
		if c.FirestoreProjectID == "" {
			errors = append(errors, "FIRESTORE_PROJECT_ID is required when using firestore backend")
		}
		if c.FirestoreCredentialsFile != "" {
			if _, err := os.Stat(c.FirestoreCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Firestore credentials file does not exist: %s", c.FirestoreCredentialsFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < 16 {
		errors = append(errors, "SESSION_SECRET must be at least 16 characters")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errors = append(errors, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	for _, d := range c.EventDays {
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(d)); err != nil {
			errors = append(errors, fmt.Sprintf("invalid event day '%s': must be YYYY-MM-DD", d))
		}
	}

	if c.ImageMaxBytes < 10*1024 {
		errors = append(errors, fmt.Sprintf("invalid image size limit %d: must be at least 10240 bytes", c.ImageMaxBytes))
	}
	if c.ImageMaxDimension < 64 {
		errors = append(errors, fmt.Sprintf("invalid image dimension %d: must be at least 64 pixels", c.ImageMaxDimension))
	}
	if c.UploadMaxBytes < int64(c.ImageMaxBytes) {
		errors = append(errors, "UPLOAD_MAX_BYTES must not be smaller than IMAGE_MAX_BYTES")
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Days returns the configured event days, defaulting to the Christmas days
// of now's year.
func (c *Config) Days(now time.Time) []string {
	if len(c.EventDays) > 0 {
		out := make([]string, 0, len(c.EventDays))
		for _, d := range c.EventDays {
			out = append(out, strings.TrimSpace(d))
		}
		return out
	}
	y := now.Year()
	return []string{
		fmt.Sprintf("%d-12-24", y),
		fmt.Sprintf("%d-12-25", y),
		fmt.Sprintf("%d-12-26", y),
	}
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return l, nil
}
