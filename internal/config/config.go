package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/stemsi/untis-notifier/internal/apperr"
	"github.com/stemsi/untis-notifier/internal/validator"
)

const (
	RunModeOnce      = "once"
	RunModeScheduled = "scheduled"
)

// UntisLogin locates the WebUntis tenant and the account used to sign in.
// The env tag names the variable each field is read from; validation errors
// are reported by that name.
type UntisLogin struct {
	Subdomain string `env:"UNTIS_URL" validate:"required"`
	School    string `env:"UNTIS_SCHOOL" validate:"required"`
	Username  string `env:"UNTIS_USERNAME" validate:"required"`
	Password  string `env:"UNTIS_PASSWORD" validate:"required"`
	Host      string `env:"UNTIS_HOST" validate:"required"`
	Client    string `env:"UNTIS_CLIENT" validate:"required"`
}

// BaseURL is the JSON-RPC endpoint of the school's WebUntis tenant.
// UNTIS_SCHOOL is used as given, so a school like "JL-Schule+Darmstadt"
// must already be query-encoded.
func (u UntisLogin) BaseURL() string {
	return fmt.Sprintf("https://%s.%s/WebUntis/jsonrpc.do?school=%s", u.Subdomain, u.Host, u.School)
}

// UntisConfig adds the watched class to the login.
type UntisConfig struct {
	UntisLogin
	ClassID int `env:"UNTIS_CLASS_ID" validate:"required"`
}

type TelegramConfig struct {
	ChatID   string `env:"TELEGRAM_CHAT_ID" validate:"required"`
	BotToken string `env:"TELEGRAM_BOTTOKEN" validate:"required"`
}

// Config holds all application configuration.
type Config struct {
	Untis    UntisConfig
	Telegram TelegramConfig

	RunMode         string        `env:"RUN_MODE" validate:"oneof=once scheduled"`
	CacheDir        string        `env:"CACHE_DIR" validate:"required"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT_SECONDS" validate:"gt=0"`
	SkipEmptyDigest bool          `env:"SKIP_EMPTY_DIGEST"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	LogFile   string `env:"LOG_FILE"`

	// RedisURL enables the cross-process run lock. Empty disables it.
	RedisURL   string        `env:"REDIS_URL"`
	RunLockTTL time.Duration `env:"RUN_LOCK_TTL_MINUTES" validate:"gt=0"`

	StatusAddr      string `env:"STATUS_ADDR"`
	StatusRateLimit int    `env:"STATUS_RATE_LIMIT" validate:"gte=0"`
	GinMode         string `env:"GIN_MODE"`

	// AllowedOrigins controls CORS on the status API.
	// Empty slice means all origins are permitted.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS"`
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing. Missing
// required variables are reported together as a single config error.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads the optional .env file and the environment without validating.
// Callers that need only part of the configuration validate it themselves.
func Read() *Config {
	_ = godotenv.Load() // Ignore error, .env is optional

	return &Config{
		Untis: UntisConfig{
			UntisLogin: UntisLogin{
				Subdomain: os.Getenv("UNTIS_URL"),
				School:    os.Getenv("UNTIS_SCHOOL"),
				Username:  os.Getenv("UNTIS_USERNAME"),
				Password:  os.Getenv("UNTIS_PASSWORD"),
				Host:      getEnv("UNTIS_HOST", "webuntis.com"),
				Client:    getEnv("UNTIS_CLIENT", "CLIENT"),
			},
			ClassID: getEnvInt("UNTIS_CLASS_ID", 0),
		},
		Telegram: TelegramConfig{
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			BotToken: os.Getenv("TELEGRAM_BOTTOKEN"),
		},

		RunMode:         getEnv("RUN_MODE", RunModeOnce),
		CacheDir:        getEnv("CACHE_DIR", "."),
		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		SkipEmptyDigest: getEnvBool("SKIP_EMPTY_DIGEST", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "pretty"),
		LogFile:   getEnv("LOG_FILE", "untis_send.log"),

		RedisURL:   os.Getenv("REDIS_URL"),
		RunLockTTL: time.Duration(getEnvInt("RUN_LOCK_TTL_MINUTES", 10)) * time.Minute,

		StatusAddr:      os.Getenv("STATUS_ADDR"),
		StatusRateLimit: getEnvInt("STATUS_RATE_LIMIT", 60),
		GinMode:         getEnv("GIN_MODE", "release"),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	return validate("config.Validate", c)
}

// ValidateLogin checks only the WebUntis login, for tools that sign in but
// never read a class timetable.
func (c *Config) ValidateLogin() error {
	return validate("config.ValidateLogin", &c.Untis.UntisLogin)
}

func validate(op string, v interface{}) error {
	err := validator.Struct(v)
	if err == nil {
		return nil
	}

	fields := validator.TranslateErrors(err)
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	sort.Strings(msgs)
	return apperr.New(apperr.ErrConfig, op, fmt.Errorf("%s", strings.Join(msgs, "; ")))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
