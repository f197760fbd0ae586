// Package config loads gateway settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads env files into the process environment. With no paths,
// ".env" in the working directory is tried. A missing file is not
// fatal; callers fall through to system env and defaults.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of key, or fallback when unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns key parsed as an integer, or fallback when unset,
// empty, or malformed.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns key parsed as a boolean, or fallback when unset,
// empty, or malformed.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration returns key parsed as a time.Duration, or fallback
// when unset, empty, or malformed.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvList splits key on commas, trimming whitespace and dropping
// empty items. Returns fallback when the result would be empty.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Settings is the resolved gateway configuration.
type Settings struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	StaticDir       string
	CookiesPath     string
	Mirrors         []string
	CacheMaxEntries int
	RateLimit       int
	RatePeriod      time.Duration
	ShutdownGrace   time.Duration

	CerebrasKey string
	GroqKey     string
	GeminiKey   string
	LastFMKey   string
}

// FromEnv assembles Settings entirely from environment variables.
func FromEnv() Settings {
	return Settings{
		Addr:            GetEnv("ADDR", ":"+GetEnv("PORT", "3000")),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
		StaticDir:       GetEnv("STATIC_DIR", "public"),
		CookiesPath:     GetEnv("YTDLP_COOKIES_FILE", ""),
		Mirrors:         GetEnvList("MIRROR_INSTANCES", nil),
		CacheMaxEntries: GetEnvInt("CACHE_MAX_ENTRIES", 1024),
		RateLimit:       GetEnvInt("RATE_LIMIT", 100),
		RatePeriod:      GetEnvDuration("RATE_PERIOD", time.Minute),
		ShutdownGrace:   GetEnvDuration("SHUTDOWN_GRACE", 10*time.Second),

		CerebrasKey: GetEnv("CEREBRAS_API_KEY", ""),
		GroqKey:     GetEnv("GROQ_API_KEY", ""),
		GeminiKey:   GetEnv("GEMINI_API_KEY", ""),
		LastFMKey:   GetEnv("LASTFM_API_KEY", ""),
	}
}
