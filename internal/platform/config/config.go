package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not parseable by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvMillis reads a millisecond count from key and returns it as a duration.
// Non-positive or invalid values yield fallback.
func GetEnvMillis(key string, fallback time.Duration) time.Duration {
	if ms := GetEnvInt(key, 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// Dashboard groups the settings shared by the server and the CLI.
type Dashboard struct {
	APIBaseURL      string
	Port            string
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	RefreshThrottle time.Duration
	AutoRefresh     bool
	TokenFile       string
	LogLevel        string
	LogFormat       string
}

// LoadDashboard resolves Dashboard from the environment. Call Load first to
// pick up a .env file.
func LoadDashboard() Dashboard {
	return Dashboard{
		APIBaseURL:      GetEnv("API_BASE_URL", "http://localhost:8000"),
		Port:            GetEnv("PORT", "8080"),
		RefreshInterval: GetEnvMillis("REFRESH_INTERVAL_MS", 30*time.Second),
		RequestTimeout:  GetEnvMillis("REQUEST_TIMEOUT_MS", 10*time.Second),
		RefreshThrottle: GetEnvMillis("REFRESH_THROTTLE_MS", 5*time.Second),
		AutoRefresh:     GetEnvBool("AUTO_REFRESH", true),
		TokenFile:       GetEnv("TOKEN_FILE", "session.yaml"),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
	}
}
