package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	User        string
	// Timezone is empty unless set explicitly; the user's stored timezone
	// setting applies then.
	Timezone    string
	LogDir      string
	Debug       bool
	// AverageDays of 0 defers to the user's averages_days setting.
	AverageDays int
}

// IsPostgres reports whether DatabaseURL points at a PostgreSQL server.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// Load reads an optional .env file and then the COURSETIMERS_* environment.
func Load() *Config {
	// A missing .env is normal; the process environment still applies.
	_ = godotenv.Load()

	dir := defaultDir()
	return &Config{
		DatabaseURL: getEnv("COURSETIMERS_DATABASE_URL", filepath.Join(dir, "coursetimers.db")),
		User:        getEnv("COURSETIMERS_USER", getEnv("USER", "student")),
		Timezone:    os.Getenv("COURSETIMERS_TZ"),
		LogDir:      getEnv("COURSETIMERS_LOG_DIR", dir),
		Debug:       getEnvBool("COURSETIMERS_DEBUG", false),
		AverageDays: getEnvInt("COURSETIMERS_AVERAGE_DAYS", 0),
	}
}

func defaultDir() string {
	if cfg, err := os.UserConfigDir(); err == nil {
		return filepath.Join(cfg, "coursetimers")
	}
	return "."
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
