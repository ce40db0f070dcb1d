package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	for _, k := range []string{
		"COURSETIMERS_DATABASE_URL", "COURSETIMERS_USER", "COURSETIMERS_TZ",
		"COURSETIMERS_LOG_DIR", "COURSETIMERS_DEBUG", "COURSETIMERS_AVERAGE_DAYS",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("USER", "jay")

	cfg := Load()
	if cfg.Timezone != "" {
		t.Errorf("Timezone = %q, want empty", cfg.Timezone)
	}
	if cfg.AverageDays != 0 {
		t.Errorf("AverageDays = %d, want 0", cfg.AverageDays)
	}
	if cfg.User != "jay" {
		t.Errorf("User = %q, want jay", cfg.User)
	}
	if filepath.Base(cfg.DatabaseURL) != "coursetimers.db" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.Debug || cfg.IsPostgres() {
		t.Error("defaults should be non-debug sqlite")
	}
}

func TestLoadFromEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COURSETIMERS_DATABASE_URL", "postgres://localhost/coursetimers")
	t.Setenv("COURSETIMERS_USER", "sam")
	t.Setenv("COURSETIMERS_TZ", "America/Toronto")
	t.Setenv("COURSETIMERS_DEBUG", "true")
	t.Setenv("COURSETIMERS_AVERAGE_DAYS", "notanumber")

	cfg := Load()
	if !cfg.IsPostgres() {
		t.Error("postgres URL should select postgres")
	}
	if cfg.User != "sam" || cfg.Timezone != "America/Toronto" || !cfg.Debug {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.AverageDays != 0 {
		t.Errorf("invalid int should fall back to default, got %d", cfg.AverageDays)
	}
}

func TestLoadDotEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("COURSETIMERS_TZ", "")
	// godotenv does not override variables that are already set, so unset it.
	os.Unsetenv("COURSETIMERS_TZ")
	if err := os.WriteFile(".env", []byte("COURSETIMERS_TZ=Asia/Tokyo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("COURSETIMERS_TZ") })

	if cfg := Load(); cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want Asia/Tokyo from .env", cfg.Timezone)
	}
}
