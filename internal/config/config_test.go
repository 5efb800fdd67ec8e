package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{"TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS", "MATERIALIZE_AT", "HORIZON_DAYS", "TIMEZONE"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "habit_planner.db", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Hour, cfg.ReportInterval)
	assert.Equal(t, "00:05", cfg.MaterializeAt)
	assert.Equal(t, 14, cfg.HorizonDays)
	assert.Error(t, cfg.RequireTelegram())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", " secret ")
	t.Setenv("REPORT_INTERVAL_HOURS", "3")
	t.Setenv("HORIZON_DAYS", "30")
	t.Setenv("TIMEZONE", "Asia/Tokyo")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.TelegramToken)
	assert.NoError(t, cfg.RequireTelegram())
	assert.Equal(t, 3*time.Hour, cfg.ReportInterval)
	assert.Equal(t, 30, cfg.HorizonDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "habitplanner.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_url: data/habits.db\nmaterialize_at: \"01:30\"\nhorizon_days: 7\n"), 0o644))
	t.Setenv("HORIZON_DAYS", "21")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "data/habits.db", cfg.DatabaseURL)
	assert.Equal(t, "01:30", cfg.MaterializeAt)
	assert.Equal(t, 21, cfg.HorizonDays)
}

func TestLoadRejectsBadInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err := Load("")
	assert.Error(t, err)

	clearEnv(t)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
