package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "data/yachay.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Goals.Detection)
	assert.Equal(t, 5, cfg.Goals.Practice)
	assert.Equal(t, 1, cfg.Goals.Mastery)
	assert.Equal(t, 9, cfg.Scheduler.ReminderStartHour)
	assert.Equal(t, 21, cfg.Scheduler.ReminderEndHour)
	assert.Equal(t, 30, cfg.Scheduler.LedgerRetentionDays)
	assert.Equal(t, time.Hour, cfg.Redis.TTL())
	assert.InDelta(t, 0.25, cfg.GCP.MinScore, 0.001)

	loc, err := cfg.Mastery.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Lima", loc.String())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
database:
  driver: postgres
  dsn: postgres://localhost/yachay
goals:
  practice: 8
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8, cfg.Goals.Practice)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Goals.Detection)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0644))
	t.Setenv("YACHAY_LOG_LEVEL", "warn")
	t.Setenv("YACHAY_TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("YACHAY_REDIS_ADDR=localhost:6379\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("YACHAY_REDIS_ADDR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"driver":   "YACHAY_DATABASE_DRIVER=mysql",
		"window":   "YACHAY_SCHEDULER_REMINDER_START_HOUR=22",
		"timezone": "YACHAY_MASTERY_TIMEZONE=Mars/Olympus",
	}
	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			chdirTemp(t)
			k, v, _ := strings.Cut(kv, "=")
			t.Setenv(k, v)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestInitLogger(t *testing.T) {
	logger, err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())

	_, err = InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	_, err = InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
