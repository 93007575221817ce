package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/yachay/internal/database"
)

// Config is the service configuration
type Config struct {
	Database  database.Config  `mapstructure:"database"`
	Telegram  TelegramConfig   `mapstructure:"telegram"`
	Redis     RedisConfig      `mapstructure:"redis"`
	GCP       GCPConfig        `mapstructure:"gcp"`
	Mastery   MasteryConfig    `mapstructure:"mastery"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Log       LogConfig        `mapstructure:"log"`
	Goals     database.Targets `mapstructure:"goals"`
}

// TelegramConfig configures the bot
type TelegramConfig struct {
	Token         string  `mapstructure:"token"`
	AdminIDs      []int64 `mapstructure:"admin_ids"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
}

// RedisConfig configures the translation cache. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// TTL returns the cache entry lifetime
func (c RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// GCPConfig configures the vision and speech clients. An empty Credentials
// falls back to application default credentials.
type GCPConfig struct {
	Credentials  string  `mapstructure:"credentials"`
	LanguageCode string  `mapstructure:"language_code"`
	MinScore     float64 `mapstructure:"min_score"`
}

// MasteryConfig configures the progression engine
type MasteryConfig struct {
	Timezone string `mapstructure:"timezone"`
}

// Location resolves Timezone
func (c MasteryConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.Timezone)
	}
	return loc, nil
}

// SchedulerConfig configures background jobs
type SchedulerConfig struct {
	Enabled             bool `mapstructure:"enabled"`
	ReminderStartHour   int  `mapstructure:"reminder_start_hour"`
	ReminderEndHour     int  `mapstructure:"reminder_end_hour"`
	LedgerRetentionDays int  `mapstructure:"ledger_retention_days"`
}

// MetricsConfig configures the prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("YACHAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.driver", database.DriverSQLite)
	v.SetDefault("database.dsn", "data/yachay.db")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.rate_per_second", 25.0)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl_minutes", 60)
	v.SetDefault("gcp.credentials", "")
	v.SetDefault("gcp.language_code", "es-PE")
	v.SetDefault("gcp.min_score", 0.25)
	v.SetDefault("mastery.timezone", "America/Lima")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reminder_start_hour", 9)
	v.SetDefault("scheduler.reminder_end_hour", 21)
	v.SetDefault("scheduler.ledger_retention_days", 30)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("goals.detection", 3)
	v.SetDefault("goals.practice", 5)
	v.SetDefault("goals.mastery", 1)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return eris.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	s := c.Scheduler
	if s.ReminderStartHour < 0 || s.ReminderEndHour > 24 || s.ReminderStartHour >= s.ReminderEndHour {
		return eris.Errorf("config: invalid reminder window %d-%d", s.ReminderStartHour, s.ReminderEndHour)
	}
	if c.Goals.Detection < 0 || c.Goals.Practice < 0 || c.Goals.Mastery < 0 {
		return eris.New("config: daily goals must not be negative")
	}
	if _, err := c.Mastery.Location(); err != nil {
		return err
	}
	return nil
}

// InitLogger builds the zap logger and installs it globally.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
