package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the bot and the engine.
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	ReportInterval time.Duration
	// MaterializeAt is the HH:MM at which instances are materialized daily.
	MaterializeAt string
	HorizonDays   int
	// Timezone is the default for users without one. Empty means local time.
	Timezone string
}

const (
	defaultDatabaseURL   = "habit_planner.db"
	defaultReportHours   = 5
	defaultMaterializeAt = "00:05"
	defaultHorizonDays   = 14
)

// Load reads configuration from environment variables, optionally layered
// over a YAML file at path, with sane defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", defaultDatabaseURL)
	v.SetDefault("report_interval_hours", defaultReportHours)
	v.SetDefault("materialize_at", defaultMaterializeAt)
	v.SetDefault("horizon_days", defaultHorizonDays)
	v.SetDefault("timezone", "")
	v.SetDefault("telegram_token", "")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_token")),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		ReportInterval: time.Duration(v.GetInt("report_interval_hours")) * time.Hour,
		MaterializeAt:  strings.TrimSpace(v.GetString("materialize_at")),
		HorizonDays:    v.GetInt("horizon_days"),
		Timezone:       strings.TrimSpace(v.GetString("timezone")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportHours * time.Hour
	}
	if cfg.MaterializeAt == "" {
		cfg.MaterializeAt = defaultMaterializeAt
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = defaultHorizonDays
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// RequireTelegram reports a missing bot token.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
