package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dqmon/domain/quality"
	"dqmon/internal/errors"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. DQ_EMAIL_PASSWORD
const EnvPrefix = "DQ"

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig       `mapstructure:"database"`
	Source      SourceConfig         `mapstructure:"source"`
	Thresholds  ThresholdsConfig     `mapstructure:"thresholds"`
	Anomaly     AnomalyConfig        `mapstructure:"anomaly"`
	CustomRules []quality.CustomRule `mapstructure:"custom_rules"`
	Email       EmailConfig          `mapstructure:"email"`
	Webhook     WebhookConfig        `mapstructure:"webhook"`
	Alert       AlertConfig          `mapstructure:"alert"`
	Schedule    ScheduleConfig       `mapstructure:"schedule"`
	Store       StoreConfig          `mapstructure:"store"`
	Server      ServerConfig         `mapstructure:"server"`
	Log         LogConfig            `mapstructure:"log"`
}

// DatabaseConfig holds the monitored database and the query producing the dataset
type DatabaseConfig struct {
	Driver           string `mapstructure:"driver"`
	ConnectionString string `mapstructure:"connection_string"`
	Query            string `mapstructure:"query"`
}

// SourceConfig selects a CSV/XLSX file instead of a database
type SourceConfig struct {
	File  string `mapstructure:"file"`
	Sheet string `mapstructure:"sheet"`
}

// ThresholdsConfig holds the per-cycle limits
type ThresholdsConfig struct {
	MissingValues int `mapstructure:"missing_values"`
	Duplicates    int `mapstructure:"duplicates"`
}

// AnomalyConfig tunes the isolation forest
type AnomalyConfig struct {
	Contamination float64 `mapstructure:"contamination"`
	Trees         int     `mapstructure:"trees"`
	Seed          int64   `mapstructure:"seed"`
	Workers       int     `mapstructure:"workers"`
	ScoreCutoff   float64 `mapstructure:"score_cutoff"`
}

// EmailConfig holds the SMTP account used for alerts
type EmailConfig struct {
	Sender   string `mapstructure:"sender"`
	Receiver string `mapstructure:"receiver"`
	Password string `mapstructure:"password"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
}

// WebhookConfig holds the alert webhook endpoint
type WebhookConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AlertConfig holds the delivery retry policy
type AlertConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryWait   time.Duration `mapstructure:"retry_wait"`
}

// ScheduleConfig holds the evaluation interval
type ScheduleConfig struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
}

// StoreConfig holds the report history database
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig holds status API settings
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	GinMode string `mapstructure:"gin_mode"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Default returns the configuration used for keys the file does not set
func Default() Config {
	return Config{
		Database:   DatabaseConfig{Driver: "sqlite3"},
		Thresholds: ThresholdsConfig{MissingValues: 0, Duplicates: 0},
		Anomaly: AnomalyConfig{
			Contamination: 0.1,
			Trees:         100,
			Seed:          42,
			ScoreCutoff:   0.75,
		},
		Email:    EmailConfig{SMTPHost: "smtp.gmail.com", SMTPPort: 465},
		Webhook:  WebhookConfig{Timeout: 10 * time.Second},
		Alert:    AlertConfig{MaxAttempts: 3, RetryWait: 2 * time.Second},
		Schedule: ScheduleConfig{IntervalMinutes: 60, Timeout: 5 * time.Minute, RunOnStart: true},
		Store:    StoreConfig{Driver: "sqlite3", DSN: "dq_reports.db"},
		Server:   ServerConfig{Addr: ":8080", GinMode: "release"},
		Log:      LogConfig{Level: "INFO"},
	}
}

// Load reads the JSON config file at path (optional when empty) and applies
// DQ_-prefixed environment overrides
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				return nil, errors.Wrapf(errors.ConfigInvalid("config file not found"), "failed to read %s", path)
			}
			return nil, errors.WrapWithCode(err, errors.CodeConfigInvalid, "error reading config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeConfigInvalid, "error unmarshaling config")
	}
	for i := range cfg.CustomRules {
		if c, err := quality.ParseCondition(string(cfg.CustomRules[i].Condition)); err == nil {
			cfg.CustomRules[i].Condition = c
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.connection_string", d.Database.ConnectionString)
	v.SetDefault("database.query", d.Database.Query)
	v.SetDefault("source.file", d.Source.File)
	v.SetDefault("source.sheet", d.Source.Sheet)
	v.SetDefault("thresholds.missing_values", d.Thresholds.MissingValues)
	v.SetDefault("thresholds.duplicates", d.Thresholds.Duplicates)
	v.SetDefault("anomaly.contamination", d.Anomaly.Contamination)
	v.SetDefault("anomaly.trees", d.Anomaly.Trees)
	v.SetDefault("anomaly.seed", d.Anomaly.Seed)
	v.SetDefault("anomaly.workers", d.Anomaly.Workers)
	v.SetDefault("anomaly.score_cutoff", d.Anomaly.ScoreCutoff)
	v.SetDefault("email.sender", d.Email.Sender)
	v.SetDefault("email.receiver", d.Email.Receiver)
	v.SetDefault("email.password", d.Email.Password)
	v.SetDefault("email.smtp_host", d.Email.SMTPHost)
	v.SetDefault("email.smtp_port", d.Email.SMTPPort)
	v.SetDefault("webhook.url", d.Webhook.URL)
	v.SetDefault("webhook.timeout", d.Webhook.Timeout)
	v.SetDefault("alert.max_attempts", d.Alert.MaxAttempts)
	v.SetDefault("alert.retry_wait", d.Alert.RetryWait)
	v.SetDefault("schedule.interval_minutes", d.Schedule.IntervalMinutes)
	v.SetDefault("schedule.timeout", d.Schedule.Timeout)
	v.SetDefault("schedule.run_on_start", d.Schedule.RunOnStart)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.gin_mode", d.Server.GinMode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	return v
}

// Validate checks ranges and that a data source is configured
func (c *Config) Validate() error {
	if c.Database.Query == "" && c.Source.File == "" {
		return errors.ConfigInvalid("either database.query or source.file is required")
	}
	if c.Schedule.IntervalMinutes <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("schedule.interval_minutes must be positive, got %d", c.Schedule.IntervalMinutes))
	}
	if c.Anomaly.Trees < 0 || c.Anomaly.Workers < 0 {
		return errors.ConfigInvalid("anomaly.trees and anomaly.workers must not be negative")
	}
	if c.Alert.MaxAttempts < 1 {
		return errors.ConfigInvalid("alert.max_attempts must be at least 1")
	}
	if err := c.ThresholdConfig().Validate(); err != nil {
		return errors.WrapWithCode(err, errors.CodeConfigInvalid, "invalid thresholds")
	}
	return nil
}

// ThresholdConfig returns the limits the checks consume for one cycle
func (c *Config) ThresholdConfig() quality.ThresholdConfig {
	rules := make([]quality.CustomRule, len(c.CustomRules))
	copy(rules, c.CustomRules)
	return quality.ThresholdConfig{
		MissingValueLimit: c.Thresholds.MissingValues,
		DuplicateLimit:    c.Thresholds.Duplicates,
		Contamination:     c.Anomaly.Contamination,
		CustomRules:       rules,
	}
}

// Interval returns the evaluation interval
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalMinutes) * time.Minute
}
