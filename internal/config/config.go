// Package config loads memoryflow settings from defaults, an optional YAML
// file, a .env file, MEMORYFLOW_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // Timezone names resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/memoryflow/internal/review"
)

const envPrefix = "MEMORYFLOW_"

// Config holds all runtime settings.
type Config struct {
	DBPath            string        `koanf:"db" validate:"required"`
	Addr              string        `koanf:"addr" validate:"required"`
	ReposDir          string        `koanf:"repos_dir" validate:"required"`
	Timezone          string        `koanf:"timezone" validate:"required,timezone"`
	Intervals         []int         `koanf:"intervals" validate:"omitempty,dive,gt=0,lte=36500"`
	StrictTransitions bool          `koanf:"strict_transitions"`
	ReminderEvery     time.Duration `koanf:"reminder_every" validate:"gte=0"`
	LogLevel          string        `koanf:"log_level" validate:"oneof=debug info warn error"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FlagSet returns the command-line flags understood by Load.
func FlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.String("config", "", "Path to a YAML config file")
	flags.String("env-file", ".env", "Path to a .env file; ignored when missing")
	flags.String("db", "memoryflow.db", "Path to the SQLite database file")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("repos-dir", "repos", "Directory where git note sources are cloned")
	flags.String("timezone", "UTC", "IANA time zone used for day boundaries")
	flags.IntSlice("intervals", nil, "Review intervals in days, one per stage (default 1,2,4,7,15,30)")
	flags.Bool("strict-transitions", false, "Reject remember/forget on items that are not eligible instead of ignoring them")
	flags.Duration("reminder-every", time.Hour, "How often to log due-item reminders; 0 disables them")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	return flags
}

// Load parses args with flags and merges every configuration source.
func Load(flags *pflag.FlagSet, args []string) (*Config, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if path, _ := flags.GetString("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if key == "intervals" {
			return key, strings.Split(value, ",")
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys no other source has set.
	err = k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
		if f.Name == "config" || f.Name == "env-file" {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Scheduler returns the review scheduler settings.
func (c *Config) Scheduler() review.Config {
	rc := review.Config{StrictTransitions: c.StrictTransitions}
	if len(c.Intervals) > 0 {
		rc.Intervals = c.Intervals
	}
	return rc
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Logger returns a text slog.Logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
