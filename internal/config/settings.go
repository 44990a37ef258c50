package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Hard-coded deployment coordinates used when neither flags nor
// environment variables provide a value.
const (
	DefaultProject    = "zomato-insights"
	DefaultRegion     = "asia-south1"
	DefaultService    = "zomato-app"
	DefaultRepository = "zomato-apps"
)

// Settings hold the resolved deployment coordinates and process options.
// Resolution order is flag > GANTRY_* environment variable > default;
// flags are applied by the command layer after LoadSettings.
type Settings struct {
	Project    string `mapstructure:"project"`
	Region     string `mapstructure:"region"`
	Service    string `mapstructure:"service"`
	Repository string `mapstructure:"repository"`
	LogLevel   string `mapstructure:"log_level"`
}

// LoadSettings resolves settings from the environment. A .env file in the
// working directory is loaded first so local overrides work without
// exporting anything.
func LoadSettings() (*Settings, error) {
	// Ignore a missing .env; it is optional.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("project", DefaultProject)
	v.SetDefault("region", DefaultRegion)
	v.SetDefault("service", DefaultService)
	v.SetDefault("repository", DefaultRepository)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("GANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to resolve settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate rejects empty coordinates. Values can only end up empty
// through explicit blanking, e.g. --project="".
func (s *Settings) Validate() error {
	if s.Project == "" {
		return fmt.Errorf("project must not be empty")
	}
	if s.Region == "" {
		return fmt.Errorf("region must not be empty")
	}
	if s.Service == "" {
		return fmt.Errorf("service must not be empty")
	}
	if s.Repository == "" {
		return fmt.Errorf("repository must not be empty")
	}
	return nil
}

// SetupLogger configures the default slog logger at the configured level.
// Diagnostics go to stderr so stdout stays parseable.
func SetupLogger(logLevel string) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
