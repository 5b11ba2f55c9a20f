package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a-essam23/go-collab/pkg/state"
	"github.com/spf13/viper"
)

// Load reads configuration from a file and environment variables.
func Load(logger *slog.Logger, fileName string) (*Config, error) {
	v := viper.New()

	// 1. Set default values
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.connectionLimit.maxPerIP", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("transport.readTimeout", "0s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("heartbeat.interval", "30s")
	v.SetDefault("spaces.default", "public")
	v.SetDefault("spaces.defaultName", "Public")
	v.SetDefault("presence.palette", []string(state.DefaultPalette))
	v.SetDefault("presence.cursorRate", 30)
	v.SetDefault("presence.cursorBurst", 10)
	v.SetDefault("directory.driver", DriverMemory)
	v.SetDefault("directory.dsn", "")
	v.SetDefault("log.level", "info")

	// 2. Set config file details
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".") // look for config in the working directory

	// 3. Set up environment variable handling
	v.SetEnvPrefix("GOCOLLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read the configuration file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return nil, err
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	// 5. Unmarshal the configuration into our struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("address", cfg.Server.Address),
		slog.String("directory", cfg.Directory.Driver),
		slog.String("defaultSpace", cfg.Spaces.Default),
	)
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwtSecret must be set"))
	}
	if len(c.Presence.Palette) == 0 {
		errs = append(errs, errors.New("presence.palette must not be empty"))
	}
	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval must be positive, got %s", c.Heartbeat.Interval))
	}
	if c.Spaces.Default == "" {
		errs = append(errs, errors.New("spaces.default must not be empty"))
	}
	switch c.Directory.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Directory.DSN == "" {
			errs = append(errs, errors.New("directory.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown directory.driver '%s'", c.Directory.Driver))
	}
	if c.Server.ConnectionLimit.Mode != "reject" {
		errs = append(errs, fmt.Errorf("unsupported server.connectionLimit.mode '%s'", c.Server.ConnectionLimit.Mode))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
