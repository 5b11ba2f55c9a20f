package config

import (
	"time"

	"github.com/a-essam23/go-collab/pkg/directory"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Transport TransportConfig `mapstructure:"transport"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
	Spaces    SpacesConfig    `mapstructure:"spaces"`
	Presence  PresenceConfig  `mapstructure:"presence"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string
	AllowedOrigins  []string              `mapstructure:"allowedOrigins"`
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	// MaxPerIP caps concurrent sockets from one address. Zero disables it.
	MaxPerIP int    `mapstructure:"maxPerIP"`
	Mode     string `mapstructure:"mode"` // only "reject" for now
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	SendBuffer  int           `mapstructure:"sendBuffer"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type SpacesConfig struct {
	Default     string `mapstructure:"default"`
	DefaultName string `mapstructure:"defaultName"`
}

type PresenceConfig struct {
	Palette     []string `mapstructure:"palette"`
	CursorRate  float64  `mapstructure:"cursorRate"`
	CursorBurst int      `mapstructure:"cursorBurst"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type DirectoryConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Users and Spaces seed the memory driver.
	Users  []directory.User  `mapstructure:"users"`
	Spaces []directory.Space `mapstructure:"spaces"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}
