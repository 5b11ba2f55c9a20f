package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// inDir runs the test from a temporary working directory, optionally with a
// config.yaml holding body.
func inDir(t *testing.T, body string) {
	t.Helper()
	dir := t.TempDir()
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	inDir(t, "")
	t.Setenv("GOCOLLAB_AUTH_JWTSECRET", "s3cret")

	cfg, err := Load(discard(), "config")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 30*time.Second, cfg.Heartbeat.Interval)
	assert.Zero(t, cfg.Transport.ReadTimeout)
	assert.Equal(t, 256, cfg.Transport.SendBuffer)
	assert.Equal(t, "public", cfg.Spaces.Default)
	assert.Equal(t, "Public", cfg.Spaces.DefaultName)
	assert.Len(t, cfg.Presence.Palette, 10)
	assert.Equal(t, DriverMemory, cfg.Directory.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndSeeds(t *testing.T) {
	inDir(t, `
server:
  address: ":9090"
  connectionLimit:
    maxPerIP: 3
auth:
  jwtSecret: from-file
heartbeat:
  interval: 5s
presence:
  palette: ["#000000", "#FFFFFF"]
directory:
  users:
    - id: u1
      name: Ada
  spaces:
    - id: team
      name: Team
      ownerId: u1
      members: [u2]
`)
	t.Setenv("GOCOLLAB_SERVER_ADDRESS", ":7070")

	cfg, err := Load(discard(), "config")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address, "environment overrides the file")
	assert.Equal(t, 3, cfg.Server.ConnectionLimit.MaxPerIP)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, []string{"#000000", "#FFFFFF"}, cfg.Presence.Palette)
	require.Len(t, cfg.Directory.Users, 1)
	assert.Equal(t, "Ada", cfg.Directory.Users[0].Name)
	require.Len(t, cfg.Directory.Spaces, 1)
	assert.Equal(t, "u1", cfg.Directory.Spaces[0].OwnerID)
	assert.Equal(t, []string{"u2"}, cfg.Directory.Spaces[0].Members)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	inDir(t, `
directory:
  driver: mongo
heartbeat:
  interval: 0s
`)

	_, err := Load(discard(), "config")
	require.Error(t, err)
	assert.ErrorContains(t, err, "auth.jwtSecret")
	assert.ErrorContains(t, err, "heartbeat.interval")
	assert.ErrorContains(t, err, "mongo")
}

func TestValidatePostgresNeedsDSN(t *testing.T) {
	cfg := Config{
		Auth:      AuthConfig{JWTSecret: "x"},
		Heartbeat: HeartbeatConfig{Interval: time.Second},
		Spaces:    SpacesConfig{Default: "public"},
		Presence:  PresenceConfig{Palette: []string{"#000"}},
		Directory: DirectoryConfig{Driver: DriverPostgres},
		Server:    ServerConfig{ConnectionLimit: ConnectionLimitConfig{Mode: "reject"}},
	}
	assert.ErrorContains(t, cfg.Validate(), "directory.dsn")

	cfg.Directory.DSN = "postgres://localhost/collab"
	assert.NoError(t, cfg.Validate())
}
