package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("STUDENT_SECRET", "s3cret")
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("GITHUB_USERNAME", "builder-bot")
	t.Setenv("AIPIPE_TOKEN", "ap_test")
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10000, cfg.Server.Port)
	assert.Equal(t, "https://api.github.com", cfg.Forge.APIURL)
	assert.Equal(t, 5, cfg.Notify.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Notify.TimeoutDuration())
	assert.Equal(t, 60*time.Second, cfg.Generator.TimeoutDuration())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Secret)
	assert.Equal(t, "builder-bot", cfg.Forge.Owner)
}

func TestLoadYAMLAndEnvPrecedence(t *testing.T) {
	setRequiredEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
secret: from-file
server:
  port: 8080
notify:
  max_attempts: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	// env beats file for the secret
	assert.Equal(t, "s3cret", cfg.Secret)
	// file beats defaults for the rest
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Notify.MaxAttempts)
}

func TestValidateRejectsMissingSecrets(t *testing.T) {
	cfg := Default()
	cfg.Forge.Token = "t"
	cfg.Forge.Owner = "o"
	cfg.Generator.Token = "g"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret")
}

func TestValidateEventsRequireURL(t *testing.T) {
	cfg := Default()
	cfg.Secret = "s"
	cfg.Forge.Token = "t"
	cfg.Forge.Owner = "o"
	cfg.Generator.Token = "g"
	cfg.Events.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats_url")
}

func TestDurationFallbacks(t *testing.T) {
	g := GeneratorConfig{Timeout: "nonsense"}
	assert.Equal(t, 60*time.Second, g.TimeoutDuration())
	n := NotifyConfig{}
	assert.Equal(t, 30*time.Second, n.TimeoutDuration())
	m := MaintenanceConfig{Interval: "12h"}
	assert.Equal(t, 12*time.Hour, m.IntervalDuration())
}

func TestValidateRejectsBadDuration(t *testing.T) {
	cfg := Default()
	cfg.Secret = "s"
	cfg.Forge.Token = "t"
	cfg.Forge.Owner = "o"
	cfg.Generator.Token = "g"
	cfg.Notify.Timeout = "not-a-duration"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notify.timeout")
}

func TestWriteStarterRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteStarter(path, false))
	require.Error(t, WriteStarter(path, false))
	require.NoError(t, WriteStarter(path, true))
}
