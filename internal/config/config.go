// Package config loads and validates the app builder service configuration
// from a YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP front door settings.
type ServerConfig struct {
	Port      int `yaml:"port"`
	AdminPort int `yaml:"admin_port"`
}

// ForgeConfig holds repository provider settings.
type ForgeConfig struct {
	APIURL  string `yaml:"api_url"`
	BaseURL string `yaml:"base_url"`
	Owner   string `yaml:"owner"`
	Token   string `yaml:"token"`
}

// GeneratorConfig holds content generation provider settings.
// Timeout is a time.ParseDuration string (e.g. "60s").
type GeneratorConfig struct {
	APIURL      string  `yaml:"api_url"`
	Token       string  `yaml:"token"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// TimeoutDuration parses the generator timeout, falling back to 60s.
func (g GeneratorConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(g.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// NotifyConfig holds evaluation notification settings.
type NotifyConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	Timeout     string `yaml:"timeout"`
}

// TimeoutDuration parses the per-attempt notification timeout, falling back to 30s.
func (n NotifyConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(n.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// HistoryConfig holds build history store settings.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig holds optional NATS lifecycle event publishing settings.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MaintenanceConfig holds periodic store upkeep settings.
type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// IntervalDuration parses the maintenance interval, falling back to 24h.
func (m MaintenanceConfig) IntervalDuration() time.Duration {
	if d, err := time.ParseDuration(m.Interval); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// Config is the root configuration for the app builder service.
type Config struct {
	Secret      string            `yaml:"secret"`
	Server      ServerConfig      `yaml:"server"`
	Forge       ForgeConfig       `yaml:"forge"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Notify      NotifyConfig      `yaml:"notify"`
	History     HistoryConfig     `yaml:"history"`
	Events      EventsConfig      `yaml:"events"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Default returns a configuration populated with defaults. Secrets and
// tokens are intentionally empty and must come from the file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 10000, AdminPort: 10001},
		Forge: ForgeConfig{
			APIURL:  "https://api.github.com",
			BaseURL: "https://github.com",
		},
		Generator: GeneratorConfig{
			APIURL:      "https://aipipe.org/openai/v1/chat/completions",
			Model:       "gpt-4o-mini",
			MaxTokens:   4000,
			Temperature: 0.7,
			Timeout:     "60s",
		},
		Notify:      NotifyConfig{MaxAttempts: 5, Timeout: "30s"},
		History:     HistoryConfig{Path: "appbuilder.db"},
		Events:      EventsConfig{Subject: "appbuilder.builds"},
		Maintenance: MaintenanceConfig{Enabled: true, Interval: "24h"},
	}
}

// Load reads configuration from path (optional), layers environment
// overrides on top of defaults, and validates the result.
func Load(path string) (*Config, error) {
	_ = loadEnvFile() // best effort; absence of .env is not an error

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto the config.
// Environment always wins over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("STUDENT_SECRET"); v != "" {
		c.Secret = v
	}
	if v := os.Getenv("AIPIPE_TOKEN"); v != "" {
		c.Generator.Token = v
	}
	if v := os.Getenv("AIPIPE_URL"); v != "" {
		c.Generator.APIURL = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.Forge.Token = v
	}
	if v := os.Getenv("GITHUB_USERNAME"); v != "" {
		c.Forge.Owner = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.History.Path = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.Events.NATSURL = v
		c.Events.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate checks that every setting required to serve builds is present.
func (c *Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("secret is required (STUDENT_SECRET)")
	}
	if c.Forge.Token == "" {
		return fmt.Errorf("forge token is required (GITHUB_TOKEN)")
	}
	if c.Forge.Owner == "" {
		return fmt.Errorf("forge owner is required (GITHUB_USERNAME)")
	}
	if c.Generator.Token == "" {
		return fmt.Errorf("generator token is required (AIPIPE_TOKEN)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("notify max_attempts must be at least 1")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events enabled but nats_url not set")
	}
	for name, v := range map[string]string{
		"generator.timeout":    c.Generator.Timeout,
		"notify.timeout":       c.Notify.Timeout,
		"maintenance.interval": c.Maintenance.Interval,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, v)
		}
	}
	return nil
}

// WriteStarter writes a commented starter configuration file.
func WriteStarter(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		}
	}
	return os.WriteFile(path, []byte(starterYAML), 0o644)
}

const starterYAML = `# App builder service configuration.
# Secrets are normally supplied through the environment:
#   STUDENT_SECRET, GITHUB_TOKEN, GITHUB_USERNAME, AIPIPE_TOKEN

server:
  port: 10000
  admin_port: 10001

forge:
  api_url: https://api.github.com
  base_url: https://github.com

generator:
  api_url: https://aipipe.org/openai/v1/chat/completions
  model: gpt-4o-mini
  max_tokens: 4000
  temperature: 0.7
  timeout: 60s

notify:
  max_attempts: 5
  timeout: 30s

history:
  path: appbuilder.db

events:
  enabled: false
  subject: appbuilder.builds

maintenance:
  enabled: true
  interval: 24h
`
