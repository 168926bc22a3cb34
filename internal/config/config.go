package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"
)

const (
	DefaultAPIBaseURL   = "http://localhost:8080"
	DefaultTimeout      = 15 * time.Second
	DefaultCacheVersion = "v1"
	DefaultListenAddr   = ":8080"
)

type Config struct {
	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Empty keeps the bootstrap cache in memory only.
	CachePath    string `yaml:"cache_path"`
	CacheVersion string `yaml:"cache_version"`
	// IANA zone used for day keys when the user has none set.
	Timezone  string `yaml:"timezone"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// A static API token; skips the login flow when set.
	Token string `yaml:"token"`

	Auth   AuthConfig   `yaml:"auth"`
	Nudge  NudgeConfig  `yaml:"nudge"`
	Server ServerConfig `yaml:"server"`
}

type AuthConfig struct {
	IssuerURL    string   `yaml:"issuer_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	SignupURL    string   `yaml:"signup_url"`
	Scopes       []string `yaml:"scopes"`
	SessionPath  string   `yaml:"session_path"`
}

type NudgeConfig struct {
	ResendAPIKey string `yaml:"resend_api_key"`
	Email        string `yaml:"email"`
	From         string `yaml:"from"`
}

type ServerConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	CatalogPath string `yaml:"catalog_path"`
	// Emit upper camel root keys (Habits, Logs, ...) like older backends.
	LegacyKeys bool `yaml:"legacy_keys"`
}

// Load reads the file named by FLUX_CONFIG, or config.yaml.
func Load() (*Config, error) {
	return LoadFile(getenv("FLUX_CONFIG", "config.yaml"))
}

// LoadFile reads path, fills defaults and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	d, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(d, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// Defaults is the configuration used when there is no file.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	c.APIBaseURL = getenv("FLUX_API_BASE", c.APIBaseURL)
	c.CachePath = getenv("FLUX_CACHE_PATH", c.CachePath)
	c.Token = getenv("FLUX_TOKEN", c.Token)
	c.Nudge.ResendAPIKey = getenv("FLUX_RESEND_API_KEY", c.Nudge.ResendAPIKey)
}

func (c *Config) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultTimeout
	}
	if c.CacheVersion == "" {
		c.CacheVersion = DefaultCacheVersion
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Nudge.From == "" {
		c.Nudge.From = "onboarding@resend.dev"
	}
	if len(c.Auth.Scopes) == 0 {
		c.Auth.Scopes = []string{"openid", "email", "offline_access"}
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
