package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultConfigName   = "config.json"
	defaultDatabaseFile = "serverhub.db"
	defaultLogFile      = "serverhub.log"
	defaultWebDir       = "web"
	defaultListenAddr   = ":23010"

	defaultReconnectInitialMs = 1000
	defaultReconnectMaxMs     = 30000
	defaultCommandTimeoutMs   = 30000

	envMode       = "SERVERHUB_ENV"
	envGatewayURL = "SERVERHUB_GATEWAY_URL"
	envListenAddr = "SERVERHUB_LISTEN_ADDR"
)

type Config struct {
	GatewayURL         string `json:"gateway_url"`
	DatabasePath       string `json:"database_path"`
	ListenAddr         string `json:"listen_addr"`
	WebDir             string `json:"web_dir"`
	LogPath            string `json:"log_path"`
	ReconnectInitialMs int    `json:"reconnect_initial_ms"`
	ReconnectMaxMs     int    `json:"reconnect_max_ms"`
	CommandTimeoutMs   int    `json:"command_timeout_ms"`
}

func IsDev() bool {
	return os.Getenv(envMode) == "dev"
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	appName := "serverhub"
	if IsDev() {
		appName = "serverhub-dev"
	}
	return filepath.Join(userConfigDir, appName), nil
}

// Load reads the configuration from the default directory.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadConfig(dir)
}

// LoadConfig reads config.json from configDir, writing a default file on
// first use. Environment variables override the file.
func LoadConfig(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, defaultConfigName)

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err = createDefaultConfig(configPath, configDir)
		if err != nil {
			return nil, err
		}
	} else {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = &Config{}
		if err := json.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configPath, err)
		}
		cfg.fillDefaults(configDir)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(configDir string) Config {
	return Config{
		DatabasePath:       filepath.Join(configDir, defaultDatabaseFile),
		ListenAddr:         defaultListenAddr,
		WebDir:             filepath.Join(configDir, defaultWebDir),
		LogPath:            filepath.Join(configDir, defaultLogFile),
		ReconnectInitialMs: defaultReconnectInitialMs,
		ReconnectMaxMs:     defaultReconnectMaxMs,
		CommandTimeoutMs:   defaultCommandTimeoutMs,
	}
}

func createDefaultConfig(configPath, configDir string) (*Config, error) {
	cfg := defaults(configDir)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) fillDefaults(configDir string) {
	d := defaults(configDir)
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.WebDir == "" {
		c.WebDir = d.WebDir
	}
	if c.LogPath == "" {
		c.LogPath = d.LogPath
	}
	if c.ReconnectInitialMs == 0 {
		c.ReconnectInitialMs = d.ReconnectInitialMs
	}
	if c.ReconnectMaxMs == 0 {
		c.ReconnectMaxMs = d.ReconnectMaxMs
	}
	if c.CommandTimeoutMs == 0 {
		c.CommandTimeoutMs = d.CommandTimeoutMs
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envGatewayURL); v != "" {
		c.GatewayURL = v
	}
	if v := os.Getenv(envListenAddr); v != "" {
		c.ListenAddr = v
	}
}

func (c *Config) Validate() error {
	if c.ReconnectInitialMs < 0 || c.ReconnectMaxMs < 0 || c.CommandTimeoutMs < 0 {
		return errors.New("config: durations must not be negative")
	}
	if c.ReconnectMaxMs < c.ReconnectInitialMs {
		return fmt.Errorf("config: reconnect_max_ms (%d) is below reconnect_initial_ms (%d)", c.ReconnectMaxMs, c.ReconnectInitialMs)
	}
	return nil
}

func (c *Config) ReconnectInitial() time.Duration {
	return time.Duration(c.ReconnectInitialMs) * time.Millisecond
}

func (c *Config) ReconnectMax() time.Duration {
	return time.Duration(c.ReconnectMaxMs) * time.Millisecond
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}
