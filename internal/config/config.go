package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration parsed from YAML.
// Environment variables override the credential so keys can stay out of
// config files.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DashScope DashScopeConfig `yaml:"dashscope"`
}

// ServerConfig defines listener configuration for the serve command.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DashScopeConfig captures authentication and endpoint overrides for the
// upstream provider. Empty endpoints fall back to the Beijing-region
// defaults.
type DashScopeConfig struct {
	APIKey                   string `yaml:"api_key"`
	ChatEndpoint             string `yaml:"chat_endpoint"`
	ResponsesEndpoint        string `yaml:"responses_endpoint"`
	NativeTextEndpoint       string `yaml:"native_text_endpoint"`
	NativeMultimodalEndpoint string `yaml:"native_multimodal_endpoint"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	cfg := Config{Server: ServerConfig{Port: 8787}}
	cfg.applyEnv()
	return cfg
}

// Load reads YAML configuration from disk, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyEnv()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets the environment win for the credential, matching how the
// provider itself resolves it.
func (c *Config) applyEnv() {
	if key := os.Getenv("ALIYUN_API_KEY"); key != "" {
		c.DashScope.APIKey = key
	} else if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" && c.DashScope.APIKey == "" {
		c.DashScope.APIKey = key
	}
}

// Validate performs sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	return nil
}
