// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type LeagueAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"-"` // Loaded from environment
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	LeagueAPI LeagueAPIConfig `yaml:"league_api"`

	Optimizer struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"optimizer"`

	Wizard struct {
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
		JanitorCron       string `yaml:"janitor_cron"`
	} `yaml:"wizard"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Read and parse YAML config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.LeagueAPI.Token = os.Getenv("LEAGUE_API_TOKEN")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.LeagueAPI.BaseURL == "" {
		return fmt.Errorf("league api base URL is required")
	}
	if c.Optimizer.BaseURL == "" {
		return fmt.Errorf("optimizer base URL is required")
	}
	if c.Wizard.SessionTTLMinutes < 0 {
		return fmt.Errorf("wizard session TTL cannot be negative")
	}
	return nil
}
