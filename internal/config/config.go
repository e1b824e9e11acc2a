package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config defines the simulator configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"PORT16_HTTP_PORT"`
	} `yaml:"http"`
	Redis struct {
		Addr     string `yaml:"addr" env:"PORT16_REDIS_ADDR"`
		Password string `yaml:"password" env:"PORT16_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"PORT16_REDIS_DB"`
	} `yaml:"redis"`
	CentralSystem struct {
		URL      string `yaml:"url" env:"PORT16_CENTRAL_SYSTEM_URL"`
		Protocol string `yaml:"protocol" env:"PORT16_CENTRAL_SYSTEM_PROTOCOL"`
	} `yaml:"centralSystem"`
	Heartbeat struct {
		IntervalSeconds int `yaml:"intervalSeconds" env:"PORT16_HEARTBEAT_INTERVAL"`
	} `yaml:"heartbeat"`
}

// Load reads configuration from the optional YAML file plus env overrides.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8080"
	cfg.Redis.Addr = "localhost:6379"
	cfg.CentralSystem.URL = "ws://localhost:9000"
	cfg.CentralSystem.Protocol = "ocpp1.6"
	cfg.Heartbeat.IntervalSeconds = 5

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return nil, errors.New("config: redis addr required")
	}
	if strings.TrimSpace(cfg.CentralSystem.URL) == "" {
		return nil, errors.New("config: central system url required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
