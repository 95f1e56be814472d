package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"pwrsup-go/hostlink"
)

// Config is the optional supctl YAML file. Flags override it.
type Config struct {
	Port      string `yaml:"port"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
	SettleMs  int    `yaml:"settle_ms"`
	SPI       string `yaml:"spi"`
	SPIHz     int    `yaml:"spi_hz"`
}

func DefaultConfig() Config {
	return Config{Baud: 115200, TimeoutMs: 500, SettleMs: 1, SPIHz: hostlink.DefaultSPIHz}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges. It does not mutate cfg.
func (c Config) Validate() error {
	switch {
	case c.Baud <= 0:
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	case c.TimeoutMs <= 0:
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMs)
	case c.SettleMs < 0:
		return fmt.Errorf("settle_ms must not be negative, got %d", c.SettleMs)
	case c.SPIHz <= 0:
		return fmt.Errorf("spi_hz must be positive, got %d", c.SPIHz)
	case c.Port != "" && c.SPI != "":
		return fmt.Errorf("port and spi are exclusive, got %q and %q", c.Port, c.SPI)
	}
	return nil
}

func (c Config) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (c Config) Settle() time.Duration  { return time.Duration(c.SettleMs) * time.Millisecond }
