package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DBPath           string `yaml:"db_path"`
	SeedCSVPath      string `yaml:"seed_csv"`
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	FreeAPIKey       string `yaml:"free_api_key"`
	ProAPIKey        string `yaml:"pro_api_key"`
	SweepIntervalSec int    `yaml:"sweep_interval_seconds"`
	ProbeTimeoutSec  int    `yaml:"probe_timeout_seconds"`
	SweepWorkers     int    `yaml:"sweep_workers"`
	LogLevel         string `yaml:"log_level"`
}

// LoadFromFile builds a Config from a YAML file. Fields left unset in the
// file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	c := DefaultConfig()
	if f.DBPath != "" {
		c.DBPath = f.DBPath
	}
	if f.SeedCSVPath != "" {
		c.SeedCSVPath = f.SeedCSVPath
	}
	if f.Host != "" {
		c.ServerHost = f.Host
	}
	if f.Port != 0 {
		c.ServerPort = f.Port
	}
	if f.FreeAPIKey != "" {
		c.FreeAPIKey = f.FreeAPIKey
	}
	if f.ProAPIKey != "" {
		c.ProAPIKey = f.ProAPIKey
	}
	if f.SweepIntervalSec > 0 {
		c.SweepInterval = time.Duration(f.SweepIntervalSec) * time.Second
	}
	if f.ProbeTimeoutSec > 0 {
		c.ProbeTimeout = time.Duration(f.ProbeTimeoutSec) * time.Second
	}
	if f.SweepWorkers > 0 {
		c.SweepWorkers = f.SweepWorkers
	}
	if f.LogLevel != "" {
		level, err := zerolog.ParseLevel(f.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log_level %q: %w", f.LogLevel, err)
		}
		c.LogLevel = level
	}
	return c, nil
}
