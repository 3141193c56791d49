package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr         string         `yaml:"addr"`
	APITimeout   time.Duration  `yaml:"timeout"`
	DatabasePath string         `yaml:"database_path"`
	Registry     RegistryConfig `yaml:"registry"`
	Sweeper      SweeperConfig  `yaml:"sweeper"`
}

// RegistryConfig holds settings for the upstream NPI registry client.
type RegistryConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// SweeperConfig tunes the background expiry alert sweeper. An Interval of 0
// disables the sweeper entirely.
type SweeperConfig struct {
	Interval   time.Duration `yaml:"interval"`
	WindowDays int           `yaml:"window_days"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:         getEnv("CREDWATCH_ADDR", ":8080"),
		APITimeout:   15 * time.Second,
		DatabasePath: getEnv("CREDWATCH_DATABASE_PATH", "credwatch.db"),
		Registry: RegistryConfig{
			BaseURL:                 getEnv("CREDWATCH_NPI_URL", "http://localhost:8001"),
			Timeout:                 10 * time.Second,
			Retries:                 2,
			Backoff:                 500 * time.Millisecond,
			CircuitFailureThreshold: 5,
			CircuitReset:            30 * time.Second,
		},
		Sweeper: SweeperConfig{
			Interval:   1 * time.Hour,
			WindowDays: 30,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if c.Registry.BaseURL == "" {
		return fmt.Errorf("registry.base_url is required")
	}
	if c.Sweeper.Interval < 0 {
		return fmt.Errorf("sweeper.interval must not be negative")
	}
	if c.Sweeper.WindowDays < 0 {
		return fmt.Errorf("sweeper.window_days must not be negative")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
