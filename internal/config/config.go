package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the simulator server.
type Config struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	UseMemory     bool   `yaml:"use_memory"`

	API    APIConfig    `yaml:"api"`
	Quotes QuotesConfig `yaml:"quotes"`
}

type APIConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type QuotesConfig struct {
	BaseURL      string        `yaml:"base_url"`
	TTL          time.Duration `yaml:"ttl"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

func Default() Config {
	return Config{
		UseMemory: false,
		API: APIConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
		Quotes: QuotesConfig{
			BaseURL:      "https://query1.finance.yahoo.com/v8/finance/chart",
			TTL:          30 * time.Second,
			FetchTimeout: 5 * time.Second,
		},
	}
}

// LoadFile reads a YAML config file over the defaults. A missing file is
// an error; callers that treat the file as optional should check
// os.IsNotExist on the returned error.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config. Env vars win
// over file values so deployments can override without editing the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.ClickHouseDSN = v
	}
	if v := os.Getenv("TRADESIM_USE_MEMORY"); v != "" {
		c.UseMemory = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("TRADESIM_API_ADDR"); v != "" {
		c.API.Addr = v
	}
	if v := os.Getenv("TRADESIM_METRICS_ADDR"); v != "" {
		c.API.MetricsAddr = v
	}
	if v := os.Getenv("TRADESIM_QUOTE_BASE_URL"); v != "" {
		c.Quotes.BaseURL = v
	}
	if v := os.Getenv("TRADESIM_QUOTE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Quotes.TTL = d
		}
	}
	if v := os.Getenv("TRADESIM_QUOTE_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Quotes.FetchTimeout = d
		}
	}
}
