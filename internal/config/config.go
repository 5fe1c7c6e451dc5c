// Package config loads server settings from an optional YAML file with
// environment fallbacks for the values that change between deployments.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"linkpay/internal/logging"
)

// Config holds the server settings.
type Config struct {
	Server struct {
		Addr        string   `yaml:"addr"`
		BaseURL     string   `yaml:"base_url"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Content struct {
		Dir    string `yaml:"dir"`
		Bucket struct {
			Endpoint  string `yaml:"endpoint"`
			AccessKey string `yaml:"access_key"`
			SecretKey string `yaml:"secret_key"`
			Bucket    string `yaml:"bucket"`
			Prefix    string `yaml:"prefix"`
		} `yaml:"bucket"`
	} `yaml:"content"`
	Limits struct {
		MaxUnpaidLinks int `yaml:"max_unpaid_links"`
		CleanupHours   int `yaml:"cleanup_hours"`
		RequestsPerSec int `yaml:"requests_per_sec"`
	} `yaml:"limits"`
	Wallet struct {
		PayerAddress string `yaml:"payer_address"`
	} `yaml:"wallet"`
}

// Default returns the built-in settings used when no config file is given.
func Default() Config {
	cfg := Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.BaseURL = ""
	cfg.Limits.MaxUnpaidLinks = 5
	cfg.Limits.CleanupHours = 24
	return cfg
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv fills unset values from the environment. The base URL gets a
// localhost placeholder when nothing is configured, with a warning, so
// generated share links still resolve in dev.
func (c *Config) ApplyEnv() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = os.Getenv("LINKPAY_BASE_URL")
	}
	if c.Server.BaseURL == "" {
		logging.Internal.Printf("warning: base URL not configured (set LINKPAY_BASE_URL), using http://localhost:8080")
		c.Server.BaseURL = "http://localhost:8080"
	}
	if c.Content.Bucket.AccessKey == "" {
		c.Content.Bucket.AccessKey = os.Getenv("LINKPAY_BUCKET_ACCESS_KEY")
	}
	if c.Content.Bucket.SecretKey == "" {
		c.Content.Bucket.SecretKey = os.Getenv("LINKPAY_BUCKET_SECRET_KEY")
	}
}
