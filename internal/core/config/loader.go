package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// hardMaxWindow is the largest block span a node will serve per log query.
const hardMaxWindow = 1_000_000

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = time.Minute
	}
	if cfg.Sync.MaxWindow == 0 || cfg.Sync.MaxWindow > hardMaxWindow {
		cfg.Sync.MaxWindow = hardMaxWindow
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.RPC.Endpoint == "" {
		return fmt.Errorf("rpc.endpoint is required")
	}
	for i, ex := range cfg.Sources.Exchanges {
		if ex.Address == "" {
			return fmt.Errorf("sources.exchanges[%d].address is required", i)
		}
	}
	for i, tk := range cfg.Sources.Tokens {
		if tk.Address == "" {
			return fmt.Errorf("sources.tokens[%d].address is required", i)
		}
	}
	for i, ap := range cfg.Sources.Approvals {
		if ap.Token == "" {
			return fmt.Errorf("sources.approvals[%d].token is required", i)
		}
	}
	return nil
}
