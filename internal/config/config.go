// Package config loads service configuration from an optional YAML file
// with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Addr     string           `yaml:"addr"`
	DataDir  string           `yaml:"data_dir"`
	Baseline BaselineConfig   `yaml:"baseline"`
	Pool     AllocationConfig `yaml:"allocation"`
	Chain    ChainConfig      `yaml:"chain"`
}

// BaselineConfig tunes the baseline test policy.
type BaselineConfig struct {
	// PassThreshold is the minimum composite score (out of 30) required
	// for a session's vote to count.
	PassThreshold float64 `yaml:"pass_threshold"`
}

// AllocationConfig tunes the default allocation run.
type AllocationConfig struct {
	// Amount is the fixed SOL pool distributed per allocation run.
	Amount   float64 `yaml:"amount"`
	MinVotes int     `yaml:"min_votes"`
	// TopN truncates to the N largest allocations; 0 keeps all.
	TopN int `yaml:"top_n"`
}

// ChainConfig points at the on-chain collaborators.
type ChainConfig struct {
	RPCEndpoint    string `yaml:"rpc_endpoint"`
	TreasuryWallet string `yaml:"treasury_wallet"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:    ":8080",
		DataDir: "./data",
		Baseline: BaselineConfig{
			PassThreshold: 20,
		},
		Pool: AllocationConfig{
			Amount:   100,
			MinVotes: 1,
		},
		Chain: ChainConfig{
			RPCEndpoint: "https://api.devnet.solana.com",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty) over the
// defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.Pool.MinVotes < 1 {
		cfg.Pool.MinVotes = 1
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BASELINE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("BASELINE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BASELINE_PASS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Baseline.PassThreshold = f
		}
	}
	if v := os.Getenv("BASELINE_POOL_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pool.Amount = f
		}
	}
	if v := os.Getenv("BASELINE_MIN_VOTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.MinVotes = n
		}
	}
	if v := os.Getenv("BASELINE_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pool.TopN = n
		}
	}
	if v := os.Getenv("BASELINE_RPC_ENDPOINT"); v != "" {
		cfg.Chain.RPCEndpoint = v
	}
	if v := os.Getenv("BASELINE_TREASURY_WALLET"); v != "" {
		cfg.Chain.TreasuryWallet = v
	}
}
