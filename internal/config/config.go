// Package config loads the pipeline configuration file.
//
// The original deployment drove each revenue stream from a hard-coded
// per-script dictionary; here every network/category pair is data in one JSON
// document passed to the driver at construction.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
)

// Config is the root pipeline configuration.
type Config struct {
	// DataDir is the root directory for ledger and price cache CSV files.
	DataDir string `json:"data_dir"`

	// PriceLookbackDays bounds how far back price coverage is extended on a
	// cold cache. Defaults to 730.
	PriceLookbackDays int `json:"price_lookback_days"`

	// Networks maps network name to its chain access and category settings.
	Networks map[string]NetworkConfig `json:"networks"`
}

// NetworkConfig holds chain access settings and the categories tracked on
// one network.
type NetworkConfig struct {
	// RPCURL is the JSON-RPC endpoint for the network.
	RPCURL string `json:"rpc_url"`

	// ChunkSize is the maximum block span per log query, sized to the
	// provider's response limits (e.g. 100000 on Telos, 30000 on Fuse).
	ChunkSize int64 `json:"chunk_size"`

	// RequestsPerSecond paces RPC calls. Defaults to 4.
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Categories are the revenue streams tracked on this network.
	Categories []CategoryConfig `json:"categories"`
}

// CategoryConfig describes one revenue stream on one network.
type CategoryConfig struct {
	Name            string `json:"name"`
	CoinID          string `json:"coin_id"`
	RawAmountColumn string `json:"raw_column"`
	USDColumn       string `json:"usd_column"`

	// Accumulation is "sum", "max" or "replace".
	Accumulation string `json:"accumulation"`

	// ClampNegativeDeltas defaults to true when omitted.
	ClampNegativeDeltas *bool `json:"clamp_negative_deltas"`

	// StartBlock seeds the first run; resumed runs start from the ledger.
	StartBlock int64 `json:"start_block"`

	// FixedPriceUSD, when positive, prices the category at a constant value
	// (pegged assets) instead of querying the upstream price source.
	FixedPriceUSD float64 `json:"fixed_price_usd"`

	Extractor ExtractorConfig `json:"extractor"`
}

// ExtractorConfig selects and parameterizes the chunk-value extraction rule.
type ExtractorConfig struct {
	// Kind is "transfer_sum", "event_sum", "issued_max" or "balance_snapshot".
	Kind string `json:"kind"`

	// Tokens are ERC20 token contract addresses (transfer_sum,
	// balance_snapshot).
	Tokens []string `json:"tokens"`

	// FromAddress / ToAddress filter Transfer logs by indexed topics
	// (transfer_sum). Empty means unfiltered.
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`

	// Contract is the event-emitting contract (event_sum, issued_max).
	Contract string `json:"contract"`

	// EventSignature is the canonical event signature, e.g.
	// "Redemption(address,uint256,uint256,uint256)".
	EventSignature string `json:"event_signature"`

	// DataWordIndex selects which 32-byte word of the log data carries the
	// amount (event_sum, issued_max).
	DataWordIndex int `json:"data_word_index"`

	// Holders are the balance-holding addresses summed at each checkpoint
	// block (balance_snapshot).
	Holders []string `json:"holders"`

	// Decimals overrides on-chain decimals() lookup when positive.
	Decimals int `json:"decimals"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "csv"
	}
	if cfg.PriceLookbackDays <= 0 {
		cfg.PriceLookbackDays = 730
	}
	for name, net := range cfg.Networks {
		if net.RequestsPerSecond <= 0 {
			net.RequestsPerSecond = 4
		}
		cfg.Networks[name] = net
	}
}

// Validate checks the configuration is structurally sound.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("no networks configured")
	}
	for name, net := range c.Networks {
		if net.RPCURL == "" {
			return fmt.Errorf("network %s: rpc_url must not be empty", name)
		}
		if net.ChunkSize <= 0 {
			return fmt.Errorf("network %s: chunk_size must be positive, got %d", name, net.ChunkSize)
		}
		if len(net.Categories) == 0 {
			return fmt.Errorf("network %s: no categories configured", name)
		}
		for _, cat := range net.Categories {
			if _, err := cat.Category(); err != nil {
				return fmt.Errorf("network %s category %s: %w", name, cat.Name, err)
			}
			if err := cat.Extractor.validate(); err != nil {
				return fmt.Errorf("network %s category %s extractor: %w", name, cat.Name, err)
			}
			if cat.StartBlock < 0 {
				return fmt.Errorf("network %s category %s: start_block must be non-negative", name, cat.Name)
			}
		}
	}
	return nil
}

// Category builds the domain category from this configuration entry.
func (cc *CategoryConfig) Category() (*entity.Category, error) {
	clamp := true
	if cc.ClampNegativeDeltas != nil {
		clamp = *cc.ClampNegativeDeltas
	}
	return entity.NewCategory(
		cc.Name,
		cc.CoinID,
		cc.RawAmountColumn,
		cc.USDColumn,
		entity.AccumulationPolicy(cc.Accumulation),
		clamp,
	)
}

func (ec *ExtractorConfig) validate() error {
	switch ec.Kind {
	case "transfer_sum":
		if len(ec.Tokens) == 0 {
			return fmt.Errorf("transfer_sum requires at least one token address")
		}
	case "event_sum", "issued_max":
		if ec.Contract == "" {
			return fmt.Errorf("%s requires a contract address", ec.Kind)
		}
		if ec.EventSignature == "" {
			return fmt.Errorf("%s requires an event signature", ec.Kind)
		}
	case "balance_snapshot":
		if len(ec.Tokens) == 0 {
			return fmt.Errorf("balance_snapshot requires at least one token address")
		}
		if len(ec.Holders) == 0 {
			return fmt.Errorf("balance_snapshot requires at least one holder address")
		}
	default:
		return fmt.Errorf("unknown extractor kind %q", ec.Kind)
	}
	return nil
}
