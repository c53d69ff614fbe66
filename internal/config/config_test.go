package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validConfig = `{
  "data_dir": "csv",
  "networks": {
    "telos": {
      "rpc_url": "https://rpc.telos.net",
      "chunk_size": 100000,
      "categories": [
        {
          "name": "mint_incentives",
          "coin_id": "telos",
          "raw_column": "lqty_amount",
          "usd_column": "usd_issued",
          "accumulation": "max",
          "start_block": 311768194,
          "extractor": {
            "kind": "issued_max",
            "contract": "0xC573b879Aae1a74aa6c6a5226F8E2e53644D34a4",
            "event_signature": "TotalLQTYIssuedUpdated(uint256)"
          }
        }
      ]
    }
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	net, ok := cfg.Networks["telos"]
	if !ok {
		t.Fatal("telos network missing")
	}
	if net.ChunkSize != 100000 {
		t.Errorf("chunk_size = %d, want 100000", net.ChunkSize)
	}
	if net.RequestsPerSecond != 4 {
		t.Errorf("requests_per_second default = %f, want 4", net.RequestsPerSecond)
	}
	if cfg.PriceLookbackDays != 730 {
		t.Errorf("price_lookback_days default = %d, want 730", cfg.PriceLookbackDays)
	}

	cat, err := net.Categories[0].Category()
	if err != nil {
		t.Fatalf("building category: %v", err)
	}
	if !cat.ClampNegativeDeltas {
		t.Error("clamp_negative_deltas should default to true")
	}
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"networks": `},
		{"no networks", `{"networks": {}}`},
		{"missing rpc", `{"networks": {"telos": {"chunk_size": 1000, "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "sum", "extractor": {"kind": "transfer_sum", "tokens": ["0x1"]}}]}}}`},
		{"zero chunk size", `{"networks": {"telos": {"rpc_url": "http://x", "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "sum", "extractor": {"kind": "transfer_sum", "tokens": ["0x1"]}}]}}}`},
		{"bad accumulation", `{"networks": {"telos": {"rpc_url": "http://x", "chunk_size": 1000, "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "avg", "extractor": {"kind": "transfer_sum", "tokens": ["0x1"]}}]}}}`},
		{"unknown extractor", `{"networks": {"telos": {"rpc_url": "http://x", "chunk_size": 1000, "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "sum", "extractor": {"kind": "scan_all"}}]}}}`},
		{"event_sum without contract", `{"networks": {"telos": {"rpc_url": "http://x", "chunk_size": 1000, "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "sum", "extractor": {"kind": "event_sum", "event_signature": "E(uint256)"}}]}}}`},
		{"balance_snapshot without holders", `{"networks": {"telos": {"rpc_url": "http://x", "chunk_size": 1000, "categories": [
			{"name": "x", "coin_id": "telos", "raw_column": "a", "usd_column": "b",
			 "accumulation": "replace", "extractor": {"kind": "balance_snapshot", "tokens": ["0x1"]}}]}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
