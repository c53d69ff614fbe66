package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/memory"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/config"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

var testToken = common.HexToAddress("0x1111111111111111111111111111111111111111")

type mockChainReader struct {
	tip     uint64
	logData [][]byte
}

func (m *mockChainReader) BlockNumber(ctx context.Context) (uint64, error) {
	return m.tip, nil
}

func (m *mockChainReader) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return &ethtypes.Header{Number: number, Time: 1704067200 + number.Uint64()}, nil
}

func (m *mockChainReader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	logs := make([]ethtypes.Log, len(m.logData))
	for i, data := range m.logData {
		logs[i] = ethtypes.Log{Address: testToken, Data: data, BlockNumber: q.FromBlock.Uint64()}
	}
	return logs, nil
}

func (m *mockChainReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return common.LeftPadBytes(big.NewInt(18).Bytes(), 32), nil
}

type mockProvider struct {
	calls int
	price float64
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) GetDailyPrices(ctx context.Context, coinID string, from, to time.Time) ([]*entity.PricePoint, error) {
	m.calls++
	var points []*entity.PricePoint
	for d := entity.DayOf(from); !d.After(entity.DayOf(to)); d = d.AddDate(0, 0, 1) {
		points = append(points, &entity.PricePoint{Date: d, Price: m.price})
	}
	return points, nil
}

type mockMirror struct {
	rawCalls int
	usdCalls int
	err      error
}

func (m *mockMirror) MirrorRaw(ctx context.Context, network, category string, rows []*entity.RawCheckpoint) error {
	m.rawCalls++
	return m.err
}

func (m *mockMirror) MirrorUSD(ctx context.Context, network, category string, rows []*entity.USDCheckpoint) error {
	m.usdCalls++
	return m.err
}

func eth(whole int64) []byte {
	v := new(big.Int).Mul(big.NewInt(whole), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return common.LeftPadBytes(v.Bytes(), 32)
}

func testConfig() *config.Config {
	return &config.Config{
		DataDir:           "csv",
		PriceLookbackDays: 30,
		Networks: map[string]config.NetworkConfig{
			"telos": {
				RPCURL:            "http://localhost:8545",
				ChunkSize:         100,
				RequestsPerSecond: 4,
				Categories: []config.CategoryConfig{
					{
						Name:            "staking_fees",
						CoinID:          "telos",
						RawAmountColumn: "token_amount",
						USDColumn:       "usd_rewards",
						Accumulation:    "sum",
						StartBlock:      100,
						Extractor: config.ExtractorConfig{
							Kind:     "transfer_sum",
							Tokens:   []string{testToken.Hex()},
							Decimals: 18,
						},
					},
				},
			},
		},
	}
}

func dialTo(reader outbound.ChainReader, err error) DialFunc {
	return func(ctx context.Context, network string, cfg config.NetworkConfig) (outbound.ChainReader, func(), error) {
		if err != nil {
			return nil, nil, err
		}
		return reader, func() {}, nil
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
}

func TestRun_FullPass(t *testing.T) {
	reader := &mockChainReader{tip: 250, logData: [][]byte{eth(3)}}
	ledgers := memory.NewFactory()
	provider := &mockProvider{price: 2.0}

	svc, err := NewService(ServiceConfig{Config: testConfig(), Now: fixedNow}, Dependencies{
		Dial:    dialTo(reader, nil),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  provider,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report has failures: %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(report.Outcomes))
	}

	o := report.Outcomes[0]
	// Blocks 100..250 in chunks of 100: [100,199] and [200,250].
	if o.ChunksAppended != 2 || o.RowsConverted != 2 {
		t.Errorf("outcome = %+v, want 2 chunks and 2 rows", o)
	}

	cat, _ := entity.NewCategory("staking_fees", "telos", "token_amount", "usd_rewards", entity.AccumulateSum, true)
	usd, _ := ledgers.USD("telos", cat)
	rows, _ := usd.Load(context.Background())
	if len(rows) != 2 {
		t.Fatalf("usd rows = %d, want 2", len(rows))
	}
	// 3 tokens per chunk at price 2.
	if rows[0].CumulativeUSD != 6 || rows[1].CumulativeUSD != 12 {
		t.Errorf("usd rows = %v, %v, want 6, 12", rows[0].CumulativeUSD, rows[1].CumulativeUSD)
	}
}

func TestRun_SecondRunIsIdempotentAtSameTip(t *testing.T) {
	reader := &mockChainReader{tip: 250, logData: [][]byte{eth(3)}}
	ledgers := memory.NewFactory()

	svc, _ := NewService(ServiceConfig{Config: testConfig(), Now: fixedNow}, Dependencies{
		Dial:    dialTo(reader, nil),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  &mockProvider{price: 2.0},
	})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	o := report.Outcomes[0]
	if o.Err != nil {
		t.Fatalf("second run failed: %v", o.Err)
	}
	if o.ChunksAppended != 0 || o.RowsConverted != 0 {
		t.Errorf("second run outcome = %+v, want no new work", o)
	}
}

func TestRun_DialFailureIsolatedPerNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.Networks["fuse"] = config.NetworkConfig{
		RPCURL:    "http://localhost:9545",
		ChunkSize: 100,
		Categories: []config.CategoryConfig{
			{
				Name:            "mint_fees",
				CoinID:          "fuse",
				RawAmountColumn: "token_amount",
				USDColumn:       "usd_fees",
				Accumulation:    "sum",
				Extractor: config.ExtractorConfig{
					Kind:     "transfer_sum",
					Tokens:   []string{testToken.Hex()},
					Decimals: 18,
				},
			},
		},
	}

	dialErr := errors.New("connection refused")
	reader := &mockChainReader{tip: 250}
	dial := func(ctx context.Context, network string, netCfg config.NetworkConfig) (outbound.ChainReader, func(), error) {
		if network == "fuse" {
			return nil, nil, dialErr
		}
		return reader, func() {}, nil
	}

	ledgers := memory.NewFactory()
	svc, _ := NewService(ServiceConfig{Config: cfg, Now: fixedNow}, Dependencies{
		Dial:    dial,
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  &mockProvider{price: 1.0},
	})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(report.Outcomes))
	}

	failed := report.Failed()
	if len(failed) != 1 || failed[0].Network != "fuse" || !errors.Is(failed[0].Err, dialErr) {
		t.Errorf("failed = %+v", failed)
	}
	for _, o := range report.Outcomes {
		if o.Network == "telos" && o.Err != nil {
			t.Errorf("healthy network failed: %v", o.Err)
		}
	}
}

func TestRun_FixedPriceCategorySkipsRemoteProvider(t *testing.T) {
	cfg := testConfig()
	cat := cfg.Networks["telos"].Categories[0]
	cat.Name = "stability_fees"
	cat.CoinID = "usdm"
	cat.FixedPriceUSD = 1.0
	net := cfg.Networks["telos"]
	net.Categories = []config.CategoryConfig{cat}
	cfg.Networks["telos"] = net

	reader := &mockChainReader{tip: 250, logData: [][]byte{eth(5)}}
	ledgers := memory.NewFactory()
	provider := &mockProvider{price: 99}

	svc, _ := NewService(ServiceConfig{Config: cfg, Now: fixedNow}, Dependencies{
		Dial:    dialTo(reader, nil),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  provider,
	})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("report has failures: %v", err)
	}
	if provider.calls != 0 {
		t.Errorf("remote provider called %d times for a pegged asset", provider.calls)
	}

	domainCat, _ := entity.NewCategory("stability_fees", "usdm", "token_amount", "usd_rewards", entity.AccumulateSum, true)
	usd, _ := ledgers.USD("telos", domainCat)
	rows, _ := usd.Load(context.Background())
	// 5 tokens per chunk at a fixed price of 1.
	if len(rows) != 2 || rows[1].CumulativeUSD != 10 {
		t.Errorf("usd rows = %+v, want final cumulative 10", rows)
	}
}

func TestRun_MirrorFailureDoesNotFailStream(t *testing.T) {
	reader := &mockChainReader{tip: 250, logData: [][]byte{eth(1)}}
	ledgers := memory.NewFactory()
	mirror := &mockMirror{err: errors.New("db down")}

	svc, _ := NewService(ServiceConfig{Config: testConfig(), Now: fixedNow}, Dependencies{
		Dial:    dialTo(reader, nil),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  &mockProvider{price: 1.0},
		Mirror:  mirror,
	})

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("mirror failure leaked into the report: %v", err)
	}
	if mirror.rawCalls != 1 || mirror.usdCalls != 1 {
		t.Errorf("mirror calls = %d raw, %d usd, want 1 each", mirror.rawCalls, mirror.usdCalls)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ledgers := memory.NewFactory()
	svc, _ := NewService(ServiceConfig{Config: testConfig(), Now: fixedNow}, Dependencies{
		Dial:    dialTo(&mockChainReader{tip: 250}, nil),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  &mockProvider{price: 1.0},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
