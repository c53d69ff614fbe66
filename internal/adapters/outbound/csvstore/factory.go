package csvstore

import (
	"fmt"
	"path/filepath"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/domain/entity"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time check that Factory implements outbound.LedgerFactory.
var _ outbound.LedgerFactory = (*Factory)(nil)

// Factory opens CSV ledgers under a base directory, one subdirectory per
// category with per-network files, plus a shared historical_prices directory:
//
//	<base>/<category>/<network>_<category>_raw.csv
//	<base>/<category>/<network>_<category>_with_usd.csv
//	<base>/historical_prices/<coin>_historical_prices.csv
type Factory struct {
	baseDir string
}

// NewFactory creates a ledger factory rooted at baseDir.
func NewFactory(baseDir string) (*Factory, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir must not be empty")
	}
	return &Factory{baseDir: baseDir}, nil
}

// Raw opens the raw ledger for a network/category pair.
func (f *Factory) Raw(network string, category *entity.Category) (outbound.RawLedger, error) {
	path := filepath.Join(f.baseDir, category.Name, fmt.Sprintf("%s_%s_raw.csv", network, category.Name))
	return NewRawLedger(path)
}

// USD opens the USD ledger for a network/category pair.
func (f *Factory) USD(network string, category *entity.Category) (outbound.USDLedger, error) {
	path := filepath.Join(f.baseDir, category.Name, fmt.Sprintf("%s_%s_with_usd.csv", network, category.Name))
	return NewUSDLedger(path, category.RawAmountColumn, category.USDColumn)
}

// Prices opens the daily price cache for a coin identifier.
func (f *Factory) Prices(coinID string) (outbound.PriceCache, error) {
	path := filepath.Join(f.baseDir, "historical_prices", fmt.Sprintf("%s_historical_prices.csv", coinID))
	return NewPriceCache(path)
}
