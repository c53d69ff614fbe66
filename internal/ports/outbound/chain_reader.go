// Package outbound defines the interfaces the pipeline services depend on.
// Adapters under internal/adapters/outbound provide the implementations.
package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// ChainReader is the subset of EVM JSON-RPC operations the accumulator needs.
// The method set mirrors ethclient.Client so the adapter stays a thin wrapper
// that adds pacing and bounded retry.
type ChainReader interface {
	// BlockNumber returns the current chain tip.
	BlockNumber(ctx context.Context) (uint64, error)

	// HeaderByNumber returns the header for the given block, used to resolve
	// checkpoint timestamps.
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)

	// FilterLogs returns event logs matching the query. The block range in the
	// query is inclusive and must already be bounded by the caller's chunk size.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)

	// CallContract executes a read-only contract call at the given block.
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
