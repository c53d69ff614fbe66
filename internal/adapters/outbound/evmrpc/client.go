// Package evmrpc implements the ChainReader interface over an EVM JSON-RPC
// endpoint using go-ethereum's ethclient, adding request pacing and bounded
// retry so chunked log scans behave against rate-limited public providers.
package evmrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/pkg/retry"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Compile-time check that Client implements outbound.ChainReader.
var _ outbound.ChainReader = (*Client)(nil)

// ClientConfig holds configuration for the RPC client.
type ClientConfig struct {
	// RPCURL is the JSON-RPC endpoint URL.
	RPCURL string

	// RequestsPerSecond paces outgoing requests. Defaults to 4.
	RequestsPerSecond float64

	// MaxRetries is the maximum number of retry attempts for transient failures.
	MaxRetries int

	// InitialBackoff is the initial delay before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each retry.
	BackoffFactor float64

	// Logger is the structured logger for the client.
	Logger *slog.Logger
}

// ClientConfigDefaults returns a config with default values.
func ClientConfigDefaults() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 4,
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffFactor:     2.0,
		Logger:            slog.Default(),
	}
}

// Client implements ChainReader against a live EVM endpoint.
type Client struct {
	eth         *ethclient.Client
	limiter     *rate.Limiter
	retryConfig retry.Config
	logger      *slog.Logger
}

// Dial connects to the endpoint and returns a configured client.
// The caller is responsible for calling Close.
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.RPCURL == "" {
		return nil, errors.New("RPCURL is required")
	}

	defaults := ClientConfigDefaults()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialBackoff == 0 {
		config.InitialBackoff = defaults.InitialBackoff
	}
	if config.MaxBackoff == 0 {
		config.MaxBackoff = defaults.MaxBackoff
	}
	if config.BackoffFactor == 0 {
		config.BackoffFactor = defaults.BackoffFactor
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}

	eth, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", config.RPCURL, err)
	}

	return &Client{
		eth:     eth,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		retryConfig: retry.Config{
			MaxRetries:     config.MaxRetries,
			InitialBackoff: config.InitialBackoff,
			MaxBackoff:     config.MaxBackoff,
			BackoffFactor:  config.BackoffFactor,
			Jitter:         true,
		},
		logger: config.Logger.With("component", "evmrpc-client"),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// BlockNumber returns the current chain tip.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return do(ctx, c, "eth_blockNumber", func() (uint64, error) {
		return c.eth.BlockNumber(ctx)
	})
}

// HeaderByNumber returns the header for the given block.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return do(ctx, c, "eth_getBlockByNumber", func() (*ethtypes.Header, error) {
		return c.eth.HeaderByNumber(ctx, number)
	})
}

// FilterLogs returns event logs matching the query.
func (c *Client) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	return do(ctx, c, "eth_getLogs", func() ([]ethtypes.Log, error) {
		return c.eth.FilterLogs(ctx, q)
	})
}

// CallContract executes a read-only contract call at the given block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return do(ctx, c, "eth_call", func() ([]byte, error) {
		return c.eth.CallContract(ctx, msg, blockNumber)
	})
}

func do[T any](ctx context.Context, c *Client, method string, fn func() (T, error)) (T, error) {
	onRetry := func(attempt int, err error, backoff time.Duration) {
		c.logger.Warn("RPC request failed, retrying",
			"method", method,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
	}

	return retry.Do(ctx, c.retryConfig, isRetryable, onRetry, func() (T, error) {
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("rate limiter: %w", err)
		}
		return fn()
	})
}

// isRetryable treats everything except context cancellation and execution
// reverts as transient: public RPC providers routinely return sporadic 5xx and
// rate-limit responses for ranges that succeed on the next attempt.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return false
	}
	return true
}
