package accumulator

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/config"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
)

// Extractor reduces the on-chain activity of one block range to a single
// token-denominated value. Implementations must not assume any ordering of
// the underlying logs beyond what the node returns.
type Extractor interface {
	ChunkValue(ctx context.Context, fromBlock, toBlock int64) (float64, error)
}

var (
	transferEventID   = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	decimalsSelector  = crypto.Keccak256([]byte("decimals()"))[:4]
	balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
)

const wordSize = 32

// BuildExtractor constructs the extractor selected by cfg. The configuration
// must already be validated.
func BuildExtractor(reader outbound.ChainReader, cfg config.ExtractorConfig) (Extractor, error) {
	switch cfg.Kind {
	case "transfer_sum":
		return NewTransferSum(reader, parseAddresses(cfg.Tokens), cfg.FromAddress, cfg.ToAddress, cfg.Decimals)
	case "event_sum":
		return NewEventFieldSum(reader, common.HexToAddress(cfg.Contract), cfg.EventSignature, cfg.DataWordIndex, cfg.Decimals)
	case "issued_max":
		return NewIssuedMax(reader, common.HexToAddress(cfg.Contract), cfg.EventSignature, cfg.DataWordIndex, cfg.Decimals)
	case "balance_snapshot":
		return NewBalanceSnapshot(reader, parseAddresses(cfg.Tokens), parseAddresses(cfg.Holders), cfg.Decimals)
	default:
		return nil, fmt.Errorf("unknown extractor kind %q", cfg.Kind)
	}
}

func parseAddresses(hexes []string) []common.Address {
	addrs := make([]common.Address, len(hexes))
	for i, h := range hexes {
		addrs[i] = common.HexToAddress(h)
	}
	return addrs
}

// decimalsCache resolves and memoizes ERC20 decimals() per token contract.
// A configured override bypasses the on-chain call entirely.
type decimalsCache struct {
	reader   outbound.ChainReader
	override int

	mu     sync.Mutex
	byAddr map[common.Address]int
}

func newDecimalsCache(reader outbound.ChainReader, override int) *decimalsCache {
	return &decimalsCache{
		reader:   reader,
		override: override,
		byAddr:   make(map[common.Address]int),
	}
}

func (d *decimalsCache) get(ctx context.Context, token common.Address) (int, error) {
	if d.override > 0 {
		return d.override, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if dec, ok := d.byAddr[token]; ok {
		return dec, nil
	}

	out, err := d.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsSelector}, nil)
	if err != nil {
		return 0, fmt.Errorf("reading decimals of %s: %w", token.Hex(), err)
	}
	if len(out) < wordSize {
		return 0, fmt.Errorf("reading decimals of %s: short return data (%d bytes)", token.Hex(), len(out))
	}
	dec := int(new(big.Int).SetBytes(out[:wordSize]).Int64())
	d.byAddr[token] = dec
	return dec, nil
}

// scale converts an integer token amount to a float in whole-token units.
func scale(amount *big.Int, decimals int) float64 {
	f := new(big.Float).SetInt(amount)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	scaled, _ := new(big.Float).Quo(f, divisor).Float64()
	return scaled
}

// addressTopic pads an address into the 32-byte topic form.
func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// dataWord extracts the i-th 32-byte word of log data as an unsigned integer.
func dataWord(data []byte, index int) (*big.Int, error) {
	start := index * wordSize
	if start < 0 || start+wordSize > len(data) {
		return nil, fmt.Errorf("log data has no word %d (%d bytes)", index, len(data))
	}
	return new(big.Int).SetBytes(data[start : start+wordSize]), nil
}

// eventID hashes a canonical event signature like
// "Redemption(address,uint256,uint256,uint256)" into its topic0 value.
func eventID(signature string) (common.Hash, error) {
	sig := strings.TrimSpace(signature)
	if sig == "" || !strings.HasSuffix(sig, ")") || !strings.Contains(sig, "(") {
		return common.Hash{}, fmt.Errorf("malformed event signature %q", signature)
	}
	return crypto.Keccak256Hash([]byte(sig)), nil
}

// TransferSum sums the value field of ERC20 Transfer events on the configured
// token contracts, optionally filtered by sender or recipient.
type TransferSum struct {
	reader   outbound.ChainReader
	tokens   []common.Address
	from     *common.Address
	to       *common.Address
	decimals *decimalsCache
}

// NewTransferSum creates a TransferSum extractor. Empty from/to hex strings
// leave the corresponding topic unfiltered.
func NewTransferSum(reader outbound.ChainReader, tokens []common.Address, fromHex, toHex string, decimalsOverride int) (*TransferSum, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("at least one token address required")
	}
	e := &TransferSum{
		reader:   reader,
		tokens:   tokens,
		decimals: newDecimalsCache(reader, decimalsOverride),
	}
	if fromHex != "" {
		addr := common.HexToAddress(fromHex)
		e.from = &addr
	}
	if toHex != "" {
		addr := common.HexToAddress(toHex)
		e.to = &addr
	}
	return e, nil
}

func (e *TransferSum) ChunkValue(ctx context.Context, fromBlock, toBlock int64) (float64, error) {
	topics := [][]common.Hash{{transferEventID}}
	if e.from != nil || e.to != nil {
		fromFilter := []common.Hash(nil)
		if e.from != nil {
			fromFilter = []common.Hash{addressTopic(*e.from)}
		}
		topics = append(topics, fromFilter)
		if e.to != nil {
			topics = append(topics, []common.Hash{addressTopic(*e.to)})
		}
	}

	logs, err := e.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: e.tokens,
		Topics:    topics,
	})
	if err != nil {
		return 0, fmt.Errorf("filtering transfers in [%d, %d]: %w", fromBlock, toBlock, err)
	}

	var total float64
	for _, lg := range logs {
		value, err := dataWord(lg.Data, 0)
		if err != nil {
			return 0, fmt.Errorf("transfer log at block %d: %w", lg.BlockNumber, err)
		}
		dec, err := e.decimals.get(ctx, lg.Address)
		if err != nil {
			return 0, err
		}
		total += scale(value, dec)
	}
	return total, nil
}

// EventFieldSum sums one uint256 data field of a named event emitted by a
// single contract, e.g. the redemption fee field of Redemption events.
type EventFieldSum struct {
	reader    outbound.ChainReader
	contract  common.Address
	topic0    common.Hash
	wordIndex int
	decimals  *decimalsCache
}

// NewEventFieldSum creates an EventFieldSum extractor for the data word at
// wordIndex of every matching event.
func NewEventFieldSum(reader outbound.ChainReader, contract common.Address, signature string, wordIndex, decimalsOverride int) (*EventFieldSum, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if wordIndex < 0 {
		return nil, fmt.Errorf("word index must be non-negative, got %d", wordIndex)
	}
	topic0, err := eventID(signature)
	if err != nil {
		return nil, err
	}
	dec := decimalsOverride
	if dec <= 0 {
		dec = 18
	}
	return &EventFieldSum{
		reader:    reader,
		contract:  contract,
		topic0:    topic0,
		wordIndex: wordIndex,
		decimals:  newDecimalsCache(reader, dec),
	}, nil
}

func (e *EventFieldSum) ChunkValue(ctx context.Context, fromBlock, toBlock int64) (float64, error) {
	logs, err := e.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{e.contract},
		Topics:    [][]common.Hash{{e.topic0}},
	})
	if err != nil {
		return 0, fmt.Errorf("filtering events in [%d, %d]: %w", fromBlock, toBlock, err)
	}

	var total float64
	for _, lg := range logs {
		value, err := dataWord(lg.Data, e.wordIndex)
		if err != nil {
			return 0, fmt.Errorf("event log at block %d: %w", lg.BlockNumber, err)
		}
		dec, err := e.decimals.get(ctx, lg.Address)
		if err != nil {
			return 0, err
		}
		total += scale(value, dec)
	}
	return total, nil
}

// IssuedMax tracks events that already carry a running total, keeping the
// highest value seen in the chunk. Zero when the chunk has no matching events.
type IssuedMax struct {
	inner *EventFieldSum
}

// NewIssuedMax creates an IssuedMax extractor over the data word at wordIndex.
func NewIssuedMax(reader outbound.ChainReader, contract common.Address, signature string, wordIndex, decimalsOverride int) (*IssuedMax, error) {
	inner, err := NewEventFieldSum(reader, contract, signature, wordIndex, decimalsOverride)
	if err != nil {
		return nil, err
	}
	return &IssuedMax{inner: inner}, nil
}

func (e *IssuedMax) ChunkValue(ctx context.Context, fromBlock, toBlock int64) (float64, error) {
	logs, err := e.inner.reader.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{e.inner.contract},
		Topics:    [][]common.Hash{{e.inner.topic0}},
	})
	if err != nil {
		return 0, fmt.Errorf("filtering events in [%d, %d]: %w", fromBlock, toBlock, err)
	}

	var best float64
	for _, lg := range logs {
		value, err := dataWord(lg.Data, e.inner.wordIndex)
		if err != nil {
			return 0, fmt.Errorf("event log at block %d: %w", lg.BlockNumber, err)
		}
		dec, err := e.inner.decimals.get(ctx, lg.Address)
		if err != nil {
			return 0, err
		}
		if v := scale(value, dec); v > best {
			best = v
		}
	}
	return best, nil
}

// BalanceSnapshot reads the absolute token balances of the configured holders
// at the chunk's closing block. Pairs with the replace accumulation policy.
type BalanceSnapshot struct {
	reader   outbound.ChainReader
	tokens   []common.Address
	holders  []common.Address
	decimals *decimalsCache
}

// NewBalanceSnapshot creates a BalanceSnapshot extractor summing every
// token/holder pair.
func NewBalanceSnapshot(reader outbound.ChainReader, tokens, holders []common.Address, decimalsOverride int) (*BalanceSnapshot, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if len(tokens) == 0 || len(holders) == 0 {
		return nil, fmt.Errorf("at least one token and one holder address required")
	}
	return &BalanceSnapshot{
		reader:   reader,
		tokens:   tokens,
		holders:  holders,
		decimals: newDecimalsCache(reader, decimalsOverride),
	}, nil
}

func (e *BalanceSnapshot) ChunkValue(ctx context.Context, fromBlock, toBlock int64) (float64, error) {
	at := big.NewInt(toBlock)

	var total float64
	for _, token := range e.tokens {
		dec, err := e.decimals.get(ctx, token)
		if err != nil {
			return 0, err
		}
		for _, holder := range e.holders {
			data := make([]byte, 0, len(balanceOfSelector)+wordSize)
			data = append(data, balanceOfSelector...)
			data = append(data, common.LeftPadBytes(holder.Bytes(), wordSize)...)

			out, err := e.reader.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, at)
			if err != nil {
				return 0, fmt.Errorf("reading balance of %s on %s at block %d: %w", holder.Hex(), token.Hex(), toBlock, err)
			}
			if len(out) < wordSize {
				return 0, fmt.Errorf("reading balance of %s on %s: short return data (%d bytes)", holder.Hex(), token.Hex(), len(out))
			}
			total += scale(new(big.Int).SetBytes(out[:wordSize]), dec)
		}
	}
	return total, nil
}
