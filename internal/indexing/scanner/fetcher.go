package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/infra/rpc"
)

// Fetcher retrieves and decodes contract events for a block window.
type Fetcher struct {
	client rpc.Client

	// Block timestamps are immutable, so decoded values are cached across
	// windows. Reset keeps the cache from growing without bound.
	tsMu    sync.Mutex
	tsCache map[uint64]time.Time
}

const tsCacheLimit = 8192

// NewFetcher creates a fetcher over the given RPC client.
func NewFetcher(client rpc.Client) *Fetcher {
	return &Fetcher{
		client:  client,
		tsCache: make(map[uint64]time.Time),
	}
}

// Head returns the current chain head.
func (f *Fetcher) Head(ctx context.Context) (uint64, error) {
	result, err := f.client.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	head, err := parseHexQuantity(result)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}
	metrics.ChainHead.Set(float64(head))
	return head, nil
}

// FetchEvents returns the decoded events of one kind emitted by the contract
// within the window. An event name missing from the contract's interface
// (older template versions) yields zero events, not an error.
func (f *Fetcher) FetchEvents(ctx context.Context, contract Contract, kind domain.EventKind, w Window) ([]*domain.Event, error) {
	event, ok := contract.ABI.Events[string(kind)]
	if !ok {
		return nil, nil
	}

	filter := map[string]any{
		"fromBlock": hexQuantity(w.From),
		"toBlock":   hexQuantity(w.To),
		"address":   contract.Address,
		"topics":    []any{event.ID.Hex()},
	}
	result, err := f.client.Call(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs %s [%d,%d]: %w", kind, w.From, w.To, err)
	}

	var logs []types.Log
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, fmt.Errorf("decode eth_getLogs result: %w", err)
	}

	events := make([]*domain.Event, 0, len(logs))
	for i := range logs {
		log := &logs[i]
		if log.Removed {
			continue
		}

		args, err := decodeLog(event, log)
		if err != nil {
			return nil, fmt.Errorf("decode %s log at block %d index %d: %w",
				kind, log.BlockNumber, log.Index, err)
		}

		ts, err := f.blockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, err
		}

		events = append(events, &domain.Event{
			Kind:            kind,
			ContractAddress: log.Address.Hex(),
			BlockNumber:     log.BlockNumber,
			LogIndex:        log.Index,
			TxHash:          log.TxHash.Hex(),
			BlockTimestamp:  ts,
			Args:            args,
		})
	}
	return events, nil
}

func decodeLog(event ethabi.Event, log *types.Log) (map[string]any, error) {
	args := make(map[string]any)

	if len(log.Data) > 0 {
		if err := event.Inputs.UnpackIntoMap(args, log.Data); err != nil {
			return nil, fmt.Errorf("unpack data: %w", err)
		}
	}

	var indexed ethabi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(indexed) > 0 {
		if len(log.Topics) < len(indexed)+1 {
			return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(log.Topics))
		}
		if err := ethabi.ParseTopicsIntoMap(args, indexed, log.Topics[1:len(indexed)+1]); err != nil {
			return nil, fmt.Errorf("parse topics: %w", err)
		}
	}

	return args, nil
}

func (f *Fetcher) blockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	f.tsMu.Lock()
	if ts, ok := f.tsCache[blockNumber]; ok {
		f.tsMu.Unlock()
		return ts, nil
	}
	f.tsMu.Unlock()

	result, err := f.client.Call(ctx, "eth_getBlockByNumber", []any{hexQuantity(blockNumber), false})
	if err != nil {
		return time.Time{}, fmt.Errorf("eth_getBlockByNumber %d: %w", blockNumber, err)
	}

	var block struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return time.Time{}, fmt.Errorf("decode block %d: %w", blockNumber, err)
	}
	secs, err := strconv.ParseUint(strings.TrimPrefix(block.Timestamp, "0x"), 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse block %d timestamp: %w", blockNumber, err)
	}
	ts := time.Unix(int64(secs), 0).UTC()

	f.tsMu.Lock()
	if len(f.tsCache) >= tsCacheLimit {
		f.tsCache = make(map[uint64]time.Time)
	}
	f.tsCache[blockNumber] = ts
	f.tsMu.Unlock()

	return ts, nil
}

func hexQuantity(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func parseHexQuantity(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected hex quantity: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse hex quantity %q: %w", s, err)
	}
	return v, nil
}
