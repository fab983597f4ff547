package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tranvu/ledgersync/internal/core/domain"
)

// fakeClient serves canned JSON-RPC results keyed by method.
type fakeClient struct {
	results map[string]json.RawMessage
	calls   map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		results: make(map[string]json.RawMessage),
		calls:   make(map[string]int),
	}
}

func (c *fakeClient) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	c.calls[method]++
	result, ok := c.results[method]
	if !ok {
		return nil, fmt.Errorf("unexpected method %s", method)
	}
	return result, nil
}

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func transferLog(contract common.Address, from, to common.Address, value int64,
	block uint64, index uint, removed bool) types.Log {
	eventID := tokenABI.Events["Transfer"].ID
	return types.Log{
		Address:     contract,
		Topics:      []common.Hash{eventID, addressTopic(from), addressTopic(to)},
		Data:        common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
		BlockNumber: block,
		TxHash:      common.HexToHash("0xabc"),
		Index:       index,
		Removed:     removed,
	}
}

func TestFetcher_Head(t *testing.T) {
	client := newFakeClient()
	client.results["eth_blockNumber"] = json.RawMessage(`"0x64"`)

	head, err := NewFetcher(client).Head(context.Background())
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	if head != 100 {
		t.Errorf("Head = %d, want 100", head)
	}
}

func TestFetcher_FetchEvents_DecodeTransfer(t *testing.T) {
	contract := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	from := common.HexToAddress("0x0000000000000000000000000000000000000001")
	to := common.HexToAddress("0x0000000000000000000000000000000000000002")

	logs := []types.Log{
		transferLog(contract, from, to, 500, 42, 0, false),
		transferLog(contract, to, from, 700, 42, 1, false),
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		t.Fatal(err)
	}

	client := newFakeClient()
	client.results["eth_getLogs"] = logsJSON
	client.results["eth_getBlockByNumber"] = json.RawMessage(`{"timestamp":"0x5f5e1000"}`)

	fetcher := NewFetcher(client)
	events, err := fetcher.FetchEvents(context.Background(),
		NewTokenContract(contract.Hex()), domain.EventTransfer, Window{From: 1, To: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	e := events[0]
	if e.Kind != domain.EventTransfer {
		t.Errorf("Kind = %s, want Transfer", e.Kind)
	}
	if e.BlockNumber != 42 || e.LogIndex != 0 {
		t.Errorf("position = (%d,%d), want (42,0)", e.BlockNumber, e.LogIndex)
	}

	gotFrom, err := e.Address("from")
	if err != nil {
		t.Fatalf("Address(from) failed: %v", err)
	}
	if gotFrom != from.Hex() {
		t.Errorf("from = %s, want %s", gotFrom, from.Hex())
	}
	value, err := e.Decimal("value")
	if err != nil {
		t.Fatalf("Decimal(value) failed: %v", err)
	}
	if value.String() != "500" {
		t.Errorf("value = %s, want 500", value)
	}
	if want := time.Unix(0x5f5e1000, 0).UTC(); !e.BlockTimestamp.Equal(want) {
		t.Errorf("timestamp = %s, want %s", e.BlockTimestamp, want)
	}

	// Both logs are in the same block, the timestamp lookup must be cached.
	if got := client.calls["eth_getBlockByNumber"]; got != 1 {
		t.Errorf("eth_getBlockByNumber called %d times, want 1", got)
	}
}

func TestFetcher_FetchEvents_SkipsRemovedLogs(t *testing.T) {
	contract := common.HexToAddress("0xaa")
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")

	logs := []types.Log{
		transferLog(contract, from, to, 500, 42, 0, true),
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		t.Fatal(err)
	}

	client := newFakeClient()
	client.results["eth_getLogs"] = logsJSON

	events, err := NewFetcher(client).FetchEvents(context.Background(),
		NewTokenContract(contract.Hex()), domain.EventTransfer, Window{From: 1, To: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestFetcher_FetchEvents_UnknownEventName(t *testing.T) {
	// The legacy template defines Transfer only; asking it for approval
	// events must yield zero events without touching the node.
	client := newFakeClient()

	events, err := NewFetcher(client).FetchEvents(context.Background(),
		NewLegacyTokenContract("0xaa"), domain.EventApplyForTransfer, Window{From: 1, To: 100})
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if events != nil {
		t.Errorf("got %v, want nil", events)
	}
	if client.calls["eth_getLogs"] != 0 {
		t.Errorf("eth_getLogs called %d times, want 0", client.calls["eth_getLogs"])
	}
}
