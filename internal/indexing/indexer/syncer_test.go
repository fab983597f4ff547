package indexer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tranvu/ledgersync/internal/core/checkpoint"
	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/scanner"
	"github.com/tranvu/ledgersync/internal/infra/storage"
	"github.com/tranvu/ledgersync/internal/infra/storage/memory"
)

// fakeFetcher serves a fixed head and canned events, recording the windows
// it was asked for.
type fakeFetcher struct {
	head    uint64
	events  map[domain.EventKind][]*domain.Event
	windows []scanner.Window
	failFor map[string]bool // contract address -> fetch error
}

func (f *fakeFetcher) Head(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeFetcher) FetchEvents(ctx context.Context, contract scanner.Contract,
	kind domain.EventKind, w scanner.Window) ([]*domain.Event, error) {
	if f.failFor[contract.Address] {
		return nil, fmt.Errorf("node unreachable")
	}
	f.windows = append(f.windows, w)

	var out []*domain.Event
	for _, e := range f.events[kind] {
		if e.BlockNumber >= w.From && e.BlockNumber <= w.To {
			out = append(out, e)
		}
	}
	return out, nil
}

// recordingSink captures the events it receives in application order.
type recordingSink struct {
	batches [][]*domain.Event
}

func (s *recordingSink) Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error {
	s.batches = append(s.batches, events)
	return nil
}

func newTestSyncer(store *memory.Store, fetcher *fakeFetcher, sources ...Source) *Syncer {
	return NewSyncer(Config{
		Fetcher:     fetcher,
		Store:       store,
		Checkpoints: checkpoint.NewManager(store.Checkpoints()),
		Sources:     sources,
		MaxWindow:   1_000_000,
		Interval:    time.Hour,
	})
}

func setCheckpoint(t *testing.T, store *memory.Store, key string, block uint64) {
	t.Helper()
	uow, err := store.Begin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := uow.SetCheckpoint(context.Background(), key, block); err != nil {
		t.Fatal(err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatal(err)
	}
}

func checkpointBlock(t *testing.T, store *memory.Store, key string) (uint64, bool) {
	t.Helper()
	cp, err := store.Checkpoints().Get(context.Background(), key)
	if err == storage.ErrCheckpointNotFound {
		return 0, false
	}
	if err != nil {
		t.Fatal(err)
	}
	return cp.BlockNumber, true
}

func TestSyncer_CatchupAdvancesToHead(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	fetcher := &fakeFetcher{
		head: 2_500_000,
		events: map[domain.EventKind][]*domain.Event{
			domain.EventTransfer: {
				{Kind: domain.EventTransfer, BlockNumber: 10},
				{Kind: domain.EventTransfer, BlockNumber: 1_500_000},
			},
		},
	}

	source := Source{
		Key:      "transfer:0xToken",
		Contract: scanner.NewTokenContract("0xToken"),
		Kinds:    []domain.EventKind{domain.EventTransfer},
		Sink:     sink,
	}

	s := newTestSyncer(store, fetcher, source)
	s.runCycle(context.Background())

	// 2.5M blocks at a 1M cap means three windows, each its own commit.
	if len(fetcher.windows) != 3 {
		t.Fatalf("fetched %d windows, want 3: %v", len(fetcher.windows), fetcher.windows)
	}
	block, ok := checkpointBlock(t, store, source.Key)
	if !ok || block != 2_500_000 {
		t.Errorf("checkpoint = (%d,%v), want 2500000", block, ok)
	}

	var total int
	for _, b := range sink.batches {
		total += len(b)
	}
	if total != 2 {
		t.Errorf("applied %d events, want 2", total)
	}
}

func TestSyncer_ResumesFromCheckpoint(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{head: 500}
	source := Source{
		Key:        "transfer:0xToken",
		Contract:   scanner.NewTokenContract("0xToken"),
		Kinds:      []domain.EventKind{domain.EventTransfer},
		Sink:       &recordingSink{},
		StartBlock: 1,
	}

	setCheckpoint(t, store, source.Key, 200)

	s := newTestSyncer(store, fetcher, source)
	s.runCycle(context.Background())

	if len(fetcher.windows) != 1 {
		t.Fatalf("fetched %d windows, want 1", len(fetcher.windows))
	}
	if w := fetcher.windows[0]; w.From != 201 || w.To != 500 {
		t.Errorf("window = [%d,%d], want [201,500]", w.From, w.To)
	}
}

func TestSyncer_UpToDateSourceFetchesNothing(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{head: 500}
	source := Source{
		Key:      "transfer:0xToken",
		Contract: scanner.NewTokenContract("0xToken"),
		Kinds:    []domain.EventKind{domain.EventTransfer},
		Sink:     &recordingSink{},
	}

	setCheckpoint(t, store, source.Key, 500)

	s := newTestSyncer(store, fetcher, source)
	s.runCycle(context.Background())

	if len(fetcher.windows) != 0 {
		t.Errorf("fetched %d windows, want 0", len(fetcher.windows))
	}
}

func TestSyncer_NoCheckpointAdvanceOnFailedCommit(t *testing.T) {
	store := memory.NewStore()
	store.FailCommits = true

	fetcher := &fakeFetcher{head: 100}
	source := Source{
		Key:      "transfer:0xToken",
		Contract: scanner.NewTokenContract("0xToken"),
		Kinds:    []domain.EventKind{domain.EventTransfer},
		Sink:     &recordingSink{},
	}

	s := newTestSyncer(store, fetcher, source)
	s.runCycle(context.Background())

	if _, ok := checkpointBlock(t, store, source.Key); ok {
		t.Error("checkpoint advanced despite failed commit")
	}

	// The next cycle after the fault clears must pick up from scratch.
	store.FailCommits = false
	s.runCycle(context.Background())

	block, ok := checkpointBlock(t, store, source.Key)
	if !ok || block != 100 {
		t.Errorf("checkpoint = (%d,%v), want 100 after recovery", block, ok)
	}
}

func TestSyncer_FailingSourceDoesNotBlockOthers(t *testing.T) {
	store := memory.NewStore()
	fetcher := &fakeFetcher{head: 100, failFor: map[string]bool{"0xBroken": true}}

	brokenSource := Source{
		Key:      "transfer:0xBroken",
		Contract: scanner.NewTokenContract("0xBroken"),
		Kinds:    []domain.EventKind{domain.EventTransfer},
		Sink:     &recordingSink{},
	}
	healthySource := Source{
		Key:      "transfer:0xHealthy",
		Contract: scanner.NewTokenContract("0xHealthy"),
		Kinds:    []domain.EventKind{domain.EventTransfer},
		Sink:     &recordingSink{},
	}

	s := newTestSyncer(store, fetcher, brokenSource, healthySource)
	s.runCycle(context.Background())

	if _, ok := checkpointBlock(t, store, brokenSource.Key); ok {
		t.Error("broken source advanced its checkpoint")
	}
	block, ok := checkpointBlock(t, store, healthySource.Key)
	if !ok || block != 100 {
		t.Errorf("healthy source checkpoint = (%d,%v), want 100", block, ok)
	}

	// Once the fault clears the broken source catches up on the next cycle.
	fetcher.failFor["0xBroken"] = false
	s.runCycle(context.Background())

	block, ok = checkpointBlock(t, store, brokenSource.Key)
	if !ok || block != 100 {
		t.Errorf("recovered source checkpoint = (%d,%v), want 100", block, ok)
	}
}

func TestSyncer_EventsAppliedInChainOrder(t *testing.T) {
	store := memory.NewStore()
	sink := &recordingSink{}
	// Two kinds fetched separately arrive interleaved by block.
	fetcher := &fakeFetcher{
		head: 100,
		events: map[domain.EventKind][]*domain.Event{
			domain.EventApplyForTransfer: {
				{Kind: domain.EventApplyForTransfer, BlockNumber: 10, LogIndex: 0},
				{Kind: domain.EventApplyForTransfer, BlockNumber: 30, LogIndex: 2},
			},
			domain.EventCancelTransfer: {
				{Kind: domain.EventCancelTransfer, BlockNumber: 20, LogIndex: 1},
				{Kind: domain.EventCancelTransfer, BlockNumber: 30, LogIndex: 1},
			},
		},
	}

	source := Source{
		Key:      "approval:0xToken:0xEscrow",
		Contract: scanner.NewEscrowContract("0xEscrow"),
		Kinds:    []domain.EventKind{domain.EventApplyForTransfer, domain.EventCancelTransfer},
		Sink:     sink,
	}

	s := newTestSyncer(store, fetcher, source)
	s.runCycle(context.Background())

	if len(sink.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(sink.batches))
	}
	batch := sink.batches[0]
	for i := 1; i < len(batch); i++ {
		prev, cur := batch[i-1], batch[i]
		if cur.BlockNumber < prev.BlockNumber ||
			(cur.BlockNumber == prev.BlockNumber && cur.LogIndex < prev.LogIndex) {
			t.Errorf("events out of order at %d: (%d,%d) before (%d,%d)",
				i, prev.BlockNumber, prev.LogIndex, cur.BlockNumber, cur.LogIndex)
		}
	}
	if len(batch) != 4 {
		t.Errorf("batch has %d events, want 4", len(batch))
	}
}
