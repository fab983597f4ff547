// Package indexer drives the sync loop: it walks each source from its
// checkpoint to the chain head in bounded windows and applies the decoded
// events transactionally.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/tranvu/ledgersync/internal/core/checkpoint"
	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/indexing/scanner"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// HeadReader reports the current chain head.
type HeadReader interface {
	Head(ctx context.Context) (uint64, error)
}

// EventFetcher pulls decoded events for one contract, kind and block window.
type EventFetcher interface {
	HeadReader
	FetchEvents(ctx context.Context, contract scanner.Contract, kind domain.EventKind,
		w scanner.Window) ([]*domain.Event, error)
}

// StatusCache mirrors checkpoint positions to a fast external store. Writes
// are best effort; a cache failure never fails a cycle.
type StatusCache interface {
	SetCheckpoint(ctx context.Context, sourceKey string, blockNumber uint64) error
}

// Config holds syncer dependencies.
type Config struct {
	Fetcher     EventFetcher
	Store       storage.TxStore
	Checkpoints *checkpoint.Manager
	Cache       StatusCache // optional
	Sources     []Source
	MaxWindow   uint64
	Interval    time.Duration
	Logger      *slog.Logger
}

// Syncer runs the scan loop over a set of sources. The first cycle starts
// immediately and catches each source up to the head captured at cycle start;
// subsequent cycles fire on the poll interval. A failing source logs its
// error and is retried next cycle; it never stops the loop or the other
// sources.
type Syncer struct {
	cfg     Config
	log     *slog.Logger
	running atomic.Bool
	stop    chan struct{}
}

// NewSyncer creates a syncer. Zero MaxWindow and Interval fall back to
// scanner.DefaultMaxWindow and one minute.
func NewSyncer(cfg Config) *Syncer {
	if cfg.MaxWindow == 0 {
		cfg.MaxWindow = scanner.DefaultMaxWindow
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		cfg:  cfg,
		log:  log.With("component", "syncer"),
		stop: make(chan struct{}),
	}
}

// Start runs the sync loop until the context is canceled or Stop is called.
func (s *Syncer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("syncer already running")
	}
	defer s.running.Store(false)

	s.log.Info("starting sync loop", "sources", len(s.cfg.Sources), "interval", s.cfg.Interval)

	// Initial catch-up before the first tick.
	s.runCycle(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// Stop signals the loop to exit after the current window.
func (s *Syncer) Stop() {
	if s.running.Load() {
		close(s.stop)
	}
}

// runCycle captures the head once and advances every source toward it.
// Per-source errors are logged and swallowed.
func (s *Syncer) runCycle(ctx context.Context) {
	head, err := s.cfg.Fetcher.Head(ctx)
	if err != nil {
		s.log.Error("failed to fetch chain head", "error", err)
		metrics.CycleFailures.WithLabelValues("head").Inc()
		return
	}

	for _, src := range s.cfg.Sources {
		if ctx.Err() != nil {
			return
		}
		if err := s.syncSource(ctx, src, head); err != nil {
			s.log.Error("source sync failed", "source", src.Key, "error", err)
			metrics.CycleFailures.WithLabelValues(src.Key).Inc()
		}
	}
}

// syncSource walks one source from its checkpoint to head, committing one
// transaction per window so a crash loses at most the window in flight.
func (s *Syncer) syncSource(ctx context.Context, src Source, head uint64) error {
	last, err := s.cfg.Checkpoints.Last(ctx, src.Key)
	if err != nil {
		return err
	}

	windows := scanner.Windows(last, head, src.StartBlock, s.cfg.MaxWindow)
	for _, w := range windows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.processWindow(ctx, src, w); err != nil {
			return fmt.Errorf("window [%d,%d]: %w", w.From, w.To, err)
		}
		metrics.WindowsProcessed.WithLabelValues(src.Key).Inc()
	}
	return nil
}

func (s *Syncer) processWindow(ctx context.Context, src Source, w scanner.Window) error {
	var events []*domain.Event
	for _, kind := range src.Kinds {
		decoded, err := s.cfg.Fetcher.FetchEvents(ctx, src.Contract, kind, w)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", kind, err)
		}
		events = append(events, decoded...)
	}

	// Apply in chain order regardless of which kind a log belongs to.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})

	uow, err := s.cfg.Store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if len(events) > 0 {
		if err := src.Sink.Apply(ctx, uow, events); err != nil {
			return err
		}
	}
	if err := uow.SetCheckpoint(ctx, src.Key, w.To); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	metrics.CheckpointHeight.WithLabelValues(src.Key).Set(float64(w.To))
	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.SetCheckpoint(ctx, src.Key, w.To); err != nil {
			s.log.Warn("status cache update failed", "source", src.Key, "error", err)
		}
	}
	if len(events) > 0 {
		s.log.Info("window applied", "source", src.Key,
			"from", w.From, "to", w.To, "events", len(events))
	}
	return nil
}
