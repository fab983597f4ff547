package indexer

import (
	"context"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/scanner"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// Sink applies decoded events to the entity tables through a unit of work.
type Sink interface {
	Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error
}

// Source is one independently checkpointed scan target: a contract, the event
// kinds to pull from it, and the sink that turns those events into rows.
type Source struct {
	// Key is the checkpoint source key. Distinct sources must use distinct
	// keys or they will clobber each other's progress.
	Key string

	// Contract is the address and ABI the fetcher filters logs against.
	Contract scanner.Contract

	// Kinds lists the event kinds fetched each window, in application order.
	// A kind the contract ABI does not define yields zero events.
	Kinds []domain.EventKind

	// Sink receives the window's events.
	Sink Sink

	// StartBlock is where scanning begins when no checkpoint exists yet.
	StartBlock uint64
}
