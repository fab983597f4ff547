package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// TransferSink applies token Transfer events to the transfers table.
type TransferSink struct {
	log *slog.Logger
}

// NewTransferSink creates a transfer sink.
func NewTransferSink() *TransferSink {
	return &TransferSink{log: slog.With("sink", "transfer")}
}

// Apply stages a batch of transfer events on the unit of work. Each event
// gets a fresh surrogate UUID; duplicates from re-fetched windows are dropped
// by the unique index over the logical key.
func (s *TransferSink) Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error {
	for _, e := range events {
		if e.Kind != domain.EventTransfer {
			return fmt.Errorf("transfer sink: unsupported event kind %s", e.Kind)
		}

		from, err := e.Address("from")
		if err != nil {
			return err
		}
		to, err := e.Address("to")
		if err != nil {
			return err
		}
		value, err := e.Decimal("value")
		if err != nil {
			return err
		}

		err = uow.InsertTransfer(ctx, &domain.Transfer{
			ID:              uuid.NewString(),
			TransactionHash: e.TxHash,
			TokenAddress:    e.ContractAddress,
			FromAddress:     from,
			ToAddress:       to,
			Value:           value,
			BlockTimestamp:  e.BlockTimestamp,
		})
		if err != nil {
			return err
		}
		metrics.EventsApplied.WithLabelValues(string(e.Kind)).Inc()
	}
	return nil
}
