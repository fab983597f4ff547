// Package sink folds decoded contract events into persisted entity state.
//
// Every application is an upsert by natural key staged on a UnitOfWork:
// creating events insert-if-absent so re-delivery never overwrites, mutating
// events touch only the fields their kind is authorized to change, and a
// mutating event whose target row does not exist yet is silently dropped.
// Re-fetching the same window after a crash-restart is therefore harmless.
//
// Numeric arguments destined for 64-bit columns that do not fit are skipped
// with a warning (ErrValueOutOfRange), never fatal. On-chain amounts are
// arbitrary-precision decimals, so overflow cannot occur for them.
package sink

import (
	"errors"
	"log/slog"
	"time"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
)

// eventDatetimeLayouts are the accepted layouts for datetime strings carried
// in event payloads. Anything unparseable yields nil.
var eventDatetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseEventDatetime(s string) *time.Time {
	for _, layout := range eventDatetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// skipOutOfRange reports whether err is the out-of-range safety valve. The
// event is dropped with a warning; anything else aborts the cycle.
func skipOutOfRange(log *slog.Logger, e *domain.Event, err error) bool {
	if errors.Is(err, domain.ErrValueOutOfRange) {
		log.Warn("skipping event with out-of-range value",
			"kind", e.Kind, "block", e.BlockNumber, "tx", e.TxHash, "error", err)
		metrics.EventsSkipped.WithLabelValues(string(e.Kind)).Inc()
		return true
	}
	return false
}
