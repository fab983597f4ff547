package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// ApprovalSink applies transfer-approval events for one (token, exchange)
// pair. Exchange is empty when approvals are applied directly on the token
// contract; otherwise it is the escrow contract routing them.
type ApprovalSink struct {
	token    string
	exchange string
	log      *slog.Logger
}

// NewApprovalSink creates an approval sink for a (token, exchange) pair.
func NewApprovalSink(token, exchange string) *ApprovalSink {
	return &ApprovalSink{
		token:    token,
		exchange: exchange,
		log:      slog.With("sink", "approval", "token", token, "exchange", exchange),
	}
}

// Apply stages a batch of approval events on the unit of work. The lifecycle
// is Applied -> {Cancelled | EscrowFinished} -> Approved; a transition event
// arriving before its apply event matches no row and is dropped.
func (s *ApprovalSink) Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error {
	for _, e := range events {
		applicationID, err := e.Uint64("index")
		if err != nil {
			if skipOutOfRange(s.log, e, err) {
				continue
			}
			return err
		}

		switch e.Kind {
		case domain.EventApplyForTransfer:
			err = s.applyApplication(ctx, uow, e, applicationID)
		case domain.EventCancelTransfer:
			err = uow.CancelApproval(ctx, s.token, s.exchange, applicationID)
		case domain.EventEscrowFinished:
			err = uow.FinishEscrow(ctx, s.token, s.exchange, applicationID)
		case domain.EventApproveTransfer:
			err = uow.ApproveApproval(ctx, s.token, s.exchange, applicationID,
				parseEventDatetime(e.Text("data")))
		default:
			return fmt.Errorf("approval sink: unsupported event kind %s", e.Kind)
		}
		if err != nil {
			if skipOutOfRange(s.log, e, err) {
				continue
			}
			return err
		}
		metrics.EventsApplied.WithLabelValues(string(e.Kind)).Inc()
	}
	return nil
}

func (s *ApprovalSink) applyApplication(ctx context.Context, uow storage.UnitOfWork, e *domain.Event,
	applicationID uint64) error {
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

	// application_datetime defaults to null when the payload does not parse.
	return uow.InsertApprovalIfAbsent(ctx, &domain.TransferApproval{
		TokenAddress:        s.token,
		ExchangeAddress:     s.exchange,
		ApplicationID:       applicationID,
		FromAddress:         from,
		ToAddress:           to,
		Value:               value,
		ApplicationDatetime: parseEventDatetime(e.Text("data")),
	})
}
