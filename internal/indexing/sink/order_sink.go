package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// OrderSink applies exchange events to the orders and agreements tables.
type OrderSink struct {
	log *slog.Logger
}

// NewOrderSink creates an order/agreement sink.
func NewOrderSink() *OrderSink {
	return &OrderSink{log: slog.With("sink", "order")}
}

// Apply stages a batch of exchange events on the unit of work.
func (s *OrderSink) Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error {
	for _, e := range events {
		var err error
		switch e.Kind {
		case domain.EventNewOrder:
			err = s.applyNewOrder(ctx, uow, e)
		case domain.EventCancelOrder:
			err = s.applyCancelOrder(ctx, uow, e)
		case domain.EventAgree:
			err = s.applyAgree(ctx, uow, e)
		case domain.EventSettlementOK:
			err = s.applySettlement(ctx, uow, e, domain.AgreementStatusDone)
		case domain.EventSettlementNG:
			err = s.applySettlement(ctx, uow, e, domain.AgreementStatusCanceled)
		default:
			return fmt.Errorf("order sink: unsupported event kind %s", e.Kind)
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

func (s *OrderSink) applyNewOrder(ctx context.Context, uow storage.UnitOfWork, e *domain.Event) error {
	orderID, err := e.Uint64("orderId")
	if err != nil {
		return err
	}
	token, err := e.Address("tokenAddress")
	if err != nil {
		return err
	}
	account, err := e.Address("accountAddress")
	if err != nil {
		return err
	}
	agent, err := e.Address("agentAddress")
	if err != nil {
		return err
	}
	isBuy, err := e.Bool("isBuy")
	if err != nil {
		return err
	}
	price, err := e.Decimal("price")
	if err != nil {
		return err
	}
	amount, err := e.Decimal("amount")
	if err != nil {
		return err
	}

	return uow.InsertOrderIfAbsent(ctx, &domain.Order{
		ExchangeAddress: e.ContractAddress,
		OrderID:         orderID,
		TokenAddress:    token,
		AccountAddress:  account,
		IsBuy:           isBuy,
		Price:           price,
		Amount:          amount,
		AgentAddress:    agent,
		OrderTimestamp:  e.BlockTimestamp,
	})
}

func (s *OrderSink) applyCancelOrder(ctx context.Context, uow storage.UnitOfWork, e *domain.Event) error {
	orderID, err := e.Uint64("orderId")
	if err != nil {
		return err
	}
	// Cancel is only authorized to flip is_cancelled; the original price and
	// amount stay as the creating event wrote them.
	return uow.CancelOrder(ctx, e.ContractAddress, orderID)
}

func (s *OrderSink) applyAgree(ctx context.Context, uow storage.UnitOfWork, e *domain.Event) error {
	orderID, err := e.Uint64("orderId")
	if err != nil {
		return err
	}
	agreementID, err := e.Uint64("agreementId")
	if err != nil {
		return err
	}
	buyer, err := e.Address("buyAddress")
	if err != nil {
		return err
	}
	seller, err := e.Address("sellAddress")
	if err != nil {
		return err
	}
	amount, err := e.Decimal("amount")
	if err != nil {
		return err
	}

	return uow.InsertAgreementIfAbsent(ctx, &domain.Agreement{
		ExchangeAddress:    e.ContractAddress,
		OrderID:            orderID,
		AgreementID:        agreementID,
		BuyerAddress:       buyer,
		SellerAddress:      seller,
		Amount:             amount,
		Status:             domain.AgreementStatusPending,
		AgreementTimestamp: e.BlockTimestamp,
	})
}

func (s *OrderSink) applySettlement(ctx context.Context, uow storage.UnitOfWork, e *domain.Event,
	status domain.AgreementStatus) error {
	orderID, err := e.Uint64("orderId")
	if err != nil {
		return err
	}
	agreementID, err := e.Uint64("agreementId")
	if err != nil {
		return err
	}
	// A settlement event with no prior agreement row is dropped by the
	// status-guarded update.
	return uow.SettleAgreement(ctx, e.ContractAddress, orderID, agreementID, status, e.BlockTimestamp)
}
