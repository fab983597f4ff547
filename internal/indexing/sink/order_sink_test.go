package sink

import (
	"context"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
	"github.com/tranvu/ledgersync/internal/infra/storage/memory"
)

const exchangeAddr = "0xExchange"

// apply runs one sink batch in its own committed unit of work.
func apply(t *testing.T, store *memory.Store, s interface {
	Apply(ctx context.Context, uow storage.UnitOfWork, events []*domain.Event) error
}, events ...*domain.Event) {
	t.Helper()
	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), uow, events))
	require.NoError(t, uow.Commit())
}

func newOrderEvent(orderID uint64, ts time.Time) *domain.Event {
	return &domain.Event{
		Kind:            domain.EventNewOrder,
		ContractAddress: exchangeAddr,
		BlockNumber:     10,
		TxHash:          "0xtx1",
		BlockTimestamp:  ts,
		Args: map[string]any{
			"orderId":        new(big.Int).SetUint64(orderID),
			"tokenAddress":   "0xToken",
			"accountAddress": "0xAlice",
			"agentAddress":   "0xAgent",
			"isBuy":          true,
			"price":          big.NewInt(100),
			"amount":         big.NewInt(50),
		},
	}
}

func agreeEvent(orderID, agreementID uint64, ts time.Time) *domain.Event {
	return &domain.Event{
		Kind:            domain.EventAgree,
		ContractAddress: exchangeAddr,
		BlockNumber:     11,
		TxHash:          "0xtx2",
		BlockTimestamp:  ts,
		Args: map[string]any{
			"orderId":     new(big.Int).SetUint64(orderID),
			"agreementId": new(big.Int).SetUint64(agreementID),
			"buyAddress":  "0xBuyer",
			"sellAddress": "0xSeller",
			"amount":      big.NewInt(30),
		},
	}
}

func settlementEvent(kind domain.EventKind, orderID, agreementID uint64, ts time.Time) *domain.Event {
	return &domain.Event{
		Kind:            kind,
		ContractAddress: exchangeAddr,
		BlockNumber:     12,
		TxHash:          "0xtx3",
		BlockTimestamp:  ts,
		Args: map[string]any{
			"orderId":     new(big.Int).SetUint64(orderID),
			"agreementId": new(big.Int).SetUint64(agreementID),
		},
	}
}

func TestOrderSink_Lifecycle(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()
	ctx := context.Background()

	orderTS := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	settleTS := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)

	apply(t, store, s,
		newOrderEvent(1, orderTS),
		agreeEvent(1, 7, orderTS.Add(time.Hour)),
		settlementEvent(domain.EventSettlementOK, 1, 7, settleTS),
	)

	order, err := store.Orders().Get(ctx, exchangeAddr, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xToken", order.TokenAddress)
	assert.Equal(t, "0xAlice", order.AccountAddress)
	assert.True(t, order.IsBuy)
	assert.Equal(t, "100", order.Price.String())
	assert.Equal(t, "50", order.Amount.String())
	assert.False(t, order.IsCancelled)
	assert.Equal(t, orderTS, order.OrderTimestamp)

	agreement, err := store.Agreements().Get(ctx, exchangeAddr, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStatusDone, agreement.Status)
	assert.Equal(t, "0xBuyer", agreement.BuyerAddress)
	require.NotNil(t, agreement.SettlementTimestamp)
	assert.Equal(t, settleTS, *agreement.SettlementTimestamp)
}

func TestOrderSink_DuplicateDeliveryDoesNotOverwrite(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	apply(t, store, s, newOrderEvent(1, ts))

	// Re-delivery with a different payload must not touch the stored row.
	dup := newOrderEvent(1, ts)
	dup.Args["price"] = big.NewInt(999)
	apply(t, store, s, dup)

	order, err := store.Orders().Get(ctx, exchangeAddr, 1)
	require.NoError(t, err)
	assert.Equal(t, "100", order.Price.String())
	assert.Equal(t, 1, store.Orders().Count())
}

func TestOrderSink_CancelOnlyFlipsFlag(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	apply(t, store, s, newOrderEvent(1, ts))

	cancel := &domain.Event{
		Kind:            domain.EventCancelOrder,
		ContractAddress: exchangeAddr,
		BlockTimestamp:  ts.Add(time.Hour),
		Args: map[string]any{
			// Cancel events carry the full order payload but only the flag
			// may change.
			"orderId":        big.NewInt(1),
			"accountAddress": "0xMallory",
			"price":          big.NewInt(1),
			"amount":         big.NewInt(1),
		},
	}
	apply(t, store, s, cancel)

	order, err := store.Orders().Get(ctx, exchangeAddr, 1)
	require.NoError(t, err)
	assert.True(t, order.IsCancelled)
	assert.Equal(t, "0xAlice", order.AccountAddress)
	assert.Equal(t, "100", order.Price.String())
}

func TestOrderSink_CancelWithoutOrderIsNoop(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()

	cancel := &domain.Event{
		Kind:            domain.EventCancelOrder,
		ContractAddress: exchangeAddr,
		Args:            map[string]any{"orderId": big.NewInt(42)},
	}
	apply(t, store, s, cancel)

	assert.Equal(t, 0, store.Orders().Count())
}

func TestOrderSink_SettlementBeforeAgreeIsNoop(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	apply(t, store, s, settlementEvent(domain.EventSettlementOK, 1, 7, ts))

	assert.Equal(t, 0, store.Agreements().Count())
}

func TestOrderSink_SettlementIsOneWay(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	apply(t, store, s,
		agreeEvent(1, 7, ts),
		settlementEvent(domain.EventSettlementOK, 1, 7, ts.Add(time.Hour)),
	)

	// A conflicting settlement arriving later must not move the status.
	apply(t, store, s, settlementEvent(domain.EventSettlementNG, 1, 7, ts.Add(2*time.Hour)))

	agreement, err := store.Agreements().Get(ctx, exchangeAddr, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.AgreementStatusDone, agreement.Status)
	require.NotNil(t, agreement.SettlementTimestamp)
	assert.Equal(t, ts.Add(time.Hour), *agreement.SettlementTimestamp)
}

func TestOrderSink_OutOfRangeOrderIDSkipped(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()

	huge := new(big.Int).Add(new(big.Int).SetUint64(math.MaxInt64), big.NewInt(1))
	bad := newOrderEvent(1, time.Now().UTC())
	bad.Args["orderId"] = huge
	good := newOrderEvent(2, time.Now().UTC())

	// The oversized id is skipped with a warning; the rest of the batch
	// still applies.
	apply(t, store, s, bad, good)

	assert.Equal(t, 1, store.Orders().Count())
	_, err := store.Orders().Get(context.Background(), exchangeAddr, 2)
	assert.NoError(t, err)
}

func TestOrderSink_UnsupportedKind(t *testing.T) {
	store := memory.NewStore()
	s := NewOrderSink()

	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	defer uow.Rollback()

	err = s.Apply(context.Background(), uow, []*domain.Event{
		{Kind: domain.EventTransfer},
	})
	assert.Error(t, err)
}
