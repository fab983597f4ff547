package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// OrderRepo implements storage.OrderRepository using PostgreSQL.
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new PostgreSQL order repository.
func NewOrderRepo(db *DB) *OrderRepo {
	return &OrderRepo{db: db}
}

// Get retrieves an order by its natural key.
func (r *OrderRepo) Get(ctx context.Context, exchange string, orderID uint64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.GetContext(ctx, &o,
		`SELECT exchange_address, order_id, token_address, account_address,
		        counterpart_address, is_buy, price, amount, agent_address,
		        is_cancelled, order_timestamp, created_at, updated_at
		 FROM orders WHERE exchange_address = $1 AND order_id = $2`,
		exchange, int64(orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// AgreementRepo implements storage.AgreementRepository using PostgreSQL.
type AgreementRepo struct {
	db *DB
}

// NewAgreementRepo creates a new PostgreSQL agreement repository.
func NewAgreementRepo(db *DB) *AgreementRepo {
	return &AgreementRepo{db: db}
}

// Get retrieves an agreement by its natural key.
func (r *AgreementRepo) Get(ctx context.Context, exchange string, orderID, agreementID uint64) (*domain.Agreement, error) {
	var a domain.Agreement
	err := r.db.GetContext(ctx, &a,
		`SELECT exchange_address, order_id, agreement_id, buyer_address,
		        seller_address, counterpart_address, amount, status,
		        agreement_timestamp, settlement_timestamp, created_at, updated_at
		 FROM agreements
		 WHERE exchange_address = $1 AND order_id = $2 AND agreement_id = $3`,
		exchange, int64(orderID), int64(agreementID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return &a, nil
}
