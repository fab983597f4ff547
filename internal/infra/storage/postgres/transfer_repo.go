package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// TransferRepo implements storage.TransferRepository using PostgreSQL.
type TransferRepo struct {
	db *DB
}

// NewTransferRepo creates a new PostgreSQL transfer repository.
func NewTransferRepo(db *DB) *TransferRepo {
	return &TransferRepo{db: db}
}

// ListByToken returns transfers for a token ordered by block timestamp.
func (r *TransferRepo) ListByToken(ctx context.Context, token string) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer
	err := r.db.SelectContext(ctx, &transfers,
		`SELECT id, transaction_hash, token_address, from_address, to_address,
		        value, block_timestamp, created_at
		 FROM transfers WHERE token_address = $1 ORDER BY block_timestamp, id`,
		token)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return transfers, nil
}

// ApprovalRepo implements storage.ApprovalRepository using PostgreSQL.
type ApprovalRepo struct {
	db *DB
}

// NewApprovalRepo creates a new PostgreSQL approval repository.
func NewApprovalRepo(db *DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

// Get retrieves a transfer approval by its natural key.
func (r *ApprovalRepo) Get(ctx context.Context, token, exchange string, applicationID uint64) (*domain.TransferApproval, error) {
	var a domain.TransferApproval
	err := r.db.GetContext(ctx, &a,
		`SELECT token_address, exchange_address, application_id, from_address,
		        to_address, value, application_datetime, cancelled,
		        escrow_finished, transfer_approved, approval_datetime,
		        created_at, updated_at
		 FROM transfer_approvals
		 WHERE token_address = $1 AND exchange_address = $2 AND application_id = $3`,
		token, exchange, int64(applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer approval: %w", err)
	}
	return &a, nil
}
