package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/indexing/metrics"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// UnitOfWork bundles one window's entity writes and its checkpoint advance
// into a single database transaction, ensuring atomicity (all succeed or all
// fail). A crash between entity writes and checkpoint advance is therefore
// impossible to observe; the converse (committed entities, stale checkpoint)
// is tolerated by the idempotent upserts below.
type UnitOfWork struct {
	tx *sqlx.Tx
}

var _ storage.UnitOfWork = (*UnitOfWork)(nil)

// Begin opens a new unit of work with an active transaction.
func (db *DB) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("transaction already completed")
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

// InsertOrderIfAbsent creates an order row. Re-delivery of the same creating
// event is a no-op through ON CONFLICT DO NOTHING on the natural key.
func (u *UnitOfWork) InsertOrderIfAbsent(ctx context.Context, o *domain.Order) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO orders
		   (exchange_address, order_id, token_address, account_address,
		    counterpart_address, is_buy, price, amount, agent_address,
		    is_cancelled, order_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (exchange_address, order_id) DO NOTHING`,
		o.ExchangeAddress, int64(o.OrderID), o.TokenAddress, o.AccountAddress,
		o.CounterpartAddress, o.IsBuy, o.Price, o.Amount, o.AgentAddress,
		o.IsCancelled, o.OrderTimestamp)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	metrics.EntityWrites.WithLabelValues("order").Inc()
	return nil
}

// CancelOrder flips is_cancelled on an existing order. The cancel event is
// only authorized to change that flag; absent rows are a no-op.
func (u *UnitOfWork) CancelOrder(ctx context.Context, exchange string, orderID uint64) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE orders SET is_cancelled = TRUE, updated_at = now()
		 WHERE exchange_address = $1 AND order_id = $2`,
		exchange, int64(orderID))
	if err != nil {
		return fmt.Errorf("failed to cancel order: %w", err)
	}
	return nil
}

// InsertAgreementIfAbsent creates a PENDING agreement row.
func (u *UnitOfWork) InsertAgreementIfAbsent(ctx context.Context, a *domain.Agreement) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO agreements
		   (exchange_address, order_id, agreement_id, buyer_address,
		    seller_address, counterpart_address, amount, status,
		    agreement_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (exchange_address, order_id, agreement_id) DO NOTHING`,
		a.ExchangeAddress, int64(a.OrderID), int64(a.AgreementID), a.BuyerAddress,
		a.SellerAddress, a.CounterpartAddress, a.Amount, a.Status,
		a.AgreementTimestamp)
	if err != nil {
		return fmt.Errorf("failed to insert agreement: %w", err)
	}
	metrics.EntityWrites.WithLabelValues("agreement").Inc()
	return nil
}

// SettleAgreement moves a PENDING agreement to DONE or CANCELED. The status
// guard makes the transition one-way; a settlement event arriving before the
// agree event matches no row and is dropped.
func (u *UnitOfWork) SettleAgreement(ctx context.Context, exchange string, orderID, agreementID uint64,
	status domain.AgreementStatus, settledAt time.Time) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE agreements
		 SET status = $4, settlement_timestamp = $5, updated_at = now()
		 WHERE exchange_address = $1 AND order_id = $2 AND agreement_id = $3
		   AND status = 'PENDING'`,
		exchange, int64(orderID), int64(agreementID), status, settledAt)
	if err != nil {
		return fmt.Errorf("failed to settle agreement: %w", err)
	}
	return nil
}

// InsertTransfer records a transfer. Re-fetched windows after a crash-restart
// may deliver the same log again; the unique index on the logical key drops
// the duplicate.
func (u *UnitOfWork) InsertTransfer(ctx context.Context, t *domain.Transfer) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO transfers
		   (id, transaction_hash, token_address, from_address, to_address,
		    value, block_timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (transaction_hash, token_address, from_address, to_address,
		              value, block_timestamp) DO NOTHING`,
		t.ID, t.TransactionHash, t.TokenAddress, t.FromAddress, t.ToAddress,
		t.Value, t.BlockTimestamp)
	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	metrics.EntityWrites.WithLabelValues("transfer").Inc()
	return nil
}

// InsertApprovalIfAbsent creates a transfer-approval row from an apply event.
func (u *UnitOfWork) InsertApprovalIfAbsent(ctx context.Context, a *domain.TransferApproval) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO transfer_approvals
		   (token_address, exchange_address, application_id, from_address,
		    to_address, value, application_datetime)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (token_address, exchange_address, application_id) DO NOTHING`,
		a.TokenAddress, a.ExchangeAddress, int64(a.ApplicationID), a.FromAddress,
		a.ToAddress, a.Value, a.ApplicationDatetime)
	if err != nil {
		return fmt.Errorf("failed to insert transfer approval: %w", err)
	}
	metrics.EntityWrites.WithLabelValues("transfer_approval").Inc()
	return nil
}

// CancelApproval sets the cancelled flag. No-op when the apply event has not
// been seen yet.
func (u *UnitOfWork) CancelApproval(ctx context.Context, token, exchange string, applicationID uint64) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE transfer_approvals SET cancelled = TRUE, updated_at = now()
		 WHERE token_address = $1 AND exchange_address = $2 AND application_id = $3`,
		token, exchange, int64(applicationID))
	if err != nil {
		return fmt.Errorf("failed to cancel transfer approval: %w", err)
	}
	return nil
}

// FinishEscrow sets the escrow_finished flag.
func (u *UnitOfWork) FinishEscrow(ctx context.Context, token, exchange string, applicationID uint64) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE transfer_approvals SET escrow_finished = TRUE, updated_at = now()
		 WHERE token_address = $1 AND exchange_address = $2 AND application_id = $3`,
		token, exchange, int64(applicationID))
	if err != nil {
		return fmt.Errorf("failed to finish escrow: %w", err)
	}
	return nil
}

// ApproveApproval sets transfer_approved and the approval datetime.
func (u *UnitOfWork) ApproveApproval(ctx context.Context, token, exchange string, applicationID uint64,
	approvedAt *time.Time) error {
	_, err := u.tx.ExecContext(ctx,
		`UPDATE transfer_approvals
		 SET transfer_approved = TRUE,
		     approval_datetime = COALESCE($4, approval_datetime),
		     updated_at = now()
		 WHERE token_address = $1 AND exchange_address = $2 AND application_id = $3`,
		token, exchange, int64(applicationID), approvedAt)
	if err != nil {
		return fmt.Errorf("failed to approve transfer: %w", err)
	}
	return nil
}

// SetCheckpoint advances the checkpoint for a source within the transaction.
// GREATEST keeps the stored value monotonically non-decreasing even if a
// stale window is replayed.
func (u *UnitOfWork) SetCheckpoint(ctx context.Context, sourceKey string, blockNumber uint64) error {
	_, err := u.tx.ExecContext(ctx,
		`INSERT INTO sync_checkpoints (source_key, block_number)
		 VALUES ($1, $2)
		 ON CONFLICT (source_key) DO UPDATE
		 SET block_number = GREATEST(sync_checkpoints.block_number, EXCLUDED.block_number),
		     updated_at = now()`,
		sourceKey, int64(blockNumber))
	if err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	return nil
}
