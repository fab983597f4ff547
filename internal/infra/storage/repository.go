package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tranvu/ledgersync/internal/core/domain"
)

var (
	// ErrCheckpointNotFound is returned when no checkpoint exists for a source.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrNotFound is returned when an entity lookup matches no row.
	ErrNotFound = errors.New("not found")
)

// CheckpointRepository reads checkpoint positions outside of sync transactions.
// Advancing a checkpoint happens only through a UnitOfWork so it commits
// atomically with the entity writes it covers.
type CheckpointRepository interface {
	// Get retrieves the checkpoint for a source key.
	Get(ctx context.Context, sourceKey string) (*domain.Checkpoint, error)

	// All lists every checkpoint, ordered by source key.
	All(ctx context.Context) ([]*domain.Checkpoint, error)

	// Delete removes a checkpoint so the source is rescanned from its start
	// block. Operator tooling only.
	Delete(ctx context.Context, sourceKey string) error
}

// NodeRepository reads the chain-node registry. The registry is mutated by an
// external watchdog; the engine never writes it.
type NodeRepository interface {
	// List returns all registered nodes ordered by priority, then id.
	List(ctx context.Context) ([]*domain.ChainNode, error)
}

// OrderRepository reads persisted orders.
type OrderRepository interface {
	Get(ctx context.Context, exchange string, orderID uint64) (*domain.Order, error)
}

// AgreementRepository reads persisted agreements.
type AgreementRepository interface {
	Get(ctx context.Context, exchange string, orderID, agreementID uint64) (*domain.Agreement, error)
}

// TransferRepository reads persisted transfers.
type TransferRepository interface {
	ListByToken(ctx context.Context, token string) ([]*domain.Transfer, error)
}

// ApprovalRepository reads persisted transfer approvals.
type ApprovalRepository interface {
	Get(ctx context.Context, token, exchange string, applicationID uint64) (*domain.TransferApproval, error)
}

// UnitOfWork bundles one window's entity writes and its checkpoint advance
// into a single transaction. Every operation is idempotent: creating writes
// insert-if-absent, mutating writes touch only their authorized fields and
// are no-ops when the target row does not exist.
type UnitOfWork interface {
	// InsertOrderIfAbsent creates an order row; re-delivery never overwrites.
	InsertOrderIfAbsent(ctx context.Context, order *domain.Order) error

	// CancelOrder sets is_cancelled on an existing order. No-op if absent.
	CancelOrder(ctx context.Context, exchange string, orderID uint64) error

	// InsertAgreementIfAbsent creates a PENDING agreement row.
	InsertAgreementIfAbsent(ctx context.Context, agreement *domain.Agreement) error

	// SettleAgreement moves a PENDING agreement to DONE or CANCELED. One-way;
	// no-op if the row is absent or already settled.
	SettleAgreement(ctx context.Context, exchange string, orderID, agreementID uint64,
		status domain.AgreementStatus, settledAt time.Time) error

	// InsertTransfer records a transfer; duplicates by logical key are dropped.
	InsertTransfer(ctx context.Context, transfer *domain.Transfer) error

	// InsertApprovalIfAbsent creates a transfer-approval row from an apply event.
	InsertApprovalIfAbsent(ctx context.Context, approval *domain.TransferApproval) error

	// CancelApproval sets the cancelled flag. No-op if absent.
	CancelApproval(ctx context.Context, token, exchange string, applicationID uint64) error

	// FinishEscrow sets the escrow_finished flag. No-op if absent.
	FinishEscrow(ctx context.Context, token, exchange string, applicationID uint64) error

	// ApproveApproval sets transfer_approved and the approval datetime. No-op
	// if absent.
	ApproveApproval(ctx context.Context, token, exchange string, applicationID uint64,
		approvedAt *time.Time) error

	// SetCheckpoint advances the checkpoint for a source. Monotonic: a lower
	// block number than the stored one is ignored.
	SetCheckpoint(ctx context.Context, sourceKey string, blockNumber uint64) error

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error
}

// TxStore opens units of work.
type TxStore interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
