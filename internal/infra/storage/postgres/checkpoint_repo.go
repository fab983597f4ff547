package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository using PostgreSQL.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

// Get retrieves the checkpoint for a source key.
func (r *CheckpointRepo) Get(ctx context.Context, sourceKey string) (*domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.db.GetContext(ctx, &cp,
		`SELECT source_key, block_number, created_at, updated_at
		 FROM sync_checkpoints WHERE source_key = $1`, sourceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return &cp, nil
}

// All lists every checkpoint ordered by source key.
func (r *CheckpointRepo) All(ctx context.Context) ([]*domain.Checkpoint, error) {
	var cps []*domain.Checkpoint
	err := r.db.SelectContext(ctx, &cps,
		`SELECT source_key, block_number, created_at, updated_at
		 FROM sync_checkpoints ORDER BY source_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return cps, nil
}

// Delete removes a checkpoint so the source is rescanned from its start block.
func (r *CheckpointRepo) Delete(ctx context.Context, sourceKey string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_checkpoints WHERE source_key = $1`, sourceKey)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
