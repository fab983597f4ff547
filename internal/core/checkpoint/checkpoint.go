// Package checkpoint tracks the sync position for each scan source.
//
// A checkpoint is the "bookmark" that remembers the highest block number
// whose events have been durably applied for a source. Distinct sources use
// distinct keys (see domain source-key helpers): order and agreement scanning
// is keyed per exchange contract, transfer scanning per token, and approval
// scanning per (token, exchange) pair.
//
// Advancing a checkpoint is not exposed here: it happens only through the
// storage UnitOfWork so the advance commits in the same transaction as the
// entity writes it covers. A crash therefore can never leave a checkpoint
// ahead of its entities; the reverse (entities committed, checkpoint stale)
// only causes a re-scan absorbed by idempotent upserts.
package checkpoint

import (
	"context"
	"errors"
	"fmt"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// Manager reads checkpoint positions for the sync loop and operator tooling.
type Manager struct {
	repo storage.CheckpointRepository
}

// NewManager creates a new checkpoint manager.
func NewManager(repo storage.CheckpointRepository) *Manager {
	return &Manager{repo: repo}
}

// Last returns the last fully processed block for a source, or nil if the
// source has never completed a scan.
func (m *Manager) Last(ctx context.Context, sourceKey string) (*uint64, error) {
	cp, err := m.repo.Get(ctx, sourceKey)
	if errors.Is(err, storage.ErrCheckpointNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint %s: %w", sourceKey, err)
	}
	block := cp.BlockNumber
	return &block, nil
}

// All lists every checkpoint.
func (m *Manager) All(ctx context.Context) ([]*domain.Checkpoint, error) {
	return m.repo.All(ctx)
}

// Lag returns how many blocks a source trails the chain head. A source with
// no checkpoint lags by the full head height.
func (m *Manager) Lag(ctx context.Context, sourceKey string, head uint64) (uint64, error) {
	last, err := m.Last(ctx, sourceKey)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return head, nil
	}
	if *last >= head {
		return 0, nil
	}
	return head - *last, nil
}

// Reset deletes a checkpoint so the source is rescanned from its start block.
func (m *Manager) Reset(ctx context.Context, sourceKey string) error {
	return m.repo.Delete(ctx, sourceKey)
}
