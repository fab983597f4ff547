package postgres

import (
	"context"
	"fmt"

	"github.com/tranvu/ledgersync/internal/core/domain"
)

// NodeRepo implements storage.NodeRepository using PostgreSQL. The chain_nodes
// table is written by the node watchdog; this side only reads.
type NodeRepo struct {
	db *DB
}

// NewNodeRepo creates a new PostgreSQL node repository.
func NewNodeRepo(db *DB) *NodeRepo {
	return &NodeRepo{db: db}
}

// List returns all registered nodes ordered by priority, then id.
func (r *NodeRepo) List(ctx context.Context) ([]*domain.ChainNode, error) {
	var nodes []*domain.ChainNode
	err := r.db.SelectContext(ctx, &nodes,
		`SELECT id, endpoint_uri, priority, synced, created_at, updated_at
		 FROM chain_nodes ORDER BY priority, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chain nodes: %w", err)
	}
	return nodes, nil
}
