package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// FailoverConfig holds failover behavior settings.
type FailoverConfig struct {
	// Enabled turns registry-based failover on. When false, every call goes
	// to the default endpoint.
	Enabled bool `yaml:"enabled"`

	// RetryCount is the number of selection attempts before giving up.
	RetryCount int `yaml:"retry_count"`

	// RetryInterval is the sleep between attempts.
	RetryInterval time.Duration `yaml:"retry_interval"`

	// RequestTimeout applies to each JSON-RPC request. A timeout triggers
	// node failover, not an immediate fatal error.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// FailoverClient routes JSON-RPC requests across the node registry.
//
// Per call: if fail-over is disabled, the default endpoint is used. Otherwise
// the registry is consulted; an empty registry falls back to the default
// endpoint (cold start). With nodes registered, up to RetryCount attempts are
// made, each picking the synced node with the lowest priority then lowest id.
// A transport failure or an unsynced pool consumes one attempt and sleeps
// RetryInterval. Exhausting attempts returns ErrServiceUnavailable.
//
// The client never mutates node health; the synced flag belongs to the
// external watchdog.
type FailoverClient struct {
	cfg         FailoverConfig
	registry    storage.NodeRepository
	defaultNode *Node
	log         *slog.Logger

	mu    sync.Mutex
	nodes map[string]*Node // keyed by endpoint URI
}

var _ Client = (*FailoverClient)(nil)

// NewFailoverClient creates a failover client over the registry with the
// given default endpoint.
func NewFailoverClient(cfg FailoverConfig, registry storage.NodeRepository, defaultEndpoint string) *FailoverClient {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &FailoverClient{
		cfg:         cfg,
		registry:    registry,
		defaultNode: NewNode("default", defaultEndpoint, cfg.RequestTimeout),
		log:         slog.With("component", "rpc"),
		nodes:       make(map[string]*Node),
	}
}

// Call issues a JSON-RPC request through the best available node.
func (c *FailoverClient) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if !c.cfg.Enabled {
		return c.defaultNode.Call(ctx, method, params)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryInterval):
			}
		}

		nodes, err := c.registry.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("node registry lookup: %w", err)
		}
		if len(nodes) == 0 {
			// Cold start: nothing registered yet, use the default endpoint.
			return c.defaultNode.Call(ctx, method, params)
		}

		node := c.selectNode(nodes)
		if node == nil {
			lastErr = ErrNoSyncedNode
			c.log.Warn("no synced node available", "attempt", attempt+1)
			continue
		}

		result, err := node.Call(ctx, method, params)
		if err == nil {
			return result, nil
		}
		if isFatal(err) {
			return nil, err
		}

		lastErr = err
		c.log.Warn("rpc call failed, retrying",
			"node", node.Name(), "method", method, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("%w: %d attempts exhausted: %v",
		ErrServiceUnavailable, c.cfg.RetryCount, lastErr)
}

// selectNode picks the synced node with the lowest priority, then lowest id.
// The registry returns nodes already ordered that way.
func (c *FailoverClient) selectNode(nodes []*domain.ChainNode) *Node {
	for _, n := range nodes {
		if !n.Synced {
			continue
		}
		return c.nodeFor(n)
	}
	return nil
}

func (c *FailoverClient) nodeFor(n *domain.ChainNode) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if node, ok := c.nodes[n.EndpointURI]; ok {
		return node
	}
	node := NewNode(fmt.Sprintf("node-%d", n.ID), n.EndpointURI, c.cfg.RequestTimeout)
	c.nodes[n.EndpointURI] = node
	return node
}

// isFatal reports whether an error is a request defect that no other node can
// fix. Retrying those only burns the attempt budget.
func isFatal(err error) bool {
	s := err.Error()
	// -32700 parse error, -32600 invalid request, -32601 method not found,
	// -32602 invalid params
	return strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602")
}
