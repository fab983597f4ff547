// Package rpc provides the JSON-RPC transport for the sync engine.
//
// A pool of registered chain nodes plus one configured default endpoint is
// presented as a single logical client:
//
//   - Node: a JSON-RPC-over-HTTP endpoint with a fixed request timeout
//   - FailoverClient: health-aware selection across the registry with
//     bounded retry
//
// Selection order is synced nodes first, lowest priority, then lowest id.
// When the registry is empty (cold start, unit tests) the default endpoint
// is used directly. Exhausting the retry budget yields ErrServiceUnavailable.
//
// The client is stateless per call: concurrent callers resolve their endpoint
// independently and no per-call state is shared across goroutines.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrServiceUnavailable is returned when every retry attempt against the
	// node pool has failed.
	ErrServiceUnavailable = errors.New("rpc service unavailable")

	// ErrNoSyncedNode indicates the registry has nodes but none is synced.
	// One selection attempt consumed; recovered by retry.
	ErrNoSyncedNode = errors.New("no synced chain node")
)

// Client issues JSON-RPC requests.
type Client interface {
	// Call makes a single JSON-RPC call and returns the raw result payload.
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}
