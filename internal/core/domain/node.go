package domain

import "time"

// ChainNode is one JSON-RPC-capable chain node. The synced flag is maintained
// by an external watchdog; the sync engine only reads it.
type ChainNode struct {
	ID          int64     `db:"id"`
	EndpointURI string    `db:"endpoint_uri"`
	Priority    int       `db:"priority"`
	Synced      bool      `db:"synced"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
