package domain

import (
	"fmt"
	"time"
)

// Checkpoint records the highest block number fully processed for a source.
// It is advanced in the same transaction as the entity writes for its window
// and is monotonically non-decreasing.
type Checkpoint struct {
	SourceKey   string    `db:"source_key"`
	BlockNumber uint64    `db:"block_number"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Source-key schema. Checkpoint granularity differs per source type: order and
// agreement scanning is keyed by exchange contract, transfer scanning by token
// contract, and approval scanning by (token, exchange) since one token may
// route approvals through more than one escrow contract.

// OrderSourceKey returns the checkpoint key for order scanning on an exchange.
func OrderSourceKey(exchange string) string {
	return fmt.Sprintf("order:%s", exchange)
}

// AgreementSourceKey returns the checkpoint key for agreement scanning on an exchange.
func AgreementSourceKey(exchange string) string {
	return fmt.Sprintf("agreement:%s", exchange)
}

// TransferSourceKey returns the checkpoint key for transfer scanning on a token.
func TransferSourceKey(token string) string {
	return fmt.Sprintf("transfer:%s", token)
}

// ApprovalSourceKey returns the checkpoint key for transfer-approval scanning.
// exchange is empty for approvals applied directly on the token contract.
func ApprovalSourceKey(token, exchange string) string {
	return fmt.Sprintf("approval:%s:%s", token, exchange)
}
