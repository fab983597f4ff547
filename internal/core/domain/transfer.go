package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is an immutable record of a token balance movement.
// The surrogate ID is a UUID; duplicates from re-fetched windows are
// rejected by the unique index over the logical key
// (tx hash, token, from, to, value, timestamp).
type Transfer struct {
	ID              string          `db:"id"`
	TransactionHash string          `db:"transaction_hash"`
	TokenAddress    string          `db:"token_address"`
	FromAddress     string          `db:"from_address"`
	ToAddress       string          `db:"to_address"`
	Value           decimal.Decimal `db:"value"`
	BlockTimestamp  time.Time       `db:"block_timestamp"`
	CreatedAt       time.Time       `db:"created_at"`
}

// TransferApproval is a transfer that requires issuer sign-off.
// Natural key: (TokenAddress, ExchangeAddress, ApplicationID); ExchangeAddress
// is empty for approvals applied directly on the token contract.
//
// Lifecycle: Applied -> {Cancelled | EscrowFinished} -> Approved. The flags are
// monotone so out-of-order re-delivery cannot regress state.
type TransferApproval struct {
	TokenAddress        string          `db:"token_address"`
	ExchangeAddress     string          `db:"exchange_address"`
	ApplicationID       uint64          `db:"application_id"`
	FromAddress         string          `db:"from_address"`
	ToAddress           string          `db:"to_address"`
	Value               decimal.Decimal `db:"value"`
	ApplicationDatetime *time.Time      `db:"application_datetime"`
	Cancelled           bool            `db:"cancelled"`
	EscrowFinished      bool            `db:"escrow_finished"`
	TransferApproved    bool            `db:"transfer_approved"`
	ApprovalDatetime    *time.Time      `db:"approval_datetime"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}
