package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a standing buy/sell intent on an exchange contract.
// Natural key: (ExchangeAddress, OrderID).
type Order struct {
	ExchangeAddress    string          `db:"exchange_address"`
	OrderID            uint64          `db:"order_id"`
	TokenAddress       string          `db:"token_address"`
	AccountAddress     string          `db:"account_address"`
	CounterpartAddress string          `db:"counterpart_address"`
	IsBuy              bool            `db:"is_buy"`
	Price              decimal.Decimal `db:"price"`
	Amount             decimal.Decimal `db:"amount"`
	AgentAddress       string          `db:"agent_address"`
	IsCancelled        bool            `db:"is_cancelled"`
	OrderTimestamp     time.Time       `db:"order_timestamp"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

// AgreementStatus is the settlement state of an agreement.
// Transitions are one-way from PENDING.
type AgreementStatus string

const (
	AgreementStatusPending  AgreementStatus = "PENDING"
	AgreementStatusDone     AgreementStatus = "DONE"
	AgreementStatusCanceled AgreementStatus = "CANCELED"
)

// Agreement is a specific match against an Order.
// Natural key: (ExchangeAddress, OrderID, AgreementID).
type Agreement struct {
	ExchangeAddress     string          `db:"exchange_address"`
	OrderID             uint64          `db:"order_id"`
	AgreementID         uint64          `db:"agreement_id"`
	BuyerAddress        string          `db:"buyer_address"`
	SellerAddress       string          `db:"seller_address"`
	CounterpartAddress  string          `db:"counterpart_address"`
	Amount              decimal.Decimal `db:"amount"`
	Status              AgreementStatus `db:"status"`
	AgreementTimestamp  time.Time       `db:"agreement_timestamp"`
	SettlementTimestamp *time.Time      `db:"settlement_timestamp"`
	CreatedAt           time.Time       `db:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"`
}
