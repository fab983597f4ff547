package domain

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// ErrValueOutOfRange is returned when a decoded numeric argument does not fit
// the field it is destined for. The caller skips the event with a warning
// instead of crashing.
var ErrValueOutOfRange = errors.New("value out of range")

// EventKind identifies a supported contract event. Each kind maps statically
// to its decoder and its entity-application function.
type EventKind string

const (
	// Exchange events
	EventNewOrder     EventKind = "NewOrder"
	EventCancelOrder  EventKind = "CancelOrder"
	EventAgree        EventKind = "Agree"
	EventSettlementOK EventKind = "SettlementOK"
	EventSettlementNG EventKind = "SettlementNG"

	// Token events
	EventTransfer EventKind = "Transfer"

	// Transfer-approval events (token or escrow contract)
	EventApplyForTransfer EventKind = "ApplyForTransfer"
	EventCancelTransfer   EventKind = "CancelTransfer"
	EventEscrowFinished   EventKind = "EscrowFinished"
	EventApproveTransfer  EventKind = "ApproveTransfer"
)

// Event is one decoded log entry.
type Event struct {
	Kind            EventKind
	ContractAddress string
	BlockNumber     uint64
	LogIndex        uint
	TxHash          string
	BlockTimestamp  time.Time
	Args            map[string]any
}

// Address returns a decoded address argument as a hex string.
func (e *Event) Address(name string) (string, error) {
	v, ok := e.Args[name]
	if !ok {
		return "", fmt.Errorf("event %s: missing argument %q", e.Kind, name)
	}
	switch a := v.(type) {
	case interface{ Hex() string }:
		return a.Hex(), nil
	case string:
		return a, nil
	}
	return "", fmt.Errorf("event %s: argument %q is not an address", e.Kind, name)
}

// Uint64 returns a decoded uint256 argument narrowed to uint64. Values that do
// not fit a signed 64-bit column fail with ErrValueOutOfRange.
func (e *Event) Uint64(name string) (uint64, error) {
	b, err := e.bigInt(name)
	if err != nil {
		return 0, err
	}
	if !b.IsUint64() || b.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("event %s: argument %q = %s: %w", e.Kind, name, b, ErrValueOutOfRange)
	}
	return b.Uint64(), nil
}

// Decimal returns a decoded uint256 argument as an arbitrary-precision decimal.
// No range limit applies; on-chain amounts are stored as NUMERIC.
func (e *Event) Decimal(name string) (decimal.Decimal, error) {
	b, err := e.bigInt(name)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(b, 0), nil
}

// Bool returns a decoded bool argument.
func (e *Event) Bool(name string) (bool, error) {
	v, ok := e.Args[name]
	if !ok {
		return false, fmt.Errorf("event %s: missing argument %q", e.Kind, name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("event %s: argument %q is not a bool", e.Kind, name)
	}
	return b, nil
}

// Text returns a decoded string argument. Missing or mistyped values yield the
// empty string; free-form payloads are best effort.
func (e *Event) Text(name string) string {
	if v, ok := e.Args[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (e *Event) bigInt(name string) (*big.Int, error) {
	v, ok := e.Args[name]
	if !ok {
		return nil, fmt.Errorf("event %s: missing argument %q", e.Kind, name)
	}
	b, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("event %s: argument %q is not an integer", e.Kind, name)
	}
	return b, nil
}
