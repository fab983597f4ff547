package sink

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage/memory"
)

const escrowAddr = "0xEscrow"

func approvalEvent(kind domain.EventKind, applicationID uint64, data string) *domain.Event {
	e := &domain.Event{
		Kind:            kind,
		ContractAddress: escrowAddr,
		BlockNumber:     30,
		TxHash:          "0xtx1",
		BlockTimestamp:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Args: map[string]any{
			"index": new(big.Int).SetUint64(applicationID),
			"from":  "0xAlice",
			"to":    "0xBob",
			"value": big.NewInt(500),
		},
	}
	if data != "" {
		e.Args["data"] = data
	}
	return e
}

func TestApprovalSink_FullFlow(t *testing.T) {
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, escrowAddr)
	ctx := context.Background()

	apply(t, store, s,
		approvalEvent(domain.EventApplyForTransfer, 1, "2025-03-01 10:00:00"),
		approvalEvent(domain.EventEscrowFinished, 1, ""),
		approvalEvent(domain.EventApproveTransfer, 1, "2025-03-02 09:00:00"),
	)

	a, err := store.Approvals().Get(ctx, tokenAddr, escrowAddr, 1)
	require.NoError(t, err)
	assert.Equal(t, "0xAlice", a.FromAddress)
	assert.Equal(t, "0xBob", a.ToAddress)
	assert.Equal(t, "500", a.Value.String())
	assert.False(t, a.Cancelled)
	assert.True(t, a.EscrowFinished)
	assert.True(t, a.TransferApproved)
	require.NotNil(t, a.ApplicationDatetime)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), *a.ApplicationDatetime)
	require.NotNil(t, a.ApprovalDatetime)
	assert.Equal(t, time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC), *a.ApprovalDatetime)
}

func TestApprovalSink_Cancel(t *testing.T) {
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, escrowAddr)
	ctx := context.Background()

	apply(t, store, s,
		approvalEvent(domain.EventApplyForTransfer, 1, ""),
		approvalEvent(domain.EventCancelTransfer, 1, ""),
	)

	a, err := store.Approvals().Get(ctx, tokenAddr, escrowAddr, 1)
	require.NoError(t, err)
	assert.True(t, a.Cancelled)
	assert.False(t, a.TransferApproved)
}

func TestApprovalSink_MutationWithoutApplicationIsNoop(t *testing.T) {
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, escrowAddr)
	ctx := context.Background()

	apply(t, store, s, approvalEvent(domain.EventCancelTransfer, 9, ""))

	_, err := store.Approvals().Get(ctx, tokenAddr, escrowAddr, 9)
	assert.Error(t, err)
}

func TestApprovalSink_DuplicateApplyDoesNotOverwrite(t *testing.T) {
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, escrowAddr)
	ctx := context.Background()

	apply(t, store, s, approvalEvent(domain.EventApplyForTransfer, 1, "2025-03-01 10:00:00"))

	dup := approvalEvent(domain.EventApplyForTransfer, 1, "2025-03-01 10:00:00")
	dup.Args["value"] = big.NewInt(999)
	apply(t, store, s, dup)

	a, err := store.Approvals().Get(ctx, tokenAddr, escrowAddr, 1)
	require.NoError(t, err)
	assert.Equal(t, "500", a.Value.String())
}

func TestApprovalSink_UnparseableDatetimeIsNull(t *testing.T) {
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, escrowAddr)
	ctx := context.Background()

	// Free-form payloads are not guaranteed to carry a datetime at all.
	apply(t, store, s, approvalEvent(domain.EventApplyForTransfer, 1, "memo: urgent"))

	a, err := store.Approvals().Get(ctx, tokenAddr, escrowAddr, 1)
	require.NoError(t, err)
	assert.Nil(t, a.ApplicationDatetime)
}

func TestApprovalSink_DirectTokenApprovals(t *testing.T) {
	// Approvals applied on the token contract itself are keyed with an empty
	// exchange address.
	store := memory.NewStore()
	s := NewApprovalSink(tokenAddr, "")
	ctx := context.Background()

	apply(t, store, s, approvalEvent(domain.EventApplyForTransfer, 1, ""))

	_, err := store.Approvals().Get(ctx, tokenAddr, "", 1)
	assert.NoError(t, err)
}

func TestParseEventDatetime(t *testing.T) {
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"2025-03-01 10:00:00", timePtr(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))},
		{"2025-03-01T10:00:00", timePtr(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))},
		{"2025-03-01T10:00:00Z", timePtr(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))},
		{"", nil},
		{"not a time", nil},
	}
	for _, tt := range tests {
		got := parseEventDatetime(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, "input %q", tt.in)
			continue
		}
		require.NotNil(t, got, "input %q", tt.in)
		assert.Equal(t, *tt.want, *got, "input %q", tt.in)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
