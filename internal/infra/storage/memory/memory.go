// Package memory is an in-memory mirror of the postgres storage layer,
// used by unit tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tranvu/ledgersync/internal/core/domain"
	"github.com/tranvu/ledgersync/internal/infra/storage"
)

// Store holds all entities behind one lock. Units of work buffer their writes
// and apply them atomically on Commit, mirroring the transactional behavior
// of the postgres implementation.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*domain.Checkpoint
	nodes       []*domain.ChainNode
	orders      map[string]*domain.Order
	agreements  map[string]*domain.Agreement
	transfers   map[string]*domain.Transfer
	approvals   map[string]*domain.TransferApproval

	// FailCommits makes every Commit fail while set; used to test that
	// checkpoints never advance on a failed cycle.
	FailCommits bool
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		checkpoints: make(map[string]*domain.Checkpoint),
		orders:      make(map[string]*domain.Order),
		agreements:  make(map[string]*domain.Agreement),
		transfers:   make(map[string]*domain.Transfer),
		approvals:   make(map[string]*domain.TransferApproval),
	}
}

func orderKey(exchange string, orderID uint64) string {
	return fmt.Sprintf("%s:%d", exchange, orderID)
}

func agreementKey(exchange string, orderID, agreementID uint64) string {
	return fmt.Sprintf("%s:%d:%d", exchange, orderID, agreementID)
}

func approvalKey(token, exchange string, applicationID uint64) string {
	return fmt.Sprintf("%s:%s:%d", token, exchange, applicationID)
}

func transferKey(t *domain.Transfer) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:%d",
		t.TransactionHash, t.TokenAddress, t.FromAddress, t.ToAddress,
		t.Value.String(), t.BlockTimestamp.UnixNano())
}

// SetNodes replaces the node registry contents.
func (s *Store) SetNodes(nodes []*domain.ChainNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
}

// -----------------------------------------------------------------------------
// Read repositories
// -----------------------------------------------------------------------------

// Get retrieves the checkpoint for a source key.
func (s *Store) Checkpoints() *CheckpointRepo { return &CheckpointRepo{store: s} }

// CheckpointRepo implements storage.CheckpointRepository.
type CheckpointRepo struct {
	store *Store
}

func (r *CheckpointRepo) Get(ctx context.Context, sourceKey string) (*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	cp, ok := r.store.checkpoints[sourceKey]
	if !ok {
		return nil, storage.ErrCheckpointNotFound
	}
	c := *cp
	return &c, nil
}

func (r *CheckpointRepo) All(ctx context.Context) ([]*domain.Checkpoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Checkpoint, 0, len(r.store.checkpoints))
	for _, cp := range r.store.checkpoints {
		c := *cp
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceKey < out[j].SourceKey })
	return out, nil
}

func (r *CheckpointRepo) Delete(ctx context.Context, sourceKey string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.checkpoints, sourceKey)
	return nil
}

// NodeRepo implements storage.NodeRepository.
type NodeRepo struct {
	store *Store
}

func (s *Store) Nodes() *NodeRepo { return &NodeRepo{store: s} }

func (r *NodeRepo) List(ctx context.Context) ([]*domain.ChainNode, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.ChainNode, len(r.store.nodes))
	copy(out, r.store.nodes)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// OrderRepo implements storage.OrderRepository.
type OrderRepo struct {
	store *Store
}

func (s *Store) Orders() *OrderRepo { return &OrderRepo{store: s} }

func (r *OrderRepo) Get(ctx context.Context, exchange string, orderID uint64) (*domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	o, ok := r.store.orders[orderKey(exchange, orderID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *o
	return &c, nil
}

// Count returns the number of order rows. Test helper.
func (r *OrderRepo) Count() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.orders)
}

// AgreementRepo implements storage.AgreementRepository.
type AgreementRepo struct {
	store *Store
}

func (s *Store) Agreements() *AgreementRepo { return &AgreementRepo{store: s} }

func (r *AgreementRepo) Get(ctx context.Context, exchange string, orderID, agreementID uint64) (*domain.Agreement, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.agreements[agreementKey(exchange, orderID, agreementID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *a
	return &c, nil
}

// Count returns the number of agreement rows. Test helper.
func (r *AgreementRepo) Count() int {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.agreements)
}

// TransferRepo implements storage.TransferRepository.
type TransferRepo struct {
	store *Store
}

func (s *Store) Transfers() *TransferRepo { return &TransferRepo{store: s} }

func (r *TransferRepo) ListByToken(ctx context.Context, token string) ([]*domain.Transfer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Transfer
	for _, t := range r.store.transfers {
		if t.TokenAddress == token {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockTimestamp.Before(out[j].BlockTimestamp)
	})
	return out, nil
}

// ApprovalRepo implements storage.ApprovalRepository.
type ApprovalRepo struct {
	store *Store
}

func (s *Store) Approvals() *ApprovalRepo { return &ApprovalRepo{store: s} }

func (r *ApprovalRepo) Get(ctx context.Context, token, exchange string, applicationID uint64) (*domain.TransferApproval, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	a, ok := r.store.approvals[approvalKey(token, exchange, applicationID)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *a
	return &c, nil
}

// -----------------------------------------------------------------------------
// Unit of work
// -----------------------------------------------------------------------------

// UnitOfWork buffers writes and applies them atomically on Commit.
type UnitOfWork struct {
	store *Store
	ops   []func()
	done  bool
}

var _ storage.UnitOfWork = (*UnitOfWork)(nil)

// Begin opens a new unit of work.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	return &UnitOfWork{store: s}, nil
}

// Commit applies all buffered writes under the store lock.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return fmt.Errorf("transaction already completed")
	}
	u.done = true

	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	if u.store.FailCommits {
		return fmt.Errorf("commit failed (injected)")
	}
	for _, op := range u.ops {
		op()
	}
	u.ops = nil
	return nil
}

// Rollback discards buffered writes.
func (u *UnitOfWork) Rollback() error {
	u.done = true
	u.ops = nil
	return nil
}

func (u *UnitOfWork) InsertOrderIfAbsent(ctx context.Context, o *domain.Order) error {
	c := *o
	u.ops = append(u.ops, func() {
		key := orderKey(c.ExchangeAddress, c.OrderID)
		if _, exists := u.store.orders[key]; !exists {
			c.CreatedAt = time.Now()
			c.UpdatedAt = c.CreatedAt
			u.store.orders[key] = &c
		}
	})
	return nil
}

func (u *UnitOfWork) CancelOrder(ctx context.Context, exchange string, orderID uint64) error {
	u.ops = append(u.ops, func() {
		if o, ok := u.store.orders[orderKey(exchange, orderID)]; ok {
			o.IsCancelled = true
			o.UpdatedAt = time.Now()
		}
	})
	return nil
}

func (u *UnitOfWork) InsertAgreementIfAbsent(ctx context.Context, a *domain.Agreement) error {
	c := *a
	u.ops = append(u.ops, func() {
		key := agreementKey(c.ExchangeAddress, c.OrderID, c.AgreementID)
		if _, exists := u.store.agreements[key]; !exists {
			c.CreatedAt = time.Now()
			c.UpdatedAt = c.CreatedAt
			u.store.agreements[key] = &c
		}
	})
	return nil
}

func (u *UnitOfWork) SettleAgreement(ctx context.Context, exchange string, orderID, agreementID uint64,
	status domain.AgreementStatus, settledAt time.Time) error {
	u.ops = append(u.ops, func() {
		a, ok := u.store.agreements[agreementKey(exchange, orderID, agreementID)]
		if !ok || a.Status != domain.AgreementStatusPending {
			return
		}
		a.Status = status
		t := settledAt
		a.SettlementTimestamp = &t
		a.UpdatedAt = time.Now()
	})
	return nil
}

func (u *UnitOfWork) InsertTransfer(ctx context.Context, t *domain.Transfer) error {
	c := *t
	u.ops = append(u.ops, func() {
		key := transferKey(&c)
		if _, exists := u.store.transfers[key]; !exists {
			c.CreatedAt = time.Now()
			u.store.transfers[key] = &c
		}
	})
	return nil
}

func (u *UnitOfWork) InsertApprovalIfAbsent(ctx context.Context, a *domain.TransferApproval) error {
	c := *a
	u.ops = append(u.ops, func() {
		key := approvalKey(c.TokenAddress, c.ExchangeAddress, c.ApplicationID)
		if _, exists := u.store.approvals[key]; !exists {
			c.CreatedAt = time.Now()
			c.UpdatedAt = c.CreatedAt
			u.store.approvals[key] = &c
		}
	})
	return nil
}

func (u *UnitOfWork) CancelApproval(ctx context.Context, token, exchange string, applicationID uint64) error {
	u.ops = append(u.ops, func() {
		if a, ok := u.store.approvals[approvalKey(token, exchange, applicationID)]; ok {
			a.Cancelled = true
			a.UpdatedAt = time.Now()
		}
	})
	return nil
}

func (u *UnitOfWork) FinishEscrow(ctx context.Context, token, exchange string, applicationID uint64) error {
	u.ops = append(u.ops, func() {
		if a, ok := u.store.approvals[approvalKey(token, exchange, applicationID)]; ok {
			a.EscrowFinished = true
			a.UpdatedAt = time.Now()
		}
	})
	return nil
}

func (u *UnitOfWork) ApproveApproval(ctx context.Context, token, exchange string, applicationID uint64,
	approvedAt *time.Time) error {
	u.ops = append(u.ops, func() {
		if a, ok := u.store.approvals[approvalKey(token, exchange, applicationID)]; ok {
			a.TransferApproved = true
			if approvedAt != nil {
				t := *approvedAt
				a.ApprovalDatetime = &t
			}
			a.UpdatedAt = time.Now()
		}
	})
	return nil
}

func (u *UnitOfWork) SetCheckpoint(ctx context.Context, sourceKey string, blockNumber uint64) error {
	u.ops = append(u.ops, func() {
		cp, ok := u.store.checkpoints[sourceKey]
		if !ok {
			now := time.Now()
			u.store.checkpoints[sourceKey] = &domain.Checkpoint{
				SourceKey:   sourceKey,
				BlockNumber: blockNumber,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			return
		}
		if blockNumber > cp.BlockNumber {
			cp.BlockNumber = blockNumber
		}
		cp.UpdatedAt = time.Now()
	})
	return nil
}
