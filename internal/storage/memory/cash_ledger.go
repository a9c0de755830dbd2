package memory

import (
	"context"
	"sort"
	"sync"

	"tradesim/internal/domain"
	"tradesim/internal/storage"
)

// movementEntry pairs a stored movement with its insertion sequence number.
type movementEntry struct {
	movement *domain.CashMovement
	seq      uint64
}

// CashLedger is an in-memory implementation of storage.CashLedger.
type CashLedger struct {
	mu   sync.RWMutex
	seq  uint64
	data map[string]movementEntry // keyed by movement ID
}

// NewCashLedger creates a new in-memory cash ledger.
func NewCashLedger() *CashLedger {
	return &CashLedger{
		data: make(map[string]movementEntry),
	}
}

var _ storage.CashLedger = (*CashLedger)(nil)

// Append adds a new movement. Returns ErrDuplicateKey if the ID exists,
// ErrInvalidInput for a non-positive amount or unknown kind.
func (l *CashLedger) Append(_ context.Context, m *domain.CashMovement) error {
	if m == nil || m.ID == "" || m.UserID == "" {
		return storage.ErrInvalidInput
	}
	if !domain.ValidMovementKind(m.Kind) || m.Amount <= 0 {
		return storage.ErrInvalidInput
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.data[m.ID]; exists {
		return storage.ErrDuplicateKey
	}

	movementCopy := *m
	l.seq++
	l.data[m.ID] = movementEntry{movement: &movementCopy, seq: l.seq}
	return nil
}

// ListByUser retrieves all movements for a user, ordered by CreatedAt ASC,
// append order as tiebreaker.
func (l *CashLedger) ListByUser(_ context.Context, userID string) ([]*domain.CashMovement, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var entries []movementEntry
	for _, e := range l.data {
		if e.movement.UserID == userID {
			entries = append(entries, e)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].movement.CreatedAt != entries[j].movement.CreatedAt {
			return entries[i].movement.CreatedAt < entries[j].movement.CreatedAt
		}
		return entries[i].seq < entries[j].seq
	})

	result := make([]*domain.CashMovement, 0, len(entries))
	for _, e := range entries {
		movementCopy := *e.movement
		result = append(result, &movementCopy)
	}
	return result, nil
}
