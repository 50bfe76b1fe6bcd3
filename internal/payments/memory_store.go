package payments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory payment store for demo/development mode.
type MemoryStore struct {
	payments map[string]*ScheduledPayment
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]*ScheduledPayment)}
}

func (m *MemoryStore) Create(_ context.Context, p *ScheduledPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := clonePayment(p)
	m.payments[p.ID] = cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePayment(p), nil
}

func (m *MemoryStore) Update(_ context.Context, p *ScheduledPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	m.payments[p.ID] = clonePayment(p)
	return nil
}

// Claim transitions scheduled→processing under the store lock, so of any
// set of concurrent claims exactly one observes the scheduled state.
func (m *MemoryStore) Claim(_ context.Context, id string) (*ScheduledPayment, error) {
	return m.transition(id, StatusProcessing)
}

func (m *MemoryStore) CancelScheduled(_ context.Context, id string) (*ScheduledPayment, error) {
	return m.transition(id, StatusCancelled)
}

func (m *MemoryStore) transition(id string, to Status) (*ScheduledPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != StatusScheduled {
		return nil, ErrConflict
	}
	p.Status = to
	p.UpdatedAt = time.Now()
	return clonePayment(p), nil
}

func (m *MemoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*ScheduledPayment
	for _, p := range m.payments {
		if p.Status == StatusScheduled && !p.ScheduledDate.After(now) {
			result = append(result, clonePayment(p))
		}
	}

	// Oldest due first
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledDate.Before(result[j].ScheduledDate)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListDueWithin(_ context.Context, from, until time.Time, limit int) ([]*ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*ScheduledPayment
	for _, p := range m.payments {
		if p.Status == StatusScheduled && p.ScheduledDate.After(from) && !p.ScheduledDate.After(until) {
			result = append(result, clonePayment(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledDate.Before(result[j].ScheduledDate)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string, status Status, limit int) ([]*ScheduledPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*ScheduledPayment
	for _, p := range m.payments {
		if p.UserID != userID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		result = append(result, clonePayment(p))
	}

	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// clonePayment deep-copies a payment so callers never share slices or the
// end-date pointer with the stored copy.
func clonePayment(p *ScheduledPayment) *ScheduledPayment {
	cp := *p
	if p.Tags != nil {
		cp.Tags = append([]string(nil), p.Tags...)
	}
	if p.Recurring.EndDate != nil {
		end := *p.Recurring.EndDate
		cp.Recurring.EndDate = &end
	}
	if p.ExecutedAt != nil {
		at := *p.ExecutedAt
		cp.ExecutedAt = &at
	}
	return &cp
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
