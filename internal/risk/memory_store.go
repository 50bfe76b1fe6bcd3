package risk

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory risk store for demo/development mode.
type MemoryStore struct {
	checks map[string][]*CheckResult // userID → checks
	alerts map[string][]*Alert       // userID → alerts
	limits map[string]*Limits        // userID → overrides
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory risk store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checks: make(map[string][]*CheckResult),
		alerts: make(map[string][]*Alert),
		limits: make(map[string]*Limits),
	}
}

func (m *MemoryStore) RecordCheck(_ context.Context, result *CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *result
	cp.Flags = append([]Flag(nil), result.Flags...)
	m.checks[result.UserID] = append(m.checks[result.UserID], &cp)
	return nil
}

func (m *MemoryStore) ListChecks(_ context.Context, userID string, limit int) ([]*CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checks := m.checks[userID]
	result := make([]*CheckResult, 0, len(checks))
	for _, c := range checks {
		cp := *c
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) RecordAlert(_ context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *alert
	m.alerts[alert.UserID] = append(m.alerts[alert.UserID], &cp)
	return nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, userID string, limit int) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alerts := m.alerts[userID]
	result := make([]*Alert, 0, len(alerts))
	for _, a := range alerts {
		cp := *a
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) GetLimits(_ context.Context, userID string) (*Limits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.limits[userID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryStore) PutLimits(_ context.Context, userID string, limits *Limits) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *limits
	m.limits[userID] = &cp
	return nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
