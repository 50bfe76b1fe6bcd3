// Package wallet provides balance snapshots for policy checks.
//
// The platform operates one custodial wallet; snapshots are cached briefly
// so a busy scheduler tick does not hammer the RPC endpoint with balanceOf
// calls. A stale-by-seconds balance is acceptable because the ledger itself
// rejects transfers the balance cannot cover.
package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/tkaster/sentrypay/internal/ledger"
	"github.com/tkaster/sentrypay/internal/orchestrator"
)

// DefaultCacheTTL bounds snapshot staleness.
const DefaultCacheTTL = 15 * time.Second

// Provider serves wallet snapshots from the ledger with a TTL cache.
type Provider struct {
	ledger   ledger.Client
	currency string
	ttl      time.Duration

	mu        sync.Mutex
	cached    orchestrator.WalletSnapshot
	fetchedAt time.Time
}

// NewProvider creates a balance provider over the ledger client.
func NewProvider(lc ledger.Client) *Provider {
	return &Provider{
		ledger:   lc,
		currency: "USDC",
		ttl:      DefaultCacheTTL,
	}
}

// WithTTL overrides the cache lifetime. Zero disables caching.
func (p *Provider) WithTTL(d time.Duration) *Provider {
	p.ttl = d
	return p
}

// Snapshot returns the platform wallet balance for policy checks. The
// userID parameter is accepted for interface compatibility; balances are
// custodial and shared.
func (p *Provider) Snapshot(ctx context.Context, _ string) (orchestrator.WalletSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ttl > 0 && time.Since(p.fetchedAt) < p.ttl && p.cached.Balance != "" {
		return p.cached, nil
	}

	addr := p.ledger.Address()
	balance, err := p.ledger.BalanceOf(ctx, addr)
	if err != nil {
		// Serve the stale snapshot rather than nothing; policy treats an
		// empty balance as "unknown" and skips the balance check.
		if p.cached.Balance != "" {
			return p.cached, nil
		}
		return orchestrator.WalletSnapshot{}, err
	}

	p.cached = orchestrator.WalletSnapshot{
		Address:  addr,
		Balance:  balance,
		Currency: p.currency,
	}
	p.fetchedAt = time.Now()
	return p.cached, nil
}

// Balance returns the current platform balance as a decimal string.
func (p *Provider) Balance(ctx context.Context) (string, error) {
	snap, err := p.Snapshot(ctx, "")
	if err != nil {
		return "", err
	}
	return snap.Balance, nil
}

// Invalidate drops the cached snapshot, forcing the next read through.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchedAt = time.Time{}
}
