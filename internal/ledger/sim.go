package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/money"
)

// SimLedger is an in-memory Client for demo/development mode: transfers
// move balances between simulated accounts and decisions live in a map.
// Transaction hashes are random but stable so callers can follow the same
// code paths as against a real chain.
type SimLedger struct {
	address string
	logger  *slog.Logger

	mu        sync.RWMutex
	balances  map[string]*big.Int // lowercased address → smallest units
	decisions map[string]*DecisionRecord
	nonce     uint64
}

// Compile-time interface check
var _ Client = (*SimLedger)(nil)

// DefaultSimBalance funds the platform wallet in demo mode.
const DefaultSimBalance = "10000.000000"

// NewSim creates a simulated ledger with a funded platform wallet.
func NewSim(address string, logger *slog.Logger) *SimLedger {
	if address == "" {
		address = "0x" + idgen.Hex(20)
	}
	funded, _ := money.Parse(DefaultSimBalance)
	return &SimLedger{
		address:   strings.ToLower(address),
		logger:    logger,
		balances:  map[string]*big.Int{strings.ToLower(address): funded},
		decisions: make(map[string]*DecisionRecord),
	}
}

func (s *SimLedger) Address() string {
	return s.address
}

// Fund credits an account, for tests and demo seeding.
func (s *SimLedger) Fund(addr, amount string) {
	raw, ok := money.Parse(amount)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credit(strings.ToLower(addr), raw)
}

func (s *SimLedger) BalanceOf(_ context.Context, addr string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bal, ok := s.balances[strings.ToLower(addr)]
	if !ok {
		return "0.000000", nil
	}
	return money.Format(bal), nil
}

func (s *SimLedger) Transfer(_ context.Context, to string, amount string) (*TransferResult, error) {
	raw, ok := money.Parse(amount)
	if !ok || raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.balances[s.address]
	if from == nil || from.Cmp(raw) < 0 {
		return nil, ErrInsufficientBalance
	}
	from.Sub(from, raw)
	s.credit(strings.ToLower(to), raw)
	s.nonce++

	result := &TransferResult{
		TxHash: "0x" + idgen.Hex(32),
		From:   s.address,
		To:     to,
		Amount: money.Format(raw),
		Nonce:  s.nonce - 1,
	}

	s.logger.Debug("simulated transfer", "to", to, "amount", result.Amount, "tx", result.TxHash)
	return result, nil
}

func (s *SimLedger) LogDecision(_ context.Context, rec *DecisionRecord) (*DecisionRecord, error) {
	if rec.ID == "" {
		rec.ID = idgen.WithPrefix("dec_")
	}
	if _, ok := money.Parse(rec.Amount); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, rec.Amount)
	}

	now := time.Now()
	cp := *rec
	cp.Status = DecisionPending
	cp.CreatedAt = now
	cp.UpdatedAt = now

	s.mu.Lock()
	s.decisions[cp.ID] = &cp
	s.mu.Unlock()

	out := cp
	return &out, nil
}

func (s *SimLedger) UpdateDecisionStatus(_ context.Context, id string, status DecisionStatus, txRef string) error {
	if _, ok := statusCode[status]; !ok {
		return fmt.Errorf("ledger: unknown decision status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.decisions[id]
	if !ok {
		return ErrDecisionNotFound
	}
	rec.Status = status
	rec.TxRef = txRef
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *SimLedger) GetDecision(_ context.Context, id string) (*DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.decisions[id]
	if !ok {
		return nil, ErrDecisionNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *SimLedger) Close() error { return nil }

// credit adds to an account balance; caller holds the lock.
func (s *SimLedger) credit(addr string, raw *big.Int) {
	if bal, ok := s.balances[addr]; ok {
		bal.Add(bal, raw)
		return
	}
	s.balances[addr] = new(big.Int).Set(raw)
}
