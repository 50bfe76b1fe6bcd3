package ledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func newSim() *SimLedger {
	return NewSim("0x1111111111111111111111111111111111111111", slog.New(slog.DiscardHandler))
}

func TestSimTransfer(t *testing.T) {
	sim := newSim()
	ctx := context.Background()

	result, err := sim.Transfer(ctx, "0x2222222222222222222222222222222222222222", "25.50")
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if result.TxHash == "" {
		t.Error("expected a tx hash")
	}
	if result.Amount != "25.500000" {
		t.Errorf("amount %s, want 25.500000", result.Amount)
	}

	bal, err := sim.BalanceOf(ctx, sim.Address())
	if err != nil {
		t.Fatal(err)
	}
	if bal != "9974.500000" {
		t.Errorf("platform balance %s, want 9974.500000", bal)
	}

	recvBal, err := sim.BalanceOf(ctx, "0x2222222222222222222222222222222222222222")
	if err != nil {
		t.Fatal(err)
	}
	if recvBal != "25.500000" {
		t.Errorf("recipient balance %s, want 25.500000", recvBal)
	}
}

func TestSimTransfer_InsufficientBalance(t *testing.T) {
	sim := newSim()

	_, err := sim.Transfer(context.Background(), "0x2222222222222222222222222222222222222222", "10001")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestSimTransfer_InvalidAmount(t *testing.T) {
	sim := newSim()

	for _, amount := range []string{"", "abc", "-5", "0"} {
		if _, err := sim.Transfer(context.Background(), "0x2222222222222222222222222222222222222222", amount); err == nil {
			t.Errorf("amount %q: expected error", amount)
		}
	}
}

func TestSimDecisionLifecycle(t *testing.T) {
	sim := newSim()
	ctx := context.Background()

	rec, err := sim.LogDecision(ctx, &DecisionRecord{
		Agent:         "sentrypay-scheduler",
		ActionSummary: "scheduled payment pay_abc",
		Amount:        "50",
		RiskScore:     12,
	})
	if err != nil {
		t.Fatalf("LogDecision failed: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected decision ID to be assigned")
	}
	if rec.Status != DecisionPending {
		t.Errorf("status %s, want PENDING", rec.Status)
	}

	if err := sim.UpdateDecisionStatus(ctx, rec.ID, DecisionExecuted, "0xabc"); err != nil {
		t.Fatalf("UpdateDecisionStatus failed: %v", err)
	}

	got, err := sim.GetDecision(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != DecisionExecuted {
		t.Errorf("status %s, want EXECUTED", got.Status)
	}
	if got.TxRef != "0xabc" {
		t.Errorf("txRef %s, want 0xabc", got.TxRef)
	}
}

func TestSimDecision_NotFound(t *testing.T) {
	sim := newSim()

	if _, err := sim.GetDecision(context.Background(), "dec_missing"); !errors.Is(err, ErrDecisionNotFound) {
		t.Errorf("got %v, want ErrDecisionNotFound", err)
	}
	if err := sim.UpdateDecisionStatus(context.Background(), "dec_missing", DecisionFailed, ""); !errors.Is(err, ErrDecisionNotFound) {
		t.Errorf("got %v, want ErrDecisionNotFound", err)
	}
}

func TestEthConfigValidation(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	_, err := NewEth(Config{}, logger)
	if err == nil {
		t.Fatal("expected error for empty config")
	}

	_, err = NewEth(Config{
		RPCURL:           "http://localhost:8545",
		PrivateKey:       "short",
		ChainID:          8453,
		USDCContract:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		DecisionRegistry: "0x4444444444444444444444444444444444444444",
	}, logger)
	if !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("got %v, want ErrInvalidPrivateKey", err)
	}
}
