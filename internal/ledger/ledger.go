// Package ledger handles all blockchain interactions: USDC transfers,
// balance reads, and the on-chain decision registry that records why an
// automated payment was allowed to move funds.
//
// Two implementations exist: EthLedger talks to a real chain over RPC, and
// SimLedger keeps everything in memory for demo/development mode. Both
// enforce the same contract: a decision is logged before any transfer it
// covers, and its status is settled exactly once afterwards.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPrivateKey   = errors.New("ledger: invalid private key")
	ErrInvalidAddress      = errors.New("ledger: invalid address")
	ErrInvalidAmount       = errors.New("ledger: invalid amount")
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrTransactionFailed   = errors.New("ledger: transaction failed")
	ErrTimeout             = errors.New("ledger: operation timed out")
	ErrRPCConnection       = errors.New("ledger: RPC connection failed")
	ErrDecisionNotFound    = errors.New("ledger: decision not found")
)

// TransferError wraps transfer failures with context.
type TransferError struct {
	Op     string // Operation that failed
	TxHash string // Transaction hash if available
	Err    error  // Underlying error
}

func (e *TransferError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger: %s failed: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// DecisionStatus is the lifecycle state of a logged decision.
type DecisionStatus string

const (
	DecisionPending   DecisionStatus = "PENDING"
	DecisionApproved  DecisionStatus = "APPROVED"
	DecisionExecuted  DecisionStatus = "EXECUTED"
	DecisionFailed    DecisionStatus = "FAILED"
	DecisionCancelled DecisionStatus = "CANCELLED"
)

// DecisionRecord is the audit entry logged before an orchestrated batch
// executes. One record covers the whole batch; TxRef accumulates the
// transaction references of its actions.
type DecisionRecord struct {
	ID            string         `json:"id"`
	Agent         string         `json:"agent"`
	ActionSummary string         `json:"actionSummary"`
	RationaleRef  string         `json:"rationaleRef,omitempty"`
	Amount        string         `json:"amount"`
	RiskScore     int            `json:"riskScore"`
	Status        DecisionStatus `json:"status"`
	TxRef         string         `json:"txRef,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// TransferResult contains details of a submitted transfer.
type TransferResult struct {
	TxHash      string   `json:"txHash"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Amount      string   `json:"amount"` // human-readable USDC amount
	BlockNumber uint64   `json:"blockNumber,omitempty"`
	GasUsed     uint64   `json:"gasUsed,omitempty"`
	Nonce       uint64   `json:"nonce"`
}

// Client is the ledger surface the orchestrator and scheduler depend on.
type Client interface {
	// LogDecision records a pending decision and returns it with ID set.
	LogDecision(ctx context.Context, rec *DecisionRecord) (*DecisionRecord, error)
	// UpdateDecisionStatus settles a decision's final status and tx refs.
	UpdateDecisionStatus(ctx context.Context, id string, status DecisionStatus, txRef string) error
	GetDecision(ctx context.Context, id string) (*DecisionRecord, error)

	// Transfer moves USDC from the platform wallet to a recipient.
	Transfer(ctx context.Context, to string, amount string) (*TransferResult, error)
	// BalanceOf returns an address's USDC balance as a decimal string.
	BalanceOf(ctx context.Context, addr string) (string, error)
	// Address returns the platform wallet address.
	Address() string

	Close() error
}
