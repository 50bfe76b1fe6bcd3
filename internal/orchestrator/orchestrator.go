// Package orchestrator executes action plans against the ledger under
// policy control.
//
// The ordering contract is strict: a decision record is logged on the
// ledger before any funds move, every action is then attempted
// independently (one action's failure never aborts its siblings), and the
// decision status is settled exactly once after the batch finishes.
package orchestrator

import (
	"errors"
	"time"
)

var (
	ErrEmptyPlan      = errors.New("orchestrator: plan has no actions")
	ErrDecisionFailed = errors.New("orchestrator: decision logging failed")
)

// ActionType distinguishes what an action does with funds.
type ActionType string

const (
	ActionTransfer ActionType = "TRANSFER" // pay an external recipient
	ActionSave     ActionType = "SAVE"     // move funds to the savings vault
)

// Action is one step of an execution plan.
type Action struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	To          string     `json:"to,omitempty"` // unused for SAVE, vault is configured
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Plan is an ordered batch of actions covered by one decision record.
type Plan struct {
	Summary      string   `json:"summary"`
	RationaleRef string   `json:"rationaleRef,omitempty"`
	Actions      []Action `json:"actions"`
}

// AgentLimits bound what the executing agent may move.
type AgentLimits struct {
	MaxPerTransaction string   `json:"maxPerTransaction,omitempty"`
	DailyLimit        string   `json:"dailyLimit,omitempty"`
	Blocklist         []string `json:"blocklist,omitempty"` // substring match on recipients
}

// WalletSnapshot is the balance view taken when the plan was built. Policy
// checks run against the snapshot; the ledger itself is the final arbiter.
type WalletSnapshot struct {
	Address  string `json:"address"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// Context carries the non-plan inputs of one Execute call.
type Context struct {
	UserID     string         `json:"userId"`
	Agent      string         `json:"agent"`
	DecisionID string         `json:"decisionId,omitempty"` // assigned if empty
	Limits     AgentLimits    `json:"limits"`
	Wallet     WalletSnapshot `json:"wallet"`
}

// ActionResult is the outcome of one attempted action.
type ActionResult struct {
	ActionID    string     `json:"actionId"`
	Type        ActionType `json:"type"`
	To          string     `json:"to,omitempty"`
	Amount      string     `json:"amount"`
	Success     bool       `json:"success"`
	TxHash      string     `json:"txHash,omitempty"`
	ExplorerURL string     `json:"explorerUrl,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Result summarizes one Execute call.
type Result struct {
	Success     bool           `json:"success"`
	DecisionID  string         `json:"decisionId"`
	RiskScore   int            `json:"riskScore"`
	TotalAmount string         `json:"totalAmount"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	TxRefs      string         `json:"txRefs,omitempty"` // comma-joined
	Actions     []ActionResult `json:"actions"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"-"`
}
