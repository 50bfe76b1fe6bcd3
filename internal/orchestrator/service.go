package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/tkaster/sentrypay/internal/ledger"
	"github.com/tkaster/sentrypay/internal/logging"
	"github.com/tkaster/sentrypay/internal/money"
	"github.com/tkaster/sentrypay/internal/traces"
)

// DefaultLedgerTimeout bounds individual ledger calls. A timed-out decision
// log aborts the batch; a timed-out transfer fails only that action.
const DefaultLedgerTimeout = 30 * time.Second

// Service executes action plans against the ledger.
type Service struct {
	ledger        ledger.Client
	savingsVault  string
	explorerBase  string
	ledgerTimeout time.Duration
}

// NewService creates a new execution orchestrator.
func NewService(lc ledger.Client) *Service {
	return &Service{
		ledger:        lc,
		ledgerTimeout: DefaultLedgerTimeout,
	}
}

// WithSavingsVault sets the destination address for SAVE actions.
func (s *Service) WithSavingsVault(addr string) *Service {
	s.savingsVault = addr
	return s
}

// WithExplorerBase sets the block-explorer base URL for tx links.
func (s *Service) WithExplorerBase(url string) *Service {
	s.explorerBase = strings.TrimRight(url, "/")
	return s
}

// WithLedgerTimeout overrides the per-call ledger timeout.
func (s *Service) WithLedgerTimeout(d time.Duration) *Service {
	if d > 0 {
		s.ledgerTimeout = d
	}
	return s
}

// Execute runs a plan: log the decision, attempt every action, settle the
// decision status. The returned Result is always populated; the error is
// non-nil only when nothing was executed (empty plan or decision logging
// failure).
func (s *Service) Execute(ctx context.Context, plan Plan, ectx Context) (_ *Result, retErr error) {
	ctx, span := traces.StartSpan(ctx, "orchestrator.Execute",
		traces.UserID(ectx.UserID),
	)
	defer func() {
		if retErr != nil {
			span.RecordError(retErr)
			span.SetStatus(codes.Error, retErr.Error())
		}
		span.End()
	}()

	start := time.Now()
	if len(plan.Actions) == 0 {
		return &Result{Success: false, Error: ErrEmptyPlan.Error()}, ErrEmptyPlan
	}

	total := "0"
	for _, a := range plan.Actions {
		total = money.Add(total, a.Amount)
	}
	score := preTradeScore(total, ectx.Wallet, ectx.Limits)

	// Decision before any transfer. A failure here is fatal to the batch:
	// no unaudited funds movement.
	decision, err := s.logDecision(ctx, plan, ectx, total, score)
	if err != nil {
		executionsTotal.WithLabelValues("decision_failed").Inc()
		result := &Result{
			Success:     false,
			RiskScore:   score,
			TotalAmount: total,
			Error:       fmt.Sprintf("decision logging failed: %v", err),
			Duration:    time.Since(start),
		}
		return result, fmt.Errorf("%w: %v", ErrDecisionFailed, err)
	}

	result := &Result{
		DecisionID:  decision.ID,
		RiskScore:   score,
		TotalAmount: total,
		Actions:     make([]ActionResult, 0, len(plan.Actions)),
	}

	var txRefs []string
	for _, action := range plan.Actions {
		ar := s.executeAction(ctx, action, ectx)
		if ar.Success {
			result.Succeeded++
			if ar.TxHash != "" {
				txRefs = append(txRefs, ar.TxHash)
			}
		} else {
			result.Failed++
		}
		result.Actions = append(result.Actions, ar)
	}

	result.TxRefs = strings.Join(txRefs, ",")
	result.Success = result.Failed == 0

	status := ledger.DecisionExecuted
	if !result.Success {
		status = ledger.DecisionFailed
	}

	// Settled exactly once. Transfers already happened; a failure here is
	// metadata loss, not a rollback.
	if err := s.updateDecision(ctx, decision.ID, status, result.TxRefs); err != nil {
		decisionUpdateFailures.Inc()
		logging.L(ctx).Warn("decision status update failed",
			"decision", decision.ID, "status", string(status), "error", err)
	}

	result.Duration = time.Since(start)
	if result.Success {
		executionsTotal.WithLabelValues("executed").Inc()
	} else {
		executionsTotal.WithLabelValues("failed").Inc()
	}
	executionDuration.Observe(result.Duration.Seconds())

	logging.L(ctx).Info("plan executed",
		"decision", decision.ID, "user", ectx.UserID,
		"succeeded", result.Succeeded, "failed", result.Failed, "total", total)
	return result, nil
}

// executeAction runs one action through policy and the ledger. Failures are
// captured in the result, never propagated, so sibling actions proceed.
func (s *Service) executeAction(ctx context.Context, action Action, ectx Context) ActionResult {
	ar := ActionResult{
		ActionID: action.ID,
		Type:     action.Type,
		To:       action.To,
		Amount:   action.Amount,
	}

	target := action.To
	if action.Type == ActionSave {
		if s.savingsVault == "" {
			ar.Error = "no savings vault configured"
			actionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
			return ar
		}
		target = s.savingsVault
		ar.To = target
	}

	if reason := checkPolicy(action, target, ectx); reason != "" {
		ar.Error = "policy violation: " + reason
		actionsTotal.WithLabelValues(string(action.Type), "policy_violation").Inc()
		logging.L(ctx).Warn("action blocked by policy",
			"action", action.ID, "user", ectx.UserID, "reason", reason)
		return ar
	}

	callCtx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	transfer, err := s.ledger.Transfer(callCtx, target, action.Amount)
	if err != nil {
		ar.Error = err.Error()
		actionsTotal.WithLabelValues(string(action.Type), "failed").Inc()
		return ar
	}

	ar.Success = true
	ar.TxHash = transfer.TxHash
	if s.explorerBase != "" {
		ar.ExplorerURL = s.explorerBase + "/tx/" + transfer.TxHash
	}
	actionsTotal.WithLabelValues(string(action.Type), "succeeded").Inc()
	return ar
}

func (s *Service) logDecision(ctx context.Context, plan Plan, ectx Context, total string, score int) (*ledger.DecisionRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()

	summary := plan.Summary
	if summary == "" {
		summary = fmt.Sprintf("%d actions totaling %s", len(plan.Actions), total)
	}

	return s.ledger.LogDecision(callCtx, &ledger.DecisionRecord{
		ID:            ectx.DecisionID,
		Agent:         ectx.Agent,
		ActionSummary: summary,
		RationaleRef:  plan.RationaleRef,
		Amount:        total,
		RiskScore:     score,
	})
}

func (s *Service) updateDecision(ctx context.Context, id string, status ledger.DecisionStatus, txRefs string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.ledgerTimeout)
	defer cancel()
	return s.ledger.UpdateDecisionStatus(callCtx, id, status, txRefs)
}
