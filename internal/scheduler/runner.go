// Package scheduler drives due scheduled payments through execution.
//
// A periodic tick discovers payments whose scheduled date has passed,
// claims each one with a conditional status transition, and runs the
// claimed payment through the risk engine and the orchestrator. Claiming
// before executing means overlapping ticks, or a tick racing a user
// cancellation, resolve to exactly one winner per payment.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tkaster/sentrypay/internal/history"
	"github.com/tkaster/sentrypay/internal/idgen"
	"github.com/tkaster/sentrypay/internal/logging"
	"github.com/tkaster/sentrypay/internal/orchestrator"
	"github.com/tkaster/sentrypay/internal/payments"
	"github.com/tkaster/sentrypay/internal/risk"
	"github.com/tkaster/sentrypay/internal/syncutil"
	"github.com/tkaster/sentrypay/internal/traces"
)

const (
	// DefaultInterval between due-payment sweeps.
	DefaultInterval = time.Minute
	// DefaultBatchSize bounds how many due payments one tick picks up.
	DefaultBatchSize = 50
	// DefaultWorkers bounds how many payments execute concurrently
	// within one tick.
	DefaultWorkers = 4
)

// RiskChecker scores an upcoming payment. Implemented by risk.Engine.
type RiskChecker interface {
	Assess(ctx context.Context, userID string, tx risk.Transaction) *risk.CheckResult
}

// Executor runs a plan through policy and the ledger. Implemented by
// orchestrator.Service.
type Executor interface {
	Execute(ctx context.Context, plan orchestrator.Plan, ectx orchestrator.Context) (*orchestrator.Result, error)
}

// BalanceProvider supplies the wallet snapshot for policy checks.
type BalanceProvider interface {
	Snapshot(ctx context.Context, userID string) (orchestrator.WalletSnapshot, error)
}

// EventSink receives payment outcomes for fan-out to webhooks and
// realtime subscribers. Implementations must not block.
type EventSink interface {
	PaymentExecuted(p *payments.ScheduledPayment)
	PaymentFailed(p *payments.ScheduledPayment)
}

// Runner is the periodic due-payment worker.
type Runner struct {
	store     payments.Store
	history   history.Store
	risk      RiskChecker
	executor  Executor
	balances  BalanceProvider
	events    EventSink
	agent     string
	limits    orchestrator.AgentLimits
	interval  time.Duration
	batchSize int
	workers   int
	// resumeAfterFailure regenerates a recurring series even when an
	// occurrence fails. Off by default: a failed occurrence halts its
	// series until someone looks at it.
	resumeAfterFailure bool

	locks   syncutil.ShardedMutex
	logger  *slog.Logger
	stop    chan struct{}
	running atomic.Bool
}

// NewRunner creates a scheduler runner with default cadence and bounds.
func NewRunner(store payments.Store, hist history.Store, rc RiskChecker, ex Executor, logger *slog.Logger) *Runner {
	return &Runner{
		store:     store,
		history:   hist,
		risk:      rc,
		executor:  ex,
		agent:     "sentrypay-scheduler",
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		workers:   DefaultWorkers,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

// WithInterval overrides the sweep cadence.
func (r *Runner) WithInterval(d time.Duration) *Runner {
	if d > 0 {
		r.interval = d
	}
	return r
}

// WithBatchSize overrides the per-tick batch bound.
func (r *Runner) WithBatchSize(n int) *Runner {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

// WithWorkers overrides the per-tick concurrency bound.
func (r *Runner) WithWorkers(n int) *Runner {
	if n > 0 {
		r.workers = n
	}
	return r
}

// WithAgent sets the agent identity recorded on decisions.
func (r *Runner) WithAgent(agent string) *Runner {
	if agent != "" {
		r.agent = agent
	}
	return r
}

// WithAgentLimits sets the policy limits applied to every execution.
func (r *Runner) WithAgentLimits(limits orchestrator.AgentLimits) *Runner {
	r.limits = limits
	return r
}

// WithBalanceProvider adds wallet snapshots to policy checks.
func (r *Runner) WithBalanceProvider(bp BalanceProvider) *Runner {
	r.balances = bp
	return r
}

// WithEvents fans payment outcomes out to the given sink.
func (r *Runner) WithEvents(sink EventSink) *Runner {
	r.events = sink
	return r
}

// WithResumeAfterFailure keeps recurring series alive past a failed
// occurrence.
func (r *Runner) WithResumeAfterFailure(resume bool) *Runner {
	r.resumeAfterFailure = resume
	return r
}

// Running reports whether the runner loop is actively running.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Start begins the sweep loop. Call in a goroutine.
func (r *Runner) Start(ctx context.Context) {
	r.running.Store(true)
	defer r.running.Store(false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.safeSweep(ctx)
		}
	}
}

// Stop signals the runner to stop.
func (r *Runner) Stop() {
	select {
	case r.stop <- struct{}{}:
	default:
	}
}

func (r *Runner) safeSweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in scheduler sweep", "panic", fmt.Sprint(rec))
		}
	}()
	r.Sweep(ctx)
}

// Sweep runs one due-payment pass: list, claim, execute. Exported so tests
// and operational tooling can trigger a pass without the timer.
func (r *Runner) Sweep(ctx context.Context) {
	ctx, span := traces.StartSpan(ctx, "scheduler.Sweep")
	defer span.End()

	ticksTotal.Inc()
	now := time.Now()

	due, err := r.store.ListDue(ctx, now, r.batchSize)
	if err != nil {
		r.logger.Warn("failed to list due payments", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	r.logger.Info("due payments found", "count", len(due))

	// Bounded workers; the claim inside processOne keeps overlapping ticks
	// from double-executing a payment even if both ticks list it.
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, p := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(p *payments.ScheduledPayment) {
			defer wg.Done()
			defer func() { <-sem }()
			r.processOne(ctx, p)
		}(p)
	}
	wg.Wait()
}

// processOne claims and executes a single due payment. Any failure is
// absorbed into that payment's terminal state and never escapes the tick.
func (r *Runner) processOne(ctx context.Context, p *payments.ScheduledPayment) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic executing payment", "payment", p.ID, "panic", fmt.Sprint(rec))
			r.failPayment(ctx, p, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	unlock := r.locks.Lock(p.ID)
	defer unlock()

	claimed, err := r.store.Claim(ctx, p.ID)
	if err != nil {
		if errors.Is(err, payments.ErrConflict) {
			// Another tick or a cancellation got there first.
			claimsTotal.WithLabelValues("conflict").Inc()
			return
		}
		r.logger.Warn("failed to claim payment", "payment", p.ID, "error", err)
		return
	}
	claimsTotal.WithLabelValues("claimed").Inc()

	r.execute(ctx, claimed)
}

func (r *Runner) execute(ctx context.Context, p *payments.ScheduledPayment) {
	ctx, span := traces.StartSpan(ctx, "scheduler.execute",
		traces.PaymentID(p.ID),
		traces.UserID(p.UserID),
		traces.Amount(p.Amount),
	)
	defer span.End()

	check := r.risk.Assess(ctx, p.UserID, risk.Transaction{
		ID:       p.ID,
		Payee:    p.Payee,
		Amount:   p.Amount,
		Currency: p.Currency,
		At:       time.Now(),
	})
	if !check.Passed {
		// An unattended scheduler cannot satisfy 2FA; anything the risk
		// engine does not wave through fails this occurrence.
		r.failPayment(ctx, p, fmt.Sprintf("risk check failed: %s (score %d)", check.Recommendation, check.RiskScore))
		return
	}

	var snapshot orchestrator.WalletSnapshot
	if r.balances != nil {
		snap, err := r.balances.Snapshot(ctx, p.UserID)
		if err != nil {
			r.logger.Warn("wallet snapshot unavailable", "payment", p.ID, "error", err)
		} else {
			snapshot = snap
		}
	}

	plan := orchestrator.Plan{
		Summary: fmt.Sprintf("scheduled payment %s: %s %s to %s", p.ID, p.Amount, p.Currency, p.Payee),
		Actions: []orchestrator.Action{{
			ID:          p.ID,
			Type:        orchestrator.ActionTransfer,
			To:          p.Payee,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Description: p.Description,
		}},
	}
	ectx := orchestrator.Context{
		UserID: p.UserID,
		Agent:  r.agent,
		Limits: r.limits,
		Wallet: snapshot,
	}

	result, err := r.executor.Execute(ctx, plan, ectx)
	if err != nil {
		r.failPayment(ctx, p, fmt.Sprintf("execution failed: %v", err))
		return
	}
	if !result.Success {
		reason := result.Error
		if reason == "" && len(result.Actions) > 0 {
			reason = result.Actions[0].Error
		}
		r.failPayment(ctx, p, reason)
		return
	}

	r.completePayment(ctx, p, result)
}

func (r *Runner) completePayment(ctx context.Context, p *payments.ScheduledPayment, result *orchestrator.Result) {
	now := time.Now()
	p.Status = payments.StatusCompleted
	p.ExecutedAt = &now
	p.UpdatedAt = now
	if len(result.Actions) > 0 {
		p.TxHash = result.Actions[0].TxHash
		p.ExplorerURL = result.Actions[0].ExplorerURL
	}

	if err := r.store.Update(ctx, p); err != nil {
		r.logger.Error("payment executed but status update failed",
			"payment", p.ID, "tx", p.TxHash, "error", err)
	}

	r.appendHistory(ctx, p, history.OutcomeCompleted, "")
	executionsTotal.WithLabelValues("completed").Inc()
	if r.events != nil {
		r.events.PaymentExecuted(p)
	}

	logging.L(ctx).Info("payment completed",
		"payment", p.ID, "user", p.UserID, "amount", p.Amount, "tx", p.TxHash)

	r.regenerate(ctx, p)
}

func (r *Runner) failPayment(ctx context.Context, p *payments.ScheduledPayment, reason string) {
	now := time.Now()
	p.Status = payments.StatusFailed
	p.FailureReason = reason
	p.UpdatedAt = now

	if err := r.store.Update(ctx, p); err != nil {
		r.logger.Error("failed to mark payment failed", "payment", p.ID, "error", err)
	}

	r.appendHistory(ctx, p, history.OutcomeFailed, reason)
	executionsTotal.WithLabelValues("failed").Inc()
	if r.events != nil {
		r.events.PaymentFailed(p)
	}

	logging.L(ctx).Warn("payment failed",
		"payment", p.ID, "user", p.UserID, "amount", p.Amount, "reason", reason)

	if r.resumeAfterFailure {
		r.regenerate(ctx, p)
	}
}

// regenerate creates the next occurrence of a recurring series.
func (r *Runner) regenerate(ctx context.Context, p *payments.ScheduledPayment) {
	successor := payments.Successor(p)
	if successor == nil {
		return
	}

	if err := r.store.Create(ctx, successor); err != nil {
		r.logger.Error("failed to create recurring successor",
			"payment", p.ID, "error", err)
		return
	}

	successorsTotal.Inc()
	logging.L(ctx).Info("recurring payment regenerated",
		"payment", p.ID, "successor", successor.ID, "due", successor.ScheduledDate)
}

func (r *Runner) appendHistory(ctx context.Context, p *payments.ScheduledPayment, outcome, reason string) {
	rec := &history.Record{
		ID:        idgen.WithPrefix("hist_"),
		UserID:    p.UserID,
		PaymentID: p.ID,
		Payee:     p.Payee,
		Amount:    p.Amount,
		Currency:  p.Currency,
		TxHash:    p.TxHash,
		Outcome:   outcome,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := r.history.Append(ctx, rec); err != nil {
		r.logger.Warn("failed to append history record", "payment", p.ID, "error", err)
	}
}
