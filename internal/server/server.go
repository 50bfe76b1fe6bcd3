// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/tkaster/sentrypay/internal/config"
	"github.com/tkaster/sentrypay/internal/health"
	"github.com/tkaster/sentrypay/internal/history"
	"github.com/tkaster/sentrypay/internal/ledger"
	"github.com/tkaster/sentrypay/internal/logging"
	"github.com/tkaster/sentrypay/internal/metrics"
	"github.com/tkaster/sentrypay/internal/money"
	"github.com/tkaster/sentrypay/internal/notify"
	"github.com/tkaster/sentrypay/internal/orchestrator"
	"github.com/tkaster/sentrypay/internal/pagination"
	"github.com/tkaster/sentrypay/internal/payments"
	"github.com/tkaster/sentrypay/internal/ratelimit"
	"github.com/tkaster/sentrypay/internal/rates"
	"github.com/tkaster/sentrypay/internal/realtime"
	"github.com/tkaster/sentrypay/internal/risk"
	"github.com/tkaster/sentrypay/internal/scheduler"
	"github.com/tkaster/sentrypay/internal/security"
	"github.com/tkaster/sentrypay/internal/validation"
	"github.com/tkaster/sentrypay/internal/wallet"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	ledger        ledger.Client
	paymentsStore payments.Store
	historyStore  history.Store
	paymentsSvc   *payments.Service
	riskEngine    *risk.Engine
	executor      *orchestrator.Service
	wallet        *wallet.Provider
	rates         *rates.Oracle
	webhook       *notify.Webhook
	runner        *scheduler.Runner
	reminders     *scheduler.ReminderTimer
	realtimeHub   *realtime.Hub
	rateLimiter   *ratelimit.Limiter
	healthReg     *health.Registry
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLedger sets a custom ledger client (for testing)
func WithLedger(lc ledger.Client) Option {
	return func(s *Server) {
		s.ledger = lc
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set ledger/logger)
	for _, opt := range opts {
		opt(s)
	}

	var riskStore risk.Store

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.paymentsStore = payments.NewPostgresStore(db)
		s.historyStore = history.NewPostgresStore(db)
		riskStore = risk.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		s.paymentsStore = payments.NewMemoryStore()
		s.historyStore = history.NewMemoryStore()
		riskStore = risk.NewMemoryStore()
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	// Ledger client if not injected: real chain when a key is configured,
	// simulated otherwise
	if s.ledger == nil {
		if cfg.UseSimLedger() {
			s.ledger = ledger.NewSim(cfg.WalletAddress, logging.Component(s.logger, "ledger"))
			s.logger.Info("using simulated ledger (no private key configured)")
		} else {
			lc, err := ledger.NewEth(ledger.Config{
				RPCURL:           cfg.RPCURL,
				PrivateKey:       cfg.PrivateKey,
				ChainID:          cfg.ChainID,
				USDCContract:     cfg.USDCContract,
				DecisionRegistry: cfg.DecisionRegistry,
				ExplorerBaseURL:  cfg.ExplorerBaseURL,
			}, logging.Component(s.logger, "ledger"))
			if err != nil {
				return nil, fmt.Errorf("failed to create ledger client: %w", err)
			}
			s.ledger = lc
			s.logger.Info("on-chain ledger enabled", "wallet", lc.Address(), "chainId", cfg.ChainID)
		}
	}

	// Webhook notifier (no-op when WEBHOOK_URL unset)
	webhookURL := cfg.WebhookURL
	if webhookURL != "" && cfg.IsProduction() {
		// Operator-supplied URL reaches out from inside the network; refuse
		// loopback and private targets.
		if err := security.ValidateEndpointURL(webhookURL); err != nil {
			s.logger.Warn("webhook URL rejected, notifications disabled", "error", err)
			webhookURL = ""
		}
	}
	s.webhook = notify.NewWebhook(webhookURL, cfg.WebhookSecret, logging.Component(s.logger, "notify"))
	if s.webhook.Enabled() {
		s.logger.Info("webhook notifications enabled")
	}

	// Risk engine over payment history
	s.riskEngine = risk.NewEngine(s.historyStore, riskStore, logging.Component(s.logger, "risk"))
	if s.webhook.Enabled() {
		s.riskEngine = s.riskEngine.WithNotifier(s.webhook)
	}

	// Execution orchestrator against the ledger
	s.executor = orchestrator.NewService(s.ledger).
		WithExplorerBase(cfg.ExplorerBaseURL).
		WithLedgerTimeout(cfg.LedgerTimeout)

	// Wallet snapshots with TTL caching
	s.wallet = wallet.NewProvider(s.ledger)

	// Exchange rates
	s.rates = rates.New(cfg.RatesURL, cfg.RatesTTL)

	// Payment service
	s.paymentsSvc = payments.NewService(s.paymentsStore)

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(logging.Component(s.logger, "realtime"))

	// Scheduler: due-payment runner plus daily reminder timer
	s.runner = scheduler.NewRunner(s.paymentsStore, s.historyStore, s.riskEngine, s.executor, logging.Component(s.logger, "scheduler")).
		WithInterval(cfg.SchedulerInterval).
		WithBatchSize(cfg.SchedulerBatchSize).
		WithWorkers(cfg.SchedulerWorkers).
		WithAgent(cfg.AgentID).
		WithBalanceProvider(s.wallet).
		WithResumeAfterFailure(cfg.ResumeAfterFailure).
		WithEvents(&eventFanout{webhook: s.webhook, hub: s.realtimeHub})
	s.reminders = scheduler.NewReminderTimer(s.paymentsStore, s.webhook, logging.Component(s.logger, "scheduler")).
		WithInterval(cfg.ReminderInterval)

	// Health checks
	s.healthReg = health.NewRegistry()
	if s.db != nil {
		s.healthReg.Register("database", health.DBChecker(s.db))
	}
	s.healthReg.Register("ledger", health.LedgerChecker(s.ledger))

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	s.rateLimiter = ratelimit.New(ratelimit.DefaultConfig())
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info endpoints
	s.router.GET("/", s.infoHandler)
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// Payment scheduling
	payments.NewHandler(s.paymentsSvc).RegisterRoutes(v1)

	// Risk assessment
	risk.NewHandler(s.riskEngine).RegisterRoutes(v1)

	// Execution
	v1.POST("/execute", s.executeHandler)
	v1.GET("/decisions/:id", s.getDecisionHandler)

	// Payment history
	v1.GET("/users/:id/history", s.historyHandler)

	// Wallet & rates
	v1.GET("/wallet", s.walletInfoHandler)
	v1.GET("/rates", s.ratesHandler)

	// Scheduler operations
	v1.GET("/scheduler/status", s.schedulerStatusHandler)
	v1.POST("/scheduler/sweep", s.schedulerSweepHandler)

	// WebSocket for real-time payment events
	v1.GET("/ws/payments", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})
	v1.GET("/ws/stats", s.realtimeStatsHandler)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   "0.1.0",
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "SentryPay",
		"description": "Crypto payment assistant backend: scheduling, risk screening, execution",
		"version":     "0.1.0",
		"currency":    payments.DefaultCurrency,
		"chainId":     s.cfg.ChainID,
	})
}

func (s *Server) walletInfoHandler(c *gin.Context) {
	ctx := c.Request.Context()

	balance, err := s.wallet.Balance(ctx)
	if err != nil {
		logging.L(ctx).Error("failed to get balance", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "balance_error",
			"message": "Failed to retrieve wallet balance",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":  s.ledger.Address(),
		"balance":  balance,
		"currency": payments.DefaultCurrency,
		"chainId":  s.cfg.ChainID,
	})
}

func (s *Server) ratesHandler(c *gin.Context) {
	currency := c.DefaultQuery("currency", payments.DefaultCurrency)
	rate := s.rates.USDRate(c.Request.Context(), currency)
	if rate <= 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "unknown_currency",
			"message": "No USD rate available for " + currency,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"currency": currency,
		"usd":      rate,
	})
}

// ExecuteRequest is the body for POST /v1/execute.
type ExecuteRequest struct {
	UserID string                   `json:"userId" binding:"required"`
	Plan   orchestrator.Plan        `json:"plan" binding:"required"`
	Limits orchestrator.AgentLimits `json:"limits"`
}

func (s *Server) executeHandler(c *gin.Context) {
	ctx := c.Request.Context()

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	var snapshot orchestrator.WalletSnapshot
	if snap, err := s.wallet.Snapshot(ctx, req.UserID); err == nil {
		snapshot = snap
	}

	result, err := s.executor.Execute(ctx, req.Plan, orchestrator.Context{
		UserID: req.UserID,
		Agent:  s.cfg.AgentID,
		Limits: req.Limits,
		Wallet: snapshot,
	})
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyPlan) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "empty_plan",
				"message": "Plan must contain at least one action",
			})
			return
		}
		// Decision logging failed: nothing moved, the batch was aborted.
		logging.L(ctx).Error("execution aborted", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "execution_aborted",
			"message": "Decision could not be recorded; no funds were moved",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (s *Server) getDecisionHandler(c *gin.Context) {
	rec, err := s.ledger.GetDecision(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrDecisionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Decision not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load decision",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": rec})
}

func (s *Server) historyHandler(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("id")

	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	limit = pagination.ClampLimit(limit, 50, 200)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Malformed pagination cursor",
		})
		return
	}

	// Fetch one extra row to learn whether another page exists.
	var records []*history.Record
	if cursor != nil {
		records, err = s.historyStore.ListBefore(ctx, userID, cursor.CreatedAt, cursor.ID, limit+1)
	} else {
		records, err = s.historyStore.ListRecent(ctx, userID, limit+1)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load payment history",
		})
		return
	}

	page, next, hasMore := pagination.ComputePage(records, limit, func(r *history.Record) (time.Time, string) {
		return r.CreatedAt, r.ID
	})
	resp := gin.H{"history": page, "count": len(page), "hasMore": hasMore}
	if next != "" {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) schedulerStatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"runner": gin.H{
			"running":  s.runner.Running(),
			"interval": s.cfg.SchedulerInterval.String(),
			"batch":    s.cfg.SchedulerBatchSize,
			"workers":  s.cfg.SchedulerWorkers,
		},
		"reminders": gin.H{
			"running":  s.reminders.Running(),
			"interval": s.cfg.ReminderInterval.String(),
		},
	})
}

// schedulerSweepHandler triggers one due-payment pass outside the timer.
// Operational escape hatch for catching up after downtime.
func (s *Server) schedulerSweepHandler(c *gin.Context) {
	s.runner.Sweep(c.Request.Context())
	c.JSON(http.StatusAccepted, gin.H{"status": "sweep completed"})
}

func (s *Server) realtimeStatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.realtimeHub.Stats())
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"wallet", s.ledger.Address(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start the due-payment runner and reminder timer
	go s.runner.Start(runCtx)
	go s.reminders.Start(runCtx)

	// Sample DB pool stats into gauges
	if s.db != nil {
		go metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, runner, timers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	time.Sleep(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	// Stop the scheduler loops
	s.runner.Stop()
	s.reminders.Stop()
	s.logger.Info("scheduler stopped")

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close ledger connection
	if err := s.ledger.Close(); err != nil {
		s.logger.Error("ledger close error", "error", err)
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return n, nil
}

// eventFanout routes scheduler payment outcomes to webhooks and the
// realtime hub.
type eventFanout struct {
	webhook *notify.Webhook
	hub     *realtime.Hub
}

func (e *eventFanout) PaymentExecuted(p *payments.ScheduledPayment) {
	if e.webhook != nil {
		e.webhook.PaymentExecuted(p)
	}
	if e.hub != nil {
		e.hub.BroadcastPayment(realtime.EventPaymentExecuted, paymentEventData(p))
	}
}

func (e *eventFanout) PaymentFailed(p *payments.ScheduledPayment) {
	if e.webhook != nil {
		e.webhook.PaymentFailed(p)
	}
	if e.hub != nil {
		e.hub.BroadcastPayment(realtime.EventPaymentFailed, paymentEventData(p))
	}
}

func paymentEventData(p *payments.ScheduledPayment) map[string]interface{} {
	return map[string]interface{}{
		"id":       p.ID,
		"userId":   p.UserID,
		"payee":    p.Payee,
		"amount":   money.Float64(p.Amount),
		"currency": p.Currency,
		"status":   string(p.Status),
		"txHash":   p.TxHash,
	}
}
