package risk

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tkaster/sentrypay/internal/validation"
)

// Handler provides HTTP endpoints for risk operations.
type Handler struct {
	engine *Engine
}

// NewHandler creates a new risk handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes sets up risk routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/risk/assess", h.Assess)
	r.GET("/users/:id/risk/checks", h.ListChecks)
	r.GET("/users/:id/risk/alerts", h.ListAlerts)
	r.PUT("/users/:id/risk/limits", h.SetLimits)
}

// AssessRequest is the body for POST /v1/risk/assess.
type AssessRequest struct {
	UserID        string `json:"userId" binding:"required"`
	TransactionID string `json:"transactionId"`
	Payee         string `json:"payee" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	Currency      string `json:"currency"`
}

// Assess handles POST /v1/risk/assess
func (h *Handler) Assess(c *gin.Context) {
	var req AssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAddress("payee", req.Payee),
		validation.ValidAmount("amount", req.Amount),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	result := h.engine.Assess(c.Request.Context(), req.UserID, Transaction{
		ID:       req.TransactionID,
		Payee:    req.Payee,
		Amount:   req.Amount,
		Currency: req.Currency,
	})

	status := http.StatusOK
	if result.Recommendation == RecommendationError {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"check": result})
}

// ListChecks handles GET /v1/users/:id/risk/checks
func (h *Handler) ListChecks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	checks, err := h.engine.ListChecks(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list risk checks",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checks": checks, "count": len(checks)})
}

// ListAlerts handles GET /v1/users/:id/risk/alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	alerts, err := h.engine.ListAlerts(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list alerts",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// SetLimits handles PUT /v1/users/:id/risk/limits
func (h *Handler) SetLimits(c *gin.Context) {
	var limits Limits
	if err := c.ShouldBindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if err := h.engine.SetLimits(c.Request.Context(), c.Param("id"), limits); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "limits_failed",
			"message": "Failed to store limit overrides",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"limits": limits.Normalize()})
}
