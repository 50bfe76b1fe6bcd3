package payments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tkaster/sentrypay/internal/validation"
)

// Handler provides HTTP endpoints for scheduled payments.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up scheduled-payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments", h.SchedulePayment)
	r.GET("/payments/:id", h.GetPayment)
	r.POST("/payments/:id/cancel", h.CancelPayment)
	r.GET("/users/:id/payments", h.ListPayments)
}

// SchedulePayment handles POST /v1/payments
func (h *Handler) SchedulePayment(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAmount("amount", req.Amount),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	payment, err := h.service.Schedule(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		code := "schedule_failed"
		msg := "Failed to schedule payment"
		if errors.Is(err, ErrInvalidAmount) {
			status = http.StatusBadRequest
			code = "invalid_amount"
			msg = err.Error()
		}
		c.JSON(status, gin.H{"error": code, "message": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

// GetPayment handles GET /v1/payments/:id
func (h *Handler) GetPayment(c *gin.Context) {
	payment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Payment not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "lookup_failed",
			"message": "Failed to load payment",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// CancelPayment handles POST /v1/payments/:id/cancel
//
// A payment already claimed by the scheduler (or already terminal) cannot be
// cancelled; that race surfaces as 409.
func (h *Handler) CancelPayment(c *gin.Context) {
	payment, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Payment not found",
			})
		case errors.Is(err, ErrConflict):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "conflict",
				"message": "Payment is no longer in the scheduled state",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "cancel_failed",
				"message": "Failed to cancel payment",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

// ListPayments handles GET /v1/users/:id/payments?status=&limit=
func (h *Handler) ListPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	status := Status(c.Query("status"))

	list, err := h.service.ListByUser(c.Request.Context(), c.Param("id"), status, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "list_failed",
			"message": "Failed to list payments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": list,
		"count":    len(list),
	})
}
