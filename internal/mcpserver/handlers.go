package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SentryPayClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SentryPayClient) *Handlers {
	return &Handlers{client: client}
}

// HandleSchedulePayment schedules a one-off or recurring payment.
func (h *Handlers) HandleSchedulePayment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	payee := req.GetString("payee", "")
	if payee == "" {
		return mcp.NewToolResultError("payee is required"), nil
	}
	amount := req.GetString("amount", "")
	if amount == "" {
		return mcp.NewToolResultError("amount is required"), nil
	}
	scheduledDate := req.GetString("scheduled_date", "")
	if scheduledDate == "" {
		return mcp.NewToolResultError("scheduled_date is required"), nil
	}
	if _, err := time.Parse(time.RFC3339, scheduledDate); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scheduled_date must be RFC3339: %v", err)), nil
	}

	body := map[string]any{
		"userId":        userID,
		"payee":         payee,
		"amount":        amount,
		"scheduledDate": scheduledDate,
	}
	if v := req.GetString("currency", ""); v != "" {
		body["currency"] = v
	}
	if v := req.GetString("description", ""); v != "" {
		body["description"] = v
	}
	if freq := req.GetString("frequency", ""); freq != "" {
		recurring := map[string]any{
			"enabled":   true,
			"frequency": freq,
		}
		if n := req.GetInt("interval", 0); n > 0 {
			recurring["interval"] = n
		}
		if end := req.GetString("end_date", ""); end != "" {
			if _, err := time.Parse(time.RFC3339, end); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("end_date must be RFC3339: %v", err)), nil
			}
			recurring["endDate"] = end
		}
		body["recurring"] = recurring
	}

	raw, err := h.client.SchedulePayment(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to schedule payment: %v", err)), nil
	}

	p, err := extractPayment(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse payment: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Payment scheduled.\n")
	fmt.Fprintf(&sb, "  ID: %s\n", p.ID)
	fmt.Fprintf(&sb, "  Amount: %s %s to %s\n", p.Amount, p.Currency, p.Payee)
	fmt.Fprintf(&sb, "  Due: %s\n", p.ScheduledDate)
	if p.Recurring {
		sb.WriteString("  Recurring: yes (the next occurrence is created automatically)\n")
	}
	sb.WriteString("\nThe payment runs through a fraud-risk check before executing. Use cancel_payment with this ID to cancel.")

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCancelPayment cancels a scheduled payment.
func (h *Handlers) HandleCancelPayment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paymentID := req.GetString("payment_id", "")
	if paymentID == "" {
		return mcp.NewToolResultError("payment_id is required"), nil
	}

	_, err := h.client.CancelPayment(ctx, paymentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to cancel payment: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Payment %s cancelled. No funds will move for this payment.", paymentID)), nil
}

// HandleListPayments lists a user's scheduled payments.
func (h *Handlers) HandleListPayments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	status := req.GetString("status", "")
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListPayments(ctx, userID, status, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list payments: %v", err)), nil
	}

	text, err := formatPaymentList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse payments: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleAssessRisk runs a risk assessment without executing anything.
func (h *Handlers) HandleAssessRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	payee := req.GetString("payee", "")
	if payee == "" {
		return mcp.NewToolResultError("payee is required"), nil
	}
	amount := req.GetString("amount", "")
	if amount == "" {
		return mcp.NewToolResultError("amount is required"), nil
	}

	body := map[string]any{
		"userId": userID,
		"payee":  payee,
		"amount": amount,
	}
	if v := req.GetString("currency", ""); v != "" {
		body["currency"] = v
	}

	raw, err := h.client.AssessRisk(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Risk assessment failed: %v", err)), nil
	}

	text, err := formatRiskCheck(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse risk check: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetBalance returns the platform wallet balance.
func (h *Handlers) HandleGetBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetBalance(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check balance: %v", err)), nil
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse balance: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Wallet:\n")
	fmt.Fprintf(&sb, "  Address: %s\n", getString(resp, "address"))
	fmt.Fprintf(&sb, "  Balance: %s %s\n", getString(resp, "balance"), getString(resp, "currency"))

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetHistory lists a user's executed payment history.
func (h *Handlers) HandleGetHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := req.GetInt("limit", 20)

	raw, err := h.client.GetHistory(ctx, userID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch history: %v", err)), nil
	}

	text, err := formatHistory(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse history: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

type paymentInfo struct {
	ID            string
	Payee         string
	Amount        string
	Currency      string
	Description   string
	Status        string
	ScheduledDate string
	Recurring     bool
	TxHash        string
	FailureReason string
}

func extractPayment(raw json.RawMessage) (paymentInfo, error) {
	var resp struct {
		Payment map[string]any `json:"payment"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Payment == nil {
		return paymentInfo{}, fmt.Errorf("no payment in response: %s", string(raw))
	}
	return parsePayment(resp.Payment), nil
}

func parsePayment(m map[string]any) paymentInfo {
	p := paymentInfo{
		ID:            getString(m, "id"),
		Payee:         getString(m, "payee"),
		Amount:        getString(m, "amount"),
		Currency:      getString(m, "currency"),
		Description:   getString(m, "description"),
		Status:        getString(m, "status"),
		ScheduledDate: getString(m, "scheduledDate"),
		TxHash:        getString(m, "txHash"),
		FailureReason: getString(m, "failureReason"),
	}
	if rec, ok := m["recurring"].(map[string]any); ok {
		if enabled, ok := rec["enabled"].(bool); ok {
			p.Recurring = enabled
		}
	}
	return p
}

func formatPaymentList(raw json.RawMessage) (string, error) {
	var resp struct {
		Payments []map[string]any `json:"payments"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected payments response format")
	}
	if len(resp.Payments) == 0 {
		return "No payments found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d payment(s):\n\n", len(resp.Payments))
	for i, m := range resp.Payments {
		p := parsePayment(m)
		fmt.Fprintf(&sb, "%d. %s — %s %s to %s [%s]\n", i+1, p.ID, p.Amount, p.Currency, p.Payee, p.Status)
		if p.Description != "" {
			fmt.Fprintf(&sb, "   %s\n", p.Description)
		}
		fmt.Fprintf(&sb, "   Due: %s", p.ScheduledDate)
		if p.Recurring {
			sb.WriteString(" (recurring)")
		}
		sb.WriteString("\n")
		if p.FailureReason != "" {
			fmt.Fprintf(&sb, "   Failed: %s\n", p.FailureReason)
		}
	}
	return sb.String(), nil
}

func formatRiskCheck(raw json.RawMessage) (string, error) {
	var resp struct {
		Check map[string]any `json:"check"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Check == nil {
		return "", fmt.Errorf("no check in response: %s", string(raw))
	}
	m := resp.Check

	var sb strings.Builder
	sb.WriteString("Risk Assessment:\n")
	if score, ok := getFloat(m, "riskScore"); ok {
		fmt.Fprintf(&sb, "  Score: %.0f / 100\n", score)
	}
	fmt.Fprintf(&sb, "  Recommendation: %s\n", getString(m, "recommendation"))
	if passed, ok := m["passed"].(bool); ok {
		if passed {
			sb.WriteString("  Verdict: approved for automatic execution\n")
		} else {
			sb.WriteString("  Verdict: would NOT execute automatically\n")
		}
	}

	if flags, ok := m["flags"].([]any); ok && len(flags) > 0 {
		sb.WriteString("  Flags:\n")
		for _, f := range flags {
			fm, ok := f.(map[string]any)
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "    - %s: %s\n", getString(fm, "type"), getString(fm, "message"))
		}
	}

	return sb.String(), nil
}

func formatHistory(raw json.RawMessage) (string, error) {
	var resp struct {
		History []map[string]any `json:"history"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected history response format")
	}
	if len(resp.History) == 0 {
		return "No payment history found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Last %d payment(s):\n\n", len(resp.History))
	for i, m := range resp.History {
		fmt.Fprintf(&sb, "%d. %s %s to %s [%s]\n",
			i+1, getString(m, "amount"), getString(m, "currency"),
			getString(m, "payee"), getString(m, "outcome"))
		if v := getString(m, "txHash"); v != "" {
			fmt.Fprintf(&sb, "   Tx: %s\n", v)
		}
		if v := getString(m, "reason"); v != "" {
			fmt.Fprintf(&sb, "   Reason: %s\n", v)
		}
		if v := getString(m, "createdAt"); v != "" {
			fmt.Fprintf(&sb, "   At: %s\n", v)
		}
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
