package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewSentryPayClient(Config{APIURL: ts.URL})
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "invalid_state",
			"message": "Payment is not pending",
		})
	}))
	defer ts.Close()

	client := NewSentryPayClient(Config{APIURL: ts.URL})
	_, err := client.CancelPayment(context.Background(), "pay_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Payment is not pending")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer ts.Close()

	client := NewSentryPayClient(Config{APIURL: ts.URL})
	_, err := client.GetBalance(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_ListPayments_QueryParams(t *testing.T) {
	var gotPath, gotQuery string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"payments":[]}`))
	}))
	defer ts.Close()

	client := NewSentryPayClient(Config{APIURL: ts.URL})
	_, err := client.ListPayments(context.Background(), "user-1", "pending", 5)
	require.NoError(t, err)
	assert.Equal(t, "/v1/users/user-1/payments", gotPath)
	assert.Contains(t, gotQuery, "status=pending")
	assert.Contains(t, gotQuery, "limit=5")
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleSchedulePayment_Success(t *testing.T) {
	var gotBody map[string]any
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/v1/payments", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment": map[string]any{
				"id":            "pay_abc",
				"payee":         "landlord",
				"amount":        "1500",
				"currency":      "USDC",
				"status":        "pending",
				"scheduledDate": "2026-10-01T09:00:00Z",
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleSchedulePayment(context.Background(), makeRequest(map[string]any{
		"user_id":        "user-1",
		"payee":          "landlord",
		"amount":         "1500",
		"scheduled_date": "2026-10-01T09:00:00Z",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "pay_abc")
	assert.Contains(t, text, "1500 USDC to landlord")
	assert.Equal(t, "user-1", gotBody["userId"])
	assert.Equal(t, "landlord", gotBody["payee"])
	_, hasRecurring := gotBody["recurring"]
	assert.False(t, hasRecurring)
}

func TestHandleSchedulePayment_Recurring(t *testing.T) {
	var gotBody map[string]any
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment": map[string]any{
				"id":            "pay_rec",
				"payee":         "gym",
				"amount":        "49.99",
				"currency":      "USDC",
				"scheduledDate": "2026-10-01T09:00:00Z",
				"recurring":     map[string]any{"enabled": true, "frequency": "monthly"},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleSchedulePayment(context.Background(), makeRequest(map[string]any{
		"user_id":        "user-1",
		"payee":          "gym",
		"amount":         "49.99",
		"scheduled_date": "2026-10-01T09:00:00Z",
		"frequency":      "monthly",
		"interval":       float64(1),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Recurring: yes")

	rec, ok := gotBody["recurring"].(map[string]any)
	require.True(t, ok, "expected recurring block in request body")
	assert.Equal(t, "monthly", rec["frequency"])
	assert.Equal(t, true, rec["enabled"])
}

func TestHandleSchedulePayment_MissingFields(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("API should not be called")
	}))
	defer cleanup()

	cases := []map[string]any{
		{"payee": "x", "amount": "1", "scheduled_date": "2026-10-01T09:00:00Z"},
		{"user_id": "u", "amount": "1", "scheduled_date": "2026-10-01T09:00:00Z"},
		{"user_id": "u", "payee": "x", "scheduled_date": "2026-10-01T09:00:00Z"},
		{"user_id": "u", "payee": "x", "amount": "1"},
		{"user_id": "u", "payee": "x", "amount": "1", "scheduled_date": "tomorrow"},
	}
	for _, args := range cases {
		result, err := h.HandleSchedulePayment(context.Background(), makeRequest(args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "args %v should be rejected", args)
	}
}

func TestHandleCancelPayment(t *testing.T) {
	var gotPath string
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "cancelled"})
	}))
	defer cleanup()

	result, err := h.HandleCancelPayment(context.Background(), makeRequest(map[string]any{
		"payment_id": "pay_abc",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "/v1/payments/pay_abc/cancel", gotPath)
	assert.Contains(t, resultText(t, result), "cancelled")
}

func TestHandleCancelPayment_MissingID(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("API should not be called")
	}))
	defer cleanup()

	result, err := h.HandleCancelPayment(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListPayments(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payments": []map[string]any{
				{
					"id": "pay_1", "payee": "landlord", "amount": "1500",
					"currency": "USDC", "status": "pending",
					"scheduledDate": "2026-10-01T09:00:00Z",
				},
				{
					"id": "pay_2", "payee": "gym", "amount": "49.99",
					"currency": "USDC", "status": "failed",
					"scheduledDate": "2026-09-01T09:00:00Z",
					"failureReason": "insufficient balance",
					"recurring":     map[string]any{"enabled": true},
				},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleListPayments(context.Background(), makeRequest(map[string]any{
		"user_id": "user-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 payment(s)")
	assert.Contains(t, text, "pay_1")
	assert.Contains(t, text, "(recurring)")
	assert.Contains(t, text, "insufficient balance")
}

func TestHandleListPayments_Empty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"payments": []map[string]any{}})
	}))
	defer cleanup()

	result, err := h.HandleListPayments(context.Background(), makeRequest(map[string]any{
		"user_id": "user-1",
	}))
	require.NoError(t, err)
	assert.Equal(t, "No payments found.", resultText(t, result))
}

func TestHandleAssessRisk(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/risk/assess", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"check": map[string]any{
				"riskScore":      65,
				"passed":         false,
				"recommendation": "REQUIRE_2FA",
				"flags": []map[string]any{
					{"type": "UNUSUAL_AMOUNT", "severity": "medium", "message": "amount exceeds 3x the user's average"},
					{"type": "NEW_PAYEE", "severity": "low", "message": "first payment to this payee"},
				},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleAssessRisk(context.Background(), makeRequest(map[string]any{
		"user_id": "user-1",
		"payee":   "unknown-merchant",
		"amount":  "5000",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Score: 65 / 100")
	assert.Contains(t, text, "REQUIRE_2FA")
	assert.Contains(t, text, "UNUSUAL_AMOUNT")
	assert.Contains(t, text, "would NOT execute")
}

func TestHandleGetBalance(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/wallet", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address":  "0xABC",
			"balance":  "1234.56",
			"currency": "USDC",
		})
	}))
	defer cleanup()

	result, err := h.HandleGetBalance(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "0xABC")
	assert.Contains(t, text, "1234.56 USDC")
}

func TestHandleGetHistory(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/users/user-1/history", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"history": []map[string]any{
				{
					"payee": "landlord", "amount": "1500", "currency": "USDC",
					"outcome": "completed", "txHash": "0xdeadbeef",
					"createdAt": "2026-08-01T09:00:01Z",
				},
				{
					"payee": "gym", "amount": "49.99", "currency": "USDC",
					"outcome": "failed", "reason": "transfer reverted",
				},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleGetHistory(context.Background(), makeRequest(map[string]any{
		"user_id": "user-1",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "0xdeadbeef")
	assert.Contains(t, text, "transfer reverted")
}

func TestHandleGetHistory_APIDown(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal","message":"database unavailable"}`))
	}))
	defer cleanup()

	result, err := h.HandleGetHistory(context.Background(), makeRequest(map[string]any{
		"user_id": "user-1",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "database unavailable")
}

func TestFormatJSON(t *testing.T) {
	out := formatJSON(json.RawMessage(`{"a":1}`))
	assert.True(t, strings.Contains(out, "\n"), "expected indented output")

	out = formatJSON(json.RawMessage(`not json`))
	assert.Equal(t, "not json", out)
}
