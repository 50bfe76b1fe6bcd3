package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tkaster/sentrypay/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (simulated ledger)
func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		ChainID:            84532,
		WalletAddress:      "0x0000000000000000000000000000000000000001",
		USDCContract:       "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		ExplorerBaseURL:    "https://sepolia.basescan.org",
		LedgerTimeout:      config.DefaultLedgerTimeout,
		SchedulerInterval:  time.Minute,
		SchedulerBatchSize: 10,
		SchedulerWorkers:   2,
		ReminderInterval:   24 * time.Hour,
		AgentID:            "sentrypay-test",
		RatesURL:           "http://127.0.0.1:0",
		RatesTTL:           time.Minute,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"POST:/v1/payments",
		"GET:/v1/payments/:id",
		"POST:/v1/payments/:id/cancel",
		"GET:/v1/users/:id/payments",
		"POST:/v1/risk/assess",
		"GET:/v1/users/:id/risk/checks",
		"PUT:/v1/users/:id/risk/limits",
		"POST:/v1/execute",
		"GET:/v1/decisions/:id",
		"GET:/v1/users/:id/history",
		"GET:/v1/wallet",
		"GET:/v1/rates",
		"GET:/v1/scheduler/status",
		"POST:/v1/scheduler/sweep",
		"GET:/v1/ws/payments",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Payment scheduling flow
// ---------------------------------------------------------------------------

func TestSchedulePaymentEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{
		"userId": "user-1",
		"payee": "0xaaaa000000000000000000000000000000000001",
		"amount": "25.50",
		"scheduledDate": %q
	}`, time.Now().Add(time.Hour).Format(time.RFC3339))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Payment.ID == "" {
		t.Error("Expected payment ID in response")
	}
	if resp.Payment.Status != "scheduled" {
		t.Errorf("Expected status scheduled, got %s", resp.Payment.Status)
	}

	// Cancel it
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/payments/"+resp.Payment.ID+"/cancel", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for cancel, got %d: %s", w.Code, w.Body.String())
	}

	// Cancel again conflicts
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/payments/"+resp.Payment.ID+"/cancel", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for double cancel, got %d", w.Code)
	}
}

func TestSchedulePayment_InvalidAmount(t *testing.T) {
	s := newTestServer(t)

	body := fmt.Sprintf(`{
		"userId": "user-1",
		"payee": "0xaaaa000000000000000000000000000000000001",
		"amount": "not-a-number",
		"scheduledDate": %q
	}`, time.Now().Format(time.RFC3339))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Execution endpoint
// ---------------------------------------------------------------------------

func TestExecuteEndpoint(t *testing.T) {
	s := newTestServer(t)

	body := `{
		"userId": "user-1",
		"plan": {
			"summary": "pay the gym",
			"actions": [{
				"id": "a1",
				"type": "TRANSFER",
				"to": "0xbbbb000000000000000000000000000000000002",
				"amount": "10.00"
			}]
		}
	}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			Success    bool   `json:"success"`
			DecisionID string `json:"decisionId"`
			TxRefs     string `json:"txRefs"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !resp.Result.Success {
		t.Errorf("Expected successful execution: %s", w.Body.String())
	}
	if resp.Result.DecisionID == "" {
		t.Error("Expected decision ID")
	}

	// Decision should be readable afterwards
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/decisions/"+resp.Result.DecisionID, nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for decision lookup, got %d", w.Code)
	}
}

func TestExecuteEndpoint_EmptyPlan(t *testing.T) {
	s := newTestServer(t)

	body := `{"userId": "user-1", "plan": {"summary": "nothing", "actions": []}}`

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/execute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty plan, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Wallet and scheduler endpoints
// ---------------------------------------------------------------------------

func TestWalletEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/wallet", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["balance"] == "" {
		t.Error("Expected balance in response")
	}
}

func TestSchedulerStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/scheduler/status", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestSchedulerSweepEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/scheduler/sweep", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
