package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the SentryPay backend.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// SentryPayClient is a pure HTTP client for the SentryPay backend API.
type SentryPayClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSentryPayClient creates a new client for the SentryPay backend.
func NewSentryPayClient(cfg Config) *SentryPayClient {
	return &SentryPayClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the backend.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the backend and returns the response body.
func (c *SentryPayClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// SchedulePayment schedules a new payment.
func (c *SentryPayClient) SchedulePayment(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/payments", nil, body)
}

// CancelPayment cancels a scheduled payment.
func (c *SentryPayClient) CancelPayment(ctx context.Context, paymentID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/payments/"+paymentID+"/cancel", nil, nil)
}

// ListPayments lists a user's scheduled payments.
func (c *SentryPayClient) ListPayments(ctx context.Context, userID, status string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/users/"+userID+"/payments", q, nil)
}

// AssessRisk runs a risk check for a proposed payment.
func (c *SentryPayClient) AssessRisk(ctx context.Context, body map[string]any) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/risk/assess", nil, body)
}

// GetBalance returns the platform wallet balance.
func (c *SentryPayClient) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/wallet", nil, nil)
}

// GetHistory lists a user's executed payment history.
func (c *SentryPayClient) GetHistory(ctx context.Context, userID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/users/"+userID+"/history", q, nil)
}
