// Package pointsapi is the REST client for external point economies that
// expose the points API: a balance endpoint plus atomic debit and credit
// endpoints. The client implements domain.Ledger so the transfer coordinator
// treats remote economies exactly like local ones.
package pointsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// Client calls one external economy's points API. Authentication is a static
// API key sent on every request.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a points API client.
//
// baseURL is the API root, e.g. "https://points.example.org/api/v1".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type balanceResponse struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

type adjustRequest struct {
	Amount int64 `json:"amount"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Balance returns the user's current balance in the remote economy.
func (c *Client) Balance(ctx context.Context, userID string) (int64, error) {
	path := fmt.Sprintf("/users/%s/balance", url.PathEscape(userID))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("pointsapi: balance for %s: %w", userID, err)
	}

	var resp balanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("pointsapi: decode balance: %w", err)
	}
	return resp.Balance, nil
}

// Debit removes amount points from the user's balance. The remote API rejects
// the call atomically when the balance is too low; that rejection surfaces as
// domain.ErrInsufficientFunds.
func (c *Client) Debit(ctx context.Context, userID string, amount int64) error {
	path := fmt.Sprintf("/users/%s/debit", url.PathEscape(userID))

	if _, err := c.doRequest(ctx, http.MethodPost, path, adjustRequest{Amount: amount}); err != nil {
		return fmt.Errorf("pointsapi: debit %d from %s: %w", amount, userID, err)
	}
	return nil
}

// Credit adds amount points to the user's balance.
func (c *Client) Credit(ctx context.Context, userID string, amount int64) error {
	path := fmt.Sprintf("/users/%s/credit", url.PathEscape(userID))

	if _, err := c.doRequest(ctx, http.MethodPost, path, adjustRequest{Amount: amount}); err != nil {
		return fmt.Errorf("pointsapi: credit %d to %s: %w", amount, userID, err)
	}
	return nil
}

// Ping verifies the remote API is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("pointsapi: ping: %w", err)
	}
	return nil
}

// doRequest builds, sends, and reads an HTTP request against the points API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network failures are what the compensation path exists for.
		return nil, fmt.Errorf("%w: %v", domain.ErrEconomyUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrEconomyUnavailable, err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to domain errors.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch statusCode {
	case http.StatusPaymentRequired, http.StatusUnprocessableEntity:
		return domain.ErrInsufficientFunds
	case http.StatusConflict:
		// Some implementations signal a low balance with 409.
		if apiErr.Code == "insufficient_funds" {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("conflict: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusNotFound:
		return fmt.Errorf("not found: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s (%s)", apiErr.Message, apiErr.Code)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited: %s (%s)", domain.ErrEconomyUnavailable, apiErr.Message, apiErr.Code)
	default:
		if statusCode >= 500 {
			return fmt.Errorf("%w: HTTP %d: %s (%s)", domain.ErrEconomyUnavailable, statusCode, apiErr.Message, apiErr.Code)
		}
		return fmt.Errorf("HTTP %d: %s (%s)", statusCode, apiErr.Message, apiErr.Code)
	}
}

// Compile-time interface check.
var _ domain.Ledger = (*Client)(nil)
