// Package gateway talks to the external payment provider: checkout
// session creation at initiation time and transaction verification for
// the reconciliation pull path.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrUnavailable covers network failures and 5xx responses: the caller
// saw no durable effect and may retry with the same request_id.
// ErrRejected covers 4xx validation responses: retrying the identical
// request will not help.
var (
	ErrUnavailable = errors.New("payment gateway unavailable")
	ErrRejected    = errors.New("payment gateway rejected request")
)

type Config struct {
	BaseURL     string
	APIKey      string
	ReturnURL   string
	CallbackURL string
	Timeout     time.Duration
	MaxAttempts int
}

type Client struct {
	baseURL     string
	apiKey      string
	returnURL   string
	callbackURL string
	maxAttempts uint64
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Client{
		baseURL:     config.BaseURL,
		apiKey:      config.APIKey,
		returnURL:   config.ReturnURL,
		callbackURL: config.CallbackURL,
		maxAttempts: uint64(maxAttempts),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// CheckoutRequest carries what the provider needs to open a hosted
// checkout session for one payment attempt.
type CheckoutRequest struct {
	TxRef       string
	AmountCents int64
	Currency    string
	Email       string
	PhoneNumber string
	Meta        map[string]string
}

type CheckoutSession struct {
	CheckoutURL  string
	GatewayTxRef string
}

// Verification statuses as the gateway reports them.
const (
	VerifyStatusSuccess = "success"
	VerifyStatusFailed  = "failed"
	VerifyStatusPending = "pending"
)

type VerifyResult struct {
	Status     string
	RawPayload json.RawMessage
}

type initializeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type verifyResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		Status string `json:"status"`
	} `json:"data"`
}

// CreateCheckout opens a checkout session. Unavailable errors are
// retried with exponential backoff up to the configured attempts;
// rejections are surfaced immediately.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"amount":       formatAmount(req.AmountCents),
		"currency":     req.Currency,
		"email":        req.Email,
		"phone_number": req.PhoneNumber,
		"tx_ref":       req.TxRef,
		"callback_url": c.callbackURL,
		"return_url":   c.returnURL,
		"customization": map[string]string{
			"title":       "Listing Fee",
			"description": fmt.Sprintf("Payment for %s", req.Meta["property_id"]),
		},
		"meta": req.Meta,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	var session *CheckoutSession
	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, doErr := c.doRequest(ctx, http.MethodPost, "/transaction/initialize", body)
		if doErr != nil {
			c.logger.Warn("checkout initialization attempt failed", "tx_ref", req.TxRef, "error", doErr)
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnavailable, doErr))
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrUnavailable, readErr))
		}

		if resp.StatusCode >= 500 {
			c.logger.Warn("gateway returned server error", "tx_ref", req.TxRef, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			c.logger.Error("gateway rejected checkout request", "tx_ref", req.TxRef, "status", resp.StatusCode, "response", string(respBody))
			return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(respBody))
		}

		var initResp initializeResponse
		if err := json.Unmarshal(respBody, &initResp); err != nil {
			return fmt.Errorf("%w: undecodable response: %v", ErrRejected, err)
		}
		if initResp.Status != "success" || initResp.Data.CheckoutURL == "" {
			return fmt.Errorf("%w: %s", ErrRejected, initResp.Message)
		}

		session = &CheckoutSession{
			CheckoutURL:  initResp.Data.CheckoutURL,
			GatewayTxRef: req.TxRef,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("checkout session created", "tx_ref", req.TxRef, "checkout_url", session.CheckoutURL)
	return session, nil
}

// VerifyTransaction asks the provider for the authoritative state of a
// transaction. Used by the reconciler when no webhook arrived in time.
func (c *Client) VerifyTransaction(ctx context.Context, txRef string) (*VerifyResult, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/transaction/verify/"+txRef, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, string(respBody))
	}

	var verResp verifyResponse
	if err := json.Unmarshal(respBody, &verResp); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %v", ErrRejected, err)
	}

	return &VerifyResult{
		Status:     verResp.Data.Status,
		RawPayload: respBody,
	}, nil
}

// Ping checks provider reachability for health reporting.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/banks", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

// formatAmount renders integer minor units as the decimal string the
// provider expects, e.g. 10000 -> "100.00".
func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
