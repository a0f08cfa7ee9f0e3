// Package notification wraps the two collaborators invoked on payment
// outcomes: the notification service (templated messages to landlords)
// and the property-listing service (listing approval on success). Both
// are best-effort; failures are logged, never propagated into the
// payment lifecycle.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	TemplatePaymentInitiated = "payment_initiated"
	TemplatePaymentSuccess   = "payment_success"
	TemplatePaymentFailed    = "payment_failed"
	TemplatePaymentTimedOut  = "payment_timed_out"
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

type Client struct {
	baseURL     string
	maxAttempts uint64
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Client{
		baseURL:     config.BaseURL,
		maxAttempts: uint64(maxAttempts),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

type Message struct {
	UserID   string            `json:"user_id"`
	Locale   string            `json:"preferred_language"`
	Subject  string            `json:"subject"`
	Body     string            `json:"message"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// Send renders the template for the user's locale and posts it to the
// notification service with bounded retries.
func (c *Client) Send(ctx context.Context, userID, locale, template string, vars map[string]string) error {
	subject, body := renderTemplate(locale, template, vars)

	msg := Message{
		UserID:   userID,
		Locale:   locale,
		Subject:  subject,
		Body:     body,
		Template: template,
		Vars:     vars,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewConstant(time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notifications/send", bytes.NewReader(payload))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return retry.RetryableError(doErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("notification service returned status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("notification service returned status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("failed to send notification",
			"user_id", userID,
			"template", template,
			"error", err)
		return err
	}

	c.logger.Info("notification sent", "user_id", userID, "template", template, "locale", locale)
	return nil
}
