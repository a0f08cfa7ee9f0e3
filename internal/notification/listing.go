package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ListingClient calls the property-listing service to approve a
// listing after its fee was paid.
type ListingClient struct {
	baseURL     string
	maxAttempts uint64
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewListingClient(baseURL string, timeout time.Duration, maxAttempts int, logger *slog.Logger) *ListingClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &ListingClient{
		baseURL:     baseURL,
		maxAttempts: uint64(maxAttempts),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

func (c *ListingClient) ApproveListing(ctx context.Context, propertyID string) error {
	url := fmt.Sprintf("%s/properties/%s/approve", c.baseURL, propertyID)

	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewConstant(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if reqErr != nil {
			return reqErr
		}

		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return retry.RetryableError(doErr)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("listing service returned status %d", resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("listing service returned status %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		c.logger.Error("listing approval failed", "property_id", propertyID, "error", err)
		return err
	}

	c.logger.Info("listing approved", "property_id", propertyID)
	return nil
}
