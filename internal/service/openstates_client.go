package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

const (
	openStatesBaseURL = "https://v3.openstates.org"
	jurisdiction      = "ca"
	defaultTimeout    = 30 * time.Second
	maxRetries        = 3
	initialBackoff    = 2 * time.Second
	requestDelay      = 1 * time.Second
)

// errNotFound signals that the source has no bill for the requested id
var errNotFound = errors.New("bill not found")

// OpenStatesClient handles communication with the OpenStates API
type OpenStatesClient struct {
	baseURL string
	apiKey  string
	backoff time.Duration
	client  *http.Client
}

// NewOpenStatesClient creates a new OpenStates API client
func NewOpenStatesClient(apiKey string) *OpenStatesClient {
	return &OpenStatesClient{
		baseURL: openStatesBaseURL,
		apiKey:  apiKey,
		backoff: initialBackoff,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Configured reports whether an API key is set
func (c *OpenStatesClient) Configured() bool {
	return c.apiKey != ""
}

// FetchBillsPage retrieves one page of California bills for a legislative session
func (c *OpenStatesClient) FetchBillsPage(ctx context.Context, session string, page, perPage int) (*model.BillPage, error) {
	params := url.Values{}
	params.Set("jurisdiction", jurisdiction)
	params.Set("session", session)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	reqURL := fmt.Sprintf("%s/bills?%s", c.baseURL, params.Encode())

	body, err := c.fetchWithRetry(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bills for session %s page %d: %w", session, page, err)
	}

	var resp model.BillPage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse bills response: %w", err)
	}

	return &resp, nil
}

// FetchBill retrieves a single bill by its OpenStates id, returning nil when
// the source has no such bill
func (c *OpenStatesClient) FetchBill(ctx context.Context, billID string) (*model.RawBill, error) {
	reqURL := fmt.Sprintf("%s/bills/%s", c.baseURL, billID)

	body, err := c.fetchWithRetry(ctx, reqURL)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bill %s: %w", billID, err)
	}

	var raw model.RawBill
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bill response: %w", err)
	}

	return &raw, nil
}

// fetchWithRetry performs an HTTP GET with exponential backoff retry.
// Authentication failures and missing bills are not retried.
func (c *OpenStatesClient) fetchWithRetry(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("invalid OpenStates API key (HTTP 401)")
		case resp.StatusCode == http.StatusNotFound:
			return nil, errNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
		default:
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr)
}

// Delay returns the configured delay between page requests
func (c *OpenStatesClient) Delay() time.Duration {
	return requestDelay
}
