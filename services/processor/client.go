// Package processor is the HTTP client for the payment processor's ledger
// API. The configured mode (test or live) is one process-wide value; every
// call runs against that mode only, so reconciliation can never compare
// across modes.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"gigg-ticketing/models"
	"gigg-ticketing/monitoring"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when the processor cannot be reached within
// the request timeout. Callers degrade to an "unavailable" display state
// instead of stalling the dashboard.
var ErrUnavailable = errors.New("payment processor unavailable")

type Config struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	SecretKey string `json:"secretKey" mapstructure:"secret_key"`
	Mode      string `json:"mode" mapstructure:"mode"` // test or live

	PNSubKey  string `json:"pn_subkey" mapstructure:"pn_subkey"`
	PNUUID    string `json:"pn_uuid" mapstructure:"pn_uuid"`
	PNChannel string `json:"pn_channel" mapstructure:"pn_channel"`
}

type Client struct {
	// baseURL is the base url of the processor API.
	baseURL string

	// secretKey authenticates every request; test and live keys are
	// distinct, which backs the cross-mode guard below.
	secretKey string

	// mode is the process-wide test/live setting.
	mode string

	// pageLimit is the processor-side page size for session listings.
	pageLimit int

	// hc is the http client.
	hc *http.Client
}

// NewClient creates a new processor API client.
func NewClient(cfg *Config) *Client {
	mode := cfg.Mode
	if mode != models.ModeLive {
		mode = models.ModeTest
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		mode:      mode,
		pageLimit: 100,

		// set http client with timeout so a slow processor degrades
		// instead of stalling the dashboard.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Mode returns the configured mode string.
func (c *Client) Mode() string { return c.mode }

// sessionPayload mirrors the processor's checkout session resource.
type sessionPayload struct {
	ID              string            `json:"id"`
	PaymentIntent   string            `json:"payment_intent"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`         // open, complete, expired
	PaymentStatus   string            `json:"payment_status"` // paid, unpaid, no_payment_required
	Created         int64             `json:"created"`
	Livemode        bool              `json:"livemode"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type sessionListPayload struct {
	Data    []sessionPayload `json:"data"`
	HasMore bool             `json:"has_more"`
}

// ListCompletedSessions pages through the processor's checkout sessions and
// returns the paid, completed ones for the configured mode. Still-pending
// and expired sessions are excluded from the comparison set.
func (c *Client) ListCompletedSessions(ctx context.Context) ([]models.ProcessorSession, error) {
	var sessions []models.ProcessorSession
	startingAfter := ""

	for {
		page, err := c.listPage(ctx, startingAfter)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Data {
			if raw.Status != "complete" || raw.PaymentStatus != "paid" {
				continue
			}
			if raw.Livemode != (c.mode == models.ModeLive) {
				// a session from the other mode leaking into the listing
				// must never enter the reconciliation set
				continue
			}
			sessions = append(sessions, models.ProcessorSession{
				SessionID:       raw.ID,
				PaymentIntentID: raw.PaymentIntent,
				CustomerEmail:   raw.CustomerDetails.Email,
				Amount:          decimal.NewFromInt(raw.AmountTotal),
				Currency:        raw.Currency,
				Status:          raw.Status,
				CreatedAt:       time.Unix(raw.Created, 0).UTC(),
				Metadata:        raw.Metadata,
			})
		}

		if !page.HasMore || len(page.Data) == 0 {
			return sessions, nil
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}
}

func (c *Client) listPage(ctx context.Context, startingAfter string) (*sessionListPayload, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", c.pageLimit))
	if startingAfter != "" {
		q.Set("starting_after", startingAfter)
	}

	var page sessionListPayload
	if err := c.get(ctx, "/v1/checkout/sessions?"+q.Encode(), "list_sessions", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type accountPayload struct {
	ID string `json:"id"`
}

// GetAccount fetches the processor account and reports the configured mode.
// The mode is never inferred from the response; the account call only
// verifies the key is usable and resolves the account id for display.
func (c *Client) GetAccount(ctx context.Context) (*models.ModeInfo, error) {
	var account accountPayload
	if err := c.get(ctx, "/v1/account", "get_account", &account); err != nil {
		return nil, err
	}
	return &models.ModeInfo{
		Mode:       c.mode,
		IsTestMode: c.mode == models.ModeTest,
		AccountID:  account.ID,
	}, nil
}

func (c *Client) get(ctx context.Context, path, operation string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("processor %s: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		monitoring.TrackProcessorRequest(operation, "unreachable", time.Since(start))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	monitoring.TrackProcessorRequest(operation, resp.Status, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("processor %s: request rejected (%s)", operation, resp.Status)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %s", ErrUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("processor %s: unexpected status %s", operation, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("processor %s: decode response: %w", operation, err)
	}
	return nil
}
