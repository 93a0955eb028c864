package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/brightcast/ppv-access-service/internal/domain"
)

// Client talks to the stream provider's admin API. GrantAccess adds the
// viewer to the event's ACL and is idempotent on the provider side.
type Client struct {
	baseURL    string
	adminUser  string
	adminPass  string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

type Config struct {
	BaseURL    string
	AdminUser  string
	AdminPass  string
	HTTPClient *http.Client
	Attempts   uint
	RetryDelay time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		adminUser:  cfg.AdminUser,
		adminPass:  cfg.AdminPass,
		httpClient: httpClient,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

type grantRequest struct {
	UserEmail string `json:"user_email"`
	EventID   string `json:"event_id"`
}

type playbackResponse struct {
	PlaybackURL string `json:"playback_url"`
}

func (c *Client) GrantAccess(ctx context.Context, userEmail, eventID string) error {
	raw, err := json.Marshal(grantRequest{UserEmail: userEmail, EventID: eventID})
	if err != nil {
		return fmt.Errorf("encode grant request: %w", err)
	}
	return retry.Do(
		func() error {
			endpoint := c.baseURL + "/admin/events/" + url.PathEscape(eventID) + "/viewers"
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.SetBasicAuth(c.adminUser, c.adminPass)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("stream provider request: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("stream provider returned %d", resp.StatusCode)
			case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusConflict:
				// Conflict means the viewer is already on the ACL.
				return nil
			default:
				return retry.Unrecoverable(fmt.Errorf("stream provider returned %d", resp.StatusCode))
			}
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) PlaybackURL(ctx context.Context, eventID string) (string, error) {
	endpoint := c.baseURL + "/admin/events/" + url.PathEscape(eventID) + "/playback"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.adminUser, c.adminPass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stream provider request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("stream provider returned %d", resp.StatusCode)
	}

	var out playbackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode playback response: %w", err)
	}
	if out.PlaybackURL == "" {
		return "", fmt.Errorf("stream provider returned empty playback url")
	}
	return out.PlaybackURL, nil
}
