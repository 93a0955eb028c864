package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/brightcast/ppv-access-service/internal/domain"
	"github.com/brightcast/ppv-access-service/internal/ports"
)

// Client creates hosted checkout sessions against the payment processor's
// API. Session creation is retried on transient failures; the processor
// deduplicates by reference so a retried create cannot double-charge.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

type Config struct {
	BaseURL    string
	SecretKey  string
	HTTPClient *http.Client
	Attempts   uint
	RetryDelay time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 250 * time.Millisecond
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

type createSessionRequest struct {
	Reference     string            `json:"reference"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Description   string            `json:"description"`
	CustomerEmail string            `json:"customer_email"`
	SuccessURL    string            `json:"success_url"`
	CancelURL     string            `json:"cancel_url"`
	ExpiresAt     int64             `json:"expires_at"`
	Metadata      map[string]string `json:"metadata"`
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params ports.CheckoutSessionParams) (ports.CheckoutSession, error) {
	body := createSessionRequest{
		Reference:     params.EventID + ":" + params.UserEmail,
		AmountTotal:   params.AmountMinorUnit,
		Currency:      params.Currency,
		Description:   params.EventTitle,
		CustomerEmail: params.UserEmail,
		SuccessURL:    params.SuccessURL,
		CancelURL:     params.CancelURL,
		ExpiresAt:     params.ExpiresAt.Unix(),
		Metadata: map[string]string{
			"event_id":   params.EventID,
			"user_email": params.UserEmail,
			"kind":       "ppv",
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("encode session request: %w", err)
	}

	var out createSessionResponse
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", bytes.NewReader(raw))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.secretKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("processor request: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode >= 500:
				return fmt.Errorf("processor returned %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
				return retry.Unrecoverable(fmt.Errorf("processor returned %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode processor response: %w", err))
			}
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return ports.CheckoutSession{}, fmt.Errorf("%w: %v", domain.ErrProcessorUnavailable, err)
	}
	if out.SessionID == "" || out.RedirectURL == "" {
		return ports.CheckoutSession{}, fmt.Errorf("%w: processor response missing session fields", domain.ErrProcessorUnavailable)
	}
	return ports.CheckoutSession{SessionID: out.SessionID, RedirectURL: out.RedirectURL}, nil
}
