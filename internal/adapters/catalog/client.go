package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go"
	"github.com/brightcast/ppv-access-service/internal/domain"
)

// Client reads event attributes from the content store's HTTP API. Reads are
// retried on transient failures; a 404 is authoritative and never retried.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
}

type Config struct {
	BaseURL    string
	APIKey     string
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
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

type eventDocument struct {
	EventID          string  `json:"event_id"`
	Title            string  `json:"title"`
	ShortDescription string  `json:"short_description"`
	Price            float64 `json:"price"`
	Currency         string  `json:"currency"`
	IsPPV            bool    `json:"is_ppv"`
	StreamStatus     string  `json:"stream_status"`
	StartsAt         string  `json:"starts_at"`
}

type eventListDocument struct {
	Events []eventDocument `json:"events"`
}

func (c *Client) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	var doc eventDocument
	endpoint := c.baseURL + "/api/events/" + url.PathEscape(eventID)
	if err := c.getJSON(ctx, endpoint, &doc); err != nil {
		return domain.Event{}, err
	}
	return toDomainEvent(doc), nil
}

func (c *Client) ListEvents(ctx context.Context) ([]domain.Event, error) {
	var doc eventListDocument
	if err := c.getJSON(ctx, c.baseURL+"/api/events", &doc); err != nil {
		return nil, err
	}
	events := make([]domain.Event, 0, len(doc.Events))
	for _, item := range doc.Events {
		events = append(events, toDomainEvent(item))
	}
	return events, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if c.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+c.apiKey)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("content store request: %w", err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return retry.Unrecoverable(domain.ErrNotFound)
			case resp.StatusCode >= 500:
				return fmt.Errorf("content store returned %d", resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("content store returned %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode content store response: %w", err))
			}
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func toDomainEvent(doc eventDocument) domain.Event {
	event := domain.Event{
		EventID:          doc.EventID,
		Title:            doc.Title,
		ShortDescription: doc.ShortDescription,
		Price:            doc.Price,
		Currency:         doc.Currency,
		IsPPV:            doc.IsPPV,
		StreamStatus:     domain.StreamStatus(doc.StreamStatus),
	}
	if doc.StartsAt != "" {
		if startsAt, err := time.Parse(time.RFC3339, doc.StartsAt); err == nil {
			event.StartsAt = startsAt
		}
	}
	return event
}
