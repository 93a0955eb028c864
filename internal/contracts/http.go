package contracts

import "time"

type CheckoutRequest struct {
	EventID string `json:"event_id"`
}

type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type AccessResponse struct {
	HasAccess bool   `json:"has_access"`
	EventID   string `json:"event_id"`
}

type StreamURLResponse struct {
	StreamURL string `json:"stream_url"`
	EventID   string `json:"event_id"`
}

type EventDTO struct {
	EventID          string    `json:"event_id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"short_description,omitempty"`
	Price            float64   `json:"price"`
	Currency         string    `json:"currency"`
	IsPPV            bool      `json:"is_ppv"`
	StreamStatus     string    `json:"stream_status"`
	StartsAt         time.Time `json:"starts_at"`
}

type PurchaseDTO struct {
	PurchaseID  string     `json:"purchase_id"`
	EventID     string     `json:"event_id"`
	Status      string     `json:"status"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}
