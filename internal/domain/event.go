package domain

import "time"

type StreamStatus string

const (
	StreamStatusScheduled StreamStatus = "scheduled"
	StreamStatusLive      StreamStatus = "live"
	StreamStatusEnded     StreamStatus = "ended"
	StreamStatusCancelled StreamStatus = "cancelled"
)

// Event is the read model of a live event as published by the content store.
// The service never writes events; streamStatus transitions are operator
// actions inside the CMS.
type Event struct {
	EventID          string       `json:"event_id"`
	Title            string       `json:"title"`
	ShortDescription string       `json:"short_description,omitempty"`
	Price            float64      `json:"price"`
	Currency         string       `json:"currency"`
	IsPPV            bool         `json:"is_ppv"`
	StreamStatus     StreamStatus `json:"stream_status"`
	StartsAt         time.Time    `json:"starts_at"`
}

// Purchasable reports whether a checkout may be initiated for the event.
// The caller distinguishes the specific refusal via the returned sentinel.
func (e Event) Purchasable() error {
	if !e.IsPPV {
		return ErrNotPurchasable
	}
	if e.Price <= 0 {
		return ErrNotPurchasable
	}
	if e.StreamStatus == StreamStatusEnded {
		return ErrEventEnded
	}
	if e.StreamStatus == StreamStatusCancelled {
		return ErrEventEnded
	}
	return nil
}

// PriceMinorUnits converts the decimal price to minor currency units,
// rounding to the nearest unit.
func (e Event) PriceMinorUnits() int64 {
	cents := e.Price * 100
	if cents >= 0 {
		return int64(cents + 0.5)
	}
	return int64(cents - 0.5)
}
