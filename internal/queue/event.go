// Package queue defines message payloads exchanged over the message broker
// and the background consumer for payment events.
package queue

// PaymentSucceededEvent is delivered by the payment provider when a charge
// for a hold completes. Delivery is at least once: the same event id may
// arrive any number of times, and the converter's event log is what makes
// its application effectively once.
type PaymentSucceededEvent struct {
	EventID  string `json:"event_id"`
	Type     string `json:"type"`
	HoldCode string `json:"hold_code"`
	Amount   uint64 `json:"amount"`
	Currency string `json:"currency"`
	ChargeID string `json:"charge_id"`
}

// ConversionResult reports what processing a payment event did.
// AlreadyProcessed is true when the event (or its hold) had been handled
// before and this delivery was a replay; the booking fields identify the
// booking created by the first successful application.
type ConversionResult struct {
	AlreadyProcessed bool   `json:"already_processed"`
	BookingID        uint64 `json:"booking_id,omitempty"`
	BookingCode      string `json:"booking_code,omitempty"`
}

// BookingConfirmedEvent is published after a hold converts into a booking.
// It carries enough information for downstream consumers (notifications,
// analytics) without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID   uint64 `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	HoldCode    string `json:"hold_code"`
	UserID      uint64 `json:"user_id"`
	HotelID     uint64 `json:"hotel_id"`
	CheckIn     string `json:"check_in"`
	CheckOut    string `json:"check_out"`
	Quantity    uint32 `json:"quantity"`
	TotalPrice  uint64 `json:"total_price"`
	Currency    string `json:"currency"`
	ConfirmedAt string `json:"confirmed_at"`
}
