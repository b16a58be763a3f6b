package availability

import "slotbook/internal/schedule"

type Slot struct {
	Start     schedule.Clock `json:"start"`
	End       schedule.Clock `json:"end"`
	SpotsLeft *int           `json:"spots_left,omitempty"`
}

// Result is always returned with a non-nil Slots slice. Message is set only when
// the whole day is unavailable, never when it merely has no free slots.
type Result struct {
	Date       string `json:"date"`
	LocationID *int64 `json:"location_id,omitempty"`
	Slots      []Slot `json:"slots"`
	Message    string `json:"message,omitempty"`
}

const (
	MessageTooFarAhead      = "Date is beyond the booking window"
	MessageTooSoon          = "Date is too soon to book"
	MessageNoActiveLocation = "No active location"
	MessageDateUnavailable  = "Date not available"
)

func empty(date string, message string) *Result {
	return &Result{Date: date, Slots: []Slot{}, Message: message}
}
