package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound             = errors.New("booking not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrLocationNotFound     = errors.New("location not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrInvalidRequest       = errors.New("invalid booking request")
	ErrTooSoon              = errors.New("booking too soon")
	ErrAdvanceLimitExceeded = errors.New("booking too far in advance")
	ErrBelowMinimum         = errors.New("booking below minimum amount")
	ErrSlotFull             = errors.New("slot is full")
	ErrSlotUnavailable      = errors.New("slot not available")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// Error is a rejected booking operation. Kind is one of the sentinels above
// and is what errors.Is matches.
type Error struct {
	Kind          error
	Message       string
	EarliestAt    *time.Time
	MinimumAmount *decimal.Decimal
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func tooSoon(earliest time.Time) *Error {
	e := newError(ErrTooSoon, "The earliest available time is %s", earliest.Format("Jan 2, 2006 at 15:04"))
	e.EarliestAt = &earliest
	return e
}

func belowMinimum(minimum decimal.Decimal) *Error {
	e := newError(ErrBelowMinimum, "Minimum booking amount is %s", minimum.StringFixed(2))
	e.MinimumAmount = &minimum
	return e
}
