package execution

import (
	"errors"
	"fmt"

	"paper-trade-bot-go/internal/ledger"
)

var (
	// ErrPriceUnavailable is returned when no positive quote can be obtained.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrPersistenceFailure is returned when the trade was applied in memory
	// but could not be written to durable storage.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// ErrorKind tags the reason an order did not complete.
type ErrorKind string

const (
	KindInvalidAmount        ErrorKind = "InvalidAmount"
	KindInsufficientFunds    ErrorKind = "InsufficientFunds"
	KindInsufficientPosition ErrorKind = "InsufficientPosition"
	KindPriceUnavailable     ErrorKind = "PriceUnavailable"
	KindPersistenceFailure   ErrorKind = "PersistenceFailure"
)

var kindSentinels = map[ErrorKind]error{
	KindInvalidAmount:        ledger.ErrInvalidAmount,
	KindInsufficientFunds:    ledger.ErrInsufficientFunds,
	KindInsufficientPosition: ledger.ErrInsufficientPosition,
	KindPriceUnavailable:     ErrPriceUnavailable,
	KindPersistenceFailure:   ErrPersistenceFailure,
}

// OrderError is the failure outcome of an order. It matches its kind's sentinel
// with errors.Is, and the underlying cause when there is one.
type OrderError struct {
	Kind    ErrorKind
	Symbol  string
	Side    Side
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s %s: %s: %v", e.Kind, e.Side, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %s", e.Kind, e.Side, e.Symbol, e.Message)
}

func (e *OrderError) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Validation reports whether the order was rejected before any state change.
func (e *OrderError) Validation() bool {
	return e.Kind != KindPersistenceFailure
}

// KindOf returns the kind of an order error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

func kindFromLedger(err error) ErrorKind {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ledger.ErrInsufficientPosition):
		return KindInsufficientPosition
	default:
		return KindInvalidAmount
	}
}
