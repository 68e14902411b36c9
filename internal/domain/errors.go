package domain

import "errors"

var (
	// Event store errors
	ErrStreamNotFound      = errors.New("stream not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrUnknownEventType    = errors.New("unknown event type")
	ErrStoreClosed         = errors.New("event store closed")

	// Account errors
	ErrInvalidAccountState = errors.New("account not in status 'open'")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrUnexpectedTransfer  = errors.New("account does not expect transfer")

	// Transfer errors
	ErrInvalidTransferState = errors.New("invalid transfer state")
	ErrUnknownParty         = errors.New("account is not a party to the transfer")
	ErrSameAccount          = errors.New("cannot transfer to same account")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// IsBusinessError reports whether err is a business-rule violation rather
// than a store-level failure.
func IsBusinessError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidAccountState),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrUnexpectedTransfer),
		errors.Is(err, ErrInvalidTransferState),
		errors.Is(err, ErrUnknownParty),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInvalidAmount):
		return true
	default:
		return false
	}
}
