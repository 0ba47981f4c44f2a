package escrow

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios. Every failure aborts the
// whole call; nothing is retried internally.
var (
	// General errors
	ErrNotFound         = errors.New("escrow: not found")
	ErrAlreadyExists    = errors.New("escrow: already exists")
	ErrUnauthorized     = errors.New("escrow: unauthorized")
	ErrInvalidState     = errors.New("escrow: invalid state for requested transition")
	ErrInvalidParameter = errors.New("escrow: invalid parameter")

	// Role errors
	ErrAlreadyRegistered = errors.New("escrow: address already holds a role")

	// Service errors
	ErrServiceNotFound = errors.New("escrow: service not found")
	ErrServiceInactive = errors.New("escrow: service is not active")

	// Subscription errors
	ErrSubscriptionNotFound  = errors.New("escrow: subscription not found")
	ErrSubscriptionNotActive = errors.New("escrow: subscription is not active")
	ErrNotPendingCancel      = errors.New("escrow: subscription has no pending cancellation")
	ErrTokenMismatch         = errors.New("escrow: payment token does not match")
	ErrInsufficientDeposit   = errors.New("escrow: deposit below one cycle's cost")
	ErrNotDue                = errors.New("escrow: block height not yet reached")

	// Stream errors
	ErrStreamNotFound = errors.New("escrow: stream not found")
	ErrStreamClosed   = errors.New("escrow: stream is closed")

	// Transfer errors
	ErrTransferFailed = errors.New("escrow: value transfer failed")

	// Store errors
	ErrStoreNotReady     = errors.New("escrow: store not ready")
	ErrStoreClosed       = errors.New("escrow: store is closed")
	ErrTransactionFailed = errors.New("escrow: transaction failed")
	ErrMigrationFailed   = errors.New("escrow: migration failed")
)

// IsNotFound returns true if the error reports a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrStreamNotFound)
}

// IsInvalidState returns true if the error reports a status that forbids the
// requested transition (including role re-registration and inactive targets).
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrServiceInactive) ||
		errors.Is(err, ErrSubscriptionNotActive) ||
		errors.Is(err, ErrNotPendingCancel) ||
		errors.Is(err, ErrStreamClosed) ||
		errors.Is(err, ErrAlreadyRegistered)
}

// IsRetryable returns true if the error is temporary and the caller may
// resubmit the call at a later block.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNotDue) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}

// ValidationError represents a parameter validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("escrow: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes ValidationError match ErrInvalidParameter with errors.Is.
func (e ValidationError) Unwrap() error { return ErrInvalidParameter }
