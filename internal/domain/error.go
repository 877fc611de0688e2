package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound                = errors.New("entity not found")
	ErrAlreadyExists           = errors.New("entity already exists")
	ErrConflict                = errors.New("conflicting request")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrQuotaExceeded           = errors.New("usage quota exceeded")
	ErrSubscriptionInvalid     = errors.New("subscription is not valid for this operation")
	ErrAlreadyConsumed         = errors.New("payment session already consumed")
	ErrInvalidStatusTransition = errors.New("invalid subscription status transition")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)
