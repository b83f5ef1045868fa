package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Payment subsystem taxonomy
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrProvider      = errors.New("provider error")
	ErrSignature     = errors.New("signature verification failed")
	ErrConcurrency   = errors.New("concurrent modification")
	ErrState         = errors.New("resource already in terminal state")

	ErrUnknownMethod    = errors.New("unknown payment method")
	ErrTargetMismatch   = errors.New("payment must reference exactly one target")
	ErrMethodMismatch   = errors.New("webhook provider does not match payment method")
	ErrRateLimited      = errors.New("too many attempts")
	ErrCodeNotFound     = errors.New("verification code not found")
	ErrCodeGeneration   = errors.New("could not generate unique verification code")
	ErrForbidden        = errors.New("forbidden")
	ErrMissingSignature = errors.New("missing signature")
)
