// Package businessflow contains the core business logic and use cases of the pricing service
package businessflow

import (
	"errors"
	"fmt"
)

// Error kinds. Every business error wraps exactly one of them.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence failure")
)

// Business flow error constants
var (
	// Lookup errors
	ErrServiceNotFound = fmt.Errorf("service %w", ErrNotFound)
	ErrPricingNotFound = fmt.Errorf("pricing record %w", ErrNotFound)

	// Input errors
	ErrServiceIDInvalid   = fmt.Errorf("%w: service id must be a valid UUID", ErrValidation)
	ErrBasePriceInvalid   = fmt.Errorf("%w: base price must be greater than zero", ErrValidation)
	ErrCapacityInvalid    = fmt.Errorf("%w: capacity must be greater than zero", ErrValidation)
	ErrBookingsInvalid    = fmt.Errorf("%w: bookings count must not be negative", ErrValidation)
	ErrHourInvalid        = fmt.Errorf("%w: hour must be between 0 and 23", ErrValidation)
	ErrFactorOutOfRange   = fmt.Errorf("%w: pricing factor out of range", ErrValidation)
	ErrRuleOutOfRange     = fmt.Errorf("%w: pricing rule out of range", ErrValidation)
	ErrInvalidDate        = fmt.Errorf("%w: date must be RFC3339 or YYYY-MM-DD", ErrValidation)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date is after end date", ErrValidation)
	ErrServiceNameInvalid = fmt.Errorf("%w: service name is required", ErrValidation)

	// State errors
	ErrPricingAlreadyExists = fmt.Errorf("%w: an active pricing record already exists for this service", ErrConflict)
	ErrServiceAlreadyExists = fmt.Errorf("%w: a service with this name already exists", ErrConflict)
	ErrServiceInactive      = fmt.Errorf("service %w: inactive", ErrNotFound)
)

// BusinessError represents a business logic error with additional context
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewBusinessErrorf creates a new business error with a formatted message
func NewBusinessErrorf(code, format string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// newPersistenceError marks a storage fault so callers can tell it apart from bad input
func newPersistenceError(code, message string, err error) *BusinessError {
	return NewBusinessError(code, message, fmt.Errorf("%w: %w", ErrPersistence, err))
}

// ErrorCode returns the code of the outermost BusinessError in the chain, if any
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func IsServiceNotFound(err error) bool {
	return errors.Is(err, ErrServiceNotFound)
}

func IsPricingNotFound(err error) bool {
	return errors.Is(err, ErrPricingNotFound)
}

func IsPricingAlreadyExists(err error) bool {
	return errors.Is(err, ErrPricingAlreadyExists)
}

func IsFactorOutOfRange(err error) bool {
	return errors.Is(err, ErrFactorOutOfRange)
}

func IsRuleOutOfRange(err error) bool {
	return errors.Is(err, ErrRuleOutOfRange)
}
