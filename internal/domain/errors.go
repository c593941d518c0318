package domain

import "errors"

// Business and infrastructure errors shared by every layer. Lower layers wrap
// them with context; handlers match them with errors.Is.
var (
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientInventory  = errors.New("not enough available seats")
	ErrInsufficientPoints     = errors.New("not enough points")
	ErrVoucherExhausted       = errors.New("voucher has no remaining uses")
	ErrCouponAlreadyUsed      = errors.New("coupon has already been used")
	ErrNotFound               = errors.New("not found")
	ErrUnauthorized           = errors.New("actor does not own the resource")
	ErrInvalidStateTransition = errors.New("invalid transaction state transition")
	ErrConcurrencyConflict    = errors.New("concurrent update conflict, please retry")
)

var (
	ErrEventNotFound       = NotFound("event")
	ErrUserNotFound        = NotFound("user")
	ErrTransactionNotFound = NotFound("transaction")
	ErrVoucherNotFound     = NotFound("voucher")
	ErrCouponNotFound      = NotFound("coupon")
	ErrReferrerNotFound    = NotFound("referrer")
)

type notFoundError struct {
	resource string
}

func (e notFoundError) Error() string {
	return e.resource + " not found"
}

func (e notFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound returns an error naming the missing resource that still matches ErrNotFound.
func NotFound(resource string) error {
	return notFoundError{resource: resource}
}

type validationError struct {
	msg string
}

func (e validationError) Error() string {
	return e.msg
}

func (e validationError) Unwrap() error {
	return ErrValidation
}

// Invalid returns a validation error carrying msg as its message.
func Invalid(msg string) error {
	return validationError{msg: msg}
}
