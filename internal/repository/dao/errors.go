package dao

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

var (
	ErrUserNotFound           = domain.ErrUserNotFound
	ErrEventNotFound          = domain.ErrEventNotFound
	ErrTransactionNotFound    = domain.ErrTransactionNotFound
	ErrVoucherNotFound        = domain.ErrVoucherNotFound
	ErrCouponNotFound         = domain.ErrCouponNotFound
	ErrInsufficientInventory  = domain.ErrInsufficientInventory
	ErrInsufficientPoints     = domain.ErrInsufficientPoints
	ErrVoucherExhausted       = domain.ErrVoucherExhausted
	ErrCouponAlreadyUsed      = domain.ErrCouponAlreadyUsed
	ErrInvalidStateTransition = domain.ErrInvalidStateTransition
)

// IsRetryable reports whether err is a postgres serialization failure or
// deadlock, both of which are safe to retry as a whole unit of work.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}
