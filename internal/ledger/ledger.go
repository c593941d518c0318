// Package ledger declares the invariant-preserving operations over the shared
// counters of the booking engine: seats, voucher uses, coupon flags and points
// balances. Every operation runs inside the caller's unit of work and has no
// transaction boundary of its own.
package ledger

import (
	"context"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

// Inventory guards Event.AvailableSeats.
type Inventory interface {
	// Reserve decrements available seats iff at least count remain,
	// otherwise it fails with domain.ErrInsufficientInventory.
	Reserve(ctx context.Context, eventID uint, count int) error
	// Release gives count seats back, never above the event's total.
	Release(ctx context.Context, eventID uint, count int) error
}

// Discounts guards Voucher.CurrentUses and Coupon.IsUsed.
type Discounts interface {
	FindVoucher(ctx context.Context, eventID uint, code string) (domain.Voucher, error)
	// RedeemVoucher increments uses iff CurrentUses < MaxUses, otherwise
	// domain.ErrVoucherExhausted.
	RedeemVoucher(ctx context.Context, voucherID uint) error
	// UnredeemVoucher decrements uses with a floor at zero.
	UnredeemVoucher(ctx context.Context, voucherID uint) error

	// FindCoupon looks a coupon up by (code, userID); coupons are never
	// resolved across users.
	FindCoupon(ctx context.Context, userID uint, code string) (domain.Coupon, error)
	RedeemCoupon(ctx context.Context, couponID, userID uint) error
	UnredeemCoupon(ctx context.Context, couponID, userID uint) error
}

// Points keeps User.PointsBalance and the points history in lockstep: each
// balance change appends exactly one history row.
type Points interface {
	Balance(ctx context.Context, userID uint) (int64, error)
	Debit(ctx context.Context, userID uint, amount int64, reason string, txID *uint) error
	Credit(ctx context.Context, userID uint, amount int64, reason string, txID *uint, expiresAt *time.Time) error
	History(ctx context.Context, userID uint) ([]domain.PointsEntry, error)
	ProjectBalance(ctx context.Context, userID uint) (int64, error)

	FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]domain.PointsEntry, error)
	// Expire removes an EARNED grant from the balance, appends an EXPIRED row
	// and supersedes the grant. It reports false when the entry was already
	// superseded.
	Expire(ctx context.Context, entry domain.PointsEntry) (bool, error)
}

// Referrals owns the one-time User.ReferredBy link.
type Referrals interface {
	FindReferrer(ctx context.Context, referralCode string) (domain.User, error)
	// Link sets userID's referrer iff none is set yet and reports whether
	// this call set it.
	Link(ctx context.Context, userID, referrerID uint) (bool, error)
}

type Transactions interface {
	Create(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	FindByID(ctx context.Context, id uint) (domain.Transaction, error)
	// FindByIDForUpdate locks the row for the rest of the unit of work.
	FindByIDForUpdate(ctx context.Context, id uint) (domain.Transaction, error)
	FindByUserID(ctx context.Context, userID uint) ([]domain.Transaction, error)
	// Transition moves the row to `to` iff its current status is one of
	// `from`, applying proofRef when non-empty. It reports whether it moved.
	Transition(ctx context.Context, id uint, from []domain.TransactionStatus, to domain.TransactionStatus, proofRef string) (bool, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]domain.Transaction, error)
}

// Catalog is read access to entities owned by other subsystems.
type Catalog interface {
	FindEvent(ctx context.Context, id uint) (domain.Event, error)
	FindUser(ctx context.Context, id uint) (domain.User, error)
}

// Tx exposes every ledger bound to one atomic unit.
type Tx interface {
	Inventory() Inventory
	Discounts() Discounts
	Points() Points
	Referrals() Referrals
	Transactions() Transactions
	Catalog() Catalog
}

// UnitOfWork runs fn as a single all-or-nothing unit. A non-nil error from fn
// rolls every ledger write back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}
