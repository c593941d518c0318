package domain

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Voucher is an event-scoped discount with a shared use counter.
type Voucher struct {
	ID            uint         `json:"id"`
	EventID       uint         `json:"event_id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	MaxUses       int          `json:"max_uses"`
	CurrentUses   int          `json:"current_uses"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"`
}

// Applicable reports whether the voucher can still be redeemed at now.
func (v Voucher) Applicable(now time.Time) bool {
	if v.CurrentUses >= v.MaxUses {
		return false
	}
	return !now.Before(v.StartDate) && !now.After(v.EndDate)
}

// Coupon is a single-use discount owned by one user.
type Coupon struct {
	ID            uint         `json:"id"`
	UserID        uint         `json:"user_id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discount_type"`
	DiscountValue int64        `json:"discount_value"`
	IsUsed        bool         `json:"is_used"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

func (c Coupon) Applicable(now time.Time) bool {
	return !c.IsUsed && now.Before(c.ExpiresAt)
}
