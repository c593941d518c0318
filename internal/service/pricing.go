package service

import (
	"github.com/shopspring/decimal"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type Quote struct {
	Subtotal   int64
	Discount   int64
	PointsUsed int64
	Total      int64
}

// Price sums every voucher and coupon discount against the original subtotal,
// then subtracts points. The total never goes below zero.
func Price(unitPrice int64, ticketCount int, vouchers []domain.Voucher, coupons []domain.Coupon, pointsUsed int64) Quote {
	subtotal := decimal.NewFromInt(unitPrice).Mul(decimal.NewFromInt(int64(ticketCount)))

	discount := decimal.Zero
	for _, v := range vouchers {
		discount = discount.Add(discountOf(v.DiscountType, v.DiscountValue, subtotal))
	}
	for _, c := range coupons {
		discount = discount.Add(discountOf(c.DiscountType, c.DiscountValue, subtotal))
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	total := subtotal.Sub(discount).Sub(decimal.NewFromInt(pointsUsed))
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal:   subtotal.IntPart(),
		Discount:   discount.IntPart(),
		PointsUsed: pointsUsed,
		Total:      total.IntPart(),
	}
}

func discountOf(kind domain.DiscountType, value int64, subtotal decimal.Decimal) decimal.Decimal {
	if value <= 0 {
		return decimal.Zero
	}

	switch kind {
	case domain.DiscountPercentage:
		pct := decimal.NewFromInt(value)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		return subtotal.Mul(pct).Div(hundred).Floor()
	default:
		return decimal.NewFromInt(value)
	}
}
