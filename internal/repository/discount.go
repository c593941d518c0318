package repository

import (
	"context"
	"fmt"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
)

type DiscountDAO interface {
	FindVoucher(ctx context.Context, eventID uint, code string) (dao.Voucher, error)
	IncrementVoucherUses(ctx context.Context, voucherID uint) error
	DecrementVoucherUses(ctx context.Context, voucherID uint) error
	FindCoupon(ctx context.Context, userID uint, code string) (dao.Coupon, error)
	MarkCouponUsed(ctx context.Context, couponID, userID uint) error
	MarkCouponUnused(ctx context.Context, couponID, userID uint) error
}

type DiscountRepository struct {
	dao DiscountDAO
}

func NewDiscountRepository(dao DiscountDAO) *DiscountRepository {
	return &DiscountRepository{
		dao: dao,
	}
}

func (r *DiscountRepository) FindVoucher(ctx context.Context, eventID uint, code string) (domain.Voucher, error) {
	found, err := r.dao.FindVoucher(ctx, eventID, code)
	if err != nil {
		return domain.Voucher{}, fmt.Errorf("r.dao.FindVoucher -> %w", err)
	}

	return domain.Voucher{
		ID:            found.ID,
		EventID:       found.EventID,
		Code:          found.Code,
		DiscountType:  domain.DiscountType(found.DiscountType),
		DiscountValue: found.DiscountValue,
		MaxUses:       found.MaxUses,
		CurrentUses:   found.CurrentUses,
		StartDate:     found.StartDate,
		EndDate:       found.EndDate,
	}, nil
}

func (r *DiscountRepository) RedeemVoucher(ctx context.Context, voucherID uint) error {
	if err := r.dao.IncrementVoucherUses(ctx, voucherID); err != nil {
		return fmt.Errorf("r.dao.IncrementVoucherUses -> %w", err)
	}
	return nil
}

func (r *DiscountRepository) UnredeemVoucher(ctx context.Context, voucherID uint) error {
	if err := r.dao.DecrementVoucherUses(ctx, voucherID); err != nil {
		return fmt.Errorf("r.dao.DecrementVoucherUses -> %w", err)
	}
	return nil
}

func (r *DiscountRepository) FindCoupon(ctx context.Context, userID uint, code string) (domain.Coupon, error) {
	found, err := r.dao.FindCoupon(ctx, userID, code)
	if err != nil {
		return domain.Coupon{}, fmt.Errorf("r.dao.FindCoupon -> %w", err)
	}

	return domain.Coupon{
		ID:            found.ID,
		UserID:        found.UserID,
		Code:          found.Code,
		DiscountType:  domain.DiscountType(found.DiscountType),
		DiscountValue: found.DiscountValue,
		IsUsed:        found.IsUsed,
		ExpiresAt:     found.ExpiresAt,
	}, nil
}

func (r *DiscountRepository) RedeemCoupon(ctx context.Context, couponID, userID uint) error {
	if err := r.dao.MarkCouponUsed(ctx, couponID, userID); err != nil {
		return fmt.Errorf("r.dao.MarkCouponUsed -> %w", err)
	}
	return nil
}

func (r *DiscountRepository) UnredeemCoupon(ctx context.Context, couponID, userID uint) error {
	if err := r.dao.MarkCouponUnused(ctx, couponID, userID); err != nil {
		return fmt.Errorf("r.dao.MarkCouponUnused -> %w", err)
	}
	return nil
}
