package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Voucher struct {
	ID            uint   `gorm:"primaryKey"`
	EventID       uint   `gorm:"not null;uniqueIndex:idx_vouchers_event_code"`
	Code          string `gorm:"not null;uniqueIndex:idx_vouchers_event_code"`
	DiscountType  string `gorm:"not null"` // "PERCENTAGE" or "FIXED"
	DiscountValue int64  `gorm:"not null"`
	MaxUses       int    `gorm:"not null"`
	CurrentUses   int    `gorm:"not null;default:0;check:current_uses >= 0"`
	StartDate     time.Time
	EndDate       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Coupon struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"not null;uniqueIndex:idx_coupons_user_code"`
	Code          string `gorm:"not null;uniqueIndex:idx_coupons_user_code"`
	DiscountType  string `gorm:"not null"`
	DiscountValue int64  `gorm:"not null"`
	IsUsed        bool   `gorm:"not null;default:false"`
	ExpiresAt     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DiscountDAO struct {
	db *gorm.DB
}

func NewDiscountDAO(db *gorm.DB) *DiscountDAO {
	return &DiscountDAO{
		db: db,
	}
}

func (d *DiscountDAO) InsertVoucher(ctx context.Context, voucher Voucher) (Voucher, error) {
	if err := d.db.WithContext(ctx).Create(&voucher).Error; err != nil {
		return Voucher{}, err
	}
	return voucher, nil
}

func (d *DiscountDAO) InsertCoupon(ctx context.Context, coupon Coupon) (Coupon, error) {
	if err := d.db.WithContext(ctx).Create(&coupon).Error; err != nil {
		return Coupon{}, err
	}
	return coupon, nil
}

func (d *DiscountDAO) FindVoucher(ctx context.Context, eventID uint, code string) (Voucher, error) {
	var voucher Voucher

	result := d.db.WithContext(ctx).Where("event_id = ? AND code = ?", eventID, code).First(&voucher)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Voucher{}, ErrVoucherNotFound
		}

		return Voucher{}, result.Error
	}

	return voucher, nil
}

func (d *DiscountDAO) FindVoucherByID(ctx context.Context, id uint) (Voucher, error) {
	var voucher Voucher

	result := d.db.WithContext(ctx).First(&voucher, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Voucher{}, ErrVoucherNotFound
		}

		return Voucher{}, result.Error
	}

	return voucher, nil
}

// IncrementVoucherUses is "increment iff current_uses < max_uses" as one statement.
func (d *DiscountDAO) IncrementVoucherUses(ctx context.Context, voucherID uint) error {
	result := d.db.WithContext(ctx).Model(&Voucher{}).
		Where("id = ? AND current_uses < max_uses", voucherID).
		Updates(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := d.FindVoucherByID(ctx, voucherID); err != nil {
			return err
		}
		return ErrVoucherExhausted
	}

	return nil
}

// DecrementVoucherUses floors at zero; a voucher already at zero is left alone.
func (d *DiscountDAO) DecrementVoucherUses(ctx context.Context, voucherID uint) error {
	return d.db.WithContext(ctx).Model(&Voucher{}).
		Where("id = ? AND current_uses > 0", voucherID).
		Updates(map[string]interface{}{
			"current_uses": gorm.Expr("current_uses - 1"),
			"updated_at":   time.Now(),
		}).Error
}

func (d *DiscountDAO) FindCoupon(ctx context.Context, userID uint, code string) (Coupon, error) {
	var coupon Coupon

	result := d.db.WithContext(ctx).Where("user_id = ? AND code = ?", userID, code).First(&coupon)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Coupon{}, ErrCouponNotFound
		}

		return Coupon{}, result.Error
	}

	return coupon, nil
}

func (d *DiscountDAO) MarkCouponUsed(ctx context.Context, couponID, userID uint) error {
	result := d.db.WithContext(ctx).Model(&Coupon{}).
		Where("id = ? AND user_id = ? AND is_used = ?", couponID, userID, false).
		Updates(map[string]interface{}{
			"is_used":    true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := d.db.WithContext(ctx).Model(&Coupon{}).
			Where("id = ? AND user_id = ?", couponID, userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrCouponNotFound
		}
		return ErrCouponAlreadyUsed
	}

	return nil
}

func (d *DiscountDAO) MarkCouponUnused(ctx context.Context, couponID, userID uint) error {
	return d.db.WithContext(ctx).Model(&Coupon{}).
		Where("id = ? AND user_id = ?", couponID, userID).
		Updates(map[string]interface{}{
			"is_used":    false,
			"updated_at": time.Now(),
		}).Error
}
