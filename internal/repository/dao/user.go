package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type User struct {
	ID uint `gorm:"primaryKey"`

	Email string `gorm:"unique;not null"`
	Name  string `gorm:"not null"`
	Role  string `gorm:"not null"` // "customer" or "organizer"

	ReferralCode  string `gorm:"uniqueIndex;not null"`
	ReferredBy    *uint  `gorm:"index"`
	PointsBalance int64  `gorm:"not null;default:0;check:points_balance >= 0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type UserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{
		db: db,
	}
}

func (d *UserDAO) Insert(ctx context.Context, user User) (User, error) {
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

func (d *UserDAO) FindByID(ctx context.Context, id uint) (User, error) {
	var user User

	result := d.db.WithContext(ctx).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, result.Error
	}

	return user, nil
}

func (d *UserDAO) FindByIDForUpdate(ctx context.Context, id uint) (User, error) {
	var user User

	result := d.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, result.Error
	}

	return user, nil
}

func (d *UserDAO) FindByReferralCode(ctx context.Context, code string) (User, error) {
	var user User

	result := d.db.WithContext(ctx).First(&user, "referral_code = ?", code)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}

		return User{}, result.Error
	}

	return user, nil
}

// SetReferredBy links userID to referrerID only while no referrer is set. The
// condition lives in the UPDATE so two racing requests cannot both succeed.
func (d *UserDAO) SetReferredBy(ctx context.Context, userID, referrerID uint) (bool, error) {
	result := d.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND referred_by IS NULL AND id <> ?", userID, referrerID).
		Updates(map[string]interface{}{
			"referred_by": referrerID,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
