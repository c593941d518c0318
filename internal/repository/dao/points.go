package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type PointsHistory struct {
	ID            uint       `gorm:"primaryKey"`
	UserID        uint       `gorm:"not null;index"`
	Points        int64      `gorm:"not null"`
	Type          string     `gorm:"not null;index"` // "EARNED", "USED" or "EXPIRED"
	Reason        string     `gorm:"not null"`
	TransactionID *uint      `gorm:"index"`
	ExpiresAt     *time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PointsHistory) TableName() string {
	return "points_history"
}

type PointsDAO struct {
	db *gorm.DB
}

func NewPointsDAO(db *gorm.DB) *PointsDAO {
	return &PointsDAO{
		db: db,
	}
}

// AdjustBalance adds delta to the user's balance. Negative deltas only apply
// while the balance covers them.
func (d *PointsDAO) AdjustBalance(ctx context.Context, userID uint, delta int64) error {
	query := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID)
	if delta < 0 {
		query = query.Where("points_balance >= ?", -delta)
	}

	result := query.Updates(map[string]interface{}{
		"points_balance": gorm.Expr("points_balance + ?", delta),
		"updated_at":     time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := NewUserDAO(d.db).FindByID(ctx, userID); err != nil {
			return err
		}
		return ErrInsufficientPoints
	}

	return nil
}

func (d *PointsDAO) Append(ctx context.Context, entry PointsHistory) (PointsHistory, error) {
	if err := d.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return PointsHistory{}, err
	}
	return entry, nil
}

func (d *PointsDAO) FindByUserID(ctx context.Context, userID uint) ([]PointsHistory, error) {
	var entries []PointsHistory

	result := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

func (d *PointsDAO) SumActive(ctx context.Context, userID uint) (int64, error) {
	var total int64

	result := d.db.WithContext(ctx).Model(&PointsHistory{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND type <> ?", userID, "EXPIRED").
		Scan(&total)
	if result.Error != nil {
		return 0, result.Error
	}

	return total, nil
}

func (d *PointsDAO) FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]PointsHistory, error) {
	var entries []PointsHistory

	result := d.db.WithContext(ctx).
		Where("type = ? AND expires_at IS NOT NULL AND expires_at <= ?", "EARNED", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&entries)
	if result.Error != nil {
		return nil, result.Error
	}

	return entries, nil
}

// Supersede rewrites an EARNED row to EXPIRED and clears its expiry. It
// reports false when another sweep got there first.
func (d *PointsDAO) Supersede(ctx context.Context, entryID uint) (bool, error) {
	result := d.db.WithContext(ctx).Model(&PointsHistory{}).
		Where("id = ? AND type = ?", entryID, "EARNED").
		Updates(map[string]interface{}{
			"type":       "EXPIRED",
			"expires_at": nil,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
