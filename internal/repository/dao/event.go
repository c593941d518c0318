package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Event struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	OrganizerID    uint   `gorm:"not null;index"`
	Price          int64  `gorm:"not null"`
	TotalSeats     int    `gorm:"not null"`
	AvailableSeats int    `gorm:"not null;check:available_seats >= 0"`
	StartDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type EventDAO struct {
	db *gorm.DB
}

func NewEventDAO(db *gorm.DB) *EventDAO {
	return &EventDAO{
		db: db,
	}
}

func (d *EventDAO) Insert(ctx context.Context, event Event) (Event, error) {
	if err := d.db.WithContext(ctx).Create(&event).Error; err != nil {
		return Event{}, err
	}
	return event, nil
}

func (d *EventDAO) FindByID(ctx context.Context, id uint) (Event, error) {
	var event Event

	result := d.db.WithContext(ctx).First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

// DecrementSeats is "decrement iff available_seats >= count" as one statement.
func (d *EventDAO) DecrementSeats(ctx context.Context, eventID uint, count int) error {
	result := d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND available_seats >= ?", eventID, count).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats - ?", count),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, eventID); err != nil {
			return err
		}
		return ErrInsufficientInventory
	}

	return nil
}

// IncrementSeats gives seats back without ever exceeding total_seats.
func (d *EventDAO) IncrementSeats(ctx context.Context, eventID uint, count int) error {
	result := d.db.WithContext(ctx).Model(&Event{}).
		Where("id = ? AND available_seats + ? <= total_seats", eventID, count).
		Updates(map[string]interface{}{
			"available_seats": gorm.Expr("available_seats + ?", count),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := d.FindByID(ctx, eventID); err != nil {
			return err
		}
		return ErrInvalidStateTransition
	}

	return nil
}
