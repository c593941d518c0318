package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
)

type PointsDAO interface {
	AdjustBalance(ctx context.Context, userID uint, delta int64) error
	Append(ctx context.Context, entry dao.PointsHistory) (dao.PointsHistory, error)
	FindByUserID(ctx context.Context, userID uint) ([]dao.PointsHistory, error)
	SumActive(ctx context.Context, userID uint) (int64, error)
	FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]dao.PointsHistory, error)
	Supersede(ctx context.Context, entryID uint) (bool, error)
}

type PointsUserDAO interface {
	FindByID(ctx context.Context, id uint) (dao.User, error)
	FindByIDForUpdate(ctx context.Context, id uint) (dao.User, error)
}

type PointsRepository struct {
	dao   PointsDAO
	users PointsUserDAO
}

func NewPointsRepository(dao PointsDAO, users PointsUserDAO) *PointsRepository {
	return &PointsRepository{
		dao:   dao,
		users: users,
	}
}

func (r *PointsRepository) Balance(ctx context.Context, userID uint) (int64, error) {
	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("r.users.FindByID -> %w", err)
	}
	return user.PointsBalance, nil
}

func (r *PointsRepository) Debit(ctx context.Context, userID uint, amount int64, reason string, txID *uint) error {
	if err := r.dao.AdjustBalance(ctx, userID, -amount); err != nil {
		return fmt.Errorf("r.dao.AdjustBalance -> %w", err)
	}

	_, err := r.dao.Append(ctx, dao.PointsHistory{
		UserID:        userID,
		Points:        -amount,
		Type:          string(domain.PointsUsed),
		Reason:        reason,
		TransactionID: txID,
	})
	if err != nil {
		return fmt.Errorf("r.dao.Append -> %w", err)
	}

	return nil
}

func (r *PointsRepository) Credit(ctx context.Context, userID uint, amount int64, reason string, txID *uint, expiresAt *time.Time) error {
	if err := r.dao.AdjustBalance(ctx, userID, amount); err != nil {
		return fmt.Errorf("r.dao.AdjustBalance -> %w", err)
	}

	_, err := r.dao.Append(ctx, dao.PointsHistory{
		UserID:        userID,
		Points:        amount,
		Type:          string(domain.PointsEarned),
		Reason:        reason,
		TransactionID: txID,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		return fmt.Errorf("r.dao.Append -> %w", err)
	}

	return nil
}

func (r *PointsRepository) History(ctx context.Context, userID uint) ([]domain.PointsEntry, error) {
	rows, err := r.dao.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByUserID -> %w", err)
	}

	return pointsDaosToDomain(rows), nil
}

func (r *PointsRepository) ProjectBalance(ctx context.Context, userID uint) (int64, error) {
	total, err := r.dao.SumActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.SumActive -> %w", err)
	}
	return total, nil
}

func (r *PointsRepository) FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]domain.PointsEntry, error) {
	rows, err := r.dao.FindDueForExpiry(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindDueForExpiry -> %w", err)
	}

	return pointsDaosToDomain(rows), nil
}

func (r *PointsRepository) Expire(ctx context.Context, entry domain.PointsEntry) (bool, error) {
	superseded, err := r.dao.Supersede(ctx, entry.ID)
	if err != nil {
		return false, fmt.Errorf("r.dao.Supersede -> %w", err)
	}
	if !superseded {
		return false, nil
	}

	user, err := r.users.FindByIDForUpdate(ctx, entry.UserID)
	if err != nil {
		return false, fmt.Errorf("r.users.FindByIDForUpdate -> %w", err)
	}

	removed, carried := domain.SplitExpiry(entry.Points, user.PointsBalance)
	if removed > 0 {
		if err := r.dao.AdjustBalance(ctx, entry.UserID, -removed); err != nil {
			return false, fmt.Errorf("r.dao.AdjustBalance -> %w", err)
		}
	}

	entryID := entry.ID
	_, err = r.dao.Append(ctx, dao.PointsHistory{
		UserID: entry.UserID,
		Points: -removed,
		Type:   string(domain.PointsExpired),
		Reason: fmt.Sprintf("%s (entry %d)", domain.ReasonPointsExpired, entryID),
	})
	if err != nil {
		return false, fmt.Errorf("r.dao.Append -> %w", err)
	}

	if carried > 0 {
		_, err = r.dao.Append(ctx, dao.PointsHistory{
			UserID: entry.UserID,
			Points: carried,
			Type:   string(domain.PointsEarned),
			Reason: fmt.Sprintf("%s (entry %d)", domain.ReasonSpentBeforeExpiry, entryID),
		})
		if err != nil {
			return false, fmt.Errorf("r.dao.Append -> %w", err)
		}
	}

	return true, nil
}

func pointsDaosToDomain(rows []dao.PointsHistory) []domain.PointsEntry {
	entries := make([]domain.PointsEntry, len(rows))
	for i, row := range rows {
		entries[i] = domain.PointsEntry{
			ID:            row.ID,
			UserID:        row.UserID,
			Points:        row.Points,
			Type:          domain.PointsType(row.Type),
			Reason:        row.Reason,
			TransactionID: row.TransactionID,
			ExpiresAt:     row.ExpiresAt,
			CreatedAt:     row.CreatedAt,
		}
	}
	return entries
}
