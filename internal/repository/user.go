package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
)

type UserDAO interface {
	FindByID(ctx context.Context, id uint) (dao.User, error)
	FindByReferralCode(ctx context.Context, code string) (dao.User, error)
	SetReferredBy(ctx context.Context, userID, referrerID uint) (bool, error)
}

type EventDAO interface {
	FindByID(ctx context.Context, id uint) (dao.Event, error)
	DecrementSeats(ctx context.Context, eventID uint, count int) error
	IncrementSeats(ctx context.Context, eventID uint, count int) error
}

// CatalogRepository reads users and events owned by neighbouring subsystems.
type CatalogRepository struct {
	users  UserDAO
	events EventDAO
}

func NewCatalogRepository(users UserDAO, events EventDAO) *CatalogRepository {
	return &CatalogRepository{
		users:  users,
		events: events,
	}
}

func (r *CatalogRepository) FindUser(ctx context.Context, id uint) (domain.User, error) {
	found, err := r.users.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("r.users.FindByID -> %w", err)
	}

	return userDaoToDomain(found), nil
}

func (r *CatalogRepository) FindEvent(ctx context.Context, id uint) (domain.Event, error) {
	found, err := r.events.FindByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.events.FindByID -> %w", err)
	}

	return eventDaoToDomain(found), nil
}

// ReferralRepository owns the one-time referred_by link.
type ReferralRepository struct {
	dao UserDAO
}

func NewReferralRepository(dao UserDAO) *ReferralRepository {
	return &ReferralRepository{
		dao: dao,
	}
}

func (r *ReferralRepository) FindReferrer(ctx context.Context, referralCode string) (domain.User, error) {
	found, err := r.dao.FindByReferralCode(ctx, referralCode)
	if err != nil {
		if errors.Is(err, dao.ErrUserNotFound) {
			return domain.User{}, domain.ErrReferrerNotFound
		}
		return domain.User{}, fmt.Errorf("r.dao.FindByReferralCode -> %w", err)
	}

	return userDaoToDomain(found), nil
}

func (r *ReferralRepository) Link(ctx context.Context, userID, referrerID uint) (bool, error) {
	linked, err := r.dao.SetReferredBy(ctx, userID, referrerID)
	if err != nil {
		return false, fmt.Errorf("r.dao.SetReferredBy -> %w", err)
	}

	return linked, nil
}

func userDaoToDomain(u dao.User) domain.User {
	return domain.User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		ReferralCode:  u.ReferralCode,
		ReferredBy:    u.ReferredBy,
		PointsBalance: u.PointsBalance,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func eventDaoToDomain(e dao.Event) domain.Event {
	return domain.Event{
		ID:             e.ID,
		Name:           e.Name,
		OrganizerID:    e.OrganizerID,
		Price:          e.Price,
		TotalSeats:     e.TotalSeats,
		AvailableSeats: e.AvailableSeats,
		StartDate:      e.StartDate,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}
