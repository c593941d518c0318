package repository

import (
	"context"
	"fmt"
)

type InventoryRepository struct {
	dao EventDAO
}

func NewInventoryRepository(dao EventDAO) *InventoryRepository {
	return &InventoryRepository{
		dao: dao,
	}
}

func (r *InventoryRepository) Reserve(ctx context.Context, eventID uint, count int) error {
	if err := r.dao.DecrementSeats(ctx, eventID, count); err != nil {
		return fmt.Errorf("r.dao.DecrementSeats -> %w", err)
	}
	return nil
}

func (r *InventoryRepository) Release(ctx context.Context, eventID uint, count int) error {
	if err := r.dao.IncrementSeats(ctx, eventID, count); err != nil {
		return fmt.Errorf("r.dao.IncrementSeats -> %w", err)
	}
	return nil
}
