package service

import (
	"context"
	"fmt"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
)

type PointsService struct {
	uow ledger.UnitOfWork
}

func NewPointsService(uow ledger.UnitOfWork) *PointsService {
	return &PointsService{
		uow: uow,
	}
}

func (s *PointsService) GetPointsSummary(ctx context.Context, userID uint) (domain.PointsSummary, error) {
	var summary domain.PointsSummary
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		balance, err := lt.Points().Balance(ctx, userID)
		if err != nil {
			return fmt.Errorf("lt.Points().Balance -> %w", err)
		}
		projected, err := lt.Points().ProjectBalance(ctx, userID)
		if err != nil {
			return fmt.Errorf("lt.Points().ProjectBalance -> %w", err)
		}
		history, err := lt.Points().History(ctx, userID)
		if err != nil {
			return fmt.Errorf("lt.Points().History -> %w", err)
		}

		summary = domain.PointsSummary{
			Balance:          balance,
			ProjectedBalance: projected,
			History:          history,
		}
		return nil
	})
	if err != nil {
		return domain.PointsSummary{}, err
	}

	return summary, nil
}
