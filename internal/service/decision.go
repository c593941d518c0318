package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/metrics"
)

// DecisionService applies organizer decisions to transactions awaiting
// confirmation.
type DecisionService struct {
	uow     ledger.UnitOfWork
	machine *TransactionService
}

func NewDecisionService(uow ledger.UnitOfWork, machine *TransactionService) *DecisionService {
	return &DecisionService{
		uow:     uow,
		machine: machine,
	}
}

func (s *DecisionService) Decide(ctx context.Context, transactionID, organizerID uint, decision domain.Decision) (domain.Transaction, error) {
	switch decision {
	case domain.DecisionConfirm:
		return s.Confirm(ctx, transactionID, organizerID)
	case domain.DecisionReject:
		return s.Reject(ctx, transactionID, organizerID)
	default:
		return domain.Transaction{}, domain.Invalid(fmt.Sprintf("unknown decision %q", decision))
	}
}

// Confirm marks the seats as sold. Nothing is released.
func (s *DecisionService) Confirm(ctx context.Context, transactionID, organizerID uint) (domain.Transaction, error) {
	now := s.machine.now()

	var (
		confirmed domain.Transaction
		change    domain.StatusChange
	)
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		tx, err := lt.Transactions().FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByIDForUpdate -> %w", err)
		}
		event, err := lt.Catalog().FindEvent(ctx, tx.EventID)
		if err != nil {
			return fmt.Errorf("lt.Catalog().FindEvent -> %w", err)
		}
		if err := checkDecidable(tx, event, organizerID); err != nil {
			return err
		}

		moved, err := lt.Transactions().Transition(ctx, tx.ID, []domain.TransactionStatus{domain.StatusWaitingConfirmation}, domain.StatusConfirmed, "")
		if err != nil {
			return fmt.Errorf("lt.Transactions().Transition -> %w", err)
		}
		if !moved {
			return ErrInvalidStateTransition
		}

		confirmed, err = lt.Transactions().FindByID(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByID -> %w", err)
		}

		change, err = loadStatusChange(ctx, lt, confirmed, tx.Status, now)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.TransactionTransitioned(string(domain.StatusConfirmed))
	zap.L().Info("transaction confirmed", zap.Uint("transactionID", confirmed.ID), zap.Uint("organizerID", organizerID))
	s.machine.emit(ctx, change)

	return confirmed, nil
}

// Reject compensates the transaction and gives every resource back.
func (s *DecisionService) Reject(ctx context.Context, transactionID, organizerID uint) (domain.Transaction, error) {
	return s.machine.settle(ctx, transactionID, domain.StatusRejected, func(tx domain.Transaction, event domain.Event) error {
		return checkDecidable(tx, event, organizerID)
	})
}

func checkDecidable(tx domain.Transaction, event domain.Event, organizerID uint) error {
	if event.OrganizerID != organizerID {
		return ErrUnauthorized
	}
	if tx.Status != domain.StatusWaitingConfirmation {
		return fmt.Errorf("%w: transaction is %s", ErrInvalidStateTransition, tx.Status)
	}
	return nil
}
