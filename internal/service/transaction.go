package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/metrics"
)

// notifyTimeout bounds delivery of one status change once the request that
// caused it is gone.
const notifyTimeout = 5 * time.Second

var (
	ErrTransactionNotFound    = domain.ErrTransactionNotFound
	ErrEventNotFound          = domain.ErrEventNotFound
	ErrUserNotFound           = domain.ErrUserNotFound
	ErrInsufficientInventory  = domain.ErrInsufficientInventory
	ErrInsufficientPoints     = domain.ErrInsufficientPoints
	ErrInvalidStateTransition = domain.ErrInvalidStateTransition
	ErrUnauthorized           = domain.ErrUnauthorized
)

// TransactionService is the booking state machine. It is the only writer of
// transaction status; every compensating transition goes through compensate.
type TransactionService struct {
	uow      ledger.UnitOfWork
	notifier Notifier
	policy   Policy
	now      func() time.Time
}

func NewTransactionService(uow ledger.UnitOfWork, notifier Notifier, policy Policy) *TransactionService {
	return &TransactionService{
		uow:      uow,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for pricing windows and expiry stamps.
func (s *TransactionService) WithClock(now func() time.Time) *TransactionService {
	s.now = now
	return s
}

func (s *TransactionService) Create(ctx context.Context, in domain.CreateTransactionInput) (domain.Transaction, error) {
	if in.TicketCount < 1 {
		return domain.Transaction{}, domain.Invalid("ticket count must be at least 1")
	}
	if in.PointsUsed < 0 {
		return domain.Transaction{}, domain.Invalid("points used must not be negative")
	}

	now := s.now()

	var (
		created domain.Transaction
		change  domain.StatusChange
	)
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		event, err := lt.Catalog().FindEvent(ctx, in.EventID)
		if err != nil {
			return fmt.Errorf("lt.Catalog().FindEvent -> %w", err)
		}
		user, err := lt.Catalog().FindUser(ctx, in.UserID)
		if err != nil {
			return fmt.Errorf("lt.Catalog().FindUser -> %w", err)
		}

		if event.AvailableSeats < in.TicketCount {
			return ErrInsufficientInventory
		}
		if in.PointsUsed > user.PointsBalance {
			return ErrInsufficientPoints
		}

		vouchers, err := applicableVouchers(ctx, lt.Discounts(), event.ID, in.VoucherCodes, now)
		if err != nil {
			return err
		}
		coupons, err := applicableCoupons(ctx, lt.Discounts(), user.ID, in.CouponCodes, now)
		if err != nil {
			return err
		}

		quote := Price(event.Price, in.TicketCount, vouchers, coupons, in.PointsUsed)

		if err := lt.Inventory().Reserve(ctx, event.ID, in.TicketCount); err != nil {
			return fmt.Errorf("lt.Inventory().Reserve -> %w", err)
		}

		tx := domain.Transaction{
			UserID:         user.ID,
			EventID:        event.ID,
			TicketCount:    in.TicketCount,
			Status:         domain.StatusWaitingPayment,
			Subtotal:       quote.Subtotal,
			DiscountAmount: quote.Discount,
			TotalAmount:    quote.Total,
			PointsUsed:     quote.PointsUsed,
		}
		for _, v := range vouchers {
			if err := lt.Discounts().RedeemVoucher(ctx, v.ID); err != nil {
				return fmt.Errorf("lt.Discounts().RedeemVoucher -> %w", err)
			}
			tx.VoucherIDs = append(tx.VoucherIDs, v.ID)
		}
		for _, c := range coupons {
			if err := lt.Discounts().RedeemCoupon(ctx, c.ID, user.ID); err != nil {
				return fmt.Errorf("lt.Discounts().RedeemCoupon -> %w", err)
			}
			tx.CouponIDs = append(tx.CouponIDs, c.ID)
		}

		if quote.Total == 0 {
			tx.Status = domain.StatusConfirmed
		} else {
			expiresAt := now.Add(s.policy.PaymentWindow)
			tx.ExpiresAt = &expiresAt
		}

		created, err = lt.Transactions().Create(ctx, tx)
		if err != nil {
			return fmt.Errorf("lt.Transactions().Create -> %w", err)
		}

		if in.PointsUsed > 0 {
			reason := fmt.Sprintf("used for transaction %d", created.ID)
			if err := lt.Points().Debit(ctx, user.ID, in.PointsUsed, reason, &created.ID); err != nil {
				return fmt.Errorf("lt.Points().Debit -> %w", err)
			}
		}

		if code := strings.TrimSpace(in.ReferralCode); code != "" {
			referrer, err := lt.Referrals().FindReferrer(ctx, code)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				zap.L().Info("skipping unknown referral code", zap.Uint("userID", user.ID))
			case err != nil:
				return fmt.Errorf("lt.Referrals().FindReferrer -> %w", err)
			case referrer.ID != user.ID:
				if _, err := grantReferral(ctx, lt, user.ID, referrer.ID, s.policy, now); err != nil {
					return err
				}
			}
		}

		change = statusChange(created, "", user, event, now)
		return nil
	})
	if err != nil {
		metrics.TransactionCreated("failed")
		return domain.Transaction{}, err
	}

	metrics.TransactionCreated(string(created.Status))
	zap.L().Info("transaction created",
		zap.Uint("transactionID", created.ID),
		zap.Uint("eventID", created.EventID),
		zap.String("status", string(created.Status)),
		zap.Int64("totalAmount", created.TotalAmount),
	)
	s.emit(ctx, change)

	return created, nil
}

func (s *TransactionService) UploadPaymentProof(ctx context.Context, transactionID, userID uint, proofRef string) (domain.Transaction, error) {
	proofRef = strings.TrimSpace(proofRef)
	if proofRef == "" {
		return domain.Transaction{}, domain.Invalid("payment proof reference is required")
	}

	now := s.now()

	var (
		updated domain.Transaction
		change  domain.StatusChange
	)
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		tx, err := lt.Transactions().FindByIDForUpdate(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByIDForUpdate -> %w", err)
		}
		if tx.UserID != userID {
			return ErrUnauthorized
		}
		if !tx.PaymentWindowOpen(now) {
			return fmt.Errorf("%w: payment window is closed", ErrInvalidStateTransition)
		}

		moved, err := lt.Transactions().Transition(ctx, tx.ID, []domain.TransactionStatus{tx.Status}, domain.StatusWaitingConfirmation, proofRef)
		if err != nil {
			return fmt.Errorf("lt.Transactions().Transition -> %w", err)
		}
		if !moved {
			return ErrInvalidStateTransition
		}

		updated, err = lt.Transactions().FindByID(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByID -> %w", err)
		}

		change, err = loadStatusChange(ctx, lt, updated, tx.Status, now)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.TransactionTransitioned(string(updated.Status))
	s.emit(ctx, change)

	return updated, nil
}

// Cancel lets the owner abandon a non-terminal transaction and gives every
// reserved resource back.
func (s *TransactionService) Cancel(ctx context.Context, transactionID, userID uint) (domain.Transaction, error) {
	return s.settle(ctx, transactionID, domain.StatusCanceled, func(tx domain.Transaction, _ domain.Event) error {
		if tx.UserID != userID {
			return ErrUnauthorized
		}
		return nil
	})
}

// Expire is the sweeper's entry into the state machine.
func (s *TransactionService) Expire(ctx context.Context, transactionID uint) (domain.Transaction, error) {
	now := s.now()
	return s.settle(ctx, transactionID, domain.StatusExpired, func(tx domain.Transaction, _ domain.Event) error {
		if tx.ExpiresAt == nil || tx.ExpiresAt.After(now) {
			return fmt.Errorf("%w: payment window still open", ErrInvalidStateTransition)
		}
		return nil
	})
}

// Compensate reverses every resource effect of a transaction and moves it to
// the terminal target. A second call on the same transaction fails with
// ErrInvalidStateTransition and changes nothing.
func (s *TransactionService) Compensate(ctx context.Context, transactionID uint, target domain.TransactionStatus) (domain.Transaction, error) {
	switch target {
	case domain.StatusCanceled, domain.StatusRejected, domain.StatusExpired:
	default:
		return domain.Transaction{}, domain.Invalid(fmt.Sprintf("%s is not a compensating status", target))
	}

	return s.settle(ctx, transactionID, target, nil)
}

func (s *TransactionService) GetTransaction(ctx context.Context, transactionID uint, principal domain.Principal) (domain.Transaction, error) {
	var found domain.Transaction
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		tx, err := lt.Transactions().FindByID(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByID -> %w", err)
		}

		if tx.UserID != principal.UserID {
			event, err := lt.Catalog().FindEvent(ctx, tx.EventID)
			if err != nil {
				return fmt.Errorf("lt.Catalog().FindEvent -> %w", err)
			}
			if event.OrganizerID != principal.UserID {
				return ErrUnauthorized
			}
		}

		found = tx
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	return found, nil
}

func (s *TransactionService) ListUserTransactions(ctx context.Context, userID uint) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	err := s.uow.Do(ctx, func(lt ledger.Tx) error {
		var err error
		txs, err = lt.Transactions().FindByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("lt.Transactions().FindByUserID -> %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// settle runs compensate in its own unit after check has approved the locked
// transaction, then emits the change.
func (s *TransactionService) settle(ctx context.Context, transactionID uint, target domain.TransactionStatus, check func(domain.Transaction, domain.Event) error) (domain.Transaction, error) {
	now := s.now()

	var (
		settled domain.Transaction
		change  domain.StatusChange
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

		if check != nil {
			if err := check(tx, event); err != nil {
				return err
			}
		}

		settled, change, err = s.compensate(ctx, lt, tx, target, now)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	metrics.TransactionTransitioned(string(target))
	zap.L().Info("transaction settled",
		zap.Uint("transactionID", settled.ID),
		zap.String("from", string(change.OldStatus)),
		zap.String("to", string(target)),
	)
	s.emit(ctx, change)

	return settled, nil
}

// compensate claims the transition first so a concurrent or repeated call
// finds nothing to move and releases nothing.
func (s *TransactionService) compensate(ctx context.Context, lt ledger.Tx, tx domain.Transaction, target domain.TransactionStatus, now time.Time) (domain.Transaction, domain.StatusChange, error) {
	if tx.Status.IsTerminal() {
		return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("%w: transaction is already %s", ErrInvalidStateTransition, tx.Status)
	}
	if !tx.Status.CanTransitionTo(target) {
		return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("%w: %s to %s", ErrInvalidStateTransition, tx.Status, target)
	}

	moved, err := lt.Transactions().Transition(ctx, tx.ID, []domain.TransactionStatus{tx.Status}, target, "")
	if err != nil {
		return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Transactions().Transition -> %w", err)
	}
	if !moved {
		return domain.Transaction{}, domain.StatusChange{}, ErrInvalidStateTransition
	}

	if err := lt.Inventory().Release(ctx, tx.EventID, tx.TicketCount); err != nil {
		return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Inventory().Release -> %w", err)
	}
	for _, id := range tx.VoucherIDs {
		if err := lt.Discounts().UnredeemVoucher(ctx, id); err != nil {
			return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Discounts().UnredeemVoucher -> %w", err)
		}
	}
	for _, id := range tx.CouponIDs {
		if err := lt.Discounts().UnredeemCoupon(ctx, id, tx.UserID); err != nil {
			return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Discounts().UnredeemCoupon -> %w", err)
		}
	}
	if tx.PointsUsed > 0 {
		expiresAt := now.Add(s.policy.RefundPointsTTL)
		reason := fmt.Sprintf("refund for transaction %d", tx.ID)
		if err := lt.Points().Credit(ctx, tx.UserID, tx.PointsUsed, reason, &tx.ID, &expiresAt); err != nil {
			return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Points().Credit -> %w", err)
		}
	}

	settled, err := lt.Transactions().FindByID(ctx, tx.ID)
	if err != nil {
		return domain.Transaction{}, domain.StatusChange{}, fmt.Errorf("lt.Transactions().FindByID -> %w", err)
	}

	change, err := loadStatusChange(ctx, lt, settled, tx.Status, now)
	if err != nil {
		return domain.Transaction{}, domain.StatusChange{}, err
	}

	return settled, change, nil
}

func (s *TransactionService) emit(ctx context.Context, change domain.StatusChange) {
	if s.notifier == nil {
		return
	}

	// The change is already committed, so a caller that disconnects must not
	// cancel its delivery.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, change); err != nil {
		zap.L().Warn("failed to deliver status change",
			zap.Uint("transactionID", change.TransactionID),
			zap.String("status", string(change.NewStatus)),
			zap.Error(err),
		)
	}
}

func applicableVouchers(ctx context.Context, discounts ledger.Discounts, eventID uint, codes []string, now time.Time) ([]domain.Voucher, error) {
	var (
		vouchers []domain.Voucher
		seen     = map[uint]bool{}
	)
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}

		v, err := discounts.FindVoucher(ctx, eventID, code)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("discounts.FindVoucher -> %w", err)
		}
		if seen[v.ID] || !v.Applicable(now) {
			continue
		}

		seen[v.ID] = true
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

func applicableCoupons(ctx context.Context, discounts ledger.Discounts, userID uint, codes []string, now time.Time) ([]domain.Coupon, error) {
	var (
		coupons []domain.Coupon
		seen    = map[uint]bool{}
	)
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}

		c, err := discounts.FindCoupon(ctx, userID, code)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("discounts.FindCoupon -> %w", err)
		}
		if seen[c.ID] || !c.Applicable(now) {
			continue
		}

		seen[c.ID] = true
		coupons = append(coupons, c)
	}
	return coupons, nil
}

func loadStatusChange(ctx context.Context, lt ledger.Tx, tx domain.Transaction, old domain.TransactionStatus, now time.Time) (domain.StatusChange, error) {
	user, err := lt.Catalog().FindUser(ctx, tx.UserID)
	if err != nil {
		return domain.StatusChange{}, fmt.Errorf("lt.Catalog().FindUser -> %w", err)
	}
	event, err := lt.Catalog().FindEvent(ctx, tx.EventID)
	if err != nil {
		return domain.StatusChange{}, fmt.Errorf("lt.Catalog().FindEvent -> %w", err)
	}

	return statusChange(tx, old, user, event, now), nil
}

func statusChange(tx domain.Transaction, old domain.TransactionStatus, user domain.User, event domain.Event, now time.Time) domain.StatusChange {
	return domain.StatusChange{
		ID:            uuid.NewString(),
		TransactionID: tx.ID,
		OldStatus:     old,
		NewStatus:     tx.Status,
		UserEmail:     user.Email,
		EventName:     event.Name,
		TicketCount:   tx.TicketCount,
		OccurredAt:    now,
	}
}
