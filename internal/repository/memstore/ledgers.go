package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
)

// memTx implements every ledger over the working copy of one unit.
type memTx struct {
	state *state
	now   func() time.Time
}

func (t *memTx) Inventory() ledger.Inventory       { return t }
func (t *memTx) Discounts() ledger.Discounts       { return t }
func (t *memTx) Points() ledger.Points             { return t }
func (t *memTx) Referrals() ledger.Referrals       { return t }
func (t *memTx) Transactions() ledger.Transactions { return t }
func (t *memTx) Catalog() ledger.Catalog           { return t }

var _ ledger.Tx = (*memTx)(nil)

func (t *memTx) Reserve(_ context.Context, eventID uint, count int) error {
	e, ok := t.state.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if e.AvailableSeats < count {
		return domain.ErrInsufficientInventory
	}

	e.AvailableSeats -= count
	e.UpdatedAt = t.now()
	t.state.events[eventID] = e
	return nil
}

func (t *memTx) Release(_ context.Context, eventID uint, count int) error {
	e, ok := t.state.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	if e.AvailableSeats+count > e.TotalSeats {
		return domain.ErrInvalidStateTransition
	}

	e.AvailableSeats += count
	e.UpdatedAt = t.now()
	t.state.events[eventID] = e
	return nil
}

func (t *memTx) FindVoucher(_ context.Context, eventID uint, code string) (domain.Voucher, error) {
	for _, v := range t.state.vouchers {
		if v.EventID == eventID && v.Code == code {
			return v, nil
		}
	}
	return domain.Voucher{}, domain.ErrVoucherNotFound
}

func (t *memTx) RedeemVoucher(_ context.Context, voucherID uint) error {
	v, ok := t.state.vouchers[voucherID]
	if !ok {
		return domain.ErrVoucherNotFound
	}
	if v.CurrentUses >= v.MaxUses {
		return domain.ErrVoucherExhausted
	}

	v.CurrentUses++
	t.state.vouchers[voucherID] = v
	return nil
}

func (t *memTx) UnredeemVoucher(_ context.Context, voucherID uint) error {
	v, ok := t.state.vouchers[voucherID]
	if !ok || v.CurrentUses == 0 {
		return nil
	}

	v.CurrentUses--
	t.state.vouchers[voucherID] = v
	return nil
}

func (t *memTx) FindCoupon(_ context.Context, userID uint, code string) (domain.Coupon, error) {
	for _, c := range t.state.coupons {
		if c.UserID == userID && c.Code == code {
			return c, nil
		}
	}
	return domain.Coupon{}, domain.ErrCouponNotFound
}

func (t *memTx) RedeemCoupon(_ context.Context, couponID, userID uint) error {
	c, ok := t.state.coupons[couponID]
	if !ok || c.UserID != userID {
		return domain.ErrCouponNotFound
	}
	if c.IsUsed {
		return domain.ErrCouponAlreadyUsed
	}

	c.IsUsed = true
	t.state.coupons[couponID] = c
	return nil
}

func (t *memTx) UnredeemCoupon(_ context.Context, couponID, userID uint) error {
	c, ok := t.state.coupons[couponID]
	if !ok || c.UserID != userID {
		return nil
	}

	c.IsUsed = false
	t.state.coupons[couponID] = c
	return nil
}

func (t *memTx) Balance(_ context.Context, userID uint) (int64, error) {
	u, ok := t.state.users[userID]
	if !ok {
		return 0, domain.ErrUserNotFound
	}
	return u.PointsBalance, nil
}

func (t *memTx) adjust(userID uint, delta int64) error {
	u, ok := t.state.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.PointsBalance+delta < 0 {
		return domain.ErrInsufficientPoints
	}

	u.PointsBalance += delta
	u.UpdatedAt = t.now()
	t.state.users[userID] = u
	return nil
}

func (t *memTx) appendEntry(e domain.PointsEntry) {
	e.ID = t.state.nextID()
	e.CreatedAt = t.now()
	t.state.points = append(t.state.points, e)
}

func (t *memTx) Debit(_ context.Context, userID uint, amount int64, reason string, txID *uint) error {
	if err := t.adjust(userID, -amount); err != nil {
		return err
	}

	t.appendEntry(domain.PointsEntry{
		UserID:        userID,
		Points:        -amount,
		Type:          domain.PointsUsed,
		Reason:        reason,
		TransactionID: txID,
	})
	return nil
}

func (t *memTx) Credit(_ context.Context, userID uint, amount int64, reason string, txID *uint, expiresAt *time.Time) error {
	if err := t.adjust(userID, amount); err != nil {
		return err
	}

	t.appendEntry(domain.PointsEntry{
		UserID:        userID,
		Points:        amount,
		Type:          domain.PointsEarned,
		Reason:        reason,
		TransactionID: txID,
		ExpiresAt:     expiresAt,
	})
	return nil
}

func (t *memTx) History(_ context.Context, userID uint) ([]domain.PointsEntry, error) {
	return historyOf(t.state, userID), nil
}

func (t *memTx) ProjectBalance(_ context.Context, userID uint) (int64, error) {
	return domain.ProjectBalance(historyOf(t.state, userID)), nil
}

func (t *memTx) FindDueForExpiry(_ context.Context, now time.Time, limit int) ([]domain.PointsEntry, error) {
	var due []domain.PointsEntry
	for _, e := range t.state.points {
		if e.Type == domain.PointsEarned && e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (t *memTx) Expire(_ context.Context, entry domain.PointsEntry) (bool, error) {
	idx := -1
	for i, e := range t.state.points {
		if e.ID == entry.ID {
			idx = i
			break
		}
	}
	if idx < 0 || t.state.points[idx].Type != domain.PointsEarned {
		return false, nil
	}

	grant := t.state.points[idx]
	grant.Type = domain.PointsExpired
	grant.ExpiresAt = nil
	t.state.points[idx] = grant

	u, ok := t.state.users[grant.UserID]
	if !ok {
		return false, domain.ErrUserNotFound
	}

	removed, carried := domain.SplitExpiry(grant.Points, u.PointsBalance)
	if err := t.adjust(grant.UserID, -removed); err != nil {
		return false, err
	}
	t.appendEntry(domain.PointsEntry{
		UserID: grant.UserID,
		Points: -removed,
		Type:   domain.PointsExpired,
		Reason: fmt.Sprintf("%s (entry %d)", domain.ReasonPointsExpired, grant.ID),
	})
	if carried > 0 {
		t.appendEntry(domain.PointsEntry{
			UserID: grant.UserID,
			Points: carried,
			Type:   domain.PointsEarned,
			Reason: fmt.Sprintf("%s (entry %d)", domain.ReasonSpentBeforeExpiry, grant.ID),
		})
	}

	return true, nil
}

func (t *memTx) FindReferrer(_ context.Context, referralCode string) (domain.User, error) {
	for _, u := range t.state.users {
		if u.ReferralCode != "" && u.ReferralCode == referralCode {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrReferrerNotFound
}

func (t *memTx) Link(_ context.Context, userID, referrerID uint) (bool, error) {
	u, ok := t.state.users[userID]
	if !ok || u.ReferredBy != nil || userID == referrerID {
		return false, nil
	}

	u.ReferredBy = &referrerID
	u.UpdatedAt = t.now()
	t.state.users[userID] = u
	return true, nil
}

func (t *memTx) Create(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	tx.ID = t.state.nextID()
	tx.CreatedAt = t.now()
	tx.UpdatedAt = tx.CreatedAt
	tx.VoucherIDs = append([]uint(nil), tx.VoucherIDs...)
	tx.CouponIDs = append([]uint(nil), tx.CouponIDs...)
	t.state.transactions[tx.ID] = tx
	return tx, nil
}

func (t *memTx) FindByID(_ context.Context, id uint) (domain.Transaction, error) {
	tx, ok := t.state.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (t *memTx) FindByIDForUpdate(ctx context.Context, id uint) (domain.Transaction, error) {
	return t.FindByID(ctx, id)
}

func (t *memTx) FindByUserID(_ context.Context, userID uint) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range t.state.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) Transition(_ context.Context, id uint, from []domain.TransactionStatus, to domain.TransactionStatus, proofRef string) (bool, error) {
	tx, ok := t.state.transactions[id]
	if !ok {
		return false, nil
	}

	matched := false
	for _, s := range from {
		if tx.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	tx.Status = to
	if proofRef != "" {
		tx.PaymentProofRef = proofRef
	}
	tx.UpdatedAt = t.now()
	t.state.transactions[id] = tx
	return true, nil
}

func (t *memTx) FindExpired(_ context.Context, now time.Time, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range t.state.transactions {
		if tx.Status == domain.StatusWaitingPayment && tx.ExpiresAt != nil && !tx.ExpiresAt.After(now) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) FindEvent(_ context.Context, id uint) (domain.Event, error) {
	e, ok := t.state.events[id]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func (t *memTx) FindUser(_ context.Context, id uint) (domain.User, error) {
	u, ok := t.state.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}
