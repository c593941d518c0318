package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
)

func TestStore_Do_RollsBackOnError(t *testing.T) {
	s := New()
	event := s.AddEvent(domain.Event{Name: "show", TotalSeats: 10, AvailableSeats: 10})

	boom := errors.New("boom")
	err := s.Do(context.Background(), func(tx ledger.Tx) error {
		require.NoError(t, tx.Inventory().Reserve(context.Background(), event.ID, 4))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 10, s.Event(event.ID).AvailableSeats)
}

func TestStore_Do_Commits(t *testing.T) {
	s := New()
	event := s.AddEvent(domain.Event{Name: "show", TotalSeats: 10, AvailableSeats: 10})

	err := s.Do(context.Background(), func(tx ledger.Tx) error {
		return tx.Inventory().Reserve(context.Background(), event.ID, 4)
	})

	require.NoError(t, err)
	assert.Equal(t, 6, s.Event(event.ID).AvailableSeats)
}

func TestInventory(t *testing.T) {
	ctx := context.Background()
	s := New()
	event := s.AddEvent(domain.Event{Name: "show", TotalSeats: 3, AvailableSeats: 3})

	tests := []struct {
		name      string
		run       func(tx ledger.Tx) error
		wantErr   error
		wantSeats int
	}{
		{
			name:      "reserve beyond availability",
			run:       func(tx ledger.Tx) error { return tx.Inventory().Reserve(ctx, event.ID, 4) },
			wantErr:   domain.ErrInsufficientInventory,
			wantSeats: 3,
		},
		{
			name:      "reserve all",
			run:       func(tx ledger.Tx) error { return tx.Inventory().Reserve(ctx, event.ID, 3) },
			wantSeats: 0,
		},
		{
			name:      "release",
			run:       func(tx ledger.Tx) error { return tx.Inventory().Release(ctx, event.ID, 2) },
			wantSeats: 2,
		},
		{
			name:      "release above total",
			run:       func(tx ledger.Tx) error { return tx.Inventory().Release(ctx, event.ID, 2) },
			wantErr:   domain.ErrInvalidStateTransition,
			wantSeats: 2,
		},
		{
			name:      "unknown event",
			run:       func(tx ledger.Tx) error { return tx.Inventory().Reserve(ctx, 999, 1) },
			wantErr:   domain.ErrNotFound,
			wantSeats: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Do(ctx, tt.run)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantSeats, s.Event(event.ID).AvailableSeats)
		})
	}
}

func TestDiscounts_VoucherCapAndCoupon(t *testing.T) {
	ctx := context.Background()
	s := New()
	voucher := s.AddVoucher(domain.Voucher{EventID: 1, Code: "EARLY", MaxUses: 1})
	coupon := s.AddCoupon(domain.Coupon{UserID: 7, Code: "WELCOME"})

	err := s.Do(ctx, func(tx ledger.Tx) error {
		d := tx.Discounts()
		require.NoError(t, d.RedeemVoucher(ctx, voucher.ID))
		assert.ErrorIs(t, d.RedeemVoucher(ctx, voucher.ID), domain.ErrVoucherExhausted)

		_, err := d.FindCoupon(ctx, 8, "WELCOME")
		assert.ErrorIs(t, err, domain.ErrCouponNotFound)
		assert.ErrorIs(t, d.RedeemCoupon(ctx, coupon.ID, 8), domain.ErrCouponNotFound)

		require.NoError(t, d.RedeemCoupon(ctx, coupon.ID, 7))
		assert.ErrorIs(t, d.RedeemCoupon(ctx, coupon.ID, 7), domain.ErrCouponAlreadyUsed)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Voucher(voucher.ID).CurrentUses)
	assert.True(t, s.Coupon(coupon.ID).IsUsed)

	err = s.Do(ctx, func(tx ledger.Tx) error {
		require.NoError(t, tx.Discounts().UnredeemVoucher(ctx, voucher.ID))
		require.NoError(t, tx.Discounts().UnredeemVoucher(ctx, voucher.ID))
		return tx.Discounts().UnredeemCoupon(ctx, coupon.ID, 7)
	})
	require.NoError(t, err)

	assert.Equal(t, 0, s.Voucher(voucher.ID).CurrentUses)
	assert.False(t, s.Coupon(coupon.ID).IsUsed)
}

func TestPoints_ExpireKeepsHistoryInStep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New()
	s.Now = func() time.Time { return now }
	user := s.AddUser(domain.User{Email: "a@example.com"})

	past := now.Add(-time.Hour)
	grant := s.AddPoints(user.ID, 10000, &past)

	err := s.Do(ctx, func(tx ledger.Tx) error {
		return tx.Points().Debit(ctx, user.ID, 4000, "booking", nil)
	})
	require.NoError(t, err)

	var expired bool
	err = s.Do(ctx, func(tx ledger.Tx) error {
		due, err := tx.Points().FindDueForExpiry(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, grant.ID, due[0].ID)

		expired, err = tx.Points().Expire(ctx, due[0])
		return err
	})
	require.NoError(t, err)
	assert.True(t, expired)

	assert.Equal(t, int64(0), s.User(user.ID).PointsBalance)
	assert.Equal(t, s.User(user.ID).PointsBalance, domain.ProjectBalance(s.PointsHistory(user.ID)))

	err = s.Do(ctx, func(tx ledger.Tx) error {
		again, err := tx.Points().Expire(ctx, grant)
		assert.False(t, again)
		return err
	})
	require.NoError(t, err)
}

func TestReferrals_LinkOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	referrer := s.AddUser(domain.User{Email: "r@example.com", ReferralCode: "REF123"})
	user := s.AddUser(domain.User{Email: "u@example.com"})

	err := s.Do(ctx, func(tx ledger.Tx) error {
		found, err := tx.Referrals().FindReferrer(ctx, "REF123")
		require.NoError(t, err)
		assert.Equal(t, referrer.ID, found.ID)

		_, err = tx.Referrals().FindReferrer(ctx, "NOPE")
		assert.ErrorIs(t, err, domain.ErrReferrerNotFound)

		linked, err := tx.Referrals().Link(ctx, user.ID, referrer.ID)
		require.NoError(t, err)
		assert.True(t, linked)

		linked, err = tx.Referrals().Link(ctx, user.ID, referrer.ID)
		require.NoError(t, err)
		assert.False(t, linked)

		self, err := tx.Referrals().Link(ctx, referrer.ID, referrer.ID)
		require.NoError(t, err)
		assert.False(t, self)
		return nil
	})
	require.NoError(t, err)
}

func TestTransactions_TransitionIsConditional(t *testing.T) {
	ctx := context.Background()
	s := New()

	var id uint
	err := s.Do(ctx, func(tx ledger.Tx) error {
		created, err := tx.Transactions().Create(ctx, domain.Transaction{UserID: 1, EventID: 2, TicketCount: 1, Status: domain.StatusWaitingPayment})
		id = created.ID
		return err
	})
	require.NoError(t, err)

	err = s.Do(ctx, func(tx ledger.Tx) error {
		moved, err := tx.Transactions().Transition(ctx, id, []domain.TransactionStatus{domain.StatusWaitingPayment}, domain.StatusWaitingConfirmation, "proof.png")
		require.NoError(t, err)
		assert.True(t, moved)

		moved, err = tx.Transactions().Transition(ctx, id, []domain.TransactionStatus{domain.StatusWaitingPayment}, domain.StatusExpired, "")
		require.NoError(t, err)
		assert.False(t, moved)
		return nil
	})
	require.NoError(t, err)

	got := s.Transaction(id)
	assert.Equal(t, domain.StatusWaitingConfirmation, got.Status)
	assert.Equal(t, "proof.png", got.PaymentProofRef)
}
