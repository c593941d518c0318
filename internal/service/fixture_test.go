package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/memstore"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, change domain.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

// recordingNotifier keeps every change it receives.
type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.StatusChange
}

func (r *recordingNotifier) Notify(_ context.Context, change domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *recordingNotifier) statuses() []domain.TransactionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.TransactionStatus, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.NewStatus
	}
	return out
}

type fixture struct {
	store     *memstore.Store
	notifier  *recordingNotifier
	clock     *clock
	machine   *TransactionService
	decisions *DecisionService
	referrals *ReferralService
	points    *PointsService

	organizer domain.User
	customer  domain.User
	event     domain.Event
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := &clock{now: testNow}
	store := memstore.New()
	store.Now = c.Now
	notifier := &recordingNotifier{}

	machine := NewTransactionService(store, notifier, DefaultPolicy()).WithClock(c.Now)

	f := &fixture{
		store:     store,
		notifier:  notifier,
		clock:     c,
		machine:   machine,
		decisions: NewDecisionService(store, machine),
		referrals: NewReferralService(store, DefaultPolicy()).WithClock(c.Now),
		points:    NewPointsService(store),
	}

	f.organizer = store.AddUser(domain.User{Email: "organizer@example.com", Role: domain.RoleOrganizer, ReferralCode: "ORG-REF"})
	f.customer = store.AddUser(domain.User{Email: "customer@example.com", ReferralCode: "CUST-REF"})
	f.event = store.AddEvent(domain.Event{
		Name:           "Jazz Night",
		OrganizerID:    f.organizer.ID,
		Price:          100000,
		TotalSeats:     10,
		AvailableSeats: 10,
		StartDate:      testNow.Add(30 * 24 * time.Hour),
	})

	return f
}

func (f *fixture) voucher(code string, maxUses int, kind domain.DiscountType, value int64) domain.Voucher {
	return f.store.AddVoucher(domain.Voucher{
		EventID:       f.event.ID,
		Code:          code,
		DiscountType:  kind,
		DiscountValue: value,
		MaxUses:       maxUses,
		StartDate:     testNow.Add(-24 * time.Hour),
		EndDate:       testNow.Add(24 * time.Hour),
	})
}

func (f *fixture) coupon(userID uint, code string, kind domain.DiscountType, value int64) domain.Coupon {
	return f.store.AddCoupon(domain.Coupon{
		UserID:        userID,
		Code:          code,
		DiscountType:  kind,
		DiscountValue: value,
		ExpiresAt:     testNow.Add(7 * 24 * time.Hour),
	})
}

// auditHolds reports whether a user's balance equals the sum of their active
// history deltas.
func (f *fixture) auditHolds(userID uint) bool {
	return f.store.User(userID).PointsBalance == domain.ProjectBalance(f.store.PointsHistory(userID))
}
