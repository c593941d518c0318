// Package memstore keeps every ledger in process memory behind one mutex. It
// backs the service and sweeper tests and local runs without postgres; each
// unit of work is fully serialized and rolled back from a snapshot on error.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
)

type state struct {
	seq          uint
	users        map[uint]domain.User
	events       map[uint]domain.Event
	vouchers     map[uint]domain.Voucher
	coupons      map[uint]domain.Coupon
	points       []domain.PointsEntry
	transactions map[uint]domain.Transaction
}

func (s *state) nextID() uint {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		users:        make(map[uint]domain.User, len(s.users)),
		events:       make(map[uint]domain.Event, len(s.events)),
		vouchers:     make(map[uint]domain.Voucher, len(s.vouchers)),
		coupons:      make(map[uint]domain.Coupon, len(s.coupons)),
		points:       make([]domain.PointsEntry, len(s.points)),
		transactions: make(map[uint]domain.Transaction, len(s.transactions)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.vouchers {
		c.vouchers[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	copy(c.points, s.points)
	for k, v := range s.transactions {
		v.VoucherIDs = append([]uint(nil), v.VoucherIDs...)
		v.CouponIDs = append([]uint(nil), v.CouponIDs...)
		c.transactions[k] = v
	}
	return c
}

type Store struct {
	mu    sync.Mutex
	state *state

	// Now stamps created rows. It defaults to time.Now.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		state: &state{
			users:        map[uint]domain.User{},
			events:       map[uint]domain.Event{},
			vouchers:     map[uint]domain.Voucher{},
			coupons:      map[uint]domain.Coupon{},
			transactions: map[uint]domain.Transaction{},
		},
		Now: time.Now,
	}
}

// Do runs fn against a private copy of the state and publishes the copy only
// when fn succeeds.
func (s *Store) Do(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: work, now: s.Now}); err != nil {
		return err
	}

	s.state = work
	return nil
}

var _ ledger.UnitOfWork = (*Store)(nil)

func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == 0 {
		u.ID = s.state.nextID()
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	u.CreatedAt = s.Now()
	u.UpdatedAt = u.CreatedAt
	s.state.users[u.ID] = u
	return u
}

func (s *Store) AddEvent(e domain.Event) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == 0 {
		e.ID = s.state.nextID()
	}
	e.CreatedAt = s.Now()
	e.UpdatedAt = e.CreatedAt
	s.state.events[e.ID] = e
	return e
}

func (s *Store) AddVoucher(v domain.Voucher) domain.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == 0 {
		v.ID = s.state.nextID()
	}
	s.state.vouchers[v.ID] = v
	return v
}

func (s *Store) AddCoupon(c domain.Coupon) domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == 0 {
		c.ID = s.state.nextID()
	}
	s.state.coupons[c.ID] = c
	return c
}

// AddPoints credits a user outside any unit of work, keeping the balance and
// history in step.
func (s *Store) AddPoints(userID uint, amount int64, expiresAt *time.Time) domain.PointsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.state.users[userID]
	u.PointsBalance += amount
	s.state.users[userID] = u

	entry := domain.PointsEntry{
		ID:        s.state.nextID(),
		UserID:    userID,
		Points:    amount,
		Type:      domain.PointsEarned,
		Reason:    "seed",
		ExpiresAt: expiresAt,
		CreatedAt: s.Now(),
	}
	s.state.points = append(s.state.points, entry)
	return entry
}

func (s *Store) User(id uint) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.users[id]
}

func (s *Store) Event(id uint) domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.events[id]
}

func (s *Store) Voucher(id uint) domain.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.vouchers[id]
}

func (s *Store) Coupon(id uint) domain.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.coupons[id]
}

func (s *Store) Transaction(id uint) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.transactions[id]
}

func (s *Store) PointsHistory(userID uint) []domain.PointsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return historyOf(s.state, userID)
}

func historyOf(st *state, userID uint) []domain.PointsEntry {
	var out []domain.PointsEntry
	for _, e := range st.points {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
