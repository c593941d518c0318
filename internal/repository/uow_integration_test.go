package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/db"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/pkg/pgtest"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/service"
)

// testDB stays nil when docker is unavailable or -short is set.
var testDB *gorm.DB

func TestMain(m *testing.M) {
	os.Exit(pgtest.Run(m, func(dsn string) error {
		conn, err := db.OpenPostgresWithURL(dsn)
		if err != nil {
			return err
		}
		testDB = conn
		return nil
	}))
}

func resetDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres not available")
	}

	err := testDB.Exec("TRUNCATE users, events, vouchers, coupons, points_history, transactions, transaction_vouchers, transaction_coupons RESTART IDENTITY CASCADE").Error
	require.NoError(t, err)
	return testDB
}

func seedCustomer(t *testing.T, conn *gorm.DB, n int) dao.User {
	t.Helper()
	user, err := dao.NewUserDAO(conn).Insert(context.Background(), dao.User{
		Email:        fmt.Sprintf("fan%d@example.com", n),
		Name:         fmt.Sprintf("Fan %d", n),
		Role:         string(domain.RoleCustomer),
		ReferralCode: fmt.Sprintf("FAN-%d", n),
	})
	require.NoError(t, err)
	return user
}

func seedEvent(t *testing.T, conn *gorm.DB, seats int) dao.Event {
	t.Helper()
	organizer, err := dao.NewUserDAO(conn).Insert(context.Background(), dao.User{
		Email:        "org@example.com",
		Name:         "Organizer",
		Role:         string(domain.RoleOrganizer),
		ReferralCode: "ORG-1",
	})
	require.NoError(t, err)

	event, err := dao.NewEventDAO(conn).Insert(context.Background(), dao.Event{
		Name:           "Jazz Night",
		OrganizerID:    organizer.ID,
		Price:          100000,
		TotalSeats:     seats,
		AvailableSeats: seats,
		StartDate:      time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return event
}

type outcome struct {
	tx  domain.Transaction
	err error
}

// createConcurrently books one ticket per customer, all at once.
func createConcurrently(t *testing.T, conn *gorm.DB, eventID uint, customers []dao.User, voucherCodes []string) []outcome {
	t.Helper()
	machine := service.NewTransactionService(repository.NewUnitOfWork(conn, 10), nil, service.DefaultPolicy())

	outcomes := make([]outcome, len(customers))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, customer := range customers {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			<-start
			tx, err := machine.Create(context.Background(), domain.CreateTransactionInput{
				UserID:       userID,
				EventID:      eventID,
				TicketCount:  1,
				VoucherCodes: voucherCodes,
			})
			outcomes[i] = outcome{tx: tx, err: err}
		}(i, customer.ID)
	}
	close(start)
	wg.Wait()
	return outcomes
}

func TestUnitOfWork_ConcurrentCreateNeverOversells(t *testing.T) {
	conn := resetDB(t)
	const seats = 3
	event := seedEvent(t, conn, seats)

	var customers []dao.User
	for i := 0; i < 10; i++ {
		customers = append(customers, seedCustomer(t, conn, i))
	}

	succeeded := 0
	for _, o := range createConcurrently(t, conn, event.ID, customers, nil) {
		if o.err == nil {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(o.err, domain.ErrInsufficientInventory) || errors.Is(o.err, domain.ErrConcurrencyConflict),
			"unexpected error: %v", o.err)
	}

	assert.GreaterOrEqual(t, succeeded, 1)
	assert.LessOrEqual(t, succeeded, seats)

	stored, err := dao.NewEventDAO(conn).FindByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, seats-succeeded, stored.AvailableSeats)

	var rows int64
	require.NoError(t, conn.Model(&dao.Transaction{}).Where("event_id = ?", event.ID).Count(&rows).Error)
	assert.Equal(t, int64(succeeded), rows)
}

func TestUnitOfWork_ConcurrentCreateRespectsVoucherCap(t *testing.T) {
	conn := resetDB(t)
	ctx := context.Background()
	const maxUses = 2
	event := seedEvent(t, conn, 50)

	voucher, err := dao.NewDiscountDAO(conn).InsertVoucher(ctx, dao.Voucher{
		EventID:       event.ID,
		Code:          "JAZZ10",
		DiscountType:  string(domain.DiscountFixed),
		DiscountValue: 10000,
		MaxUses:       maxUses,
		StartDate:     time.Now().Add(-time.Hour),
		EndDate:       time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)

	var customers []dao.User
	for i := 0; i < 8; i++ {
		customers = append(customers, seedCustomer(t, conn, i))
	}

	withVoucher := 0
	for _, o := range createConcurrently(t, conn, event.ID, customers, []string{"JAZZ10"}) {
		if o.err != nil {
			assert.True(t,
				errors.Is(o.err, domain.ErrVoucherExhausted) || errors.Is(o.err, domain.ErrConcurrencyConflict),
				"unexpected error: %v", o.err)
			continue
		}
		for _, id := range o.tx.VoucherIDs {
			if id == voucher.ID {
				withVoucher++
			}
		}
	}

	stored, err := dao.NewDiscountDAO(conn).FindVoucherByID(ctx, voucher.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, stored.CurrentUses, maxUses)
	assert.GreaterOrEqual(t, stored.CurrentUses, 1)
	assert.Equal(t, withVoucher, stored.CurrentUses)

	var links int64
	require.NoError(t, conn.Model(&dao.TransactionVoucher{}).Where("voucher_id = ?", voucher.ID).Count(&links).Error)
	assert.Equal(t, int64(stored.CurrentUses), links)
}

func TestUnitOfWork_Do_ExhaustedSerializationFailure(t *testing.T) {
	conn := resetDB(t)
	calls := 0

	err := repository.NewUnitOfWork(conn, 2).Do(context.Background(), func(ledger.Tx) error {
		calls++
		return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	})

	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, pgerrcode.SerializationFailure, pgErr.Code)
	assert.Equal(t, 2, calls)
}

func TestUnitOfWork_Do_RollsBackOnError(t *testing.T) {
	conn := resetDB(t)
	ctx := context.Background()
	event := seedEvent(t, conn, 5)

	err := repository.NewUnitOfWork(conn, 3).Do(ctx, func(lt ledger.Tx) error {
		if err := lt.Inventory().Reserve(ctx, event.ID, 2); err != nil {
			return err
		}
		return lt.Inventory().Reserve(ctx, event.ID, 10)
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientInventory)
	stored, err := dao.NewEventDAO(conn).FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.AvailableSeats)
}
