package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/metrics"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository/dao"
)

const (
	retryInitialInterval = 10 * time.Millisecond
	retryMaxInterval     = 250 * time.Millisecond
)

// UnitOfWork runs each unit in one serializable postgres transaction and
// retries it when postgres aborts it for a serialization failure or deadlock.
type UnitOfWork struct {
	db          *gorm.DB
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

func NewUnitOfWork(db *gorm.DB, maxAttempts int) *UnitOfWork {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &UnitOfWork{
		db:          db,
		maxAttempts: maxAttempts,
		newBackOff:  jitteredBackOff,
	}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return u.retry(ctx, func() error {
		return u.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(newTxLedgers(gtx))
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

// retry runs attempt up to maxAttempts times, sleeping a jittered interval
// between retryable failures. The last retryable failure is wrapped in
// domain.ErrConcurrencyConflict.
func (u *UnitOfWork) retry(ctx context.Context, attempt func() error) error {
	bo := u.newBackOff()

	var err error
	for n := 1; ; n++ {
		err = attempt()
		if err == nil || !dao.IsRetryable(err) {
			return err
		}
		if n >= u.maxAttempts {
			break
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}

		metrics.TxRetried()
		zap.L().Debug("retrying unit of work", zap.Int("attempt", n), zap.Duration("wait", wait), zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
}

func jitteredBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

type txLedgers struct {
	inventory    *InventoryRepository
	discounts    *DiscountRepository
	points       *PointsRepository
	referrals    *ReferralRepository
	transactions *TransactionRepository
	catalog      *CatalogRepository
}

func newTxLedgers(db *gorm.DB) *txLedgers {
	users := dao.NewUserDAO(db)
	events := dao.NewEventDAO(db)

	return &txLedgers{
		inventory:    NewInventoryRepository(events),
		discounts:    NewDiscountRepository(dao.NewDiscountDAO(db)),
		points:       NewPointsRepository(dao.NewPointsDAO(db), users),
		referrals:    NewReferralRepository(users),
		transactions: NewTransactionRepository(dao.NewTransactionDAO(db)),
		catalog:      NewCatalogRepository(users, events),
	}
}

func (t *txLedgers) Inventory() ledger.Inventory       { return t.inventory }
func (t *txLedgers) Discounts() ledger.Discounts       { return t.discounts }
func (t *txLedgers) Points() ledger.Points             { return t.points }
func (t *txLedgers) Referrals() ledger.Referrals       { return t.referrals }
func (t *txLedgers) Transactions() ledger.Transactions { return t.transactions }
func (t *txLedgers) Catalog() ledger.Catalog           { return t.catalog }

var _ ledger.Tx = (*txLedgers)(nil)

