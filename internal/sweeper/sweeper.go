// Package sweeper drives timed-out transactions and expired points through
// their compensating transitions on a fixed schedule. Expiry is only as prompt
// as the polling interval.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/ledger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/metrics"
)

const (
	kindTransactions = "transactions"
	kindPoints       = "points"
)

// Expirer moves one transaction to EXPIRED through the state machine.
type Expirer interface {
	Expire(ctx context.Context, transactionID uint) (domain.Transaction, error)
}

// Lease lets one replica claim a sweep for ttl. A nil Lease means every
// replica sweeps, which is still safe since every item is claimed
// conditionally.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

type Config struct {
	TransactionInterval time.Duration
	PointsInterval      time.Duration
	BatchSize           int
	LockTTL             time.Duration
}

func DefaultConfig() Config {
	return Config{
		TransactionInterval: time.Minute,
		PointsInterval:      24 * time.Hour,
		BatchSize:           100,
		LockTTL:             55 * time.Second,
	}
}

type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

type Sweeper struct {
	uow     ledger.UnitOfWork
	expirer Expirer
	lease   Lease
	conf    Config
	now     func() time.Time
}

func New(uow ledger.UnitOfWork, expirer Expirer, lease Lease, conf Config) *Sweeper {
	if conf.BatchSize < 1 {
		conf.BatchSize = DefaultConfig().BatchSize
	}

	return &Sweeper{
		uow:     uow,
		expirer: expirer,
		lease:   lease,
		conf:    conf,
		now:     time.Now,
	}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Run sweeps once immediately, then on each interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	txTicker := time.NewTicker(s.conf.TransactionInterval)
	defer txTicker.Stop()
	pointsTicker := time.NewTicker(s.conf.PointsInterval)
	defer pointsTicker.Stop()

	zap.L().Info("sweeper started",
		zap.Duration("transactionInterval", s.conf.TransactionInterval),
		zap.Duration("pointsInterval", s.conf.PointsInterval),
	)

	s.tick(ctx, kindTransactions, s.SweepTransactions)
	s.tick(ctx, kindPoints, s.SweepPoints)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("sweeper stopped")
			return
		case <-txTicker.C:
			s.tick(ctx, kindTransactions, s.SweepTransactions)
		case <-pointsTicker.C:
			s.tick(ctx, kindPoints, s.SweepPoints)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context, kind string, sweep func(context.Context) (Result, error)) {
	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx, kind, s.conf.LockTTL)
		if err != nil {
			zap.L().Warn("failed to acquire sweeper lease", zap.String("kind", kind), zap.Error(err))
			return
		}
		if !acquired {
			zap.L().Debug("sweep held by another replica", zap.String("kind", kind))
			return
		}
	}

	start := time.Now()
	result, err := sweep(ctx)
	metrics.SweepObserved(kind, time.Since(start).Seconds())
	if err != nil {
		zap.L().Error("sweep failed", zap.String("kind", kind), zap.Error(err))
		return
	}

	if result.Processed+result.Failed > 0 {
		zap.L().Info("sweep finished",
			zap.String("kind", kind),
			zap.Int("processed", result.Processed),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
	}
}

// SweepTransactions expires every WAITING_PAYMENT transaction past its
// payment window. Each one is its own unit; a failure is logged and left for
// the next tick.
func (s *Sweeper) SweepTransactions(ctx context.Context) (Result, error) {
	var total Result
	failed := map[uint]bool{}

	for {
		var due []domain.Transaction
		err := s.uow.Do(ctx, func(lt ledger.Tx) error {
			var err error
			due, err = lt.Transactions().FindExpired(ctx, s.now(), s.conf.BatchSize+len(failed))
			return err
		})
		if err != nil {
			return total, fmt.Errorf("lt.Transactions().FindExpired -> %w", err)
		}

		progressed := false
		for _, tx := range due {
			if failed[tx.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return total, err
			}

			_, err := s.expirer.Expire(ctx, tx.ID)
			switch {
			case err == nil:
				total.Processed++
				progressed = true
				metrics.SweeperItem(kindTransactions, "ok")
			case errors.Is(err, domain.ErrInvalidStateTransition):
				total.Skipped++
				metrics.SweeperItem(kindTransactions, "skipped")
			default:
				total.Failed++
				failed[tx.ID] = true
				metrics.SweeperItem(kindTransactions, "failed")
				zap.L().Error("failed to expire transaction", zap.Uint("transactionID", tx.ID), zap.Error(err))
			}
		}

		if !progressed || len(due) < s.conf.BatchSize+len(failed) {
			return total, nil
		}
	}
}

// SweepPoints expires every EARNED grant past its expiry date.
func (s *Sweeper) SweepPoints(ctx context.Context) (Result, error) {
	var total Result
	failed := map[uint]bool{}

	for {
		var due []domain.PointsEntry
		err := s.uow.Do(ctx, func(lt ledger.Tx) error {
			var err error
			due, err = lt.Points().FindDueForExpiry(ctx, s.now(), s.conf.BatchSize+len(failed))
			return err
		})
		if err != nil {
			return total, fmt.Errorf("lt.Points().FindDueForExpiry -> %w", err)
		}

		progressed := false
		for _, entry := range due {
			if failed[entry.ID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return total, err
			}

			var expired bool
			err := s.uow.Do(ctx, func(lt ledger.Tx) error {
				var err error
				expired, err = lt.Points().Expire(ctx, entry)
				return err
			})
			switch {
			case err != nil:
				total.Failed++
				failed[entry.ID] = true
				metrics.SweeperItem(kindPoints, "failed")
				zap.L().Error("failed to expire points",
					zap.Uint("entryID", entry.ID),
					zap.Uint("userID", entry.UserID),
					zap.Error(err),
				)
			case expired:
				total.Processed++
				progressed = true
				metrics.SweeperItem(kindPoints, "ok")
			default:
				total.Skipped++
				metrics.SweeperItem(kindPoints, "skipped")
			}
		}

		if !progressed || len(due) < s.conf.BatchSize+len(failed) {
			return total, nil
		}
	}
}
