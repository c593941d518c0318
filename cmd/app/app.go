package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/api"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/config"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/db"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/logger"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/notify"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/repository"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/service"
	"github.com/yizeng/gab/gin/gorm/ticketing/internal/sweeper"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	notifiers := notify.Fanout{notify.LogNotifier{}}
	var lease sweeper.Lease
	if conf.Redis.Enabled {
		client, err := db.OpenRedis(ctx, conf.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to initialize redis -> %w", err)
		}
		defer client.Close()

		notifiers = append(notifiers, notify.NewRedisPublisher(client, conf.Redis.NotifyChannel))
		lease = sweeper.NewRedisLease(client, conf.Redis.LockPrefix, instanceName())
	}

	uow := repository.NewUnitOfWork(postgresDB, conf.Engine.MaxTxRetries)
	policy := service.Policy{
		PaymentWindow:     conf.Engine.PaymentWindow,
		ReferralReward:    conf.Engine.ReferralReward,
		ReferralRewardTTL: conf.Engine.ReferralRewardTTL,
		RefundPointsTTL:   conf.Engine.RefundPointsTTL,
	}

	transactions := service.NewTransactionService(uow, notifiers, policy)
	services := api.Services{
		Transactions: transactions,
		Decisions:    service.NewDecisionService(uow, transactions),
		Points:       service.NewPointsService(uow),
		Referrals:    service.NewReferralService(uow, policy),
	}

	if conf.Sweeper.Enabled {
		sw := sweeper.New(uow, transactions, lease, sweeper.Config{
			TransactionInterval: conf.Sweeper.TransactionInterval,
			PointsInterval:      conf.Sweeper.PointsInterval,
			BatchSize:           conf.Sweeper.BatchSize,
			LockTTL:             conf.Sweeper.LockTTL,
		})
		go sw.Run(ctx)
	}

	s := api.NewServer(conf, services)

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Router.Run(addr); err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}

func instanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + uuid.NewString()[:8]
	}
	return uuid.NewString()
}
