package service

import (
	"context"
	"time"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

// Policy holds the business constants of the booking engine.
type Policy struct {
	PaymentWindow     time.Duration
	ReferralReward    int64
	ReferralRewardTTL time.Duration
	RefundPointsTTL   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PaymentWindow:     2 * time.Hour,
		ReferralReward:    10000,
		ReferralRewardTTL: 365 * 24 * time.Hour,
		RefundPointsTTL:   90 * 24 * time.Hour,
	}
}

// Notifier receives committed status changes. Its errors are logged and never
// undo the change.
type Notifier interface {
	Notify(ctx context.Context, change domain.StatusChange) error
}
