// Package notify delivers committed transaction status changes to the
// notification collaborator.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, change domain.StatusChange) error
}

// RedisPublisher publishes each change as JSON on one pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
	}
}

func (p *RedisPublisher) Notify(ctx context.Context, change domain.StatusChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("p.client.Publish -> %w", err)
	}

	return nil
}

// LogNotifier writes every change to the global zap logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, change domain.StatusChange) error {
	zap.L().Info("transaction status changed",
		zap.String("eventID", change.ID),
		zap.Uint("transactionID", change.TransactionID),
		zap.String("oldStatus", string(change.OldStatus)),
		zap.String("newStatus", string(change.NewStatus)),
		zap.String("userEmail", change.UserEmail),
		zap.String("eventName", change.EventName),
		zap.Int("ticketCount", change.TicketCount),
	)
	return nil
}

// Fanout delivers to every notifier and joins their errors. One failing
// notifier does not stop the others.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, change domain.StatusChange) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, change); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
