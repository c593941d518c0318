package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yizeng/gab/gin/gorm/ticketing/internal/domain"
)

func TestPointsService_GetPointsSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.AddPoints(f.customer.ID, 50000, nil)

	tx, err := f.machine.Create(ctx, domain.CreateTransactionInput{
		UserID:      f.customer.ID,
		EventID:     f.event.ID,
		TicketCount: 1,
		PointsUsed:  20000,
	})
	require.NoError(t, err)
	_, err = f.machine.Cancel(ctx, tx.ID, f.customer.ID)
	require.NoError(t, err)

	summary, err := f.points.GetPointsSummary(ctx, f.customer.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(50000), summary.Balance)
	assert.Equal(t, summary.Balance, summary.ProjectedBalance)
	require.Len(t, summary.History, 3)
	assert.Equal(t, domain.PointsUsed, summary.History[1].Type)
	assert.Equal(t, domain.PointsEarned, summary.History[2].Type)
}

func TestPointsService_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.points.GetPointsSummary(context.Background(), 9999)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
