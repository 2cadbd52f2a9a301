package cron

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// fakeCarts keeps active expired carts ordered by expiry.
type fakeCarts struct {
	carts   map[uuid.UUID]*models.Cart
	order   []uuid.UUID
	failing map[uuid.UUID]bool
	lists   int
}

func newFakeCarts(n int, failing ...int) *fakeCarts {
	f := &fakeCarts{carts: map[uuid.UUID]*models.Cart{}, failing: map[uuid.UUID]bool{}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := &models.Cart{ID: uuid.New(), UserID: uuid.New(), IsActive: true, ExpiresAt: base.Add(time.Duration(i) * time.Minute)}
		f.carts[c.ID] = c
		f.order = append(f.order, c.ID)
	}
	for _, idx := range failing {
		f.failing[f.order[idx]] = true
	}
	return f
}

func (f *fakeCarts) ListExpired(_ context.Context, before time.Time, limit int) ([]models.Cart, error) {
	f.lists++
	var out []models.Cart
	for _, id := range f.order {
		c := f.carts[id]
		if c.IsActive && c.ExpiresAt.Before(before) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCarts) ExpireCart(_ context.Context, id uuid.UUID) (cart.ExpiryResult, error) {
	if f.failing[id] {
		return cart.ExpiryResult{}, errors.New("db down")
	}
	c := f.carts[id]
	if !c.IsActive {
		return cart.ExpiryResult{}, nil
	}
	c.IsActive = false
	return cart.ExpiryResult{Expired: true, ReleasedUnits: 2}, nil
}

func newCartExpiryJob(t *testing.T, carts *fakeCarts, m *metrics.CommerceMetrics, batch int) *cartExpiryJob {
	t.Helper()
	job, err := NewCartExpiryJob(CartExpiryJobParams{
		Logger:    logger.Nop(),
		Carts:     carts,
		Expirer:   carts,
		Metrics:   m,
		BatchSize: batch,
	})
	require.NoError(t, err)
	impl := job.(*cartExpiryJob)
	impl.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return impl
}

func TestCartExpiryJobDrainsAllBatches(t *testing.T) {
	carts := newFakeCarts(7)
	reg := prometheus.NewRegistry()
	m := metrics.NewCommerceMetrics(reg)
	job := newCartExpiryJob(t, carts, m, 3)

	require.NoError(t, job.Run(context.Background()))
	for _, c := range carts.carts {
		assert.False(t, c.IsActive)
	}
	assert.Equal(t, 3, carts.lists)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() == "carts_expired_total" {
			total = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(7), total)
}

func TestCartExpiryJobSkipsFailuresAndReportsThem(t *testing.T) {
	carts := newFakeCarts(5, 0, 3)
	job := newCartExpiryJob(t, carts, nil, 2)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, countActive(carts), "only failing carts stay active")
}

func TestCartExpiryJobOldestFailingCartDoesNotEndSweep(t *testing.T) {
	carts := newFakeCarts(5, 0)
	job := newCartExpiryJob(t, carts, nil, 2)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Equal(t, 1, countActive(carts), "only the failing cart stays active")
	assert.Equal(t, 3, carts.lists)
}

func TestCartExpiryJobContinuesPastFullyFailedBatch(t *testing.T) {
	carts := newFakeCarts(4, 0, 1)
	job := newCartExpiryJob(t, carts, nil, 2)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, countActive(carts))
}

func TestCartExpiryJobStopsWhenOnlyFailuresRemain(t *testing.T) {
	carts := newFakeCarts(2, 0, 1)
	job := newCartExpiryJob(t, carts, nil, 2)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, 2, carts.lists)
}

func countActive(carts *fakeCarts) int {
	active := 0
	for _, c := range carts.carts {
		if c.IsActive {
			active++
		}
	}
	return active
}

func TestNewCartExpiryJobValidates(t *testing.T) {
	_, err := NewCartExpiryJob(CartExpiryJobParams{Logger: logger.Nop()})
	assert.Error(t, err)
}
