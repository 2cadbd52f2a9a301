package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultCartBatchSize  = 100
	defaultCartMaxBatches = 50
)

type expiredCartLister interface {
	ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Cart, error)
}

type cartExpirer interface {
	ExpireCart(ctx context.Context, cartID uuid.UUID) (cart.ExpiryResult, error)
}

// CartExpiryJobParams configure the expired-cart sweep.
type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Carts      expiredCartLister
	Expirer    cartExpirer
	Metrics    *metrics.CommerceMetrics
	BatchSize  int
	MaxBatches int
}

// NewCartExpiryJob builds the job that releases reservations held by carts
// nobody touched within the expiry window.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("cart service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCartBatchSize
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultCartMaxBatches
	}
	return &cartExpiryJob{
		logg:       params.Logger,
		carts:      params.Carts,
		expirer:    params.Expirer,
		metrics:    params.Metrics,
		batchSize:  batch,
		maxBatches: maxBatches,
		now:        time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg       *logger.Logger
	carts      expiredCartLister
	expirer    cartExpirer
	metrics    *metrics.CommerceMetrics
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func (j *cartExpiryJob) Name() string { return "cart-expiry" }

// Run walks expired carts in batches. A cart that fails is skipped for the rest
// of the run so the sweep always makes progress.
func (j *cartExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	failed := map[uuid.UUID]struct{}{}
	var (
		errs     error
		expired  int
		released int
	)

	for batch := 0; batch < j.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		// failed carts stay expired, so they are listed again ahead of fresh ones
		limit := j.batchSize + len(failed)
		carts, err := j.carts.ListExpired(ctx, cutoff, limit)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list expired carts: %w", err))
			break
		}

		attempted := 0
		for _, c := range carts {
			if _, skip := failed[c.ID]; skip {
				continue
			}
			attempted++
			result, err := j.expirer.ExpireCart(ctx, c.ID)
			if err != nil {
				failed[c.ID] = struct{}{}
				errs = multierr.Append(errs, fmt.Errorf("expire cart %s: %w", c.ID, err))
				continue
			}
			if result.Expired {
				expired++
				released += result.ReleasedUnits
			}
		}
		if attempted == 0 || len(carts) < limit {
			break
		}
	}

	j.metrics.CartsExpired(expired)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"carts_expired":  expired,
		"released_units": released,
		"carts_failed":   len(failed),
	}), "cart expiry sweep complete")
	return errs
}
