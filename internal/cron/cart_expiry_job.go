package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ordercore-backend/internal/cart"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

const (
	defaultCartBatch      = 100
	defaultCartMaxBatches = 20
)

type cartExpirer interface {
	ExpireGuestCarts(ctx context.Context, limit int) (*cart.ExpiryReport, error)
}

type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Carts      cartExpirer
	BatchSize  int
	MaxBatches int
}

// NewCartExpiryJob releases the stock held by expired guest carts. Carts are
// also reclaimed lazily when their owner comes back; this job covers the ones
// that never do.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultCartBatch
	}
	if params.MaxBatches <= 0 {
		params.MaxBatches = defaultCartMaxBatches
	}
	return &cartExpiryJob{
		logg:       params.Logger,
		carts:      params.Carts,
		batch:      params.BatchSize,
		maxBatches: params.MaxBatches,
	}, nil
}

type cartExpiryJob struct {
	logg       *logger.Logger
	carts      cartExpirer
	batch      int
	maxBatches int
}

func (j *cartExpiryJob) Name() string { return "guest-cart-expiry" }

func (j *cartExpiryJob) Run(ctx context.Context) error {
	total := cart.ExpiryReport{}
	for i := 0; i < j.maxBatches; i++ {
		report, err := j.carts.ExpireGuestCarts(ctx, j.batch)
		if err != nil {
			return fmt.Errorf("expire guest carts: %w", err)
		}
		total.CartsExpired += report.CartsExpired
		total.UnitsReleased += report.UnitsReleased
		if report.CartsExpired < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"carts_expired":  total.CartsExpired,
		"units_released": total.UnitsReleased,
	}), "guest cart expiry complete")
	return nil
}
