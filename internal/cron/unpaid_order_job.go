package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordercore-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
	"github.com/angelmondragon/ordercore-backend/pkg/logger"
)

const (
	defaultUnpaidTTL   = 72 * time.Hour
	defaultUnpaidBatch = 100
	unpaidCancelReason = "payment not received in time"
)

type staleOrderCanceller interface {
	ListStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]uuid.UUID, error)
	ExpireUnpaid(ctx context.Context, orderID uuid.UUID, actor orders.Actor, reason string) (*orders.Result, error)
}

type UnpaidOrderJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderCanceller
	TTL       time.Duration
	BatchSize int
}

// NewUnpaidOrderJob cancels pending orders whose payment never arrived. Each
// cancel goes through the state machine, which re-checks the payment status
// under the order lock, so held stock is restored and audited only for orders
// that are still unpaid.
func NewUnpaidOrderJob(params UnpaidOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if params.TTL <= 0 {
		params.TTL = defaultUnpaidTTL
	}
	if params.BatchSize <= 0 {
		params.BatchSize = defaultUnpaidBatch
	}
	return &unpaidOrderJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    params.TTL,
		batch:  params.BatchSize,
	}, nil
}

type unpaidOrderJob struct {
	logg   *logger.Logger
	orders staleOrderCanceller
	ttl    time.Duration
	batch  int
}

func (j *unpaidOrderJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidOrderJob) Run(ctx context.Context) error {
	ids, err := j.orders.ListStaleUnpaid(ctx, j.ttl, j.batch)
	if err != nil {
		return fmt.Errorf("list stale orders: %w", err)
	}

	actor := orders.SystemActor(j.Name())
	var (
		errs      error
		cancelled int
		skipped   int
	)
	for _, id := range ids {
		_, err := j.orders.ExpireUnpaid(ctx, id, actor, unpaidCancelReason)
		switch {
		case err == nil:
			cancelled++
		case pkgerrors.IsCode(err, pkgerrors.CodeConflict),
			pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition),
			pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
			// paid, cancelled or deleted since it was listed
			skipped++
		default:
			errs = multierr.Append(errs, fmt.Errorf("cancel %s: %w", id, err))
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"cancelled":  cancelled,
		"skipped":    skipped,
		"failed":     len(multierr.Errors(errs)),
	}), "unpaid order expiry complete")
	return errs
}
