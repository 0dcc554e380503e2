package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	"github.com/smallbiznis/schoolride/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultMaxAttempts = 5

type DispatcherParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      domain.Repository
	Publisher domain.Publisher
	Cfg       config.Config `optional:"true"`
}

// Dispatcher drains the outbox into a Publisher.
type Dispatcher struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	publisher   domain.Publisher
	maxAttempts int
	metrics     *obsmetrics.BillingMetrics
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	maxAttempts := p.Cfg.Worker.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Dispatcher{
		db:          p.DB,
		log:         p.Log.Named("notification.dispatcher"),
		clock:       p.Clock,
		repo:        p.Repo,
		publisher:   p.Publisher,
		maxAttempts: maxAttempts,
		metrics:     obsmetrics.Billing(),
	}
}

// DispatchPending publishes up to limit pending or previously failed rows.
// A publish failure marks the row FAILED and does not stop the batch.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (domain.DispatchResult, error) {
	var result domain.DispatchResult
	if limit <= 0 {
		return result, nil
	}
	start := time.Now()

	items, err := d.repo.ListDispatchable(ctx, d.db, d.maxAttempts, limit)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, n := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		msg := domain.Message{
			ID:        n.ID,
			Kind:      n.Kind,
			SubjectID: n.SubjectID,
			Payload:   json.RawMessage(n.Payload),
			Metadata:  correlation.Stamp(ctx, d.clock.Now()),
		}

		if pubErr := d.publisher.Publish(ctx, msg); pubErr != nil {
			result.Failed++
			d.log.Warn("notification publish failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("kind", string(n.Kind)),
				zap.Int("attempt", n.Attempts+1),
				zap.Error(pubErr),
			)
			if err := d.repo.MarkFailed(ctx, d.db, n.ID, pubErr.Error()); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		if err := d.repo.MarkSent(ctx, d.db, n.ID, d.clock.Now()); err != nil {
			errs = append(errs, err)
			continue
		}
		result.Sent++
	}

	elapsed := time.Since(start)
	d.metrics.RecordOutboxBatch("sent", result.Sent, elapsed)
	if result.Failed > 0 {
		d.metrics.RecordOutboxBatch("failed", result.Failed, elapsed)
	}
	if backlog, err := d.repo.CountBacklog(ctx, d.db, d.maxAttempts); err == nil {
		d.metrics.SetOutboxBacklog(float64(backlog))
	}

	if result.Sent+result.Failed > 0 {
		d.log.Info("outbox batch dispatched",
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
		)
	}
	return result, errors.Join(errs...)
}
