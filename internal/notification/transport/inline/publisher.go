// Package inline delivers outbox messages to an in-process handler.
package inline

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	"github.com/smallbiznis/schoolride/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

const defaultHandleTimeout = 30 * time.Second

// Publisher calls the handler directly. A handler error is returned to the
// dispatcher so the notification stays retryable.
type Publisher struct {
	handler domain.Handler
	log     *zap.Logger
	timeout time.Duration
	metrics *obsmetrics.BillingMetrics
}

func NewPublisher(handler domain.Handler, log *zap.Logger) *Publisher {
	return &Publisher{
		handler: handler,
		log:     log.Named("notification.inline"),
		timeout: defaultHandleTimeout,
		metrics: obsmetrics.Billing(),
	}
}

func (p *Publisher) Publish(ctx context.Context, msg domain.Message) error {
	if p.handler == nil {
		return fmt.Errorf("no handler for %s", msg.Kind)
	}

	hctx, cancel := context.WithTimeout(correlation.Restore(ctx, msg.Metadata), p.timeout)
	defer cancel()

	start := time.Now()
	err := p.handler.Handle(hctx, msg)
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordHandler(string(msg.Kind), status, time.Since(start))
	if err != nil {
		return fmt.Errorf("handle %s %s: %w", msg.Kind, msg.SubjectID, err)
	}

	p.log.Debug("notification handled",
		zap.String("kind", string(msg.Kind)),
		zap.String("subject_id", msg.SubjectID.String()),
		zap.String("correlation_id", msg.Metadata.CorrelationID),
	)
	return nil
}
