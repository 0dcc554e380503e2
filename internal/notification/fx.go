package notification

import (
	"context"
	"errors"

	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/notification/domain"
	"github.com/smallbiznis/schoolride/internal/notification/repository"
	"github.com/smallbiznis/schoolride/internal/notification/service"
	amqptransport "github.com/smallbiznis/schoolride/internal/notification/transport/amqp"
	"github.com/smallbiznis/schoolride/internal/notification/transport/inline"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewOutbox),
	fx.Provide(func(o *service.Outbox) domain.Outbox { return o }),
	fx.Provide(NewPublisher),
	fx.Provide(service.NewDispatcher),
	fx.Provide(func(d *service.Dispatcher) domain.Dispatcher { return d }),
)

// NewPublisher returns the RabbitMQ transport when AMQP_URL is set and
// starts its consumer; otherwise messages go straight to the handler.
func NewPublisher(lc fx.Lifecycle, cfg config.Config, handler domain.Handler, log *zap.Logger) domain.Publisher {
	if !cfg.AMQP.Enabled() {
		log.Info("delivering notifications in-process")
		return inline.NewPublisher(handler, log)
	}

	client := amqptransport.NewClient(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, log)
	consumeCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := client.Connect(); err != nil {
				return err
			}
			go func() {
				defer close(done)
				if err := client.Consume(consumeCtx, handler); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("notification consumer stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return client.Close()
		},
	})

	log.Info("delivering notifications over AMQP",
		zap.String("exchange", cfg.AMQP.Exchange),
		zap.String("queue", cfg.AMQP.Queue),
	)
	return client
}
