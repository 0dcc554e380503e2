package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/bill"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/expense"
	"github.com/smallbiznis/schoolride/internal/lock"
	"github.com/smallbiznis/schoolride/internal/logger"
	"github.com/smallbiznis/schoolride/internal/migration"
	"github.com/smallbiznis/schoolride/internal/notification"
	"github.com/smallbiznis/schoolride/internal/observability"
	"github.com/smallbiznis/schoolride/internal/payroll"
	"github.com/smallbiznis/schoolride/internal/providers"
	"github.com/smallbiznis/schoolride/internal/receipt"
	"github.com/smallbiznis/schoolride/internal/report"
	"github.com/smallbiznis/schoolride/internal/scheduler"
	"github.com/smallbiznis/schoolride/internal/tuition"
	"github.com/smallbiznis/schoolride/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		// Billing domains
		notification.Module,
		tuition.Module,
		payroll.Module,
		expense.Module,
		bill.Module,
		report.Module,

		// Receipts and background jobs
		providers.Module,
		receipt.Module,
		scheduler.Module,

		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
