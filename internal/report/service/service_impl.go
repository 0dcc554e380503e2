package service

import (
	"context"
	"fmt"

	billdomain "github.com/smallbiznis/schoolride/internal/bill/domain"
	expensedomain "github.com/smallbiznis/schoolride/internal/expense/domain"
	payrolldomain "github.com/smallbiznis/schoolride/internal/payroll/domain"
	"github.com/smallbiznis/schoolride/internal/report/domain"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Tuition  tuitiondomain.Service
	Bills    billdomain.Service
	Expenses expensedomain.Service
	Payroll  payrolldomain.Service
}

type Service struct {
	log      *zap.Logger
	tuition  tuitiondomain.Service
	bills    billdomain.Service
	expenses expensedomain.Service
	payroll  payrolldomain.Service
	tracer   trace.Tracer
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("report.service"),
		tuition:  p.Tuition,
		bills:    p.Bills,
		expenses: p.Expenses,
		payroll:  p.Payroll,
		tracer:   otel.Tracer("schoolride/report"),
	}
}

// FinancialSummary reads without locks, so concurrent writes may or may not
// be included.
func (s *Service) FinancialSummary(ctx context.Context, year, month int) (domain.Summary, error) {
	window, err := domain.WindowFor(year, month)
	if err != nil {
		return domain.Summary{}, err
	}

	ctx, span := s.tracer.Start(ctx, "report.FinancialSummary", trace.WithAttributes(
		attribute.Int("year", year),
		attribute.Int("month", month),
	))
	defer span.End()

	var (
		payments []tuitiondomain.Payment
		bills    []billdomain.Bill
		expenses []expensedomain.Expense
		salaries []payrolldomain.Salary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		payments, err = s.tuition.ListPayments(gctx, tuitiondomain.ListPaymentsRequest{From: window.From, To: window.To})
		if err != nil {
			return fmt.Errorf("load tuition payments: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		bills, err = s.bills.ListPaid(gctx, window.From, window.To)
		if err != nil {
			return fmt.Errorf("load paid bills: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.expenses.List(gctx, expensedomain.ListRequest{From: window.From, To: window.To})
		if err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		salaries, err = s.payroll.ListPaid(gctx, window.From, window.To)
		if err != nil {
			return fmt.Errorf("load paid salaries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return domain.Summary{}, err
	}

	summary := domain.Summarize(payments, bills, expenses, salaries)
	summary.Year = year
	summary.Month = month

	s.log.Debug("financial summary computed",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.String("revenue", summary.Revenue.String()),
		zap.String("expenses", summary.Expenses.String()),
		zap.String("net", summary.Net.String()),
	)
	return summary, nil
}
