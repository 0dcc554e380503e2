package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	"github.com/smallbiznis/schoolride/internal/payroll/domain"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Locker lock.Locker
	Repo   domain.Repository
	Outbox notificationdomain.Outbox
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	locker lock.Locker
	repo   domain.Repository
	outbox notificationdomain.Outbox
	tracer trace.Tracer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("payroll.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		locker: p.Locker,
		repo:   p.Repo,
		outbox: p.Outbox,
		tracer: otel.Tracer("schoolride/payroll"),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSalaryRequest) (domain.Salary, error) {
	if req.EmployeeID == 0 {
		return domain.Salary{}, tuitiondomain.NewValidationError("employee_id", tuitiondomain.CodeRequired, "employee is required")
	}
	if !req.Period.Valid() {
		return domain.Salary{}, tuitiondomain.NewValidationError("period", tuitiondomain.CodeInvalidPeriod, "period must have a year and a month between 1 and 12")
	}
	if req.Amount.IsNegative() {
		return domain.Salary{}, tuitiondomain.NewValidationError("amount", tuitiondomain.CodeInvalidAmount, "amount cannot be negative")
	}

	now := s.clock.Now()
	salary := domain.Salary{
		ID:           s.genID.Generate(),
		EmployeeID:   req.EmployeeID,
		PeriodYear:   req.Period.Year,
		PeriodMonth:  req.Period.Month,
		Amount:       req.Amount,
		Status:       domain.SalaryStatusPending,
		ContactEmail: req.ContactEmail,
		Note:         req.Note,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &salary); err != nil {
		return domain.Salary{}, fmt.Errorf("insert salary: %w", err)
	}

	s.log.Info("salary created",
		zap.String("salary_id", salary.ID.String()),
		zap.String("employee_id", salary.EmployeeID.String()),
		zap.String("period", salary.Period().String()),
	)
	return salary, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Salary, error) {
	salary, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return domain.Salary{}, fmt.Errorf("load salary: %w", err)
	}
	if salary == nil {
		return domain.Salary{}, domain.ErrSalaryNotFound
	}
	return *salary, nil
}

// MarkPaid settles a salary and records its receipt signal in the same
// transaction. Paying an already paid salary returns it unchanged. A version
// conflict is retried once, like invoice writes.
func (s *Service) MarkPaid(ctx context.Context, req domain.MarkPaidRequest) (domain.Salary, error) {
	ctx, span := s.tracer.Start(ctx, "payroll.MarkPaid", trace.WithAttributes(
		attribute.String("salary_id", req.SalaryID.String()),
	))
	defer span.End()

	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
		if paidAt.After(now) {
			return domain.Salary{}, tuitiondomain.NewValidationError("paid_at", tuitiondomain.CodeInvalidPaidAt, "payment date cannot be in the future")
		}
	}

	var result domain.Salary
	salaryID := req.SalaryID
	err := lock.WithKey(ctx, s.locker, lock.SalaryKey(salaryID), domain.ErrConflict, func() {
		s.log.Warn("salary version conflict, retrying", zap.String("salary_id", salaryID.String()))
	}, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			salary, err := s.repo.Find(ctx, tx, salaryID)
			if err != nil {
				return fmt.Errorf("load salary: %w", err)
			}
			if salary == nil {
				return domain.ErrSalaryNotFound
			}
			if salary.Status == domain.SalaryStatusPaid {
				result = *salary
				return nil
			}

			updated := *salary
			updated.Status = domain.SalaryStatusPaid
			updated.PaidAt = &paidAt
			updated.UpdatedAt = now
			ok, err := s.repo.MarkPaid(ctx, tx, updated, salary.Version)
			if err != nil {
				return fmt.Errorf("mark salary paid: %w", err)
			}
			if !ok {
				return domain.ErrConflict
			}
			updated.Version = salary.Version + 1

			if !updated.ReceiptIssued {
				payload := notificationdomain.SalaryReceiptPayload{
					SalaryID:   updated.ID,
					EmployeeID: updated.EmployeeID,
					Period:     updated.Period().String(),
					Amount:     updated.Amount.String(),
					PaidAt:     paidAt,
				}
				if _, err := s.outbox.Enqueue(ctx, tx, notificationdomain.KindSalaryReceipt, updated.ID, payload); err != nil {
					return fmt.Errorf("enqueue salary receipt: %w", err)
				}
			}
			result = updated
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, domain.ErrSalaryNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return domain.Salary{}, err
	}

	s.log.Info("salary paid",
		zap.String("salary_id", result.ID.String()),
		zap.String("amount", result.Amount.String()),
	)
	return result, nil
}

func (s *Service) MarkReceiptIssued(ctx context.Context, id snowflake.ID) error {
	updated, err := s.repo.MarkReceiptIssued(ctx, s.db, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("mark salary receipt issued: %w", err)
	}
	if updated {
		return nil
	}
	_, err = s.Get(ctx, id)
	return err
}

func (s *Service) ListPending(ctx context.Context) ([]domain.Salary, error) {
	items, err := s.repo.List(ctx, s.db, domain.SalaryFilter{Status: domain.SalaryStatusPending})
	if err != nil {
		return nil, fmt.Errorf("list pending salaries: %w", err)
	}
	return items, nil
}

// ListPaid returns salaries paid in [from, to). Nil bounds are open.
func (s *Service) ListPaid(ctx context.Context, from, to *time.Time) ([]domain.Salary, error) {
	items, err := s.repo.List(ctx, s.db, domain.SalaryFilter{
		Status:   domain.SalaryStatusPaid,
		PaidFrom: from,
		PaidTo:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("list paid salaries: %w", err)
	}
	return items, nil
}

func (s *Service) TotalPaid(ctx context.Context, employeeID snowflake.ID) (money.Money, error) {
	items, err := s.repo.List(ctx, s.db, domain.SalaryFilter{
		Status:     domain.SalaryStatusPaid,
		EmployeeID: employeeID,
	})
	if err != nil {
		return money.Zero(), fmt.Errorf("list paid salaries: %w", err)
	}
	return domain.TotalAmount(items), nil
}
