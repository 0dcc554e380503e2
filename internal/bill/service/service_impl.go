package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/bill/domain"
	"github.com/smallbiznis/schoolride/internal/clock"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("bill.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Bill, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Bill{}, tuitiondomain.NewValidationError("description", tuitiondomain.CodeRequired, "description is required")
	}
	if req.Amount.IsNegative() {
		return domain.Bill{}, tuitiondomain.NewValidationError("amount", tuitiondomain.CodeInvalidAmount, "amount cannot be negative")
	}
	if req.DueDate.IsZero() {
		return domain.Bill{}, tuitiondomain.NewValidationError("due_date", tuitiondomain.CodeRequired, "due date is required")
	}

	now := s.clock.Now()
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}
	dueDate := tuitiondomain.DateOf(req.DueDate)
	if dueDate.Before(tuitiondomain.DateOf(issuedAt)) {
		return domain.Bill{}, tuitiondomain.NewValidationError("due_date", tuitiondomain.CodeInvalidDateOrder, "due date cannot be before the issue date")
	}

	bill := domain.Bill{
		ID:          s.genID.Generate(),
		Description: description,
		Amount:      req.Amount,
		IssuedAt:    issuedAt.UTC(),
		DueDate:     dueDate,
		Status:      domain.BillStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if dueDate.Before(tuitiondomain.DateOf(now)) {
		bill.Status = domain.BillStatusOverdue
	}
	if err := s.repo.Insert(ctx, s.db, &bill); err != nil {
		return domain.Bill{}, fmt.Errorf("insert bill: %w", err)
	}

	s.log.Info("bill created",
		zap.String("bill_id", bill.ID.String()),
		zap.String("amount", bill.Amount.String()),
	)
	return bill, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Bill, error) {
	bill, err := s.repo.Find(ctx, s.db, id)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("load bill: %w", err)
	}
	if bill == nil {
		return domain.Bill{}, domain.ErrBillNotFound
	}
	return *bill, nil
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID, paidAt *time.Time) (domain.Bill, error) {
	now := s.clock.Now()
	at := now
	if paidAt != nil {
		at = paidAt.UTC()
		if at.After(now) {
			return domain.Bill{}, tuitiondomain.NewValidationError("paid_at", tuitiondomain.CodeInvalidPaidAt, "payment date cannot be in the future")
		}
	}

	updated, err := s.repo.MarkPaid(ctx, s.db, id, at, now)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("mark bill paid: %w", err)
	}
	bill, err := s.Get(ctx, id)
	if err != nil {
		return domain.Bill{}, err
	}
	if updated {
		s.log.Info("bill paid", zap.String("bill_id", id.String()))
	}
	return bill, nil
}

func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	now := s.clock.Now()
	n, err := s.repo.MarkOverdue(ctx, s.db, tuitiondomain.DateOf(now), now)
	if err != nil {
		return 0, fmt.Errorf("mark bills overdue: %w", err)
	}
	return int(n), nil
}

// ListOverdue returns unpaid bills past their due date, whether or not the
// overdue sweep has flagged them yet.
func (s *Service) ListOverdue(ctx context.Context) ([]domain.Bill, error) {
	today := tuitiondomain.DateOf(s.clock.Now())
	items, err := s.repo.List(ctx, s.db, domain.Filter{
		Status:    []domain.BillStatus{domain.BillStatusPending, domain.BillStatusOverdue},
		DueBefore: &today,
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue bills: %w", err)
	}
	return items, nil
}

func (s *Service) ListPaid(ctx context.Context, from, to *time.Time) ([]domain.Bill, error) {
	items, err := s.repo.List(ctx, s.db, domain.Filter{
		Status:   []domain.BillStatus{domain.BillStatusPaid},
		PaidFrom: from,
		PaidTo:   to,
	})
	if err != nil {
		return nil, fmt.Errorf("list paid bills: %w", err)
	}
	return items, nil
}

func (s *Service) TotalInvoiced(ctx context.Context, from, to *time.Time) (money.Money, error) {
	items, err := s.repo.List(ctx, s.db, domain.Filter{IssuedFrom: from, IssuedTo: to})
	if err != nil {
		return money.Zero(), fmt.Errorf("list bills: %w", err)
	}
	return domain.TotalAmount(items), nil
}

func (s *Service) TotalReceived(ctx context.Context, from, to *time.Time) (money.Money, error) {
	items, err := s.ListPaid(ctx, from, to)
	if err != nil {
		return money.Zero(), err
	}
	return domain.TotalAmount(items), nil
}
