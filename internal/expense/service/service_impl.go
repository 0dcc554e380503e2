package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/expense/domain"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var minAmount = money.MustParse("0.01")

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
		log:   p.Log.Named("expense.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.Expense, error) {
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return domain.Expense{}, tuitiondomain.NewValidationError("description", tuitiondomain.CodeRequired, "description is required")
	}
	if !req.Category.Valid() {
		return domain.Expense{}, tuitiondomain.NewValidationError("category", tuitiondomain.CodeInvalidCategory, fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.Amount.LessThan(minAmount) {
		return domain.Expense{}, tuitiondomain.NewValidationError("amount", tuitiondomain.CodeInvalidAmount, "amount must be at least 0.01")
	}

	now := s.clock.Now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	expense := domain.Expense{
		ID:          s.genID.Generate(),
		Description: description,
		Category:    req.Category,
		Amount:      req.Amount,
		Date:        tuitiondomain.DateOf(date),
		Note:        req.Note,
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &expense); err != nil {
		return domain.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	s.log.Info("expense recorded",
		zap.String("expense_id", expense.ID.String()),
		zap.String("category", string(expense.Category)),
		zap.String("amount", expense.Amount.String()),
	)
	return expense, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Expense, error) {
	if req.Category != "" && !req.Category.Valid() {
		return nil, tuitiondomain.NewValidationError("category", tuitiondomain.CodeInvalidCategory, fmt.Sprintf("unknown category %q", req.Category))
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, tuitiondomain.NewValidationError("to", tuitiondomain.CodeInvalidDateOrder, "range end is before its start")
	}
	items, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return items, nil
}

func (s *Service) Total(ctx context.Context, from, to *time.Time) (money.Money, error) {
	items, err := s.List(ctx, domain.ListRequest{From: from, To: to})
	if err != nil {
		return money.Zero(), err
	}
	return domain.TotalAmount(items), nil
}
