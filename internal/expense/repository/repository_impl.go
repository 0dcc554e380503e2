package repository

import (
	"context"

	"github.com/smallbiznis/schoolride/internal/expense/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.Expense) error {
	return db.WithContext(ctx).Create(e).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req domain.ListRequest) ([]domain.Expense, error) {
	query := db.WithContext(ctx).Model(&domain.Expense{})
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.From != nil {
		query = query.Where("date >= ?", *req.From)
	}
	if req.To != nil {
		query = query.Where("date < ?", *req.To)
	}

	var items []domain.Expense
	if err := query.Order("date ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
