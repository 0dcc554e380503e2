package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/bill/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, b *domain.Bill) error {
	return db.WithContext(ctx).Create(b).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bill, error) {
	var items []domain.Bill
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter) ([]domain.Bill, error) {
	query := db.WithContext(ctx).Model(&domain.Bill{})
	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", filter.Status)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issued_at >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issued_at < ?", *filter.IssuedTo)
	}
	if filter.PaidFrom != nil {
		query = query.Where("paid_at >= ?", *filter.PaidFrom)
	}
	if filter.PaidTo != nil {
		query = query.Where("paid_at < ?", *filter.PaidTo)
	}

	var items []domain.Bill
	if err := query.Order("due_date ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bills SET status = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		domain.BillStatusPaid,
		paidAt,
		now,
		id,
		domain.BillStatusPaid,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, today, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE bills SET status = ?, updated_at = ? WHERE status = ? AND due_date < ?`,
		domain.BillStatusOverdue,
		now,
		domain.BillStatusPending,
		today,
	)
	return res.RowsAffected, res.Error
}
