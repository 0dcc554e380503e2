package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/payroll/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, s *domain.Salary) error {
	return db.WithContext(ctx).Create(s).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Salary, error) {
	var items []domain.Salary
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

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.SalaryFilter) ([]domain.Salary, error) {
	query := db.WithContext(ctx).Model(&domain.Salary{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.EmployeeID != 0 {
		query = query.Where("employee_id = ?", filter.EmployeeID)
	}
	if filter.PaidFrom != nil {
		query = query.Where("paid_at >= ?", *filter.PaidFrom)
	}
	if filter.PaidTo != nil {
		query = query.Where("paid_at < ?", *filter.PaidTo)
	}

	var items []domain.Salary
	if err := query.Order("period_year ASC, period_month ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, s domain.Salary, expectedVersion int64) (bool, error) {
	if s.PaidAt == nil {
		return false, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE salaries
		SET status = ?, paid_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ?`,
		domain.SalaryStatusPaid,
		*s.PaidAt,
		s.UpdatedAt,
		s.ID,
		expectedVersion,
		domain.SalaryStatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkReceiptIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE salaries SET receipt_issued = ?, updated_at = ? WHERE id = ? AND receipt_issued = ?`,
		true,
		at,
		id,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
