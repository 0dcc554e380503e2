package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/notification/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(n)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListDispatchable(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).
		Where("status IN ? AND attempts < ?", []domain.Status{domain.StatusPending, domain.StatusFailed}, maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications
		SET status = ?, dispatched_at = ?, attempts = attempts + 1, last_error = ''
		WHERE id = ?`,
		domain.StatusSent,
		at,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?`,
		domain.StatusFailed,
		reason,
		id,
	).Error
}

func (r *repo) CountBacklog(ctx context.Context, db *gorm.DB, maxAttempts int) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("status IN ? AND attempts < ?", []domain.Status{domain.StatusPending, domain.StatusFailed}, maxAttempts).
		Count(&count).Error
	return count, err
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, kind domain.Kind, subjectID snowflake.ID) (*domain.Notification, error) {
	var items []domain.Notification
	err := db.WithContext(ctx).
		Where("kind = ? AND subject_id = ?", kind, subjectID).
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
