package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	ListDispatchable(ctx context.Context, db *gorm.DB, maxAttempts, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, reason string) error
	CountBacklog(ctx context.Context, db *gorm.DB, maxAttempts int) (int64, error)
	Find(ctx context.Context, db *gorm.DB, kind Kind, subjectID snowflake.ID) (*Notification, error)
}
