package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type SalaryFilter struct {
	Status     SalaryStatus
	EmployeeID snowflake.ID
	PaidFrom   *time.Time
	PaidTo     *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, s *Salary) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Salary, error)
	List(ctx context.Context, db *gorm.DB, filter SalaryFilter) ([]Salary, error)
	// MarkPaid moves a PENDING salary to PAID when the stored version matches.
	MarkPaid(ctx context.Context, db *gorm.DB, s Salary, expectedVersion int64) (bool, error)
	MarkReceiptIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}
