// Package domain contains standalone bills issued outside the tuition cycle.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/pkg/money"
	"gorm.io/gorm"
)

type BillStatus string

const (
	BillStatusPending BillStatus = "PENDING"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusOverdue BillStatus = "OVERDUE"
)

var ErrBillNotFound = errors.New("bill_not_found")

type Bill struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Amount      money.Money  `json:"amount" gorm:"type:numeric(14,2);not null"`
	IssuedAt    time.Time    `json:"issued_at" gorm:"not null"`
	DueDate     time.Time    `json:"due_date" gorm:"type:date;not null"`
	Status      BillStatus   `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

func TotalAmount(items []Bill) money.Money {
	total := money.Zero()
	for _, b := range items {
		total = total.Add(b.Amount)
	}
	return total
}

type CreateRequest struct {
	Description string
	Amount      money.Money
	// IssuedAt defaults to now.
	IssuedAt time.Time
	DueDate  time.Time
}

type Filter struct {
	Status     []BillStatus
	DueBefore  *time.Time
	IssuedFrom *time.Time
	IssuedTo   *time.Time
	PaidFrom   *time.Time
	PaidTo     *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, b *Bill) error
	Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	List(ctx context.Context, db *gorm.DB, filter Filter) ([]Bill, error)
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt, now time.Time) (bool, error)
	MarkOverdue(ctx context.Context, db *gorm.DB, today, now time.Time) (int64, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Bill, error)
	Get(ctx context.Context, id snowflake.ID) (Bill, error)
	// MarkPaid is idempotent on an already paid bill.
	MarkPaid(ctx context.Context, id snowflake.ID, paidAt *time.Time) (Bill, error)
	// MarkOverdue flags pending bills whose due date has passed.
	MarkOverdue(ctx context.Context) (int, error)
	ListOverdue(ctx context.Context) ([]Bill, error)
	ListPaid(ctx context.Context, from, to *time.Time) ([]Bill, error)
	TotalInvoiced(ctx context.Context, from, to *time.Time) (money.Money, error)
	TotalReceived(ctx context.Context, from, to *time.Time) (money.Money, error)
}
