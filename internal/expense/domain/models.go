// Package domain contains operating expenses.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/pkg/money"
	"gorm.io/gorm"
)

type Category string

const (
	CategoryFuel        Category = "FUEL"
	CategoryMaintenance Category = "MAINTENANCE"
	CategoryRent        Category = "RENT"
	CategoryOther       Category = "OTHER"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFuel, CategoryMaintenance, CategoryRent, CategoryOther:
		return true
	}
	return false
}

type Expense struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Description string       `json:"description" gorm:"type:text;not null"`
	Category    Category     `json:"category" gorm:"type:text;not null"`
	Amount      money.Money  `json:"amount" gorm:"type:numeric(14,2);not null"`
	Date        time.Time    `json:"date" gorm:"type:date;not null;index"`
	Note        string       `json:"note" gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Expense) TableName() string { return "expenses" }

func TotalAmount(items []Expense) money.Money {
	total := money.Zero()
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return total
}

type CreateRequest struct {
	Description string
	Category    Category
	Amount      money.Money
	// Date defaults to today.
	Date time.Time
	Note string
}

// ListRequest filters by category and by date in [From, To).
type ListRequest struct {
	Category Category
	From     *time.Time
	To       *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, e *Expense) error
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]Expense, error)
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Expense, error)
	List(ctx context.Context, req ListRequest) ([]Expense, error)
	Total(ctx context.Context, from, to *time.Time) (money.Money, error)
}
