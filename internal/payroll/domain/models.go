// Package domain contains the driver salary model.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
)

type SalaryStatus string

const (
	SalaryStatusPending SalaryStatus = "PENDING"
	SalaryStatusPaid    SalaryStatus = "PAID"
)

var (
	ErrSalaryNotFound = errors.New("salary_not_found")
	ErrConflict       = errors.New("salary_conflict")
)

// Salary is the monthly pay owed to one employee.
type Salary struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	EmployeeID    snowflake.ID `json:"employee_id" gorm:"not null;index"`
	PeriodYear    int          `json:"period_year" gorm:"not null"`
	PeriodMonth   int          `json:"period_month" gorm:"not null"`
	Amount        money.Money  `json:"amount" gorm:"type:numeric(14,2);not null"`
	Status        SalaryStatus `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	ReceiptIssued bool         `json:"receipt_issued" gorm:"not null;default:false"`
	ContactEmail  string       `json:"contact_email" gorm:"type:text;not null;default:''"`
	Note          string       `json:"note" gorm:"type:text;not null;default:''"`
	Version       int64        `json:"version" gorm:"not null;default:0"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Salary) TableName() string { return "salaries" }

func (s Salary) Period() tuitiondomain.Period {
	return tuitiondomain.Period{Year: s.PeriodYear, Month: s.PeriodMonth}
}

// TotalAmount sums salary amounts.
func TotalAmount(items []Salary) money.Money {
	total := money.Zero()
	for _, s := range items {
		total = total.Add(s.Amount)
	}
	return total
}
