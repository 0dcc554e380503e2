package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
)

type CreateSalaryRequest struct {
	EmployeeID   snowflake.ID
	Period       tuitiondomain.Period
	Amount       money.Money
	ContactEmail string
	Note         string
}

type MarkPaidRequest struct {
	SalaryID snowflake.ID
	// PaidAt defaults to now and may not be in the future.
	PaidAt *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateSalaryRequest) (Salary, error)
	Get(ctx context.Context, id snowflake.ID) (Salary, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (Salary, error)
	MarkReceiptIssued(ctx context.Context, id snowflake.ID) error
	ListPending(ctx context.Context) ([]Salary, error)
	ListPaid(ctx context.Context, from, to *time.Time) ([]Salary, error)
	// TotalPaid sums paid salaries, for one employee when employeeID is set.
	TotalPaid(ctx context.Context, employeeID snowflake.ID) (money.Money, error)
}
