// Package domain aggregates revenue and costs into a financial summary.
package domain

import (
	"context"
	"time"

	billdomain "github.com/smallbiznis/schoolride/internal/bill/domain"
	expensedomain "github.com/smallbiznis/schoolride/internal/expense/domain"
	payrolldomain "github.com/smallbiznis/schoolride/internal/payroll/domain"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/money"
)

// Summary is revenue and expenses over a window. Net may be negative.
type Summary struct {
	Year  int `json:"year,omitempty"`
	Month int `json:"month,omitempty"`

	TuitionReceived money.Money `json:"tuition_received"`
	BillsReceived   money.Money `json:"bills_received"`
	Revenue         money.Money `json:"revenue"`

	OperatingExpenses money.Money `json:"operating_expenses"`
	SalariesPaid      money.Money `json:"salaries_paid"`
	Expenses          money.Money `json:"expenses"`

	Net money.Money `json:"net"`
}

// Window is a half-open [From, To) range. Nil bounds are open.
type Window struct {
	From *time.Time
	To   *time.Time
}

// Summarize adds up already filtered collections.
func Summarize(payments []tuitiondomain.Payment, bills []billdomain.Bill, expenses []expensedomain.Expense, salaries []payrolldomain.Salary) Summary {
	s := Summary{
		TuitionReceived:   tuitiondomain.TotalPaid(payments),
		BillsReceived:     billdomain.TotalAmount(bills),
		OperatingExpenses: expensedomain.TotalAmount(expenses),
		SalariesPaid:      payrolldomain.TotalAmount(salaries),
	}
	s.Revenue = s.TuitionReceived.Add(s.BillsReceived)
	s.Expenses = s.OperatingExpenses.Add(s.SalariesPaid)
	s.Net = s.Revenue.Sub(s.Expenses)
	return s
}

// WindowFor maps a year and optional month to a date range. Year 0 covers
// all time and month 0 the whole year.
func WindowFor(year, month int) (Window, error) {
	if month < 0 || month > 12 {
		return Window{}, tuitiondomain.NewValidationError("month", tuitiondomain.CodeInvalidPeriod, "month must be between 1 and 12")
	}
	if year < 0 {
		return Window{}, tuitiondomain.NewValidationError("year", tuitiondomain.CodeInvalidPeriod, "year cannot be negative")
	}
	if year == 0 {
		if month != 0 {
			return Window{}, tuitiondomain.NewValidationError("month", tuitiondomain.CodeInvalidPeriod, "month requires a year")
		}
		return Window{}, nil
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	if month != 0 {
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to = from.AddDate(0, 1, 0)
	}
	return Window{From: &from, To: &to}, nil
}

type Service interface {
	FinancialSummary(ctx context.Context, year, month int) (Summary, error)
}
