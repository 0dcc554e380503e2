// Package domain contains the tuition invoice and payment models and the
// pure billing rules that operate on them.
package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolride/pkg/money"
)

// InvoiceStatus represents the tuition invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "PENDING"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// PaymentMethod is how a guardian settled a payment.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCard     PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard:
		return true
	}
	return false
}

// Period is a billing month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= 1 && p.Month <= 12
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Invoice is the monthly tuition charge for one student.
type Invoice struct {
	ID            snowflake.ID    `json:"id" gorm:"primaryKey"`
	StudentID     snowflake.ID    `json:"student_id" gorm:"not null;uniqueIndex:ux_invoices_student_period"`
	PeriodYear    int             `json:"period_year" gorm:"not null;uniqueIndex:ux_invoices_student_period"`
	PeriodMonth   int             `json:"period_month" gorm:"not null;uniqueIndex:ux_invoices_student_period"`
	Amount        money.Money     `json:"amount" gorm:"type:numeric(14,2);not null"`
	DueDate       time.Time       `json:"due_date" gorm:"type:date;not null"`
	HardDeadline  time.Time       `json:"hard_deadline" gorm:"type:date;not null"`
	LateFeeRate   decimal.Decimal `json:"late_fee_rate" gorm:"type:numeric(5,4);not null"`
	Status        InvoiceStatus   `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	ReceiptIssued bool            `json:"receipt_issued" gorm:"not null;default:false"`
	ContactEmail  string          `json:"contact_email" gorm:"type:text;not null;default:''"`
	Note          string          `json:"note" gorm:"type:text;not null;default:''"`
	Version       int64           `json:"version" gorm:"not null;default:0"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

func (i Invoice) Period() Period {
	return Period{Year: i.PeriodYear, Month: i.PeriodMonth}
}

// Payment is an append-only ledger entry against an invoice.
type Payment struct {
	ID        snowflake.ID  `json:"id" gorm:"primaryKey"`
	InvoiceID snowflake.ID  `json:"invoice_id" gorm:"not null;index"`
	Amount    money.Money   `json:"amount" gorm:"type:numeric(14,2);not null"`
	PaidAt    time.Time     `json:"paid_at" gorm:"not null"`
	Method    PaymentMethod `json:"method" gorm:"type:text;not null"`
	Note      string        `json:"note" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "tuition_payments" }

// InvoiceView is an invoice with its payments and the values derived from them.
type InvoiceView struct {
	Invoice    Invoice     `json:"invoice"`
	Payments   []Payment   `json:"payments"`
	TotalPaid  money.Money `json:"total_paid"`
	DaysLate   int         `json:"days_late"`
	LateFee    money.Money `json:"late_fee"`
	AmountDue  money.Money `json:"amount_due"`
	AmountOwed money.Money `json:"amount_owed"`
}

// NewInvoiceView computes the derived totals at now.
func NewInvoiceView(inv Invoice, payments []Payment, now time.Time) InvoiceView {
	due := AmountDue(inv, now)
	return InvoiceView{
		Invoice:    inv,
		Payments:   payments,
		TotalPaid:  TotalPaid(payments),
		DaysLate:   DaysLate(inv, now),
		LateFee:    due.Sub(inv.Amount),
		AmountDue:  due,
		AmountOwed: AmountOwed(inv, payments, now),
	}
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
