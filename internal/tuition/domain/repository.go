package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type InvoiceFilter struct {
	Status    []InvoiceStatus
	StudentID snowflake.ID
	Period    *Period
	// DueBefore selects invoices with due_date strictly before it.
	DueBefore *time.Time
	// DeadlineBefore selects invoices with hard_deadline strictly before it.
	DeadlineBefore *time.Time
	// WithoutNotification excludes invoices that already have a notification of this kind.
	WithoutNotification string
	Limit               int
}

type PaymentFilter struct {
	InvoiceID snowflake.ID
	StudentID snowflake.ID
	Method    PaymentMethod
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, inv *Invoice) error
	FindInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	ListInvoices(ctx context.Context, db *gorm.DB, filter InvoiceFilter) ([]Invoice, error)
	ExistingStudents(ctx context.Context, db *gorm.DB, period Period, studentIDs []snowflake.ID) (map[snowflake.ID]bool, error)

	// UpdateInvoiceState writes status, paid_at and version+1 when the stored
	// version still equals expectedVersion. It reports whether a row changed.
	UpdateInvoiceState(ctx context.Context, db *gorm.DB, inv Invoice, expectedVersion int64) (bool, error)
	// UpdateInvoiceTerms is the administrative counterpart of UpdateInvoiceState.
	UpdateInvoiceTerms(ctx context.Context, db *gorm.DB, inv Invoice, expectedVersion int64) (bool, error)
	MarkReceiptIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)

	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	ListPaymentsByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]Payment, error)
	ListPayments(ctx context.Context, db *gorm.DB, filter PaymentFilter) ([]Payment, error)
}
