package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolride/pkg/money"
)

type CreateInvoiceRequest struct {
	StudentID snowflake.ID
	Period    Period
	Amount    money.Money
	// DueDate defaults to the configured due day of the period month.
	DueDate time.Time
	// HardDeadline defaults to DueDate plus the configured deadline days.
	HardDeadline time.Time
	// LateFeeRate defaults to the configured rate.
	LateFeeRate  *decimal.Decimal
	ContactEmail string
	Note         string
}

// CorrectInvoiceRequest changes the terms of an unpaid invoice. Nil fields are left as is.
type CorrectInvoiceRequest struct {
	InvoiceID    snowflake.ID
	Amount       *money.Money
	DueDate      *time.Time
	HardDeadline *time.Time
	LateFeeRate  *decimal.Decimal
	ContactEmail *string
	Note         *string
}

type CycleStudent struct {
	StudentID    snowflake.ID
	Amount       money.Money
	ContactEmail string
}

type GenerateCycleRequest struct {
	Period   Period
	Students []CycleStudent
}

type GenerateCycleResult struct {
	Created []Invoice
	// Skipped lists students that already had an invoice for the period.
	Skipped []snowflake.ID
}

type RecordPaymentRequest struct {
	InvoiceID snowflake.ID
	Amount    money.Money
	Method    PaymentMethod
	// PaidAt defaults to now and may not be in the future.
	PaidAt *time.Time
	Note   string
}

type ListInvoicesRequest struct {
	Status    InvoiceStatus
	StudentID snowflake.ID
	Period    *Period
	// OverdueOnly selects unpaid invoices whose due date has passed.
	OverdueOnly bool
	Limit       int
}

type ListPaymentsRequest struct {
	InvoiceID snowflake.ID
	StudentID snowflake.ID
	Method    PaymentMethod
	From      *time.Time
	To        *time.Time
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	CorrectInvoice(ctx context.Context, req CorrectInvoiceRequest) (Invoice, error)
	GenerateCycle(ctx context.Context, req GenerateCycleRequest) (GenerateCycleResult, error)

	RecordPayment(ctx context.Context, req RecordPaymentRequest) (Payment, error)
	Reconcile(ctx context.Context, invoiceID snowflake.ID) (Invoice, error)

	GetInvoice(ctx context.Context, invoiceID snowflake.ID) (InvoiceView, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error)
	TotalReceived(ctx context.Context, from, to *time.Time) (money.Money, error)

	MarkReceiptIssued(ctx context.Context, invoiceID snowflake.ID) error
	ReconcileOverdue(ctx context.Context, limit int) (int, error)
	EnqueueDeadlineAlerts(ctx context.Context, limit int) (int, error)
}
