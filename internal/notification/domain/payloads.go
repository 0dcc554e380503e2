package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceReceiptPayload snapshots a tuition invoice when it became paid.
type InvoiceReceiptPayload struct {
	InvoiceID snowflake.ID `json:"invoice_id"`
	StudentID snowflake.ID `json:"student_id"`
	Period    string       `json:"period"`
	TotalPaid string       `json:"total_paid"`
	PaidAt    time.Time    `json:"paid_at"`
}

// SalaryReceiptPayload snapshots a salary when it was paid.
type SalaryReceiptPayload struct {
	SalaryID   snowflake.ID `json:"salary_id"`
	EmployeeID snowflake.ID `json:"employee_id"`
	Period     string       `json:"period"`
	Amount     string       `json:"amount"`
	PaidAt     time.Time    `json:"paid_at"`
}

// OverdueAlertPayload snapshots an invoice that passed its hard deadline.
type OverdueAlertPayload struct {
	InvoiceID    snowflake.ID `json:"invoice_id"`
	StudentID    snowflake.ID `json:"student_id"`
	Period       string       `json:"period"`
	AmountDue    string       `json:"amount_due"`
	AmountOwed   string       `json:"amount_owed"`
	DaysLate     int          `json:"days_late"`
	HardDeadline time.Time    `json:"hard_deadline"`
}
