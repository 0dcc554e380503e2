package domain

import (
	"time"
)

// Signal is a side effect requested by a status transition.
type Signal string

const (
	SignalReceiptRequired Signal = "receipt_required"
)

// Outcome is the result of reconciling an invoice against its payments.
type Outcome struct {
	Invoice  Invoice
	Previous InvoiceStatus
	Changed  bool
	Signals  []Signal
}

// Reconcile derives the invoice status from its payments at now.
//
// PAID is terminal. Otherwise the status is PAID when payments cover the
// amount due, PARTIAL when anything was paid, OVERDUE when past the due
// date and PENDING before it. The late fee is part of the amount due only
// while the invoice is OVERDUE. Entering PAID stamps paid_at once and asks
// for a receipt if none was issued. Reconcile does no I/O.
func Reconcile(inv Invoice, payments []Payment, now time.Time) Outcome {
	out := Outcome{Invoice: inv, Previous: inv.Status}

	if inv.Status == InvoiceStatusPaid {
		if inv.PaidAt == nil {
			paidAt := now
			out.Invoice.PaidAt = &paidAt
			out.Changed = true
		}
		return out
	}

	target := targetStatus(inv, payments, now)
	if target == inv.Status {
		return out
	}

	out.Invoice.Status = target
	out.Changed = true

	if target == InvoiceStatusPaid {
		if out.Invoice.PaidAt == nil {
			paidAt := now
			out.Invoice.PaidAt = &paidAt
		}
		if !out.Invoice.ReceiptIssued {
			out.Signals = append(out.Signals, SignalReceiptRequired)
		}
	}
	return out
}

func targetStatus(inv Invoice, payments []Payment, now time.Time) InvoiceStatus {
	paid := TotalPaid(payments)
	switch {
	// leaving OVERDUE drops the fee, so covering the plain amount settles
	// the invoice even when the fee was part of the amount due
	case paid.GreaterThanOrEqual(AmountDue(inv, now)), paid.GreaterThanOrEqual(inv.Amount):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartial
	case IsPastDue(inv, now):
		return InvoiceStatusOverdue
	default:
		return InvoiceStatusPending
	}
}

// HasSignal reports whether the outcome carries s.
func (o Outcome) HasSignal(s Signal) bool {
	for _, got := range o.Signals {
		if got == s {
			return true
		}
	}
	return false
}
