package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolride/pkg/money"
)

// LateFeeWindowDays is the length of one late-fee period.
const LateFeeWindowDays = 5

// LateFee is base * rate for every complete window of lateness,
// rounded half-up to cents.
func LateFee(base money.Money, daysLate int, rate decimal.Decimal) money.Money {
	if daysLate <= 0 || rate.IsZero() {
		return money.Zero()
	}
	periods := int64(daysLate / LateFeeWindowDays)
	if periods == 0 {
		return money.Zero()
	}
	return base.MulRate(rate.Mul(decimal.NewFromInt(periods)))
}

// AccrueLateFee returns base plus the late fee for daysLate.
func AccrueLateFee(base money.Money, daysLate int, rate decimal.Decimal) money.Money {
	return base.Add(LateFee(base, daysLate, rate))
}

// DaysLate counts calendar days past the due date. Paid invoices are never late.
func DaysLate(inv Invoice, now time.Time) int {
	if inv.Status == InvoiceStatusPaid {
		return 0
	}
	days := int(DateOf(now).Sub(DateOf(inv.DueDate)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// AmountDue is the invoice amount plus, while the invoice is OVERDUE, the
// late fee accrued at now. Any other status owes the plain amount.
func AmountDue(inv Invoice, now time.Time) money.Money {
	if inv.Status != InvoiceStatusOverdue {
		return inv.Amount
	}
	return AccrueLateFee(inv.Amount, DaysLate(inv, now), inv.LateFeeRate)
}

func TotalPaid(payments []Payment) money.Money {
	total := money.Zero()
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// AmountOwed is what remains to be paid at now. A paid invoice owes nothing.
func AmountOwed(inv Invoice, payments []Payment, now time.Time) money.Money {
	if inv.Status == InvoiceStatusPaid {
		return money.Zero()
	}
	return AmountDue(inv, now).Sub(TotalPaid(payments))
}

// IsPastDue reports whether now is after the due date.
func IsPastDue(inv Invoice, now time.Time) bool {
	return DateOf(now).After(DateOf(inv.DueDate))
}

// IsPastDeadline reports whether now is after the hard deadline.
func IsPastDeadline(inv Invoice, now time.Time) bool {
	return DateOf(now).After(DateOf(inv.HardDeadline))
}
