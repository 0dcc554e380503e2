package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationrepo "github.com/smallbiznis/schoolride/internal/notification/repository"
	notificationservice "github.com/smallbiznis/schoolride/internal/notification/service"
	"github.com/smallbiznis/schoolride/internal/testutil"
	"github.com/smallbiznis/schoolride/internal/tuition/domain"
	tuitionrepo "github.com/smallbiznis/schoolride/internal/tuition/repository"
	tuitionservice "github.com/smallbiznis/schoolride/internal/tuition/service"
	"github.com/smallbiznis/schoolride/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	march10 = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	march   = domain.Period{Year: 2026, Month: 3}
)

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, tuitionrepo.Provide())
}

func newFixtureWithRepo(t *testing.T, repo domain.Repository) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	billingCfg, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	require.NoError(t, err)

	outbox := notificationservice.NewOutbox(notificationservice.OutboxParams{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  notificationrepo.Provide(),
	})

	svc := tuitionservice.NewService(tuitionservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Locker:     lock.NewLocalLocker(5 * time.Second),
		Repo:       repo,
		Outbox:     outbox,
		BillingCfg: billingCfg,
	})
	return &fixture{db: db, svc: svc, clock: clk}
}

func (f *fixture) createInvoice(t *testing.T, studentID snowflake.ID, amount string) domain.Invoice {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		StudentID:    studentID,
		Period:       march,
		Amount:       money.MustParse(amount),
		DueDate:      march10,
		ContactEmail: "guardian@example.com",
	})
	require.NoError(t, err)
	return inv
}

func (f *fixture) pay(ctx context.Context, invoiceID snowflake.ID, amount string) (domain.Payment, error) {
	return f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: invoiceID,
		Amount:    money.MustParse(amount),
		Method:    domain.PaymentMethodCash,
	})
}

func TestPartialThenFullPaymentIssuesOneReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	assert.Equal(t, march10.AddDate(0, 0, 5), inv.HardDeadline)

	f.clock.Set(march10.AddDate(0, 0, 1))
	_, err := f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, view.Invoice.Status)
	assert.Equal(t, "50.00", view.AmountOwed.String())
	assert.Nil(t, view.Invoice.PaidAt)

	_, err = f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)

	view, err = f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	require.NotNil(t, view.Invoice.PaidAt)
	assert.True(t, view.AmountOwed.IsZero())
	assert.Equal(t, "100.00", view.TotalPaid.String())
	assert.Len(t, view.Payments, 2)
	assert.Equal(t, int64(1), testutil.Count(t, f.db,
		"SELECT COUNT(*) FROM notifications WHERE kind = ? AND subject_id = ?", "invoice_receipt", inv.ID))

	paidAt := *view.Invoice.PaidAt
	version := view.Invoice.Version

	f.clock.Set(march10.AddDate(0, 1, 0))
	again, err := f.svc.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, again.Status)
	assert.True(t, paidAt.Equal(*again.PaidAt))
	assert.Equal(t, version, again.Version)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "SELECT COUNT(*) FROM notifications"))
}

func TestReconcileMarksOverdueWithLateFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	f.clock.Set(march10.AddDate(0, 0, 6))
	updated, err := f.svc.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusOverdue, updated.Status)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "110.00", view.AmountDue.String())
	assert.Equal(t, "10.00", view.LateFee.String())
	assert.Equal(t, 6, view.DaysLate)

	// second run does not write
	again, err := f.svc.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, again.Version)
}

func TestOverpaymentIsRejectedAndLeavesInvoiceUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	f.clock.Set(march10.AddDate(0, 0, 1))
	_, err := f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)
	before, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.pay(ctx, inv.ID, "60.00")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, domain.CodeOverpayment, domain.ValidationCode(err))

	after, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Invoice.Status, after.Invoice.Status)
	assert.Equal(t, before.Invoice.Version, after.Invoice.Version)
	assert.Len(t, after.Payments, 1)
}

func TestLatePaymentSettlesPartialInvoiceWithoutFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	f.clock.Set(march10.AddDate(0, 0, 1))
	_, err := f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)

	f.clock.Set(march10.AddDate(0, 0, 10))
	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, view.Invoice.Status)
	assert.Equal(t, "100.00", view.AmountDue.String())
	assert.True(t, view.LateFee.IsZero())
	assert.Equal(t, "50.00", view.AmountOwed.String())

	_, err = f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)

	view, err = f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	assert.True(t, view.AmountOwed.IsZero())
	assert.Equal(t, int64(1), testutil.Count(t, f.db,
		"SELECT COUNT(*) FROM notifications WHERE kind = ? AND subject_id = ?", "invoice_receipt", inv.ID))
}

func TestPartialPaymentOnOverdueInvoiceDropsLateFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	f.clock.Set(march10.AddDate(0, 0, 6))
	updated, err := f.svc.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, domain.InvoiceStatusOverdue, updated.Status)

	_, err = f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, view.Invoice.Status)
	assert.Equal(t, "100.00", view.AmountDue.String())
	assert.True(t, view.LateFee.IsZero())
	assert.Equal(t, "50.00", view.AmountOwed.String())

	_, err = f.pay(ctx, inv.ID, "60.00")
	assert.Equal(t, domain.CodeOverpayment, domain.ValidationCode(err))

	_, err = f.pay(ctx, inv.ID, "50.00")
	require.NoError(t, err)
	view, err = f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	assert.Equal(t, "100.00", view.TotalPaid.String())
}

func TestOverdueInvoiceAcceptsPaymentIncludingFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	f.clock.Set(march10.AddDate(0, 0, 6))
	_, err := f.svc.Reconcile(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.pay(ctx, inv.ID, "110.01")
	assert.Equal(t, domain.CodeOverpayment, domain.ValidationCode(err))

	_, err = f.pay(ctx, inv.ID, "110.00")
	require.NoError(t, err)
	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	assert.Equal(t, "110.00", view.TotalPaid.String())
	assert.True(t, view.AmountOwed.IsZero())
}

func TestPendingInvoicePaidInFullAfterDueDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	// no reconcile has run, so the stored status is still PENDING
	f.clock.Set(march10.AddDate(0, 0, 7))
	_, err := f.pay(ctx, inv.ID, "100.00")
	require.NoError(t, err)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	require.NotNil(t, view.Invoice.PaidAt)
	assert.True(t, view.AmountOwed.IsZero())
	assert.Equal(t, int64(1), testutil.Count(t, f.db,
		"SELECT COUNT(*) FROM notifications WHERE kind = ? AND subject_id = ?", "invoice_receipt", inv.ID))

	_, err = f.pay(ctx, inv.ID, "0.01")
	assert.Equal(t, domain.CodeOverpayment, domain.ValidationCode(err))
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")

	_, err := f.pay(ctx, snowflake.ID(424242), "10.00")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)

	_, err = f.pay(ctx, inv.ID, "0.00")
	assert.Equal(t, domain.CodeInvalidAmount, domain.ValidationCode(err))

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Amount:    money.MustParse("10.00"),
		Method:    "CHEQUE",
	})
	assert.Equal(t, domain.CodeInvalidMethod, domain.ValidationCode(err))

	future := f.clock.Now().Add(time.Hour)
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: inv.ID,
		Amount:    money.MustParse("10.00"),
		Method:    domain.PaymentMethodTransfer,
		PaidAt:    &future,
	})
	assert.Equal(t, domain.CodeInvalidPaidAt, domain.ValidationCode(err))
}

func TestCreateInvoiceValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createInvoice(t, 100, "100.00")

	_, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID: 100,
		Period:    march,
		Amount:    money.MustParse("90.00"),
	})
	assert.Equal(t, domain.CodeDuplicatePeriod, domain.ValidationCode(err))

	_, err = f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID:    101,
		Period:       march,
		Amount:       money.MustParse("90.00"),
		DueDate:      march10,
		HardDeadline: march10.AddDate(0, 0, -1),
	})
	assert.Equal(t, domain.CodeInvalidDateOrder, domain.ValidationCode(err))

	one := decimal.NewFromInt(1)
	_, err = f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID:   101,
		Period:      march,
		Amount:      money.MustParse("90.00"),
		LateFeeRate: &one,
	})
	assert.Equal(t, domain.CodeInvalidRate, domain.ValidationCode(err))

	_, err = f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID: 101,
		Period:    domain.Period{Year: 2026, Month: 13},
		Amount:    money.MustParse("90.00"),
	})
	assert.Equal(t, domain.CodeInvalidPeriod, domain.ValidationCode(err))

	_, err = f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID: 101,
		Period:    march,
		Amount:    money.MustParse("-1.00"),
	})
	assert.Equal(t, domain.CodeInvalidAmount, domain.ValidationCode(err))
}

func TestCreateInvoiceUsesBillingDefaults(t *testing.T) {
	f := newFixture(t)
	inv, err := f.svc.CreateInvoice(context.Background(), domain.CreateInvoiceRequest{
		StudentID: 7,
		Period:    domain.Period{Year: 2026, Month: 4},
		Amount:    money.MustParse("120.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), inv.HardDeadline)
	assert.True(t, inv.LateFeeRate.Equal(decimal.RequireFromString("0.10")), inv.LateFeeRate.String())
}

func TestConcurrentPaymentsNeverOverpay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 100, "100.00")
	f.clock.Set(march10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pay(ctx, inv.ID, "10.00")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if domain.ValidationCode(err) == domain.CodeOverpayment {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 2, rejected)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, view.Invoice.Status)
	assert.Equal(t, "100.00", view.TotalPaid.String())
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "SELECT COUNT(*) FROM notifications WHERE kind = ?", "invoice_receipt"))
}

// conflictingRepo loses the version race a fixed number of times.
type conflictingRepo struct {
	domain.Repository
	mu        sync.Mutex
	conflicts int
}

func (r *conflictingRepo) UpdateInvoiceState(ctx context.Context, db *gorm.DB, inv domain.Invoice, expectedVersion int64) (bool, error) {
	r.mu.Lock()
	if r.conflicts > 0 {
		r.conflicts--
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()
	return r.Repository.UpdateInvoiceState(ctx, db, inv, expectedVersion)
}

func TestVersionConflictIsRetriedOnce(t *testing.T) {
	ctx := context.Background()
	repo := &conflictingRepo{Repository: tuitionrepo.Provide()}
	f := newFixtureWithRepo(t, repo)
	inv := f.createInvoice(t, 100, "100.00")

	repo.conflicts = 1
	_, err := f.pay(ctx, inv.ID, "40.00")
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "SELECT COUNT(*) FROM tuition_payments"))

	repo.conflicts = 2
	_, err = f.pay(ctx, inv.ID, "40.00")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "SELECT COUNT(*) FROM tuition_payments"))

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", view.TotalPaid.String())
	assert.Equal(t, domain.InvoiceStatusPartial, view.Invoice.Status)
}

func TestGenerateCycleSkipsExistingStudents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.createInvoice(t, 1, "100.00")

	result, err := f.svc.GenerateCycle(ctx, domain.GenerateCycleRequest{
		Period: march,
		Students: []domain.CycleStudent{
			{StudentID: 1, Amount: money.MustParse("100.00")},
			{StudentID: 2, Amount: money.MustParse("80.00")},
			{StudentID: 3, Amount: money.MustParse("120.00")},
			{StudentID: 3, Amount: money.MustParse("120.00")},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Created, 2)
	assert.ElementsMatch(t, []snowflake.ID{1, 3}, result.Skipped)
	assert.Equal(t, int64(3), testutil.Count(t, f.db, "SELECT COUNT(*) FROM invoices"))
}

func TestReconcileOverdueSweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	late := f.createInvoice(t, 1, "100.00")
	f.createInvoice(t, 2, "100.00")
	_, err := f.svc.CreateInvoice(ctx, domain.CreateInvoiceRequest{
		StudentID: 3,
		Period:    march,
		Amount:    money.MustParse("100.00"),
		DueDate:   march10.AddDate(0, 0, 20),
	})
	require.NoError(t, err)

	f.clock.Set(march10.AddDate(0, 0, 1))
	_, err = f.pay(ctx, late.ID, "10.00")
	require.NoError(t, err)

	changed, err := f.svc.ReconcileOverdue(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	overdue, err := f.svc.ListInvoices(ctx, domain.ListInvoicesRequest{Status: domain.InvoiceStatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, snowflake.ID(2), overdue[0].StudentID)

	pastDue, err := f.svc.ListInvoices(ctx, domain.ListInvoicesRequest{OverdueOnly: true})
	require.NoError(t, err)
	assert.Len(t, pastDue, 2)
}

func TestEnqueueDeadlineAlertsOncePerInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 1, "100.00")
	paid := f.createInvoice(t, 2, "50.00")

	f.clock.Set(march10)
	_, err := f.pay(ctx, paid.ID, "50.00")
	require.NoError(t, err)

	f.clock.Set(inv.HardDeadline.AddDate(0, 0, 1))
	n, err := f.svc.EnqueueDeadlineAlerts(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.EnqueueDeadlineAlerts(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(1), testutil.Count(t, f.db,
		"SELECT COUNT(*) FROM notifications WHERE kind = ? AND subject_id = ?", "overdue_alert", inv.ID))
}

func TestCorrectInvoice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 1, "100.00")

	f.clock.Set(march10)
	_, err := f.pay(ctx, inv.ID, "80.00")
	require.NoError(t, err)

	lower := money.MustParse("80.00")
	corrected, err := f.svc.CorrectInvoice(ctx, domain.CorrectInvoiceRequest{InvoiceID: inv.ID, Amount: &lower})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, corrected.Status)
	assert.Equal(t, int64(1), testutil.Count(t, f.db, "SELECT COUNT(*) FROM notifications WHERE kind = ?", "invoice_receipt"))

	higher := money.MustParse("200.00")
	_, err = f.svc.CorrectInvoice(ctx, domain.CorrectInvoiceRequest{InvoiceID: inv.ID, Amount: &higher})
	assert.Equal(t, domain.CodeInvoicePaid, domain.ValidationCode(err))
}

func TestMarkReceiptIssuedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.createInvoice(t, 1, "100.00")

	require.NoError(t, f.svc.MarkReceiptIssued(ctx, inv.ID))
	require.NoError(t, f.svc.MarkReceiptIssued(ctx, inv.ID))
	assert.ErrorIs(t, f.svc.MarkReceiptIssued(ctx, snowflake.ID(999)), domain.ErrInvoiceNotFound)

	view, err := f.svc.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, view.Invoice.ReceiptIssued)
}

func TestListPaymentsAndTotalReceived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.createInvoice(t, 1, "100.00")
	b := f.createInvoice(t, 2, "100.00")

	f.clock.Set(march10)
	_, err := f.pay(ctx, a.ID, "30.00")
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		InvoiceID: b.ID,
		Amount:    money.MustParse("45.50"),
		Method:    domain.PaymentMethodCard,
	})
	require.NoError(t, err)

	byStudent, err := f.svc.ListPayments(ctx, domain.ListPaymentsRequest{StudentID: 2})
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
	assert.Equal(t, "45.50", byStudent[0].Amount.String())

	byMethod, err := f.svc.ListPayments(ctx, domain.ListPaymentsRequest{Method: domain.PaymentMethodCash})
	require.NoError(t, err)
	assert.Len(t, byMethod, 1)

	total, err := f.svc.TotalReceived(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "75.50", total.String())

	from := march10.AddDate(0, 0, 1)
	none, err := f.svc.TotalReceived(ctx, &from, nil)
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}
