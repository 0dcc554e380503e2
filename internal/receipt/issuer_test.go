package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/schoolride/internal/notification/repository"
	notificationservice "github.com/smallbiznis/schoolride/internal/notification/service"
	payrolldomain "github.com/smallbiznis/schoolride/internal/payroll/domain"
	payrollrepo "github.com/smallbiznis/schoolride/internal/payroll/repository"
	payrollservice "github.com/smallbiznis/schoolride/internal/payroll/service"
	"github.com/smallbiznis/schoolride/internal/providers/email"
	"github.com/smallbiznis/schoolride/internal/providers/pdf"
	"github.com/smallbiznis/schoolride/internal/testutil"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	tuitionrepo "github.com/smallbiznis/schoolride/internal/tuition/repository"
	tuitionservice "github.com/smallbiznis/schoolride/internal/tuition/service"
	"github.com/smallbiznis/schoolride/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPDF struct{}

func (stubPDF) GenerateReceipt(context.Context, pdf.ReceiptData) (io.Reader, error) {
	return bytes.NewReader([]byte("%PDF-receipt")), nil
}

func (stubPDF) GenerateStatement(context.Context, pdf.StatementData) (io.Reader, error) {
	return bytes.NewReader([]byte("%PDF-statement")), nil
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockEmail) SendTemplate(ctx context.Context, to []string, subject, templateName string, data any, attachments ...email.Attachment) error {
	return m.Called(ctx, to, subject, templateName, data, attachments).Error(0)
}

type fixture struct {
	clock   *clock.FakeClock
	tuition tuitiondomain.Service
	payroll payrolldomain.Service
	email   *mockEmail
	issuer  *Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	locker := lock.NewLocalLocker(time.Second)
	billingCfg, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	require.NoError(t, err)
	outbox := notificationservice.NewOutbox(notificationservice.OutboxParams{
		Log: log, GenID: node, Clock: clk, Repo: notificationrepo.Provide(),
	})

	f := &fixture{clock: clk, email: &mockEmail{}}
	f.tuition = tuitionservice.NewService(tuitionservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Locker: locker,
		Repo: tuitionrepo.Provide(), Outbox: outbox, BillingCfg: billingCfg,
	})
	f.payroll = payrollservice.NewService(payrollservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Locker: locker,
		Repo: payrollrepo.Provide(), Outbox: outbox,
	})
	f.issuer = NewIssuer(Params{
		Log:        log,
		Clock:      clk,
		Tuition:    f.tuition,
		Payroll:    f.payroll,
		PDF:        stubPDF{},
		Email:      f.email,
		BillingCfg: billingCfg,
	})
	return f
}

func (f *fixture) paidInvoice(t *testing.T) tuitiondomain.Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := f.tuition.CreateInvoice(ctx, tuitiondomain.CreateInvoiceRequest{
		StudentID:    21,
		Period:       tuitiondomain.Period{Year: 2026, Month: 3},
		Amount:       money.MustParse("100.00"),
		ContactEmail: "guardian@example.com",
	})
	require.NoError(t, err)
	_, err = f.tuition.RecordPayment(ctx, tuitiondomain.RecordPaymentRequest{
		InvoiceID: inv.ID, Amount: money.MustParse("100.00"), Method: tuitiondomain.PaymentMethodCash,
	})
	require.NoError(t, err)
	return inv
}

func message(t *testing.T, kind notificationdomain.Kind, subject snowflake.ID, payload any) notificationdomain.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return notificationdomain.Message{ID: 1, Kind: kind, SubjectID: subject, Payload: body}
}

func TestInvoiceReceiptIsSentOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.paidInvoice(t)

	f.email.On("SendTemplate", mock.Anything, []string{"guardian@example.com"}, "Tuition receipt 2026-03", "invoice_receipt",
		mock.MatchedBy(func(data any) bool {
			r, ok := data.(pdf.ReceiptData)
			return ok && r.Total == "100.00" && strings.HasPrefix(r.ReceiptNumber, "RC-") && len(r.Lines) == 1
		}),
		mock.MatchedBy(func(atts []email.Attachment) bool {
			return len(atts) == 1 && atts[0].ContentType == "application/pdf"
		}),
	).Return(nil).Once()

	msg := message(t, notificationdomain.KindInvoiceReceipt, inv.ID, notificationdomain.InvoiceReceiptPayload{InvoiceID: inv.ID})
	require.NoError(t, f.issuer.Handle(ctx, msg))
	require.NoError(t, f.issuer.Handle(ctx, msg))
	f.email.AssertExpectations(t)

	view, err := f.tuition.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, view.Invoice.ReceiptIssued)
}

func TestInvoiceReceiptEmailFailureKeepsItPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inv := f.paidInvoice(t)

	f.email.On("SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("smtp down")).Once()

	msg := message(t, notificationdomain.KindInvoiceReceipt, inv.ID, notificationdomain.InvoiceReceiptPayload{InvoiceID: inv.ID})
	require.Error(t, f.issuer.Handle(ctx, msg))

	view, err := f.tuition.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, view.Invoice.ReceiptIssued)
}

func TestSalaryReceipt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	salary, err := f.payroll.Create(ctx, payrolldomain.CreateSalaryRequest{
		EmployeeID:   3,
		Period:       tuitiondomain.Period{Year: 2026, Month: 2},
		Amount:       money.MustParse("900.00"),
		ContactEmail: "driver@example.com",
	})
	require.NoError(t, err)
	_, err = f.payroll.MarkPaid(ctx, payrolldomain.MarkPaidRequest{SalaryID: salary.ID})
	require.NoError(t, err)

	f.email.On("SendTemplate", mock.Anything, []string{"driver@example.com"}, "Salary receipt 2026-02", "salary_receipt", mock.Anything, mock.Anything).
		Return(nil).Once()

	msg := message(t, notificationdomain.KindSalaryReceipt, salary.ID, notificationdomain.SalaryReceiptPayload{SalaryID: salary.ID})
	require.NoError(t, f.issuer.Handle(ctx, msg))
	f.email.AssertExpectations(t)

	got, err := f.payroll.Get(ctx, salary.ID)
	require.NoError(t, err)
	assert.True(t, got.ReceiptIssued)
}

func TestOverdueAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	inv, err := f.tuition.CreateInvoice(ctx, tuitiondomain.CreateInvoiceRequest{
		StudentID:    22,
		Period:       tuitiondomain.Period{Year: 2026, Month: 3},
		Amount:       money.MustParse("100.00"),
		ContactEmail: "guardian@example.com",
	})
	require.NoError(t, err)
	f.clock.Set(time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC))
	_, err = f.tuition.Reconcile(ctx, inv.ID)
	require.NoError(t, err)

	f.email.On("SendTemplate", mock.Anything, []string{"guardian@example.com"}, "Overdue tuition 2026-03", "overdue_alert",
		mock.MatchedBy(func(data any) bool {
			st, ok := data.(pdf.StatementData)
			return ok && st.AmountDue == "110.00" && st.DaysLate == 6
		}),
		mock.Anything,
	).Return(nil).Once()

	msg := message(t, notificationdomain.KindOverdueAlert, inv.ID, notificationdomain.OverdueAlertPayload{InvoiceID: inv.ID})
	require.NoError(t, f.issuer.Handle(ctx, msg))
	f.email.AssertExpectations(t)
}

func TestOverdueAlertSkipsPaidInvoice(t *testing.T) {
	f := newFixture(t)
	inv := f.paidInvoice(t)

	msg := message(t, notificationdomain.KindOverdueAlert, inv.ID, notificationdomain.OverdueAlertPayload{InvoiceID: inv.ID})
	require.NoError(t, f.issuer.Handle(context.Background(), msg))
	f.email.AssertNotCalled(t, "SendTemplate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnsupportedKind(t *testing.T) {
	f := newFixture(t)
	err := f.issuer.Handle(context.Background(), notificationdomain.Message{Kind: "sms"})
	assert.ErrorIs(t, err, notificationdomain.ErrUnsupportedKind)
}

func TestReceiptNumbersAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := NewReceiptNumber()
		assert.False(t, seen[n])
		seen[n] = true
	}
}
