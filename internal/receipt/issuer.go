// Package receipt turns notification messages into PDF receipts and
// e-mails, then records that the receipt went out.
package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	payrolldomain "github.com/smallbiznis/schoolride/internal/payroll/domain"
	"github.com/smallbiznis/schoolride/internal/providers/email"
	"github.com/smallbiznis/schoolride/internal/providers/pdf"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	Tuition    tuitiondomain.Service
	Payroll    payrolldomain.Service
	PDF        pdf.Provider
	Email      email.Provider
	BillingCfg *config.BillingConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Issuer handles invoice_receipt, salary_receipt and overdue_alert messages.
// Handling the same message twice sends at most one receipt.
type Issuer struct {
	log        *zap.Logger
	clock      clock.Clock
	tuition    tuitiondomain.Service
	payroll    payrolldomain.Service
	pdf        pdf.Provider
	email      email.Provider
	billingCfg *config.BillingConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func NewIssuer(p Params) *Issuer {
	return &Issuer{
		log:        p.Log.Named("receipt.issuer"),
		clock:      p.Clock,
		tuition:    p.Tuition,
		payroll:    p.Payroll,
		pdf:        p.PDF,
		email:      p.Email,
		billingCfg: p.BillingCfg,
		obsMetrics: p.ObsMetrics,
	}
}

func (i *Issuer) Handle(ctx context.Context, msg notificationdomain.Message) error {
	switch msg.Kind {
	case notificationdomain.KindInvoiceReceipt:
		return i.issueInvoiceReceipt(ctx, msg)
	case notificationdomain.KindSalaryReceipt:
		return i.issueSalaryReceipt(ctx, msg)
	case notificationdomain.KindOverdueAlert:
		return i.sendOverdueAlert(ctx, msg)
	default:
		return fmt.Errorf("%w: %s", notificationdomain.ErrUnsupportedKind, msg.Kind)
	}
}

func (i *Issuer) issueInvoiceReceipt(ctx context.Context, msg notificationdomain.Message) error {
	var payload notificationdomain.InvoiceReceiptPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode invoice receipt payload: %w", err)
	}
	if payload.InvoiceID == 0 {
		payload.InvoiceID = msg.SubjectID
	}

	view, err := i.tuition.GetInvoice(ctx, payload.InvoiceID)
	if err != nil {
		return err
	}
	inv := view.Invoice
	if inv.ReceiptIssued {
		i.log.Debug("invoice receipt already issued", zap.String("invoice_id", inv.ID.String()))
		return nil
	}

	cfg := i.billingCfg.Get()
	data := pdf.ReceiptData{
		Title:          "Tuition receipt",
		OrgName:        cfg.OrganizationName,
		OrgEmail:       cfg.OrganizationEmail,
		ReceiptNumber:  NewReceiptNumber(),
		Reference:      inv.ID.String(),
		Period:         inv.Period().String(),
		IssuedAt:       i.clock.Now().UTC().Format(dateLayout),
		RecipientLabel: "Student " + inv.StudentID.String(),
		RecipientEmail: inv.ContactEmail,
		Currency:       cfg.Currency,
		Total:          view.TotalPaid.String(),
	}
	if inv.PaidAt != nil {
		data.PaidAt = inv.PaidAt.UTC().Format(dateLayout)
	}
	for _, p := range view.Payments {
		data.Lines = append(data.Lines, pdf.ReceiptLine{
			Description: fmt.Sprintf("Tuition payment (%s)", p.Method),
			Date:        p.PaidAt.UTC().Format(dateLayout),
			Amount:      p.Amount.String(),
		})
	}

	if err := i.deliver(ctx, inv.ContactEmail, "Tuition receipt "+data.Period, "invoice_receipt", data); err != nil {
		return err
	}
	if err := i.tuition.MarkReceiptIssued(ctx, inv.ID); err != nil {
		return err
	}

	i.obsMetrics.RecordReceiptIssued(ctx, "invoice")
	i.log.Info("invoice receipt issued",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("receipt_number", data.ReceiptNumber),
	)
	return nil
}

func (i *Issuer) issueSalaryReceipt(ctx context.Context, msg notificationdomain.Message) error {
	var payload notificationdomain.SalaryReceiptPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode salary receipt payload: %w", err)
	}
	if payload.SalaryID == 0 {
		payload.SalaryID = msg.SubjectID
	}

	salary, err := i.payroll.Get(ctx, payload.SalaryID)
	if err != nil {
		return err
	}
	if salary.ReceiptIssued {
		i.log.Debug("salary receipt already issued", zap.String("salary_id", salary.ID.String()))
		return nil
	}

	cfg := i.billingCfg.Get()
	data := pdf.ReceiptData{
		Title:          "Salary receipt",
		OrgName:        cfg.OrganizationName,
		OrgEmail:       cfg.OrganizationEmail,
		ReceiptNumber:  NewReceiptNumber(),
		Reference:      salary.ID.String(),
		Period:         salary.Period().String(),
		IssuedAt:       i.clock.Now().UTC().Format(dateLayout),
		RecipientLabel: "Employee " + salary.EmployeeID.String(),
		RecipientEmail: salary.ContactEmail,
		Currency:       cfg.Currency,
		Total:          salary.Amount.String(),
	}
	if salary.PaidAt != nil {
		data.PaidAt = salary.PaidAt.UTC().Format(dateLayout)
	}
	data.Lines = []pdf.ReceiptLine{{
		Description: "Salary " + data.Period,
		Date:        data.PaidAt,
		Amount:      salary.Amount.String(),
	}}

	if err := i.deliver(ctx, salary.ContactEmail, "Salary receipt "+data.Period, "salary_receipt", data); err != nil {
		return err
	}
	if err := i.payroll.MarkReceiptIssued(ctx, salary.ID); err != nil {
		return err
	}

	i.obsMetrics.RecordReceiptIssued(ctx, "salary")
	i.log.Info("salary receipt issued",
		zap.String("salary_id", salary.ID.String()),
		zap.String("receipt_number", data.ReceiptNumber),
	)
	return nil
}

func (i *Issuer) sendOverdueAlert(ctx context.Context, msg notificationdomain.Message) error {
	var payload notificationdomain.OverdueAlertPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode overdue alert payload: %w", err)
	}
	if payload.InvoiceID == 0 {
		payload.InvoiceID = msg.SubjectID
	}

	// amounts are recomputed so a late delivery shows the current late fee
	view, err := i.tuition.GetInvoice(ctx, payload.InvoiceID)
	if err != nil {
		return err
	}
	inv := view.Invoice
	if inv.Status == tuitiondomain.InvoiceStatusPaid {
		i.log.Debug("invoice paid before the alert went out", zap.String("invoice_id", inv.ID.String()))
		return nil
	}

	cfg := i.billingCfg.Get()
	statement := pdf.StatementData{
		OrgName:      cfg.OrganizationName,
		OrgEmail:     cfg.OrganizationEmail,
		Reference:    inv.ID.String(),
		Period:       inv.Period().String(),
		DueDate:      inv.DueDate.Format(dateLayout),
		HardDeadline: inv.HardDeadline.Format(dateLayout),
		DaysLate:     view.DaysLate,
		Currency:     cfg.Currency,
		Amount:       inv.Amount.String(),
		LateFee:      view.LateFee.String(),
		AmountDue:    view.AmountDue.String(),
		TotalPaid:    view.TotalPaid.String(),
		AmountOwed:   view.AmountOwed.String(),
	}

	if strings.TrimSpace(inv.ContactEmail) == "" {
		i.log.Warn("overdue invoice has no contact address", zap.String("invoice_id", inv.ID.String()))
		return nil
	}

	doc, err := i.pdf.GenerateStatement(ctx, statement)
	if err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	attachment, err := pdfAttachment("statement-"+statement.Period+".pdf", doc)
	if err != nil {
		return err
	}
	subject := "Overdue tuition " + statement.Period
	if err := i.email.SendTemplate(ctx, []string{inv.ContactEmail}, subject, "overdue_alert", statement, attachment); err != nil {
		return fmt.Errorf("send overdue alert: %w", err)
	}

	i.obsMetrics.RecordAlertSent(ctx)
	i.log.Info("overdue alert sent",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("days_late", view.DaysLate),
	)
	return nil
}

// deliver renders the receipt PDF and e-mails it. A missing contact
// address skips the e-mail; the receipt still counts as issued.
func (i *Issuer) deliver(ctx context.Context, to, subject, templateName string, data pdf.ReceiptData) error {
	if strings.TrimSpace(to) == "" {
		i.log.Warn("no contact address, receipt not e-mailed", zap.String("reference", data.Reference))
		return nil
	}

	doc, err := i.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	attachment, err := pdfAttachment("receipt-"+data.ReceiptNumber+".pdf", doc)
	if err != nil {
		return err
	}
	if err := i.email.SendTemplate(ctx, []string{to}, subject, templateName, data, attachment); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	return nil
}

func pdfAttachment(filename string, doc io.Reader) (email.Attachment, error) {
	body, err := io.ReadAll(doc)
	if err != nil {
		return email.Attachment{}, fmt.Errorf("read pdf: %w", err)
	}
	return email.Attachment{Filename: filename, ContentType: "application/pdf", Data: body}, nil
}

// NewReceiptNumber returns a sortable, unique receipt number.
func NewReceiptNumber() string {
	return "RC-" + ulid.Make().String()
}
