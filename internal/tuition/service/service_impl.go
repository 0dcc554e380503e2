package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	"github.com/smallbiznis/schoolride/internal/tuition/domain"
	"github.com/smallbiznis/schoolride/pkg/db"
	"github.com/smallbiznis/schoolride/pkg/money"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Locker     lock.Locker
	Repo       domain.Repository
	Outbox     notificationdomain.Outbox
	BillingCfg *config.BillingConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	locker     lock.Locker
	repo       domain.Repository
	outbox     notificationdomain.Outbox
	billingCfg *config.BillingConfigHolder
	obsMetrics *obsmetrics.Metrics
	metrics    *obsmetrics.BillingMetrics
	tracer     trace.Tracer
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("tuition.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		locker:     p.Locker,
		repo:       p.Repo,
		outbox:     p.Outbox,
		billingCfg: p.BillingCfg,
		obsMetrics: p.ObsMetrics,
		metrics:    obsmetrics.Billing(),
		tracer:     otel.Tracer("schoolride/tuition"),
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "tuition.CreateInvoice")
	defer span.End()

	now := s.clock.Now()
	inv, err := s.newInvoice(req, now)
	if err != nil {
		return domain.Invoice{}, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ExistingStudents(ctx, tx, inv.Period(), []snowflake.ID{inv.StudentID})
		if err != nil {
			return err
		}
		if existing[inv.StudentID] {
			return duplicatePeriodError(inv.StudentID, inv.Period())
		}
		if err := s.repo.InsertInvoice(ctx, tx, &inv); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return duplicatePeriodError(inv.StudentID, inv.Period())
			}
			return fmt.Errorf("insert invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return domain.Invoice{}, err
	}

	s.obsMetrics.RecordInvoiceCreated(ctx, "manual")
	s.log.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("student_id", inv.StudentID.String()),
		zap.String("period", inv.Period().String()),
		zap.String("amount", inv.Amount.String()),
	)
	return inv, nil
}

func (s *Service) GenerateCycle(ctx context.Context, req domain.GenerateCycleRequest) (domain.GenerateCycleResult, error) {
	ctx, span := s.tracer.Start(ctx, "tuition.GenerateCycle", trace.WithAttributes(
		attribute.String("period", req.Period.String()),
		attribute.Int("students", len(req.Students)),
	))
	defer span.End()

	var result domain.GenerateCycleResult
	if !req.Period.Valid() {
		return result, domain.NewValidationError("period", domain.CodeInvalidPeriod, "period must have a year and a month between 1 and 12")
	}

	now := s.clock.Now()
	invoices := make([]domain.Invoice, 0, len(req.Students))
	ids := make([]snowflake.ID, 0, len(req.Students))
	seen := make(map[snowflake.ID]bool, len(req.Students))
	for _, st := range req.Students {
		if seen[st.StudentID] {
			result.Skipped = append(result.Skipped, st.StudentID)
			continue
		}
		seen[st.StudentID] = true

		inv, err := s.newInvoice(domain.CreateInvoiceRequest{
			StudentID:    st.StudentID,
			Period:       req.Period,
			Amount:       st.Amount,
			ContactEmail: st.ContactEmail,
		}, now)
		if err != nil {
			return domain.GenerateCycleResult{}, fmt.Errorf("student %s: %w", st.StudentID, err)
		}
		invoices = append(invoices, inv)
		ids = append(ids, st.StudentID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.ExistingStudents(ctx, tx, req.Period, ids)
		if err != nil {
			return err
		}
		for i := range invoices {
			inv := invoices[i]
			if existing[inv.StudentID] {
				result.Skipped = append(result.Skipped, inv.StudentID)
				continue
			}
			if err := s.repo.InsertInvoice(ctx, tx, &inv); err != nil {
				return fmt.Errorf("insert invoice for student %s: %w", inv.StudentID, err)
			}
			result.Created = append(result.Created, inv)
		}
		return nil
	})
	if err != nil {
		recordSpanError(span, err)
		return domain.GenerateCycleResult{}, err
	}

	for range result.Created {
		s.obsMetrics.RecordInvoiceCreated(ctx, "cycle")
	}
	s.log.Info("billing cycle generated",
		zap.String("period", req.Period.String()),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *Service) CorrectInvoice(ctx context.Context, req domain.CorrectInvoiceRequest) (domain.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "tuition.CorrectInvoice", trace.WithAttributes(
		attribute.String("invoice_id", req.InvoiceID.String()),
	))
	defer span.End()

	var corrected domain.Invoice
	err := s.withInvoiceLock(ctx, req.InvoiceID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, payments, err := s.loadInvoice(ctx, tx, req.InvoiceID)
			if err != nil {
				return err
			}
			if inv.Status == domain.InvoiceStatusPaid {
				return domain.NewValidationError("invoice_id", domain.CodeInvoicePaid, "paid invoices cannot be corrected")
			}

			updated := inv
			applyCorrection(&updated, req)
			if err := validateTerms(updated); err != nil {
				return err
			}

			now := s.clock.Now()
			out := domain.Reconcile(updated, payments, now)
			out.Invoice.UpdatedAt = now

			ok, err := s.repo.UpdateInvoiceTerms(ctx, tx, out.Invoice, inv.Version)
			if err != nil {
				return fmt.Errorf("update invoice terms: %w", err)
			}
			if !ok {
				return domain.ErrConflict
			}
			if err := s.emitSignals(ctx, tx, out, payments); err != nil {
				return err
			}

			out.Invoice.Version = inv.Version + 1
			corrected = out.Invoice
			s.observeTransition(out)
			return nil
		})
	})
	if err != nil {
		recordSpanError(span, err)
		return domain.Invoice{}, err
	}

	s.log.Info("invoice corrected",
		zap.String("invoice_id", corrected.ID.String()),
		zap.String("amount", corrected.Amount.String()),
		zap.String("status", string(corrected.Status)),
	)
	return corrected, nil
}

// RecordPayment appends a payment and reconciles the invoice in one
// transaction. Payments above the amount owed are rejected.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (domain.Payment, error) {
	ctx, span := s.tracer.Start(ctx, "tuition.RecordPayment", trace.WithAttributes(
		attribute.String("invoice_id", req.InvoiceID.String()),
		attribute.String("method", string(req.Method)),
	))
	defer span.End()

	if !req.Amount.IsPositive() {
		return domain.Payment{}, domain.NewValidationError("amount", domain.CodeInvalidAmount, "payment amount must be greater than zero")
	}
	if !req.Method.Valid() {
		return domain.Payment{}, domain.NewValidationError("method", domain.CodeInvalidMethod, fmt.Sprintf("unknown payment method %q", req.Method))
	}
	now := s.clock.Now()
	paidAt := now
	if req.PaidAt != nil {
		paidAt = req.PaidAt.UTC()
		if paidAt.After(now) {
			return domain.Payment{}, domain.NewValidationError("paid_at", domain.CodeInvalidPaidAt, "payment date cannot be in the future")
		}
	}

	var (
		payment domain.Payment
		status  domain.InvoiceStatus
	)
	err := s.withInvoiceLock(ctx, req.InvoiceID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, payments, err := s.loadInvoice(ctx, tx, req.InvoiceID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			owed := domain.AmountOwed(inv, payments, now)
			if req.Amount.GreaterThan(owed) {
				return domain.NewValidationError("amount", domain.CodeOverpayment,
					fmt.Sprintf("payment of %s exceeds the amount owed of %s", req.Amount, money.Max(owed, money.Zero())))
			}

			p := domain.Payment{
				ID:        s.genID.Generate(),
				InvoiceID: inv.ID,
				Amount:    req.Amount,
				PaidAt:    paidAt,
				Method:    req.Method,
				Note:      req.Note,
				CreatedAt: now,
			}
			if err := s.repo.InsertPayment(ctx, tx, &p); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
			payments = append(payments, p)

			out := domain.Reconcile(inv, payments, now)
			out.Invoice.UpdatedAt = now
			// the version moves on every payment so a concurrent writer that
			// read the old payment set cannot commit
			ok, err := s.repo.UpdateInvoiceState(ctx, tx, out.Invoice, inv.Version)
			if err != nil {
				return fmt.Errorf("update invoice state: %w", err)
			}
			if !ok {
				return domain.ErrConflict
			}
			if err := s.emitSignals(ctx, tx, out, payments); err != nil {
				return err
			}

			payment = p
			status = out.Invoice.Status
			s.observeTransition(out)
			return nil
		})
	})
	if err != nil {
		recordSpanError(span, err)
		return domain.Payment{}, err
	}

	s.obsMetrics.RecordPayment(ctx, string(req.Method), string(status))
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", payment.InvoiceID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", string(payment.Method)),
		zap.String("invoice_status", string(status)),
	)
	return payment, nil
}

// Reconcile recomputes the invoice status. Nothing is written when the
// status is already current.
func (s *Service) Reconcile(ctx context.Context, invoiceID snowflake.ID) (domain.Invoice, error) {
	ctx, span := s.tracer.Start(ctx, "tuition.Reconcile", trace.WithAttributes(
		attribute.String("invoice_id", invoiceID.String()),
	))
	defer span.End()

	var result domain.Invoice
	err := s.withInvoiceLock(ctx, invoiceID, func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, payments, err := s.loadInvoice(ctx, tx, invoiceID)
			if err != nil {
				return err
			}

			now := s.clock.Now()
			out := domain.Reconcile(inv, payments, now)
			if !out.Changed {
				result = inv
				return nil
			}

			out.Invoice.UpdatedAt = now
			ok, err := s.repo.UpdateInvoiceState(ctx, tx, out.Invoice, inv.Version)
			if err != nil {
				return fmt.Errorf("update invoice state: %w", err)
			}
			if !ok {
				return domain.ErrConflict
			}
			if err := s.emitSignals(ctx, tx, out, payments); err != nil {
				return err
			}

			out.Invoice.Version = inv.Version + 1
			result = out.Invoice
			s.observeTransition(out)
			return nil
		})
	})
	if err != nil {
		recordSpanError(span, err)
		return domain.Invoice{}, err
	}
	return result, nil
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID snowflake.ID) (domain.InvoiceView, error) {
	inv, payments, err := s.loadInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceView{}, err
	}
	return domain.NewInvoiceView(inv, payments, s.clock.Now()), nil
}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListInvoicesRequest) ([]domain.Invoice, error) {
	filter := domain.InvoiceFilter{
		StudentID: req.StudentID,
		Period:    req.Period,
		Limit:     req.Limit,
	}
	if req.Status != "" {
		if !req.Status.Valid() {
			return nil, domain.NewValidationError("status", domain.CodeInvalidStatus, fmt.Sprintf("unknown status %q", req.Status))
		}
		filter.Status = []domain.InvoiceStatus{req.Status}
	}
	if req.Period != nil && !req.Period.Valid() {
		return nil, domain.NewValidationError("period", domain.CodeInvalidPeriod, "period must have a year and a month between 1 and 12")
	}
	if req.OverdueOnly {
		today := domain.DateOf(s.clock.Now())
		filter.DueBefore = &today
		if len(filter.Status) == 0 {
			filter.Status = unpaidStatuses()
		}
	}

	items, err := s.repo.ListInvoices(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return items, nil
}

func (s *Service) ListPayments(ctx context.Context, req domain.ListPaymentsRequest) ([]domain.Payment, error) {
	if req.Method != "" && !req.Method.Valid() {
		return nil, domain.NewValidationError("method", domain.CodeInvalidMethod, fmt.Sprintf("unknown payment method %q", req.Method))
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, domain.NewValidationError("to", domain.CodeInvalidDateOrder, "range end is before its start")
	}

	items, err := s.repo.ListPayments(ctx, s.db, domain.PaymentFilter{
		InvoiceID: req.InvoiceID,
		StudentID: req.StudentID,
		Method:    req.Method,
		From:      req.From,
		To:        req.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return items, nil
}

func (s *Service) TotalReceived(ctx context.Context, from, to *time.Time) (money.Money, error) {
	payments, err := s.ListPayments(ctx, domain.ListPaymentsRequest{From: from, To: to})
	if err != nil {
		return money.Zero(), err
	}
	return domain.TotalPaid(payments), nil
}

// MarkReceiptIssued is idempotent; an already issued receipt is not an error.
func (s *Service) MarkReceiptIssued(ctx context.Context, invoiceID snowflake.ID) error {
	updated, err := s.repo.MarkReceiptIssued(ctx, s.db, invoiceID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("mark receipt issued: %w", err)
	}
	if updated {
		return nil
	}

	inv, err := s.repo.FindInvoice(ctx, s.db, invoiceID)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.ErrInvoiceNotFound
	}
	return nil
}

// ReconcileOverdue moves pending invoices past their due date to OVERDUE.
// It returns how many invoices changed status.
func (s *Service) ReconcileOverdue(ctx context.Context, limit int) (int, error) {
	today := domain.DateOf(s.clock.Now())
	items, err := s.repo.ListInvoices(ctx, s.db, domain.InvoiceFilter{
		Status:    []domain.InvoiceStatus{domain.InvoiceStatusPending},
		DueBefore: &today,
		Limit:     limit,
	})
	if err != nil {
		return 0, fmt.Errorf("list pending invoices: %w", err)
	}

	changed := 0
	var errs []error
	for _, inv := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		updated, err := s.Reconcile(ctx, inv.ID)
		if err != nil {
			s.log.Warn("overdue reconcile failed",
				zap.String("invoice_id", inv.ID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("invoice %s: %w", inv.ID, err))
			continue
		}
		if updated.Status != inv.Status {
			changed++
		}
	}
	return changed, errors.Join(errs...)
}

// EnqueueDeadlineAlerts records one overdue alert per unpaid invoice past its
// hard deadline.
func (s *Service) EnqueueDeadlineAlerts(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	today := domain.DateOf(now)
	items, err := s.repo.ListInvoices(ctx, s.db, domain.InvoiceFilter{
		Status:              unpaidStatuses(),
		DeadlineBefore:      &today,
		WithoutNotification: string(notificationdomain.KindOverdueAlert),
		Limit:               limit,
	})
	if err != nil {
		return 0, fmt.Errorf("list invoices past deadline: %w", err)
	}

	enqueued := 0
	var errs []error
	for _, inv := range items {
		payments, err := s.repo.ListPaymentsByInvoice(ctx, s.db, inv.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		payload := notificationdomain.OverdueAlertPayload{
			InvoiceID:    inv.ID,
			StudentID:    inv.StudentID,
			Period:       inv.Period().String(),
			AmountDue:    domain.AmountDue(inv, now).String(),
			AmountOwed:   domain.AmountOwed(inv, payments, now).String(),
			DaysLate:     domain.DaysLate(inv, now),
			HardDeadline: inv.HardDeadline,
		}
		inserted, err := s.outbox.Enqueue(ctx, s.db, notificationdomain.KindOverdueAlert, inv.ID, payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if inserted {
			enqueued++
		}
	}
	return enqueued, errors.Join(errs...)
}

func (s *Service) newInvoice(req domain.CreateInvoiceRequest, now time.Time) (domain.Invoice, error) {
	if req.StudentID == 0 {
		return domain.Invoice{}, domain.NewValidationError("student_id", domain.CodeRequired, "student is required")
	}
	if !req.Period.Valid() {
		return domain.Invoice{}, domain.NewValidationError("period", domain.CodeInvalidPeriod, "period must have a year and a month between 1 and 12")
	}

	cfg := s.billingCfg.Get()
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Date(req.Period.Year, time.Month(req.Period.Month), cfg.DueDay, 0, 0, 0, 0, time.UTC)
	}
	dueDate = domain.DateOf(dueDate)
	hardDeadline := req.HardDeadline
	if hardDeadline.IsZero() {
		hardDeadline = dueDate.AddDate(0, 0, cfg.DeadlineDays)
	}
	hardDeadline = domain.DateOf(hardDeadline)
	rate := cfg.DefaultLateFeeRate()
	if req.LateFeeRate != nil {
		rate = *req.LateFeeRate
	}

	inv := domain.Invoice{
		ID:           s.genID.Generate(),
		StudentID:    req.StudentID,
		PeriodYear:   req.Period.Year,
		PeriodMonth:  req.Period.Month,
		Amount:       req.Amount,
		DueDate:      dueDate,
		HardDeadline: hardDeadline,
		LateFeeRate:  rate,
		Status:       domain.InvoiceStatusPending,
		ContactEmail: req.ContactEmail,
		Note:         req.Note,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := validateTerms(inv); err != nil {
		return domain.Invoice{}, err
	}
	if domain.IsPastDue(inv, now) {
		inv.Status = domain.InvoiceStatusOverdue
	}
	return inv, nil
}

func (s *Service) loadInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (domain.Invoice, []domain.Payment, error) {
	inv, err := s.repo.FindInvoice(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, nil, fmt.Errorf("load invoice: %w", err)
	}
	if inv == nil {
		return domain.Invoice{}, nil, domain.ErrInvoiceNotFound
	}
	payments, err := s.repo.ListPaymentsByInvoice(ctx, tx, id)
	if err != nil {
		return domain.Invoice{}, nil, fmt.Errorf("load payments: %w", err)
	}
	return *inv, payments, nil
}

// emitSignals writes the outbox rows requested by a transition inside tx.
func (s *Service) emitSignals(ctx context.Context, tx *gorm.DB, out domain.Outcome, payments []domain.Payment) error {
	if !out.HasSignal(domain.SignalReceiptRequired) {
		return nil
	}

	inv := out.Invoice
	payload := notificationdomain.InvoiceReceiptPayload{
		InvoiceID: inv.ID,
		StudentID: inv.StudentID,
		Period:    inv.Period().String(),
		TotalPaid: domain.TotalPaid(payments).String(),
	}
	if inv.PaidAt != nil {
		payload.PaidAt = *inv.PaidAt
	}
	if _, err := s.outbox.Enqueue(ctx, tx, notificationdomain.KindInvoiceReceipt, inv.ID, payload); err != nil {
		return fmt.Errorf("enqueue receipt: %w", err)
	}
	return nil
}

// withInvoiceLock runs fn while holding the invoice lock. A version conflict
// is retried once with a fresh read and then surfaced.
func (s *Service) withInvoiceLock(ctx context.Context, invoiceID snowflake.ID, fn func(ctx context.Context) error) error {
	err := lock.WithKey(ctx, s.locker, lock.InvoiceKey(invoiceID), domain.ErrConflict, func() {
		s.metrics.IncConflict("retried")
		s.log.Warn("invoice version conflict, retrying", zap.String("invoice_id", invoiceID.String()))
	}, fn)
	if errors.Is(err, domain.ErrConflict) {
		s.metrics.IncConflict("surfaced")
	}
	return err
}

func (s *Service) observeTransition(out domain.Outcome) {
	if out.Previous == out.Invoice.Status {
		return
	}
	s.metrics.IncTransition(string(out.Previous), string(out.Invoice.Status))
	s.log.Info("invoice status changed",
		zap.String("invoice_id", out.Invoice.ID.String()),
		zap.String("from", string(out.Previous)),
		zap.String("to", string(out.Invoice.Status)),
	)
}

func applyCorrection(inv *domain.Invoice, req domain.CorrectInvoiceRequest) {
	if req.Amount != nil {
		inv.Amount = *req.Amount
	}
	if req.DueDate != nil {
		inv.DueDate = domain.DateOf(*req.DueDate)
	}
	if req.HardDeadline != nil {
		inv.HardDeadline = domain.DateOf(*req.HardDeadline)
	}
	if req.LateFeeRate != nil {
		inv.LateFeeRate = *req.LateFeeRate
	}
	if req.ContactEmail != nil {
		inv.ContactEmail = *req.ContactEmail
	}
	if req.Note != nil {
		inv.Note = *req.Note
	}
}

var maxLateFeeRate = decimal.NewFromInt(1)

func validateTerms(inv domain.Invoice) error {
	if inv.Amount.IsNegative() {
		return domain.NewValidationError("amount", domain.CodeInvalidAmount, "amount cannot be negative")
	}
	if inv.LateFeeRate.IsNegative() || inv.LateFeeRate.GreaterThanOrEqual(maxLateFeeRate) {
		return domain.NewValidationError("late_fee_rate", domain.CodeInvalidRate, "late fee rate must be at least 0 and below 1")
	}
	if inv.HardDeadline.Before(inv.DueDate) {
		return domain.NewValidationError("hard_deadline", domain.CodeInvalidDateOrder, "hard deadline cannot be before the due date")
	}
	return nil
}

func duplicatePeriodError(studentID snowflake.ID, period domain.Period) error {
	return domain.NewValidationError("period", domain.CodeDuplicatePeriod,
		fmt.Sprintf("student %s already has an invoice for %s", studentID, period))
}

func unpaidStatuses() []domain.InvoiceStatus {
	return []domain.InvoiceStatus{
		domain.InvoiceStatusPending,
		domain.InvoiceStatusPartial,
		domain.InvoiceStatusOverdue,
	}
}

func recordSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
