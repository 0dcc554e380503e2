package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/internal/tuition/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	return db.WithContext(ctx).Create(inv).Error
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var items []domain.Invoice
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	query := db.WithContext(ctx).Model(&domain.Invoice{})
	if len(filter.Status) > 0 {
		query = query.Where("status IN ?", filter.Status)
	}
	if filter.StudentID != 0 {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.Period != nil {
		query = query.Where("period_year = ? AND period_month = ?", filter.Period.Year, filter.Period.Month)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	if filter.DeadlineBefore != nil {
		query = query.Where("hard_deadline < ?", *filter.DeadlineBefore)
	}
	if filter.WithoutNotification != "" {
		query = query.Where(
			"NOT EXISTS (SELECT 1 FROM notifications n WHERE n.kind = ? AND n.subject_id = invoices.id)",
			filter.WithoutNotification,
		)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []domain.Invoice
	if err := query.Order("due_date ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ExistingStudents(ctx context.Context, db *gorm.DB, period domain.Period, studentIDs []snowflake.ID) (map[snowflake.ID]bool, error) {
	existing := make(map[snowflake.ID]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return existing, nil
	}

	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("period_year = ? AND period_month = ? AND student_id IN ?", period.Year, period.Month, studentIDs).
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

func (r *repo) UpdateInvoiceState(ctx context.Context, db *gorm.DB, inv domain.Invoice, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET status = ?, paid_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		inv.Status,
		nullableTime(inv.PaidAt),
		inv.UpdatedAt,
		inv.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateInvoiceTerms(ctx context.Context, db *gorm.DB, inv domain.Invoice, expectedVersion int64) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET amount = ?, due_date = ?, hard_deadline = ?, late_fee_rate = ?,
			contact_email = ?, note = ?, status = ?, paid_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		inv.Amount,
		inv.DueDate,
		inv.HardDeadline,
		inv.LateFeeRate,
		inv.ContactEmail,
		inv.Note,
		inv.Status,
		nullableTime(inv.PaidAt),
		inv.UpdatedAt,
		inv.ID,
		expectedVersion,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) MarkReceiptIssued(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET receipt_issued = ?, updated_at = ?
		WHERE id = ? AND receipt_issued = ?`,
		true,
		at,
		id,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) ListPaymentsByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("paid_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPayments(ctx context.Context, db *gorm.DB, filter domain.PaymentFilter) ([]domain.Payment, error) {
	query := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Select("tuition_payments.*")
	if filter.StudentID != 0 {
		query = query.
			Joins("JOIN invoices ON invoices.id = tuition_payments.invoice_id").
			Where("invoices.student_id = ?", filter.StudentID)
	}
	if filter.InvoiceID != 0 {
		query = query.Where("tuition_payments.invoice_id = ?", filter.InvoiceID)
	}
	if filter.Method != "" {
		query = query.Where("tuition_payments.method = ?", filter.Method)
	}
	if filter.From != nil {
		query = query.Where("tuition_payments.paid_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("tuition_payments.paid_at < ?", *filter.To)
	}

	var items []domain.Payment
	if err := query.Order("tuition_payments.paid_at ASC, tuition_payments.id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
