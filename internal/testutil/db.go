// Package testutil opens an in-memory SQLite database with the billing schema.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Schema mirrors the PostgreSQL migrations with SQLite types. Money is stored
// as TEXT so values round-trip exactly.
var Schema = []string{
	`CREATE TABLE invoices (
		id INTEGER PRIMARY KEY,
		student_id INTEGER NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		hard_deadline DATETIME NOT NULL,
		late_fee_rate TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		paid_at DATETIME,
		receipt_issued BOOLEAN NOT NULL DEFAULT FALSE,
		contact_email TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_invoices_student_period ON invoices(student_id, period_year, period_month)`,
	`CREATE TABLE tuition_payments (
		id INTEGER PRIMARY KEY,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		amount TEXT NOT NULL,
		paid_at DATETIME NOT NULL,
		method TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE salaries (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		period_year INTEGER NOT NULL,
		period_month INTEGER NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		paid_at DATETIME,
		receipt_issued BOOLEAN NOT NULL DEFAULT FALSE,
		contact_email TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE expenses (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		date DATETIME NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE bills (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		issued_at DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		paid_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		subject_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		dispatched_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_notifications_kind_subject ON notifications(kind, subject_id)`,
}

// NewDB opens a fresh database. A single connection keeps every statement,
// including those inside transactions, on the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

// Count runs a COUNT query and returns the result.
func Count(t testing.TB, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Raw(query, args...).Scan(&count).Error)
	return count
}
