// Package domain defines the notification outbox: signals written inside
// billing transactions and delivered asynchronously to receipt and alert handlers.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/schoolride/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Kind string

const (
	KindInvoiceReceipt Kind = "invoice_receipt"
	KindSalaryReceipt  Kind = "salary_receipt"
	KindOverdueAlert   Kind = "overdue_alert"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInvoiceReceipt, KindSalaryReceipt, KindOverdueAlert:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

var (
	ErrInvalidKind     = errors.New("invalid_notification_kind")
	ErrUnsupportedKind = errors.New("unsupported_notification_kind")
)

// Notification is one outbox row. (kind, subject_id) is unique so a signal
// is recorded at most once per subject.
type Notification struct {
	ID           snowflake.ID   `json:"id" gorm:"primaryKey"`
	Kind         Kind           `json:"kind" gorm:"type:text;not null;uniqueIndex:ux_notifications_kind_subject"`
	SubjectID    snowflake.ID   `json:"subject_id" gorm:"not null;uniqueIndex:ux_notifications_kind_subject"`
	Status       Status         `json:"status" gorm:"type:text;not null;default:'PENDING'"`
	Attempts     int            `json:"attempts" gorm:"not null;default:0"`
	LastError    string         `json:"last_error" gorm:"type:text;not null;default:''"`
	Payload      datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

// Message is what transports carry to handlers.
type Message struct {
	ID        snowflake.ID         `json:"id"`
	Kind      Kind                 `json:"kind"`
	SubjectID snowflake.ID         `json:"subject_id"`
	Payload   json.RawMessage      `json:"payload,omitempty"`
	Metadata  correlation.Metadata `json:"metadata"`
}

func (m Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

func UnmarshalMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	if !msg.Kind.Valid() {
		return Message{}, ErrInvalidKind
	}
	return msg, nil
}

// Outbox records notifications inside the caller's transaction.
type Outbox interface {
	// Enqueue reports false when the (kind, subject) signal already exists.
	Enqueue(ctx context.Context, tx *gorm.DB, kind Kind, subjectID snowflake.ID, payload any) (bool, error)
}

// Publisher hands a message to a transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Handler consumes delivered messages.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// DispatchResult summarises one dispatcher batch.
type DispatchResult struct {
	Sent   int
	Failed int
}

type Dispatcher interface {
	DispatchPending(ctx context.Context, limit int) (DispatchResult, error)
}
