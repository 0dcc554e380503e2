package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("method", "CASH"),
		attribute.String("student_id", "456"),
		attribute.String("kind", "invoice_receipt"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("method"), attrs[0].Key)
	assert.Equal(t, attribute.Key("kind"), attrs[1].Key)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordPayment(context.Background(), "CASH", "PARTIAL")
	m.RecordInvoiceCreated(context.Background(), "cycle")

	var nilMetrics *Metrics
	nilMetrics.RecordReceiptIssued(context.Background(), "invoice_receipt")
}

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "schoolride", Environment: "test"})

	m.AddBatchProcessed("reconcile_overdue", "invoices", 3)
	m.AddBatchProcessed("reconcile_overdue", "invoices", 0)

	got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("reconcile_overdue", "invoices"))
	assert.Equal(t, float64(3), got)
}

func TestBillingMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newBillingMetrics(registry, Config{Environment: "test"})

	m.IncTransition("PENDING", "PARTIAL")
	m.IncTransition("PENDING", "PARTIAL")
	m.IncConflict("retried")
	m.RecordOutboxBatch("sent", 4, 10*time.Millisecond)
	m.SetOutboxBacklog(2)
	m.RecordHandler("invoice_receipt", "error", time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.transitions.WithLabelValues("PENDING", "PARTIAL")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflicts.WithLabelValues("retried")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.outboxDispatch.WithLabelValues("sent")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.outboxBacklog))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.handlerErrors.WithLabelValues("invoice_receipt")))
}
