package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	billdomain "github.com/smallbiznis/schoolride/internal/bill/domain"
	billrepo "github.com/smallbiznis/schoolride/internal/bill/repository"
	billservice "github.com/smallbiznis/schoolride/internal/bill/service"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/config"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/schoolride/internal/notification/repository"
	notificationservice "github.com/smallbiznis/schoolride/internal/notification/service"
	"github.com/smallbiznis/schoolride/internal/notification/transport/inline"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	"github.com/smallbiznis/schoolride/internal/testutil"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	tuitionrepo "github.com/smallbiznis/schoolride/internal/tuition/repository"
	tuitionservice "github.com/smallbiznis/schoolride/internal/tuition/service"
	"github.com/smallbiznis/schoolride/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestRunJobTimeoutDoesNotReturnErrorAndIncrementsTimeout(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()

	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{
		ServiceName: "schoolride",
		Environment: "test",
	})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	s := &Scheduler{
		log:    zap.NewNop(),
		genID:  node,
		clock:  clock.NewFakeClock(time.Time{}),
		locker: lock.NewLocalLocker(time.Second),
	}
	err = s.runJob(context.Background(), "timeout_job", 0, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	labels := map[string]string{
		"service": "schoolride",
		"env":     "test",
		"job":     "timeout_job",
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "schoolride_scheduler_job_timeouts_total", labels))

	errorLabels := map[string]string{
		"service": "schoolride",
		"env":     "test",
		"job":     "timeout_job",
		"reason":  obsmetrics.SchedulerJobReasonDeadlineExceeded,
	}
	assert.Equal(t, float64(1), getCounterValue(t, registry, "schoolride_scheduler_job_errors_total", errorLabels))
}

func TestRunJobSkipsWhenLockIsHeld(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	locker := lock.NewLocalLocker(10 * time.Millisecond)

	release, err := locker.Acquire(context.Background(), jobLockKey("busy"))
	require.NoError(t, err)
	defer release()

	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{}), locker: locker}
	called := false
	err = s.runJob(context.Background(), "busy", 10, time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRunJobWrapsErrors(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{}), locker: lock.NewLocalLocker(time.Second)}

	boom := errors.New("boom")
	err = s.runJob(context.Background(), "failing", 10, time.Second, func(context.Context) error {
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestIsJobEnabled(t *testing.T) {
	s := &Scheduler{cfg: Config{}}
	assert.True(t, s.isJobEnabled(JobDeadlineAlerts))

	s.cfg.EnabledJobs = []string{"Reconcile_Overdue"}
	assert.True(t, s.isJobEnabled(JobReconcileOverdue))
	assert.False(t, s.isJobEnabled(JobDeadlineAlerts))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{BatchSize: 7}.withDefaults()
	assert.Equal(t, 7, cfg.BatchSize)
	assert.Equal(t, time.Minute, cfg.RunInterval)
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)

	provided := ProvideConfig(config.Config{Worker: config.WorkerConfig{
		SchedulerEnabled: true,
		EnabledJobs:      []string{JobDispatchNotifications},
	}})
	assert.True(t, provided.Enabled)
	assert.Equal(t, 50, provided.BatchSize)
	assert.Equal(t, []string{JobDispatchNotifications}, provided.EnabledJobs)
}

type harness struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	tuition   tuitiondomain.Service
	bills     billdomain.Service
	sched     *Scheduler
	mu        sync.Mutex
	delivered []notificationdomain.Message
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	db := testutil.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	billingCfg, err := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())
	require.NoError(t, err)
	locker := lock.NewLocalLocker(time.Second)

	h := &harness{db: db, clock: clk}

	outbox := notificationservice.NewOutbox(notificationservice.OutboxParams{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  notificationrepo.Provide(),
	})
	handler := notificationdomain.HandlerFunc(func(_ context.Context, msg notificationdomain.Message) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.delivered = append(h.delivered, msg)
		return nil
	})
	dispatcher := notificationservice.NewDispatcher(notificationservice.DispatcherParams{
		DB:        db,
		Log:       zap.NewNop(),
		Clock:     clk,
		Repo:      notificationrepo.Provide(),
		Publisher: inline.NewPublisher(handler, zap.NewNop()),
	})

	h.tuition = tuitionservice.NewService(tuitionservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Locker:     locker,
		Repo:       tuitionrepo.Provide(),
		Outbox:     outbox,
		BillingCfg: billingCfg,
	})
	h.bills = billservice.NewService(billservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  billrepo.Provide(),
	})

	h.sched, err = New(Params{
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Locker:     locker,
		Tuition:    h.tuition,
		Bills:      h.bills,
		Dispatcher: dispatcher,
		Config:     cfg,
	})
	require.NoError(t, err)
	return h
}

func (h *harness) kinds() []notificationdomain.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]notificationdomain.Kind, 0, len(h.delivered))
	for _, msg := range h.delivered {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

func TestRunOnceReconcilesAndAlerts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{BatchSize: 2})

	dueDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	var invoices []tuitiondomain.Invoice
	for student := 1; student <= 3; student++ {
		inv, err := h.tuition.CreateInvoice(ctx, tuitiondomain.CreateInvoiceRequest{
			StudentID:    snowflake.ID(student),
			Period:       tuitiondomain.Period{Year: 2026, Month: 3},
			Amount:       money.MustParse("100.00"),
			DueDate:      dueDate,
			ContactEmail: "guardian@example.com",
		})
		require.NoError(t, err)
		invoices = append(invoices, inv)
	}
	bill, err := h.bills.Create(ctx, billdomain.CreateRequest{
		Description: "School contract March",
		Amount:      money.MustParse("500.00"),
		DueDate:     dueDate,
	})
	require.NoError(t, err)

	h.clock.Set(invoices[0].HardDeadline.AddDate(0, 0, 1))
	require.NoError(t, h.sched.RunOnce(ctx))

	overdue, err := h.tuition.ListInvoices(ctx, tuitiondomain.ListInvoicesRequest{Status: tuitiondomain.InvoiceStatusOverdue})
	require.NoError(t, err)
	assert.Len(t, overdue, 2, "reconcile is bounded by the batch size")

	got, err := h.bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, billdomain.BillStatusOverdue, got.Status)

	// dispatch keeps draining full batches
	assert.Len(t, h.kinds(), 2)
	for _, kind := range h.kinds() {
		assert.Equal(t, notificationdomain.KindOverdueAlert, kind)
	}

	require.NoError(t, h.sched.RunOnce(ctx))
	overdue, err = h.tuition.ListInvoices(ctx, tuitiondomain.ListInvoicesRequest{Status: tuitiondomain.InvoiceStatusOverdue})
	require.NoError(t, err)
	assert.Len(t, overdue, 3)
	assert.Len(t, h.kinds(), 3)
	assert.Equal(t, int64(3), testutil.Count(t, h.db,
		"SELECT COUNT(*) FROM notifications WHERE kind = ? AND status = ?", "overdue_alert", "SENT"))
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Config{EnabledJobs: []string{JobReconcileOverdue}})

	inv, err := h.tuition.CreateInvoice(ctx, tuitiondomain.CreateInvoiceRequest{
		StudentID: 1,
		Period:    tuitiondomain.Period{Year: 2026, Month: 3},
		Amount:    money.MustParse("100.00"),
		DueDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	h.clock.Set(inv.HardDeadline.AddDate(0, 0, 1))
	require.NoError(t, h.sched.RunOnce(ctx))

	got, err := h.tuition.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, tuitiondomain.InvoiceStatusOverdue, got.Invoice.Status)
	assert.Empty(t, h.kinds())
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "SELECT COUNT(*) FROM notifications"))
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}
