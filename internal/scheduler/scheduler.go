package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/smallbiznis/schoolride/internal/bill/domain"
	"github.com/smallbiznis/schoolride/internal/clock"
	"github.com/smallbiznis/schoolride/internal/lock"
	notificationdomain "github.com/smallbiznis/schoolride/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/schoolride/internal/observability/metrics"
	tuitiondomain "github.com/smallbiznis/schoolride/internal/tuition/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobReconcileOverdue      = "reconcile_overdue"
	JobDeadlineAlerts        = "deadline_alerts"
	JobDispatchNotifications = "dispatch_notifications"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Locker     lock.Locker
	Tuition    tuitiondomain.Service
	Bills      billdomain.Service
	Dispatcher notificationdomain.Dispatcher
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	locker     lock.Locker
	tuition    tuitiondomain.Service
	bills      billdomain.Service
	dispatcher notificationdomain.Dispatcher
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Locker == nil || p.Tuition == nil || p.Bills == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		locker:     p.Locker,
		tuition:    p.Tuition,
		bills:      p.Bills,
		dispatcher: p.Dispatcher,
	}, nil
}

// runJob runs fn under a per-job lock with a timeout. Running past the
// timeout is logged and counted but is not an error.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.startJobRun(ctx, name, batchSize)
	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	release, err := s.locker.Acquire(ctx, jobLockKey(name))
	if err != nil {
		// another instance holds the job
		if errors.Is(err, lock.ErrLockTimeout) {
			log.Debug("scheduler.job.skipped", zap.Error(err))
			return nil
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	s.logJobStart(run)

	err = fn(ctx)
	release()
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(run)
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobReconcileOverdue, s.ReconcileOverdueJob},
		{JobDeadlineAlerts, s.DeadlineAlertsJob},
		{JobDispatchNotifications, s.DispatchNotificationsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ReconcileOverdueJob moves pending invoices and bills past their due date
// to OVERDUE.
func (s *Scheduler) ReconcileOverdueJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()

	changed, err := s.tuition.ReconcileOverdue(ctx, s.cfg.BatchSize)
	run.AddProcessed(changed)
	schedMetrics.AddBatchProcessed(JobReconcileOverdue, "invoice", changed)
	if err != nil {
		s.logJobError(run, "scheduler.invoice.reconcile.failed", err)
	}

	bills, billErr := s.bills.MarkOverdue(ctx)
	run.AddProcessed(bills)
	schedMetrics.AddBatchProcessed(JobReconcileOverdue, "bill", bills)
	if billErr != nil {
		s.logJobError(run, "scheduler.bill.overdue.failed", billErr)
	}
	return errors.Join(err, billErr)
}

// DeadlineAlertsJob records an overdue alert for each unpaid invoice past
// its hard deadline. Each invoice is alerted once.
func (s *Scheduler) DeadlineAlertsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	enqueued, err := s.tuition.EnqueueDeadlineAlerts(ctx, s.cfg.BatchSize)
	run.AddProcessed(enqueued)
	obsmetrics.Scheduler().AddBatchProcessed(JobDeadlineAlerts, "notification", enqueued)
	if err != nil {
		s.logJobError(run, "scheduler.alert.enqueue.failed", err)
	}
	return err
}

// DispatchNotificationsJob drains the outbox until a batch comes back short.
func (s *Scheduler) DispatchNotificationsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	schedMetrics := obsmetrics.Scheduler()

	var jobErr error
	for {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}
		result, err := s.dispatcher.DispatchPending(ctx, s.cfg.BatchSize)
		processed := result.Sent + result.Failed
		run.AddProcessed(processed)
		schedMetrics.AddBatchProcessed(JobDispatchNotifications, "notification", result.Sent)
		if err != nil {
			s.logJobError(run, "scheduler.notification.dispatch.failed", err)
			jobErr = errors.Join(jobErr, err)
			break
		}
		// failed rows stay dispatchable, so only a fully sent batch continues
		if processed < s.cfg.BatchSize || result.Failed > 0 {
			break
		}
	}
	return jobErr
}

func jobLockKey(name string) string {
	return "scheduler:job:" + name
}
