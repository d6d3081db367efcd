package jobsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
)

// Auditor runs the credential audit.
type Auditor interface {
	Audit(ctx context.Context, repair bool) (user.AuditReport, error)
}

// AuditJob is a cron.Job auditing credentials and optionally repairing drifted profiles.
type AuditJob struct {
	svc     Auditor
	repair  bool
	timeout time.Duration
	logger  core.Logger
}

var _ cron.Job = (*AuditJob)(nil)

func NewAuditJob(svc Auditor, repair bool, logger core.Logger) *AuditJob {
	return &AuditJob{svc: svc, repair: repair, timeout: 10 * time.Minute, logger: logger}
}

func (j *AuditJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.svc.Audit(ctx, j.repair)
	if err != nil {
		j.logger.Error(fmt.Sprintf("credential audit: %v", err), err)
		return
	}
	msg := fmt.Sprintf(
		"credential audit: %d accounts, %d legacy, %d missing profiles, %d drifted, %d repaired, %d failed",
		report.Accounts, report.Legacy, report.MissingProfiles, report.Drifted, report.Repaired, report.Failed,
	)
	if report.Drifted > 0 || report.MissingProfiles > 0 {
		j.logger.Warn(msg, report)
		return
	}
	j.logger.Info(msg)
}

// Scheduler wraps a cron.Cron running the background jobs.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))}
}

// Add schedules job on spec; an empty spec disables it.
func (s *Scheduler) Add(spec string, job cron.Job) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return errors.Wrapf(err, "scheduling job on %q", spec)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
