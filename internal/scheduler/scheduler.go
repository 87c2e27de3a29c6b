package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one export run.
type Job func(ctx context.Context) error

type Scheduler struct {
	ctx    context.Context
	job    Job
	logger logrus.FieldLogger
	cron   *cron.Cron
	spec   string
}

// NewScheduler validates spec, a standard five-field cron expression or a
// descriptor such as @monthly.
func NewScheduler(ctx context.Context, spec string, job Job, logger logrus.FieldLogger) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{
		ctx:    ctx,
		job:    job,
		logger: logger,
		// a run still in progress delays the next one instead of overlapping it
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec: spec,
	}, nil
}

// Start the scheduler
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runJob); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.spec).Info("Scheduler started")
	return nil
}

// runJob executes one export and logs its outcome.
func (s *Scheduler) runJob() {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.job(s.ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled export failed")
		return
	}
	s.logger.Info("Scheduled export completed")
}

// Stop the scheduler and wait for a running export to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
