// Package scheduler runs the periodic marketplace jobs on a cron.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/slopeside/core"
)

// Job names, as accepted by `admin runjob`
const (
	JobExpireBookings    = "expire-bookings"
	JobCompleteBookings  = "complete-bookings"
	JobExpireInvitations = "expire-invitations"
)

var ErrUnknownJob = errors.New("unknown job")

type (
	// RunFunc does one pass of a job and returns how many rows it changed.
	RunFunc func(ctx context.Context, now time.Time) (int, error)

	Job struct {
		Name string
		Spec string
		Run  RunFunc
	}

	BookingJobs interface {
		ExpireStale(ctx context.Context, now time.Time) (int, error)
		CompletePast(ctx context.Context, now time.Time) (int, error)
	}

	InvitationJobs interface {
		ExpireInvitations(ctx context.Context, now time.Time) (int, error)
	}

	Scheduler struct {
		cron      *cron.Cron
		jobs      map[string]Job
		logger    core.Logger
		timeout   time.Duration
		scheduled bool
	}
)

// Jobs returns the marketplace jobs with their configured specs.
func Jobs(conf core.SchedulerConfig, bookings BookingJobs, invitations InvitationJobs) []Job {
	return []Job{
		{Name: JobExpireBookings, Spec: conf.ExpireBookingsSpec, Run: bookings.ExpireStale},
		{Name: JobCompleteBookings, Spec: conf.CompleteBookingsSpec, Run: bookings.CompletePast},
		{Name: JobExpireInvitations, Spec: conf.ExpireInvitationsSpec, Run: invitations.ExpireInvitations},
	}
}

func New(logger core.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]Job, len(jobs)),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
	s.cron = cron.New(cron.WithLocation(time.UTC), cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))
	for _, job := range jobs {
		s.jobs[job.Name] = job
	}
	return s
}

// Names returns the registered job names, sorted.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunJob runs a single job once, now.
func (s *Scheduler) RunJob(ctx context.Context, name string) (int, error) {
	job, ok := s.jobs[name]
	if !ok {
		return 0, errors.Wrap(ErrUnknownJob, name)
	}
	count, err := job.Run(ctx, core.NowFunc())
	if err != nil {
		return 0, errors.Wrapf(err, "running %s", name)
	}
	return count, nil
}

func (s *Scheduler) run(name string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		started := time.Now()
		count, err := s.RunJob(ctx, name)
		if err != nil {
			s.logger.Error(fmt.Sprintf("job %s failed: %v", name, err), err)
			return
		}
		s.logger.Info(fmt.Sprintf("job %s: %d updated in %v", name, count, time.Since(started).Round(time.Millisecond)))
	}
}

// Start schedules every job that has a spec and starts the cron in its own goroutine.
func (s *Scheduler) Start() error {
	if !s.scheduled {
		for _, name := range s.Names() {
			job := s.jobs[name]
			if job.Spec == "" {
				continue
			}
			if _, err := s.cron.AddFunc(job.Spec, s.run(name)); err != nil {
				return errors.Wrapf(err, "scheduling %s (%q)", name, job.Spec)
			}
		}
		s.scheduled = true
	}
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for running jobs, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v: %v", msg, keysAndValues, err), err)
}
