package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	logsvc "github.com/trezcool/slopeside/services/logger"
)

type fakeJobs struct {
	expired, completed, invitations int
	err                             error
}

func (f *fakeJobs) ExpireStale(context.Context, time.Time) (int, error) {
	f.expired++
	return 2, f.err
}

func (f *fakeJobs) CompletePast(context.Context, time.Time) (int, error) {
	f.completed++
	return 1, f.err
}

func (f *fakeJobs) ExpireInvitations(context.Context, time.Time) (int, error) {
	f.invitations++
	return 3, f.err
}

func TestScheduler_RunJob(t *testing.T) {
	fake := new(fakeJobs)
	conf := core.NewTestConfig().Scheduler
	s := New(logsvc.NewDiscard(), Jobs(conf, fake, fake)...)

	assert.Equal(t, []string{JobCompleteBookings, JobExpireBookings, JobExpireInvitations}, s.Names())

	tests := []struct {
		name      string
		wantCount int
	}{
		{JobExpireBookings, 2},
		{JobCompleteBookings, 1},
		{JobExpireInvitations, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := s.RunJob(context.Background(), tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, count)
		})
	}
	assert.Equal(t, 1, fake.expired)
	assert.Equal(t, 1, fake.completed)
	assert.Equal(t, 1, fake.invitations)
}

func TestScheduler_RunJobErrors(t *testing.T) {
	fake := &fakeJobs{err: errors.New("db down")}
	s := New(logsvc.NewDiscard(), Jobs(core.SchedulerConfig{}, fake, fake)...)

	_, err := s.RunJob(context.Background(), "nope")
	assert.Equal(t, ErrUnknownJob, errors.Cause(err))

	_, err = s.RunJob(context.Background(), JobExpireBookings)
	assert.EqualError(t, err, "running expire-bookings: db down")
}

func TestScheduler_StartStop(t *testing.T) {
	ran := make(chan struct{}, 10)
	tick := func(context.Context, time.Time) (int, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 0, nil
	}
	s := New(logsvc.NewDiscard(), Job{Name: "tick", Spec: "@every 1s", Run: tick}, Job{Name: "manual", Run: tick})

	require.NoError(t, s.Start())
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_StartInvalidSpec(t *testing.T) {
	fake := new(fakeJobs)
	s := New(logsvc.NewDiscard(), Job{Name: "bad", Spec: "every now and then", Run: fake.ExpireStale})
	assert.Error(t, s.Start())
}
