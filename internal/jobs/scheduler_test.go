package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/service"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Refresh(context.Context) (service.SweepPlan, error) {
	s.calls.Add(1)
	return service.SweepPlan{}, s.err
}

type countingReplayer struct {
	calls atomic.Int32
}

func (r *countingReplayer) ReplayQueue(context.Context) (int, error) {
	r.calls.Add(1)
	return 2, nil
}

type fixedQueue struct{ n int }

func (q fixedQueue) Len(context.Context) (int, error) { return q.n, nil }

func TestScheduler_RunsJobs(t *testing.T) {
	sweeper := &countingSweeper{}
	replayer := &countingReplayer{}
	s := NewScheduler(Schedules{Sweep: "@every 1s", Outbox: "@every 1s"}, sweeper, replayer, fixedQueue{n: 3})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool {
		return sweeper.calls.Load() > 0 && replayer.calls.Load() > 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(Schedules{Sweep: "every minute"}, &countingSweeper{}, nil, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_SweepErrorIsLogged(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("store down")}
	s := NewScheduler(Schedules{}, sweeper, &countingReplayer{}, nil)

	s.RunSweep(context.Background())
	s.RunOutbox(context.Background())
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
