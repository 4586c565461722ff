package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	name string
	err  error
	mu   sync.Mutex
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

type expirerStub struct {
	revoked int
	err     error
}

func (e *expirerStub) ExpireMemberships(ctx context.Context) (int, error) { return e.revoked, e.err }

type healerStub struct {
	healed int
	err    error
}

func (h *healerStub) HealStale(ctx context.Context) (int, error) { return h.healed, h.err }

func TestRunOnce_FailureDoesNotStopOthers(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	broken := &countingJob{name: "broken", err: errors.New("сбой")}
	healthy := &countingJob{name: "healthy"}
	s.AddJob(broken)
	s.AddJob(healthy)

	failed := s.RunOnce(context.Background())

	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, broken.count())
	assert.Equal(t, 1, healthy.count())
}

func TestRunOnce_CancelledContext(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	job := &countingJob{name: "job"}
	s.AddJob(job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, s.RunOnce(ctx))
	assert.Equal(t, 0, job.count())
}

func TestStart_RunsImmediatelyAndStops(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	job := &countingJob{name: "job"}
	s.AddJob(job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("планировщик не остановился")
	}
}

func TestVIPExpiryJob(t *testing.T) {
	tests := []struct {
		name    string
		expirer *expirerStub
		wantErr bool
	}{
		{name: "никто не истек", expirer: &expirerStub{}},
		{name: "два истекших", expirer: &expirerStub{revoked: 2}},
		{name: "ошибка хранилища", expirer: &expirerStub{err: errors.New("нет соединения")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewVIPExpiryJob(tt.expirer, zap.NewNop()).Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStaleBookingJob(t *testing.T) {
	assert.NoError(t, NewStaleBookingJob(&healerStub{healed: 2}, zap.NewNop()).Run(context.Background()))
	assert.Error(t, NewStaleBookingJob(&healerStub{err: errors.New("сбой")}, zap.NewNop()).Run(context.Background()))
}
