package scheduler

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	_, err := NewScheduler(context.Background(), "every full moon", func(context.Context) error { return nil }, logger)
	assert.ErrorContains(t, err, "invalid schedule")
}

func TestRunJobLogsOutcome(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	calls := 0
	s, err := NewScheduler(context.Background(), "0 6 2 * *", func(context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("counter API down")
		}
		return nil
	}, logger)
	require.NoError(t, err)

	s.runJob()
	assert.Equal(t, "Scheduled export completed", hook.LastEntry().Message)

	s.runJob()
	assert.Equal(t, "Scheduled export failed", hook.LastEntry().Message)
	assert.Equal(t, 2, calls)
}

func TestRunJobSkippedAfterCancel(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())

	called := false
	s, err := NewScheduler(ctx, "@monthly", func(context.Context) error {
		called = true
		return nil
	}, logger)
	require.NoError(t, err)

	cancel()
	s.runJob()
	assert.False(t, called)
}

func TestStartStop(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s, err := NewScheduler(context.Background(), "@monthly", func(context.Context) error { return nil }, logger)
	require.NoError(t, err)

	require.NoError(t, s.Start())
	assert.Equal(t, "Scheduler started", hook.LastEntry().Message)
	s.Stop()
}
