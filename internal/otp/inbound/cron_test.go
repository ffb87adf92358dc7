package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goroutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepConfig(t *testing.T, schedule string) config.Config {
	t.Helper()
	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  otp:\n    sweep:\n      schedule: \""+schedule+"\"\n      timeout_seconds: 5\n"))
	require.NoError(t, err)
	return cfg
}

func TestRegisterCronJob_InvalidSchedule(t *testing.T) {
	_, err := RegisterCronJob(context.Background(), sweepConfig(t, "every now and then"), goroutine.NewManager(1), &fakeUsecase{})
	assert.Error(t, err)
}

func TestSweeper_Runs(t *testing.T) {
	f := &fakeUsecase{swept: 3}
	routine := goroutine.NewManager(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := RegisterCronJob(ctx, sweepConfig(t, "@every 1s"), routine, f)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return s.Stats().Runs >= 1 }, 5*time.Second, 50*time.Millisecond)

	<-s.Stop().Done()
	cancel()
	require.NoError(t, routine.Wait())

	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.Swept, int64(3))
	assert.Zero(t, stats.Failed)
}

func TestSweeper_SkipsOverlappingTicks(t *testing.T) {
	f := &fakeUsecase{sweepWait: make(chan struct{})}
	routine := goroutine.NewManager(4)
	s := &Sweeper{uc: f, routine: routine, timeout: time.Minute}
	ctx := context.Background()

	s.trigger(ctx)
	assert.Eventually(t, s.running.Load, time.Second, 10*time.Millisecond)
	s.trigger(ctx)
	assert.EqualValues(t, 1, s.Stats().Skipped)

	close(f.sweepWait)
	require.NoError(t, routine.Wait())
	assert.False(t, s.running.Load())
	assert.EqualValues(t, 1, s.Stats().Runs)
}

func TestSweeper_RunRecordsFailure(t *testing.T) {
	s := &Sweeper{uc: &fakeUsecase{err: errors.New("db down")}, timeout: time.Second}

	s.Run(context.Background())
	assert.EqualValues(t, 1, s.Stats().Failed)
}
