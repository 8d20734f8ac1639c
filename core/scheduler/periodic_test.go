package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodicStartStopIdempotent(t *testing.T) {
	p := NewPeriodic(time.Minute, func(context.Context) {}, clockwork.NewFakeClock(), nil)

	assert.False(t, p.Stop())
	assert.True(t, p.Start())
	assert.False(t, p.Start())
	assert.True(t, p.Running())

	assert.True(t, p.Stop())
	assert.False(t, p.Stop())
	assert.False(t, p.Running())

	// 停止后可再次启动
	assert.True(t, p.Start())
	assert.True(t, p.Stop())
}

func TestPeriodicFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	p := NewPeriodic(time.Minute, func(context.Context) { runs.Add(1) }, clock, nil)
	require.True(t, p.Start())

	clock.Advance(59 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, p.Stop())
	clock.Advance(10 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestPeriodicRecoversFromPanic(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	p := NewPeriodic(time.Minute, func(context.Context) {
		runs.Add(1)
		panic("tick failed")
	}, clock, nil)
	p.Start()

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Running())
	assert.True(t, p.Stop())
}

func TestPeriodicStopCancelsRunningJob(t *testing.T) {
	clock := clockwork.NewFakeClock()
	started := make(chan struct{})
	p := NewPeriodic(time.Minute, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, clock, nil)
	p.Start()

	clock.Advance(time.Minute)
	<-started
	assert.True(t, p.Stop())
}
