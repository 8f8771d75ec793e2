package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock_DefaultStart(t *testing.T) {
	clock := NewManualClock(time.Time{})
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), clock.Now())
}

func TestManualClock_AdvanceNeverGoesBack(t *testing.T) {
	clock := NewManualClock(time.Time{})
	start := clock.Now()

	clock.Advance(time.Second)
	assert.Equal(t, start.Add(time.Second), clock.Now())

	clock.Advance(-time.Hour)
	assert.Equal(t, start.Add(time.Second), clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock(time.Time{})
	start := clock.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, start.Add(50*time.Millisecond), clock.Now())
}

func TestSleeper_AdvancesClockAndRecords(t *testing.T) {
	clock := NewManualClock(time.Time{})
	start := clock.Now()
	sleeper := clock.Sleeper()

	hooks := 0
	sleeper.OnSleep(func() { hooks++ })

	require.NoError(t, sleeper.Sleep(context.Background(), 16*time.Millisecond))
	require.NoError(t, sleeper.Sleep(context.Background(), 16*time.Millisecond))

	assert.Equal(t, 2, sleeper.Calls())
	assert.Equal(t, 2, hooks)
	assert.Equal(t, 32*time.Millisecond, sleeper.Total())
	assert.Equal(t, start.Add(32*time.Millisecond), clock.Now())
}

func TestSleeper_ReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewSleeper().Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSequentialOrigins_StablePerName(t *testing.T) {
	origins := NewSequentialOrigins("")

	a := origins.For("alice")
	b := origins.For("bob")

	assert.Equal(t, "origin-0001", a)
	assert.Equal(t, "origin-0002", b)
	assert.Equal(t, a, origins.For("alice"))
}
