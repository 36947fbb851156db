package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedUsage(usedPercent float64, availableMB uint64) Usage {
	return Usage{
		TotalMB:     16000,
		UsedMB:      16000 - availableMB,
		AvailableMB: availableMB,
		UsedPercent: usedPercent,
	}
}

func TestUsageUnderPressureAndCritical(t *testing.T) {
	require.False(t, fixedUsage(50, 8000).UnderPressure())
	require.True(t, fixedUsage(90, 1600).UnderPressure())
	require.False(t, fixedUsage(90, 1600).Critical())
	require.True(t, fixedUsage(96, 640).Critical())
}

func newTestManager(t *testing.T, usages ...Usage) *Manager {
	t.Helper()
	i := 0
	m := New(DefaultConfig(), nil)
	clock := time.Now()
	m.now = func() time.Time { return clock }
	m.readMem = func() (Usage, error) {
		u := usages[i]
		if i < len(usages)-1 {
			i++
		}
		return u, nil
	}
	return m
}

func TestPollAppendsHistoryAndBoundsIt(t *testing.T) {
	m := newTestManager(t, fixedUsage(40, 9600))
	for i := 0; i < historyCap+10; i++ {
		_, err := m.Poll()
		require.NoError(t, err)
	}
	require.Len(t, m.History(), historyCap)
}

func TestAverageUsedPercentEmpty(t *testing.T) {
	m := newTestManager(t, fixedUsage(40, 9600))
	_, ok := m.AverageUsedPercent()
	require.False(t, ok)
}

func TestAverageUsedPercentComputed(t *testing.T) {
	m := newTestManager(t, fixedUsage(40, 9600))
	_, err := m.Poll()
	require.NoError(t, err)
	avg, ok := m.AverageUsedPercent()
	require.True(t, ok)
	require.InDelta(t, 40, avg, 0.001)
}

func TestShouldOffloadModelRequiresIdleAndPressure(t *testing.T) {
	m := newTestManager(t, fixedUsage(85, 2400))
	// Not idle yet: lastActivity was just set.
	require.False(t, m.ShouldOffloadModel(fixedUsage(85, 2400)))

	m.mu.Lock()
	m.lastActivity = m.now().Add(-700 * time.Second)
	m.mu.Unlock()
	require.True(t, m.ShouldOffloadModel(fixedUsage(85, 2400)))
	require.False(t, m.ShouldOffloadModel(fixedUsage(50, 8000)))
}

func TestShouldOffloadModelDisabled(t *testing.T) {
	m := New(Config{EnableModelOffload: false, OffloadTimeout: time.Second}, nil)
	m.mu.Lock()
	m.lastActivity = time.Now().Add(-time.Hour)
	m.mu.Unlock()
	require.False(t, m.ShouldOffloadModel(fixedUsage(99, 100)))
}

type fakeOffloader struct {
	offloaded bool
	loadErr   error
	offErr    error
}

func (f *fakeOffloader) Offload(ctx context.Context) error {
	if f.offErr != nil {
		return f.offErr
	}
	f.offloaded = true
	return nil
}

func (f *fakeOffloader) Load(ctx context.Context) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	f.offloaded = false
	return nil
}

func TestOffloadAndLoadModelRoundTrip(t *testing.T) {
	off := &fakeOffloader{}
	m := New(DefaultConfig(), off)
	require.True(t, m.ModelLoaded())

	require.NoError(t, m.OffloadModel(context.Background()))
	require.True(t, off.offloaded)
	require.False(t, m.ModelLoaded())

	require.NoError(t, m.LoadModel(context.Background()))
	require.False(t, off.offloaded)
	require.True(t, m.ModelLoaded())

	// Loading again while already loaded is a no-op, not a second call.
	off.loadErr = context.DeadlineExceeded
	require.NoError(t, m.LoadModel(context.Background()))
}

func TestRecordActivityResetsIdleTimer(t *testing.T) {
	m := New(DefaultConfig(), nil)
	m.mu.Lock()
	m.lastActivity = m.now().Add(-time.Hour)
	m.mu.Unlock()
	m.RecordActivity()
	m.mu.Lock()
	idle := m.now().Sub(m.lastActivity)
	m.mu.Unlock()
	require.Less(t, idle, time.Second)
}

func TestTaskCanRun(t *testing.T) {
	task := Task{ID: "archive", Priority: Low, EstimatedMemoryMB: 500}
	require.True(t, task.CanRun(1000))
	require.False(t, task.CanRun(100))
}

func TestCircuitBreakerTripAndCooldown(t *testing.T) {
	b := NewCircuitBreaker(50 * time.Millisecond)
	clock := time.Now()
	b.now = func() time.Time { return clock }

	require.True(t, b.AllowTask())
	b.Trip()
	require.True(t, b.IsOpen())
	require.False(t, b.AllowTask())

	clock = clock.Add(100 * time.Millisecond)
	require.True(t, b.AllowTask())
	require.False(t, b.IsOpen())
}

func TestCircuitBreakerReset(t *testing.T) {
	b := NewCircuitBreaker(time.Hour)
	b.Trip()
	require.True(t, b.IsOpen())
	b.Reset()
	require.False(t, b.IsOpen())
	require.True(t, b.AllowTask())
}

func TestSchedulerCriticalAlwaysRuns(t *testing.T) {
	m := newTestManager(t, fixedUsage(99, 50))
	s := NewScheduler(m)
	s.breaker.Trip()
	ok, err := s.ShouldSchedule(Task{Priority: Critical, EstimatedMemoryMB: 10000})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSchedulerBlocksWhenBreakerOpen(t *testing.T) {
	m := newTestManager(t, fixedUsage(40, 9600))
	s := NewScheduler(m)
	s.breaker.Trip()
	ok, err := s.ShouldSchedule(Task{Priority: Low, EstimatedMemoryMB: 10})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSchedulerTripsBreakerOnCriticalUsage(t *testing.T) {
	m := newTestManager(t, fixedUsage(96, 400))
	s := NewScheduler(m)
	ok, err := s.ShouldSchedule(Task{Priority: Medium, EstimatedMemoryMB: 10})
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, s.breaker.IsOpen())
}

func TestSchedulerFeasibilityCheck(t *testing.T) {
	m := newTestManager(t, fixedUsage(50, 800))
	s := NewScheduler(m)
	ok, err := s.ShouldSchedule(Task{Priority: High, EstimatedMemoryMB: 2000})
	require.NoError(t, err)
	require.False(t, ok)
}
