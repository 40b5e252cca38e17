package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gematria/internal/common"
	"github.com/ternarybob/gematria/internal/interfaces"
)

func newTestScheduler(t *testing.T) interfaces.SchedulerService {
	t.Helper()
	svc := NewService(&common.SchedulerConfig{
		MaxWorkers:      2,
		ShutdownTimeout: 5 * time.Second,
	}, arbor.NewLogger())
	t.Cleanup(svc.Stop)
	return svc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestRegisterJobValidation(t *testing.T) {
	svc := newTestScheduler(t)

	require.NoError(t, svc.RegisterJob("ping", func() {}, time.Minute))
	assert.Error(t, svc.RegisterJob("ping", func() {}, time.Minute))
	assert.Error(t, svc.RegisterJob("bad", func() {}, 0))
	assert.Error(t, svc.RegisterJob("worse", func() {}, -time.Second))

	assert.True(t, svc.HasJob("ping"))
	assert.False(t, svc.HasJob("bad"))
}

func TestTriggerRunsJob(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()

	var mu sync.Mutex
	runs := 0
	require.NoError(t, svc.RegisterJob("count", func() {
		mu.Lock()
		runs++
		mu.Unlock()
	}, time.Hour))

	ok, err := svc.TriggerJob("count")
	require.NoError(t, err)
	assert.True(t, ok)

	waitFor(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 1
	})
}

func TestTriggerWhileRunningReturnsFalse(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, svc.RegisterJob("slow", func() {
		close(started)
		<-release
	}, time.Hour))

	ok, err := svc.TriggerJob("slow")
	require.NoError(t, err)
	require.True(t, ok)
	<-started

	ok, err = svc.TriggerJob("slow")
	require.NoError(t, err)
	assert.False(t, ok)

	close(release)
}

func TestTriggerUnknownJobErrors(t *testing.T) {
	svc := newTestScheduler(t)

	_, err := svc.TriggerJob("ghost")
	assert.Error(t, err)
}

func TestRescheduleFromCompletion(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()

	interval := time.Hour
	done := make(chan struct{})
	require.NoError(t, svc.RegisterJob("slow", func() {
		time.Sleep(50 * time.Millisecond)
		close(done)
	}, interval))

	before := time.Now()
	ok, err := svc.TriggerJob("slow")
	require.NoError(t, err)
	require.True(t, ok)
	<-done

	waitFor(t, 2*time.Second, func() bool {
		return jobStatus(svc, "slow").TotalRuns == 1
	})

	status := jobStatus(svc, "slow")
	require.NotNil(t, status.NextRunAt)
	require.NotNil(t, status.LastRunAt)

	// Next run anchors on completion, which includes the 50ms sleep
	assert.True(t, status.NextRunAt.After(before.Add(interval)))
	assert.Equal(t, *status.NextRunAt, status.LastRunAt.Add(interval))
	assert.GreaterOrEqual(t, status.LastDuration, 0.05)
}

func TestDisableClearsNextRun(t *testing.T) {
	svc := newTestScheduler(t)

	require.NoError(t, svc.RegisterJob("job", func() {}, time.Minute))
	require.NotNil(t, jobStatus(svc, "job").NextRunAt)

	require.NoError(t, svc.DisableJob("job"))
	status := jobStatus(svc, "job")
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRunAt)

	assert.Error(t, svc.DisableJob("ghost"))
}

func TestEnableNegativeDelayUsesInterval(t *testing.T) {
	svc := newTestScheduler(t)

	interval := 10 * time.Minute
	require.NoError(t, svc.RegisterJob("job", func() {}, interval))
	require.NoError(t, svc.DisableJob("job"))

	before := time.Now()
	require.NoError(t, svc.EnableJob("job", -1))

	status := jobStatus(svc, "job")
	assert.True(t, status.Enabled)
	require.NotNil(t, status.NextRunAt)
	assert.True(t, status.NextRunAt.After(before.Add(interval-time.Second)))
}

func TestRegisterDisabledNeverScheduled(t *testing.T) {
	svc := newTestScheduler(t)

	require.NoError(t, svc.RegisterJob("off", func() {}, time.Minute, interfaces.WithEnabled(false)))

	status := jobStatus(svc, "off")
	assert.False(t, status.Enabled)
	assert.Nil(t, status.NextRunAt)
}

func TestStartAfterStaggersFirstRun(t *testing.T) {
	svc := newTestScheduler(t)

	before := time.Now()
	require.NoError(t, svc.RegisterJob("staggered", func() {}, time.Hour, interfaces.WithStartAfter(time.Minute)))

	status := jobStatus(svc, "staggered")
	require.NotNil(t, status.NextRunAt)
	assert.True(t, status.NextRunAt.Before(before.Add(2*time.Minute)))
}

func TestIntervalSchedulingRuns(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()

	var mu sync.Mutex
	runs := 0
	require.NoError(t, svc.RegisterJob("fast", func() {
		mu.Lock()
		runs++
		mu.Unlock()
	}, 30*time.Millisecond))

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	})
}

func TestPanicRecordedAsJobError(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()

	require.NoError(t, svc.RegisterJob("boom", func() {
		panic("broken pipeline")
	}, time.Hour))

	ok, err := svc.TriggerJob("boom")
	require.NoError(t, err)
	require.True(t, ok)

	waitFor(t, 2*time.Second, func() bool {
		return jobStatus(svc, "boom").TotalRuns == 1
	})

	status := jobStatus(svc, "boom")
	assert.Contains(t, status.Error, "broken pipeline")
	// A panicking job is still rescheduled
	assert.NotNil(t, status.NextRunAt)
}

func TestRemoveJob(t *testing.T) {
	svc := newTestScheduler(t)

	require.NoError(t, svc.RegisterJob("gone", func() {}, time.Minute))
	assert.True(t, svc.RemoveJob("gone"))
	assert.False(t, svc.RemoveJob("gone"))
	assert.False(t, svc.HasJob("gone"))
}

func TestSnapshotSortedByName(t *testing.T) {
	svc := newTestScheduler(t)

	require.NoError(t, svc.RegisterJob("zeta", func() {}, time.Minute))
	require.NoError(t, svc.RegisterJob("alpha", func() {}, time.Minute))

	snapshot := svc.Snapshot()
	require.Len(t, snapshot.Jobs, 2)
	assert.Equal(t, "alpha", snapshot.Jobs[0].Name)
	assert.Equal(t, "zeta", snapshot.Jobs[1].Name)
	assert.Equal(t, 2, snapshot.MaxWorkers)
}

func TestStopIsIdempotent(t *testing.T) {
	svc := newTestScheduler(t)
	svc.Start()
	assert.True(t, svc.IsRunning())

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()

	svc.Start()
	assert.True(t, svc.IsRunning())
}

func jobStatus(svc interfaces.SchedulerService, name string) interfaces.JobStatus {
	for _, job := range svc.Snapshot().Jobs {
		if job.Name == name {
			return job
		}
	}
	return interfaces.JobStatus{}
}
