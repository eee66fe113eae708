package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTimerManager_Schedule(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	done := make(chan struct{})
	_, err := tm.Schedule("test1", time.Now().Add(50*time.Millisecond), func() {
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Task was not executed")
	}
}

func TestTimerManager_Cancel(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	executed := false
	var mu sync.Mutex

	_, err := tm.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		executed = true
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.True(t, tm.Cancel("test1"))

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.False(t, executed, "Task was executed despite being cancelled")
	mu.Unlock()
}

func TestTimerManager_MultipleTasksOrdering(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	var results []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(3)

	record := func(n int) func() {
		return func() {
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
			wg.Done()
		}
	}

	// Schedule tasks in reverse order
	_, err := tm.Schedule("task3", time.Now().Add(150*time.Millisecond), record(3))
	require.NoError(t, err)
	_, err = tm.Schedule("task1", time.Now().Add(50*time.Millisecond), record(1))
	require.NoError(t, err)
	_, err = tm.Schedule("task2", time.Now().Add(100*time.Millisecond), record(2))
	require.NoError(t, err)

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, results)
}

func TestTimerManager_RescheduleExisting(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	count := 0
	var mu sync.Mutex

	_, err := tm.Schedule("test1", time.Now().Add(100*time.Millisecond), func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	// Reschedule with same ID (should replace)
	_, err = tm.Schedule("test1", time.Now().Add(50*time.Millisecond), func() {
		mu.Lock()
		count += 10
		mu.Unlock()
	})
	require.NoError(t, err)

	assert.Equal(t, 1, tm.Stats().ScheduledTasks)

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, 10, count, "only the replacement should run")
	mu.Unlock()
}

func TestHandle_StaleHandleDoesNotCancelReplacement(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	old, err := tm.Schedule("slot", time.Now().Add(time.Hour), func() {})
	require.NoError(t, err)

	current, err := tm.Schedule("slot", time.Now().Add(2*time.Hour), func() {})
	require.NoError(t, err)

	assert.False(t, old.Cancel(), "stale handle must not remove the newer task")
	_, scheduled := tm.Scheduled("slot")
	assert.True(t, scheduled)

	assert.True(t, current.Cancel())
	_, scheduled = tm.Scheduled("slot")
	assert.False(t, scheduled)

	assert.False(t, current.Cancel(), "second cancel is a no-op")
}

func TestHandle_ZeroValue(t *testing.T) {
	var h Handle
	assert.False(t, h.Cancel())
}

func TestTimerManager_ScheduleAfterStop(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	tm.Stop()

	_, err := tm.Schedule("late", time.Now().Add(time.Minute), func() {})
	assert.ErrorIs(t, err, ErrManagerStopped)
}

func TestTimerManager_Stats(t *testing.T) {
	tm := NewTimerManager()
	tm.Start()
	defer tm.Stop()

	for _, id := range []string{"task1", "task2", "task3"} {
		_, err := tm.Schedule(id, time.Now().Add(time.Hour), func() {})
		require.NoError(t, err)
	}

	assert.Equal(t, 3, tm.Stats().ScheduledTasks)
}
