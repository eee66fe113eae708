package timer

import (
	"container/heap"
	"sync"
	"time"
)

// TimerTask represents a task scheduled for future execution
type TimerTask struct {
	ID       string
	ExpiryAt time.Time
	Callback func()
	seq      uint64
	index    int // index in the heap (for heap.Interface)
}

// timerHeap is a min-heap of TimerTasks ordered by ExpiryAt
type timerHeap []*TimerTask

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	return h[i].ExpiryAt.Before(h[j].ExpiryAt)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	n := len(*h)
	task := x.(*TimerTask)
	task.index = n
	*h = append(*h, task)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil  // avoid memory leak
	task.index = -1 // for safety
	*h = old[0 : n-1]
	return task
}

// Handle cancels the task it was returned for. Cancelling after the task has
// fired or after it was replaced under the same ID is a no-op, so a stale
// handle can never remove a newer task.
type Handle struct {
	tm  *TimerManager
	id  string
	seq uint64
}

// Cancel removes the task if it is still the one this handle armed
func (h Handle) Cancel() bool {
	if h.tm == nil {
		return false
	}
	return h.tm.cancelSeq(h.id, h.seq)
}

// ID returns the task ID the handle refers to
func (h Handle) ID() string {
	return h.id
}

// TimerManager manages scheduled tasks using a min-heap
type TimerManager struct {
	heap    timerHeap
	mu      sync.Mutex
	wakeup  chan struct{}
	tasks   map[string]*TimerTask // for O(1) lookup by ID
	nextSeq uint64
	running sync.WaitGroup
	loop    sync.WaitGroup
	started bool
	stopped bool
	stopCh  chan struct{}
}

// NewTimerManager creates a new timer manager
func NewTimerManager() *TimerManager {
	tm := &TimerManager{
		heap:   make(timerHeap, 0),
		wakeup: make(chan struct{}, 1),
		tasks:  make(map[string]*TimerTask),
		stopCh: make(chan struct{}),
	}
	heap.Init(&tm.heap)
	return tm
}

// Start starts the scheduler goroutine
func (tm *TimerManager) Start() {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.started || tm.stopped {
		return
	}
	tm.started = true

	tm.loop.Add(1)
	go tm.run()
}

// Stop stops the timer manager and waits for running callbacks to return.
// Pending tasks are dropped.
func (tm *TimerManager) Stop() {
	tm.mu.Lock()
	if tm.stopped {
		tm.mu.Unlock()
		return
	}
	tm.stopped = true
	close(tm.stopCh)
	tm.heap = tm.heap[:0]
	tm.tasks = make(map[string]*TimerTask)
	tm.mu.Unlock()

	tm.loop.Wait()
	tm.running.Wait()
}

// Schedule adds a task to be executed at the specified time. A task already
// scheduled under the same ID is replaced in the same critical section.
func (tm *TimerManager) Schedule(id string, expiryAt time.Time, callback func()) (Handle, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return Handle{}, ErrManagerStopped
	}

	if existing, ok := tm.tasks[id]; ok {
		heap.Remove(&tm.heap, existing.index)
		delete(tm.tasks, id)
	}

	tm.nextSeq++
	task := &TimerTask{
		ID:       id,
		ExpiryAt: expiryAt,
		Callback: callback,
		seq:      tm.nextSeq,
	}

	heap.Push(&tm.heap, task)
	tm.tasks[id] = task

	// Wake up the scheduler if this is the earliest task
	if tm.heap[0] == task {
		select {
		case tm.wakeup <- struct{}{}:
		default:
		}
	}

	return Handle{tm: tm, id: id, seq: task.seq}, nil
}

// Cancel removes a scheduled task by ID
func (tm *TimerManager) Cancel(id string) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

func (tm *TimerManager) cancelSeq(id string, seq uint64) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok || task.seq != seq {
		return false
	}

	heap.Remove(&tm.heap, task.index)
	delete(tm.tasks, id)
	return true
}

// Scheduled reports whether a task is pending under the ID
func (tm *TimerManager) Scheduled(id string) (time.Time, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	task, ok := tm.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return task.ExpiryAt, true
}

// run is the main scheduler loop
func (tm *TimerManager) run() {
	defer tm.loop.Done()

	for {
		tm.mu.Lock()

		if tm.stopped {
			tm.mu.Unlock()
			return
		}

		var waitDuration time.Duration
		if tm.heap.Len() == 0 {
			// No tasks, wait for a wakeup
			waitDuration = 24 * time.Hour
		} else {
			nextTask := tm.heap[0]
			waitDuration = time.Until(nextTask.ExpiryAt)

			if waitDuration <= 0 {
				task := heap.Pop(&tm.heap).(*TimerTask)
				delete(tm.tasks, task.ID)

				tm.running.Add(1)
				go func() {
					defer tm.running.Done()
					task.Callback()
				}()

				tm.mu.Unlock()
				continue
			}
		}

		tm.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-tm.wakeup:
			timer.Stop()
		case <-tm.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stats returns statistics about the timer manager
func (tm *TimerManager) Stats() TimerStats {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return TimerStats{
		ScheduledTasks: len(tm.tasks),
	}
}

// TimerStats contains statistics about the timer manager
type TimerStats struct {
	ScheduledTasks int
}

var (
	ErrManagerStopped = &TimerError{"timer manager is stopped"}
)

// TimerError represents a timer error
type TimerError struct {
	msg string
}

func (e *TimerError) Error() string {
	return e.msg
}
