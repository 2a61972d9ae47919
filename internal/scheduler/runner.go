// Package scheduler provides a generic deferred-job runner: run a function
// at a future instant, with cancellation and same-ID supersession. It has no
// knowledge of thermostat domain types beyond the run instant.
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Schedule after Stop has been called.
var ErrStopped = errors.New("job runner is stopped")

// idleWait bounds the sleep when the queue is empty.
const idleWait = 24 * time.Hour

type job struct {
	id    string
	runAt time.Time
	fn    func()
	index int // position in the heap
}

// jobHeap is a min-heap ordered by runAt.
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil // avoid memory leak
	j.index = -1
	*h = old[:n-1]
	return j
}

// Runner dispatches scheduled functions at or after their run instant on a
// single background loop. Fired functions run in their own goroutine so a
// slow job never delays the next one.
type Runner struct {
	mu      sync.Mutex
	heap    jobHeap
	byID    map[string]*job
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
	done    sync.WaitGroup
}

func NewRunner() *Runner {
	r := &Runner{
		heap:   make(jobHeap, 0),
		byID:   make(map[string]*job),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&r.heap)
	return r
}

// Start launches the dispatch loop.
func (r *Runner) Start() {
	r.done.Add(1)
	go r.loop()
}

// Stop terminates the dispatch loop. Pending jobs are not fired.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	r.done.Wait()
}

// Schedule arms fn to run at runAt. Scheduling an ID that is already pending
// replaces the previous job: the old one will never fire.
func (r *Runner) Schedule(id string, runAt time.Time, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}

	if existing, ok := r.byID[id]; ok {
		heap.Remove(&r.heap, existing.index)
		delete(r.byID, id)
	}

	j := &job{id: id, runAt: runAt, fn: fn}
	heap.Push(&r.heap, j)
	r.byID[id] = j

	// Wake the loop if this became the earliest job.
	if r.heap[0] == j {
		select {
		case r.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a pending job. Returns false if no such job is pending.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.byID[id]
	if !ok {
		return false
	}
	heap.Remove(&r.heap, j.index)
	delete(r.byID, id)
	return true
}

// Pending reports the number of armed jobs.
func (r *Runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *Runner) loop() {
	defer r.done.Done()
	for {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return
		}

		wait := idleWait
		if r.heap.Len() > 0 {
			wait = time.Until(r.heap[0].runAt)
			if wait <= 0 {
				j := heap.Pop(&r.heap).(*job)
				delete(r.byID, j.id)
				r.mu.Unlock()
				go j.fn()
				continue
			}
		}
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-r.wakeup:
			timer.Stop()
		case <-r.stopCh:
			timer.Stop()
			return
		}
	}
}
