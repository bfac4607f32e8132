package engine

import (
	"sync"
	"sync/atomic"
)

const (
	jobQueued int32 = iota
	jobTaken
	jobWithdrawn
)

// job is one submitted request and the channel its outcome is sent on.
type job struct {
	req   Request
	done  chan outcome
	state atomic.Int32
}

// take claims the job for the Run loop. It fails if the submitter gave up
// first.
func (j *job) take() bool {
	return j.state.CompareAndSwap(jobQueued, jobTaken)
}

// withdraw marks a queued job as abandoned. It fails once the Run loop has
// taken the job.
func (j *job) withdraw() bool {
	return j.state.CompareAndSwap(jobQueued, jobWithdrawn)
}

type outcome struct {
	result Result
	err    error
}

// requestQueue is a thread-safe FIFO of jobs.
//
// Any goroutine may enqueue; only the Run loop dequeues. The signal channel
// lets the loop wait for work and for context cancellation in one select.
type requestQueue struct {
	mu     sync.Mutex
	jobs   []*job
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		jobs:   make([]*job, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(j *job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front job without blocking.
func (q *requestQueue) TryDequeue() (*job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	j := q.jobs[0]
	// Nil the slot so the backing array does not retain finished jobs.
	q.jobs[0] = nil
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Wait returns a channel that signals when jobs may be available. It is
// closed by Close.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs and returns those still queued, so the caller
// can fail them.
func (q *requestQueue) Close() []*job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	// Drop a pending signal so receivers see the close at once.
	select {
	case <-q.signal:
	default:
	}
	close(q.signal)

	rest := q.jobs
	q.jobs = nil
	return rest
}
