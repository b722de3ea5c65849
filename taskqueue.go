package authkeep

import (
	"sync"
	"sync/atomic"
)

// taskQueue runs deferred work on a single background goroutine. Submitting
// never blocks: a full buffer drops the task and counts it. Used for the
// login-time password expiry checks, which must not sit on the hot path.
type taskQueue struct {
	ch        chan func()
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newTaskQueue(size int) *taskQueue {
	if size <= 0 {
		size = 1
	}
	q := &taskQueue{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *taskQueue) run() {
	defer q.wg.Done()

	for {
		select {
		case task := <-q.ch:
			task()
		case <-q.done:
			// Drain buffered tasks before exiting.
			for {
				select {
				case task := <-q.ch:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task, reporting false when it was dropped.
func (q *taskQueue) Submit(task func()) bool {
	if q == nil || task == nil || q.closed.Load() {
		return false
	}
	select {
	case q.ch <- task:
		return true
	case <-q.done:
		return false
	default:
		q.dropped.Add(1)
		return false
	}
}

// Close stops the worker after draining buffered tasks.
func (q *taskQueue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
		q.wg.Wait()
	})
}

func (q *taskQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}
