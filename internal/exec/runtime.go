package exec

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultWorkers is the worker count used when no count is configured.
const DefaultWorkers = 2

// MinWorkers is the smallest pool the runtime accepts. With a single worker
// a blocking round trip would starve every other pending operation.
const MinWorkers = 2

// Runtime is a fixed-size worker pool for scheduled units of work.
//
// A runtime is constructed once and held for the remainder of the owner's
// life; work submitted to it runs in parallel with the caller and with other
// work. Close exists for tests - production owners rely on process-exit
// reclamation, matching the pool's process-lifetime contract.
//
// Each worker runs one task at a time, including its blocking I/O. The pool
// size therefore bounds the number of in-flight round trips, which is why
// MinWorkers is 2.
type Runtime struct {
	workers int
	logger  *zap.Logger

	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
	wg     sync.WaitGroup
}

// NewRuntime creates a runtime with the given worker count and starts its
// workers. The logger may be nil.
func NewRuntime(workers int, logger *zap.Logger) (*Runtime, error) {
	if workers < MinWorkers {
		return nil, fmt.Errorf("runtime requires at least %d workers, got %d", MinWorkers, workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{
		workers: workers,
		logger:  logger,
		tasks:   make([]func(), 0, 16),
		signal:  make(chan struct{}, 1),
	}
	rt.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go rt.work(i)
	}
	logger.Debug("task runtime started", zap.Int("workers", workers))
	return rt, nil
}

// Submit schedules a unit of work. Returns false if the runtime is closed.
// Thread-safe: may be called from any goroutine. The queue is unbounded, so
// Submit never blocks.
func (rt *Runtime) Submit(task func()) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return false
	}
	rt.tasks = append(rt.tasks, task)

	// Non-blocking - buffer of 1 coalesces multiple signals.
	select {
	case rt.signal <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting work and waits for the workers to finish queued
// tasks. Intended for tests; the production pool lives until process exit.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	close(rt.signal)
	rt.mu.Unlock()

	rt.wg.Wait()
}

func (rt *Runtime) work(id int) {
	defer rt.wg.Done()
	for {
		task, ok := rt.next()
		if !ok {
			return
		}
		task()
	}
}

// next blocks until a task is available, returning false once the runtime is
// closed and drained.
func (rt *Runtime) next() (func(), bool) {
	for {
		rt.mu.Lock()
		if len(rt.tasks) > 0 {
			task := rt.tasks[0]
			// Nil out the slot so the task's captures can be collected.
			rt.tasks[0] = nil
			rt.tasks = rt.tasks[1:]
			// Re-signal so an idle worker picks up remaining tasks
			// even when multiple submits coalesced into one signal.
			if len(rt.tasks) > 0 && !rt.closed {
				select {
				case rt.signal <- struct{}{}:
				default:
				}
			}
			rt.mu.Unlock()
			return task, true
		}
		closed := rt.closed
		rt.mu.Unlock()

		if closed {
			return nil, false
		}
		<-rt.signal
	}
}
