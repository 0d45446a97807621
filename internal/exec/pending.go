package exec

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
)

// Pending represents one asynchronous query execution in flight.
//
// Lifecycle: Submit schedules the work; exactly one of Resolve, Abort, or
// Drop must then be called, exactly once. The first of these to arrive wins
// the terminal transition; later calls are detected (Resolve reports
// CodeConsumed) and never release resources twice.
//
// Cancellation is cooperative. The abort flag is checked at two fixed
// checkpoints: before the round trip starts, and after it completes but
// before serialization. An in-flight network wait is not interrupted by the
// flag itself, though Abort also cancels the work's context so transports
// that honor context cancellation can return early. The engine's query may
// still run to completion server-side.
type Pending struct {
	id     string
	cancel context.CancelFunc

	// aborted is the only state mutated concurrently by the submitting
	// side (Abort) and the worker side (checkpoint reads).
	aborted atomic.Bool

	// consumed guards the terminal transition: the CAS winner among
	// Resolve/Abort/Drop owns resource release.
	consumed atomic.Bool

	done chan struct{} // closed by the worker when the outcome is set
	buf  []byte        // outcome, valid after done is closed
	err  error
}

// ID returns the operation token, a UUIDv7. Time-sortable tokens make
// concurrent operations easy to correlate in logs.
func (p *Pending) ID() string {
	return p.id
}

// Submit schedules query execution on the runtime and returns its handle.
//
// The transaction must remain valid until the handle reaches its terminal
// state, and must not be used concurrently by the caller while the
// operation is in flight.
func Submit(rt *Runtime, txn engine.Transaction, query string, opts engine.QueryOptions, logger *zap.Logger) (*Pending, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pending{
		id:     uuid.Must(uuid.NewV7()).String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	task := func() {
		defer close(p.done)
		defer cancel()

		// Checkpoint 1: abort requested while queued - never contact
		// the engine.
		if p.aborted.Load() {
			p.err = abortedError(p.id)
			return
		}

		ans, err := txn.Query(ctx, query, opts)
		if err != nil {
			if p.aborted.Load() {
				p.err = abortedError(p.id)
				return
			}
			p.err = engineError(p.id, err)
			return
		}

		// Checkpoint 2: abort requested during the round trip -
		// discard the answer instead of spending encoding work on it.
		if p.aborted.Load() {
			p.err = abortedError(p.id)
			return
		}

		buf, err := Answer(ans)
		if err != nil {
			p.err = encodeError(p.id, err)
			return
		}
		p.buf = buf
	}

	if !rt.Submit(task) {
		cancel()
		return nil, &OpError{Code: CodeRuntime, Message: "task runtime is closed", Op: p.id}
	}
	logger.Debug("query submitted", zap.String("op", p.id))
	return p, nil
}

// Poll reports, without blocking, whether the unit of work has finished.
func (p *Pending) Poll() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Resolve blocks until completion and returns the outcome exactly once.
// A second consumption of the same handle returns an OpError with
// CodeConsumed and releases nothing.
func (p *Pending) Resolve() ([]byte, error) {
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, &OpError{Code: CodeConsumed, Message: "pending operation already consumed", Op: p.id}
	}
	<-p.done
	return p.buf, p.err
}

// Abort requests cooperative cancellation and releases the handle.
//
// The abort flag stops the work at its next checkpoint; the context cancel
// reaches transports that honor it. If a concurrent Resolve already won the
// terminal transition, Abort still sets the flag (the work may yet observe
// it) but does not release anything.
func (p *Pending) Abort() {
	p.aborted.Store(true)
	p.cancel()
	p.consumed.CompareAndSwap(false, true)
}

// Drop releases a handle whose result will never be read. Unlike Abort it
// does not promise the work observes an abort at its checkpoints, but it
// does cancel the work's context for reclamation.
func (p *Pending) Drop() {
	p.cancel()
	p.consumed.CompareAndSwap(false, true)
}
