package bridge

import (
	"go.uber.org/zap"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
	"github.com/kestrelgraph/kestrel-go/internal/exec"
)

// TransactionQueryAsync schedules a query on the task runtime and returns a
// pending-operation handle. The transaction handle must stay valid, and the
// transaction must not be used concurrently, until the pending operation
// reaches its terminal state via exactly one of PendingResolve,
// PendingAbort, or PendingDrop.
//
// The first call constructs the runtime; construction failure is fatal.
func (b *Bridge) TransactionQueryAsync(txn Handle, query string, opts Handle, errOut *Handle) Handle {
	v, err := b.table.get(txn, kindTransaction)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	options, err := b.queryOptionsValue(opts)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	p, err := exec.Submit(b.runtime(), v.(engine.Transaction), query, options, b.logger)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	b.logger.Debug("async query scheduled", zap.String("op", p.ID()))
	return b.table.put(kindPending, p)
}

// PendingPoll reports, without blocking, whether the pending operation has
// finished. A nil or stale handle reports true: there is nothing left to
// wait for.
func (b *Bridge) PendingPoll(h Handle) bool {
	v, err := b.table.get(h, kindPending)
	if err != nil {
		return true
	}
	return v.(*exec.Pending).Poll()
}

// PendingResolve blocks until the operation completes and returns its
// payload buffer, releasing the pending handle unconditionally. lenOut
// receives the buffer length. The handle is invalid for any further call
// afterward; a repeated resolve fails the handle check and is transmitted
// through the error slot.
func (b *Bridge) PendingResolve(h Handle, lenOut *uint64, errOut *Handle) Handle {
	if lenOut != nil {
		*lenOut = 0
	}
	v, err := b.table.take(h, kindPending)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	buf, err := v.(*exec.Pending).Resolve()
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	return b.putBuffer(buf, lenOut)
}

// PendingAbort requests cooperative cancellation and releases the pending
// handle. The work observes the abort flag at its checkpoints; an in-flight
// network wait is not interrupted, and the engine's query may still run to
// completion server-side.
func (b *Bridge) PendingAbort(h Handle) error {
	v, err := b.table.take(h, kindPending)
	if err != nil {
		return err
	}
	p := v.(*exec.Pending)
	b.logger.Debug("async query aborted", zap.String("op", p.ID()))
	p.Abort()
	return nil
}

// PendingDrop releases a pending handle whose result will never be read.
func (b *Bridge) PendingDrop(h Handle) error {
	v, err := b.table.take(h, kindPending)
	if err != nil {
		return err
	}
	v.(*exec.Pending).Drop()
	return nil
}
