package driver

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/kestrelgraph/kestrel-go/internal/bridge"
)

// Transaction represents an active unit of work. Transactions must be
// either committed or closed, and must not run two operations concurrently:
// the transaction is a single-writer resource.
type Transaction struct {
	b  *bridge.Bridge
	mu sync.Mutex
	h  bridge.Handle
}

// IsOpen returns true if the transaction is active and has not been
// committed or closed.
func (t *Transaction) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return false
	}
	return t.b.TransactionIsOpen(t.h)
}

// Query executes a query within the transaction and returns its results as
// a slice of maps, one per result row or document. A nil slice with a nil
// error means the query produced no payload.
func (t *Transaction) Query(query string) ([]map[string]any, error) {
	return t.QueryWithOptions(query, nil)
}

// QueryWithOptions executes a query with specific QueryOptions.
func (t *Transaction) QueryWithOptions(query string, opts *QueryOptions) ([]map[string]any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return nil, ErrNotConnected
	}

	var optsH bridge.Handle
	if opts != nil {
		optsH = opts.h
	}
	var (
		length uint64
		errH   bridge.Handle
	)
	bufH := t.b.TransactionQuery(t.h, query, optsH, &length, &errH)
	if bufH == 0 {
		if err := takeErr(t.b, errH); err != nil {
			return nil, err
		}
		return nil, nil // no payload
	}
	return t.decodeBuffer(bufH, length)
}

// QueryScan executes a query and decodes the result rows directly into
// dest, which must be a pointer to a slice whose element type maps columns
// through `msgpack` struct tags. Unbound columns decode as the field's zero
// value; use a pointer field to tell unbound from zero. A query with no
// payload leaves dest untouched.
func (t *Transaction) QueryScan(query string, dest any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return ErrNotConnected
	}

	var (
		length uint64
		errH   bridge.Handle
	)
	bufH := t.b.TransactionQuery(t.h, query, 0, &length, &errH)
	if bufH == 0 {
		return takeErr(t.b, errH)
	}
	payload, err := t.b.BufferBytes(bufH)
	if err != nil {
		return err
	}
	decErr := decodeInto(payload, dest)
	if err := t.b.ReleaseBytes(bufH, length); err != nil {
		return err
	}
	return decErr
}

// QueryWithContext executes a query with cancellation support. If the
// context is cancelled while the query is in flight, the pending operation
// is aborted and ctx.Err() is returned. Cancellation is cooperative: the
// engine's query may still complete server-side.
func (t *Transaction) QueryWithContext(ctx context.Context, query string) ([]map[string]any, error) {
	// Fast path: bail immediately if already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.h == 0 {
		t.mu.Unlock()
		return nil, ErrNotConnected
	}
	var submitErrH bridge.Handle
	pending := t.b.TransactionQueryAsync(t.h, query, 0, &submitErrH)
	t.mu.Unlock() // release while waiting

	if pending == 0 {
		if err := takeErr(t.b, submitErrH); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// Poll until completion so the pending handle stays usable for an
	// abort. Resolving early would consume the handle and leave
	// cancellation with nothing to act on.
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = t.b.PendingAbort(pending)
			return nil, ctx.Err()
		case <-ticker.C:
			if !t.b.PendingPoll(pending) {
				continue
			}
			var (
				length uint64
				errH   bridge.Handle
			)
			bufH := t.b.PendingResolve(pending, &length, &errH)
			if bufH == 0 {
				if err := takeErr(t.b, errH); err != nil {
					return nil, err
				}
				return nil, nil
			}
			t.mu.Lock()
			defer t.mu.Unlock()
			return t.decodeBuffer(bufH, length)
		}
	}
}

// pollInterval is how often QueryWithContext checks an in-flight operation.
const pollInterval = 2 * time.Millisecond

// decodeBuffer decodes a payload buffer and releases it with its exact
// length. Callers must hold t.mu.
func (t *Transaction) decodeBuffer(bufH bridge.Handle, length uint64) ([]map[string]any, error) {
	payload, err := t.b.BufferBytes(bufH)
	if err != nil {
		return nil, err
	}
	results, decErr := decodeMsgpack(payload)
	if err := t.b.ReleaseBytes(bufH, length); err != nil {
		return nil, err
	}
	return results, decErr
}

// decodeMsgpack decodes a MessagePack payload into a slice of maps.
func decodeMsgpack(payload []byte) ([]map[string]any, error) {
	var results []map[string]any
	if err := decodeInto(payload, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// decodeInto decodes a MessagePack payload into an arbitrary destination.
func decodeInto(payload []byte, dest any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(dest); err != nil {
		return &DriverError{Message: "failed to decode query results: " + err.Error()}
	}
	return nil
}

// Commit persists the transaction's changes. After Commit the transaction
// is closed and cannot be used further.
func (t *Transaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return ErrNotConnected
	}
	h := t.h
	t.h = 0
	var errH bridge.Handle
	t.b.TransactionCommit(h, &errH)
	return takeErr(t.b, errH)
}

// Rollback discards uncommitted changes. The transaction remains usable.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return ErrNotConnected
	}
	var errH bridge.Handle
	t.b.TransactionRollback(t.h, &errH)
	return takeErr(t.b, errH)
}

// Close discards the transaction without committing. Safe to call more
// than once.
func (t *Transaction) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return nil
	}
	h := t.h
	t.h = 0
	return t.b.TransactionClose(h)
}
