package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
	"github.com/kestrelgraph/kestrel-go/internal/enginetest"
	"github.com/kestrelgraph/kestrel-go/internal/exec"
	"github.com/kestrelgraph/kestrel-go/internal/vtree"
)

// newBridge installs a fresh fake engine under the test's name and returns a
// bridge plus the scripted connection behind it.
func newBridge(t *testing.T) (*Bridge, *enginetest.Conn, string) {
	t.Helper()
	b := New(zap.NewNop(), 2)
	t.Cleanup(b.Shutdown)
	conn := enginetest.NewConn()
	enginetest.Install(t.Name(), conn)
	return b, conn, "fake:" + t.Name()
}

// drainError reads and releases the error slot, failing the test on handle
// misuse. Returns "" when the slot is empty.
func drainError(t *testing.T, b *Bridge, errH Handle) string {
	t.Helper()
	if errH == 0 {
		return ""
	}
	msg, err := b.StringValue(errH)
	require.NoError(t, err)
	require.NoError(t, b.ReleaseString(errH))
	return msg
}

func openTestTransaction(t *testing.T, b *Bridge, address string) Handle {
	t.Helper()
	var errH Handle
	connH := b.ConnectionOpen(address, 0, 0, &errH)
	require.NotEqual(t, Handle(0), connH, drainError(t, b, errH))
	t.Cleanup(func() { _ = b.ConnectionClose(connH) })

	b.DatabasesCreate(connH, "testdb", &errH)
	require.Empty(t, drainError(t, b, errH))

	txnH := b.TransactionOpen(connH, "testdb", 0, 0, &errH)
	require.NotEqual(t, Handle(0), txnH, drainError(t, b, errH))
	return txnH
}

func TestConnectionLifecycle(t *testing.T) {
	b, _, address := newBridge(t)

	var errH Handle
	h := b.ConnectionOpen(address, 0, 0, &errH)
	require.NotEqual(t, Handle(0), h, drainError(t, b, errH))
	assert.True(t, b.ConnectionIsOpen(h))

	require.NoError(t, b.ConnectionClose(h))
	assert.False(t, b.ConnectionIsOpen(h), "released handle reports closed")

	err := b.ConnectionClose(h)
	assert.ErrorIs(t, err, ErrStaleHandle, "double close must be detected")
}

func TestConnectionOpen_UnknownScheme(t *testing.T) {
	b := New(zap.NewNop(), 2)
	t.Cleanup(b.Shutdown)

	var errH Handle
	h := b.ConnectionOpen("bogus:somewhere", 0, 0, &errH)
	assert.Equal(t, Handle(0), h)

	msg := drainError(t, b, errH)
	assert.Contains(t, msg, "unknown transport scheme")

	// The slot's string was released above; releasing again is misuse.
	err := b.ReleaseString(errH)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestErrorSlot_NilSlotDiscards(t *testing.T) {
	b := New(zap.NewNop(), 2)
	t.Cleanup(b.Shutdown)

	h := b.ConnectionOpen("bogus:somewhere", 0, 0, nil)
	assert.Equal(t, Handle(0), h)
}

func TestDatabaseCatalog(t *testing.T) {
	b, _, address := newBridge(t)

	var errH Handle
	connH := b.ConnectionOpen(address, 0, 0, &errH)
	require.NotEqual(t, Handle(0), connH, drainError(t, b, errH))

	b.DatabasesCreate(connH, "orders", &errH)
	require.Empty(t, drainError(t, b, errH))

	assert.True(t, b.DatabasesContains(connH, "orders", &errH))
	require.Empty(t, drainError(t, b, errH))
	assert.False(t, b.DatabasesContains(connH, "missing", &errH))
	require.Empty(t, drainError(t, b, errH))

	strH := b.DatabasesAll(connH, &errH)
	require.NotEqual(t, Handle(0), strH, drainError(t, b, errH))
	list, err := b.StringValue(strH)
	require.NoError(t, err)
	assert.JSONEq(t, `["orders"]`, list)
	require.NoError(t, b.ReleaseString(strH))

	b.DatabasesCreate(connH, "orders", &errH)
	assert.Contains(t, drainError(t, b, errH), "already exists")

	b.DatabaseDelete(connH, "orders", &errH)
	require.Empty(t, drainError(t, b, errH))
	assert.False(t, b.DatabasesContains(connH, "orders", &errH))
	require.Empty(t, drainError(t, b, errH))
}

func TestTransactionQuery_Payload(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Rows(
		[]string{"name", "age"},
		[]concept.Concept{concept.String("ada"), concept.Int(36)},
	))

	txnH := openTestTransaction(t, b, address)

	var (
		length uint64
		errH   Handle
	)
	bufH := b.TransactionQuery(txnH, "match $p", 0, &length, &errH)
	require.NotEqual(t, Handle(0), bufH, drainError(t, b, errH))
	require.NotZero(t, length)

	payload, err := b.BufferBytes(bufH)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), length)

	nodes, err := vtree.UnmarshalSequence(payload)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	row := nodes[0].(*vtree.Object)
	assert.Equal(t, []string{"name", "age"}, row.Keys())

	// A wrong length must be rejected without freeing the buffer.
	err = b.ReleaseBytes(bufH, length+1)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = b.BufferBytes(bufH)
	require.NoError(t, err, "buffer must survive a rejected release")

	require.NoError(t, b.ReleaseBytes(bufH, length))
	_, err = b.BufferBytes(bufH)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestTransactionQuery_NoPayloadSentinel(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Empty())

	txnH := openTestTransaction(t, b, address)

	var (
		length uint64 = 99
		errH   Handle
	)
	bufH := b.TransactionQuery(txnH, "insert ...", 0, &length, &errH)
	require.Empty(t, drainError(t, b, errH))
	assert.Equal(t, Handle(0), bufH)
	assert.Zero(t, length)

	// Releasing the sentinel is a no-op, not misuse.
	assert.NoError(t, b.ReleaseBytes(0, 0))
}

func TestTransactionCommit_ConsumesHandle(t *testing.T) {
	b, _, address := newBridge(t)
	txnH := openTestTransaction(t, b, address)

	var errH Handle
	b.TransactionCommit(txnH, &errH)
	require.Empty(t, drainError(t, b, errH))

	assert.False(t, b.TransactionIsOpen(txnH))
	err := b.TransactionClose(txnH)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestTransactionRollback_KeepsHandle(t *testing.T) {
	b, _, address := newBridge(t)
	txnH := openTestTransaction(t, b, address)

	var errH Handle
	b.TransactionRollback(txnH, &errH)
	require.Empty(t, drainError(t, b, errH))

	assert.True(t, b.TransactionIsOpen(txnH), "rollback keeps the transaction usable")
	require.NoError(t, b.TransactionClose(txnH))
}

func TestAsyncQuery_ResolveOnce(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Rows([]string{"n"}, []concept.Concept{concept.Int(1)}))

	txnH := openTestTransaction(t, b, address)

	var errH Handle
	pendingH := b.TransactionQueryAsync(txnH, "match $n", 0, &errH)
	require.NotEqual(t, Handle(0), pendingH, drainError(t, b, errH))

	require.Eventually(t, func() bool { return b.PendingPoll(pendingH) },
		5*time.Second, time.Millisecond)

	var length uint64
	bufH := b.PendingResolve(pendingH, &length, &errH)
	require.NotEqual(t, Handle(0), bufH, drainError(t, b, errH))
	require.NoError(t, b.ReleaseBytes(bufH, length))

	// The resolve consumed the pending handle; a second resolve is misuse
	// and is transmitted through the slot.
	bufH = b.PendingResolve(pendingH, &length, &errH)
	assert.Equal(t, Handle(0), bufH)
	assert.Contains(t, drainError(t, b, errH), "stale")
}

func TestAsyncQuery_Abort(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Rows([]string{"n"}, []concept.Concept{concept.Int(1)}))

	txnH := openTestTransaction(t, b, address)

	// Make the round trip hang so the abort lands while it is in flight.
	require.Len(t, conn.Txns, 1)
	conn.Txns[0].Block = make(chan struct{})

	var errH Handle
	pendingH := b.TransactionQueryAsync(txnH, "slow", 0, &errH)
	require.NotEqual(t, Handle(0), pendingH, drainError(t, b, errH))
	assert.False(t, b.PendingPoll(pendingH))

	require.NoError(t, b.PendingAbort(pendingH))

	// The handle is gone; polling a released handle reports "done".
	assert.True(t, b.PendingPoll(pendingH))
	err := b.PendingDrop(pendingH)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestAsyncQuery_Drop(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Empty())

	txnH := openTestTransaction(t, b, address)

	var errH Handle
	pendingH := b.TransactionQueryAsync(txnH, "q", 0, &errH)
	require.NotEqual(t, Handle(0), pendingH, drainError(t, b, errH))

	require.NoError(t, b.PendingDrop(pendingH))
	err := b.PendingDrop(pendingH)
	assert.ErrorIs(t, err, ErrStaleHandle)
}

func TestShutdown_RacesFirstAsyncSubmit(t *testing.T) {
	b, conn, address := newBridge(t)
	conn.Script(enginetest.Empty())

	txnH := openTestTransaction(t, b, address)

	// Shutdown and the runtime-constructing first submit must be safe to
	// run concurrently; either ordering is a valid outcome.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Shutdown()
	}()

	var errH Handle
	pendingH := b.TransactionQueryAsync(txnH, "q", 0, &errH)
	wg.Wait()

	if pendingH == 0 {
		assert.Contains(t, drainError(t, b, errH), "runtime")
		return
	}
	var length uint64
	bufH := b.PendingResolve(pendingH, &length, &errH)
	if bufH != 0 {
		require.NoError(t, b.ReleaseBytes(bufH, length))
	}
	drainError(t, b, errH)
}

func TestNew_WorkerCount(t *testing.T) {
	assert.Equal(t, 8, New(zap.NewNop(), 8).Workers())
	assert.Equal(t, exec.DefaultWorkers, New(zap.NewNop(), 0).Workers(), "zero selects the default")
	assert.Equal(t, exec.DefaultWorkers, New(zap.NewNop(), 1).Workers(), "below the minimum selects the default")
}

func TestOptionsLifecycle(t *testing.T) {
	b := New(zap.NewNop(), 2)
	t.Cleanup(b.Shutdown)

	creds := b.CredentialsNew("admin", "secret")
	require.NoError(t, b.CredentialsDrop(creds))
	assert.ErrorIs(t, b.CredentialsDrop(creds), ErrStaleHandle)

	connOpts := b.ConnectionOptionsNew(true, "/etc/ca.pem")
	require.NoError(t, b.ConnectionOptionsDrop(connOpts))

	txnOpts := b.TransactionOptionsNew()
	require.NoError(t, b.TransactionOptionsSetTimeout(txnOpts, 5*time.Second))
	require.NoError(t, b.TransactionOptionsSetSchemaLockTimeout(txnOpts, time.Second))
	require.NoError(t, b.TransactionOptionsDrop(txnOpts))

	qOpts := b.QueryOptionsNew()
	require.NoError(t, b.QueryOptionsSetIncludeInstanceTypes(qOpts, true))
	require.NoError(t, b.QueryOptionsSetPrefetchSize(qOpts, 64))
	require.NoError(t, b.QueryOptionsDrop(qOpts))

	// Kind confusion between option categories is detected.
	again := b.QueryOptionsNew()
	assert.ErrorIs(t, b.TransactionOptionsDrop(again), ErrWrongKind)
	require.NoError(t, b.QueryOptionsDrop(again))
}
