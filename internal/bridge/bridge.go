// Package bridge is the stable function-call boundary through which foreign
// callers drive the engine: open connections, administer the catalog, run
// transactions and queries, and receive answers as owned payload buffers.
//
// Every resource crossing the boundary is an opaque, generation-checked
// Handle with one constructor and one matching destructor; see handles.go.
// Engine and execution failures are transmitted through a caller-supplied
// error slot (`errOut *Handle`): a nil slot discards the error, a non-nil
// slot receives a string handle the caller must release exactly once.
// Resource misuse - nil, stale, foreign, or doubly-released handles - is a
// caller programming error and is returned directly as a Go error by
// destructors and accessors, never transmitted through the slot.
package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
	"github.com/kestrelgraph/kestrel-go/internal/exec"
	"github.com/kestrelgraph/kestrel-go/internal/logging"
)

// Bridge owns the handle table and the lazily-constructed task runtime.
type Bridge struct {
	logger  *zap.Logger
	workers int

	table handleTable

	rtMu sync.Mutex
	rt   *exec.Runtime
}

// New creates a bridge. workers bounds the async pool size; values below
// the minimum select the default. The logger may be nil.
func New(logger *zap.Logger, workers int) *Bridge {
	if logger == nil {
		logger = logging.L()
	}
	if workers < exec.MinWorkers {
		workers = exec.DefaultWorkers
	}
	return &Bridge{logger: logger, workers: workers}
}

// Workers returns the effective async pool size.
func (b *Bridge) Workers() int {
	return b.workers
}

// InitLogging initializes process-wide logging. Only the first call per
// process has any effect.
func (b *Bridge) InitLogging(verbose bool) {
	if err := logging.Init(verbose); err == nil {
		b.logger = logging.L()
	}
}

// runtime returns the task runtime, constructing it on first use. The pool
// lives for the remainder of the bridge's life. Construction failure is
// fatal: the process must not continue issuing async work without a pool.
func (b *Bridge) runtime() *exec.Runtime {
	b.rtMu.Lock()
	defer b.rtMu.Unlock()
	if b.rt == nil {
		rt, err := exec.NewRuntime(b.workers, b.logger)
		if err != nil {
			panic("bridge: task runtime construction failed: " + err.Error())
		}
		b.rt = rt
	}
	return b.rt
}

// Shutdown stops the task runtime if it was ever constructed. Intended for
// tests; production callers rely on process-exit reclamation.
func (b *Bridge) Shutdown() {
	b.rtMu.Lock()
	rt := b.rt
	b.rtMu.Unlock()
	if rt != nil {
		rt.Close()
	}
}

// setError transmits an error through the out-slot. A nil slot silently
// discards it, per the boundary contract.
func (b *Bridge) setError(errOut *Handle, err error) {
	if err == nil {
		return
	}
	b.logger.Debug("boundary error", zap.Error(err))
	if errOut == nil {
		return
	}
	*errOut = b.table.put(kindString, err.Error())
}

// ---------------------------------------------------------------------------
// Strings and byte buffers (boundary memory contract)
// ---------------------------------------------------------------------------

// StringValue reads the text behind a string handle without releasing it.
func (b *Bridge) StringValue(h Handle) (string, error) {
	v, err := b.table.get(h, kindString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ReleaseString frees a string returned by this library. Must be called
// exactly once per string handle.
func (b *Bridge) ReleaseString(h Handle) error {
	_, err := b.table.take(h, kindString)
	return err
}

// BufferBytes reads the payload behind a buffer handle without releasing
// it. The returned slice is owned by the caller's handle: it stays valid
// until ReleaseBytes and must not be used after.
func (b *Bridge) BufferBytes(h Handle) ([]byte, error) {
	v, err := b.table.get(h, kindBuffer)
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// ReleaseBytes frees a payload buffer. The caller must pass the same length
// that was returned at creation; a mismatch is a detected misuse and frees
// nothing. Releasing the nil handle with length 0 is a no-op, matching the
// "no payload" sentinel.
func (b *Bridge) ReleaseBytes(h Handle, length uint64) error {
	if h == 0 && length == 0 {
		return nil
	}
	v, err := b.table.get(h, kindBuffer)
	if err != nil {
		return err
	}
	if uint64(len(v.([]byte))) != length {
		return ErrLengthMismatch
	}
	_, err = b.table.take(h, kindBuffer)
	return err
}

// putBuffer registers an owned payload buffer and returns its handle and
// length. Empty payloads return the nil handle and length 0 - the sentinel
// for "no data" - and register nothing.
func (b *Bridge) putBuffer(buf []byte, lenOut *uint64) Handle {
	if len(buf) == 0 {
		if lenOut != nil {
			*lenOut = 0
		}
		return 0
	}
	if lenOut != nil {
		*lenOut = uint64(len(buf))
	}
	return b.table.put(kindBuffer, buf)
}

// ---------------------------------------------------------------------------
// Credentials and options (inert value objects)
// ---------------------------------------------------------------------------

// CredentialsNew creates credentials. Release with CredentialsDrop.
func (b *Bridge) CredentialsNew(username, password string) Handle {
	return b.table.put(kindCredentials, engine.Credentials{Username: username, Password: password})
}

// CredentialsDrop frees credentials.
func (b *Bridge) CredentialsDrop(h Handle) error {
	_, err := b.table.take(h, kindCredentials)
	return err
}

// ConnectionOptionsNew creates connection options. rootCA may be empty.
// Release with ConnectionOptionsDrop.
func (b *Bridge) ConnectionOptionsNew(tlsEnabled bool, rootCA string) Handle {
	return b.table.put(kindConnOptions, engine.ConnectionOptions{TLSEnabled: tlsEnabled, TLSRootCA: rootCA})
}

// ConnectionOptionsDrop frees connection options.
func (b *Bridge) ConnectionOptionsDrop(h Handle) error {
	_, err := b.table.take(h, kindConnOptions)
	return err
}

// TransactionOptionsNew creates default transaction options. Release with
// TransactionOptionsDrop.
func (b *Bridge) TransactionOptionsNew() Handle {
	return b.table.put(kindTxnOptions, &engine.TransactionOptions{})
}

// TransactionOptionsSetTimeout sets the overall transaction timeout.
func (b *Bridge) TransactionOptionsSetTimeout(h Handle, timeout time.Duration) error {
	v, err := b.table.get(h, kindTxnOptions)
	if err != nil {
		return err
	}
	v.(*engine.TransactionOptions).TransactionTimeout = timeout
	return nil
}

// TransactionOptionsSetSchemaLockTimeout sets the schema lock acquire timeout.
func (b *Bridge) TransactionOptionsSetSchemaLockTimeout(h Handle, timeout time.Duration) error {
	v, err := b.table.get(h, kindTxnOptions)
	if err != nil {
		return err
	}
	v.(*engine.TransactionOptions).SchemaLockTimeout = timeout
	return nil
}

// TransactionOptionsDrop frees transaction options.
func (b *Bridge) TransactionOptionsDrop(h Handle) error {
	_, err := b.table.take(h, kindTxnOptions)
	return err
}

// QueryOptionsNew creates default query options. Release with
// QueryOptionsDrop.
func (b *Bridge) QueryOptionsNew() Handle {
	return b.table.put(kindQueryOptions, &engine.QueryOptions{})
}

// QueryOptionsSetIncludeInstanceTypes sets the include-instance-types option.
func (b *Bridge) QueryOptionsSetIncludeInstanceTypes(h Handle, include bool) error {
	v, err := b.table.get(h, kindQueryOptions)
	if err != nil {
		return err
	}
	v.(*engine.QueryOptions).IncludeInstanceTypes = &include
	return nil
}

// QueryOptionsSetPrefetchSize sets the prefetch-size option.
func (b *Bridge) QueryOptionsSetPrefetchSize(h Handle, size uint64) error {
	v, err := b.table.get(h, kindQueryOptions)
	if err != nil {
		return err
	}
	v.(*engine.QueryOptions).PrefetchSize = &size
	return nil
}

// QueryOptionsDrop frees query options.
func (b *Bridge) QueryOptionsDrop(h Handle) error {
	_, err := b.table.take(h, kindQueryOptions)
	return err
}

// credentialsValue resolves an optional credentials handle; the nil handle
// means defaults.
func (b *Bridge) credentialsValue(h Handle) (engine.Credentials, error) {
	if h == 0 {
		return engine.Credentials{}, nil
	}
	v, err := b.table.get(h, kindCredentials)
	if err != nil {
		return engine.Credentials{}, err
	}
	return v.(engine.Credentials), nil
}

func (b *Bridge) connOptionsValue(h Handle) (engine.ConnectionOptions, error) {
	if h == 0 {
		return engine.ConnectionOptions{}, nil
	}
	v, err := b.table.get(h, kindConnOptions)
	if err != nil {
		return engine.ConnectionOptions{}, err
	}
	return v.(engine.ConnectionOptions), nil
}

func (b *Bridge) txnOptionsValue(h Handle) (engine.TransactionOptions, error) {
	if h == 0 {
		return engine.TransactionOptions{}, nil
	}
	v, err := b.table.get(h, kindTxnOptions)
	if err != nil {
		return engine.TransactionOptions{}, err
	}
	return *v.(*engine.TransactionOptions), nil
}

func (b *Bridge) queryOptionsValue(h Handle) (engine.QueryOptions, error) {
	if h == 0 {
		return engine.QueryOptions{}, nil
	}
	v, err := b.table.get(h, kindQueryOptions)
	if err != nil {
		return engine.QueryOptions{}, err
	}
	return *v.(*engine.QueryOptions), nil
}
