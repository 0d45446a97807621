// Package driver provides the idiomatic Go API for the Kestrel graph-query
// engine. It is a thin layer over the stable function-call boundary in
// internal/bridge: every resource it manages is an opaque boundary handle
// with strict create/release pairing, and query results arrive as
// MessagePack payload buffers that this package decodes for the caller.
package driver

import (
	"sync"

	"github.com/kestrelgraph/kestrel-go/internal/bridge"
	"github.com/kestrelgraph/kestrel-go/internal/logging"
)

// TransactionType specifies the intended mode of operation for a transaction.
type TransactionType int32

const (
	// Read transactions are for data retrieval only.
	Read TransactionType = 0
	// Write transactions allow data modification.
	Write TransactionType = 1
	// Schema transactions allow schema modification.
	Schema TransactionType = 2
)

// The boundary and its task runtime live for the remainder of the process;
// every Driver in the process shares them.
var (
	sharedMu     sync.Mutex
	sharedBridge *bridge.Bridge
	workersHint  int
)

func boundary() *bridge.Bridge {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedBridge == nil {
		sharedBridge = bridge.New(logging.L(), workersHint)
	}
	return sharedBridge
}

// SetWorkers sizes the async worker pool of the process-wide boundary.
// The pool is built on first use and lives for the remainder of the
// process, so the hint only takes effect before the first driver
// operation; SetWorkers reports whether it did. Values below the minimum
// select the default.
func SetWorkers(n int) bool {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedBridge != nil {
		return false
	}
	workersHint = n
	return true
}

// InitLogging initializes process-wide logging. Optional; only the first
// call per process has any effect.
func InitLogging(verbose bool) {
	boundary().InitLogging(verbose)
}

// Driver represents an active connection to a Kestrel deployment. It is
// used to open transactions and manage databases.
type Driver struct {
	b  *bridge.Bridge
	mu sync.Mutex
	h  bridge.Handle
}

// Open creates a new connection to the engine at the given address, using
// the provided username and password for authentication.
func Open(address, username, password string) (*Driver, error) {
	return OpenWithTLS(address, username, password, false, "")
}

// OpenWithTLS creates a new connection with optional TLS configuration.
// tlsRootCA may name a custom root certificate authority; empty means the
// system roots.
func OpenWithTLS(address, username, password string, tlsEnabled bool, tlsRootCA string) (*Driver, error) {
	b := boundary()

	creds := b.CredentialsNew(username, password)
	defer b.CredentialsDrop(creds)

	opts := b.ConnectionOptionsNew(tlsEnabled, tlsRootCA)
	defer b.ConnectionOptionsDrop(opts)

	var errH bridge.Handle
	h := b.ConnectionOpen(address, creds, opts, &errH)
	if h == 0 {
		if err := takeErr(b, errH); err != nil {
			return nil, err
		}
		return nil, ErrNilHandle
	}
	return &Driver{b: b, h: h}, nil
}

// IsOpen returns true if the connection is active.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return false
	}
	return d.b.ConnectionIsOpen(d.h)
}

// Close terminates the connection and releases its resources. Safe to call
// more than once.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return nil
	}
	h := d.h
	d.h = 0
	return d.b.ConnectionClose(h)
}

// Databases returns the manager for database administration.
func (d *Driver) Databases() *DatabaseManager {
	return &DatabaseManager{driver: d}
}

// Transaction opens a transaction of the given type against a database.
func (d *Driver) Transaction(database string, typ TransactionType) (*Transaction, error) {
	return d.TransactionWithOptions(database, typ, nil)
}

// TransactionWithOptions opens a transaction with specific options.
// opts may be nil for defaults.
func (d *Driver) TransactionWithOptions(database string, typ TransactionType, opts *TransactionOptions) (*Transaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.h == 0 {
		return nil, ErrNotConnected
	}

	var optsH bridge.Handle
	if opts != nil {
		optsH = opts.h
	}
	var errH bridge.Handle
	h := d.b.TransactionOpen(d.h, database, int32(typ), optsH, &errH)
	if h == 0 {
		if err := takeErr(d.b, errH); err != nil {
			return nil, err
		}
		return nil, ErrNilHandle
	}
	return &Transaction{b: d.b, h: h}, nil
}

// takeErr drains the boundary error slot: reads the error text, releases
// the string exactly once, and wraps it. A nil slot value means no error.
func takeErr(b *bridge.Bridge, errH bridge.Handle) error {
	if errH == 0 {
		return nil
	}
	msg, err := b.StringValue(errH)
	if err != nil {
		return err
	}
	if err := b.ReleaseString(errH); err != nil {
		return err
	}
	return &DriverError{Message: msg}
}
