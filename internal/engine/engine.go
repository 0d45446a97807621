// Package engine specifies the interface to the graph-query engine.
//
// The engine itself is an external collaborator: it opens transactions,
// executes queries, classifies each answer as empty, a row stream, or a
// document stream, and produces lazy sequences of typed rows or documents.
// This package pins that contract and provides a scheme-based transport
// registry; it contains no execution or encoding logic of its own.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
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

// String returns the lower-case type name.
func (t TransactionType) String() string {
	switch t {
	case Read:
		return "read"
	case Write:
		return "write"
	case Schema:
		return "schema"
	default:
		return fmt.Sprintf("transaction-type(%d)", int32(t))
	}
}

// Credentials authenticate a connection. Inert value object.
type Credentials struct {
	Username string
	Password string
}

// ConnectionOptions configure how a connection is established.
// Inert value object.
type ConnectionOptions struct {
	TLSEnabled bool
	TLSRootCA  string
}

// TransactionOptions tune transaction behavior. Zero values mean engine
// defaults. Inert value object.
type TransactionOptions struct {
	TransactionTimeout time.Duration
	SchemaLockTimeout  time.Duration
}

// QueryOptions tune query execution. Nil fields mean engine defaults.
// Inert value object.
type QueryOptions struct {
	IncludeInstanceTypes *bool
	PrefetchSize         *uint64
}

// Connection is an open session with an engine.
type Connection interface {
	// IsOpen reports whether the connection is usable.
	IsOpen() bool
	// Databases returns the catalog manager for this connection.
	Databases() DatabaseManager
	// Transaction opens a transaction against the named database.
	Transaction(ctx context.Context, database string, typ TransactionType, opts TransactionOptions) (Transaction, error)
	// Close releases the connection. Idempotent.
	Close() error
}

// DatabaseManager administers the engine's database catalog.
// All operations are single-call delegations to the engine.
type DatabaseManager interface {
	All(ctx context.Context) ([]string, error)
	Create(ctx context.Context, name string) error
	Contains(ctx context.Context, name string) (bool, error)
	Schema(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// Transaction is an active unit of work. A transaction is a single-writer
// resource: callers must not run two operations against it concurrently.
type Transaction interface {
	// IsOpen reports whether the transaction is still active.
	IsOpen() bool
	// Query executes a query and returns the classified answer.
	// The answer's streams are lazy; they must be drained before any
	// further operation on the transaction.
	Query(ctx context.Context, query string, opts QueryOptions) (Answer, error)
	// Commit persists the transaction's changes and closes it.
	Commit(ctx context.Context) error
	// Rollback discards uncommitted changes, keeping the transaction open.
	Rollback(ctx context.Context) error
	// Close discards the transaction without committing. Idempotent.
	Close() error
}

// AnswerKind classifies a query answer. The engine determines the kind
// exactly once, at execution time.
type AnswerKind int

const (
	// AnswerEmpty carries no payload (e.g. a successful mutation).
	AnswerEmpty AnswerKind = iota + 1
	// AnswerRows carries a lazy stream of rows.
	AnswerRows
	// AnswerDocuments carries a lazy stream of documents.
	AnswerDocuments
)

// Answer is the classified result of one query execution.
// Rows and Documents may each be consumed at most once.
type Answer interface {
	Kind() AnswerKind
	// Rows returns the row stream. Valid only when Kind is AnswerRows.
	Rows() RowIterator
	// Documents returns the document stream. Valid only when Kind is
	// AnswerDocuments.
	Documents() DocumentIterator
}

// RowIterator drains a lazy row stream in database/sql style:
//
//	for it.Next() {
//	    row := it.Row()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type RowIterator interface {
	Next() bool
	Row() Row
	Err() error
}

// Row is an ordered mapping from column name to an optional concept.
// Column order is significant and identical across all rows of one answer.
type Row interface {
	// ColumnNames returns the declared column order.
	ColumnNames() []string
	// Get returns the concept bound to column i, or nil if unbound.
	Get(i int) (concept.Concept, error)
}

// DocumentIterator drains a lazy document stream, same protocol as
// RowIterator.
type DocumentIterator interface {
	Next() bool
	Document() Document
	Err() error
}

// Document is an already-structured JSON-like tree of engine-native values.
// It passes through the encoder with type normalization only.
type Document = any

// Dialer opens a connection to an engine at the given address.
type Dialer func(ctx context.Context, address string, creds Credentials, opts ConnectionOptions) (Connection, error)

var (
	transportsMu sync.RWMutex
	transports   = make(map[string]Dialer)
)

// Register makes a transport available under an address scheme, e.g.
// "sqlite". Follows the database/sql driver registration convention:
// panics on a duplicate or nil registration, and is expected to be called
// from a transport package's init.
func Register(scheme string, dial Dialer) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	if dial == nil {
		panic("engine: Register dialer is nil")
	}
	if _, dup := transports[scheme]; dup {
		panic("engine: Register called twice for scheme " + scheme)
	}
	transports[scheme] = dial
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	names := make([]string, 0, len(transports))
	for s := range transports {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Dial opens a connection to the engine at address. The address must be of
// the form "scheme:rest"; the scheme selects the registered transport.
func Dial(ctx context.Context, address string, creds Credentials, opts ConnectionOptions) (Connection, error) {
	scheme, _, ok := strings.Cut(address, ":")
	if !ok || scheme == "" {
		return nil, fmt.Errorf("engine: address %q has no scheme", address)
	}
	transportsMu.RLock()
	dial, registered := transports[scheme]
	transportsMu.RUnlock()
	if !registered {
		return nil, fmt.Errorf("engine: unknown transport scheme %q (registered: %v)", scheme, Schemes())
	}
	return dial(ctx, address, creds, opts)
}
