// Package enginetest provides scripted engine fakes for tests: answers with
// predetermined rows, documents, or failures, and transactions that record
// every call made against them.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
	"github.com/kestrelgraph/kestrel-go/internal/engine"
)

// Answer is a scripted engine.Answer.
type Answer struct {
	kind engine.AnswerKind

	cols    []string
	rows    [][]concept.Concept
	rowErrN int // fail the row iterator after this many rows (-1 = never)

	docs    []any
	docErrN int
}

// Empty returns an answer with no payload.
func Empty() *Answer {
	return &Answer{kind: engine.AnswerEmpty, rowErrN: -1, docErrN: -1}
}

// Rows returns a row-stream answer. Each row is a slice of concepts in
// column order; nil entries are unbound columns.
func Rows(cols []string, rows ...[]concept.Concept) *Answer {
	return &Answer{kind: engine.AnswerRows, cols: cols, rows: rows, rowErrN: -1, docErrN: -1}
}

// RowsFailingAfter returns a row-stream answer whose iterator fails after
// yielding n rows.
func RowsFailingAfter(n int, cols []string, rows ...[]concept.Concept) *Answer {
	return &Answer{kind: engine.AnswerRows, cols: cols, rows: rows, rowErrN: n, docErrN: -1}
}

// Documents returns a document-stream answer.
func Documents(docs ...any) *Answer {
	return &Answer{kind: engine.AnswerDocuments, docs: docs, rowErrN: -1, docErrN: -1}
}

// DocumentsFailingAfter returns a document-stream answer whose iterator
// fails after yielding n documents.
func DocumentsFailingAfter(n int, docs ...any) *Answer {
	return &Answer{kind: engine.AnswerDocuments, docs: docs, rowErrN: -1, docErrN: n}
}

// Kind implements engine.Answer.
func (a *Answer) Kind() engine.AnswerKind { return a.kind }

// Rows implements engine.Answer.
func (a *Answer) Rows() engine.RowIterator {
	return &rowIter{cols: a.cols, rows: a.rows, errN: a.rowErrN, idx: -1}
}

// Documents implements engine.Answer.
func (a *Answer) Documents() engine.DocumentIterator {
	return &docIter{docs: a.docs, errN: a.docErrN, idx: -1}
}

type rowIter struct {
	cols []string
	rows [][]concept.Concept
	errN int
	idx  int
	err  error
}

func (it *rowIter) Next() bool {
	if it.err != nil {
		return false
	}
	next := it.idx + 1
	if it.errN >= 0 && next >= it.errN {
		it.err = fmt.Errorf("scripted row stream failure at row %d", next)
		return false
	}
	if next >= len(it.rows) {
		return false
	}
	it.idx = next
	return true
}

func (it *rowIter) Row() engine.Row { return scriptedRow{cols: it.cols, cells: it.rows[it.idx]} }
func (it *rowIter) Err() error      { return it.err }

type scriptedRow struct {
	cols  []string
	cells []concept.Concept
}

func (r scriptedRow) ColumnNames() []string { return r.cols }

func (r scriptedRow) Get(i int) (concept.Concept, error) {
	if i < 0 || i >= len(r.cells) {
		return nil, fmt.Errorf("column index %d out of range", i)
	}
	return r.cells[i], nil
}

type docIter struct {
	docs []any
	errN int
	idx  int
	err  error
}

func (it *docIter) Next() bool {
	if it.err != nil {
		return false
	}
	next := it.idx + 1
	if it.errN >= 0 && next >= it.errN {
		it.err = fmt.Errorf("scripted document stream failure at document %d", next)
		return false
	}
	if next >= len(it.docs) {
		return false
	}
	it.idx = next
	return true
}

func (it *docIter) Document() engine.Document { return it.docs[it.idx] }
func (it *docIter) Err() error                { return it.err }

// Txn is a scripted engine.Transaction. It serves answers in order and
// records every query text and option set it receives.
type Txn struct {
	mu      sync.Mutex
	answers []engine.Answer
	queries []string
	opts    []engine.QueryOptions
	open    bool

	// QueryErr, when set, is returned by every Query call.
	QueryErr error

	// Block, when non-nil, makes Query wait until the channel is closed
	// or the context is cancelled. Simulates a slow round trip.
	Block chan struct{}

	// QueryCalls counts Query invocations, including blocked ones.
	QueryCalls atomic.Int32

	Committed  bool
	RolledBack bool
}

// NewTxn creates an open scripted transaction serving the given answers.
func NewTxn(answers ...engine.Answer) *Txn {
	return &Txn{answers: answers, open: true}
}

// Queries returns the recorded query texts.
func (t *Txn) Queries() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.queries))
	copy(out, t.queries)
	return out
}

// Options returns the query options received by each Query call, in order.
func (t *Txn) Options() []engine.QueryOptions {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]engine.QueryOptions, len(t.opts))
	copy(out, t.opts)
	return out
}

// IsOpen implements engine.Transaction.
func (t *Txn) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Query implements engine.Transaction.
func (t *Txn) Query(ctx context.Context, query string, opts engine.QueryOptions) (engine.Answer, error) {
	t.QueryCalls.Add(1)

	t.mu.Lock()
	t.queries = append(t.queries, query)
	t.opts = append(t.opts, opts)
	block := t.Block
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.QueryErr != nil {
		return nil, t.QueryErr
	}
	if len(t.answers) == 0 {
		return Empty(), nil
	}
	ans := t.answers[0]
	t.answers = t.answers[1:]
	return ans, nil
}

// Commit implements engine.Transaction.
func (t *Txn) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Committed = true
	t.open = false
	return nil
}

// Rollback implements engine.Transaction.
func (t *Txn) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.RolledBack = true
	return nil
}

// Close implements engine.Transaction.
func (t *Txn) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

// Conn is a scripted engine.Connection with an in-memory catalog. Each
// opened transaction is a fresh Txn serving the connection's scripted
// answers.
type Conn struct {
	mu      sync.Mutex
	open    bool
	catalog map[string]string // database name -> schema text
	answers []engine.Answer   // script for the next opened transaction

	// Txns records every transaction this connection opened.
	Txns []*Txn
}

// NewConn creates an open scripted connection.
func NewConn() *Conn {
	return &Conn{open: true, catalog: make(map[string]string)}
}

// Script sets the answers served by the next opened transaction.
func (c *Conn) Script(answers ...engine.Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answers = answers
}

// IsOpen implements engine.Connection.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Close implements engine.Connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

// Databases implements engine.Connection.
func (c *Conn) Databases() engine.DatabaseManager { return (*catalog)(c) }

// Transaction implements engine.Connection.
func (c *Conn) Transaction(_ context.Context, database string, _ engine.TransactionType, _ engine.TransactionOptions) (engine.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.catalog[database]; !ok {
		return nil, fmt.Errorf("database %q does not exist", database)
	}
	txn := NewTxn(c.answers...)
	c.Txns = append(c.Txns, txn)
	return txn, nil
}

type catalog Conn

func (c *catalog) All(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.catalog))
	for name := range c.catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *catalog) Create(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.catalog[name]; ok {
		return fmt.Errorf("database %q already exists", name)
	}
	c.catalog[name] = ""
	return nil
}

func (c *catalog) Contains(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.catalog[name]
	return ok, nil
}

func (c *catalog) Schema(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	schema, ok := c.catalog[name]
	if !ok {
		return "", fmt.Errorf("database %q does not exist", name)
	}
	return schema, nil
}

func (c *catalog) Delete(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.catalog[name]; !ok {
		return fmt.Errorf("database %q does not exist", name)
	}
	delete(c.catalog, name)
	return nil
}

var (
	registerOnce sync.Once
	connsMu      sync.Mutex
	conns        = make(map[string]*Conn)
)

// Install registers the "fake" transport scheme (once) and binds conn to the
// address "fake:<name>". Later Installs for the same name replace the
// binding.
func Install(name string, conn *Conn) {
	registerOnce.Do(func() {
		engine.Register("fake", dial)
	})
	connsMu.Lock()
	defer connsMu.Unlock()
	conns[name] = conn
}

func dial(_ context.Context, address string, _ engine.Credentials, _ engine.ConnectionOptions) (engine.Connection, error) {
	connsMu.Lock()
	defer connsMu.Unlock()
	conn, ok := conns[address[len("fake:"):]]
	if !ok {
		return nil, fmt.Errorf("no fake connection installed at %q", address)
	}
	return conn, nil
}
