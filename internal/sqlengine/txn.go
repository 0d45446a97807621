package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
	"github.com/kestrelgraph/kestrel-go/internal/engine"
)

// txn is an engine.Transaction over one sql.Tx.
//
// Transaction-type rules are enforced at statement classification time
// because the underlying driver has no native read-only transactions:
// read transactions accept only row-producing statements, and DDL requires
// a schema transaction.
type txn struct {
	db  *sql.DB
	typ engine.TransactionType

	// deadline, when non-zero, bounds every operation in the transaction.
	deadline time.Time

	mu   sync.Mutex
	tx   *sql.Tx
	open bool
}

func beginTxn(ctx context.Context, db *sql.DB, typ engine.TransactionType, opts engine.TransactionOptions) (engine.Transaction, error) {
	switch typ {
	case engine.Read, engine.Write, engine.Schema:
	default:
		return nil, fmt.Errorf("sqlengine: unknown transaction type %d", typ)
	}

	t := &txn{db: db, typ: typ}
	if opts.TransactionTimeout > 0 {
		t.deadline = time.Now().Add(opts.TransactionTimeout)
	}
	if opts.SchemaLockTimeout > 0 {
		// The closest native analogue of a schema-lock timeout.
		millis := opts.SchemaLockTimeout.Milliseconds()
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", millis)); err != nil {
			return nil, fmt.Errorf("sqlengine: set busy timeout: %w", err)
		}
	}

	opCtx, cancel := t.opContext(ctx)
	defer cancel()
	tx, err := db.BeginTx(opCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlengine: begin transaction: %w", err)
	}
	t.tx = tx
	t.open = true
	return t, nil
}

// opContext applies the transaction deadline to an operation context.
func (t *txn) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, t.deadline)
}

// IsOpen implements engine.Transaction.
func (t *txn) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// stmtClass is the statement classification driving answer kinds and
// transaction-type enforcement.
type stmtClass int

const (
	classRows stmtClass = iota + 1 // produces a row stream
	classWrite
	classDDL
)

func classify(query string) stmtClass {
	head := strings.ToUpper(firstWord(query))
	switch head {
	case "SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN":
		return classRows
	case "CREATE", "ALTER", "DROP":
		return classDDL
	default:
		return classWrite
	}
}

func firstWord(query string) string {
	s := strings.TrimSpace(query)
	for {
		if strings.HasPrefix(s, "--") {
			_, rest, ok := strings.Cut(s, "\n")
			if !ok {
				return ""
			}
			s = strings.TrimSpace(rest)
			continue
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';'
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// Query implements engine.Transaction. Row-producing statements yield a lazy
// row-stream answer; everything else executes and yields an empty answer.
func (t *txn) Query(ctx context.Context, query string, _ engine.QueryOptions) (engine.Answer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil, fmt.Errorf("sqlengine: transaction is closed")
	}

	class := classify(query)
	switch {
	case class == classDDL && t.typ != engine.Schema:
		return nil, fmt.Errorf("sqlengine: schema change requires a schema transaction, not %s", t.typ)
	case class == classWrite && t.typ == engine.Read:
		return nil, fmt.Errorf("sqlengine: write statement rejected in a read transaction")
	}

	opCtx, cancel := t.opContext(ctx)
	if class == classRows {
		rows, err := t.tx.QueryContext(opCtx, query)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("sqlengine: query: %w", err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			cancel()
			return nil, fmt.Errorf("sqlengine: read columns: %w", err)
		}
		return &rowsAnswer{rows: rows, cols: cols, cancel: cancel}, nil
	}

	defer cancel()
	if _, err := t.tx.ExecContext(opCtx, query); err != nil {
		return nil, fmt.Errorf("sqlengine: exec: %w", err)
	}
	return emptyAnswer{}, nil
}

// Commit implements engine.Transaction.
func (t *txn) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return fmt.Errorf("sqlengine: transaction is closed")
	}
	t.open = false
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("sqlengine: commit: %w", err)
	}
	return nil
}

// Rollback implements engine.Transaction. Discards uncommitted changes and
// begins a fresh unit of work so the transaction stays usable.
func (t *txn) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return fmt.Errorf("sqlengine: transaction is closed")
	}
	if err := t.tx.Rollback(); err != nil {
		t.open = false
		return fmt.Errorf("sqlengine: rollback: %w", err)
	}
	opCtx, cancel := t.opContext(ctx)
	defer cancel()
	tx, err := t.db.BeginTx(opCtx, nil)
	if err != nil {
		t.open = false
		return fmt.Errorf("sqlengine: restart after rollback: %w", err)
	}
	t.tx = tx
	return nil
}

// Close implements engine.Transaction.
func (t *txn) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return nil
	}
	t.open = false
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("sqlengine: close: %w", err)
	}
	return nil
}

// emptyAnswer is the no-payload classification.
type emptyAnswer struct{}

func (emptyAnswer) Kind() engine.AnswerKind            { return engine.AnswerEmpty }
func (emptyAnswer) Rows() engine.RowIterator           { return nil }
func (emptyAnswer) Documents() engine.DocumentIterator { return nil }

// rowsAnswer adapts sql.Rows into a lazy row-stream answer.
type rowsAnswer struct {
	rows   *sql.Rows
	cols   []string
	cancel context.CancelFunc
}

func (a *rowsAnswer) Kind() engine.AnswerKind            { return engine.AnswerRows }
func (a *rowsAnswer) Documents() engine.DocumentIterator { return nil }

func (a *rowsAnswer) Rows() engine.RowIterator {
	return &rowIter{answer: a}
}

type rowIter struct {
	answer *rowsAnswer
	cells  []any
	err    error
	done   bool
}

func (it *rowIter) Next() bool {
	if it.done {
		return false
	}
	if !it.answer.rows.Next() {
		it.err = it.answer.rows.Err()
		it.finish()
		return false
	}
	dest := make([]any, len(it.answer.cols))
	ptrs := make([]any, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := it.answer.rows.Scan(ptrs...); err != nil {
		it.err = fmt.Errorf("scan row: %w", err)
		it.finish()
		return false
	}
	it.cells = dest
	return true
}

func (it *rowIter) finish() {
	it.done = true
	it.answer.rows.Close()
	it.answer.cancel()
}

func (it *rowIter) Row() engine.Row { return sqlRow{cols: it.answer.cols, cells: it.cells} }
func (it *rowIter) Err() error      { return it.err }

type sqlRow struct {
	cols  []string
	cells []any
}

func (r sqlRow) ColumnNames() []string { return r.cols }

// Get maps a scanned SQLite value to a concept. NULL columns are unbound.
func (r sqlRow) Get(i int) (concept.Concept, error) {
	if i < 0 || i >= len(r.cells) {
		return nil, fmt.Errorf("column index %d out of range", i)
	}
	switch v := r.cells[i].(type) {
	case nil:
		return nil, nil
	case bool:
		return concept.Bool(v), nil
	case int64:
		return concept.Int(v), nil
	case float64:
		return concept.Double(v), nil
	case string:
		return concept.String(v), nil
	case []byte:
		return concept.String(string(v)), nil
	case time.Time:
		return concept.Rendered(concept.KindDatetime, v.Format(time.RFC3339Nano)), nil
	default:
		return nil, fmt.Errorf("column %q: unsupported value type %T", r.cols[i], v)
	}
}
