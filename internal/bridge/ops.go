package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
	"github.com/kestrelgraph/kestrel-go/internal/exec"
)

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// ConnectionOpen opens a connection to the engine at address. Returns the
// nil handle on failure. Release with ConnectionClose.
func (b *Bridge) ConnectionOpen(address string, creds Handle, opts Handle, errOut *Handle) Handle {
	credentials, err := b.credentialsValue(creds)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	options, err := b.connOptionsValue(opts)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	conn, err := engine.Dial(context.Background(), address, credentials, options)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	b.logger.Debug("connection opened", zap.String("address", address))
	return b.table.put(kindConnection, conn)
}

// ConnectionIsOpen reports whether the connection behind the handle is
// usable. A nil or stale handle reports false.
func (b *Bridge) ConnectionIsOpen(h Handle) bool {
	v, err := b.table.get(h, kindConnection)
	if err != nil {
		return false
	}
	return v.(engine.Connection).IsOpen()
}

// ConnectionClose closes the connection and releases its handle.
func (b *Bridge) ConnectionClose(h Handle) error {
	v, err := b.table.take(h, kindConnection)
	if err != nil {
		return err
	}
	return v.(engine.Connection).Close()
}

func (b *Bridge) connection(h Handle, errOut *Handle) (engine.Connection, bool) {
	v, err := b.table.get(h, kindConnection)
	if err != nil {
		b.setError(errOut, err)
		return nil, false
	}
	return v.(engine.Connection), true
}

// ---------------------------------------------------------------------------
// Database catalog (single-call delegations)
// ---------------------------------------------------------------------------

// DatabasesAll lists all databases as a JSON array string, e.g.
// ["db1","db2"]. Release the returned string with ReleaseString.
func (b *Bridge) DatabasesAll(conn Handle, errOut *Handle) Handle {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return 0
	}
	names, err := c.Databases().All(context.Background())
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		b.setError(errOut, fmt.Errorf("encode database list: %w", err))
		return 0
	}
	return b.table.put(kindString, string(data))
}

// DatabasesCreate creates a database.
func (b *Bridge) DatabasesCreate(conn Handle, name string, errOut *Handle) {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return
	}
	if err := c.Databases().Create(context.Background(), name); err != nil {
		b.setError(errOut, err)
	}
}

// DatabasesContains reports whether a database exists.
func (b *Bridge) DatabasesContains(conn Handle, name string, errOut *Handle) bool {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return false
	}
	exists, err := c.Databases().Contains(context.Background(), name)
	if err != nil {
		b.setError(errOut, err)
		return false
	}
	return exists
}

// DatabaseSchema returns a database's schema text. Release the returned
// string with ReleaseString.
func (b *Bridge) DatabaseSchema(conn Handle, name string, errOut *Handle) Handle {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return 0
	}
	schema, err := c.Databases().Schema(context.Background(), name)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	return b.table.put(kindString, schema)
}

// DatabaseDelete deletes a database.
func (b *Bridge) DatabaseDelete(conn Handle, name string, errOut *Handle) {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return
	}
	if err := c.Databases().Delete(context.Background(), name); err != nil {
		b.setError(errOut, err)
	}
}

// ---------------------------------------------------------------------------
// Transaction lifecycle
// ---------------------------------------------------------------------------

// TransactionOpen opens a transaction. typ is 0=Read, 1=Write, 2=Schema;
// unknown values fall back to Read. Returns the nil handle on failure.
// Release with TransactionCommit or TransactionClose.
func (b *Bridge) TransactionOpen(conn Handle, database string, typ int32, opts Handle, errOut *Handle) Handle {
	c, ok := b.connection(conn, errOut)
	if !ok {
		return 0
	}
	options, err := b.txnOptionsValue(opts)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	txnType := engine.TransactionType(typ)
	switch txnType {
	case engine.Read, engine.Write, engine.Schema:
	default:
		txnType = engine.Read
	}
	txn, err := c.Transaction(context.Background(), database, txnType, options)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	return b.table.put(kindTransaction, txn)
}

// TransactionIsOpen reports whether the transaction behind the handle is
// active. A nil or stale handle reports false.
func (b *Bridge) TransactionIsOpen(h Handle) bool {
	v, err := b.table.get(h, kindTransaction)
	if err != nil {
		return false
	}
	return v.(engine.Transaction).IsOpen()
}

// TransactionCommit commits the transaction and releases its handle,
// whether or not the commit succeeds.
func (b *Bridge) TransactionCommit(h Handle, errOut *Handle) {
	v, err := b.table.take(h, kindTransaction)
	if err != nil {
		b.setError(errOut, err)
		return
	}
	if err := v.(engine.Transaction).Commit(context.Background()); err != nil {
		b.setError(errOut, err)
	}
}

// TransactionRollback rolls the transaction back. The handle stays valid.
func (b *Bridge) TransactionRollback(h Handle, errOut *Handle) {
	v, err := b.table.get(h, kindTransaction)
	if err != nil {
		b.setError(errOut, err)
		return
	}
	if err := v.(engine.Transaction).Rollback(context.Background()); err != nil {
		b.setError(errOut, err)
	}
}

// TransactionClose closes the transaction without committing and releases
// its handle.
func (b *Bridge) TransactionClose(h Handle) error {
	v, err := b.table.take(h, kindTransaction)
	if err != nil {
		return err
	}
	return v.(engine.Transaction).Close()
}

// ---------------------------------------------------------------------------
// Query execution (synchronous)
// ---------------------------------------------------------------------------

// TransactionQuery executes a query and returns the answer as an owned
// payload buffer, blocking the caller for the full round trip. lenOut
// receives the buffer length. The nil handle with length 0 means the answer
// carried no payload; on error the nil handle is returned and lenOut is 0.
// Release the buffer with ReleaseBytes, passing the same length.
func (b *Bridge) TransactionQuery(txn Handle, query string, opts Handle, lenOut *uint64, errOut *Handle) Handle {
	if lenOut != nil {
		*lenOut = 0
	}
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
	buf, err := exec.Execute(context.Background(), v.(engine.Transaction), query, options)
	if err != nil {
		b.setError(errOut, err)
		return 0
	}
	return b.putBuffer(buf, lenOut)
}
