package driver

import (
	"time"

	"github.com/kestrelgraph/kestrel-go/internal/bridge"
)

// TransactionOptions configure transaction behavior, such as timeouts and
// schema locking. Release with Close after the transactions using it are
// open.
type TransactionOptions struct {
	b *bridge.Bridge
	h bridge.Handle
}

// NewTransactionOptions creates transaction options with default values.
func NewTransactionOptions() *TransactionOptions {
	b := boundary()
	return &TransactionOptions{b: b, h: b.TransactionOptionsNew()}
}

// SetTimeout sets the overall transaction timeout. A transaction exceeding
// it is rolled back.
func (o *TransactionOptions) SetTimeout(d time.Duration) *TransactionOptions {
	o.b.TransactionOptionsSetTimeout(o.h, d)
	return o
}

// SetSchemaLockTimeout sets the timeout for acquiring a schema lock.
// Relevant for Schema transactions.
func (o *TransactionOptions) SetSchemaLockTimeout(d time.Duration) *TransactionOptions {
	o.b.TransactionOptionsSetSchemaLockTimeout(o.h, d)
	return o
}

// Close releases the options object. Safe to call more than once.
func (o *TransactionOptions) Close() {
	if o.h != 0 {
		o.b.TransactionOptionsDrop(o.h)
		o.h = 0
	}
}

// QueryOptions configure query execution behavior. Release with Close.
type QueryOptions struct {
	b *bridge.Bridge
	h bridge.Handle
}

// NewQueryOptions creates query options with default values.
func NewQueryOptions() *QueryOptions {
	b := boundary()
	return &QueryOptions{b: b, h: b.QueryOptionsNew()}
}

// SetIncludeInstanceTypes controls whether the engine includes type
// information for each returned concept.
func (o *QueryOptions) SetIncludeInstanceTypes(include bool) *QueryOptions {
	o.b.QueryOptionsSetIncludeInstanceTypes(o.h, include)
	return o
}

// SetPrefetchSize sets how many additional result rows the engine
// prefetches. Larger values can help with large result sets.
func (o *QueryOptions) SetPrefetchSize(size uint64) *QueryOptions {
	o.b.QueryOptionsSetPrefetchSize(o.h, size)
	return o
}

// Close releases the options object. Safe to call more than once.
func (o *QueryOptions) Close() {
	if o.h != 0 {
		o.b.QueryOptionsDrop(o.h)
		o.h = 0
	}
}
