package exec

import (
	"context"

	"github.com/kestrelgraph/kestrel-go/internal/encode"
	"github.com/kestrelgraph/kestrel-go/internal/engine"
)

// Execute runs a query synchronously: round trip, drain, serialize. It
// blocks the calling thread for the whole operation and never touches the
// task runtime.
//
// A nil buffer with a nil error means the answer carried no payload.
func Execute(ctx context.Context, txn engine.Transaction, query string, opts engine.QueryOptions) ([]byte, error) {
	ans, err := txn.Query(ctx, query, opts)
	if err != nil {
		return nil, engineError("", err)
	}
	buf, err := encode.Answer(ans)
	if err != nil {
		return nil, encodeError("", err)
	}
	return buf, nil
}

// Answer serializes an already-classified answer. Split out so the pending
// operation's worker can re-check its abort flag between the round trip and
// serialization.
func Answer(ans engine.Answer) ([]byte, error) {
	return encode.Answer(ans)
}
