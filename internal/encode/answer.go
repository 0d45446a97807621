package encode

import (
	"fmt"

	"github.com/kestrelgraph/kestrel-go/internal/engine"
	"github.com/kestrelgraph/kestrel-go/internal/vtree"
)

// Answer drains a classified answer and serializes it to the boundary
// payload: a MessagePack array with one insertion-ordered map per row or
// document.
//
// An empty answer returns a zero-length buffer, the sentinel for "no
// payload" - never an encoded empty sequence. Any per-item drain or
// conversion error aborts the whole answer; no partial result is returned.
func Answer(ans engine.Answer) ([]byte, error) {
	nodes, err := drain(ans)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	buf, err := vtree.MarshalSequence(nodes)
	if err != nil {
		return nil, fmt.Errorf("encode answer: %w", err)
	}
	return buf, nil
}

func drain(ans engine.Answer) ([]vtree.Node, error) {
	switch ans.Kind() {
	case engine.AnswerEmpty:
		return nil, nil
	case engine.AnswerRows:
		return drainRows(ans.Rows())
	case engine.AnswerDocuments:
		return drainDocuments(ans.Documents())
	default:
		return nil, fmt.Errorf("unknown answer kind %d", ans.Kind())
	}
}

// drainRows converts each row into an object keyed by column name in
// declared column order, with explicit null for unbound columns.
func drainRows(it engine.RowIterator) ([]vtree.Node, error) {
	var nodes []vtree.Node
	for it.Next() {
		row := it.Row()
		cols := row.ColumnNames()
		obj := vtree.NewObject()
		for i, name := range cols {
			c, err := row.Get(i)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", len(nodes), name, err)
			}
			if c == nil {
				obj.Set(name, vtree.Null{})
			} else {
				obj.Set(name, ConceptNode(c))
			}
		}
		nodes = append(nodes, obj)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("drain rows: %w", err)
	}
	return nodes, nil
}

// drainDocuments normalizes each document into value-tree form.
func drainDocuments(it engine.DocumentIterator) ([]vtree.Node, error) {
	var nodes []vtree.Node
	for it.Next() {
		node, err := vtree.FromAny(it.Document())
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(nodes), err)
		}
		nodes = append(nodes, node)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("drain documents: %w", err)
	}
	return nodes, nil
}
