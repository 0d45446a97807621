// Package encode lowers classified query answers into the value tree and
// serializes them to the boundary payload format.
package encode

import (
	"fmt"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
	"github.com/kestrelgraph/kestrel-go/internal/vtree"
)

// ConceptNode converts one concept into a value-tree node.
//
// ConceptNode is total: dispatch is by the concept's declared category, and
// every unmatched shape falls back to a descriptive text node rather than an
// error. An unrecognized concept is a display concern, never a failure.
func ConceptNode(c concept.Concept) vtree.Node {
	switch v := c.(type) {
	case concept.Value:
		return valueNode(v)
	case concept.Instance:
		return vtree.ObjectOf(
			vtree.Pair{Key: "_kind", Value: vtree.String(v.Kind)},
			vtree.Pair{Key: "_type", Value: vtree.String(v.Type)},
			vtree.Pair{Key: "_iid", Value: vtree.String(v.IID)},
		)
	case concept.Type:
		return vtree.ObjectOf(
			vtree.Pair{Key: "_kind", Value: vtree.String(v.Kind)},
			vtree.Pair{Key: "_label", Value: vtree.String(v.Label)},
		)
	default:
		// Fallback arm for categories this version does not know.
		return vtree.String(fmt.Sprintf("%v", c))
	}
}

func valueNode(v concept.Value) vtree.Node {
	switch v.Kind {
	case concept.KindBoolean:
		return vtree.Bool(v.Bool)
	case concept.KindInteger:
		return vtree.Int(v.Int)
	case concept.KindDouble:
		return vtree.Float(v.Double)
	case concept.KindString:
		return vtree.String(v.Text)
	case concept.KindDecimal, concept.KindDate, concept.KindDatetime,
		concept.KindDatetimeTZ, concept.KindDuration:
		// Canonical engine-defined rendering, carried verbatim.
		return vtree.String(v.Text)
	case concept.KindStruct:
		// Best-effort description. Not guaranteed machine-parseable.
		return vtree.String(v.Text)
	default:
		return vtree.String(fmt.Sprintf("%s(%s)", v.Kind, v.Text))
	}
}
