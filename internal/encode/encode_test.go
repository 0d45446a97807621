package encode

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelgraph/kestrel-go/internal/concept"
	"github.com/kestrelgraph/kestrel-go/internal/enginetest"
	"github.com/kestrelgraph/kestrel-go/internal/vtree"
)

func TestConceptNode_Values(t *testing.T) {
	tests := []struct {
		name string
		in   concept.Concept
		want vtree.Node
	}{
		{"bool", concept.Bool(true), vtree.Bool(true)},
		{"int", concept.Int(42), vtree.Int(42)},
		{"double", concept.Double(2.5), vtree.Float(2.5)},
		{"string", concept.String("x"), vtree.String("x")},
		{"decimal rendering", concept.Rendered(concept.KindDecimal, "12.340"), vtree.String("12.340")},
		{"date rendering", concept.Rendered(concept.KindDate, "2021-06-01"), vtree.String("2021-06-01")},
		{"datetime rendering", concept.Rendered(concept.KindDatetime, "2021-06-01T10:30:00"), vtree.String("2021-06-01T10:30:00")},
		{"duration rendering", concept.Rendered(concept.KindDuration, "P1Y2M3DT4H"), vtree.String("P1Y2M3DT4H")},
		{"struct description", concept.Rendered(concept.KindStruct, "{lat: 1.0, lon: 2.0}"), vtree.String("{lat: 1.0, lon: 2.0}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConceptNode(tt.in))
		})
	}
}

func TestConceptNode_Instance(t *testing.T) {
	node := ConceptNode(concept.Instance{Kind: "entity", Type: "person", IID: "0x1a"})
	obj, ok := node.(*vtree.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"_kind", "_type", "_iid"}, obj.Keys())

	got, err := vtree.MarshalJSON(obj)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_kind":"entity","_type":"person","_iid":"0x1a"}`, string(got))
}

func TestConceptNode_Type(t *testing.T) {
	node := ConceptNode(concept.Type{Kind: "entity_type", Label: "person"})
	obj, ok := node.(*vtree.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"_kind", "_label"}, obj.Keys())
}

func TestConceptNode_UnknownKindFallsBackToText(t *testing.T) {
	node := ConceptNode(concept.Value{Kind: concept.ValueKind(99), Text: "raw"})
	s, ok := node.(vtree.String)
	require.True(t, ok)
	assert.Contains(t, string(s), "raw")
}

func TestAnswer_EmptyHasNoPayload(t *testing.T) {
	buf, err := Answer(enginetest.Empty())
	require.NoError(t, err)
	assert.Nil(t, buf)
}

func TestAnswer_RowsPreserveColumnOrder(t *testing.T) {
	ans := enginetest.Rows(
		[]string{"zeta", "alpha"},
		[]concept.Concept{concept.Int(1), concept.String("a")},
		[]concept.Concept{concept.Int(2), concept.String("b")},
	)
	buf, err := Answer(ans)
	require.NoError(t, err)

	nodes, err := vtree.UnmarshalSequence(buf)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	for i, n := range nodes {
		obj, ok := n.(*vtree.Object)
		require.True(t, ok, "row %d", i)
		assert.Equal(t, []string{"zeta", "alpha"}, obj.Keys())
	}
	first := nodes[0].(*vtree.Object)
	v, _ := first.Get("zeta")
	assert.Equal(t, vtree.Int(1), v)
}

func TestAnswer_UnboundColumnIsNull(t *testing.T) {
	ans := enginetest.Rows(
		[]string{"x", "y"},
		[]concept.Concept{nil, concept.Int(5)},
	)
	buf, err := Answer(ans)
	require.NoError(t, err)

	nodes, err := vtree.UnmarshalSequence(buf)
	require.NoError(t, err)
	obj := nodes[0].(*vtree.Object)
	v, ok := obj.Get("x")
	require.True(t, ok)
	assert.Equal(t, vtree.Null{}, v)
}

func TestAnswer_RowStreamFailureAbortsWholeAnswer(t *testing.T) {
	ans := enginetest.RowsFailingAfter(1,
		[]string{"n"},
		[]concept.Concept{concept.Int(1)},
		[]concept.Concept{concept.Int(2)},
	)
	buf, err := Answer(ans)
	require.Error(t, err)
	assert.Nil(t, buf, "no partial payload on failure")
}

func TestAnswer_Documents(t *testing.T) {
	ans := enginetest.Documents(
		map[string]any{"name": "ada"},
		map[string]any{"name": "grace"},
	)
	buf, err := Answer(ans)
	require.NoError(t, err)

	nodes, err := vtree.UnmarshalSequence(buf)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	obj := nodes[0].(*vtree.Object)
	v, ok := obj.Get("name")
	require.True(t, ok)
	assert.Equal(t, vtree.String("ada"), v)
}

func TestAnswer_DocumentStreamFailureAbortsWholeAnswer(t *testing.T) {
	ans := enginetest.DocumentsFailingAfter(0, map[string]any{"k": "v"})
	buf, err := Answer(ans)
	require.Error(t, err)
	assert.Nil(t, buf)
}

func TestAnswer_GoldenPayload(t *testing.T) {
	ans := enginetest.Rows(
		[]string{"n", "who", "t", "flag"},
		[]concept.Concept{
			concept.Int(42),
			concept.Instance{Kind: "entity", Type: "person", IID: "0x1a"},
			concept.Type{Kind: "entity_type", Label: "person"},
			concept.Bool(true),
		},
		[]concept.Concept{
			nil,
			concept.String("x"),
			concept.Rendered(concept.KindDatetime, "2021-01-01T00:00:00"),
			concept.Double(2.5),
		},
	)
	buf, err := Answer(ans)
	require.NoError(t, err)

	nodes, err := vtree.UnmarshalSequence(buf)
	require.NoError(t, err)
	rendered, err := vtree.MarshalJSON(vtree.Array(nodes))
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "answer_rows", rendered)
}
