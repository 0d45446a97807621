package vtree

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObject_InsertionOrder(t *testing.T) {
	obj := NewObject()
	obj.Set("zebra", Int(1))
	obj.Set("apple", Int(2))
	obj.Set("mango", Int(3))

	assert.Equal(t, []string{"zebra", "apple", "mango"}, obj.Keys())
	assert.Equal(t, 3, obj.Len())
}

func TestObject_SetExistingKeyKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Int(1))
	obj.Set("b", Int(2))
	obj.Set("a", Int(10))

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, Int(10), v)
}

func TestObjectOf_PreservesPairOrder(t *testing.T) {
	obj := ObjectOf(
		Pair{Key: "c", Value: String("x")},
		Pair{Key: "a", Value: Null{}},
		Pair{Key: "b", Value: Bool(true)},
	)
	assert.Equal(t, []string{"c", "a", "b"}, obj.Keys())
}

func TestMarshalJSON_Scalars(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"null", Null{}, `null`},
		{"bool", Bool(true), `true`},
		{"int", Int(-42), `-42`},
		{"float", Float(1.5), `1.5`},
		{"string", String("hello"), `"hello"`},
		{"array", Array{Int(1), String("two")}, `[1,"two"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalJSON(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalJSON_ObjectKeyOrder(t *testing.T) {
	obj := ObjectOf(
		Pair{Key: "z", Value: Int(1)},
		Pair{Key: "a", Value: ObjectOf(
			Pair{Key: "y", Value: Null{}},
			Pair{Key: "x", Value: Bool(false)},
		)},
	)
	got, err := MarshalJSON(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":null,"x":false}}`, string(got))
}

func TestFromAny_Scalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Node
	}{
		{"nil", nil, Null{}},
		{"bool", true, Bool(true)},
		{"string", "s", String("s")},
		{"int", 7, Int(7)},
		{"int64", int64(-9), Int(-9)},
		{"uint64", uint64(12), Int(12)},
		{"float64", 2.25, Float(2.25)},
		{"json number int", json.Number("42"), Int(42)},
		{"json number float", json.Number("0.5"), Float(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Nested(t *testing.T) {
	in := map[string]any{
		"items": []any{int64(1), "two", nil},
		"flag":  true,
	}
	got, err := FromAny(in)
	require.NoError(t, err)

	obj, ok := got.(*Object)
	require.True(t, ok)
	items, ok := obj.Get("items")
	require.True(t, ok)
	assert.Equal(t, Array{Int(1), String("two"), Null{}}, items)
	flag, ok := obj.Get("flag")
	require.True(t, ok)
	assert.Equal(t, Bool(true), flag)
}

func TestFromAny_NodePassesThrough(t *testing.T) {
	obj := ObjectOf(Pair{Key: "k", Value: Int(1)})
	got, err := FromAny(obj)
	require.NoError(t, err)
	assert.Same(t, obj, got)
}

func TestFromAny_UnsupportedType(t *testing.T) {
	_, err := FromAny(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")
}

func TestFromAny_Uint64BeyondInt64Range(t *testing.T) {
	got, err := FromAny(uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, Int(math.MaxInt64), got)

	_, err = FromAny(uint64(math.MaxInt64) + 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overflows")
}
