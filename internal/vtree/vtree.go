// Package vtree defines the language-agnostic value tree that query answers
// are lowered into before crossing the boundary: scalars, null, ordered
// objects, and sequences.
//
// The tree is the sole payload contract between the core and foreign callers.
// It serializes to MessagePack with tagged scalar types and preserved key
// order; see codec.go.
package vtree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Node is a sealed interface representing one value-tree node.
// Only Null, Bool, Int, Float, String, Array, and Object implement it.
type Node interface {
	node() // Sealed - only these types implement it
}

// Null represents an explicit null (e.g. an unbound column).
// Using an explicit type keeps every node non-nil under the sealed interface.
type Null struct{}

func (Null) node() {}

// Bool represents a boolean node.
type Bool bool

func (Bool) node() {}

// Int represents a signed 64-bit integer node.
type Int int64

func (Int) node() {}

// Float represents a 64-bit floating point node.
type Float float64

func (Float) node() {}

// String represents a string node.
type String string

func (String) node() {}

// Array represents an ordered sequence of nodes.
type Array []Node

func (Array) node() {}

// Object represents a mapping with significant key order.
//
// Keys iterate in insertion order, which for answer rows is the declared
// column order. Keys are unique; setting an existing key overwrites its value
// in place without moving it.
type Object struct {
	keys []string
	vals map[string]Node
}

func (*Object) node() {}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{vals: make(map[string]Node)}
}

// Pair is a key-value pair for literal Object construction.
type Pair struct {
	Key   string
	Value Node
}

// ObjectOf creates an Object from pairs, preserving their order.
func ObjectOf(pairs ...Pair) *Object {
	obj := &Object{
		keys: make([]string, 0, len(pairs)),
		vals: make(map[string]Node, len(pairs)),
	}
	for _, p := range pairs {
		obj.Set(p.Key, p.Value)
	}
	return obj
}

// Set stores a value under key. A new key is appended to the key order;
// an existing key keeps its position.
func (o *Object) Set(key string, value Node) {
	if _, ok := o.vals[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Node, bool) {
	v, ok := o.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not mutate it.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// MarshalJSON implements json.Marshaler for Object, emitting keys in
// insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := MarshalJSON(o.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON renders a node as JSON. Object keys keep insertion order.
// Used for human-facing output; the boundary payload format is MessagePack.
func MarshalJSON(n Node) ([]byte, error) {
	switch v := n.(type) {
	case Null:
		return []byte("null"), nil
	case Bool:
		return json.Marshal(bool(v))
	case Int:
		return json.Marshal(int64(v))
	case Float:
		return json.Marshal(float64(v))
	case String:
		return json.Marshal(string(v))
	case Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			elemBytes, err := MarshalJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(elemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case *Object:
		return v.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown node type: %T", n)
	}
}

// FromAny converts a JSON-like Go value (as produced by document answers)
// into a Node. Supported inputs: nil, bool, string, int/int64/uint64,
// float64, json.Number, []any, and map[string]any. Integers are stored
// signed; a uint64 beyond the int64 range is an error, never wrapped.
//
// Map key order is not recoverable from map[string]any; keys are inserted in
// Go's map iteration order. Document-producing engines that need a stable
// order should supply *Object values directly, which pass through unchanged.
func FromAny(v any) (Node, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Node:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows the signed 64-bit node range", val)
		}
		return Int(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", val, err)
		}
		return Float(f), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			node, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = node
		}
		return arr, nil
	case map[string]any:
		obj := NewObject()
		for k, elem := range val {
			node, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj.Set(k, node)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}
