package vtree

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// The boundary payload is MessagePack: an array of nodes with tagged scalar
// types and insertion-ordered map keys. This encoding is versioned by
// contract and must never change silently; foreign callers decode it with
// any standard MessagePack library.

// Marshal serializes a node to MessagePack bytes.
func Marshal(n Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeNode(enc, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalSequence serializes an ordered sequence of nodes as a single
// MessagePack array.
func MarshalSequence(nodes []Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(len(nodes)); err != nil {
		return nil, err
	}
	for i, n := range nodes {
		if err := encodeNode(enc, n); err != nil {
			return nil, fmt.Errorf("sequence[%d]: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Unmarshal deserializes MessagePack bytes into a node. Maps decode into
// Objects with wire key order preserved.
func Unmarshal(data []byte) (Node, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	return decodeNode(dec)
}

// UnmarshalSequence deserializes a MessagePack array into a node slice.
func UnmarshalSequence(data []byte) ([]Node, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, fmt.Errorf("decode sequence header: %w", err)
	}
	nodes := make([]Node, n)
	for i := range nodes {
		node, err := decodeNode(dec)
		if err != nil {
			return nil, fmt.Errorf("sequence[%d]: %w", i, err)
		}
		nodes[i] = node
	}
	return nodes, nil
}

func encodeNode(enc *msgpack.Encoder, n Node) error {
	switch v := n.(type) {
	case Null:
		return enc.EncodeNil()
	case Bool:
		return enc.EncodeBool(bool(v))
	case Int:
		return enc.EncodeInt(int64(v))
	case Float:
		return enc.EncodeFloat64(float64(v))
	case String:
		return enc.EncodeString(string(v))
	case Array:
		if err := enc.EncodeArrayLen(len(v)); err != nil {
			return err
		}
		for i, elem := range v {
			if err := encodeNode(enc, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		return nil
	case *Object:
		if err := enc.EncodeMapLen(v.Len()); err != nil {
			return err
		}
		for _, k := range v.Keys() {
			if err := enc.EncodeString(k); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
			val, _ := v.Get(k)
			if err := encodeNode(enc, val); err != nil {
				return fmt.Errorf("value for key %q: %w", k, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown node type: %T", n)
	}
}

func decodeNode(dec *msgpack.Decoder) (Node, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case code == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return nil, err
		}
		return Null{}, nil

	case code == msgpcode.True || code == msgpcode.False:
		b, err := dec.DecodeBool()
		if err != nil {
			return nil, err
		}
		return Bool(b), nil

	case msgpcode.IsFixedNum(code),
		code == msgpcode.Int8, code == msgpcode.Int16,
		code == msgpcode.Int32, code == msgpcode.Int64,
		code == msgpcode.Uint8, code == msgpcode.Uint16,
		code == msgpcode.Uint32, code == msgpcode.Uint64:
		n, err := dec.DecodeInt64()
		if err != nil {
			return nil, err
		}
		return Int(n), nil

	case code == msgpcode.Float, code == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return nil, err
		}
		return Float(f), nil

	case msgpcode.IsString(code):
		s, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		return String(s), nil

	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		arr := make(Array, n)
		for i := range arr {
			elem, err := decodeNode(dec)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = elem
		}
		return arr, nil

	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		obj := NewObject()
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return nil, fmt.Errorf("map key %d: %w", i, err)
			}
			val, err := decodeNode(dec)
			if err != nil {
				return nil, fmt.Errorf("map value for %q: %w", key, err)
			}
			obj.Set(key, val)
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("unsupported msgpack code 0x%02x", code)
	}
}
