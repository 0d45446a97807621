// Package concept defines the engine-native data model that query answers are
// built from: typed values, instance occurrences, and schema types.
//
// Concepts are ephemeral. They are produced while draining an answer stream,
// converted into the language-agnostic value tree, and never retained.
package concept

import "fmt"

// Concept is a sealed interface over the three concept categories.
// Only Value, Instance, and Type implement it.
type Concept interface {
	concept() // Sealed - only these types implement it
}

// ValueKind identifies the declared category of a Value.
//
// The category is declared by the engine when the value is produced; it is
// never probed from the raw representation.
type ValueKind int

const (
	// KindBoolean is a true/false value.
	KindBoolean ValueKind = iota + 1
	// KindInteger is a signed 64-bit integer value.
	KindInteger
	// KindDouble is a 64-bit floating point value.
	KindDouble
	// KindString is a UTF-8 string value.
	KindString
	// KindDecimal is an arbitrary-precision decimal, carried as its
	// engine-defined canonical rendering.
	KindDecimal
	// KindDate is a calendar date, carried as its canonical rendering.
	KindDate
	// KindDatetime is a date-time without timezone, carried as its
	// canonical rendering.
	KindDatetime
	// KindDatetimeTZ is a date-time with timezone, carried as its
	// canonical rendering.
	KindDatetimeTZ
	// KindDuration is a duration, carried as its canonical rendering.
	KindDuration
	// KindStruct is a structured value, carried as a best-effort
	// description. Not guaranteed machine-parseable.
	KindStruct
)

// String returns the lower-case kind name.
func (k ValueKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindDatetime:
		return "datetime"
	case KindDatetimeTZ:
		return "datetime-tz"
	case KindDuration:
		return "duration"
	case KindStruct:
		return "struct"
	default:
		return fmt.Sprintf("value-kind(%d)", int(k))
	}
}

// Value is a literal or attribute value with a declared kind.
//
// Exactly one payload field is meaningful, selected by Kind:
//
//	KindBoolean            -> Bool
//	KindInteger            -> Int
//	KindDouble             -> Double
//	KindString             -> Text
//	all remaining kinds    -> Text (canonical rendering or description)
//
// The canonical renderings for decimal, date, datetime, datetime-tz, and
// duration are an opaque, versioned contract owned by the engine. This
// package carries them verbatim and never re-derives a format.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Int    int64
	Double float64
	Text   string
}

func (Value) concept() {}

// Instance is an entity or relation occurrence.
type Instance struct {
	// Kind is the lower-case category name, e.g. "entity" or "relation".
	Kind string
	// Type is the label of the instance's type.
	Type string
	// IID is the engine-assigned instance identifier in textual form.
	IID string
}

func (Instance) concept() {}

// Type is a schema type.
type Type struct {
	// Kind is the lower-case category name, e.g. "entity_type".
	Kind string
	// Label is the type's label.
	Label string
}

func (Type) concept() {}

// Bool creates a boolean Value.
func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Int creates an integer Value.
func Int(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// Double creates a double Value.
func Double(f float64) Value { return Value{Kind: KindDouble, Double: f} }

// String creates a string Value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Rendered creates a Value of the given kind from its canonical rendering.
// Used for decimal, date, datetime, datetime-tz, duration, and struct values.
func Rendered(kind ValueKind, text string) Value {
	return Value{Kind: kind, Text: text}
}
