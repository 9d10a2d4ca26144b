// Package jsontree models JSON documents as a closed set of value types so
// that recursive walks over them can switch exhaustively on Kind.
//
// A nil Value means "absent": no value at all. It is distinct from Null,
// which is the JSON literal null.
package jsontree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Value is a node in a parsed JSON tree. The set of implementations is closed
// to this package.
type Value interface {
	Kind() Kind
	sealed()
}

type (
	// Null is the JSON null literal.
	Null struct{}
	// Bool is a JSON boolean.
	Bool bool
	// Number is a JSON number held as its canonical decimal literal (see
	// ParseNumber), so integers of any size keep every digit.
	Number string
	// String is a JSON string.
	String string
	// Array is an ordered JSON sequence.
	Array []Value
	// Object is a JSON mapping with string keys. Key order is not significant.
	Object map[string]Value
)

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Number) Kind() Kind { return KindNumber }
func (String) Kind() Kind { return KindString }
func (Array) Kind() Kind  { return KindArray }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Number) sealed() {}
func (String) sealed() {}
func (Array) sealed()  {}
func (Object) sealed() {}

// Parse decodes a single JSON document. Numbers keep their exact value.
// Trailing non-whitespace data is an error.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid character after top-level value at offset %d", dec.InputOffset())
	}
	return FromAny(raw)
}

// FromAny converts a decoded Go value into a tree. It accepts the shapes
// produced by encoding/json and gopkg.in/yaml.v3, plus Values themselves.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return floatNumber(t, 64)
	case float32:
		return floatNumber(float64(t), 32)
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case json.Number:
		return ParseNumber(t.String())
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(t))
		for k, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(t))
		for k, e := range t {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string object key %v (%T)", k, k)
			}
			ev, err := FromAny(e)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", ks, err)
			}
			obj[ks] = ev
		}
		return obj, nil
	}
	return fromReflect(reflect.ValueOf(v))
}

// fromReflect handles the remaining numeric kinds and typed slices/maps.
func fromReflect(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Number(strconv.FormatUint(rv.Uint(), 10)), nil
	case reflect.Float32:
		return floatNumber(rv.Float(), 32)
	case reflect.Float64:
		return floatNumber(rv.Float(), 64)
	case reflect.Slice, reflect.Array:
		arr := make(Array, rv.Len())
		for i := range arr {
			ev, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		obj := make(Object, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			ev, err := FromAny(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", iter.Key().String(), err)
			}
			obj[iter.Key().String()] = ev
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported type %T", rv.Interface())
}

// ToAny converts a tree back into plain Go values suitable for
// encoding/json. Numbers become json.Number so their digits survive
// re-encoding. An absent value becomes nil.
func ToAny(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		return json.Number(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToAny(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = ToAny(e)
		}
		return out
	}
	return nil
}

// Count returns the number of value units in v: 1 for each leaf, the sum over
// elements for an Array and over values for an Object. Object keys are not
// counted. Anything unrecognized, including an absent value, counts as 1.
func Count(v Value) int {
	switch t := v.(type) {
	case Null, Bool, Number, String:
		return 1
	case Array:
		n := 0
		for _, e := range t {
			n += Count(e)
		}
		return n
	case Object:
		n := 0
		for _, e := range t {
			n += Count(e)
		}
		return n
	default:
		return 1
	}
}

// Equal reports whether a and b are structurally identical. Arrays compare
// positionally. Two absent values are equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch at := a.(type) {
	case Null:
		return true
	case Bool:
		return at == b.(Bool)
	case Number:
		return at == b.(Number)
	case String:
		return at == b.(String)
	case Array:
		bt := b.(Array)
		if len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bt[i]) {
				return false
			}
		}
		return true
	case Object:
		bt := b.(Object)
		if len(at) != len(bt) {
			return false
		}
		for k, av := range at {
			bv, ok := bt[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Fingerprint returns a canonical encoding of v. Object keys are sorted and,
// when unordered is true, array elements are sorted by their own
// fingerprints, so two arrays holding the same multiset share a fingerprint.
func Fingerprint(v Value, unordered bool) string {
	var b strings.Builder
	writeFingerprint(&b, v, unordered)
	return b.String()
}

func writeFingerprint(b *strings.Builder, v Value, unordered bool) {
	switch t := v.(type) {
	case nil:
		b.WriteString("~")
	case Null:
		b.WriteString("null")
	case Bool:
		b.WriteString(strconv.FormatBool(bool(t)))
	case Number:
		b.WriteString(string(t))
	case String:
		b.WriteString(strconv.Quote(string(t)))
	case Array:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = Fingerprint(e, unordered)
		}
		if unordered {
			sort.Strings(parts)
		}
		b.WriteByte('[')
		b.WriteString(strings.Join(parts, ","))
		b.WriteByte(']')
	case Object:
		b.WriteByte('{')
		for i, k := range Keys(t) {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeFingerprint(b, t[k], unordered)
		}
		b.WriteByte('}')
	}
}

// Keys returns the keys of o in sorted order.
func Keys(o Object) []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalIndent renders v as indented JSON with sorted object keys.
func MarshalIndent(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToAny(v)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
