package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface over the data an IR carries in set elements
// and parameter values. Only Null, String, Number, Bool, List and *Dict
// implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Null represents a JSON null.
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string value.
type String string

func (String) irValue() {}

// Number is a numeric value. Integers and reals share one representation
// because parameter data is consumed by a linear solver.
type Number float64

func (Number) irValue() {}

// MarshalJSON renders integral numbers without a fractional part.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("number %v is not representable in JSON", f)
	}
	return []byte(FormatNumber(f)), nil
}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// List is an ordered sequence. A two-element List used as a Dict key is a
// tuple key.
type List []Value

func (List) irValue() {}

// Entry is one key/value pair of a Dict.
type Entry struct {
	Key Value
	Val Value
}

// Dict is an insertion-ordered mapping. Keys are Values so that numeric and
// tuple keys emitted by a model survive until canonicalization rewrites them
// to strings.
type Dict struct {
	entries []Entry
	index   map[string]int
}

func (*Dict) irValue() {}

// NewDict creates a Dict from entries, later duplicates replacing earlier
// ones in place.
func NewDict(entries ...Entry) *Dict {
	d := &Dict{}
	for _, e := range entries {
		d.SetValue(e.Key, e.Val)
	}
	return d
}

// DictOf builds a string-keyed Dict from alternating key/value pairs.
// It panics on malformed input; use it for literals in code and tests.
func DictOf(kv ...any) *Dict {
	if len(kv)%2 != 0 {
		panic("ir.DictOf: odd number of arguments")
	}
	d := &Dict{}
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("ir.DictOf: key %d is %T, want string", i/2, kv[i]))
		}
		v, err := FromAny(kv[i+1])
		if err != nil {
			panic(fmt.Sprintf("ir.DictOf: key %q: %v", k, err))
		}
		d.Set(k, v)
	}
	return d
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Entries returns the entries in insertion order. The slice is shared;
// callers must not modify it.
func (d *Dict) Entries() []Entry {
	if d == nil {
		return nil
	}
	return d.entries
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []Value {
	keys := make([]Value, 0, d.Len())
	for _, e := range d.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

// Get looks up a string key.
func (d *Dict) Get(key string) (Value, bool) {
	return d.GetValue(String(key))
}

// GetValue looks up an arbitrary key.
func (d *Dict) GetValue(key Value) (Value, bool) {
	if d == nil {
		return nil, false
	}
	d.ensureIndex()
	i, ok := d.index[keyID(key)]
	if !ok {
		return nil, false
	}
	return d.entries[i].Val, true
}

// Set assigns a string key, keeping the original position when the key
// already exists.
func (d *Dict) Set(key string, v Value) {
	d.SetValue(String(key), v)
}

// SetValue assigns an arbitrary key.
func (d *Dict) SetValue(key, v Value) {
	d.ensureIndex()
	id := keyID(key)
	if i, ok := d.index[id]; ok {
		d.entries[i].Val = v
		return
	}
	d.index[id] = len(d.entries)
	d.entries = append(d.entries, Entry{Key: key, Val: v})
}

// Has reports whether a string key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.Get(key)
	return ok
}

// StringKeyed reports whether every key is a String.
func (d *Dict) StringKeyed() bool {
	for _, e := range d.Entries() {
		if _, ok := e.Key.(String); !ok {
			return false
		}
	}
	return true
}

// Equal reports deep equality, including entry order.
func (d *Dict) Equal(o *Dict) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, e := range d.Entries() {
		oe := o.entries[i]
		if !Equal(e.Key, oe.Key) || !Equal(e.Val, oe.Val) {
			return false
		}
	}
	return true
}

func (d *Dict) ensureIndex() {
	if d.index != nil {
		return
	}
	d.index = make(map[string]int, len(d.entries))
	for i, e := range d.entries {
		d.index[keyID(e.Key)] = i
	}
}

// keyID gives every key a type-tagged identity so that the number 1 and the
// string "1" are distinct keys.
func keyID(k Value) string {
	switch v := k.(type) {
	case String:
		return "s:" + string(v)
	case Number:
		return "n:" + FormatNumber(float64(v))
	case Bool:
		return "b:" + strconv.FormatBool(bool(v))
	case Null, nil:
		return "z:"
	case List:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = keyID(e)
		}
		return "l:(" + strings.Join(parts, "\x1f") + ")"
	default:
		return fmt.Sprintf("o:%p", k)
	}
}

// MarshalJSON renders the Dict as a JSON object in insertion order with
// stringified keys.
func (d *Dict) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(KeyString(e.Key))
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalValue(e.Val)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", KeyString(e.Key), err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue renders any Value as JSON. A nil Value renders as null.
func MarshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// FormatNumber renders a number in its shortest form, dropping the
// fractional part of integral values: 1 not 1.0.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		if f == 0 {
			return "0"
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// KeyString is the stringified form of a key or set element: strings are
// returned verbatim, numbers via FormatNumber, tuples as "(a,b)".
func KeyString(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Number:
		return FormatNumber(float64(val))
	case Bool:
		if val {
			return "True"
		}
		return "False"
	case Null, nil:
		return "None"
	case List:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = KeyString(e)
		}
		return "(" + strings.Join(parts, ",") + ")"
	case *Dict:
		b, _ := val.MarshalJSON()
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// Equal reports deep equality of two Values.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		return ok && slices.EqualFunc(av, bv, Equal)
	case *Dict:
		bv, ok := b.(*Dict)
		return ok && av.Equal(bv)
	}
	return false
}

// CloneValue deep-copies a Value.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, e := range val {
			out[i] = CloneValue(e)
		}
		return out
	case *Dict:
		if val == nil {
			return (*Dict)(nil)
		}
		out := &Dict{entries: make([]Entry, len(val.entries))}
		for i, e := range val.entries {
			out.entries[i] = Entry{Key: CloneValue(e.Key), Val: CloneValue(e.Val)}
		}
		return out
	default:
		return v
	}
}

// AsNumber returns the numeric content of v. Bools count as 0/1 and
// numeric strings are parsed.
func AsNumber(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case Bool:
		if val {
			return 1, true
		}
		return 0, true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FromAny converts decoded Go data (encoding/json, yaml.v3, literals) into a
// Value. Maps with string keys are ordered by key because Go maps carry no
// order; use DecodeJSON to keep document order.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Number(f), nil
	case []any:
		out := make(List, len(val))
		for i, e := range val {
			ev, err := FromAny(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case []string:
		out := make(List, len(val))
		for i, e := range val {
			out[i] = String(e)
		}
		return out, nil
	case []float64:
		out := make(List, len(val))
		for i, e := range val {
			out[i] = Number(e)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := &Dict{}
		for _, k := range keys {
			ev, err := FromAny(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			d.Set(k, ev)
		}
		return d, nil
	case map[string]float64:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := &Dict{}
		for _, k := range keys {
			d.Set(k, Number(val[k]))
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToAny converts a Value into plain Go data suitable for encoding/json.
// Dict keys are stringified.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Number:
		return float64(val)
	case Bool:
		return bool(val)
	case List:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = ToAny(e)
		}
		return out
	case *Dict:
		out := make(map[string]any, val.Len())
		for _, e := range val.Entries() {
			out[KeyString(e.Key)] = ToAny(e.Val)
		}
		return out
	}
	return nil
}

// DecodeJSON parses a JSON document into a Value, keeping object key order.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value at offset %d", dec.InputOffset())
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			d := &Dict{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T, want string", kt)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, fmt.Errorf("[%q]: %w", key, err)
				}
				d.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return d, nil
		case '[':
			list := List{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", len(list), err)
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return String(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Number(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null{}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// SortedKeys returns the stringified keys sorted per RFC 8785 (UTF-16 code
// unit order).
func (d *Dict) SortedKeys() []string {
	keys := make([]string, 0, d.Len())
	for _, e := range d.Entries() {
		keys = append(keys, KeyString(e.Key))
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares two strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(ua) < len(ub):
		return -1
	case len(ua) > len(ub):
		return 1
	}
	return 0
}
