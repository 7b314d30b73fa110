package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("a")
	var _ Value = Number(1.5)
	var _ Value = Bool(true)
	var _ Value = List{String("a"), Number(1)}
	var _ Value = NewDict()
}

func TestDictKeepsInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("zebra", Number(1))
	d.Set("apple", Number(2))
	d.Set("mango", Number(3))
	d.Set("zebra", Number(4))

	keys := make([]string, 0, d.Len())
	for _, k := range d.Keys() {
		keys = append(keys, KeyString(k))
	}
	assert.Equal(t, []string{"zebra", "apple", "mango"}, keys)

	v, ok := d.Get("zebra")
	require.True(t, ok)
	assert.Equal(t, Number(4), v)
}

func TestDictKeysAreTyped(t *testing.T) {
	d := NewDict()
	d.SetValue(Number(1), String("number"))
	d.Set("1", String("string"))

	assert.Equal(t, 2, d.Len())
	assert.False(t, d.StringKeyed())

	v, ok := d.GetValue(Number(1))
	require.True(t, ok)
	assert.Equal(t, String("number"), v)

	v, ok = d.Get("1")
	require.True(t, ok)
	assert.Equal(t, String("string"), v)
}

func TestDictTupleKeys(t *testing.T) {
	d := NewDict(Entry{Key: List{String("a"), String("b")}, Val: Number(3)})

	v, ok := d.GetValue(List{String("a"), String("b")})
	require.True(t, ok)
	assert.Equal(t, Number(3), v)
	assert.Equal(t, "(a,b)", KeyString(d.Keys()[0]))
}

func TestDictSortedKeysRFC8785Order(t *testing.T) {
	d := DictOf("a", 1, "A", 2, "aa", 3, "aA", 4, "Aa", 5, "AA", 6)
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, d.SortedKeys())
}

func TestDictNilSafe(t *testing.T) {
	var d *Dict
	assert.Equal(t, 0, d.Len())
	assert.Empty(t, d.Entries())
	_, ok := d.Get("x")
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1"},
		{-3, "-3"},
		{0, "0"},
		{2.5, "2.5"},
		{1e6, "1000000"},
		{0.1, "0.1"},
		{1e22, "1e+22"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestKeyString(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"string", String("a"), "a"},
		{"integral", Number(3), "3"},
		{"real", Number(1.25), "1.25"},
		{"tuple", List{String("s"), Number(2)}, "(s,2)"},
		{"bool", Bool(true), "True"},
		{"null", Null{}, "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyString(tt.in))
		})
	}
}

func TestDecodeJSONPreservesOrder(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"b": 1, "a": {"y": 2, "x": [1, "two", null, true]}}`))
	require.NoError(t, err)

	d, ok := v.(*Dict)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, []string{KeyString(d.Keys()[0]), KeyString(d.Keys()[1])})

	inner, _ := d.Get("a")
	innerDict := inner.(*Dict)
	assert.Equal(t, "y", KeyString(innerDict.Keys()[0]))

	list, _ := innerDict.Get("x")
	assert.Equal(t, List{Number(1), String("two"), Null{}, Bool(true)}, list)
}

func TestDecodeJSONRejectsTrailingData(t *testing.T) {
	_, err := DecodeJSON([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestDictMarshalJSONInsertionOrder(t *testing.T) {
	d := NewDict(
		Entry{Key: String("z"), Val: Number(1)},
		Entry{Key: Number(2), Val: Number(0.5)},
		Entry{Key: String("a"), Val: List{String("x")}},
	)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"2":0.5,"a":["x"]}`, string(data))
}

func TestEqualAndClone(t *testing.T) {
	orig := DictOf("a", DictOf("b", 1), "c", []any{1, "x"})
	cp := CloneValue(orig)
	assert.True(t, Equal(orig, cp))

	cp.(*Dict).Set("c", Number(0))
	inner, _ := cp.(*Dict).Get("a")
	inner.(*Dict).Set("b", Number(9))

	got, _ := orig.Get("a")
	b, _ := got.(*Dict).Get("b")
	assert.Equal(t, Number(1), b, "clone must not share nested dicts")
	assert.False(t, Equal(orig, cp))
}

func TestAsNumber(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want float64
		ok   bool
	}{
		{"number", Number(2), 2, true},
		{"bool", Bool(true), 1, true},
		{"numeric string", String(" 3.5 "), 3.5, true},
		{"word", String("x"), 0, false},
		{"list", List{}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AsNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAnyAndToAny(t *testing.T) {
	v, err := FromAny(map[string]any{"b": []any{1, "x"}, "a": nil})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v.(*Dict).SortedKeys())

	back := ToAny(v)
	assert.Equal(t, map[string]any{"a": nil, "b": []any{1.0, "x"}}, back)

	_, err = FromAny(struct{}{})
	require.Error(t, err)
}
