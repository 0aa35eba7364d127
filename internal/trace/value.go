package trace

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the JSON values a snapshot may hold.
// There is no float and no null.
type Value interface {
	traceValue()
}

// String is a JSON string.
type String string

func (String) traceValue() {}

// Int is a JSON integer.
type Int int64

func (Int) traceValue() {}

// Bool is a JSON boolean.
type Bool bool

func (Bool) traceValue() {}

// Array is a JSON array.
type Array []Value

func (Array) traceValue() {}

// Object is a JSON object. Use SortedKeys for deterministic iteration.
type Object map[string]Value

func (Object) traceValue() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units. Go's native
// string order is by UTF-8 bytes, which differs above the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
