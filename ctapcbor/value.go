// Copyright 2021 Gravitational, Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ctapcbor implements the deterministic CBOR encoding CTAP command
// payloads require and a permissive decoder for authenticator responses.
// It wraps github.com/fxamacker/cbor/v2 configured for canonical output, and
// exposes a tagged-variant Value type for response maps whose shape isn't
// known statically (spec.md section 4.2, Design Note "Dynamic map-of-
// anything CBOR -> tagged variants").
package ctapcbor

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindInvalid Kind = iota
	KindInteger
	KindBytes
	KindText
	KindBool
	KindArray
	KindMap
)

// MapEntry preserves insertion order for debugging; decode matches by key.
type MapEntry struct {
	Key   Value
	Value Value
}

// Value is the sum type Design Note asks for in place of map[interface{}]interface{}:
// every authenticator response field decodes into exactly one of these
// alternatives, with total conversion helpers below instead of type
// assertions scattered through command code.
type Value struct {
	kind    Kind
	integer int64
	bytes   []byte
	text    string
	boolean bool
	array   []Value
	mapv    []MapEntry
}

func Int(v int64) Value     { return Value{kind: KindInteger, integer: v} }
func Bytes(v []byte) Value  { return Value{kind: KindBytes, bytes: v} }
func Text(v string) Value   { return Value{kind: KindText, text: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, boolean: v} }
func Array(v []Value) Value { return Value{kind: KindArray, array: v} }
func Map(v []MapEntry) Value {
	return Value{kind: KindMap, mapv: v}
}

func (v Value) Kind() Kind { return v.kind }

// Int returns the integer alternative, or an error if v isn't one.
func (v Value) Int() (int64, error) {
	if v.kind != KindInteger {
		return 0, fmt.Errorf("value is %v, not an integer", v.kind)
	}
	return v.integer, nil
}

// Bytes returns the byte-string alternative, or an error if v isn't one.
func (v Value) Bytes() ([]byte, error) {
	if v.kind != KindBytes {
		return nil, fmt.Errorf("value is %v, not bytes", v.kind)
	}
	return v.bytes, nil
}

// Text returns the text-string alternative, or an error if v isn't one.
func (v Value) Text() (string, error) {
	if v.kind != KindText {
		return "", fmt.Errorf("value is %v, not text", v.kind)
	}
	return v.text, nil
}

// Bool returns the boolean alternative, or an error if v isn't one.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, fmt.Errorf("value is %v, not a bool", v.kind)
	}
	return v.boolean, nil
}

// Array returns the array alternative, or an error if v isn't one.
func (v Value) Array() ([]Value, error) {
	if v.kind != KindArray {
		return nil, fmt.Errorf("value is %v, not an array", v.kind)
	}
	return v.array, nil
}

// MapEntries returns the map alternative's (key, value) pairs in insertion
// order, or an error if v isn't a map.
func (v Value) MapEntries() ([]MapEntry, error) {
	if v.kind != KindMap {
		return nil, fmt.Errorf("value is %v, not a map", v.kind)
	}
	return v.mapv, nil
}

// Lookup returns the value keyed by an integer (negative keys included) in a map Value. ok
// is false if v isn't a map or the key is absent.
func (v Value) Lookup(key int64) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.mapv {
		if e.Key.kind == KindInteger && e.Key.integer == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// LookupText is Lookup for text-keyed maps (extension identifiers are
// strings per spec.md section 4.6).
func (v Value) LookupText(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.mapv {
		if e.Key.kind == KindText && e.Key.text == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBytes:
		return "bytes"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "invalid"
	}
}

// fromInterface converts a cbor.RawMessage-decoded interface{} tree (as
// produced by the permissive decoder) into the Value sum type. Map entry
// order reflects whatever order fxamacker/cbor populated
// map[interface{}]interface{} in, which is not guaranteed to match wire
// order — callers needing a specific field read it by key with
// Lookup/LookupText, never by position.
func fromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Bool(t), nil
	case uint64:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case []byte:
		return Bytes(t), nil
	case string:
		return Text(t), nil
	case []interface{}:
		vals := make([]Value, len(t))
		for i, e := range t {
			v, err := fromInterface(e)
			if err != nil {
				return Value{}, err
			}
			vals[i] = v
		}
		return Array(vals), nil
	case map[interface{}]interface{}:
		entries := make([]MapEntry, 0, len(t))
		for k, v := range t {
			kv, err := fromInterface(k)
			if err != nil {
				return Value{}, err
			}
			vv, err := fromInterface(v)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, MapEntry{Key: kv, Value: vv})
		}
		return Map(entries), nil
	case cbor.Tag:
		return fromInterface(t.Content)
	default:
		return Value{}, fmt.Errorf("unsupported cbor primitive type %T", x)
	}
}
