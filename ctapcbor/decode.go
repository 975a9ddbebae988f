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

package ctapcbor

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ResponseMap is a permissively-decoded top-level CTAP response: its keys
// are always small unsigned integers, but its values can be any CBOR type
// and unrecognized keys must be tolerated (spec.md section 4.2). Callers
// pull typed fields out with the Bytes/Text/Int/etc. helpers below; a type
// mismatch on a known key is a decode error, an unknown key is silently
// ignored. Neither this package nor its callers log unknown keys.
type ResponseMap struct {
	raw map[uint64]cbor.RawMessage
}

// DecodeResponseMap decodes a CTAP response body (the bytes following the
// status byte) into a ResponseMap.
func DecodeResponseMap(body []byte) (*ResponseMap, error) {
	if len(body) == 0 {
		return &ResponseMap{raw: map[uint64]cbor.RawMessage{}}, nil
	}
	var m map[uint64]cbor.RawMessage
	if err := cbor.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decoding response map: %w", err)
	}
	return &ResponseMap{raw: m}, nil
}

// Has reports whether key is present.
func (r *ResponseMap) Has(key uint64) bool {
	_, ok := r.raw[key]
	return ok
}

// Bytes decodes the value at key as a byte string.
func (r *ResponseMap) Bytes(key uint64) ([]byte, error) {
	raw, ok := r.raw[key]
	if !ok {
		return nil, fmt.Errorf("key %d not present", key)
	}
	var b []byte
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("key %d: expected bytes: %w", key, err)
	}
	return b, nil
}

// Text decodes the value at key as a UTF-8 string.
func (r *ResponseMap) Text(key uint64) (string, error) {
	raw, ok := r.raw[key]
	if !ok {
		return "", fmt.Errorf("key %d not present", key)
	}
	var s string
	if err := cbor.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("key %d: expected text: %w", key, err)
	}
	return s, nil
}

// Int decodes the value at key as a signed integer.
func (r *ResponseMap) Int(key uint64) (int64, error) {
	raw, ok := r.raw[key]
	if !ok {
		return 0, fmt.Errorf("key %d not present", key)
	}
	var n int64
	if err := cbor.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("key %d: expected integer: %w", key, err)
	}
	return n, nil
}

// Uint decodes the value at key as an unsigned integer.
func (r *ResponseMap) Uint(key uint64) (uint64, error) {
	raw, ok := r.raw[key]
	if !ok {
		return 0, fmt.Errorf("key %d not present", key)
	}
	var n uint64
	if err := cbor.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("key %d: expected unsigned integer: %w", key, err)
	}
	return n, nil
}

// Bool decodes the value at key as a boolean.
func (r *ResponseMap) Bool(key uint64) (bool, error) {
	raw, ok := r.raw[key]
	if !ok {
		return false, fmt.Errorf("key %d not present", key)
	}
	var b bool
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return false, fmt.Errorf("key %d: expected bool: %w", key, err)
	}
	return b, nil
}

// Raw returns the raw CBOR-encoded bytes stored at key, for callers that
// need to decode into a specific Go struct (e.g. Into) or re-derive a byte
// boundary (authData's embedded credential public key).
func (r *ResponseMap) Raw(key uint64) (cbor.RawMessage, error) {
	raw, ok := r.raw[key]
	if !ok {
		return nil, fmt.Errorf("key %d not present", key)
	}
	return raw, nil
}

// Into decodes the value at key into dst, which must be a pointer.
func (r *ResponseMap) Into(key uint64, dst interface{}) error {
	raw, ok := r.raw[key]
	if !ok {
		return fmt.Errorf("key %d not present", key)
	}
	if err := cbor.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("key %d: %w", key, err)
	}
	return nil
}

// Generic decodes the value at key into the permissive Value sum type, for
// extension/attStmt maps whose exact shape varies by extension or
// algorithm.
func (r *ResponseMap) Generic(key uint64) (Value, error) {
	raw, ok := r.raw[key]
	if !ok {
		return Value{}, fmt.Errorf("key %d not present", key)
	}
	var x interface{}
	if err := cbor.Unmarshal(raw, &x); err != nil {
		return Value{}, fmt.Errorf("key %d: %w", key, err)
	}
	return fromInterface(x)
}

// DecodeInto decodes a standalone CBOR-encoded value (such as a
// ResponseMap field's Raw bytes) into dst, which must be a pointer.
func DecodeInto(raw []byte, dst interface{}) error {
	if err := cbor.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding cbor value: %w", err)
	}
	return nil
}

// DecodeItem decodes exactly one CBOR data item from the front of buf into
// dst and returns the number of bytes it consumed. This is
// how authData's embedded credentialPublicKey (whose encoded length isn't
// given explicitly) is bounded: decode it, then trim consumed bytes
// off the front of the remaining authData (spec.md section 4.6).
func DecodeItem(buf []byte, dst interface{}) (consumed int, err error) {
	dec := cbor.NewDecoder(&bytesReader{b: buf})
	if err := dec.Decode(dst); err != nil {
		return 0, fmt.Errorf("decoding cbor item: %w", err)
	}
	return int(dec.NumBytesRead()), nil
}

// bytesReader is a minimal io.Reader wrapper so cbor.NewDecoder can report
// NumBytesRead() without us needing bytes.Reader's seek semantics.
type bytesReader struct {
	b   []byte
	pos int
}

func (r *bytesReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
