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
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// canonicalMode is a shared cbor.EncMode configured for CTAP2's canonical
// CBOR encoding requirement (spec.md section 4.2): definite-length maps and
// arrays, keys sorted per RFC 7049 canonical ordering (shortest encoding
// first, then bytewise), and no indefinite-length items.
var canonicalMode = sync.OnceValue(func() cbor.EncMode {
	opts := cbor.CanonicalEncOptions()
	mode, err := opts.EncMode()
	if err != nil {
		// CanonicalEncOptions() is a fixed, library-provided option set;
		// EncMode() only fails on invalid options, which can't happen here.
		panic(err)
	}
	return mode
})

// Marshal encodes v as canonical CBOR, the deterministic form every CTAP
// command payload requires.
func Marshal(v interface{}) ([]byte, error) {
	return canonicalMode().Marshal(v)
}

// MapBuilder assembles a command parameter map whose keys are small
// unsigned integers, in ascending key order, matching the deterministic
// layout spec.md section 4.2 mandates. Zero-value fields that were never
// Set are omitted entirely rather than encoded as CBOR null.
type MapBuilder struct {
	keys   []uint64
	values []interface{}
}

// NewMapBuilder returns an empty builder.
func NewMapBuilder() *MapBuilder {
	return &MapBuilder{}
}

// Set adds or replaces the value at key. Keys are re-sorted at Encode time,
// so Set calls may occur in any order.
func (b *MapBuilder) Set(key uint64, value interface{}) *MapBuilder {
	for i, k := range b.keys {
		if k == key {
			b.values[i] = value
			return b
		}
	}
	b.keys = append(b.keys, key)
	b.values = append(b.values, value)
	return b
}

// SetIf adds key only when cond is true; a common pattern for optional CTAP
// fields such as pinUvAuthParam.
func (b *MapBuilder) SetIf(cond bool, key uint64, value interface{}) *MapBuilder {
	if cond {
		b.Set(key, value)
	}
	return b
}

// Encode serializes the accumulated entries as canonical CBOR, preceded by
// cmd as the single opcode byte that identifies the CTAPHID_CBOR command.
func (b *MapBuilder) Encode(cmd byte) ([]byte, error) {
	m := make(map[uint64]interface{}, len(b.keys))
	for i, k := range b.keys {
		m[k] = b.values[i]
	}
	body, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, cmd)
	out = append(out, body...)
	return out, nil
}
