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

package ctapcrypto

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// KeyAgreement holds the platform's half of a pinUvAuthProtocol ECDH key
// exchange: an ephemeral P-256 key pair generated fresh for each PIN/UV
// operation, per CTAP2's requirement that the platform never reuse a
// key-agreement key pair across operations.
type KeyAgreement struct {
	priv *ecdh.PrivateKey
}

// NewKeyAgreement generates a fresh ephemeral P-256 key pair.
func NewKeyAgreement() (*KeyAgreement, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key agreement key pair: %w", err)
	}
	return &KeyAgreement{priv: priv}, nil
}

// PublicKeyXY returns the platform's public key as (x, y), each 32 bytes
// big-endian, for embedding in a COSE_Key sent as the CTAP keyAgreement
// parameter.
func (k *KeyAgreement) PublicKeyXY() (x, y [32]byte, err error) {
	raw := k.priv.PublicKey().Bytes() // uncompressed form: 0x04 || X || Y
	if len(raw) != 65 || raw[0] != 0x04 {
		return x, y, fmt.Errorf("unexpected public key encoding, got %d bytes", len(raw))
	}
	copy(x[:], raw[1:33])
	copy(y[:], raw[33:65])
	return x, y, nil
}

// SharedSecret performs ECDH with the authenticator's public key (x, y)
// and derives the pinUvAuthProtocol-1 shared secret: SHA-256 of the ECDH
// Z value's big-endian X-coordinate (CTAP2 section 6.5.6).
func (k *KeyAgreement) SharedSecret(authenticatorX, authenticatorY []byte) (Secret, error) {
	peerRaw := make([]byte, 0, 65)
	peerRaw = append(peerRaw, 0x04)
	peerRaw = append(peerRaw, authenticatorX...)
	peerRaw = append(peerRaw, authenticatorY...)

	peerKey, err := ecdh.P256().NewPublicKey(peerRaw)
	if err != nil {
		return Secret{}, fmt.Errorf("parsing authenticator key-agreement public key: %w", err)
	}

	z, err := k.priv.ECDH(peerKey)
	if err != nil {
		return Secret{}, fmt.Errorf("performing ECDH: %w", err)
	}
	defer zero(z)

	sum := sha256.Sum256(z)
	return NewSecret(sum[:]), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
