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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// COSE map keys (RFC 8152 section 7 / 13.1).
const (
	coseKeyKty    int64 = 1
	coseKeyAlg    int64 = 3
	coseKeyCrv    int64 = -1
	coseKeyX      int64 = -2
	coseKeyY      int64 = -3
)

const (
	coseKtyOKP int64 = 1
	coseKtyEC2 int64 = 2
	coseCrvP256 int64 = 1
	coseCrvEd25519 int64 = 6
	coseAlgES256 int64 = -7
	coseAlgEdDSA int64 = -8
	coseAlgECDHES int64 = -25
)

// PublicKey is a decoded COSE_Key public key: exactly one of EC2 or OKP is
// populated, chosen by the key's kty; Algorithm holds the decoded alg label.
type PublicKey struct {
	Algorithm int64
	EC2       *ecdsa.PublicKey // present when kty is EC2 (P-256)
	OKP       ed25519.PublicKey
}

// DecodeCOSEKey parses a CBOR-encoded COSE_Key (as returned in
// authenticatorMakeCredential's credentialPublicKey, or CTAP2's
// authenticatorKeyAgreement response) into a PublicKey.
func DecodeCOSEKey(raw []byte) (*PublicKey, error) {
	var m map[int64]cbor.RawMessage
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding COSE_Key map: %w", err)
	}

	kty, err := decodeInt(m, coseKeyKty, "kty")
	if err != nil {
		return nil, err
	}
	alg, err := decodeInt(m, coseKeyAlg, "alg")
	if err != nil {
		return nil, err
	}

	switch kty {
	case coseKtyEC2:
		crv, err := decodeInt(m, coseKeyCrv, "crv")
		if err != nil {
			return nil, err
		}
		if crv != coseCrvP256 {
			return nil, fmt.Errorf("unsupported EC2 curve %d, only P-256 is supported", crv)
		}
		x, err := decodeBytes(m, coseKeyX, "x")
		if err != nil {
			return nil, err
		}
		y, err := decodeBytes(m, coseKeyY, "y")
		if err != nil {
			return nil, err
		}
		bx, by := elliptic.Unmarshal(elliptic.P256(), append([]byte{0x04}, append(append([]byte{}, x...), y...)...))
		if bx == nil {
			return nil, fmt.Errorf("invalid EC2 point encoding")
		}
		return &PublicKey{
			Algorithm: alg,
			EC2: &ecdsa.PublicKey{
				Curve: elliptic.P256(),
				X:     bx,
				Y:     by,
			},
		}, nil

	case coseKtyOKP:
		crv, err := decodeInt(m, coseKeyCrv, "crv")
		if err != nil {
			return nil, err
		}
		if crv != coseCrvEd25519 {
			return nil, fmt.Errorf("unsupported OKP curve %d, only Ed25519 is supported", crv)
		}
		x, err := decodeBytes(m, coseKeyX, "x")
		if err != nil {
			return nil, err
		}
		return &PublicKey{Algorithm: alg, OKP: ed25519.PublicKey(x)}, nil

	default:
		return nil, fmt.Errorf("unsupported COSE key type %d", kty)
	}
}

// ECDHKeyAgreementMap builds the plain Go map form of an ephemeral
// ECDH-ES P-256 public key's COSE_Key encoding. Callers that need to embed
// it as a nested value inside a larger ctapcbor.MapBuilder-assembled
// request (rather than as standalone bytes) use this instead of
// EncodeECDHKeyAgreement.
func ECDHKeyAgreementMap(x, y [32]byte) map[int64]interface{} {
	return map[int64]interface{}{
		coseKeyKty: coseKtyEC2,
		coseKeyAlg: coseAlgECDHES,
		coseKeyCrv: coseCrvP256,
		coseKeyX:   x[:],
		coseKeyY:   y[:],
	}
}

// EncodeECDHKeyAgreement encodes an ephemeral ECDH-ES P-256 public key as
// the COSE_Key the platform sends as the keyAgreement request parameter.
func EncodeECDHKeyAgreement(x, y [32]byte) ([]byte, error) {
	return cbor.Marshal(ECDHKeyAgreementMap(x, y))
}

// EncodeES256PublicKeyCOSE encodes an ECDSA P-256 signing key as a
// COSE_Key (kty=EC2, alg=ES256), the form credentialPublicKey takes in
// authData.
func EncodeES256PublicKeyCOSE(pub *ecdsa.PublicKey) ([]byte, error) {
	if pub.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unsupported curve, only P-256 is supported")
	}
	x := pub.X.Bytes()
	y := pub.Y.Bytes()
	x = append(make([]byte, 32-len(x)), x...)
	y = append(make([]byte, 32-len(y)), y...)

	return cbor.Marshal(map[int64]interface{}{
		coseKeyKty: coseKtyEC2,
		coseKeyAlg: coseAlgES256,
		coseKeyCrv: coseCrvP256,
		coseKeyX:   x,
		coseKeyY:   y,
	})
}

func decodeInt(m map[int64]cbor.RawMessage, key int64, label string) (int64, error) {
	raw, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("COSE_Key missing %q (label %d)", label, key)
	}
	var n int64
	if err := cbor.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("COSE_Key %q: %w", label, err)
	}
	return n, nil
}

func decodeBytes(m map[int64]cbor.RawMessage, key int64, label string) ([]byte, error) {
	raw, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("COSE_Key missing %q (label %d)", label, key)
	}
	var b []byte
	if err := cbor.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("COSE_Key %q: %w", label, err)
	}
	return b, nil
}
