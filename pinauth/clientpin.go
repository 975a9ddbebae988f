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

package pinauth

import (
	"crypto/sha256"
	"fmt"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// opClientPIN is authenticatorClientPIN's CTAP opcode (spec.md section 6).
const opClientPIN byte = 0x06

// ClientPIN subcommand IDs, pinUvAuthProtocol 1 (spec.md section 4.5).
const (
	subGetRetries                               byte = 1
	subGetKeyAgreement                          byte = 2
	subSetPIN                                   byte = 3
	subChangePIN                                byte = 4
	subGetPinToken                              byte = 5
	subGetPinUvAuthTokenUsingUvWithPermissions  byte = 6
	subGetUVRetries                             byte = 7
	subGetPinUvAuthTokenUsingPinWithPermissions byte = 9
)

// Response field keys in authenticatorClientPIN's reply map.
const (
	fieldKeyAgreement byte = 1
	fieldPinUvAuthToken byte = 2
	fieldPinRetries    byte = 3
	fieldUVRetries     byte = 5
)

// Permission bits for the with-permissions GetPinUvAuthToken variants
// (spec.md section 4.5).
const (
	PermissionMakeCredential       byte = 0x01
	PermissionGetAssertion         byte = 0x02
	PermissionCredentialManagement byte = 0x04
	PermissionBioEnrollment        byte = 0x08
	PermissionLargeBlobWrite       byte = 0x10
	PermissionAuthenticatorConfig  byte = 0x20
)

// GetRetries reports the number of PIN guesses remaining before the
// authenticator blocks the PIN.
func GetRetries(t Transactor) (retries int, err error) {
	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetRetries)).
		Encode(opClientPIN)
	if err != nil {
		return 0, err
	}
	body, err := t.TransactCBOR(opClientPIN, payload)
	if err != nil {
		return 0, err
	}
	m, err := ctapcbor.DecodeResponseMap(body)
	if err != nil {
		return 0, err
	}
	n, err := m.Int(uint64(fieldPinRetries))
	if err != nil {
		return 0, fmt.Errorf("getRetries response: %w", err)
	}
	return int(n), nil
}

// GetUVRetries reports the number of built-in user-verification attempts
// remaining.
func GetUVRetries(t Transactor) (retries int, err error) {
	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetUVRetries)).
		Encode(opClientPIN)
	if err != nil {
		return 0, err
	}
	body, err := t.TransactCBOR(opClientPIN, payload)
	if err != nil {
		return 0, err
	}
	m, err := ctapcbor.DecodeResponseMap(body)
	if err != nil {
		return 0, err
	}
	n, err := m.Int(uint64(fieldUVRetries))
	if err != nil {
		return 0, fmt.Errorf("getUVRetries response: %w", err)
	}
	return int(n), nil
}

// EstablishSession issues getKeyAgreement, generates a fresh platform key
// pair, and derives the pinUvAuthProtocol-1 shared secret (spec.md section
// 4.4).
func EstablishSession(t Transactor) (*Session, error) {
	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetKeyAgreement)).
		Encode(opClientPIN)
	if err != nil {
		return nil, err
	}
	body, err := t.TransactCBOR(opClientPIN, payload)
	if err != nil {
		return nil, err
	}
	m, err := ctapcbor.DecodeResponseMap(body)
	if err != nil {
		return nil, err
	}
	coseKeyRaw, err := m.Raw(uint64(fieldKeyAgreement))
	if err != nil {
		return nil, fmt.Errorf("getKeyAgreement response: %w", err)
	}
	pub, err := ctapcrypto.DecodeCOSEKey(coseKeyRaw)
	if err != nil {
		return nil, fmt.Errorf("decoding authenticator key agreement key: %w", err)
	}
	if pub.EC2 == nil {
		return nil, fmt.Errorf("authenticator key agreement key is not an EC2 key")
	}

	ka, err := ctapcrypto.NewKeyAgreement()
	if err != nil {
		return nil, err
	}
	secret, err := ka.SharedSecret(pub.EC2.X.FillBytes(make([]byte, 32)), pub.EC2.Y.FillBytes(make([]byte, 32)))
	if err != nil {
		return nil, err
	}

	return &Session{ka: ka, secret: secret}, nil
}

// encryptPIN computes pinHashEnc: AES-256-CBC(secret, SHA-256(pin)[0:16]).
func encryptPIN(secret []byte, pin string) ([]byte, error) {
	sum := sha256.Sum256([]byte(pin))
	return ctapcrypto.EncryptAESCBC(secret, sum[:16])
}

// platformKeyAgreementCOSE encodes the session's platform public key as a
// COSE_Key for the keyAgreement request field.
func platformKeyAgreementCOSE(s *Session) (interface{}, error) {
	x, y, err := s.ka.PublicKeyXY()
	if err != nil {
		return nil, err
	}
	return ctapcrypto.ECDHKeyAgreementMap(x, y), nil
}

// SetPIN sets a new PIN on a device with no PIN currently configured.
func SetPIN(t Transactor, s *Session, newPIN string) error {
	padded, err := ctapcrypto.PadPIN([]byte(newPIN))
	if err != nil {
		return err
	}
	newPinEnc, err := ctapcrypto.EncryptAESCBC(s.secret.Bytes(), padded)
	if err != nil {
		return err
	}
	pinAuth := ctapcrypto.Authenticate(s.secret.Bytes(), newPinEnc)

	keyAgreement, err := platformKeyAgreementCOSE(s)
	if err != nil {
		return err
	}

	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subSetPIN)).
		Set(3, keyAgreement).
		Set(4, pinAuth).
		Set(5, newPinEnc).
		Encode(opClientPIN)
	if err != nil {
		return err
	}
	_, err = t.TransactCBOR(opClientPIN, payload)
	return err
}

// ChangePIN replaces an existing PIN.
func ChangePIN(t Transactor, s *Session, currentPIN, newPIN string) error {
	padded, err := ctapcrypto.PadPIN([]byte(newPIN))
	if err != nil {
		return err
	}
	newPinEnc, err := ctapcrypto.EncryptAESCBC(s.secret.Bytes(), padded)
	if err != nil {
		return err
	}
	pinHashEnc, err := encryptPIN(s.secret.Bytes(), currentPIN)
	if err != nil {
		return err
	}
	message := append(append([]byte{}, newPinEnc...), pinHashEnc...)
	pinAuth := ctapcrypto.Authenticate(s.secret.Bytes(), message)

	keyAgreement, err := platformKeyAgreementCOSE(s)
	if err != nil {
		return err
	}

	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subChangePIN)).
		Set(3, keyAgreement).
		Set(4, pinAuth).
		Set(5, newPinEnc).
		Set(6, pinHashEnc).
		Encode(opClientPIN)
	if err != nil {
		return err
	}
	_, err = t.TransactCBOR(opClientPIN, payload)
	return err
}

// GetPinToken exchanges the current PIN for a pinUvAuthToken (the
// no-permissions-bits variant, pinUvAuthProtocol 1's original GetPinToken
// subcommand).
func GetPinToken(t Transactor, s *Session, currentPIN string) (ctapcrypto.Secret, error) {
	pinHashEnc, err := encryptPIN(s.secret.Bytes(), currentPIN)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}
	keyAgreement, err := platformKeyAgreementCOSE(s)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	payload, err := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetPinToken)).
		Set(3, keyAgreement).
		Set(6, pinHashEnc).
		Encode(opClientPIN)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	return decryptTokenResponse(t, payload, s.secret.Bytes())
}

// GetPinUvAuthTokenUsingPinWithPermissions exchanges the current PIN for a
// pinUvAuthToken scoped to the requested permission bits, optionally bound
// to an RPID.
func GetPinUvAuthTokenUsingPinWithPermissions(t Transactor, s *Session, currentPIN string, permissions byte, rpID string) (ctapcrypto.Secret, error) {
	pinHashEnc, err := encryptPIN(s.secret.Bytes(), currentPIN)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}
	keyAgreement, err := platformKeyAgreementCOSE(s)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	b := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetPinUvAuthTokenUsingPinWithPermissions)).
		Set(3, keyAgreement).
		Set(6, pinHashEnc).
		Set(9, int64(permissions)).
		SetIf(rpID != "", 10, rpID)
	payload, err := b.Encode(opClientPIN)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	return decryptTokenResponse(t, payload, s.secret.Bytes())
}

// GetPinUvAuthTokenUsingUvWithPermissions obtains a pinUvAuthToken via the
// authenticator's built-in user verification (fingerprint, etc.) instead of
// a PIN.
func GetPinUvAuthTokenUsingUvWithPermissions(t Transactor, s *Session, permissions byte, rpID string) (ctapcrypto.Secret, error) {
	keyAgreement, err := platformKeyAgreementCOSE(s)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	b := ctapcbor.NewMapBuilder().
		Set(1, int64(ProtocolOne)).
		Set(2, int64(subGetPinUvAuthTokenUsingUvWithPermissions)).
		Set(3, keyAgreement).
		Set(9, int64(permissions)).
		SetIf(rpID != "", 10, rpID)
	payload, err := b.Encode(opClientPIN)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}

	return decryptTokenResponse(t, payload, s.secret.Bytes())
}

func decryptTokenResponse(t Transactor, payload []byte, secret []byte) (ctapcrypto.Secret, error) {
	body, err := t.TransactCBOR(opClientPIN, payload)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}
	m, err := ctapcbor.DecodeResponseMap(body)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}
	enc, err := m.Bytes(uint64(fieldPinUvAuthToken))
	if err != nil {
		return ctapcrypto.Secret{}, fmt.Errorf("pinUvAuthToken response: %w", err)
	}
	token, err := ctapcrypto.DecryptAESCBC(secret, enc)
	if err != nil {
		return ctapcrypto.Secret{}, err
	}
	defer zero(token)
	return ctapcrypto.NewSecret(token), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
