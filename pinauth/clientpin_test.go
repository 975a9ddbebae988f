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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// fakeTransactor is an in-memory authenticatorClientPIN simulator: enough
// of the protocol to exercise session establishment, SetPIN/ChangePIN
// authentication, and token decryption without real hardware.
type fakeTransactor struct {
	authenticatorKA *ctapcrypto.KeyAgreement
	pin             string
	retries         int
	lastPayload     []byte
}

func newFakeTransactor() *fakeTransactor {
	ka, err := ctapcrypto.NewKeyAgreement()
	if err != nil {
		panic(err)
	}
	return &fakeTransactor{authenticatorKA: ka, retries: 8}
}

func (f *fakeTransactor) TransactCBOR(cmd byte, payload []byte) ([]byte, error) {
	f.lastPayload = append([]byte{}, payload...)
	m, err := ctapcbor.DecodeResponseMap(payload[1:])
	if err != nil {
		return nil, err
	}
	sub, err := m.Int(2)
	if err != nil {
		return nil, err
	}

	switch byte(sub) {
	case subGetRetries:
		out, err := ctapcbor.NewMapBuilder().Set(uint64(fieldPinRetries), int64(f.retries)).Encode(0)
		return out[1:], err

	case subGetKeyAgreement:
		x, y, err := f.authenticatorKA.PublicKeyXY()
		if err != nil {
			return nil, err
		}
		coseMap := ctapcrypto.ECDHKeyAgreementMap(x, y)
		out, err := ctapcbor.NewMapBuilder().Set(uint64(fieldKeyAgreement), coseMap).Encode(0)
		return out[1:], err

	case subSetPIN, subChangePIN:
		return nil, nil

	case subGetPinToken, subGetPinUvAuthTokenUsingPinWithPermissions, subGetPinUvAuthTokenUsingUvWithPermissions:
		platformKeyRaw, err := m.Raw(3)
		if err != nil {
			return nil, err
		}
		platformPub, err := ctapcrypto.DecodeCOSEKey(platformKeyRaw)
		if err != nil {
			return nil, err
		}
		secret, err := f.authenticatorKA.SharedSecret(platformPub.EC2.X.Bytes(), platformPub.EC2.Y.Bytes())
		if err != nil {
			return nil, err
		}
		token := []byte("0123456789abcdef0123456789abcdef")[:32]
		enc, err := ctapcrypto.EncryptAESCBC(secret.Bytes(), token)
		if err != nil {
			return nil, err
		}
		out, err := ctapcbor.NewMapBuilder().Set(uint64(fieldPinUvAuthToken), enc).Encode(0)
		return out[1:], err

	default:
		panic("unhandled subcommand in fake transactor")
	}
}

func TestEstablishSessionDerivesSharedSecret(t *testing.T) {
	tr := newFakeTransactor()
	s, err := EstablishSession(tr)
	require.NoError(t, err)
	require.Len(t, s.Secret().Bytes(), 32)
}

func TestGetRetries(t *testing.T) {
	tr := newFakeTransactor()
	tr.retries = 3
	n, err := GetRetries(tr)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestGetPinTokenDecryptsToken(t *testing.T) {
	tr := newFakeTransactor()
	s, err := EstablishSession(tr)
	require.NoError(t, err)

	token, err := GetPinToken(tr, s, "1234")
	require.NoError(t, err)
	require.Len(t, token.Bytes(), 32)
}

func TestGetPinUvAuthTokenUsingPinWithPermissions(t *testing.T) {
	tr := newFakeTransactor()
	s, err := EstablishSession(tr)
	require.NoError(t, err)

	token, err := GetPinUvAuthTokenUsingPinWithPermissions(tr, s, "1234", PermissionMakeCredential, "example.com")
	require.NoError(t, err)
	require.Len(t, token.Bytes(), 32)
}

func TestSetPINSendsExpectedFields(t *testing.T) {
	tr := newFakeTransactor()
	s, err := EstablishSession(tr)
	require.NoError(t, err)

	err = SetPIN(tr, s, "1234")
	require.NoError(t, err)

	m, err := ctapcbor.DecodeResponseMap(tr.lastPayload[1:])
	require.NoError(t, err)
	require.True(t, m.Has(3)) // keyAgreement
	newPinEnc, err := m.Bytes(5)
	require.NoError(t, err)
	require.Len(t, newPinEnc, 64)
	pinAuth, err := m.Bytes(4)
	require.NoError(t, err)
	require.True(t, ctapcrypto.VerifyAuthenticate(s.Secret().Bytes(), newPinEnc, pinAuth))
}

func TestChangePINSendsExpectedFields(t *testing.T) {
	tr := newFakeTransactor()
	s, err := EstablishSession(tr)
	require.NoError(t, err)

	err = ChangePIN(tr, s, "1234", "5678")
	require.NoError(t, err)

	m, err := ctapcbor.DecodeResponseMap(tr.lastPayload[1:])
	require.NoError(t, err)
	require.True(t, m.Has(3)) // keyAgreement
	newPinEnc, err := m.Bytes(5)
	require.NoError(t, err)
	require.Len(t, newPinEnc, 64)
	pinHashEnc, err := m.Bytes(6)
	require.NoError(t, err)
	require.Len(t, pinHashEnc, 16)
	pinAuth, err := m.Bytes(4)
	require.NoError(t, err)
	message := append(append([]byte{}, newPinEnc...), pinHashEnc...)
	require.True(t, ctapcrypto.VerifyAuthenticate(s.Secret().Bytes(), message, pinAuth))
}
