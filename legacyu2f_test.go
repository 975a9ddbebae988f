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

package ctaphid

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/ctaphid/hidproto"
)

// buildU2FRegistrationResponse constructs a raw U2F register response body
// (reserved byte, uncompressed public key, key handle, a self-signed
// attestation cert, ASN.1 signature) the way a real authenticator would,
// so parseU2FRegistrationResponse can be exercised without a device.
func buildU2FRegistrationResponse(t *testing.T) (resp []byte, keyHandle []byte, pub *ecdsa.PublicKey) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	certTemplate := x509Certificate(t)
	certDER, err := x509.CreateCertificate(rand.Reader, &certTemplate, &certTemplate, &priv.PublicKey, priv)
	require.NoError(t, err)

	keyHandle = []byte{0xAA, 0xBB, 0xCC, 0xDD}
	sigASN1, err := asn1.Marshal(struct{ R, S *big.Int }{big.NewInt(1), big.NewInt(2)})
	require.NoError(t, err)

	pubKeyBytes := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)

	resp = append(resp, 0x05)
	resp = append(resp, pubKeyBytes...)
	resp = append(resp, byte(len(keyHandle)))
	resp = append(resp, keyHandle...)
	resp = append(resp, certDER...)
	resp = append(resp, sigASN1...)

	return resp, keyHandle, &priv.PublicKey
}

func x509Certificate(t *testing.T) x509.Certificate {
	t.Helper()
	return x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test attestation cert"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
}

func TestParseU2FRegistrationResponse(t *testing.T) {
	resp, keyHandle, pub := buildU2FRegistrationResponse(t)
	rpIDHash := make([]byte, 32)

	result, err := parseU2FRegistrationResponse(resp, rpIDHash)
	require.NoError(t, err)
	require.Equal(t, keyHandle, result.KeyHandle)
	require.Equal(t, pub.X, result.PublicKey.X)
	require.Equal(t, pub.Y, result.PublicKey.Y)
	require.Equal(t, "fido-u2f", result.Attestation.Format)
	require.True(t, result.Attestation.AuthData.HasAttestedCredentialData())
}

func TestParseU2FRegistrationResponseRejectsBadReservedByte(t *testing.T) {
	resp, _, _ := buildU2FRegistrationResponse(t)
	resp[0] = 0x01
	_, err := parseU2FRegistrationResponse(resp, make([]byte, 32))
	require.Error(t, err)
}

func TestParseU2FAuthenticationResponse(t *testing.T) {
	resp := append([]byte{0x01}, 0, 0, 0, 7) // user presence set, counter 7
	resp = append(resp, 0x30, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02)

	keyHandle := []byte{0x01, 0x02}
	assertion, err := parseU2FAuthenticationResponse(resp, make([]byte, 32), keyHandle)
	require.NoError(t, err)
	require.True(t, assertion.AuthData.UserPresent())
	require.Equal(t, uint32(7), assertion.AuthData.SignCount)
	require.Equal(t, keyHandle, assertion.Credential.ID)
}

func TestU2FRegisterFramesAPDUOverCmdMsg(t *testing.T) {
	resp, _, _ := buildU2FRegistrationResponse(t)

	cid := testCID()
	ch := newFakeChannel(cid, func(cmd byte, payload []byte) (byte, []byte, error) {
		require.Equal(t, hidproto.CmdMsg, cmd)
		require.Equal(t, u2fInsRegister, payload[1])
		out := append(append([]byte{}, resp...), 0x90, 0x00)
		return hidproto.CmdMsg, out, nil
	})
	d := newDevice(ch, cid)

	var challenge, application [32]byte
	result, err := d.U2FRegister(challenge, application)
	require.NoError(t, err)
	require.NotNil(t, result.Attestation)
}
