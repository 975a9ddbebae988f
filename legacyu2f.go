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
	"crypto/x509"
	"encoding/asn1"
	"encoding/binary"
	"fmt"

	"github.com/gravitational/ctaphid/ctapcrypto"
	"github.com/gravitational/ctaphid/hidproto"
)

// U2F/CTAP1 APDU instruction codes and status words, FIDO U2F raw message
// formats v1.2.
const (
	u2fInsRegister     byte = 0x01
	u2fInsAuthenticate byte = 0x02
	u2fInsVersion      byte = 0x03

	u2fP1CheckOnly       byte = 0x07
	u2fP1EnforceUPAndSign byte = 0x03

	u2fSW1ConditionsNotSatisfied = 0x69
	u2fSW1WrongData              = 0x6A
)

// u2fStatusWordOK is "no error", SW1=0x90 SW2=0x00.
var u2fStatusWordOK = [2]byte{0x90, 0x00}

// U2FRegisterResult is what a legacy authenticator returns for a U2F
// register APDU, already shaped into this library's CTAP2-like data
// model so callers don't need two code paths to consume a credential.
type U2FRegisterResult struct {
	Attestation  *Attestation
	PublicKey    *ecdsa.PublicKey
	KeyHandle    []byte
	Certificate  []byte
	Signature    []byte
}

// sendU2FAPDU frames one ISO 7816-4 extended-length APDU inside CTAPHID_MSG and
// returns the response body with its trailing two-byte status word split
// off.
func (d *Device) sendU2FAPDU(ins, p1, p2 byte, data []byte) ([]byte, error) {
	apdu := make([]byte, 0, 7+len(data))
	apdu = append(apdu, 0x00, ins, p1, p2)
	if len(data) > 0 {
		apdu = append(apdu, 0x00, byte(len(data)>>8), byte(len(data)))
		apdu = append(apdu, data...)
	} else {
		apdu = append(apdu, 0x00, 0x00, 0x00)
	}
	apdu = append(apdu, 0x01, 0x00) // Le

	d.mu.Lock()
	if err := d.ch.Send(hidproto.CmdMsg, apdu); err != nil {
		d.mu.Unlock()
		return nil, NewTransportError("u2f send", err)
	}
	r := hidproto.NewReassembler(d.cid)
	gotCmd, body, err := hidproto.ReadResponse(d.ch, r, nil)
	d.mu.Unlock()
	if err != nil {
		return nil, NewTransportError("u2f read", err)
	}
	if gotCmd != hidproto.CmdMsg {
		return nil, NewTransportError("u2f read", fmt.Errorf("unexpected cmd byte 0x%02x", gotCmd))
	}
	if len(body) < 2 {
		return nil, NewTransportError("u2f read", fmt.Errorf("response too short for a status word"))
	}

	sw1, sw2 := body[len(body)-2], body[len(body)-1]
	if sw1 != u2fStatusWordOK[0] || sw2 != u2fStatusWordOK[1] {
		return nil, fmt.Errorf("u2f status word 0x%02x%02x", sw1, sw2)
	}
	return body[:len(body)-2], nil
}

// U2FRegister performs a CTAP1/U2F registration, for authenticators that
// never implement CTAP2. challenge and application must each be exactly
// 32 bytes (typically SHA-256(clientDataJSON) and SHA-256(rpID)).
func (d *Device) U2FRegister(challenge, application [32]byte) (*U2FRegisterResult, error) {
	data := make([]byte, 0, 64)
	data = append(data, challenge[:]...)
	data = append(data, application[:]...)

	resp, err := d.sendU2FAPDU(u2fInsRegister, 0, 0, data)
	if err != nil {
		return nil, err
	}
	return parseU2FRegistrationResponse(resp, application[:])
}

// U2FCheckRegistered reports whether keyHandle was registered under
// application by calling a CTAP1 authenticate APDU with the check-only
// control byte, which never requires user presence (spec.md section 5).
func (d *Device) U2FCheckRegistered(challenge, application [32]byte, keyHandle []byte) (bool, error) {
	data := make([]byte, 0, 64+1+len(keyHandle))
	data = append(data, challenge[:]...)
	data = append(data, application[:]...)
	data = append(data, byte(len(keyHandle)))
	data = append(data, keyHandle...)

	_, err := d.sendU2FAPDU(u2fInsAuthenticate, u2fP1CheckOnly, 0, data)
	return err == nil, nil
}

// U2FAuthenticate performs a CTAP1/U2F authentication against a
// previously registered keyHandle.
func (d *Device) U2FAuthenticate(challenge, application [32]byte, keyHandle []byte) (*Assertion, error) {
	data := make([]byte, 0, 64+1+len(keyHandle))
	data = append(data, challenge[:]...)
	data = append(data, application[:]...)
	data = append(data, byte(len(keyHandle)))
	data = append(data, keyHandle...)

	resp, err := d.sendU2FAPDU(u2fInsAuthenticate, u2fP1EnforceUPAndSign, 0, data)
	if err != nil {
		return nil, err
	}
	return parseU2FAuthenticationResponse(resp, application[:], keyHandle)
}

// parseU2FRegistrationResponse decodes the raw U2F register response body
// (reserved byte, uncompressed P-256 public key, key handle, attestation
// certificate, signature) and reshapes it into this library's Attestation
// type, synthesizing an authData blob the way CTAP2's U2F-compat
// attestation does (FIDO2.1 section on U2F-compat makeCredential).
func parseU2FRegistrationResponse(resp, rpIDHash []byte) (*U2FRegisterResult, error) {
	const pubKeyLen = 65
	const minRespLen = 1 + pubKeyLen + 1
	if len(resp) < minRespLen {
		return nil, fmt.Errorf("u2f register response too small, got %d bytes, expected at least %d", len(resp), minRespLen)
	}

	buf := resp
	if buf[0] != 0x05 {
		return nil, fmt.Errorf("invalid u2f reserved byte: 0x%02x", buf[0])
	}
	buf = buf[1:]

	x, y := elliptic.Unmarshal(elliptic.P256(), buf[:pubKeyLen])
	if x == nil {
		return nil, fmt.Errorf("failed to parse u2f public key")
	}
	buf = buf[pubKeyLen:]
	pubKey := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}

	l := int(buf[0])
	buf = buf[1:]
	if len(buf) < l {
		return nil, fmt.Errorf("u2f key handle length is %d, but only %d bytes are left", l, len(buf))
	}
	keyHandle := buf[:l]
	buf = buf[l:]

	sig, err := asn1.Unmarshal(buf, &asn1.RawValue{})
	if err != nil {
		return nil, fmt.Errorf("parsing u2f signature: %w", err)
	}
	attestationCert := buf[:len(buf)-len(sig)]
	if _, err := x509.ParseCertificate(attestationCert); err != nil {
		return nil, fmt.Errorf("parsing u2f attestation certificate: %w", err)
	}

	authData, err := synthesizeU2FAuthData(rpIDHash, keyHandle, pubKey)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseAuthData(authData)
	if err != nil {
		return nil, err
	}

	return &U2FRegisterResult{
		Attestation: &Attestation{
			Format:   "fido-u2f",
			AuthData: parsed,
			Statement: AttestationStatement{
				Algorithm: CoseAlgES256,
				Signature: sig,
				X5C:       [][]byte{attestationCert},
			},
		},
		PublicKey:   pubKey,
		KeyHandle:   keyHandle,
		Certificate: attestationCert,
		Signature:   sig,
	}, nil
}

// synthesizeU2FAuthData builds the authData blob CTAP2's U2F-compat
// attestation synthesizes: rpIDHash, a flags byte with UP and attested
// credential data set, a zeroed signature counter, a zeroed AAGUID, and
// the credential ID plus its COSE-encoded public key.
func synthesizeU2FAuthData(rpIDHash, keyHandle []byte, pubKey *ecdsa.PublicKey) ([]byte, error) {
	coseKey, err := ctapcrypto.EncodeES256PublicKeyCOSE(pubKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 32+1+4+16+2+len(keyHandle)+len(coseKey))
	out = append(out, rpIDHash...)
	out = append(out, FlagUserPresent|FlagAttestedCredentialDataIncluded)
	out = append(out, 0, 0, 0, 0) // signature counter, zeroed
	out = append(out, make([]byte, 16)...) // AAGUID, zeroed for U2F-compat credentials
	out = append(out, byte(len(keyHandle)>>8), byte(len(keyHandle)))
	out = append(out, keyHandle...)
	out = append(out, coseKey...)
	return out, nil
}

func parseU2FAuthenticationResponse(resp, rpIDHash []byte, keyHandle []byte) (*Assertion, error) {
	// user presence (1) || counter (4) || signature
	if len(resp) < 5 {
		return nil, fmt.Errorf("u2f authenticate response too small, got %d bytes", len(resp))
	}
	flags := resp[0]
	counter := binary.BigEndian.Uint32(resp[1:5])
	signature := resp[5:]

	var authFlags byte
	if flags&0x01 != 0 {
		authFlags |= FlagUserPresent
	}

	authData := make([]byte, 0, 37)
	authData = append(authData, rpIDHash...)
	authData = append(authData, authFlags)
	authData = append(authData, byte(counter>>24), byte(counter>>16), byte(counter>>8), byte(counter))

	parsed, err := ParseAuthData(authData)
	if err != nil {
		return nil, err
	}

	return &Assertion{
		Credential:          CredentialDescriptor{ID: keyHandle, Type: "public-key"},
		AuthData:            parsed,
		Signature:            signature,
		NumberOfCredentials: 1,
	}, nil
}
