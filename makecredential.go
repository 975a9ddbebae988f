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
	"fmt"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// MakeCredentialRequest is the caller-facing form of
// authenticatorMakeCredential's parameters (spec.md section 4.6).
type MakeCredentialRequest struct {
	ClientDataHash []byte
	RP             RpEntity
	User           UserEntity
	// Params defaults to [{Type: "public-key", Algorithm: CoseAlgES256}]
	// when left empty.
	Params        []CredentialParam
	ExcludeList   []CredentialDescriptor
	Extensions    map[string]interface{}
	Options       MakeCredentialOptions
	PinUvAuthToken ctapcrypto.Secret // zero value: no PIN/UV binding
	havePinToken  bool
}

// WithPinUvAuthToken binds req to a previously obtained pinUvAuthToken,
// which MakeCredential uses to compute pinAuth over clientDataHash.
func (req MakeCredentialRequest) WithPinUvAuthToken(token ctapcrypto.Secret) MakeCredentialRequest {
	req.PinUvAuthToken = token
	req.havePinToken = true
	return req
}

func defaultedEntityBytes(id []byte) []byte {
	if len(id) == 0 {
		return []byte{0x00}
	}
	return id
}

func defaultedEntityString(s string) string {
	if s == "" {
		return " "
	}
	return s
}

// MakeCredential issues authenticatorMakeCredential.
func (d *Device) MakeCredential(req MakeCredentialRequest) (*Attestation, error) {
	if len(req.ClientDataHash) != 32 {
		return nil, fmt.Errorf("clientDataHash must be 32 bytes, got %d", len(req.ClientDataHash))
	}
	if req.RP.ID == "" {
		return nil, fmt.Errorf("rp.id is required")
	}

	params := req.Params
	if len(params) == 0 {
		params = []CredentialParam{{Type: "public-key", Algorithm: CoseAlgES256}}
	}
	paramsCBOR := make([]map[string]interface{}, len(params))
	for i, p := range params {
		paramsCBOR[i] = map[string]interface{}{"alg": p.Algorithm, "type": "public-key"}
	}

	userMap := map[string]interface{}{
		"id":          defaultedEntityBytes(req.User.ID),
		"name":        defaultedEntityString(req.User.Name),
		"displayName": defaultedEntityString(req.User.DisplayName),
	}
	rpMap := map[string]interface{}{"id": req.RP.ID, "name": req.RP.Name}

	optionsMap := map[string]interface{}{"rk": req.Options.ResidentKey}
	if req.Options.UserPresence != nil {
		optionsMap["up"] = *req.Options.UserPresence
	}
	if req.Options.UserVerification != nil {
		optionsMap["uv"] = *req.Options.UserVerification
	}

	var excludeList []map[string]interface{}
	for _, c := range req.ExcludeList {
		excludeList = append(excludeList, map[string]interface{}{"id": c.ID, "type": "public-key"})
	}

	b := ctapcbor.NewMapBuilder().
		Set(1, req.ClientDataHash).
		Set(2, rpMap).
		Set(3, userMap).
		Set(4, paramsCBOR).
		SetIf(len(excludeList) > 0, 5, excludeList).
		SetIf(len(req.Extensions) > 0, 6, req.Extensions).
		Set(7, optionsMap)

	if req.havePinToken {
		protocol, err := d.pinUvAuthProtocol()
		if err != nil {
			return nil, err
		}
		pinAuth := ctapcrypto.Authenticate(req.PinUvAuthToken.Bytes(), req.ClientDataHash)
		b.Set(8, pinAuth).Set(9, protocol)
	}

	payload, err := b.Encode(opMakeCredential)
	if err != nil {
		return nil, NewCborDecodeError("makeCredential request", err)
	}

	m, err := d.decodeResponse(opMakeCredential, payload)
	if err != nil {
		return nil, err
	}

	format, err := m.Text(1)
	if err != nil {
		return nil, NewCborDecodeError("makeCredential.fmt", err)
	}
	authDataRaw, err := m.Bytes(2)
	if err != nil {
		return nil, NewCborDecodeError("makeCredential.authData", err)
	}
	authData, err := ParseAuthData(authDataRaw)
	if err != nil {
		return nil, NewCborDecodeError("makeCredential.authData", err)
	}

	var stmt AttestationStatement
	if m.Has(3) {
		raw, err := m.Raw(3)
		if err != nil {
			return nil, NewCborDecodeError("makeCredential.attStmt", err)
		}
		var attStmt struct {
			Alg int64    `cbor:"alg"`
			Sig []byte   `cbor:"sig"`
			X5C [][]byte `cbor:"x5c"`
		}
		if err := ctapcbor.DecodeInto(raw, &attStmt); err != nil {
			return nil, NewCborDecodeError("makeCredential.attStmt", err)
		}
		stmt = AttestationStatement{Algorithm: attStmt.Alg, Signature: attStmt.Sig, X5C: attStmt.X5C}
	}

	return &Attestation{Format: format, AuthData: authData, Statement: stmt}, nil
}
