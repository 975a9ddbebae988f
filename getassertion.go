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

// opGetNextAssertionPayload is the single-byte authenticatorGetNextAssertion
// command (spec.md section 4.7: "single-byte payload 0x08").
var opGetNextAssertionPayload = []byte{opGetNextAssertion}

// GetAssertionRequest is the caller-facing form of
// authenticatorGetAssertion's parameters.
type GetAssertionRequest struct {
	RPID            string
	ClientDataHash  []byte
	AllowList       []CredentialDescriptor
	Extensions      map[string]interface{}
	UserPresence    *bool
	UserVerification *bool
	PinUvAuthToken  ctapcrypto.Secret
	havePinToken    bool
}

// WithPinUvAuthToken binds req to a previously obtained pinUvAuthToken.
func (req GetAssertionRequest) WithPinUvAuthToken(token ctapcrypto.Secret) GetAssertionRequest {
	req.PinUvAuthToken = token
	req.havePinToken = true
	return req
}

// GetAssertion issues authenticatorGetAssertion, followed by as many
// authenticatorGetNextAssertion calls as number_of_credentials requires
// (spec.md section 4.7's paged-assertions contract). Ordering of the
// returned slice is authenticator-defined; the client does not re-sort.
func (d *Device) GetAssertion(req GetAssertionRequest) ([]*Assertion, error) {
	if req.RPID == "" {
		return nil, fmt.Errorf("rpId is required")
	}
	if len(req.ClientDataHash) != 32 {
		return nil, fmt.Errorf("clientDataHash must be 32 bytes, got %d", len(req.ClientDataHash))
	}

	var allowList []map[string]interface{}
	for _, c := range req.AllowList {
		allowList = append(allowList, map[string]interface{}{"id": c.ID, "type": "public-key"})
	}

	optionsMap := map[string]interface{}{}
	if req.UserPresence != nil {
		optionsMap["up"] = *req.UserPresence
	}
	if req.UserVerification != nil {
		optionsMap["uv"] = *req.UserVerification
	}

	b := ctapcbor.NewMapBuilder().
		Set(1, req.RPID).
		Set(2, req.ClientDataHash).
		SetIf(len(allowList) > 0, 3, allowList).
		SetIf(len(req.Extensions) > 0, 4, req.Extensions).
		SetIf(len(optionsMap) > 0, 5, optionsMap)

	if req.havePinToken {
		protocol, err := d.pinUvAuthProtocol()
		if err != nil {
			return nil, err
		}
		pinAuth := ctapcrypto.Authenticate(req.PinUvAuthToken.Bytes(), req.ClientDataHash)
		b.Set(6, pinAuth).Set(7, protocol)
	}

	payload, err := b.Encode(opGetAssertion)
	if err != nil {
		return nil, NewCborDecodeError("getAssertion request", err)
	}

	m, err := d.decodeResponse(opGetAssertion, payload)
	if err != nil {
		return nil, err
	}

	first, err := assertionFromResponseMap(m)
	if err != nil {
		return nil, err
	}
	results := []*Assertion{first}

	for i := 1; i < first.NumberOfCredentials; i++ {
		m, err := d.decodeResponse(opGetNextAssertion, opGetNextAssertionPayload)
		if err != nil {
			return nil, err
		}
		next, err := assertionFromResponseMap(m)
		if err != nil {
			return nil, err
		}
		results = append(results, next)
	}

	return results, nil
}

func assertionFromResponseMap(m *ctapcbor.ResponseMap) (*Assertion, error) {
	var credDesc struct {
		ID   []byte `cbor:"id"`
		Type string `cbor:"type"`
	}
	if m.Has(1) {
		raw, err := m.Raw(1)
		if err != nil {
			return nil, NewCborDecodeError("getAssertion.credential", err)
		}
		if err := ctapcbor.DecodeInto(raw, &credDesc); err != nil {
			return nil, NewCborDecodeError("getAssertion.credential", err)
		}
	}

	authDataRaw, err := m.Bytes(2)
	if err != nil {
		return nil, NewCborDecodeError("getAssertion.authData", err)
	}
	authData, err := ParseAuthData(authDataRaw)
	if err != nil {
		return nil, NewCborDecodeError("getAssertion.authData", err)
	}

	signature, err := m.Bytes(3)
	if err != nil {
		return nil, NewCborDecodeError("getAssertion.signature", err)
	}

	a := &Assertion{
		Credential: CredentialDescriptor{ID: credDesc.ID, Type: credDesc.Type},
		AuthData:   authData,
		Signature:  signature,
	}

	if m.Has(4) {
		var user struct {
			ID          []byte `cbor:"id"`
			Name        string `cbor:"name"`
			DisplayName string `cbor:"displayName"`
		}
		raw, err := m.Raw(4)
		if err != nil {
			return nil, NewCborDecodeError("getAssertion.user", err)
		}
		if err := ctapcbor.DecodeInto(raw, &user); err != nil {
			return nil, NewCborDecodeError("getAssertion.user", err)
		}
		a.User = &UserEntity{ID: user.ID, Name: user.Name, DisplayName: user.DisplayName}
	}

	a.NumberOfCredentials = 1
	if m.Has(5) {
		n, err := m.Int(5)
		if err != nil {
			return nil, NewCborDecodeError("getAssertion.numberOfCredentials", err)
		}
		a.NumberOfCredentials = int(n)
	}

	if m.Has(7) {
		blobKey, err := m.Bytes(7)
		if err != nil {
			return nil, NewCborDecodeError("getAssertion.largeBlobKey", err)
		}
		a.LargeBlobKey = blobKey
	}

	return a, nil
}
