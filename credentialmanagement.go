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
	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// CredentialsMetadata is GetCredsMetadata's response (spec.md section 4.9).
type CredentialsMetadata struct {
	ExistingResidentCredentialsCount   int
	MaxPossibleRemainingCredentialsCount int
}

// RPDescriptor is one entry of EnumerateRPs.
type RPDescriptor struct {
	RP       RpEntity
	RPIDHash []byte
}

// CredentialInfo is one entry of EnumerateCredentials.
type CredentialInfo struct {
	Credential     CredentialDescriptor
	User           UserEntity
	PublicKey      []byte // raw COSE_Key bytes
	CredProtect    int64
	LargeBlobKey   []byte
}

func (d *Device) credMgmtOpcode() byte {
	if d.useLegacyCredMgmt {
		return opCredManagementPreview
	}
	return opCredentialManagement
}

func (d *Device) sendCredMgmt(token ctapcrypto.Secret, subCommand byte, subCommandParams map[uint64]interface{}) (*ctapcbor.ResponseMap, error) {
	var paramsCBOR []byte
	if subCommandParams != nil {
		encoded, err := ctapcbor.Marshal(subCommandParams)
		if err != nil {
			return nil, NewCborDecodeError("credentialManagement subCommandParams", err)
		}
		paramsCBOR = encoded
	}

	message := append([]byte{subCommand}, paramsCBOR...)
	pinAuth := ctapcrypto.Authenticate(token.Bytes(), message)

	protocol, err := d.pinUvAuthProtocol()
	if err != nil {
		return nil, err
	}

	op := d.credMgmtOpcode()
	b := ctapcbor.NewMapBuilder().
		Set(1, int64(subCommand)).
		SetIf(subCommandParams != nil, 2, subCommandParams).
		Set(3, protocol).
		Set(4, pinAuth)

	payload, err := b.Encode(op)
	if err != nil {
		return nil, NewCborDecodeError("credentialManagement request", err)
	}
	return d.decodeResponse(op, payload)
}

// GetCredsMetadata reports how many resident credentials are stored and
// how many more could fit.
func (d *Device) GetCredsMetadata(token ctapcrypto.Secret) (*CredentialsMetadata, error) {
	m, err := d.sendCredMgmt(token, credMgmtGetCredsMetadata, nil)
	if err != nil {
		return nil, err
	}
	existing, err := m.Int(1)
	if err != nil {
		return nil, NewCborDecodeError("getCredsMetadata.existingResidentCredentialsCount", err)
	}
	remaining, err := m.Int(2)
	if err != nil {
		return nil, NewCborDecodeError("getCredsMetadata.maxPossibleRemainingCredentialsCount", err)
	}
	return &CredentialsMetadata{
		ExistingResidentCredentialsCount:     int(existing),
		MaxPossibleRemainingCredentialsCount: int(remaining),
	}, nil
}

func rpFromResponseMap(m *ctapcbor.ResponseMap) (RPDescriptor, error) {
	var rp RPDescriptor
	if m.Has(3) {
		var entity struct {
			ID   string `cbor:"id"`
			Name string `cbor:"name"`
		}
		raw, err := m.Raw(3)
		if err != nil {
			return rp, NewCborDecodeError("enumerateRPs.rp", err)
		}
		if err := ctapcbor.DecodeInto(raw, &entity); err != nil {
			return rp, NewCborDecodeError("enumerateRPs.rp", err)
		}
		rp.RP = RpEntity{ID: entity.ID, Name: entity.Name}
	}
	if m.Has(4) {
		hash, err := m.Bytes(4)
		if err != nil {
			return rp, NewCborDecodeError("enumerateRPs.rpIDHash", err)
		}
		rp.RPIDHash = hash
	}
	return rp, nil
}

// EnumerateRPs lists every relying party with resident credentials on the
// authenticator, driving EnumerateRPsBegin followed by exactly
// total_rps-1 EnumerateRPsGetNextRP calls (spec.md section 4.9's pagination
// contract). It returns an empty slice, not an error, when the
// authenticator reports no credentials.
func (d *Device) EnumerateRPs(token ctapcrypto.Secret) ([]RPDescriptor, error) {
	m, err := d.sendCredMgmt(token, credMgmtEnumerateRPsBegin, nil)
	if err != nil {
		if IsNoCredentials(err) {
			return nil, nil
		}
		return nil, err
	}

	totalRPs, err := m.Int(5)
	if err != nil {
		return nil, NewCborDecodeError("enumerateRPs.totalRPs", err)
	}
	first, err := rpFromResponseMap(m)
	if err != nil {
		return nil, err
	}
	out := []RPDescriptor{first}

	for i := int64(1); i < totalRPs; i++ {
		m, err := d.sendCredMgmt(token, credMgmtEnumerateRPsGetNextRP, nil)
		if err != nil {
			return nil, err
		}
		rp, err := rpFromResponseMap(m)
		if err != nil {
			return nil, err
		}
		out = append(out, rp)
	}
	return out, nil
}

func credentialInfoFromResponseMap(m *ctapcbor.ResponseMap) (CredentialInfo, error) {
	var info CredentialInfo
	if m.Has(6) {
		var user struct {
			ID          []byte `cbor:"id"`
			Name        string `cbor:"name"`
			DisplayName string `cbor:"displayName"`
		}
		raw, err := m.Raw(6)
		if err != nil {
			return info, NewCborDecodeError("enumerateCredentials.user", err)
		}
		if err := ctapcbor.DecodeInto(raw, &user); err != nil {
			return info, NewCborDecodeError("enumerateCredentials.user", err)
		}
		info.User = UserEntity{ID: user.ID, Name: user.Name, DisplayName: user.DisplayName}
	}
	if m.Has(7) {
		var cred struct {
			ID   []byte `cbor:"id"`
			Type string `cbor:"type"`
		}
		raw, err := m.Raw(7)
		if err != nil {
			return info, NewCborDecodeError("enumerateCredentials.credentialID", err)
		}
		if err := ctapcbor.DecodeInto(raw, &cred); err != nil {
			return info, NewCborDecodeError("enumerateCredentials.credentialID", err)
		}
		info.Credential = CredentialDescriptor{ID: cred.ID, Type: cred.Type}
	}
	if m.Has(8) {
		raw, err := m.Raw(8)
		if err != nil {
			return info, NewCborDecodeError("enumerateCredentials.publicKey", err)
		}
		info.PublicKey = raw
	}
	if m.Has(10) {
		v, err := m.Int(10)
		if err != nil {
			return info, NewCborDecodeError("enumerateCredentials.credProtect", err)
		}
		info.CredProtect = v
	}
	if m.Has(11) {
		key, err := m.Bytes(11)
		if err != nil {
			return info, NewCborDecodeError("enumerateCredentials.largeBlobKey", err)
		}
		info.LargeBlobKey = key
	}
	return info, nil
}

// EnumerateCredentials lists every resident credential for one relying
// party, identified by its rpIDHash (spec.md section 4.9).
func (d *Device) EnumerateCredentials(token ctapcrypto.Secret, rpIDHash []byte) ([]CredentialInfo, error) {
	params := map[uint64]interface{}{1: rpIDHash}
	m, err := d.sendCredMgmt(token, credMgmtEnumerateCredentialsBegin, params)
	if err != nil {
		if IsNoCredentials(err) {
			return nil, nil
		}
		return nil, err
	}

	totalCreds, err := m.Int(9)
	if err != nil {
		return nil, NewCborDecodeError("enumerateCredentials.totalCredentials", err)
	}
	first, err := credentialInfoFromResponseMap(m)
	if err != nil {
		return nil, err
	}
	out := []CredentialInfo{first}

	for i := int64(1); i < totalCreds; i++ {
		m, err := d.sendCredMgmt(token, credMgmtEnumerateCredentialsGetNextCredential, nil)
		if err != nil {
			return nil, err
		}
		info, err := credentialInfoFromResponseMap(m)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteCredential removes one resident credential by ID.
func (d *Device) DeleteCredential(token ctapcrypto.Secret, credentialID []byte) error {
	params := map[uint64]interface{}{
		2: map[string]interface{}{"id": credentialID, "type": "public-key"},
	}
	_, err := d.sendCredMgmt(token, credMgmtDeleteCredential, params)
	return err
}

// UpdateUserInformation rewrites the user entity bound to an existing
// resident credential, without changing the credential itself.
func (d *Device) UpdateUserInformation(token ctapcrypto.Secret, credentialID []byte, user UserEntity) error {
	params := map[uint64]interface{}{
		2: map[string]interface{}{"id": credentialID, "type": "public-key"},
		3: map[string]interface{}{
			"id":          user.ID,
			"name":        user.Name,
			"displayName": user.DisplayName,
		},
	}
	_, err := d.sendCredMgmt(token, credMgmtUpdateUserInformation, params)
	return err
}
