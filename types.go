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

// Flags bits from authData's one-byte flags field (spec.md section 3).
const (
	FlagUserPresent                 byte = 0x01
	FlagUserVerified                byte = 0x04
	FlagAttestedCredentialDataIncluded byte = 0x40
	FlagExtensionDataIncluded        byte = 0x80
)

// RpEntity identifies a relying party.
type RpEntity struct {
	ID   string
	Name string
}

// UserEntity identifies a user account.
type UserEntity struct {
	ID          []byte
	Name        string
	DisplayName string
}

// CredentialDescriptor references one credential by ID.
type CredentialDescriptor struct {
	ID   []byte
	Type string // always "public-key"
}

// CredentialParam is one entry of pubKeyCredParams.
type CredentialParam struct {
	Type      string // "public-key"
	Algorithm int64  // CoseAlgES256 or CoseAlgEdDSA
}

// MakeCredentialOptions are the boolean options field of
// authenticatorMakeCredential/GetAssertion.
type MakeCredentialOptions struct {
	ResidentKey     bool
	UserPresence    *bool
	UserVerification *bool
}

// AuthData is the parsed form of the authData byte string embedded in
// both attestation and assertion objects (spec.md section 4.6).
type AuthData struct {
	RPIDHash                    []byte
	Flags                       byte
	SignCount                   uint32
	AAGUID                      []byte
	CredentialID                []byte
	CredentialPublicKey         []byte // raw COSE_Key bytes, decode with ctapcrypto.DecodeCOSEKey
	Extensions                  []byte // raw CBOR map bytes, decode with ctapcbor as needed
	Raw                         []byte
}

// UserPresent reports the user_present flag.
func (a *AuthData) UserPresent() bool { return a.Flags&FlagUserPresent != 0 }

// UserVerified reports the user_verified flag.
func (a *AuthData) UserVerified() bool { return a.Flags&FlagUserVerified != 0 }

// HasAttestedCredentialData reports the attested_credential_data_included flag.
func (a *AuthData) HasAttestedCredentialData() bool {
	return a.Flags&FlagAttestedCredentialDataIncluded != 0
}

// HasExtensions reports the extension_data_included flag.
func (a *AuthData) HasExtensions() bool { return a.Flags&FlagExtensionDataIncluded != 0 }

// AttestationStatement is the attStmt map of a MakeCredential response.
type AttestationStatement struct {
	Algorithm int64
	Signature []byte
	X5C       [][]byte // certificate chain, leaf first
}

// Attestation is MakeCredential's decoded response (spec.md section 3).
type Attestation struct {
	Format    string
	AuthData  *AuthData
	Statement AttestationStatement
}

// Assertion is one GetAssertion/GetNextAssertion result (spec.md section 3).
type Assertion struct {
	Credential           CredentialDescriptor
	AuthData             *AuthData
	Signature            []byte
	User                 *UserEntity
	NumberOfCredentials  int
	LargeBlobKey         []byte
}
