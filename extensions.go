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

	"github.com/gravitational/ctaphid/ctapcrypto"
)

// CredProtect policy values (spec.md section 4.8).
const (
	CredProtectUVOptional                      int64 = 1
	CredProtectUVOptionalWithCredentialIDList  int64 = 2
	CredProtectUVRequired                      int64 = 3
)

// HMACSecretMakeCredentialInput is the "hmac-secret" extension value sent
// on the MakeCredential side: requesting the extension be enabled.
const HMACSecretMakeCredentialInput = true

// HMACSecretAssertionInput computes the GetAssertion-side "hmac-secret"
// extension value: {1: platformPublicKey, 2: saltEnc, 3: saltAuth}
// (spec.md section 4.8). salt must be 32 bytes (one salt) or 64 bytes (two
// salts).
func HMACSecretAssertionInput(ka *ctapcrypto.KeyAgreement, sharedSecret ctapcrypto.Secret, salt []byte) (map[string]interface{}, error) {
	if len(salt) != 32 && len(salt) != 64 {
		return nil, fmt.Errorf("hmac-secret salt must be 32 or 64 bytes, got %d", len(salt))
	}
	saltEnc, err := ctapcrypto.EncryptAESCBC(sharedSecret.Bytes(), salt)
	if err != nil {
		return nil, err
	}
	saltAuth := ctapcrypto.Authenticate(sharedSecret.Bytes(), saltEnc)

	x, y, err := ka.PublicKeyXY()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"hmac-secret": map[int64]interface{}{
			1: ctapcrypto.ECDHKeyAgreementMap(x, y),
			2: saltEnc,
			3: saltAuth,
		},
	}, nil
}

// DecryptHMACSecretOutput decrypts the "hmac-secret" extension output
// returned in an assertion's authData extensions region, yielding 32 bytes
// (one salt) or 64 bytes (two salts).
func DecryptHMACSecretOutput(sharedSecret ctapcrypto.Secret, ciphertext []byte) ([]byte, error) {
	return ctapcrypto.DecryptAESCBC(sharedSecret.Bytes(), ciphertext)
}
