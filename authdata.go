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
	"encoding/binary"
	"fmt"

	"github.com/gravitational/ctaphid/ctapcbor"
)

// ParseAuthData parses the fixed-then-variable authData binary format
// (spec.md section 4.6): a 32-byte RP ID hash, 1-byte flags, 4-byte sign
// count, then an optional attested-credential-data region and an optional
// extensions region, each only present if its flag bit is set.
func ParseAuthData(raw []byte) (*AuthData, error) {
	const fixedLen = 32 + 1 + 4
	if len(raw) < fixedLen {
		return nil, fmt.Errorf("authData too short: got %d bytes, want at least %d", len(raw), fixedLen)
	}

	a := &AuthData{Raw: raw}
	a.RPIDHash = raw[0:32]
	a.Flags = raw[32]
	a.SignCount = binary.BigEndian.Uint32(raw[33:37])

	rest := raw[37:]

	if a.HasAttestedCredentialData() {
		const aaguidLen = 16
		if len(rest) < aaguidLen+2 {
			return nil, fmt.Errorf("authData truncated in attested credential data header")
		}
		a.AAGUID = rest[0:aaguidLen]
		rest = rest[aaguidLen:]

		credIDLen := int(binary.BigEndian.Uint16(rest[0:2]))
		rest = rest[2:]
		if len(rest) < credIDLen {
			return nil, fmt.Errorf("authData truncated in credential id: want %d bytes, have %d", credIDLen, len(rest))
		}
		a.CredentialID = rest[0:credIDLen]
		rest = rest[credIDLen:]

		// credentialPublicKey is exactly one CBOR item whose encoded length
		// isn't given explicitly; decode it to find the byte boundary.
		var coseKey map[int64]interface{}
		consumed, err := ctapcbor.DecodeItem(rest, &coseKey)
		if err != nil {
			return nil, fmt.Errorf("authData: decoding credentialPublicKey: %w", err)
		}
		a.CredentialPublicKey = rest[:consumed]
		rest = rest[consumed:]
	}

	if a.HasExtensions() {
		var extensions map[string]interface{}
		consumed, err := ctapcbor.DecodeItem(rest, &extensions)
		if err != nil {
			return nil, fmt.Errorf("authData: decoding extensions: %w", err)
		}
		a.Extensions = rest[:consumed]
		rest = rest[consumed:]
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("authData has %d unexpected trailing bytes", len(rest))
	}

	return a, nil
}
