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

// Package pinauth implements pinUvAuthProtocol 1: shared-secret
// establishment over ECDH, PIN encryption, pinUvAuthParam computation, and
// the ClientPIN subcommand request/response shapes. pinUvAuthProtocol 2
// (HKDF-based) is not implemented: ProtocolTwo is defined, but every
// request this package builds carries ProtocolOne. The root ctaphid.Device
// returns a ctaphid.Unsupported error from its own PIN/UV-bound commands
// when configured for protocol 2.
package pinauth

import (
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// Protocol identifies which pinUvAuthProtocol a session speaks.
type Protocol int

const (
	ProtocolOne Protocol = 1
	ProtocolTwo Protocol = 2
)

// Session holds the platform side of an established pinUvAuthProtocol 1
// shared secret: the ephemeral key agreement key pair plus the derived
// secret. Wipe must be called once the session's PinToken is no longer
// needed.
type Session struct {
	ka     *ctapcrypto.KeyAgreement
	secret ctapcrypto.Secret
}

// Transactor sends a ClientPIN CBOR command and returns the response body
// that follows the CTAP status byte. It is satisfied by the root ctaphid.Device type; defined
// here so pinauth has no dependency on the device/transport packages.
type Transactor interface {
	TransactCBOR(cmd byte, payload []byte) ([]byte, error)
}

// Secret exposes the derived shared secret for callers that need to
// encrypt or authenticate values under it outside this package (e.g. the
// hmac-secret extension's saltEnc and saltAuth).
func (s *Session) Secret() ctapcrypto.Secret { return s.secret }

// KeyAgreement exposes the platform's ephemeral key agreement key pair.
func (s *Session) KeyAgreement() *ctapcrypto.KeyAgreement { return s.ka }

// Wipe zeroizes the session's shared secret.
func (s *Session) Wipe() { s.secret.Wipe() }
