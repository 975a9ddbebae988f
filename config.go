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

// authenticatorConfigContext is the 32 0xFF prefix authenticatorConfig's
// pinUvAuthParam is computed over, binding the auth param to this
// command's context and preventing cross-command replay (spec.md section
// 4.11).
var authenticatorConfigContext = func() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}()

func configPinAuth(token ctapcrypto.Secret, subCommand byte, subCommandParams []byte) []byte {
	message := append([]byte{}, authenticatorConfigContext...)
	message = append(message, opAuthenticatorConfig, subCommand)
	message = append(message, subCommandParams...)
	return ctapcrypto.Authenticate(token.Bytes(), message)
}

func (d *Device) sendConfigCommand(token ctapcrypto.Secret, subCommand byte, subCommandParams map[string]interface{}) error {
	var paramsCBOR []byte
	if subCommandParams != nil {
		encoded, err := ctapcbor.Marshal(subCommandParams)
		if err != nil {
			return NewCborDecodeError("authenticatorConfig subCommandParams", err)
		}
		paramsCBOR = encoded
	}

	pinAuth := configPinAuth(token, subCommand, paramsCBOR)

	protocol, err := d.pinUvAuthProtocol()
	if err != nil {
		return err
	}

	b := ctapcbor.NewMapBuilder().
		Set(1, int64(subCommand)).
		SetIf(subCommandParams != nil, 2, subCommandParams).
		Set(3, protocol).
		Set(4, pinAuth)

	payload, err := b.Encode(opAuthenticatorConfig)
	if err != nil {
		return NewCborDecodeError("authenticatorConfig request", err)
	}
	_, err = d.TransactCBOR(opAuthenticatorConfig, payload)
	return err
}

// ToggleAlwaysUv flips the authenticator's alwaysUv option.
func (d *Device) ToggleAlwaysUv(token ctapcrypto.Secret) error {
	return d.sendConfigCommand(token, configSubToggleAlwaysUv, nil)
}

// SetMinPINLength sets the minimum PIN length policy, optionally scoping
// which RP IDs are notified of the new minimum.
func (d *Device) SetMinPINLength(token ctapcrypto.Secret, newMinPINLength int, rpIDs []string) error {
	params := map[string]interface{}{"newMinPINLength": int64(newMinPINLength)}
	if len(rpIDs) > 0 {
		params["minPinLengthRPIDs"] = rpIDs
	}
	return d.sendConfigCommand(token, configSubSetMinPINLength, params)
}

// ForceChangePIN marks the currently configured PIN as needing to be
// changed before it can authenticate any further commands; it is a
// SetMinPINLength variant with the forceChangePin flag set (spec.md
// section 4.11).
func (d *Device) ForceChangePIN(token ctapcrypto.Secret) error {
	params := map[string]interface{}{"forceChangePin": true}
	return d.sendConfigCommand(token, configSubSetMinPINLength, params)
}
