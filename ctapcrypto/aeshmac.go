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

package ctapcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// zeroIV is pinUvAuthProtocol 1's fixed all-zero AES-CBC initialization
// vector (CTAP2 section 6.5.6). The protocol's security relies on the key
// never being reused across messages, not on IV randomness.
var zeroIV = make([]byte, aes.BlockSize)

// EncryptAESCBC encrypts plaintext under key with AES-256-CBC and the
// fixed zero IV. plaintext must already be a multiple of the AES block
// size; pinUvAuthProtocol 1 never pads, so callers are responsible for
// producing block-aligned input (e.g. PadPIN for SetPIN/ChangePIN).
func EncryptAESCBC(key, plaintext []byte) ([]byte, error) {
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("plaintext length %d is not a multiple of the AES block size", len(plaintext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, plaintext)
	return out, nil
}

// DecryptAESCBC decrypts ciphertext under key with AES-256-CBC and the
// fixed zero IV.
func DecryptAESCBC(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the AES block size", len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(out, ciphertext)
	return out, nil
}

// Authenticate computes pinUvAuthProtocol 1's pinUvAuthParam: the first 16
// bytes of HMAC-SHA-256(key, message).
func Authenticate(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	full := mac.Sum(nil)
	return full[:16]
}

// VerifyAuthenticate reports whether pinUvAuthParam matches Authenticate(key, message).
func VerifyAuthenticate(key, message, pinUvAuthParam []byte) bool {
	want := Authenticate(key, message)
	return hmac.Equal(want, pinUvAuthParam)
}

// PadPIN pads a PIN to CTAP2's fixed 64-byte block (section 6.5.6),
// returning an error if the PIN is shorter than 4 bytes (the protocol
// minimum) or longer than 63 bytes (so the padded block can still hold a
// NUL-free 64th byte... per the spec the plaintext must be exactly 64
// bytes zero-padded, with the original PIN between 4 and 63 bytes).
func PadPIN(pin []byte) ([]byte, error) {
	if len(pin) < 4 {
		return nil, fmt.Errorf("pin too short: got %d bytes, minimum is 4", len(pin))
	}
	if len(pin) > 63 {
		return nil, fmt.Errorf("pin too long: got %d bytes, maximum is 63", len(pin))
	}
	padded := make([]byte, 64)
	copy(padded, pin)
	return padded, nil
}
