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
	"errors"
	"fmt"

	"github.com/gravitational/trace"
)

// CTAP status codes surfaced to callers (spec.md section 6, non-exhaustive).
const (
	StatusOK                  = 0x00
	StatusInvalidCommand      = 0x01
	StatusInvalidLength       = 0x03
	StatusInvalidCBOR         = 0x12
	StatusMissingParameter    = 0x14
	StatusCredentialExcluded  = 0x19
	StatusOperationDenied     = 0x27
	StatusKeyStoreFull        = 0x28
	StatusUnsupportedOption   = 0x2C
	StatusKeepAliveCancel     = 0x2D
	StatusNoCredentials       = 0x2E
	StatusUserActionTimeout   = 0x2F
	StatusNotAllowed          = 0x30
	StatusPinInvalid          = 0x31
	StatusPinBlocked          = 0x32
	StatusPinAuthInvalid      = 0x33
	StatusPinAuthBlocked      = 0x34
	StatusPinNotSet           = 0x35
	StatusPuatRequired        = 0x36
	StatusPinPolicyViolation  = 0x37
	StatusRequestTooLarge     = 0x39
	StatusActionTimeout       = 0x3A
	StatusUPRequired          = 0x3B
	StatusUVBlocked           = 0x3C
	StatusIntegrityFailure    = 0x3D
	StatusInvalidSubcommand   = 0x3E
	StatusUVInvalid           = 0x3F
	StatusUnauthorizedPermission = 0x40
)

// CtapStatusError carries a nonzero CTAP status byte returned by the
// authenticator. It is the error kind callers should errors.As into when
// they need to branch on the wire status code.
type CtapStatusError struct {
	Code byte
}

func (e *CtapStatusError) Error() string {
	return fmt.Sprintf("ctap status error: 0x%02x", e.Code)
}

// NewCtapStatusError wraps a nonzero CTAP status byte as a trace-annotated
// error. Status 0x00 is never wrapped; call sites must check for it first.
func NewCtapStatusError(code byte) error {
	switch code {
	case StatusPinInvalid:
		return trace.Wrap(&PinError{Kind: PinInvalid}, "pin invalid")
	case StatusPinBlocked:
		return trace.Wrap(&PinError{Kind: PinBlocked}, "pin blocked")
	case StatusPinNotSet:
		return trace.Wrap(&PinError{Kind: PinNotSet}, "pin not set")
	case StatusUVBlocked:
		return trace.Wrap(&PinError{Kind: UVBlocked}, "uv blocked")
	case StatusPuatRequired:
		return trace.Wrap(&PinError{Kind: ForceChangeRequired}, "pin change required")
	default:
		return trace.Wrap(&CtapStatusError{Code: code})
	}
}

// PinErrorKind enumerates the distinguishable PIN/UV failure conditions
// spec.md section 4.5 requires callers be able to pattern-match on.
type PinErrorKind int

const (
	PinInvalid PinErrorKind = iota
	PinAlreadySet
	PinBlocked
	PinNotSet
	UVBlocked
	ForceChangeRequired
)

func (k PinErrorKind) String() string {
	switch k {
	case PinInvalid:
		return "invalid current PIN"
	case PinAlreadySet:
		return "PIN already set"
	case PinBlocked:
		return "PIN blocked"
	case PinNotSet:
		return "PIN not set"
	case UVBlocked:
		return "UV blocked"
	case ForceChangeRequired:
		return "force PIN change required"
	default:
		return "unknown PIN error"
	}
}

// PinError is the error kind for all PIN/UV subsystem failures.
type PinError struct {
	Kind PinErrorKind
}

func (e *PinError) Error() string {
	return e.Kind.String()
}

// TransportError covers HID open/read/write failures, malformed frames,
// unexpected CMD bytes, and truncated payloads (spec.md section 7).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error during %s", e.Op)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps a transport-layer failure.
func NewTransportError(op string, err error) error {
	return trace.Wrap(&TransportError{Op: op, Err: err})
}

// CborDecodeError covers type mismatches, unexpected structure, and
// impossible integer casts while decoding a CTAP response.
type CborDecodeError struct {
	Context string
	Err     error
}

func (e *CborDecodeError) Error() string {
	return fmt.Sprintf("cbor decode error in %s: %v", e.Context, e.Err)
}

func (e *CborDecodeError) Unwrap() error { return e.Err }

// NewCborDecodeError wraps a CBOR decoding failure.
func NewCborDecodeError(context string, err error) error {
	return trace.Wrap(&CborDecodeError{Context: context, Err: err})
}

// CryptoError covers ECDH, key-parsing, AES, and HMAC failures.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto error during %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// NewCryptoError wraps a crypto-primitive failure.
func NewCryptoError(op string, err error) error {
	return trace.Wrap(&CryptoError{Op: op, Err: err})
}

// Unsupported indicates the authenticator lacks the required option or
// CTAP version for the requested command.
type Unsupported struct {
	What string
}

func (e *Unsupported) Error() string {
	return fmt.Sprintf("unsupported: %s", e.What)
}

// NewUnsupportedError wraps an unsupported-capability condition.
func NewUnsupportedError(what string) error {
	return trace.Wrap(&Unsupported{What: what})
}

// IsNoCredentials reports whether err represents CTAP2_ERR_NO_CREDENTIALS,
// which paged-enumeration helpers translate into an empty result rather
// than a hard failure (spec.md section 7).
func IsNoCredentials(err error) bool {
	var statusErr *CtapStatusError
	return errors.As(err, &statusErr) && statusErr.Code == StatusNoCredentials
}
