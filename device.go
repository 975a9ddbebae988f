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

// Package ctaphid is a client for the FIDO2 Client-to-Authenticator
// Protocol (CTAP) v2.0/2.1/2.1-PRE over USB HID. It assembles CBOR-encoded
// command messages, frames them across CTAPHID, and performs the PIN/UV
// auth protocol exchanges required to register and authenticate WebAuthn
// credentials, manage PINs, enumerate resident credentials, enroll
// fingerprints, and configure authenticator policy. It is not a WebAuthn
// relying-party library: callers are expected to supply clientDataHash and
// interpret attestation/assertion objects themselves.
package ctaphid

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/hidproto"
	"github.com/gravitational/ctaphid/hidtransport"
)

// channel is the subset of hidtransport.Channel this package depends on,
// so command code can be tested against a fake transport.
type channel interface {
	Send(cmd byte, payload []byte) error
	ReadPacket() ([]byte, error)
	Cancel() error
	Close() error
}

// Device is an opened CTAPHID endpoint plus the runtime configuration
// that shapes how commands are framed (spec.md section 3's Device handle).
// A Device exclusively owns its HID resource; only one command may be in
// flight on it at a time, and callers must not share a Device across
// goroutines for interleaved commands (a second goroutine issuing Cancel
// while the first blocks on a read is the one supported exception).
type Device struct {
	ch  channel
	cid [4]byte
	mu  sync.Mutex

	enableLog             bool
	useLegacyBioEnroll    bool
	useLegacyCredMgmt     bool
	keepAliveMessage      string
	pinProtocolVersion    int
	log                   *log.Entry
}

// pinUvAuthProtocol returns the pinUvAuthProtocol version number to embed
// in a ClientPIN-bound request. Only protocol 1 is implemented; a Device
// configured via WithPinProtocol(2) fails here rather than silently
// sending protocol-1-shaped requests under a protocol-2 label.
func (d *Device) pinUvAuthProtocol() (int64, error) {
	switch d.pinProtocolVersion {
	case 0, 1:
		return 1, nil
	default:
		return 0, NewUnsupportedError(fmt.Sprintf("pinUvAuthProtocol %d", d.pinProtocolVersion))
	}
}

// Option configures a Device at construction time.
type Option func(*Device)

// WithLogging enables per-command debug logging via logrus.
func WithLogging(enable bool) Option {
	return func(d *Device) { d.enableLog = enable }
}

// WithLegacyBioEnrollment makes bio enrollment commands use the 0x40
// preview opcode instead of the modern 0x09 authenticatorBioEnrollment
// opcode, for older authenticators that only implement the CTAP2.1-PRE
// draft.
func WithLegacyBioEnrollment(enable bool) Option {
	return func(d *Device) { d.useLegacyBioEnroll = enable }
}

// WithLegacyCredentialManagement makes credential management commands use
// the 0x41 preview opcode.
func WithLegacyCredentialManagement(enable bool) Option {
	return func(d *Device) { d.useLegacyCredMgmt = enable }
}

// WithKeepAliveMessage sets the message logged once per KEEPALIVE packet
// received while waiting on user presence.
func WithKeepAliveMessage(msg string) Option {
	return func(d *Device) { d.keepAliveMessage = msg }
}

// WithPinProtocol selects which pinUvAuthProtocol version to use. Only
// version 1 is implemented; version 2 requests fail with an Unsupported
// error the first time a PIN/UV operation is attempted.
func WithPinProtocol(version int) Option {
	return func(d *Device) { d.pinProtocolVersion = version }
}

// Open opens the HID device described by info and performs the CTAPHID
// INIT handshake.
func Open(info hidtransport.Info, opts ...Option) (*Device, error) {
	ch, err := hidtransport.Open(info)
	if err != nil {
		return nil, NewTransportError("open", err)
	}
	d := newDevice(ch, ch.CID(), opts...)
	return d, nil
}

func newDevice(ch channel, cid [4]byte, opts ...Option) *Device {
	d := &Device{
		ch:                 ch,
		cid:                cid,
		keepAliveMessage:   "waiting for user presence...",
		pinProtocolVersion: 1,
		log:                log.WithField("component", "ctaphid"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Close releases the underlying HID handle. The Device must not be used
// afterwards.
func (d *Device) Close() error {
	return d.ch.Close()
}

// CID returns the channel ID allocated to this Device during Open.
func (d *Device) CID() [4]byte { return d.cid }

// TransactCBOR sends one CTAPHID_CBOR command and returns its decoded
// body (the bytes following the status byte), or an error derived from a
// nonzero CTAP status. It implements pinauth.Transactor.
func (d *Device) TransactCBOR(cmd byte, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.enableLog {
		d.log.Debugf("-> cmd=0x%02x %d bytes", cmd, len(payload))
	}

	if err := d.ch.Send(hidproto.CmdCBOR, payload); err != nil {
		return nil, NewTransportError("send", err)
	}

	r := hidproto.NewReassembler(d.cid)
	gotCmd, body, err := hidproto.ReadResponse(d.ch, r, func(status byte) {
		if d.enableLog {
			d.log.Debugf("%s (status 0x%02x)", d.keepAliveMessage, status)
		}
	})
	if err != nil {
		return nil, NewTransportError("read", err)
	}

	switch gotCmd {
	case hidproto.CmdError:
		if len(body) == 0 {
			return nil, NewTransportError("read", fmt.Errorf("empty error frame"))
		}
		return nil, NewTransportError("read", fmt.Errorf("CTAPHID error 0x%02x", body[0]))
	case hidproto.CmdCBOR:
		// fall through
	default:
		return nil, NewTransportError("read", fmt.Errorf("unexpected cmd byte 0x%02x", gotCmd))
	}

	if len(body) == 0 {
		return nil, NewTransportError("read", fmt.Errorf("empty cbor response"))
	}
	status := body[0]
	rest := body[1:]
	if status != StatusOK {
		return nil, NewCtapStatusError(status)
	}
	return rest, nil
}

// Cancel sends a CTAPHID_CANCEL on this Device's channel, aborting any
// outstanding command. The caller that issued the command will observe
// CtapStatusError{Code: StatusKeepAliveCancel}.
func (d *Device) Cancel() error {
	if err := d.ch.Cancel(); err != nil {
		return NewTransportError("cancel", err)
	}
	return nil
}

// decodeResponse is a small helper command files use to turn a TransactCBOR
// body into a ctapcbor.ResponseMap.
func (d *Device) decodeResponse(cmd byte, payload []byte) (*ctapcbor.ResponseMap, error) {
	body, err := d.TransactCBOR(cmd, payload)
	if err != nil {
		return nil, err
	}
	m, err := ctapcbor.DecodeResponseMap(body)
	if err != nil {
		return nil, NewCborDecodeError(fmt.Sprintf("cmd 0x%02x response", cmd), err)
	}
	return m, nil
}
