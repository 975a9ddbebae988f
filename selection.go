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

import "github.com/gravitational/ctaphid/hidproto"

// Wink asks the authenticator to blink or otherwise visually identify
// itself. It is a CTAPHID-level command, not a CBOR command, and has no
// response body.
func (d *Device) Wink() error {
	if err := d.ch.Send(hidproto.CmdWink, nil); err != nil {
		return NewTransportError("wink", err)
	}
	r := hidproto.NewReassembler(d.cid)
	_, _, err := hidproto.ReadResponse(d.ch, r, nil)
	if err != nil {
		return NewTransportError("wink", err)
	}
	return nil
}

// Selection issues authenticatorSelection (CTAP2.1), which prompts the
// user to touch a specific authenticator among several that are all
// waiting on the same request.
func (d *Device) Selection() error {
	_, err := d.TransactCBOR(opSelection, []byte{opSelection})
	return err
}

// CancelSelection aborts an outstanding Selection call on this channel.
func (d *Device) CancelSelection() error {
	return d.Cancel()
}
