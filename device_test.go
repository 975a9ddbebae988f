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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/ctaphid/hidproto"
)

// fakeChannel is an in-memory CTAPHID channel: Send encodes one CBOR
// command via hidproto.SplitPayload and records it, while a preloaded
// responder function decides what response bytes come back (which are
// then fragmented the same way so ReadPacket exercises real reassembly).
type fakeChannel struct {
	cid [4]byte

	sentCmd     byte
	sentPayload []byte

	responder func(cmd byte, payload []byte) (respCmd byte, respPayload []byte, err error)

	outgoing [][]byte
	closed   bool
	canceled bool
}

func newFakeChannel(cid [4]byte, responder func(byte, []byte) (byte, []byte, error)) *fakeChannel {
	return &fakeChannel{cid: cid, responder: responder}
}

func (c *fakeChannel) Send(cmd byte, payload []byte) error {
	c.sentCmd = cmd
	c.sentPayload = append([]byte{}, payload...)

	respCmd, respPayload, err := c.responder(cmd, payload)
	if err != nil {
		return err
	}

	pkts, err := hidproto.SplitPayload(c.cid, respCmd, respPayload)
	if err != nil {
		return err
	}
	c.outgoing = append(c.outgoing, pkts...)
	return nil
}

func (c *fakeChannel) ReadPacket() ([]byte, error) {
	if len(c.outgoing) == 0 {
		return nil, fmt.Errorf("fakeChannel: no queued packets")
	}
	pkt := c.outgoing[0]
	c.outgoing = c.outgoing[1:]
	return pkt, nil
}

func (c *fakeChannel) Cancel() error { c.canceled = true; return nil }
func (c *fakeChannel) Close() error  { c.closed = true; return nil }

// cborResponder builds a fakeChannel responder that always answers
// CTAPHID_CBOR with the given status byte followed by body.
func cborResponder(status byte, body []byte) func(byte, []byte) (byte, []byte, error) {
	return func(cmd byte, payload []byte) (byte, []byte, error) {
		resp := append([]byte{status}, body...)
		return hidproto.CmdCBOR, resp, nil
	}
}

func testCID() [4]byte { return [4]byte{0x01, 0x02, 0x03, 0x04} }

func TestTransactCBORReturnsBodyOnSuccess(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, []byte{0xA1, 0x01, 0x02}))
	d := newDevice(ch, cid)

	body, err := d.TransactCBOR(opGetInfo, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0xA1, 0x01, 0x02}, body)
}

func TestTransactCBORSurfacesNonzeroStatus(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusPinInvalid, nil))
	d := newDevice(ch, cid)

	_, err := d.TransactCBOR(opClientPIN, nil)
	require.Error(t, err)
	var pinErr *PinError
	require.ErrorAs(t, err, &pinErr)
	require.Equal(t, PinInvalid, pinErr.Kind)
}

func TestTransactCBORRejectsUnexpectedCmd(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, func(cmd byte, payload []byte) (byte, []byte, error) {
		return hidproto.CmdWink, nil, nil
	})
	d := newDevice(ch, cid)

	_, err := d.TransactCBOR(opGetInfo, nil)
	require.Error(t, err)
}

func TestCancelDelegatesToChannel(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.Cancel())
	require.True(t, ch.canceled)
}

func TestCloseDelegatesToChannel(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.Close())
	require.True(t, ch.closed)
}

func TestOptionsConfigureDevice(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid,
		WithLogging(true),
		WithLegacyBioEnrollment(true),
		WithLegacyCredentialManagement(true),
		WithKeepAliveMessage("hold on"),
		WithPinProtocol(2),
	)

	require.True(t, d.enableLog)
	require.True(t, d.useLegacyBioEnroll)
	require.True(t, d.useLegacyCredMgmt)
	require.Equal(t, "hold on", d.keepAliveMessage)
	require.Equal(t, 2, d.pinProtocolVersion)
}
