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

package hidtransport

import (
	"crypto/rand"
	"fmt"

	"github.com/flynn/hid"

	"github.com/gravitational/ctaphid/hidproto"
)

// reportIDByte is prefixed to every outbound write; CTAPHID devices use
// report ID 0 (spec.md section 4's report framing note).
const reportIDByte = 0x00

// Channel owns one opened HID handle plus the CID allocated to it by
// CTAPHID_INIT. It implements hidproto.PacketReader so hidproto.ReadResponse
// can drive it directly.
type Channel struct {
	dev hid.Device
	cid [4]byte
}

// Open opens the HID device at path and performs the CTAPHID_INIT
// handshake to allocate a channel ID.
func Open(info Info) (*Channel, error) {
	di := &hid.DeviceInfo{
		Path:      info.Path,
		VendorID:  info.VendorID,
		ProductID: info.ProductID,
	}
	dev, err := di.Open()
	if err != nil {
		return nil, fmt.Errorf("opening hid device %s: %w", info.Path, err)
	}
	return newChannel(dev)
}

// newChannel performs the CTAPHID_INIT handshake over an already-opened HID
// device. Split out from Open so tests can supply a fake hid.Device instead
// of real hardware.
func newChannel(dev hid.Device) (*Channel, error) {
	c := &Channel{dev: dev}
	if err := c.init(); err != nil {
		dev.Close()
		return nil, err
	}
	return c, nil
}

func (c *Channel) init() error {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("generating init nonce: %w", err)
	}

	req := hidproto.BuildInitRequest(hidproto.BroadcastCID, nonce)
	if err := c.writeRaw(req); err != nil {
		return fmt.Errorf("writing init request: %w", err)
	}

	resp, err := c.readRaw()
	if err != nil {
		return fmt.Errorf("reading init response: %w", err)
	}

	cid, err := hidproto.ParseInitResponse(resp)
	if err != nil {
		return err
	}
	c.cid = cid
	return nil
}

// CID returns the channel ID allocated during Open.
func (c *Channel) CID() [4]byte { return c.cid }

// Close releases the underlying HID handle.
func (c *Channel) Close() error {
	c.dev.Close()
	return nil
}

// Send writes a full CTAPHID command (opcode plus canonical CBOR payload)
// to the device, fragmenting it across as many reports as necessary.
func (c *Channel) Send(cmd byte, payload []byte) error {
	packets, err := hidproto.SplitPayload(c.cid, cmd, payload)
	if err != nil {
		return err
	}
	for _, pkt := range packets {
		if err := c.writeRaw(pkt); err != nil {
			return fmt.Errorf("writing hid packet: %w", err)
		}
	}
	return nil
}

// ReadPacket implements hidproto.PacketReader.
func (c *Channel) ReadPacket() ([]byte, error) {
	return c.readRaw()
}

// Cancel sends a CTAPHID_CANCEL packet on this channel to abort an
// outstanding request.
func (c *Channel) Cancel() error {
	pkt := make([]byte, hidproto.ReportSize)
	copy(pkt[0:4], c.cid[:])
	pkt[4] = hidproto.CmdCancel
	return c.writeRaw(pkt)
}

func (c *Channel) writeRaw(pkt []byte) error {
	buf := make([]byte, 0, len(pkt)+1)
	buf = append(buf, reportIDByte)
	buf = append(buf, pkt...)
	return c.dev.Write(buf)
}

func (c *Channel) readRaw() ([]byte, error) {
	buf, ok := <-c.dev.ReadCh()
	if !ok {
		if err := c.dev.ReadError(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("hid device closed")
	}
	if len(buf) < hidproto.ReportSize {
		return nil, fmt.Errorf("short hid read: got %d bytes, want %d", len(buf), hidproto.ReportSize)
	}
	return buf[:hidproto.ReportSize], nil
}
