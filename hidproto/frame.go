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

// Package hidproto implements the CTAPHID framing layer: splitting a CBOR
// payload into initialization and continuation packets, and reassembling
// packets read back off the wire into a complete command response. It has
// no knowledge of USB or any particular HID library; hidtransport supplies
// the actual bytes.
package hidproto

import (
	"encoding/binary"
	"fmt"
)

// ReportSize is the fixed HID report size CTAPHID uses on the wire.
const ReportSize = 64

// BroadcastCID is the channel ID used only for CTAPHID_INIT.
var BroadcastCID = [4]byte{0xFF, 0xFF, 0xFF, 0xFF}

// CTAPHID command identifiers (bit 7 always set). The vendor range
// (0xC0-0xFF) is reserved for non-standard extensions this library does
// not implement.
const (
	CmdInit      byte = 0x86
	CmdMsg       byte = 0x83
	CmdWink      byte = 0x88
	CmdCBOR      byte = 0x90
	CmdError     byte = 0xBF
	CmdKeepAlive byte = 0xBB
	CmdCancel    byte = 0x91
)

// initPayloadMax is the largest payload chunk an initialization packet can
// carry: 64 bytes minus the 4-byte CID, 1-byte CMD, and 2-byte BCNT.
const initPayloadMax = ReportSize - 4 - 1 - 2

// contPayloadMax is the largest payload chunk a continuation packet can
// carry: 64 bytes minus the 4-byte CID and 1-byte SEQ.
const contPayloadMax = ReportSize - 4 - 1

// maxSequence is the largest sequence number a continuation packet may
// carry; CTAPHID reserves SEQ's high bit, so 128 continuation packets is
// the hard ceiling.
const maxSequence = 128

// BuildInitRequest returns the 64-byte CTAPHID_INIT request packet (the
// report ID byte, if the transport needs one, is prepended by the
// transport layer, not here) addressed to cid with an 8-byte nonce.
func BuildInitRequest(cid [4]byte, nonce [8]byte) []byte {
	pkt := make([]byte, ReportSize)
	copy(pkt[0:4], cid[:])
	pkt[4] = CmdInit
	binary.BigEndian.PutUint16(pkt[5:7], 8)
	copy(pkt[7:15], nonce[:])
	return pkt
}

// ParseInitResponse extracts the newly allocated CID from a CTAPHID_INIT
// response packet.
func ParseInitResponse(pkt []byte) (cid [4]byte, err error) {
	if len(pkt) < ReportSize {
		return cid, fmt.Errorf("init response too short: got %d bytes, want %d", len(pkt), ReportSize)
	}
	if pkt[4] != CmdInit {
		return cid, fmt.Errorf("init response has unexpected cmd byte 0x%02x", pkt[4])
	}
	// Response body: nonce(8) || new CID(4) || protocol version(1) || ...
	copy(cid[:], pkt[15:19])
	return cid, nil
}

// SplitPayload fragments payload (a fully CBOR-encoded command, opcode
// byte included) into a sequence of CTAPHID_CBOR packets: one
// initialization packet followed by as many continuation packets as
// needed. Every returned packet is exactly ReportSize bytes.
func SplitPayload(cid [4]byte, cmd byte, payload []byte) ([][]byte, error) {
	var packets [][]byte

	first := make([]byte, ReportSize)
	copy(first[0:4], cid[:])
	first[4] = cmd
	binary.BigEndian.PutUint16(first[5:7], uint16(len(payload)))
	n := copy(first[7:], payload)
	packets = append(packets, first)
	remaining := payload[n:]

	seq := 0
	for len(remaining) > 0 {
		if seq >= maxSequence {
			return nil, fmt.Errorf("payload too large: requires more than %d continuation packets", maxSequence)
		}
		pkt := make([]byte, ReportSize)
		copy(pkt[0:4], cid[:])
		pkt[4] = byte(seq)
		n := copy(pkt[5:], remaining)
		packets = append(packets, pkt)
		remaining = remaining[n:]
		seq++
	}

	return packets, nil
}
