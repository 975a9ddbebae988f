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

package hidproto

import (
	"encoding/binary"
	"fmt"
)

// Reassembler accumulates CTAPHID response packets for a single CID into a
// complete command response. It is pure state: feed it packets one at a
// time with Feed until it reports Done.
type Reassembler struct {
	cid       [4]byte
	cmd       byte
	total     int
	buf       []byte
	nextSeq   byte
	started   bool
}

// NewReassembler returns a Reassembler for the given channel.
func NewReassembler(cid [4]byte) *Reassembler {
	return &Reassembler{cid: cid}
}

// Feed processes one 64-byte packet read from the wire. done reports
// whether the response is now complete; cmd and payload are only
// meaningful when done is true. A CmdKeepAlive or CmdError packet
// completes immediately (the caller inspects cmd to decide how to react);
// a CmdCBOR packet may require further continuation packets.
func (r *Reassembler) Feed(pkt []byte) (done bool, cmd byte, payload []byte, err error) {
	if len(pkt) < ReportSize {
		return false, 0, nil, fmt.Errorf("packet too short: got %d bytes, want %d", len(pkt), ReportSize)
	}

	gotCID := [4]byte{pkt[0], pkt[1], pkt[2], pkt[3]}
	if gotCID != r.cid {
		return false, 0, nil, fmt.Errorf("packet for unexpected channel %x, want %x", gotCID, r.cid)
	}

	isInit := pkt[4]&0x80 != 0

	if !r.started {
		if !isInit {
			return false, 0, nil, fmt.Errorf("first packet on channel is a continuation packet")
		}
		r.started = true
		r.cmd = pkt[4]
		r.total = int(binary.BigEndian.Uint16(pkt[5:7]))

		switch r.cmd {
		case CmdKeepAlive, CmdError:
			body := append([]byte{}, pkt[7:7+min(r.total, initPayloadMax)]...)
			return true, r.cmd, body, nil
		}

		r.buf = append(r.buf, pkt[7:]...)
		if len(r.buf) >= r.total {
			return true, r.cmd, r.buf[:r.total], nil
		}
		return false, 0, nil, nil
	}

	if isInit {
		return false, 0, nil, fmt.Errorf("unexpected initialization packet mid-response")
	}
	seq := pkt[4]
	if seq != r.nextSeq {
		return false, 0, nil, fmt.Errorf("out-of-order continuation packet: got seq %d, want %d", seq, r.nextSeq)
	}
	r.nextSeq++

	r.buf = append(r.buf, pkt[5:]...)
	if len(r.buf) >= r.total {
		return true, r.cmd, r.buf[:r.total], nil
	}
	return false, 0, nil, nil
}
