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
	"fmt"
	"time"
)

// MaxKeepAliveIterations bounds the keep-alive wait loop so a
// misbehaving authenticator that never stops sending KEEPALIVE cannot
// hang a caller forever (spec requires a cap of at least 100).
const MaxKeepAliveIterations = 600

// KeepAliveInterval is the sleep between KEEPALIVE polls.
const KeepAliveInterval = 100 * time.Millisecond

// PacketReader reads one 64-byte HID report. hidtransport supplies the
// real implementation; tests supply a canned sequence.
type PacketReader interface {
	ReadPacket() ([]byte, error)
}

// KeepAliveObserver is notified once per KEEPALIVE packet received while
// waiting for a command to complete, so the caller can log it.
type KeepAliveObserver func(status byte)

// ReadResponse drives r against pr until a response other than KEEPALIVE
// completes, transparently looping through KEEPALIVE packets. On success
// cmd is whatever command the completed response carries (CmdCBOR,
// CmdError, CmdMsg, CmdWink, ...); callers check it themselves.
func ReadResponse(pr PacketReader, r *Reassembler, onKeepAlive KeepAliveObserver) (cmd byte, payload []byte, err error) {
	keepAliveCount := 0
	for {
		pkt, err := pr.ReadPacket()
		if err != nil {
			return 0, nil, fmt.Errorf("reading hid packet: %w", err)
		}

		done, gotCmd, gotPayload, err := r.Feed(pkt)
		if err != nil {
			return 0, nil, err
		}
		if !done {
			continue
		}

		if gotCmd == CmdKeepAlive {
			keepAliveCount++
			if keepAliveCount >= MaxKeepAliveIterations {
				return 0, nil, fmt.Errorf("exceeded keep-alive iteration cap (%d)", MaxKeepAliveIterations)
			}
			if onKeepAlive != nil && len(gotPayload) > 0 {
				onKeepAlive(gotPayload[0])
			}
			// KEEPALIVE completes a single Reassembler.Feed cycle, but the
			// overall command is still outstanding: reset and wait for the
			// next packet.
			*r = *NewReassembler(r.cid)
			time.Sleep(KeepAliveInterval)
			continue
		}

		return gotCmd, gotPayload, nil
	}
}
