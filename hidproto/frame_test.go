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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildInitRequest(t *testing.T) {
	nonce := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	pkt := BuildInitRequest(BroadcastCID, nonce)
	require.Len(t, pkt, ReportSize)
	require.Equal(t, BroadcastCID[:], pkt[0:4])
	require.Equal(t, CmdInit, pkt[4])
	require.Equal(t, byte(0), pkt[5])
	require.Equal(t, byte(8), pkt[6])
	require.Equal(t, nonce[:], pkt[7:15])
}

func TestParseInitResponse(t *testing.T) {
	pkt := make([]byte, ReportSize)
	pkt[4] = CmdInit
	wantCID := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	copy(pkt[15:19], wantCID[:])

	cid, err := ParseInitResponse(pkt)
	require.NoError(t, err)
	require.Equal(t, wantCID, cid)
}

func TestParseInitResponseRejectsWrongCmd(t *testing.T) {
	pkt := make([]byte, ReportSize)
	pkt[4] = CmdWink
	_, err := ParseInitResponse(pkt)
	require.Error(t, err)
}

func TestSplitPayloadSinglePacket(t *testing.T) {
	cid := [4]byte{1, 1, 1, 1}
	payload := bytes.Repeat([]byte{0x42}, 10)
	packets, err := SplitPayload(cid, CmdCBOR, payload)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Equal(t, cid[:], packets[0][0:4])
	require.Equal(t, CmdCBOR, packets[0][4])
	require.Equal(t, payload, packets[0][7:17])
}

func TestSplitPayloadMultiplePackets(t *testing.T) {
	cid := [4]byte{2, 2, 2, 2}
	payload := bytes.Repeat([]byte{0x07}, initPayloadMax+contPayloadMax+5)
	packets, err := SplitPayload(cid, CmdCBOR, payload)
	require.NoError(t, err)
	require.Len(t, packets, 3)
	require.Equal(t, byte(0), packets[1][4])
	require.Equal(t, byte(1), packets[2][4])
	for _, pkt := range packets {
		require.Len(t, pkt, ReportSize)
	}
}

func TestSplitPayloadRejectsOversizedPayload(t *testing.T) {
	cid := [4]byte{3, 3, 3, 3}
	payload := bytes.Repeat([]byte{0x01}, initPayloadMax+contPayloadMax*maxSequence+1)
	_, err := SplitPayload(cid, CmdCBOR, payload)
	require.Error(t, err)
}

func TestSplitAndReassembleRoundTrip(t *testing.T) {
	cid := [4]byte{9, 8, 7, 6}
	for _, size := range []int{0, 1, 57, 58, 7609} {
		payload := bytes.Repeat([]byte{0x55}, size)
		packets, err := SplitPayload(cid, CmdCBOR, payload)
		require.NoError(t, err)

		r := NewReassembler(cid)
		var gotCmd byte
		var gotPayload []byte
		for _, pkt := range packets {
			done, cmd, body, err := r.Feed(pkt)
			require.NoError(t, err)
			if done {
				gotCmd = cmd
				gotPayload = body
			}
		}
		require.Equal(t, CmdCBOR, gotCmd)
		require.Equal(t, payload, gotPayload)
	}
}
