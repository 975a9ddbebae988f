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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakePacketReader struct {
	packets [][]byte
	i       int
}

func (f *fakePacketReader) ReadPacket() ([]byte, error) {
	if f.i >= len(f.packets) {
		return nil, errors.New("no more packets")
	}
	pkt := f.packets[f.i]
	f.i++
	return pkt, nil
}

func keepAlivePacket(cid [4]byte, status byte) []byte {
	pkt := make([]byte, ReportSize)
	copy(pkt[0:4], cid[:])
	pkt[4] = CmdKeepAlive
	binary.BigEndian.PutUint16(pkt[5:7], 1)
	pkt[7] = status
	return pkt
}

func TestReadResponseSkipsKeepAlives(t *testing.T) {
	cid := [4]byte{4, 4, 4, 4}
	payload := []byte{0x00, 0xAA, 0xBB}
	cborPackets, err := SplitPayload(cid, CmdCBOR, payload)
	require.NoError(t, err)

	packets := [][]byte{
		keepAlivePacket(cid, 0x01),
		keepAlivePacket(cid, 0x02),
	}
	packets = append(packets, cborPackets...)

	pr := &fakePacketReader{packets: packets}
	var observed []byte

	cmd, body, err := ReadResponse(pr, NewReassembler(cid), func(status byte) {
		observed = append(observed, status)
	})
	require.NoError(t, err)
	require.Equal(t, CmdCBOR, cmd)
	require.Equal(t, payload, body)
	require.Equal(t, []byte{0x01, 0x02}, observed)
}

func TestReadResponseSurfacesError(t *testing.T) {
	cid := [4]byte{5, 5, 5, 5}
	pkt := make([]byte, ReportSize)
	copy(pkt[0:4], cid[:])
	pkt[4] = CmdError
	binary.BigEndian.PutUint16(pkt[5:7], 1)
	pkt[7] = 0x2D

	pr := &fakePacketReader{packets: [][]byte{pkt}}
	cmd, body, err := ReadResponse(pr, NewReassembler(cid), nil)
	require.NoError(t, err)
	require.Equal(t, CmdError, cmd)
	require.Equal(t, byte(0x2D), body[0])
}

func TestReadResponsePropagatesReaderError(t *testing.T) {
	pr := &fakePacketReader{}
	_, _, err := ReadResponse(pr, NewReassembler([4]byte{1, 1, 1, 1}), nil)
	require.Error(t, err)
}
