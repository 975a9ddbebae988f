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
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/gravitational/ctaphid/hidproto"
	"github.com/stretchr/testify/require"
)

func TestGetAssertionRejectsMissingRPID(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	_, err := d.GetAssertion(GetAssertionRequest{ClientDataHash: make([]byte, 32)})
	require.Error(t, err)
}

func TestGetAssertionSingleResult(t *testing.T) {
	respBody, err := cbor.Marshal(map[uint64]interface{}{
		1: map[string]interface{}{"id": []byte{0x01}, "type": "public-key"},
		2: sampleAuthDataBytes(),
		3: []byte{0xAA, 0xBB},
	})
	require.NoError(t, err)

	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, respBody))
	d := newDevice(ch, cid)

	results, err := d.GetAssertion(GetAssertionRequest{RPID: "example.com", ClientDataHash: make([]byte, 32)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, []byte{0x01}, results[0].Credential.ID)
	require.Equal(t, 1, results[0].NumberOfCredentials)
}

func TestGetAssertionDrivesGetNextAssertion(t *testing.T) {
	first, err := cbor.Marshal(map[uint64]interface{}{
		1: map[string]interface{}{"id": []byte{0x01}, "type": "public-key"},
		2: sampleAuthDataBytes(),
		3: []byte{0xAA},
		5: int64(2),
	})
	require.NoError(t, err)
	second, err := cbor.Marshal(map[uint64]interface{}{
		1: map[string]interface{}{"id": []byte{0x02}, "type": "public-key"},
		2: sampleAuthDataBytes(),
		3: []byte{0xBB},
	})
	require.NoError(t, err)

	call := 0
	cid := testCID()
	ch := newFakeChannel(cid, func(cmd byte, payload []byte) (byte, []byte, error) {
		call++
		if call == 1 {
			require.Equal(t, opGetAssertion, payload[0])
			return hidproto.CmdCBOR, append([]byte{StatusOK}, first...), nil
		}
		require.Equal(t, []byte{opGetNextAssertion}, payload)
		return hidproto.CmdCBOR, append([]byte{StatusOK}, second...), nil
	})
	d := newDevice(ch, cid)

	results, err := d.GetAssertion(GetAssertionRequest{RPID: "example.com", ClientDataHash: make([]byte, 32)})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, []byte{0x01}, results[0].Credential.ID)
	require.Equal(t, []byte{0x02}, results[1].Credential.ID)
}
