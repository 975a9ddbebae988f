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

func TestGetFingerprintSensorInfoDecodesFields(t *testing.T) {
	body, err := cbor.Marshal(map[uint64]interface{}{3: int64(5), 8: int64(32)})
	require.NoError(t, err)

	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, body))
	d := newDevice(ch, cid)

	maxSamples, maxName, err := d.GetFingerprintSensorInfo()
	require.NoError(t, err)
	require.Equal(t, 5, maxSamples)
	require.Equal(t, 32, maxName)
}

func TestEnrollFingerprintLoopsUntilRemainingSamplesZero(t *testing.T) {
	begin, err := cbor.Marshal(map[uint64]interface{}{4: []byte{0x01}, 6: int64(2)})
	require.NoError(t, err)
	capture, err := cbor.Marshal(map[uint64]interface{}{4: []byte{0x01}, 6: int64(0)})
	require.NoError(t, err)

	call := 0
	cid := testCID()
	ch := newFakeChannel(cid, func(cmd byte, payload []byte) (byte, []byte, error) {
		call++
		if call == 1 {
			return hidproto.CmdCBOR, append([]byte{StatusOK}, begin...), nil
		}
		return hidproto.CmdCBOR, append([]byte{StatusOK}, capture...), nil
	})
	d := newDevice(ch, cid)

	sample, err := d.EnrollFingerprint(fakeToken(t), 0)
	require.NoError(t, err)
	require.Equal(t, EnrollmentDone, sample.Status)
	require.Equal(t, 2, call)
}

func TestEnrollFingerprintGivesUpAfterMaxRetries(t *testing.T) {
	stuck, err := cbor.Marshal(map[uint64]interface{}{4: []byte{0x01}, 6: int64(1)})
	require.NoError(t, err)

	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, stuck))
	d := newDevice(ch, cid)

	_, err = d.EnrollFingerprint(fakeToken(t), 0)
	require.Error(t, err)
}

func TestEnumerateEnrollmentsReturnsEmptyOnNoCredentials(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusNoCredentials, nil))
	d := newDevice(ch, cid)

	templates, err := d.EnumerateEnrollments(fakeToken(t))
	require.NoError(t, err)
	require.Empty(t, templates)
}

func TestRemoveEnrollmentSendsTemplateID(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.RemoveEnrollment(fakeToken(t), []byte{0x42}))

	var req map[uint64]interface{}
	require.NoError(t, cbor.Unmarshal(ch.sentPayload[1:], &req))
	require.Equal(t, uint64(bioSubRemoveEnrollment), req[2].(uint64))
	params, ok := req[3].(map[interface{}]interface{})
	require.True(t, ok)
	require.Equal(t, []byte{0x42}, params[uint64(1)])
}
