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
	"github.com/stretchr/testify/require"
)

func sampleAuthDataBytes() []byte {
	out := make([]byte, 0, 37)
	out = append(out, make([]byte, 32)...)
	out = append(out, 0) // flags: no attested data, no extensions
	out = append(out, 0, 0, 0, 0)
	return out
}

func TestMakeCredentialRejectsBadClientDataHash(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	_, err := d.MakeCredential(MakeCredentialRequest{ClientDataHash: []byte{1, 2, 3}, RP: RpEntity{ID: "example.com"}})
	require.Error(t, err)
}

func TestMakeCredentialHappyPath(t *testing.T) {
	respBody, err := cbor.Marshal(map[uint64]interface{}{
		1: "packed",
		2: sampleAuthDataBytes(),
		3: map[string]interface{}{"alg": CoseAlgES256, "sig": []byte{0x01, 0x02}},
	})
	require.NoError(t, err)

	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, respBody))
	d := newDevice(ch, cid)

	att, err := d.MakeCredential(MakeCredentialRequest{
		ClientDataHash: make([]byte, 32),
		RP:             RpEntity{ID: "example.com", Name: "Example"},
		User:           UserEntity{ID: []byte("user-1"), Name: "alice"},
	})
	require.NoError(t, err)
	require.Equal(t, "packed", att.Format)
	require.Equal(t, CoseAlgES256, att.Statement.Algorithm)
	require.Equal(t, []byte{0x01, 0x02}, att.Statement.Signature)
}

func TestMakeCredentialDefaultsEmptyUserFields(t *testing.T) {
	require.Equal(t, []byte{0x00}, defaultedEntityBytes(nil))
	require.Equal(t, " ", defaultedEntityString(""))
	require.Equal(t, "alice", defaultedEntityString("alice"))
}
