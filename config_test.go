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

	"github.com/stretchr/testify/require"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

func fakeToken(t *testing.T) ctapcrypto.Secret {
	t.Helper()
	return ctapcrypto.NewSecret(make([]byte, 32))
}

func TestToggleAlwaysUvSendsExpectedSubcommand(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.ToggleAlwaysUv(fakeToken(t)))

	var req map[uint64]interface{}
	require.NoError(t, ctapcbor.DecodeInto(ch.sentPayload[1:], &req))
	require.Equal(t, uint64(configSubToggleAlwaysUv), uint64(req[1].(uint64)))
}

func TestSetMinPINLengthIncludesRPIDs(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.SetMinPINLength(fakeToken(t), 6, []string{"example.com"}))

	var req map[uint64]interface{}
	require.NoError(t, ctapcbor.DecodeInto(ch.sentPayload[1:], &req))
	params, ok := req[2].(map[interface{}]interface{})
	require.True(t, ok)
	require.Equal(t, uint64(6), params["newMinPINLength"])
}

func TestForceChangePINSetsFlag(t *testing.T) {
	cid := testCID()
	ch := newFakeChannel(cid, cborResponder(StatusOK, nil))
	d := newDevice(ch, cid)

	require.NoError(t, d.ForceChangePIN(fakeToken(t)))

	var req map[uint64]interface{}
	require.NoError(t, ctapcbor.DecodeInto(ch.sentPayload[1:], &req))
	params, ok := req[2].(map[interface{}]interface{})
	require.True(t, ok)
	require.Equal(t, true, params["forceChangePin"])
}
