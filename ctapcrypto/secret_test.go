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

package ctapcrypto

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretWipeZeroizes(t *testing.T) {
	s := NewSecret([]byte{1, 2, 3, 4})
	require.Equal(t, 4, s.Len())
	s.Wipe()
	require.Equal(t, []byte{0, 0, 0, 0}, s.Bytes())
}

func TestSecretCopiesInput(t *testing.T) {
	original := []byte{9, 9, 9}
	s := NewSecret(original)
	original[0] = 0
	require.Equal(t, byte(9), s.Bytes()[0])
}

func TestSecretFormatNeverLeaksBytes(t *testing.T) {
	s := NewSecret([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	out := fmt.Sprintf("%v", s)
	require.NotContains(t, out, "222")
	require.Contains(t, out, "len=4")
}
