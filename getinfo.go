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

// GetInfoResponse field keys (CTAP2 authenticatorGetInfo, non-exhaustive:
// only what this library's command layer consults).
const (
	infoVersions      uint64 = 1
	infoExtensions    uint64 = 2
	infoAAGUID        uint64 = 3
	infoOptions       uint64 = 4
	infoMaxMsgSize    uint64 = 5
	infoPinProtocols  uint64 = 6
	infoMaxCredIDList uint64 = 9
	infoMinPINLength  uint64 = 16
)

// Info is the decoded subset of authenticatorGetInfo's response this
// library acts on.
type Info struct {
	Versions       []string
	Extensions     []string
	AAGUID         []byte
	Options        map[string]bool
	MaxMsgSize     int64
	PinProtocols   []int64
	MinPINLength   int64
}

// HasOption reports whether name is present in Options and true, the
// pattern used throughout CTAP2 to probe for an optional capability
// (spec.md section 4's "enable_info_option" probe).
func (i *Info) HasOption(name string) bool {
	return i.Options[name]
}

// GetInfo issues authenticatorGetInfo.
func (d *Device) GetInfo() (*Info, error) {
	m, err := d.decodeResponse(opGetInfo, []byte{opGetInfo})
	if err != nil {
		return nil, err
	}

	info := &Info{Options: map[string]bool{}}

	if m.Has(infoVersions) {
		var versions []string
		if err := m.Into(infoVersions, &versions); err != nil {
			return nil, NewCborDecodeError("getInfo.versions", err)
		}
		info.Versions = versions
	}
	if m.Has(infoExtensions) {
		var extensions []string
		if err := m.Into(infoExtensions, &extensions); err != nil {
			return nil, NewCborDecodeError("getInfo.extensions", err)
		}
		info.Extensions = extensions
	}
	if m.Has(infoAAGUID) {
		aaguid, err := m.Bytes(infoAAGUID)
		if err != nil {
			return nil, NewCborDecodeError("getInfo.aaguid", err)
		}
		info.AAGUID = aaguid
	}
	if m.Has(infoOptions) {
		var options map[string]bool
		if err := m.Into(infoOptions, &options); err != nil {
			return nil, NewCborDecodeError("getInfo.options", err)
		}
		info.Options = options
	}
	if m.Has(infoMaxMsgSize) {
		n, err := m.Int(infoMaxMsgSize)
		if err != nil {
			return nil, NewCborDecodeError("getInfo.maxMsgSize", err)
		}
		info.MaxMsgSize = n
	}
	if m.Has(infoPinProtocols) {
		var protocols []int64
		if err := m.Into(infoPinProtocols, &protocols); err != nil {
			return nil, NewCborDecodeError("getInfo.pinProtocols", err)
		}
		info.PinProtocols = protocols
	}
	if m.Has(infoMinPINLength) {
		n, err := m.Int(infoMinPINLength)
		if err != nil {
			return nil, NewCborDecodeError("getInfo.minPINLength", err)
		}
		info.MinPINLength = n
	}

	return info, nil
}

// HasVersion reports whether info advertises support for a CTAP version
// string such as "FIDO_2_1" or "FIDO_2_1_PRE".
func (i *Info) HasVersion(version string) bool {
	for _, v := range i.Versions {
		if v == version {
			return true
		}
	}
	return false
}
