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

// Package hidtransport implements the USB HID transport CTAPHID rides on
// top of, using github.com/flynn/hid for device enumeration and raw report
// I/O (the same library zmb3-teleport's webauthncli package would reach
// for, had it supported CTAP2 authenticators directly rather than going
// through libfido2).
package hidtransport

import (
	"fmt"

	"github.com/flynn/hid"
)

// fidoUsagePage is the USB HID usage page FIDO authenticators register
// under (spec.md section 4's C1 HID Enumerator).
const fidoUsagePage = 0xF1D0

// Info describes one candidate FIDO HID device.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
	SerialNumber string
}

// Enumerate lists connected HID devices whose usage page matches FIDO
// (0xF1D0).
func Enumerate() ([]Info, error) {
	devices, err := hid.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating hid devices: %w", err)
	}

	var out []Info
	for _, d := range devices {
		if d.UsagePage != fidoUsagePage {
			continue
		}
		out = append(out, Info{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Product:      d.Product,
			Manufacturer: d.Manufacturer,
			SerialNumber: d.SerialNumber,
		})
	}
	return out, nil
}
