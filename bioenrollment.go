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
	"fmt"

	"github.com/gravitational/ctaphid/ctapcbor"
	"github.com/gravitational/ctaphid/ctapcrypto"
)

// EnrollmentStatus enumerates the fingerprint enrollment state machine
// (spec.md section 4.10): IDLE before the first EnrollBegin, ENROLLING
// while the authenticator is still waiting on more samples, and DONE once
// enough samples have been captured to register a template.
type EnrollmentStatus int

const (
	EnrollmentIdle EnrollmentStatus = iota
	EnrollmentEnrolling
	EnrollmentDone
)

// maxEnrollSampleRetries bounds a single EnrollBegin/EnrollCaptureNextSample
// session; spec.md section 4.10 requires the cap be at least 10 so a user
// fumbling a fingerprint placement isn't stranded mid-enrollment.
const maxEnrollSampleRetries = 15

// lastSampleStatus mirrors the authenticator's lastSampleStatus codes,
// spec.md section 4.10.
const (
	SampleGood                    int64 = 0x00
	SampleTooHigh                 int64 = 0x01
	SampleTooLow                  int64 = 0x02
	SampleTooLeft                 int64 = 0x03
	SampleTooRight                int64 = 0x04
	SampleTooFast                 int64 = 0x05
	SampleTooSlow                 int64 = 0x06
	SamplePoorQuality             int64 = 0x07
	SampleTooSkewed               int64 = 0x08
	SampleTooShort                int64 = 0x09
	SampleMergeFailure            int64 = 0x0A
	SampleExists                  int64 = 0x0B
	SampleDatabaseFull            int64 = 0x0C
	SampleNoUserActivity          int64 = 0x0D
	SampleNoUserPresenceTransition int64 = 0x0E
)

// EnrollmentSample reports the outcome of one EnrollBegin/
// EnrollCaptureNextSample call.
type EnrollmentSample struct {
	TemplateID        []byte
	LastSampleStatus  int64
	RemainingSamples  int
	Status            EnrollmentStatus
}

// TemplateInfo is one entry of EnumerateEnrollments.
type TemplateInfo struct {
	TemplateID   []byte
	FriendlyName string
}

func (d *Device) bioEnrollOpcode() byte {
	if d.useLegacyBioEnroll {
		return opBioEnrollmentPreview
	}
	return opBioEnrollment
}

// sendBioEnroll issues one bio enrollment subcommand. Unlike credential
// management and authenticator config, bio enrollment's pinUvAuthParam is
// computed by the caller and passed in as pinAuth; subcommands sent without
// one (GetFingerprintSensorInfo, CancelCurrentEnrollment) pass nil, which
// also omits the pinUvAuthProtocol field.
func (d *Device) sendBioEnroll(subCommand byte, subCommandParams map[uint64]interface{}, pinAuth []byte, modality byte) (*ctapcbor.ResponseMap, error) {
	b := ctapcbor.NewMapBuilder().
		SetIf(modality != 0, 1, int64(modality)).
		Set(2, int64(subCommand)).
		SetIf(subCommandParams != nil, 3, subCommandParams)

	if pinAuth != nil {
		protocol, err := d.pinUvAuthProtocol()
		if err != nil {
			return nil, err
		}
		b.Set(4, protocol).Set(5, pinAuth)
	}

	op := d.bioEnrollOpcode()
	payload, err := b.Encode(op)
	if err != nil {
		return nil, NewCborDecodeError("bioEnrollment request", err)
	}
	return d.decodeResponse(op, payload)
}

func bioEnrollPinAuth(token ctapcrypto.Secret, subCommand byte, subCommandParams []byte) []byte {
	message := append([]byte{bioModalityFingerprint, subCommand}, subCommandParams...)
	return ctapcrypto.Authenticate(token.Bytes(), message)
}

// GetFingerprintSensorInfo reports the sensor's maximum capture samples
// required per enrollment and its maximum template friendly-name length.
func (d *Device) GetFingerprintSensorInfo() (maxCaptureSamplesRequired int, maxTemplateFriendlyName int, err error) {
	m, err := d.sendBioEnroll(bioSubGetFingerprintSensorInfo, nil, nil, bioModalityFingerprint)
	if err != nil {
		return 0, 0, err
	}
	if m.Has(3) {
		v, err := m.Int(3)
		if err != nil {
			return 0, 0, NewCborDecodeError("getFingerprintSensorInfo.maxCaptureSamplesRequiredForEnroll", err)
		}
		maxCaptureSamplesRequired = int(v)
	}
	if m.Has(8) {
		v, err := m.Int(8)
		if err != nil {
			return 0, 0, NewCborDecodeError("getFingerprintSensorInfo.maxTemplateFriendlyName", err)
		}
		maxTemplateFriendlyName = int(v)
	}
	return maxCaptureSamplesRequired, maxTemplateFriendlyName, nil
}

func sampleFromResponseMap(m *ctapcbor.ResponseMap) (*EnrollmentSample, error) {
	s := &EnrollmentSample{Status: EnrollmentEnrolling}
	if m.Has(4) {
		id, err := m.Bytes(4)
		if err != nil {
			return nil, NewCborDecodeError("enrollment.templateID", err)
		}
		s.TemplateID = id
	}
	if m.Has(5) {
		status, err := m.Int(5)
		if err != nil {
			return nil, NewCborDecodeError("enrollment.lastSampleStatus", err)
		}
		s.LastSampleStatus = status
	}
	if m.Has(6) {
		remaining, err := m.Int(6)
		if err != nil {
			return nil, NewCborDecodeError("enrollment.remainingSamples", err)
		}
		s.RemainingSamples = int(remaining)
		if s.RemainingSamples == 0 {
			s.Status = EnrollmentDone
		}
	}
	return s, nil
}

// BeginEnrollment starts a new fingerprint enrollment session, capturing
// the first sample. timeoutMS, when nonzero, bounds how long the
// authenticator waits for the user to present a finger.
func (d *Device) BeginEnrollment(token ctapcrypto.Secret, timeoutMS int) (*EnrollmentSample, error) {
	params := map[uint64]interface{}{}
	if timeoutMS > 0 {
		params[3] = int64(timeoutMS)
	}
	var paramsForAuth map[uint64]interface{}
	var paramsCBOR []byte
	if len(params) > 0 {
		paramsForAuth = params
		encoded, err := ctapcbor.Marshal(paramsForAuth)
		if err != nil {
			return nil, NewCborDecodeError("enrollBegin params", err)
		}
		paramsCBOR = encoded
	}
	pinAuth := bioEnrollPinAuth(token, bioSubEnrollBegin, paramsCBOR)

	m, err := d.sendBioEnroll(bioSubEnrollBegin, paramsForAuth, pinAuth, bioModalityFingerprint)
	if err != nil {
		return nil, err
	}
	return sampleFromResponseMap(m)
}

// CaptureNextSample captures the next sample of an in-progress enrollment
// identified by templateID, bounded to maxEnrollSampleRetries calls per
// session by the caller's own retry loop.
func (d *Device) CaptureNextSample(token ctapcrypto.Secret, templateID []byte, timeoutMS int) (*EnrollmentSample, error) {
	params := map[uint64]interface{}{1: templateID}
	if timeoutMS > 0 {
		params[3] = int64(timeoutMS)
	}
	paramsCBOR, err := ctapcbor.Marshal(params)
	if err != nil {
		return nil, NewCborDecodeError("enrollCaptureNextSample params", err)
	}
	pinAuth := bioEnrollPinAuth(token, bioSubEnrollCaptureNextSample, paramsCBOR)

	m, err := d.sendBioEnroll(bioSubEnrollCaptureNextSample, params, pinAuth, bioModalityFingerprint)
	if err != nil {
		return nil, err
	}
	return sampleFromResponseMap(m)
}

// EnrollFingerprint drives BeginEnrollment followed by CaptureNextSample
// until the authenticator reports zero remaining samples, bounded by
// maxEnrollSampleRetries total captures.
func (d *Device) EnrollFingerprint(token ctapcrypto.Secret, timeoutMS int) (*EnrollmentSample, error) {
	sample, err := d.BeginEnrollment(token, timeoutMS)
	if err != nil {
		return nil, err
	}
	for i := 0; sample.Status != EnrollmentDone; i++ {
		if i >= maxEnrollSampleRetries {
			return nil, fmt.Errorf("fingerprint enrollment did not complete within %d samples", maxEnrollSampleRetries)
		}
		sample, err = d.CaptureNextSample(token, sample.TemplateID, timeoutMS)
		if err != nil {
			return nil, err
		}
	}
	return sample, nil
}

// CancelCurrentEnrollment aborts an in-progress EnrollBegin/
// EnrollCaptureNextSample session.
func (d *Device) CancelCurrentEnrollment() error {
	_, err := d.sendBioEnroll(bioSubCancelCurrentEnrollment, nil, nil, bioModalityFingerprint)
	return err
}

// EnumerateEnrollments lists every enrolled fingerprint template.
func (d *Device) EnumerateEnrollments(token ctapcrypto.Secret) ([]TemplateInfo, error) {
	pinAuth := bioEnrollPinAuth(token, bioSubEnumerateEnrollments, nil)
	m, err := d.sendBioEnroll(bioSubEnumerateEnrollments, nil, pinAuth, bioModalityFingerprint)
	if err != nil {
		if IsNoCredentials(err) {
			return nil, nil
		}
		return nil, err
	}
	if !m.Has(7) {
		return nil, nil
	}
	var entries []struct {
		TemplateID   []byte `cbor:"1,keyasint"`
		FriendlyName string `cbor:"2,keyasint"`
	}
	raw, err := m.Raw(7)
	if err != nil {
		return nil, NewCborDecodeError("enumerateEnrollments.templateInfos", err)
	}
	if err := ctapcbor.DecodeInto(raw, &entries); err != nil {
		return nil, NewCborDecodeError("enumerateEnrollments.templateInfos", err)
	}
	out := make([]TemplateInfo, len(entries))
	for i, e := range entries {
		out[i] = TemplateInfo{TemplateID: e.TemplateID, FriendlyName: e.FriendlyName}
	}
	return out, nil
}

// SetFriendlyName assigns a human-readable label to an enrolled template.
func (d *Device) SetFriendlyName(token ctapcrypto.Secret, templateID []byte, friendlyName string) error {
	params := map[uint64]interface{}{
		1: templateID,
		2: friendlyName,
	}
	paramsCBOR, err := ctapcbor.Marshal(params)
	if err != nil {
		return NewCborDecodeError("setFriendlyName params", err)
	}
	pinAuth := bioEnrollPinAuth(token, bioSubSetFriendlyName, paramsCBOR)
	_, err = d.sendBioEnroll(bioSubSetFriendlyName, params, pinAuth, bioModalityFingerprint)
	return err
}

// RemoveEnrollment deletes one enrolled fingerprint template.
func (d *Device) RemoveEnrollment(token ctapcrypto.Secret, templateID []byte) error {
	params := map[uint64]interface{}{1: templateID}
	paramsCBOR, err := ctapcbor.Marshal(params)
	if err != nil {
		return NewCborDecodeError("removeEnrollment params", err)
	}
	pinAuth := bioEnrollPinAuth(token, bioSubRemoveEnrollment, paramsCBOR)
	_, err = d.sendBioEnroll(bioSubRemoveEnrollment, params, pinAuth, bioModalityFingerprint)
	return err
}
