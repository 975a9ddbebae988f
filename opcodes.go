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

// CTAP opcode map (core subset), spec.md section 6.
const (
	opMakeCredential        byte = 0x01
	opGetAssertion          byte = 0x02
	opGetInfo               byte = 0x04
	opClientPIN             byte = 0x06
	opGetNextAssertion      byte = 0x08
	opCredentialManagement  byte = 0x0A
	opSelection             byte = 0x0B
	opAuthenticatorConfig   byte = 0x0D
	opBioEnrollment         byte = 0x09
	opBioEnrollmentPreview  byte = 0x40
	opCredManagementPreview byte = 0x41
)

// ClientPIN subcommand IDs (pinUvAuthProtocol 1), spec.md section 4.5.
const (
	pinSubGetRetries                              byte = 1
	pinSubGetKeyAgreement                         byte = 2
	pinSubSetPIN                                  byte = 3
	pinSubChangePIN                                byte = 4
	pinSubGetPinToken                              byte = 5
	pinSubGetPinUvAuthTokenUsingUvWithPermissions  byte = 6
	pinSubGetUVRetries                             byte = 7
	pinSubGetPinUvAuthTokenUsingPinWithPermissions byte = 9
)

// Permission bits for the with-permissions ClientPIN variants, spec.md
// section 4.5.
const (
	PermissionMakeCredential           byte = 0x01
	PermissionGetAssertion             byte = 0x02
	PermissionCredentialManagement     byte = 0x04
	PermissionBioEnrollment            byte = 0x08
	PermissionLargeBlobWrite           byte = 0x10
	PermissionAuthenticatorConfig      byte = 0x20
)

// Credential management subcommand IDs, spec.md section 4.9.
const (
	credMgmtGetCredsMetadata                    byte = 1
	credMgmtEnumerateRPsBegin                   byte = 2
	credMgmtEnumerateRPsGetNextRP                byte = 3
	credMgmtEnumerateCredentialsBegin           byte = 4
	credMgmtEnumerateCredentialsGetNextCredential byte = 5
	credMgmtDeleteCredential                    byte = 6
	credMgmtUpdateUserInformation               byte = 7
)

// Bio enrollment subcommand IDs, spec.md section 4.10.
const (
	bioSubEnrollBegin                byte = 1
	bioSubEnrollCaptureNextSample    byte = 2
	bioSubCancelCurrentEnrollment    byte = 3
	bioSubEnumerateEnrollments       byte = 4
	bioSubSetFriendlyName            byte = 5
	bioSubRemoveEnrollment           byte = 6
	bioSubGetFingerprintSensorInfo   byte = 7

	bioModalityFingerprint byte = 1
)

// Authenticator config subcommand IDs, spec.md section 4.11.
const (
	configSubToggleAlwaysUv   byte = 2
	configSubSetMinPINLength  byte = 3
)

// COSE algorithm identifiers used by MakeCredential's pubKeyCredParams,
// spec.md section 4.6.
const (
	CoseAlgES256   int64 = -7
	CoseAlgEdDSA   int64 = -8
	CoseAlgECDHES  int64 = -25
)

// CoseKeyType values recognized when decoding a COSE_Key, spec.md section 3.
const (
	CoseKeyTypeOKP int64 = 1
	CoseKeyTypeEC2 int64 = 2
)

// CoseCrvP256 is the only EC2 curve this library accepts.
const CoseCrvP256 int64 = 1
