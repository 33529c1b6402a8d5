package trezor

import (
	"context"
	"fmt"
)

// ScriptType is the device's script type enumeration.
type ScriptType string

// Script types understood by the device.
const (
	SpendAddress     ScriptType = "SPENDADDRESS"
	SpendP2SHWitness ScriptType = "SPENDP2SHWITNESS"
	SpendWitness     ScriptType = "SPENDWITNESS"
	SpendTaproot     ScriptType = "SPENDTAPROOT"
	PayToAddress     ScriptType = "PAYTOADDRESS"
	PayToP2SHWitness ScriptType = "PAYTOP2SHWITNESS"
	PayToWitness     ScriptType = "PAYTOWITNESS"
	PayToTaproot     ScriptType = "PAYTOTAPROOT"
)

// Names of the SDK methods, as exposed by the device bridge.
const (
	MethodGetFeatures     = "getFeatures"
	MethodGetPublicKey    = "getPublicKey"
	MethodSignTransaction = "signTransaction"
)

// SDK is the capability set of the device SDK this package
// drives. Implementations own the transport, and with it any
// timeout policy. A call the device already received must not
// return before the device answered.
type SDK interface {
	GetFeatures(ctx context.Context) (*Features, error)
	GetPublicKey(ctx context.Context, req *PublicKeyRequest) (*PublicKeyResponse, error)
	SignTransaction(ctx context.Context, req *SigningRequest) (*SigningResponse, error)
}

// Features describes the connected device.
type Features struct {
	Vendor               string   `json:"vendor"`
	MajorVersion         uint32   `json:"major_version"`
	MinorVersion         uint32   `json:"minor_version"`
	PatchVersion         uint32   `json:"patch_version"`
	DeviceID             string   `json:"device_id"`
	Label                string   `json:"label"`
	Model                string   `json:"model"`
	Initialized          bool     `json:"initialized"`
	PinProtection        bool     `json:"pin_protection"`
	PassphraseProtection bool     `json:"passphrase_protection"`
	Unlocked             *bool    `json:"unlocked,omitempty"`
	Capabilities         []string `json:"capabilities,omitempty"`
}

// Version returns the firmware version as major.minor.patch
func (f *Features) Version() string {
	return fmt.Sprintf("%d.%d.%d", f.MajorVersion, f.MinorVersion, f.PatchVersion)
}

// IsUnlocked returns whether the device reports itself as
// unlocked. Firmwares predating the field are considered
// unlocked once they answer.
func (f *Features) IsUnlocked() bool {
	return f.Unlocked == nil || *f.Unlocked
}

// minimum firmware versions able to sign taproot inputs
var taprootFirmware = map[string][3]uint32{
	"1": {1, 10, 4},
	"T": {2, 4, 3},
}

// SupportsTaproot returns whether the firmware can spend
// and derive taproot outputs.
func (f *Features) SupportsTaproot() bool {
	for _, capability := range f.Capabilities {
		if capability == "Capability_Taproot" {
			return true
		}
	}

	minimum, ok := taprootFirmware[f.Model]
	if !ok {
		return true
	}

	current := [3]uint32{f.MajorVersion, f.MinorVersion, f.PatchVersion}
	for i := range current {
		if current[i] != minimum[i] {
			return current[i] > minimum[i]
		}
	}
	return true
}

// PublicKeyRequest asks the device for the extended public
// key at Path.
type PublicKeyRequest struct {
	Path         []uint32 `json:"path"`
	Coin         string   `json:"coin"`
	ShowOnTrezor bool     `json:"showOnTrezor"`
}

// PublicKeyPayload holds either the key or the error reported
// by the device.
type PublicKeyPayload struct {
	XPub        string `json:"xpub,omitempty"`
	Fingerprint uint32 `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
	Code        string `json:"code,omitempty"`
}

// PublicKeyResponse is the envelope returned by GetPublicKey.
type PublicKeyResponse struct {
	Success bool             `json:"success"`
	Payload PublicKeyPayload `json:"payload"`
}

// DeviceInput is an input of a SigningRequest. Amounts are
// serialized as strings, as JSON numbers are not safe above
// 2^53 for every consumer.
type DeviceInput struct {
	AddressN   []uint32   `json:"address_n"`
	PrevIndex  uint32     `json:"prev_index"`
	PrevHash   string     `json:"prev_hash"`
	Amount     uint64     `json:"amount,string"`
	ScriptType ScriptType `json:"script_type"`
}

// DeviceOutput is an output of a SigningRequest. Exactly one
// of AddressN and Address is set.
type DeviceOutput struct {
	AddressN   []uint32   `json:"address_n,omitempty"`
	Address    string     `json:"address,omitempty"`
	Amount     uint64     `json:"amount,string"`
	ScriptType ScriptType `json:"script_type"`
}

// SigningRequest is the device signing request.
type SigningRequest struct {
	Coin    string          `json:"coin"`
	Inputs  []*DeviceInput  `json:"inputs"`
	Outputs []*DeviceOutput `json:"outputs"`
}

// SigningPayload holds either the signed transaction or the
// error reported by the device.
type SigningPayload struct {
	SerializedTx string `json:"serializedTx,omitempty"`
	Error        string `json:"error,omitempty"`
	Code         string `json:"code,omitempty"`
}

// SigningResponse is the envelope returned by SignTransaction.
type SigningResponse struct {
	Success bool           `json:"success"`
	Payload SigningPayload `json:"payload"`
}
