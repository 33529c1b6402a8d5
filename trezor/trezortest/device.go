// Package trezortest provides an in-memory device implementing
// trezor.SDK, for use in tests.
package trezortest

import (
	"bytes"
	"context"
	"encoding/hex"
	"sync"

	"github.com/btccom/hwsigner/trezor"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/hdkeychain"
)

// Seed is the seed the device keys are derived from.
var Seed = bytes.Repeat([]byte{0x42}, 32)

// Device is a device that derives keys from Seed and answers
// signing requests with SignedTx. Behaviour is tuned through its
// exported fields, which must be set before the device is used.
type Device struct {
	Features *trezor.Features

	FeaturesErr  error
	PublicKeyErr error
	SignErr      error

	// Rejections are reported as unsuccessful responses.
	PublicKeyRejection string
	SignRejection      string

	// WrongFingerprint makes GetPublicKey report a fingerprint that
	// doesn't match the key.
	WrongFingerprint bool

	SignedTx string

	master *hdkeychain.ExtendedKey

	mtx      sync.Mutex
	calls    map[string]int
	requests []*trezor.SigningRequest
	hold     chan struct{}
	entered  chan string
}

// NewDevice returns an unlocked model T device holding keys
// for params.
func NewDevice(params *chaincfg.Params) *Device {
	master, err := hdkeychain.NewMaster(Seed, params)
	if err != nil {
		panic(err)
	}

	signedTx, _ := SignedTransaction()

	return &Device{
		Features: &trezor.Features{
			Vendor:       "trezor.io",
			MajorVersion: 2,
			MinorVersion: 5,
			PatchVersion: 3,
			DeviceID:     "A1B2C3D4E5F6",
			Label:        "test device",
			Model:        "T",
			Initialized:  true,
		},
		SignedTx: signedTx,
		master:   master,
		calls:    make(map[string]int),
	}
}

// SignedTransaction returns the hex encoding and the id of the
// transaction a Device signs by default.
func SignedTransaction() (string, string) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: 1},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(&wire.TxOut{
		Value:    49000,
		PkScript: append([]byte{0x00, 0x14}, bytes.Repeat([]byte{0x42}, 20)...),
	})

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		panic(err)
	}

	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String()
}

// Xpub derives the extended public key at path, along with the
// fingerprint of its parent.
func (d *Device) Xpub(path []uint32) (string, uint32, error) {
	key := d.master
	for _, sequence := range path {
		child, err := key.Child(sequence)
		if err != nil {
			return "", 0, err
		}
		key = child
	}

	pub, err := key.Neuter()
	if err != nil {
		return "", 0, err
	}

	return pub.String(), pub.ParentFingerprint(), nil
}

// Hold makes every following call block until release is
// called. The name of each blocked method is sent on entered.
func (d *Device) Hold() (<-chan string, func()) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	hold := make(chan struct{})
	entered := make(chan string, 16)
	d.hold, d.entered = hold, entered

	var once sync.Once
	return entered, func() {
		once.Do(func() {
			d.mtx.Lock()
			d.hold, d.entered = nil, nil
			d.mtx.Unlock()
			close(hold)
		})
	}
}

// Calls returns how many times method was invoked.
func (d *Device) Calls(method string) int {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return d.calls[method]
}

// SigningRequests returns the signing requests received so far.
func (d *Device) SigningRequests() []*trezor.SigningRequest {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	return append([]*trezor.SigningRequest(nil), d.requests...)
}

// enter records a call to method. A context done before the call
// is refused, once entered the call runs to completion like a
// device waiting on its user would.
func (d *Device) enter(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mtx.Lock()
	d.calls[method]++
	hold, entered := d.hold, d.entered
	d.mtx.Unlock()

	if hold != nil {
		entered <- method
		<-hold
	}
	return nil
}

// GetFeatures implements trezor.SDK.
func (d *Device) GetFeatures(ctx context.Context) (*trezor.Features, error) {
	if err := d.enter(ctx, trezor.MethodGetFeatures); err != nil {
		return nil, err
	}
	if d.FeaturesErr != nil {
		return nil, d.FeaturesErr
	}

	features := *d.Features
	return &features, nil
}

// GetPublicKey implements trezor.SDK.
func (d *Device) GetPublicKey(ctx context.Context, req *trezor.PublicKeyRequest) (*trezor.PublicKeyResponse, error) {
	if err := d.enter(ctx, trezor.MethodGetPublicKey); err != nil {
		return nil, err
	}
	if d.PublicKeyErr != nil {
		return nil, d.PublicKeyErr
	}
	if d.PublicKeyRejection != "" {
		return &trezor.PublicKeyResponse{
			Payload: trezor.PublicKeyPayload{Error: d.PublicKeyRejection, Code: "Failure_ActionCancelled"},
		}, nil
	}

	xpub, fingerprint, err := d.Xpub(req.Path)
	if err != nil {
		return &trezor.PublicKeyResponse{
			Payload: trezor.PublicKeyPayload{Error: err.Error(), Code: "Failure_DataError"},
		}, nil
	}
	if d.WrongFingerprint {
		fingerprint++
	}

	return &trezor.PublicKeyResponse{
		Success: true,
		Payload: trezor.PublicKeyPayload{XPub: xpub, Fingerprint: fingerprint},
	}, nil
}

// SignTransaction implements trezor.SDK.
func (d *Device) SignTransaction(ctx context.Context, req *trezor.SigningRequest) (*trezor.SigningResponse, error) {
	if err := d.enter(ctx, trezor.MethodSignTransaction); err != nil {
		return nil, err
	}

	d.mtx.Lock()
	d.requests = append(d.requests, req)
	d.mtx.Unlock()

	if d.SignErr != nil {
		return nil, d.SignErr
	}
	if d.SignRejection != "" {
		return &trezor.SigningResponse{
			Payload: trezor.SigningPayload{Error: d.SignRejection, Code: "Failure_ActionCancelled"},
		}, nil
	}

	return &trezor.SigningResponse{
		Success: true,
		Payload: trezor.SigningPayload{SerializedTx: d.SignedTx},
	}, nil
}
