// Package signer exposes hardware signing devices to a wallet
// through a single capability set, whatever the device vendor.
package signer

import (
	"context"
	"strings"

	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/trezor"
	"github.com/btccom/hwsigner/wallet"
	"github.com/pkg/errors"
)

// ErrUnknownSignerKind is returned by New for a kind it doesn't
// implement.
var ErrUnknownSignerKind = errors.New("unknown signer kind")

// Kind identifies a signer variant.
type Kind string

const (
	// KindTrezor drives Trezor class devices through trezor.SDK.
	KindTrezor Kind = "trezor"
)

// Kinds lists the implemented signer variants.
var Kinds = []Kind{KindTrezor}

// ParseKind returns the Kind named s, ignoring case.
func ParseKind(s string) (Kind, error) {
	for _, kind := range Kinds {
		if strings.EqualFold(s, string(kind)) {
			return kind, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownSignerKind, "%q", s)
}

// HardwareSigner is the capability set a wallet relies on to
// derive its accounts and sign its transactions on a device.
type HardwareSigner interface {
	// Connect opens the session with the device.
	Connect(ctx context.Context) error

	IsConnected() bool

	// IsAuthenticated returns whether the device is connected and
	// ready to serve requests.
	IsAuthenticated() bool

	// IsTaprootSupported returns whether the connected device can
	// spend taproot inputs. It is false when nothing is connected.
	IsTaprootSupported() bool

	// Xpub returns the extended public key at path.
	Xpub(ctx context.Context, path string) (*session.XpubResult, error)

	IsFetchingXpub() bool

	// Sign has the device sign tx.
	Sign(ctx context.Context, tx *wallet.UnsignedTransaction) (*wallet.SignedTransaction, error)

	IsSigning() bool

	// ShowPasswordDialog asks the device to prompt the user for
	// its password, on devices where the application collects it.
	ShowPasswordDialog(ctx context.Context) error

	Disconnect()

	// Subscribe registers handler for the device events. The
	// returned function removes it.
	Subscribe(handler session.EventHandler) func()
}

// Options configures a HardwareSigner.
type Options struct {
	Network      string
	DeviceName   string
	ShowOnDevice bool
	Observer     session.Observer
}

// New returns the signer of the given kind driving sdk.
func New(kind Kind, sdk trezor.SDK, opts Options) (HardwareSigner, error) {
	switch kind {
	case KindTrezor:
		return NewTrezor(sdk, opts), nil
	default:
		return nil, errors.Wrapf(ErrUnknownSignerKind, "%q", kind)
	}
}
