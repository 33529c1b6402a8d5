package signer

import (
	"context"

	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/trezor"
	"github.com/btccom/hwsigner/wallet"
)

// Trezor is the HardwareSigner of Trezor class devices. PIN and
// passphrase are entered on the device, or through the SDK.
type Trezor struct {
	*session.Session
}

var _ HardwareSigner = (*Trezor)(nil)

// NewTrezor returns a disconnected Trezor signer.
func NewTrezor(sdk trezor.SDK, opts Options) *Trezor {
	s := session.New(sdk, session.Config{
		Network:      opts.Network,
		DeviceName:   opts.DeviceName,
		ShowOnDevice: opts.ShowOnDevice,
		Observer:     opts.Observer,
	})

	log.Debugf("new trezor signer %v on %s", s.ID(), s.Network().Name)
	return &Trezor{Session: s}
}

// IsTaprootSupported implements HardwareSigner.
func (t *Trezor) IsTaprootSupported() bool {
	features := t.Features()
	if features == nil {
		return false
	}
	return features.SupportsTaproot()
}

// ShowPasswordDialog implements HardwareSigner. It is a no-op
// for Trezor devices.
func (t *Trezor) ShowPasswordDialog(ctx context.Context) error {
	return nil
}

// Sign implements HardwareSigner. Taproot inputs are refused
// upfront when the device firmware can't spend them.
func (t *Trezor) Sign(ctx context.Context, tx *wallet.UnsignedTransaction) (*wallet.SignedTransaction, error) {
	if t.IsConnected() && !t.IsTaprootSupported() {
		if i := taprootInput(tx); i >= 0 {
			unsupported := &wallet.UnsupportedAccountTypeError{Type: tx.Inputs[i].AccountType}
			return nil, &trezor.TransactionBuildError{
				Reason: "device firmware does not support taproot",
				Err:    &trezor.InvalidInputError{Index: i, Field: "accountType", Err: unsupported},
			}
		}
	}
	return t.Session.Sign(ctx, tx)
}

// taprootInput returns the index of the first taproot input of tx, or -1.
func taprootInput(tx *wallet.UnsignedTransaction) int {
	if tx == nil {
		return -1
	}
	for i, input := range tx.Inputs {
		if input == nil {
			continue
		}
		accountType, err := wallet.ParseAccountType(string(input.AccountType))
		if err == nil && accountType == wallet.AccountTaproot {
			return i
		}
	}
	return -1
}
