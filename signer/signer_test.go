package signer

import (
	"context"
	"testing"

	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/trezor"
	"github.com/btccom/hwsigner/trezor/trezortest"
	"github.com/btccom/hwsigner/wallet"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taprootTx() *wallet.UnsignedTransaction {
	return &wallet.UnsignedTransaction{
		Inputs: []*wallet.TxInput{{
			AccountPath:  "m/86'/0'/0'",
			BranchIndex:  wallet.Uint32(0),
			AddressIndex: wallet.Uint32(0),
			Vout:         wallet.Uint32(0),
			TxID:         "abcd",
			Amount:       50000,
			AccountType:  wallet.AccountTaproot,
		}},
		Outputs: []*wallet.TxOutput{
			{Address: "bc1pexternal", Amount: 49000},
		},
		FeeValue: 1000,
	}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("Trezor")
	require.NoError(t, err)
	assert.Equal(t, KindTrezor, kind)

	_, err = ParseKind("ledger")
	assert.True(t, errors.Is(err, ErrUnknownSignerKind))
	assert.EqualError(t, err, "\"ledger\": unknown signer kind")
}

func TestNew(t *testing.T) {
	device := trezortest.NewDevice(&chaincfg.MainNetParams)

	s, err := New(KindTrezor, device, Options{Network: wallet.NetMainnet})
	require.NoError(t, err)
	assert.IsType(t, &Trezor{}, s)

	s, err = New(Kind("keystone"), device, Options{})
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrUnknownSignerKind))
}

func TestTrezorCapabilities(t *testing.T) {
	device := trezortest.NewDevice(&chaincfg.MainNetParams)
	s := NewTrezor(device, Options{Network: wallet.NetMainnet, DeviceName: "my trezor"})

	assert.False(t, s.IsConnected())
	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.IsTaprootSupported())
	assert.False(t, s.IsSigning())
	assert.False(t, s.IsFetchingXpub())

	var events []session.Event
	s.Subscribe(func(e session.Event) { events = append(events, e) })

	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())
	assert.True(t, s.IsAuthenticated())
	assert.True(t, s.IsTaprootSupported())
	require.Len(t, events, 1)
	assert.Equal(t, "my trezor", events[0].Device)

	require.NoError(t, s.ShowPasswordDialog(context.Background()))

	xpub, err := s.Xpub(context.Background(), "m/84'/0'/0'")
	require.NoError(t, err)
	assert.Equal(t, "m/84'/0'/0'", xpub.Path)

	s.Disconnect()
	assert.False(t, s.IsConnected())
	assert.False(t, s.IsTaprootSupported())
}

func TestTrezorUninitializedDevice(t *testing.T) {
	device := trezortest.NewDevice(&chaincfg.MainNetParams)
	device.Features.Initialized = false
	s := NewTrezor(device, Options{Network: wallet.NetMainnet})

	require.NoError(t, s.Connect(context.Background()))
	assert.True(t, s.IsConnected())
	assert.False(t, s.IsAuthenticated())
}

func TestTrezorTaprootFirmware(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		version  [3]uint32
		expected bool
	}{
		{"model T too old", "T", [3]uint32{2, 4, 2}, false},
		{"model T", "T", [3]uint32{2, 4, 3}, true},
		{"model one too old", "1", [3]uint32{1, 10, 3}, false},
		{"model one", "1", [3]uint32{1, 11, 1}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			device := trezortest.NewDevice(&chaincfg.MainNetParams)
			device.Features.Model = tc.model
			device.Features.MajorVersion = tc.version[0]
			device.Features.MinorVersion = tc.version[1]
			device.Features.PatchVersion = tc.version[2]

			s := NewTrezor(device, Options{Network: wallet.NetMainnet})
			require.NoError(t, s.Connect(context.Background()))
			assert.Equal(t, tc.expected, s.IsTaprootSupported())
		})
	}
}

func TestTrezorSignTaproot(t *testing.T) {
	t.Run("refused on old firmware", func(t *testing.T) {
		device := trezortest.NewDevice(&chaincfg.MainNetParams)
		device.Features.MinorVersion = 3
		s := NewTrezor(device, Options{Network: wallet.NetMainnet})
		require.NoError(t, s.Connect(context.Background()))

		_, err := s.Sign(context.Background(), taprootTx())
		var buildErr *trezor.TransactionBuildError
		require.True(t, errors.As(err, &buildErr))
		var inputErr *trezor.InvalidInputError
		require.True(t, errors.As(err, &inputErr))
		assert.Equal(t, 0, inputErr.Index)
		assert.Equal(t, 0, device.Calls(trezor.MethodSignTransaction))
	})

	t.Run("signed on recent firmware", func(t *testing.T) {
		device := trezortest.NewDevice(&chaincfg.MainNetParams)
		s := NewTrezor(device, Options{Network: wallet.NetMainnet})
		require.NoError(t, s.Connect(context.Background()))

		signed, err := s.Sign(context.Background(), taprootTx())
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), signed.FeeValue)

		requests := device.SigningRequests()
		require.Len(t, requests, 1)
		assert.Equal(t, trezor.SpendTaproot, requests[0].Inputs[0].ScriptType)
	})

	t.Run("not connected", func(t *testing.T) {
		device := trezortest.NewDevice(&chaincfg.MainNetParams)
		s := NewTrezor(device, Options{Network: wallet.NetMainnet})

		_, err := s.Sign(context.Background(), taprootTx())
		var notConnected *session.NotConnectedError
		assert.True(t, errors.As(err, &notConnected))
	})
}
