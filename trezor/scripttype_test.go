package trezor

import (
	"testing"

	"github.com/btccom/hwsigner/wallet"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInputType(t *testing.T) {
	fixtures := map[wallet.AccountType]ScriptType{
		wallet.AccountLegacy:        SpendAddress,
		wallet.AccountWrappedSegwit: SpendP2SHWitness,
		wallet.AccountNativeSegwit:  SpendWitness,
		wallet.AccountTaproot:       SpendTaproot,
	}

	for _, accountType := range wallet.AccountTypes {
		t.Run(string(accountType), func(t *testing.T) {
			scriptType, err := MapInputType(accountType)
			require.NoError(t, err)
			assert.Equal(t, fixtures[accountType], scriptType)

			again, err := MapInputType(accountType)
			require.NoError(t, err)
			assert.Equal(t, scriptType, again)
		})
	}
}

func TestMapOutputType(t *testing.T) {
	fixtures := map[wallet.AccountType]ScriptType{
		wallet.AccountLegacy:        PayToAddress,
		wallet.AccountWrappedSegwit: PayToP2SHWitness,
		wallet.AccountNativeSegwit:  PayToWitness,
		wallet.AccountTaproot:       PayToTaproot,
	}

	for _, accountType := range wallet.AccountTypes {
		t.Run(string(accountType), func(t *testing.T) {
			scriptType, err := MapOutputType(accountType)
			require.NoError(t, err)
			assert.Equal(t, fixtures[accountType], scriptType)

			again, err := MapOutputType(accountType)
			require.NoError(t, err)
			assert.Equal(t, scriptType, again)
		})
	}
}

func TestMapTypeRejectsUnknown(t *testing.T) {
	for _, unknown := range []wallet.AccountType{"", "p2wsh", "unknown"} {
		t.Run("input "+string(unknown), func(t *testing.T) {
			scriptType, err := MapInputType(unknown)
			assert.Empty(t, scriptType)
			var unsupported *wallet.UnsupportedAccountTypeError
			require.True(t, errors.As(err, &unsupported))
			assert.Equal(t, unknown, unsupported.Type)
		})

		t.Run("output "+string(unknown), func(t *testing.T) {
			scriptType, err := MapOutputType(unknown)
			assert.Empty(t, scriptType)
			var unsupported *wallet.UnsupportedAccountTypeError
			require.True(t, errors.As(err, &unsupported))
		})
	}
}
