package wallet

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/pkg/errors"
	_assert "github.com/stretchr/testify/require"
)

func TestParseAccountType(t *testing.T) {
	fixtures := []struct {
		in       string
		expected AccountType
	}{
		{"legacy", AccountLegacy},
		{"wrappedSegwit", AccountWrappedSegwit},
		{"nativeSegwit", AccountNativeSegwit},
		{"taproot", AccountTaproot},
		{"p2pkh", AccountLegacy},
		{"p2sh-p2wpkh", AccountWrappedSegwit},
		{"p2wpkh", AccountNativeSegwit},
		{"p2tr", AccountTaproot},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.in, func(t *testing.T) {
			accountType, err := ParseAccountType(fixture.in)
			_assert.NoError(t, err)
			_assert.Equal(t, fixture.expected, accountType)
		})
	}

	for _, unknown := range []string{"", "p2wsh", "segwit", "NATIVESEGWIT"} {
		t.Run("rejects "+unknown, func(t *testing.T) {
			_, err := ParseAccountType(unknown)
			var unsupported *UnsupportedAccountTypeError
			_assert.True(t, errors.As(err, &unsupported))
			_assert.Equal(t, AccountType(unknown), unsupported.Type)
		})
	}
}

func TestAccountTypePurpose(t *testing.T) {
	expected := map[AccountType]uint32{
		AccountLegacy:        44,
		AccountWrappedSegwit: 49,
		AccountNativeSegwit:  84,
		AccountTaproot:       86,
	}
	for _, accountType := range AccountTypes {
		purpose, err := accountType.Purpose()
		_assert.NoError(t, err)
		_assert.Equal(t, expected[accountType], purpose)
	}

	_, err := AccountType("bogus").Purpose()
	_assert.EqualError(t, err, `unsupported account type "bogus"`)
}

func TestTotals(t *testing.T) {
	tx := &UnsignedTransaction{
		Inputs: []*TxInput{
			{Amount: 50000},
			{Amount: 25000},
		},
		Outputs: []*TxOutput{
			{Amount: 49000},
			{Amount: 24000},
		},
		FeeValue: 2000,
	}

	in, out, err := tx.Totals()
	_assert.NoError(t, err)
	_assert.Equal(t, uint64(75000), in)
	_assert.Equal(t, uint64(75000), out)

	t.Run("input overflow", func(t *testing.T) {
		tx := &UnsignedTransaction{
			Inputs: []*TxInput{{Amount: math.MaxUint64}, {Amount: 1}},
		}
		_, _, err := tx.Totals()
		_assert.Equal(t, ErrAmountOverflow, errors.Cause(err))
		_assert.EqualError(t, err, "input 1: amount sum overflows 64 bits")
	})

	t.Run("fee overflow", func(t *testing.T) {
		tx := &UnsignedTransaction{
			Outputs:  []*TxOutput{{Amount: math.MaxUint64}},
			FeeValue: 1,
		}
		_, _, err := tx.Totals()
		_assert.EqualError(t, err, "fee: amount sum overflows 64 bits")
	})
}

func TestTxOutputKinds(t *testing.T) {
	self := &TxOutput{AccountPath: "m/84'/0'/0'", BranchIndex: Uint32(1), AddressIndex: Uint32(0)}
	_assert.True(t, self.IsSelf())
	_assert.False(t, self.IsExternal())

	external := &TxOutput{Address: "bc1qexample"}
	_assert.False(t, external.IsSelf())
	_assert.True(t, external.IsExternal())
}

func TestUnsignedTransactionJSON(t *testing.T) {
	payload := `{
		"inputs": [{"accountPath": "m/84'/0'/0'", "branch_index": 0, "address_index": 2,
			"vout": 1, "tx_id": "abcd", "amount": 50000, "accountType": "nativeSegwit"}],
		"outputs": [{"address": "bc1qexample", "amount": 49000}],
		"feeValue": 1000
	}`

	tx := &UnsignedTransaction{}
	_assert.NoError(t, json.Unmarshal([]byte(payload), tx))
	_assert.Len(t, tx.Inputs, 1)
	_assert.Equal(t, uint32(0), *tx.Inputs[0].BranchIndex)
	_assert.Equal(t, uint32(2), *tx.Inputs[0].AddressIndex)
	_assert.Equal(t, uint32(1), *tx.Inputs[0].Vout)
	_assert.Equal(t, AccountNativeSegwit, tx.Inputs[0].AccountType)
	_assert.Nil(t, tx.Outputs[0].BranchIndex)
	_assert.Equal(t, uint64(1000), tx.FeeValue)
}

func TestFormatAmount(t *testing.T) {
	_assert.Equal(t, "0.00000000", FormatAmount(0))
	_assert.Equal(t, "0.00049000", FormatAmount(49000))
	_assert.Equal(t, "1.00000000", FormatAmount(100000000))
	_assert.Equal(t, "184467440737.09551615", FormatAmount(math.MaxUint64))
}
