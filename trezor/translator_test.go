package trezor

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"testing"

	"github.com/btccom/hwsigner/bip32util"
	"github.com/btccom/hwsigner/wallet"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signedTxFixture serializes a small transaction, returning
// its hex encoding and id.
func signedTxFixture(t *testing.T) (string, string) {
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
	require.NoError(t, tx.Serialize(&buf))

	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String()
}

func selfInput() *wallet.TxInput {
	return &wallet.TxInput{
		AccountPath:  "m/84'/0'/0'",
		BranchIndex:  wallet.Uint32(0),
		AddressIndex: wallet.Uint32(2),
		Vout:         wallet.Uint32(1),
		TxID:         "abcd",
		Amount:       50000,
		AccountType:  wallet.AccountNativeSegwit,
	}
}

func TestBuildSigningRequestEndToEnd(t *testing.T) {
	tx := &wallet.UnsignedTransaction{
		Inputs: []*wallet.TxInput{selfInput()},
		Outputs: []*wallet.TxOutput{
			{Address: "bc1q...", Amount: 49000},
		},
		FeeValue: 1000,
	}

	req, err := BuildSigningRequest(tx, wallet.NetMainnet)
	require.NoError(t, err)

	assert.Equal(t, CoinBitcoin, req.Coin)
	require.Len(t, req.Inputs, 1)
	assert.Equal(t, &DeviceInput{
		AddressN:   []uint32{2147483732, 2147483648, 2147483648, 0, 2},
		PrevIndex:  1,
		PrevHash:   "abcd",
		Amount:     50000,
		ScriptType: SpendWitness,
	}, req.Inputs[0])

	require.Len(t, req.Outputs, 1)
	assert.Equal(t, &DeviceOutput{
		Address:    "bc1q...",
		Amount:     49000,
		ScriptType: PayToAddress,
	}, req.Outputs[0])
}

func TestBuildSigningRequestSelfOutput(t *testing.T) {
	input := selfInput()
	input.AccountPath = "m/84'/1'/0'"

	tx := &wallet.UnsignedTransaction{
		Inputs: []*wallet.TxInput{input},
		Outputs: []*wallet.TxOutput{
			{Address: "tb1qexternal", Amount: 30000},
			{
				AccountPath:  "m/49'/1'/0'",
				BranchIndex:  wallet.Uint32(1),
				AddressIndex: wallet.Uint32(4),
				Amount:       19000,
				AccountType:  wallet.AccountWrappedSegwit,
			},
		},
		FeeValue: 1000,
	}

	req, err := BuildSigningRequest(tx, wallet.NetTestnet)
	require.NoError(t, err)

	assert.Equal(t, CoinTestnet, req.Coin)
	assert.Equal(t, &DeviceOutput{
		AddressN:   []uint32{0x80000031, 0x80000001, 0x80000000, 1, 4},
		Amount:     19000,
		ScriptType: PayToP2SHWitness,
	}, req.Outputs[1])
}

func TestBuildSigningRequestAccountTypeAliases(t *testing.T) {
	input := selfInput()
	input.AccountPath = "m/86'/0'/0'"
	input.AccountType = "p2tr"

	tx := &wallet.UnsignedTransaction{
		Inputs: []*wallet.TxInput{input},
		Outputs: []*wallet.TxOutput{{
			AccountPath:  "m/84'/0'/0'",
			BranchIndex:  wallet.Uint32(1),
			AddressIndex: wallet.Uint32(0),
			Amount:       49000,
			AccountType:  "p2wpkh",
		}},
		FeeValue: 1000,
	}

	req, err := BuildSigningRequest(tx, wallet.NetMainnet)
	require.NoError(t, err)
	assert.Equal(t, SpendTaproot, req.Inputs[0].ScriptType)
	assert.Equal(t, PayToWitness, req.Outputs[0].ScriptType)
}

func TestCoinForNetwork(t *testing.T) {
	assert.Equal(t, "btc", CoinForNetwork(wallet.NetMainnet))
	assert.Equal(t, "test", CoinForNetwork(wallet.NetTestnet))
	assert.Equal(t, "test", CoinForNetwork(wallet.NetRegtest))
	assert.Equal(t, "test", CoinForNetwork(""))
	assert.Equal(t, "test", CoinForNetwork("mainnet"))
}

func TestBuildSigningRequestInputErrors(t *testing.T) {
	fixtures := []struct {
		name   string
		mutate func(in *wallet.TxInput)
		field  string
	}{
		{"accountPath", func(in *wallet.TxInput) { in.AccountPath = "" }, "accountPath"},
		{"branch", func(in *wallet.TxInput) { in.BranchIndex = nil }, "branch_index"},
		{"address", func(in *wallet.TxInput) { in.AddressIndex = nil }, "address_index"},
		{"vout", func(in *wallet.TxInput) { in.Vout = nil }, "vout"},
		{"txid", func(in *wallet.TxInput) { in.TxID = "" }, "tx_id"},
		{"accountType", func(in *wallet.TxInput) { in.AccountType = "" }, "accountType"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			second := selfInput()
			fixture.mutate(second)
			tx := &wallet.UnsignedTransaction{
				Inputs:  []*wallet.TxInput{selfInput(), second},
				Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
			}

			req, err := BuildSigningRequest(tx, wallet.NetMainnet)
			assert.Nil(t, req)
			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, 1, invalid.Index)
			assert.Equal(t, fixture.field, invalid.Field)
			assert.EqualError(t, err, "invalid input 1: missing "+fixture.field)
		})
	}

	t.Run("zero amount", func(t *testing.T) {
		in := selfInput()
		in.Amount = 0
		tx := &wallet.UnsignedTransaction{
			Inputs:  []*wallet.TxInput{in},
			Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
		}

		_, err := BuildSigningRequest(tx, wallet.NetMainnet)
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "amount", invalid.Field)
		assert.True(t, errors.Is(err, ErrAmountNotPositive))
		assert.EqualError(t, err, "invalid input 0: amount: must be positive")
	})

	t.Run("malformed account path", func(t *testing.T) {
		in := selfInput()
		in.AccountPath = "m/84'/zero'/0'"
		tx := &wallet.UnsignedTransaction{
			Inputs:  []*wallet.TxInput{in},
			Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
		}

		_, err := BuildSigningRequest(tx, wallet.NetMainnet)
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		var malformed *bip32util.MalformedPathError
		assert.True(t, errors.As(err, &malformed))
	})

	t.Run("unsupported account type", func(t *testing.T) {
		in := selfInput()
		in.AccountType = "p2wsh"
		tx := &wallet.UnsignedTransaction{
			Inputs:  []*wallet.TxInput{in},
			Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
		}

		_, err := BuildSigningRequest(tx, wallet.NetMainnet)
		var unsupported *wallet.UnsupportedAccountTypeError
		assert.True(t, errors.As(err, &unsupported))
	})

	t.Run("hardened-range address index", func(t *testing.T) {
		in := selfInput()
		in.AddressIndex = wallet.Uint32(1 << 31)
		tx := &wallet.UnsignedTransaction{
			Inputs:  []*wallet.TxInput{in},
			Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
		}

		_, err := BuildSigningRequest(tx, wallet.NetMainnet)
		assert.True(t, errors.Is(err, bip32util.ErrIndexOutOfRange))
	})
}

func TestBuildSigningRequestPathConventions(t *testing.T) {
	fixtures := []struct {
		name        string
		network     string
		accountPath string
		accountType wallet.AccountType
		err         string
	}{
		{"purpose", wallet.NetMainnet, "m/44'/0'/0'", wallet.AccountNativeSegwit, "m/44'/0'/0'/0/2 is not below m/84'/0' on Mainnet"},
		{"mainnet coin on testnet", wallet.NetTestnet, "m/84'/0'/0'", wallet.AccountNativeSegwit, "m/84'/0'/0'/0/2 is not below m/84'/1' on Testnet"},
		{"testnet coin on mainnet", wallet.NetMainnet, "m/49'/1'/0'", wallet.AccountWrappedSegwit, "m/49'/1'/0'/0/2 is not below m/49'/0' on Mainnet"},
		{"unhardened purpose", wallet.NetMainnet, "m/84/0'/0'", wallet.AccountNativeSegwit, "m/84/0'/0'/0/2 is not below m/84'/0' on Mainnet"},
		{"too shallow", wallet.NetMainnet, "m/84'", wallet.AccountNativeSegwit, "m/84'/0/2 is not below m/84'/0' on Mainnet"},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			in := selfInput()
			in.AccountPath = fixture.accountPath
			in.AccountType = fixture.accountType
			tx := &wallet.UnsignedTransaction{
				Inputs:  []*wallet.TxInput{in},
				Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}},
			}

			_, err := BuildSigningRequest(tx, fixture.network)
			var invalid *InvalidInputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, "accountPath", invalid.Field)
			assert.True(t, errors.Is(err, ErrUnconventionalPath))
			assert.Contains(t, err.Error(), fixture.err)
		})
	}

	t.Run("self output", func(t *testing.T) {
		tx := &wallet.UnsignedTransaction{
			Inputs: []*wallet.TxInput{selfInput()},
			Outputs: []*wallet.TxOutput{{
				AccountPath:  "m/86'/0'/0'",
				BranchIndex:  wallet.Uint32(1),
				AddressIndex: wallet.Uint32(0),
				Amount:       1000,
				AccountType:  wallet.AccountNativeSegwit,
			}},
		}

		_, err := BuildSigningRequest(tx, wallet.NetMainnet)
		var invalid *InvalidOutputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, 0, invalid.Index)
		assert.Equal(t, "invalid derivation path", invalid.Reason)
		assert.True(t, errors.Is(err, ErrUnconventionalPath))
	})

	t.Run("regtest shares the testnet coin type", func(t *testing.T) {
		in := selfInput()
		in.AccountPath = "m/84'/1'/7'"
		tx := &wallet.UnsignedTransaction{
			Inputs:  []*wallet.TxInput{in},
			Outputs: []*wallet.TxOutput{{Address: "bcrt1q...", Amount: 1000}},
		}

		req, err := BuildSigningRequest(tx, wallet.NetRegtest)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0x80000054, 0x80000001, 0x80000007, 0, 2}, req.Inputs[0].AddressN)
	})
}

func TestBuildSigningRequestOutputErrors(t *testing.T) {
	t.Run("address and path is ambiguous", func(t *testing.T) {
		tx := &wallet.UnsignedTransaction{
			Inputs: []*wallet.TxInput{selfInput()},
			Outputs: []*wallet.TxOutput{{
				Address:      "bc1q...",
				AccountPath:  "m/84'/0'/0'",
				BranchIndex:  wallet.Uint32(1),
				AddressIndex: wallet.Uint32(0),
				Amount:       49000,
			}},
		}

		req, err := BuildSigningRequest(tx, wallet.NetMainnet)
		assert.Nil(t, req)
		var ambiguous *AmbiguousOutputError
		require.True(t, errors.As(err, &ambiguous))
		assert.Equal(t, 0, ambiguous.Index)
	})

	fixtures := []struct {
		name   string
		output *wallet.TxOutput
		reason string
	}{
		{"neither", &wallet.TxOutput{Amount: 1000}, "output has neither an address nor a derivation path"},
		{"nil", nil, "missing output"},
		{
			"self without type",
			&wallet.TxOutput{AccountPath: "m/84'/0'/0'", BranchIndex: wallet.Uint32(1), AddressIndex: wallet.Uint32(0), Amount: 1000},
			"self output is missing accountType",
		},
		{
			"self without branch",
			&wallet.TxOutput{AccountPath: "m/84'/0'/0'", AddressIndex: wallet.Uint32(0), Amount: 1000, AccountType: wallet.AccountNativeSegwit},
			"self output is missing branch_index",
		},
		{
			"indices without path",
			&wallet.TxOutput{BranchIndex: wallet.Uint32(1), AddressIndex: wallet.Uint32(0), Amount: 1000, AccountType: wallet.AccountNativeSegwit},
			"self output is missing accountPath",
		},
		{
			"external with type",
			&wallet.TxOutput{Address: "bc1q...", Amount: 1000, AccountType: wallet.AccountNativeSegwit},
			"external output must not carry an account type",
		},
		{
			"self with unknown type",
			&wallet.TxOutput{AccountPath: "m/84'/0'/0'", BranchIndex: wallet.Uint32(1), AddressIndex: wallet.Uint32(0), Amount: 1000, AccountType: "bogus"},
			"invalid account type",
		},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			tx := &wallet.UnsignedTransaction{
				Inputs:  []*wallet.TxInput{selfInput()},
				Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1000}, fixture.output},
			}

			req, err := BuildSigningRequest(tx, wallet.NetMainnet)
			assert.Nil(t, req)
			var invalid *InvalidOutputError
			require.True(t, errors.As(err, &invalid))
			assert.Equal(t, 1, invalid.Index)
			assert.Equal(t, fixture.reason, invalid.Reason)
		})
	}
}

func TestBuildSigningRequestTransactionErrors(t *testing.T) {
	fixtures := []struct {
		name string
		tx   *wallet.UnsignedTransaction
		msg  string
	}{
		{"nil", nil, "cannot build signing request: missing transaction"},
		{
			"no inputs",
			&wallet.UnsignedTransaction{Outputs: []*wallet.TxOutput{{Address: "bc1q...", Amount: 1}}},
			"cannot build signing request: transaction has no inputs",
		},
		{
			"no outputs",
			&wallet.UnsignedTransaction{Inputs: []*wallet.TxInput{selfInput()}},
			"cannot build signing request: transaction has no outputs",
		},
		{
			"overflow",
			&wallet.UnsignedTransaction{
				Inputs:   []*wallet.TxInput{selfInput()},
				Outputs:  []*wallet.TxOutput{{Address: "bc1q...", Amount: math.MaxUint64}},
				FeeValue: 1000,
			},
			"cannot build signing request: invalid amounts: fee: amount sum overflows 64 bits",
		},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			req, err := BuildSigningRequest(fixture.tx, wallet.NetMainnet)
			assert.Nil(t, req)
			var buildErr *TransactionBuildError
			require.True(t, errors.As(err, &buildErr))
			assert.EqualError(t, err, fixture.msg)
		})
	}
}

func TestSigningRequestJSON(t *testing.T) {
	req := &SigningRequest{
		Coin: CoinBitcoin,
		Inputs: []*DeviceInput{{
			AddressN:   []uint32{2147483732, 2147483648, 2147483648, 0, 2},
			PrevIndex:  1,
			PrevHash:   "abcd",
			Amount:     math.MaxUint64,
			ScriptType: SpendWitness,
		}},
		Outputs: []*DeviceOutput{{Address: "bc1q...", Amount: 49000, ScriptType: PayToAddress}},
	}

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"coin": "btc",
		"inputs": [{"address_n": [2147483732, 2147483648, 2147483648, 0, 2], "prev_index": 1,
			"prev_hash": "abcd", "amount": "18446744073709551615", "script_type": "SPENDWITNESS"}],
		"outputs": [{"address": "bc1q...", "amount": "49000", "script_type": "PAYTOADDRESS"}]
	}`, string(raw))
}

func TestParseSigningResponse(t *testing.T) {
	serializedTx, txID := signedTxFixture(t)

	t.Run("rejection carries the device reason", func(t *testing.T) {
		resp := &SigningResponse{Success: false, Payload: SigningPayload{Error: "denied"}}
		signed, err := ParseSigningResponse(resp, 1000)
		assert.Nil(t, signed)
		var rejected *SigningRejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "denied", rejected.Reason)
		assert.EqualError(t, err, "device rejected signing request: denied")
	})

	t.Run("success keeps the caller fee", func(t *testing.T) {
		resp := &SigningResponse{Success: true, Payload: SigningPayload{SerializedTx: serializedTx}}
		signed, err := ParseSigningResponse(resp, 1000)
		require.NoError(t, err)
		assert.Equal(t, &wallet.SignedTransaction{
			SerializedTx: serializedTx,
			FeeValue:     1000,
			TxID:         txID,
		}, signed)
	})

	t.Run("malformed transaction is rejected", func(t *testing.T) {
		for _, bad := range []string{"", "zz", "0100", serializedTx + "00"} {
			resp := &SigningResponse{Success: true, Payload: SigningPayload{SerializedTx: bad}}
			_, err := ParseSigningResponse(resp, 1000)
			var rejected *SigningRejectedError
			require.True(t, errors.As(err, &rejected), bad)
			assert.Equal(t, "malformed signed transaction", rejected.Reason)
		}
	})

	t.Run("trailing bytes are reported", func(t *testing.T) {
		resp := &SigningResponse{Success: true, Payload: SigningPayload{SerializedTx: serializedTx + "0000"}}
		_, err := ParseSigningResponse(resp, 1000)
		assert.EqualError(t, err, "device rejected signing request: malformed signed transaction: 2 trailing bytes after the transaction")
	})

	t.Run("nil response", func(t *testing.T) {
		_, err := ParseSigningResponse(nil, 1000)
		var rejected *SigningRejectedError
		assert.True(t, errors.As(err, &rejected))
	})
}
