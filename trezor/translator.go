package trezor

import (
	"bytes"
	"encoding/hex"

	"github.com/btccom/hwsigner/bip32util"
	"github.com/btccom/hwsigner/wallet"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/pkg/errors"
)

var (
	// ErrAmountNotPositive is the cause reported for inputs
	// spending nothing.
	ErrAmountNotPositive = errors.New("must be positive")

	// ErrUnconventionalPath is the cause reported for account
	// paths the device would refuse to sign with: their purpose
	// must match the account type and their coin type the network.
	ErrUnconventionalPath = errors.New("path doesn't match the account type and network")
)

const (
	// CoinBitcoin is the device coin code for the bitcoin network
	CoinBitcoin = "btc"

	// CoinTestnet is the device coin code for every test network
	CoinTestnet = "test"
)

// CoinForNetwork maps a wallet network to the device coin code.
// Anything but mainnet is a test network: a wrong guess makes the
// device refuse the request, it can't redirect funds.
func CoinForNetwork(network string) string {
	if network == wallet.NetMainnet {
		return CoinBitcoin
	}
	return CoinTestnet
}

// DerivePath builds the full derivation path of an address out
// of its account path, branch and address index.
func DerivePath(accountPath string, branchIndex, addressIndex uint32) (*bip32util.Path, error) {
	account, err := bip32util.Encode(accountPath)
	if err != nil {
		return nil, err
	}

	branch, err := account.Child(branchIndex, false)
	if err != nil {
		return nil, errors.Wrap(err, "invalid branch index")
	}

	address, err := branch.Child(addressIndex, false)
	if err != nil {
		return nil, errors.Wrap(err, "invalid address index")
	}

	return address, nil
}

// checkAccountPath checks that path lies below
// m/purpose'/coin_type' of accountType and network.
func checkAccountPath(path *bip32util.Path, accountType wallet.AccountType, network *wallet.Network) error {
	parsed, err := wallet.ParseAccountType(string(accountType))
	if err != nil {
		return err
	}
	purpose, err := parsed.Purpose()
	if err != nil {
		return err
	}

	prefix, err := bip32util.PathFromDeviceFormat([]uint32{
		hdkeychain.HardenedKeyStart + purpose,
		hdkeychain.HardenedKeyStart + network.CoinType,
	})
	if err != nil {
		return err
	}

	if !prefix.IsContainedIn(path) {
		return errors.Wrapf(ErrUnconventionalPath, "%s is not below %s on %s", path, prefix, network.Name)
	}
	return nil
}

// BuildSigningRequest translates tx into the device signing
// request. The whole transaction is validated first, nothing is
// returned unless every input and output could be translated.
func BuildSigningRequest(tx *wallet.UnsignedTransaction, network string) (*SigningRequest, error) {
	if tx == nil {
		return nil, &TransactionBuildError{Reason: "missing transaction"}
	}
	if len(tx.Inputs) == 0 {
		return nil, &TransactionBuildError{Reason: "transaction has no inputs"}
	}
	if len(tx.Outputs) == 0 {
		return nil, &TransactionBuildError{Reason: "transaction has no outputs"}
	}
	if _, _, err := tx.Totals(); err != nil {
		return nil, &TransactionBuildError{Reason: "invalid amounts", Err: err}
	}

	net := wallet.NetworkOrTestnet(network)

	inputs := make([]*DeviceInput, len(tx.Inputs))
	for i, input := range tx.Inputs {
		in, err := buildInput(i, input, net)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}

	outputs := make([]*DeviceOutput, len(tx.Outputs))
	for i, output := range tx.Outputs {
		out, err := buildOutput(i, output, net)
		if err != nil {
			return nil, err
		}
		outputs[i] = out
	}

	return &SigningRequest{
		Coin:    CoinForNetwork(network),
		Inputs:  inputs,
		Outputs: outputs,
	}, nil
}

func missingInputField(input *wallet.TxInput) string {
	switch {
	case input.AccountPath == "":
		return "accountPath"
	case input.BranchIndex == nil:
		return "branch_index"
	case input.AddressIndex == nil:
		return "address_index"
	case input.Vout == nil:
		return "vout"
	case input.TxID == "":
		return "tx_id"
	case input.AccountType == "":
		return "accountType"
	}
	return ""
}

func buildInput(index int, input *wallet.TxInput, network *wallet.Network) (*DeviceInput, error) {
	if input == nil {
		return nil, &InvalidInputError{Index: index, Field: "input"}
	}
	if field := missingInputField(input); field != "" {
		return nil, &InvalidInputError{Index: index, Field: field}
	}
	if input.Amount == 0 {
		return nil, &InvalidInputError{Index: index, Field: "amount", Err: ErrAmountNotPositive}
	}

	path, err := DerivePath(input.AccountPath, *input.BranchIndex, *input.AddressIndex)
	if err != nil {
		return nil, &InvalidInputError{Index: index, Field: "accountPath", Err: err}
	}

	scriptType, err := inputScriptType(input.AccountType)
	if err != nil {
		return nil, &InvalidInputError{Index: index, Field: "accountType", Err: err}
	}

	if err := checkAccountPath(path, input.AccountType, network); err != nil {
		return nil, &InvalidInputError{Index: index, Field: "accountPath", Err: err}
	}

	return &DeviceInput{
		AddressN:   path.DeviceFormat(),
		PrevIndex:  *input.Vout,
		PrevHash:   input.TxID,
		Amount:     input.Amount,
		ScriptType: scriptType,
	}, nil
}

func buildOutput(index int, output *wallet.TxOutput, network *wallet.Network) (*DeviceOutput, error) {
	if output == nil {
		return nil, &InvalidOutputError{Index: index, Reason: "missing output"}
	}

	// IsSelf only looks at the account path, a lone index is
	// enough to rule out an external output
	hasPath := output.IsSelf() || output.BranchIndex != nil || output.AddressIndex != nil
	hasAddress := output.IsExternal()

	switch {
	case hasPath && hasAddress:
		return nil, &AmbiguousOutputError{Index: index}
	case !hasPath && !hasAddress:
		return nil, &InvalidOutputError{Index: index, Reason: "output has neither an address nor a derivation path"}
	case hasAddress:
		return buildExternalOutput(index, output)
	default:
		return buildSelfOutput(index, output, network)
	}
}

// the address is passed through, the device validates it
func buildExternalOutput(index int, output *wallet.TxOutput) (*DeviceOutput, error) {
	if output.AccountType != "" {
		return nil, &InvalidOutputError{Index: index, Reason: "external output must not carry an account type"}
	}

	return &DeviceOutput{
		Address:    output.Address,
		Amount:     output.Amount,
		ScriptType: PayToAddress,
	}, nil
}

func buildSelfOutput(index int, output *wallet.TxOutput, network *wallet.Network) (*DeviceOutput, error) {
	switch {
	case output.AccountPath == "":
		return nil, &InvalidOutputError{Index: index, Reason: "self output is missing accountPath"}
	case output.BranchIndex == nil:
		return nil, &InvalidOutputError{Index: index, Reason: "self output is missing branch_index"}
	case output.AddressIndex == nil:
		return nil, &InvalidOutputError{Index: index, Reason: "self output is missing address_index"}
	case output.AccountType == "":
		return nil, &InvalidOutputError{Index: index, Reason: "self output is missing accountType"}
	}

	path, err := DerivePath(output.AccountPath, *output.BranchIndex, *output.AddressIndex)
	if err != nil {
		return nil, &InvalidOutputError{Index: index, Reason: "invalid derivation path", Err: err}
	}

	scriptType, err := outputScriptType(output.AccountType)
	if err != nil {
		return nil, &InvalidOutputError{Index: index, Reason: "invalid account type", Err: err}
	}

	if err := checkAccountPath(path, output.AccountType, network); err != nil {
		return nil, &InvalidOutputError{Index: index, Reason: "invalid derivation path", Err: err}
	}

	return &DeviceOutput{
		AddressN:   path.DeviceFormat(),
		Amount:     output.Amount,
		ScriptType: scriptType,
	}, nil
}

// ParseSigningResponse packages the device response into a signed
// transaction. The fee is the one of the unsigned transaction, the
// device doesn't echo it.
func ParseSigningResponse(resp *SigningResponse, feeValue uint64) (*wallet.SignedTransaction, error) {
	if resp == nil {
		return nil, &SigningRejectedError{Reason: "empty response"}
	}
	if !resp.Success {
		return nil, &SigningRejectedError{Reason: resp.Payload.Error, Code: resp.Payload.Code}
	}

	txID, err := transactionID(resp.Payload.SerializedTx)
	if err != nil {
		return nil, &SigningRejectedError{Reason: "malformed signed transaction", Err: err}
	}

	return &wallet.SignedTransaction{
		SerializedTx: resp.Payload.SerializedTx,
		FeeValue:     feeValue,
		TxID:         txID,
	}, nil
}

func transactionID(serializedTx string) (string, error) {
	if serializedTx == "" {
		return "", errors.New("serialized transaction is empty")
	}

	raw, err := hex.DecodeString(serializedTx)
	if err != nil {
		return "", err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	r := bytes.NewReader(raw)
	if err := tx.Deserialize(r); err != nil {
		return "", errors.Wrap(err, "cannot decode transaction")
	}
	if r.Len() != 0 {
		return "", errors.Errorf("%d trailing bytes after the transaction", r.Len())
	}

	return tx.TxHash().String(), nil
}
