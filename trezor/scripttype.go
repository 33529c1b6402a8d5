package trezor

import (
	"github.com/btccom/hwsigner/wallet"
)

// Script types per account type, spending inputs and paying to
// outputs respectively.
var inputScriptTypes = map[wallet.AccountType]ScriptType{
	wallet.AccountLegacy:        SpendAddress,
	wallet.AccountWrappedSegwit: SpendP2SHWitness,
	wallet.AccountNativeSegwit:  SpendWitness,
	wallet.AccountTaproot:       SpendTaproot,
}

var outputScriptTypes = map[wallet.AccountType]ScriptType{
	wallet.AccountLegacy:        PayToAddress,
	wallet.AccountWrappedSegwit: PayToP2SHWitness,
	wallet.AccountNativeSegwit:  PayToWitness,
	wallet.AccountTaproot:       PayToTaproot,
}

// MapInputType returns the script type used to spend an input
// of an account of type t.
func MapInputType(t wallet.AccountType) (ScriptType, error) {
	if scriptType, ok := inputScriptTypes[t]; ok {
		return scriptType, nil
	}
	return "", &wallet.UnsupportedAccountTypeError{Type: t}
}

// MapOutputType returns the script type used to pay to an
// address of an account of type t.
func MapOutputType(t wallet.AccountType) (ScriptType, error) {
	if scriptType, ok := outputScriptTypes[t]; ok {
		return scriptType, nil
	}
	return "", &wallet.UnsupportedAccountTypeError{Type: t}
}

// inputScriptType also accepts the account type aliases.
func inputScriptType(t wallet.AccountType) (ScriptType, error) {
	parsed, err := wallet.ParseAccountType(string(t))
	if err != nil {
		return "", err
	}
	return MapInputType(parsed)
}

func outputScriptType(t wallet.AccountType) (ScriptType, error) {
	parsed, err := wallet.ParseAccountType(string(t))
	if err != nil {
		return "", err
	}
	return MapOutputType(parsed)
}
