package wallet

import "fmt"

// AccountType identifies the locking scheme of a wallet account.
type AccountType string

const (
	// AccountLegacy is a P2PKH account (BIP44).
	AccountLegacy AccountType = "legacy"

	// AccountWrappedSegwit is a P2SH-P2WPKH account (BIP49).
	AccountWrappedSegwit AccountType = "wrappedSegwit"

	// AccountNativeSegwit is a P2WPKH account (BIP84).
	AccountNativeSegwit AccountType = "nativeSegwit"

	// AccountTaproot is a P2TR account (BIP86).
	AccountTaproot AccountType = "taproot"
)

// AccountTypes lists every supported account type.
var AccountTypes = []AccountType{
	AccountLegacy,
	AccountWrappedSegwit,
	AccountNativeSegwit,
	AccountTaproot,
}

// descriptor script names used by watch-only wallets
var accountTypeAliases = map[string]AccountType{
	"p2pkh":       AccountLegacy,
	"p2sh-p2wpkh": AccountWrappedSegwit,
	"p2wpkh":      AccountNativeSegwit,
	"p2tr":        AccountTaproot,
}

// UnsupportedAccountTypeError is returned for account types
// outside of the supported set. There is no fallback type.
type UnsupportedAccountTypeError struct {
	Type AccountType
}

func (e *UnsupportedAccountTypeError) Error() string {
	return fmt.Sprintf("unsupported account type %q", string(e.Type))
}

// ParseAccountType accepts the account type names and the
// descriptor script names (p2pkh, p2sh-p2wpkh, p2wpkh, p2tr).
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(s)
	if t.IsValid() {
		return t, nil
	}
	if alias, ok := accountTypeAliases[s]; ok {
		return alias, nil
	}
	return "", &UnsupportedAccountTypeError{Type: t}
}

// IsValid returns whether t is one of AccountTypes.
func (t AccountType) IsValid() bool {
	for _, known := range AccountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Purpose returns the BIP43 purpose account paths of
// this type conventionally start with.
func (t AccountType) Purpose() (uint32, error) {
	switch t {
	case AccountLegacy:
		return 44, nil
	case AccountWrappedSegwit:
		return 49, nil
	case AccountNativeSegwit:
		return 84, nil
	case AccountTaproot:
		return 86, nil
	}
	return 0, &UnsupportedAccountTypeError{Type: t}
}
