package wallet

import (
	"github.com/pkg/errors"
)

// ErrAmountOverflow is returned when the amounts of a
// transaction don't fit into 64 bits once summed.
var ErrAmountOverflow = errors.New("amount sum overflows 64 bits")

// TxInput is an unspent output owned by the wallet that the
// transaction spends. Indices are pointers so that an absent
// field can be told apart from index 0.
type TxInput struct {
	AccountPath  string      `json:"accountPath"`
	BranchIndex  *uint32     `json:"branch_index"`
	AddressIndex *uint32     `json:"address_index"`
	Vout         *uint32     `json:"vout"`
	TxID         string      `json:"tx_id"`
	Amount       uint64      `json:"amount"`
	AccountType  AccountType `json:"accountType"`
}

// TxOutput is either a self output, identified by its derivation
// (AccountPath, BranchIndex, AddressIndex), or an external output
// identified by Address. AccountType is only meaningful for
// self outputs.
type TxOutput struct {
	Address      string      `json:"address,omitempty"`
	AccountPath  string      `json:"accountPath,omitempty"`
	BranchIndex  *uint32     `json:"branch_index,omitempty"`
	AddressIndex *uint32     `json:"address_index,omitempty"`
	Amount       uint64      `json:"amount"`
	AccountType  AccountType `json:"accountType,omitempty"`
}

// IsSelf returns whether the output pays back to the wallet.
func (o *TxOutput) IsSelf() bool {
	return o.AccountPath != ""
}

// IsExternal returns whether the output pays to a literal address.
func (o *TxOutput) IsExternal() bool {
	return o.Address != ""
}

// UnsignedTransaction is the application level description
// of a transaction to be signed by a device.
type UnsignedTransaction struct {
	Inputs   []*TxInput  `json:"inputs"`
	Outputs  []*TxOutput `json:"outputs"`
	FeeValue uint64      `json:"feeValue"`
}

// Totals sums the input and output amounts, the latter
// including the fee. It refuses to wrap around. Nil entries
// are skipped.
func (tx *UnsignedTransaction) Totals() (uint64, uint64, error) {
	var in, out uint64
	var ok bool

	for i, input := range tx.Inputs {
		if input == nil {
			continue
		}
		if in, ok = addAmounts(in, input.Amount); !ok {
			return 0, 0, errors.Wrapf(ErrAmountOverflow, "input %d", i)
		}
	}

	for i, output := range tx.Outputs {
		if output == nil {
			continue
		}
		if out, ok = addAmounts(out, output.Amount); !ok {
			return 0, 0, errors.Wrapf(ErrAmountOverflow, "output %d", i)
		}
	}

	if out, ok = addAmounts(out, tx.FeeValue); !ok {
		return 0, 0, errors.Wrap(ErrAmountOverflow, "fee")
	}

	return in, out, nil
}

// SignedTransaction is produced once a device signed an
// UnsignedTransaction. FeeValue is carried over from the
// unsigned transaction since devices don't echo it.
type SignedTransaction struct {
	SerializedTx string `json:"serializedTx"`
	FeeValue     uint64 `json:"feeValue"`
	TxID         string `json:"txid"`
}

// Uint32 returns a pointer to v, handy to fill optional
// indices.
func Uint32(v uint32) *uint32 {
	return &v
}

func addAmounts(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
