package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/btccom/hwsigner/wallet"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var sign = cli.Command{
	Name:  "sign",
	Usage: "have the device sign an unsigned transaction",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "file",
			Usage: "JSON file holding the unsigned transaction, - for stdin",
			Value: "-",
		},
	},
	Action: signAction,
}

func readTransaction(path string) (*wallet.UnsignedTransaction, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		in = file
	}

	tx := &wallet.UnsignedTransaction{}
	if err := json.NewDecoder(in).Decode(tx); err != nil {
		return nil, errors.Wrap(err, "invalid unsigned transaction")
	}
	return tx, nil
}

// printSummary lets the user compare the amounts with the ones
// displayed on the device.
func printSummary(tx *wallet.UnsignedTransaction) error {
	in, out, err := tx.Totals()
	if err != nil {
		return err
	}

	w := os.Stderr
	fmt.Fprintf(w, "inputs:  %d, %s BTC\n", len(tx.Inputs), wallet.FormatAmount(in))
	for _, output := range tx.Outputs {
		if output == nil {
			continue
		}
		dest := output.Address
		if output.IsSelf() {
			dest = "change " + output.AccountPath
		}
		fmt.Fprintf(w, "  -> %s BTC to %s\n", wallet.FormatAmount(output.Amount), dest)
	}
	fmt.Fprintf(w, "outputs: %d, %s BTC\n", len(tx.Outputs), wallet.FormatAmount(out))
	fmt.Fprintf(w, "fee:     %s BTC\n", wallet.FormatAmount(tx.FeeValue))
	fmt.Fprintln(w, "confirm the transaction on the device")
	return nil
}

func signAction(ctx *cli.Context) error {
	tx, err := readTransaction(ctx.String("file"))
	if err != nil {
		return err
	}
	if err := printSummary(tx); err != nil {
		return err
	}

	s, disconnect, err := connectedSigner(ctx.Context)
	if err != nil {
		return err
	}
	defer disconnect()

	signed, err := s.Sign(ctx.Context, tx)
	if err != nil {
		return err
	}

	printJSON(signed)
	return nil
}
