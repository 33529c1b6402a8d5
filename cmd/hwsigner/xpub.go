package main

import (
	"github.com/urfave/cli/v2"
)

var xpub = cli.Command{
	Name:      "xpub",
	Usage:     "print the extended public key at a derivation path",
	ArgsUsage: "path",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "show",
			Usage: "display the key on the device for confirmation",
		},
	},
	Action: xpubAction,
}

func xpubAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "xpub")
	}
	if ctx.IsSet("show") {
		cfg.ShowOnDevice = ctx.Bool("show")
	}

	s, disconnect, err := connectedSigner(ctx.Context)
	if err != nil {
		return err
	}
	defer disconnect()

	result, err := s.Xpub(ctx.Context, ctx.Args().First())
	if err != nil {
		return err
	}

	printJSON(result)
	return nil
}
