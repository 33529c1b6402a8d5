package main

import (
	"github.com/btccom/hwsigner/trezor"
	"github.com/urfave/cli/v2"
)

var features = cli.Command{
	Name:   "features",
	Usage:  "connect to the device and print its features",
	Action: featuresAction,
}

type featuresReporter interface {
	Features() *trezor.Features
}

func featuresAction(ctx *cli.Context) error {
	s, err := newSigner(nil)
	if err != nil {
		return err
	}
	if err := s.Connect(ctx.Context); err != nil {
		return err
	}
	defer s.Disconnect()

	out := map[string]interface{}{
		"authenticated":    s.IsAuthenticated(),
		"taprootSupported": s.IsTaprootSupported(),
	}
	if reporter, ok := s.(featuresReporter); ok {
		out["features"] = reporter.Features()
	}

	printJSON(out)
	return nil
}
