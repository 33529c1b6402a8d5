package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/btccom/hwsigner/config"
	"github.com/btccom/hwsigner/rpcsdk"
	"github.com/btccom/hwsigner/session"
	"github.com/btccom/hwsigner/signer"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var cfg *config.Config

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "network",
		Usage: "network to sign for: Mainnet, Testnet or Regtest",
	},
	&cli.StringFlag{
		Name:  "signer",
		Usage: "kind of device to drive",
	},
	&cli.StringFlag{
		Name:  "bridge",
		Usage: "JSON-RPC endpoint of the device bridge",
	},
	&cli.StringFlag{
		Name:  "loglevel",
		Usage: "trace, debug, info, warn, error, critical or off",
	},
}

// flagKeys maps the global flags to the config keys they override.
var flagKeys = map[string]string{
	"network":  config.NetworkKey,
	"signer":   config.SignerKey,
	"bridge":   config.BridgeEndpointKey,
	"loglevel": config.LogLevelKey,
}

func main() {
	app := cli.NewApp()

	app.Name = "hwsigner"
	app.Usage = "Bridge between a bitcoin wallet and a hardware signing device"
	app.Flags = globalFlags
	app.Before = loadConfig
	app.Commands = append(
		app.Commands,
		&features,
		&xpub,
		&sign,
		&serve,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func loadConfig(ctx *cli.Context) error {
	vip := config.New()
	for flag, key := range flagKeys {
		if ctx.IsSet(flag) {
			vip.Set(key, ctx.String(flag))
		}
	}

	loaded, err := config.Load(vip)
	if err != nil {
		return err
	}
	cfg = loaded

	setLogLevels(cfg.LogLevel)
	mainLog.Debugf("using %s signer on %s through %s", cfg.Signer, cfg.Network, cfg.BridgeEndpoint)
	return nil
}

func newSigner(observer session.Observer) (signer.HardwareSigner, error) {
	return signer.New(cfg.Signer, rpcsdk.NewClient(cfg.BridgeEndpoint), signer.Options{
		Network:      cfg.Network,
		DeviceName:   cfg.DeviceName,
		ShowOnDevice: cfg.ShowOnDevice,
		Observer:     observer,
	})
}

// connectedSigner returns a signer whose device is connected and
// unlocked, and a function to disconnect it.
func connectedSigner(ctx context.Context) (signer.HardwareSigner, func(), error) {
	s, err := newSigner(nil)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if !s.IsAuthenticated() {
		s.Disconnect()
		return nil, nil, errors.New("device is locked or not initialized")
	}
	return s, s.Disconnect, nil
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		fmt.Println("unable to encode response: ", err)
		return
	}
	fmt.Println(string(out))
}

func fatal(err error) {
	_, _ = fmt.Fprintf(os.Stderr, "[hwsigner] %v\n", err)
	os.Exit(1)
}
