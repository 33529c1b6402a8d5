// Package config loads the bridge settings from the environment.
package config

import (
	"net"
	"net/url"

	"github.com/btccom/hwsigner/signer"
	"github.com/btccom/hwsigner/wallet"
	"github.com/btcsuite/btclog"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable read, as in HWSIGNER_NETWORK
	EnvPrefix = "HWSIGNER"

	// NetworkKey is the network to sign for. One of Mainnet, Testnet, Regtest
	NetworkKey = "NETWORK"
	// SignerKey is the kind of device to drive
	SignerKey = "SIGNER"
	// BridgeEndpointKey is the JSON-RPC endpoint of the device bridge process
	BridgeEndpointKey = "BRIDGE_ENDPOINT"
	// ShowOnDeviceKey makes the device display requested xpubs for confirmation
	ShowOnDeviceKey = "SHOW_ON_DEVICE"
	// DeviceNameKey is the name published when a device connects
	DeviceNameKey = "DEVICE_NAME"
	// LogLevelKey is one of trace, debug, info, warn, error, critical, off
	LogLevelKey = "LOG_LEVEL"
	// ListenAddrKey is the address the HTTP API listens on
	ListenAddrKey = "LISTEN_ADDR"
	// MetricsKey exposes Prometheus metrics at /metrics when enabled
	MetricsKey = "METRICS"
)

// Config holds the bridge settings.
type Config struct {
	Network        string
	Signer         signer.Kind
	BridgeEndpoint string
	ShowOnDevice   bool
	DeviceName     string
	LogLevel       btclog.Level
	ListenAddr     string
	Metrics        bool
}

// New returns a viper instance reading the HWSIGNER_ environment,
// with every default set.
func New() *viper.Viper {
	vip := viper.New()
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(NetworkKey, wallet.NetMainnet)
	vip.SetDefault(SignerKey, string(signer.KindTrezor))
	vip.SetDefault(BridgeEndpointKey, "http://127.0.0.1:21335/rpc")
	vip.SetDefault(ShowOnDeviceKey, true)
	vip.SetDefault(DeviceNameKey, "trezor-device")
	vip.SetDefault(LogLevelKey, "info")
	vip.SetDefault(ListenAddrKey, "127.0.0.1:8099")
	vip.SetDefault(MetricsKey, true)

	return vip
}

// Load reads and validates the settings held by vip.
func Load(vip *viper.Viper) (*Config, error) {
	network, err := wallet.CheckNetwork(vip.GetString(NetworkKey))
	if err != nil {
		return nil, errors.Wrapf(err, "%s %q", NetworkKey, vip.GetString(NetworkKey))
	}

	kind, err := signer.ParseKind(vip.GetString(SignerKey))
	if err != nil {
		return nil, errors.Wrap(err, SignerKey)
	}

	level, ok := btclog.LevelFromString(vip.GetString(LogLevelKey))
	if !ok {
		return nil, errors.Errorf("%s: invalid log level %q", LogLevelKey, vip.GetString(LogLevelKey))
	}

	cfg := &Config{
		Network:        network,
		Signer:         kind,
		BridgeEndpoint: vip.GetString(BridgeEndpointKey),
		ShowOnDevice:   vip.GetBool(ShowOnDeviceKey),
		DeviceName:     vip.GetString(DeviceNameKey),
		LogLevel:       level,
		ListenAddr:     vip.GetString(ListenAddrKey),
		Metrics:        vip.GetBool(MetricsKey),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the endpoints of cfg.
func (c *Config) Validate() error {
	endpoint, err := url.Parse(c.BridgeEndpoint)
	if err != nil {
		return errors.Wrap(err, BridgeEndpointKey)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return errors.Errorf("%s: unsupported scheme %q", BridgeEndpointKey, endpoint.Scheme)
	}

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.Wrap(err, ListenAddrKey)
	}

	if c.DeviceName == "" {
		return errors.Errorf("%s must not be empty", DeviceNameKey)
	}
	return nil
}
