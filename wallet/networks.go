package wallet

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

const (
	// NetMainnet is the constant for the bitcoin network
	NetMainnet = "Mainnet"

	// NetTestnet is the constant for the bitcoin testnet network
	NetTestnet = "Testnet"

	// NetRegtest is the constant for the bitcoin regtest network
	NetRegtest = "Regtest"
)

// CheckNetwork validates that the network is valid
func CheckNetwork(network string) (string, error) {
	switch network {
	case NetMainnet, NetTestnet, NetRegtest:
		return network, nil
	default:
		return "", errors.New("Network is invalid")
	}
}

// Network captures customizations which differ
// from network to network.
type Network struct {
	// Name is the wallet level network name.
	Name string

	// Params holds the networks chain params, used
	// to check the version bytes of extended keys.
	Params *chaincfg.Params

	// CoinType is the BIP44 coin type of the network.
	CoinType uint32
}

var (
	// MainNetwork defines the behaviour on the Bitcoin network
	MainNetwork = &Network{
		Name:     NetMainnet,
		Params:   &chaincfg.MainNetParams,
		CoinType: 0,
	}

	// TestNetwork defines the behaviour on the Bitcoin testnet
	TestNetwork = &Network{
		Name:     NetTestnet,
		Params:   &chaincfg.TestNet3Params,
		CoinType: 1,
	}

	// RegtestNetwork defines the behaviour on the Bitcoin regtest network
	RegtestNetwork = &Network{
		Name:     NetRegtest,
		Params:   &chaincfg.RegressionNetParams,
		CoinType: 1,
	}
)

// GetNetworkParams takes a network name and returns
// the *Network params
func GetNetworkParams(network string) (*Network, error) {
	switch network {
	case NetMainnet:
		return MainNetwork, nil
	case NetTestnet:
		return TestNetwork, nil
	case NetRegtest:
		return RegtestNetwork, nil
	}

	return nil, errors.New("Invalid network")
}

// NetworkOrTestnet behaves like GetNetworkParams, except that
// anything which isn't mainnet resolves to the test network.
func NetworkOrTestnet(network string) *Network {
	if net, err := GetNetworkParams(network); err == nil {
		return net
	}
	return TestNetwork
}
