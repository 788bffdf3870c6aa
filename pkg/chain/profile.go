package chain

import (
	"fmt"

	"github.com/nextid/blockchain/pkg/config"
)

// Protocol identifies a supported ledger.
type Protocol string

const (
	Ethereum Protocol = "ethereum"
	Zilliqa  Protocol = "zilliqa"
	Tezos    Protocol = "tezos"
)

// ParseProtocol validates a protocol name.
func ParseProtocol(name string) (Protocol, error) {
	switch Protocol(name) {
	case Ethereum, Zilliqa, Tezos:
		return Protocol(name), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProtocol, name)
	}
}

// NetworkProfile is the static per-ledger, per-environment configuration an
// adapter is constructed from. It is immutable once the adapter exists.
type NetworkProfile struct {
	RPC           string
	ChainID       uint64
	AdminAddress  string
	AdminKey      string
	Confirmations uint64
	MetadataURL   string
}

// Table maps (protocol, network) to its profile.
type Table map[Protocol]map[string]NetworkProfile

// Profile resolves a (protocol, network) pair. Unknown keys fail loudly;
// there is no fallback network.
func (t Table) Profile(protocol Protocol, network string) (NetworkProfile, error) {
	networks, ok := t[protocol]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, protocol)
	}
	profile, ok := networks[network]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("%w: %s/%s", ErrUnknownNetwork, protocol, network)
	}
	return profile, nil
}

// TableFromConfig builds the profile table from loaded configuration.
func TableFromConfig(cfg *config.Config) Table {
	table := make(Table, 3)
	for protocol, networks := range map[Protocol]config.ProtocolConfig{
		Ethereum: cfg.Ethereum,
		Zilliqa:  cfg.Zilliqa,
		Tezos:    cfg.Tezos,
	} {
		table[protocol] = make(map[string]NetworkProfile, len(networks))
		for name, nc := range networks {
			table[protocol][name] = NetworkProfile{
				RPC:           nc.RPC,
				ChainID:       nc.ChainID,
				AdminAddress:  nc.AdminAddress,
				AdminKey:      nc.AdminKey,
				Confirmations: nc.Confirmations,
				MetadataURL:   nc.MetadataURL,
			}
		}
	}
	return table
}
