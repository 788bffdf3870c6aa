// Package registry resolves (protocol, network) pairs to constructed ledger
// adapters. Adapters are built lazily from the profile table and cached, so
// one admin wallet and RPC client serve all requests against a network.
package registry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/chain/ethereum"
	"github.com/nextid/blockchain/pkg/chain/tezos"
	"github.com/nextid/blockchain/pkg/chain/zilliqa"
	"github.com/nextid/blockchain/pkg/notify"
)

// Options are shared across every adapter the registry constructs.
type Options struct {
	Notifier        notify.Notifier
	Gas             chain.GasOptions
	Logger          *zap.Logger
	ConfirmInterval time.Duration
}

// Registry hands out one adapter per (protocol, network).
type Registry struct {
	table chain.Table
	opts  Options

	mu    sync.Mutex
	cache map[string]chain.Adapter
}

// New creates a Registry over the given profile table.
func New(table chain.Table, opts Options) *Registry {
	return &Registry{
		table: table,
		opts:  opts,
		cache: make(map[string]chain.Adapter),
	}
}

// Adapter returns the adapter for the pair, constructing it on first use.
// Unknown protocols and networks fail loudly; there is no default.
func (r *Registry) Adapter(protocol chain.Protocol, network string) (chain.Adapter, error) {
	key := string(protocol) + "/" + network

	r.mu.Lock()
	defer r.mu.Unlock()
	if adapter, ok := r.cache[key]; ok {
		return adapter, nil
	}

	profile, err := r.table.Profile(protocol, network)
	if err != nil {
		return nil, err
	}

	var adapter chain.Adapter
	switch protocol {
	case chain.Ethereum:
		adapter, err = ethereum.New(profile, ethereum.Options{
			Notifier:        r.opts.Notifier,
			Gas:             r.opts.Gas,
			Logger:          r.opts.Logger,
			ConfirmInterval: r.opts.ConfirmInterval,
		})
	case chain.Zilliqa:
		adapter, err = zilliqa.New(profile, zilliqa.Options{
			Notifier:        r.opts.Notifier,
			Logger:          r.opts.Logger,
			ConfirmInterval: r.opts.ConfirmInterval,
		})
	case chain.Tezos:
		adapter, err = tezos.New(profile, tezos.Options{
			Notifier:        r.opts.Notifier,
			Logger:          r.opts.Logger,
			ConfirmInterval: r.opts.ConfirmInterval,
		})
	default:
		return nil, fmt.Errorf("%w: %s", chain.ErrUnsupportedProtocol, protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("construct %s adapter: %w", protocol, err)
	}

	r.cache[key] = adapter
	return adapter, nil
}

// StoreReader returns the read-only store view for the pair.
func (r *Registry) StoreReader(protocol chain.Protocol, network string) (chain.StoreReader, error) {
	adapter, err := r.Adapter(protocol, network)
	if err != nil {
		return nil, err
	}
	reader, ok := adapter.(chain.StoreReader)
	if !ok {
		return nil, fmt.Errorf("%w: %s exposes no store reads", chain.ErrUnsupportedProtocol, protocol)
	}
	return reader, nil
}
