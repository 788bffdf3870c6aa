package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
)

func testTable() chain.Table {
	return chain.Table{
		chain.Ethereum: {
			"ropsten": chain.NetworkProfile{
				RPC:           "https://ropsten.infura.io/v3/test",
				ChainID:       3,
				AdminKey:      "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
				Confirmations: 1,
			},
		},
		chain.Zilliqa: {
			"testnet": chain.NetworkProfile{
				RPC:           "https://dev-api.zilliqa.com",
				ChainID:       333,
				AdminKey:      "db11cfa086b92497c8ed5a4cc6edb3a5bfe3a640c43ffb9fc6aa0873c56f2ee3",
				Confirmations: 1,
			},
		},
	}
}

func TestAdapterConstructionAndCaching(t *testing.T) {
	r := New(testTable(), Options{Logger: zap.NewNop()})

	first, err := r.Adapter(chain.Zilliqa, "testnet")
	require.NoError(t, err)
	second, err := r.Adapter(chain.Zilliqa, "testnet")
	require.NoError(t, err)
	assert.Same(t, first, second)

	eth, err := r.Adapter(chain.Ethereum, "ropsten")
	require.NoError(t, err)
	assert.NotNil(t, eth)
}

func TestUnknownNetworkFailsLoudly(t *testing.T) {
	r := New(testTable(), Options{Logger: zap.NewNop()})

	_, err := r.Adapter(chain.Ethereum, "mainnet")
	require.ErrorIs(t, err, chain.ErrUnknownNetwork)
}

func TestUnsupportedProtocolFailsLoudly(t *testing.T) {
	r := New(testTable(), Options{Logger: zap.NewNop()})

	_, err := r.Adapter(chain.Protocol("bitcoin"), "mainnet")
	require.ErrorIs(t, err, chain.ErrUnsupportedProtocol)
}

func TestStoreReaderExposed(t *testing.T) {
	r := New(testTable(), Options{Logger: zap.NewNop()})

	reader, err := r.StoreReader(chain.Zilliqa, "testnet")
	require.NoError(t, err)
	assert.NotNil(t, reader)
}
