package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
)

// well-known hardhat development key, never used on a real network
const testAdminKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

type fakeClient struct {
	mu sync.Mutex

	gasPrice    *big.Int
	gasPriceErr error
	gasLimit    uint64
	gasLimitErr error
	nonce       uint64
	nonceErr    error
	sendErr     error
	receipt     *types.Receipt
	receiptErr  error
	height      uint64

	sentTxs  []*types.Transaction
	callOut  []byte
	callErr  error
	callMsgs []goethereum.CallMsg
}

func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if f.gasPriceErr != nil {
		return nil, f.gasPriceErr
	}
	return f.gasPrice, nil
}

func (f *fakeClient) EstimateGas(ctx context.Context, msg goethereum.CallMsg) (uint64, error) {
	if f.gasLimitErr != nil {
		return 0, f.gasLimitErr
	}
	return f.gasLimit, nil
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.nonce, nil
}

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentTxs = append(f.sentTxs, tx)
	return f.sendErr
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if f.receipt != nil && f.receipt.TxHash == (common.Hash{}) {
		f.receipt.TxHash = txHash
	}
	return f.receipt, nil
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	return f.height, nil
}

func (f *fakeClient) CallContract(ctx context.Context, msg goethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callMsgs = append(f.callMsgs, msg)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callOut, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []string
}

func (n *recordingNotifier) ReportIssue(_ context.Context, email string, _ error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, email)
}

func testProfile() chain.NetworkProfile {
	return chain.NetworkProfile{
		RPC:           "ws://localhost:8546",
		ChainID:       3,
		AdminAddress:  "0xE42383137e7814B3D8E18AD77EF48B248B08c0e5",
		AdminKey:      testAdminKey,
		Confirmations: 1,
	}
}

func newTestAdapter(t *testing.T, client *fakeClient, notifier *recordingNotifier) *Adapter {
	t.Helper()
	adapter, err := New(testProfile(), Options{
		Client:          client,
		Notifier:        notifier,
		Logger:          zap.NewNop(),
		ConfirmInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return adapter
}

func confirmedClient() *fakeClient {
	return &fakeClient{
		gasPrice: big.NewInt(20_000_000_000),
		gasLimit: 60_000,
		nonce:    7,
		height:   12,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(10),
		},
	}
}

func TestIssueCertificate(t *testing.T) {
	client := confirmedClient()
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	hash, err := adapter.IssueCertificate(context.Background(), chain.IssueRequest{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		MerkleRoot:      "abc123", // missing prefix on purpose
		RequesterEmail:  "admin@example.com",
	})
	require.NoError(t, err)
	require.Len(t, client.sentTxs, 1)

	tx := client.sentTxs[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(60_000), tx.Gas())
	assert.Equal(t, big.NewInt(20_000_000_000), tx.GasPrice())
	assert.Empty(t, notifier.reports)

	// calldata carries the normalized, 0x-prefixed root
	root := common.HexToHash("0xabc123")
	assert.Contains(t, common.Bytes2Hex(tx.Data()), common.Bytes2Hex(root[:]))
}

func TestGasMultipliersScaleEstimates(t *testing.T) {
	client := confirmedClient()
	adapter, err := New(testProfile(), Options{
		Client:          client,
		Notifier:        &recordingNotifier{},
		Logger:          zap.NewNop(),
		ConfirmInterval: time.Millisecond,
		Gas:             chain.GasOptions{PriceMultiplier: 2, LimitMultiplier: 1.5},
	})
	require.NoError(t, err)

	_, err = adapter.IssueCertificate(context.Background(), chain.IssueRequest{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		MerkleRoot:      "0xabc123",
		RequesterEmail:  "admin@example.com",
	})
	require.NoError(t, err)
	require.Len(t, client.sentTxs, 1)

	tx := client.sentTxs[0]
	assert.Equal(t, big.NewInt(40_000_000_000), tx.GasPrice())
	assert.Equal(t, uint64(90_000), tx.Gas())
}

func TestBroadcastFailureReportsOnceAndNeverRetries(t *testing.T) {
	client := confirmedClient()
	client.sendErr = errors.New("insufficient funds for gas")
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	_, err := adapter.IssueCertificate(context.Background(), chain.IssueRequest{
		ContractAddress: "0x1111111111111111111111111111111111111111",
		MerkleRoot:      "0xabc123",
		RequesterEmail:  "admin@example.com",
	})
	require.ErrorIs(t, err, chain.ErrServiceUnavailable)

	// exactly one report, exactly one broadcast attempt
	assert.Equal(t, []string{"admin@example.com"}, notifier.reports)
	assert.Len(t, client.sentTxs, 1)
}

func TestFeeQueryFailureSurfacesServiceUnavailable(t *testing.T) {
	client := confirmedClient()
	client.gasPriceErr = errors.New("rpc timeout")
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	_, err := adapter.DeployStore(context.Background(), chain.DeployRequest{
		StoreName:      "Example University",
		RequesterEmail: "admin@example.com",
	})
	require.ErrorIs(t, err, chain.ErrServiceUnavailable)
	assert.Len(t, notifier.reports, 1)
	assert.Empty(t, client.sentTxs)
}

func TestDeployStoreReturnsContractAddress(t *testing.T) {
	client := confirmedClient()
	client.receipt.ContractAddress = common.HexToAddress("0x2222222222222222222222222222222222222222")
	adapter := newTestAdapter(t, client, &recordingNotifier{})

	result, err := adapter.DeployStore(context.Background(), chain.DeployRequest{
		StoreName:      "Example University",
		RequesterEmail: "admin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", common.HexToAddress(result.ContractAddress).Hex())
	assert.NotEmpty(t, result.TxHash)
}

func TestResolveContractAddressIsStable(t *testing.T) {
	client := confirmedClient()
	client.receipt.TxHash = common.HexToHash("0xdead")
	client.receipt.ContractAddress = common.HexToAddress("0x3333333333333333333333333333333333333333")
	adapter := newTestAdapter(t, client, &recordingNotifier{})

	first, err := adapter.ResolveContractAddress(context.Background(), "0xdead")
	require.NoError(t, err)
	second, err := adapter.ResolveContractAddress(context.Background(), "0xdead")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, common.HexToAddress("0x3333333333333333333333333333333333333333").Hex(), first)
}

func TestStoreViews(t *testing.T) {
	client := confirmedClient()
	client.callOut = common.LeftPadBytes([]byte{1}, 32)
	adapter := newTestAdapter(t, client, &recordingNotifier{})

	issued, err := adapter.IsIssued(context.Background(), "0x1111111111111111111111111111111111111111", "0xabc123")
	require.NoError(t, err)
	assert.True(t, issued)

	client.callOut = common.LeftPadBytes([]byte{0}, 32)
	revoked, err := adapter.IsRevoked(context.Background(), "0x1111111111111111111111111111111111111111", "0xabc123")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = adapter.IsIssued(context.Background(), "not-an-address", "0xabc123")
	require.Error(t, err)
}
