package tezos

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
)

func testSecretKey() string {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return base58CheckEncode(prefixEdskSeed, seed)
}

func testOpHash() string {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(0xA0 + i)
	}
	return base58CheckEncode(prefixOperation, raw)
}

type fakeClient struct {
	mu sync.Mutex

	counter    uint64
	counterErr error
	forgeErr   error
	injectErr  error
	headLevel  uint64
	viewData   json.RawMessage
	viewErr    error

	forged []any
}

func (f *fakeClient) Counter(ctx context.Context, address string) (uint64, error) {
	if f.counterErr != nil {
		return 0, f.counterErr
	}
	return f.counter, nil
}

func (f *fakeClient) HeadLevel(ctx context.Context) (uint64, error) {
	return f.headLevel, nil
}

func (f *fakeClient) Forge(ctx context.Context, contents []any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forged = append(f.forged, contents...)
	if f.forgeErr != nil {
		return nil, f.forgeErr
	}
	return []byte{0xDE, 0xAD, 0xBE, 0xEF}, nil
}

func (f *fakeClient) Inject(ctx context.Context, signedHex string) (string, error) {
	if f.injectErr != nil {
		return "", f.injectErr
	}
	return testOpHash(), nil
}

func (f *fakeClient) FindOperation(ctx context.Context, opHash string, depth uint64) (uint64, bool, error) {
	return f.headLevel, true, nil
}

func (f *fakeClient) RunView(ctx context.Context, contract, view string, input any) (json.RawMessage, error) {
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	return f.viewData, nil
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

func newTestAdapter(t *testing.T, client *fakeClient, notifier *recordingNotifier) *Adapter {
	t.Helper()
	adapter, err := New(chain.NetworkProfile{
		RPC:           "https://rpc.ghostnet.teztnets.com",
		AdminAddress:  "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb",
		AdminKey:      testSecretKey(),
		Confirmations: 1,
		MetadataURL:   "https://example.com/store-metadata.json",
	}, Options{
		Client:          client,
		Notifier:        notifier,
		Logger:          zap.NewNop(),
		ConfirmInterval: time.Millisecond,
	})
	require.NoError(t, err)
	return adapter
}

func TestBase58CheckRoundtrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	encoded := base58CheckEncode(prefixContract, payload)

	decoded, err := base58CheckDecode(prefixContract, encoded)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestBase58CheckRejectsCorruptChecksum(t *testing.T) {
	encoded := base58CheckEncode(prefixContract, []byte{0x01, 0x02, 0x03})
	corrupt := encoded[:len(encoded)-1] + "2"
	if corrupt == encoded {
		corrupt = encoded[:len(encoded)-1] + "3"
	}
	_, err := base58CheckDecode(prefixContract, corrupt)
	require.Error(t, err)
}

func TestCharToBytes(t *testing.T) {
	assert.Equal(t, "74657a6f732d73746f72616765", charToBytes("tezos-storage"))
}

func TestContractAddressDeterministic(t *testing.T) {
	first, err := contractAddress(testOpHash(), 0)
	require.NoError(t, err)
	second, err := contractAddress(testOpHash(), 0)
	require.NoError(t, err)
	other, err := contractAddress(testOpHash(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
	assert.True(t, strings.HasPrefix(first, "KT1"))
}

func TestIssueCertificateBuildsOperation(t *testing.T) {
	client := &fakeClient{counter: 41, headLevel: 100}
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	hash, err := adapter.IssueCertificate(context.Background(), chain.IssueRequest{
		ContractAddress: "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN",
		MerkleRoot:      "ABC123",
		RequesterEmail:  "admin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, testOpHash(), hash)
	require.Len(t, client.forged, 1)

	content, ok := client.forged[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "transaction", content["kind"])
	assert.Equal(t, "42", content["counter"]) // account counter + 1
	assert.Equal(t, callFee, content["fee"])
	assert.Equal(t, "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN", content["destination"])

	params, ok := content["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "issue", params["entrypoint"])
	assert.Equal(t, map[string]string{"string": "0xabc123"}, params["value"])
	assert.Empty(t, notifier.reports)
}

func TestInjectFailureReportsOnceAndRethrows(t *testing.T) {
	client := &fakeClient{counter: 7, headLevel: 100, injectErr: errors.New("branch refused")}
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	_, err := adapter.RevokeCertificate(context.Background(), chain.RevokeRequest{
		ContractAddress: "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN",
		MerkleRoot:      "0xabc123",
		RequesterEmail:  "admin@example.com",
	})
	require.ErrorIs(t, err, chain.ErrServiceUnavailable)
	assert.Equal(t, []string{"admin@example.com"}, notifier.reports)
	assert.Len(t, client.forged, 1) // no retry
}

func TestCounterFailureSurfacesServiceUnavailable(t *testing.T) {
	client := &fakeClient{counterErr: errors.New("node down")}
	notifier := &recordingNotifier{}
	adapter := newTestAdapter(t, client, notifier)

	_, err := adapter.IssueCertificate(context.Background(), chain.IssueRequest{
		ContractAddress: "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN",
		MerkleRoot:      "0xabc123",
		RequesterEmail:  "admin@example.com",
	})
	require.ErrorIs(t, err, chain.ErrServiceUnavailable)
	assert.Len(t, notifier.reports, 1)
	assert.Empty(t, client.forged) // failed before forging
}

func TestDeployStoreDerivesContractAddress(t *testing.T) {
	client := &fakeClient{counter: 3, headLevel: 100}
	adapter := newTestAdapter(t, client, &recordingNotifier{})

	result, err := adapter.DeployStore(context.Background(), chain.DeployRequest{
		StoreName:      "Government Technology Agency",
		RequesterEmail: "admin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, testOpHash(), result.TxHash)
	assert.True(t, strings.HasPrefix(result.ContractAddress, "KT1"))

	expected, err := contractAddress(testOpHash(), 0)
	require.NoError(t, err)
	assert.Equal(t, expected, result.ContractAddress)

	require.Len(t, client.forged, 1)
	content := client.forged[0].(map[string]any)
	assert.Equal(t, "origination", content["kind"])

	script := content["script"].(map[string]any)
	raw, err := json.Marshal(script["storage"])
	require.NoError(t, err)
	assert.Contains(t, string(raw), charToBytes("https://example.com/store-metadata.json"))
	assert.Contains(t, string(raw), "Government Technology Agency")
}

func TestResolveContractAddressIsEmpty(t *testing.T) {
	adapter := newTestAdapter(t, &fakeClient{}, &recordingNotifier{})

	addr, err := adapter.ResolveContractAddress(context.Background(), testOpHash())
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestStoreViews(t *testing.T) {
	client := &fakeClient{viewData: json.RawMessage(`{"prim":"True"}`)}
	adapter := newTestAdapter(t, client, &recordingNotifier{})

	issued, err := adapter.IsIssued(context.Background(), "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN", "0xabc123")
	require.NoError(t, err)
	assert.True(t, issued)

	client.viewData = json.RawMessage(`{"prim":"False"}`)
	revoked, err := adapter.IsRevoked(context.Background(), "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN", "0xabc123")
	require.NoError(t, err)
	assert.False(t, revoked)

	client.viewErr = errors.New("connection refused")
	_, err = adapter.IsIssued(context.Background(), "KT1AiTzm88sdZzbWF6cTXfS2WzeK9fzMgHUN", "0xabc123")
	require.ErrorIs(t, err, chain.ErrInfrastructure)
}
