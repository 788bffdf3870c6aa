// Package ethereum anchors document stores on Ethereum networks through a
// fee-market submission pipeline: gas price, gas limit estimate, pending
// nonce, sign, broadcast, confirmation wait. Every write is at-most-once.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/logger"
	"github.com/nextid/blockchain/pkg/metrics"
	"github.com/nextid/blockchain/pkg/notify"
)

// Client is the subset of the Ethereum JSON-RPC surface the adapter needs.
// *ethclient.Client satisfies it; tests inject a fake.
type Client interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg goethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg goethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Options configures an Adapter beyond its network profile.
type Options struct {
	// Client overrides the RPC client; when nil the adapter dials the
	// profile's endpoint.
	Client Client

	Notifier notify.Notifier
	Gas      chain.GasOptions
	Logger   *zap.Logger

	// ConfirmInterval is the receipt/height polling cadence.
	ConfirmInterval time.Duration
}

// Adapter implements chain.Adapter and chain.StoreReader for Ethereum.
type Adapter struct {
	profile  chain.NetworkProfile
	client   Client
	key      *ecdsa.PrivateKey
	from     common.Address
	store    abi.ABI
	gas      chain.GasOptions
	notifier notify.Notifier
	log      *zap.Logger
	interval time.Duration
}

// New constructs an Ethereum adapter bound to one network profile. The admin
// credential is parsed once and owned exclusively by this instance.
func New(profile chain.NetworkProfile, opts Options) (*Adapter, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(profile.AdminKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse admin key: %w", err)
	}

	store, err := storeABI()
	if err != nil {
		return nil, fmt.Errorf("parse document store abi: %w", err)
	}

	client := opts.Client
	if client == nil {
		dialed, err := ethclient.Dial(profile.RPC)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", profile.RPC, err)
		}
		client = dialed
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(logger.Get())
	}

	log := opts.Logger
	if log == nil {
		log = logger.Get()
	}

	interval := opts.ConfirmInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Adapter{
		profile:  profile,
		client:   client,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		store:    store,
		gas:      opts.Gas.Normalized(),
		notifier: notifier,
		log:      log.With(zap.String("protocol", "ethereum"), zap.Uint64("chain_id", profile.ChainID)),
		interval: interval,
	}, nil
}

// ResolveContractAddress returns the contract address created by the given
// transaction, read from its receipt.
func (a *Adapter) ResolveContractAddress(ctx context.Context, txHash string) (string, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return "", fmt.Errorf("transaction receipt %s: %w", txHash, err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return "", nil
	}
	return receipt.ContractAddress.Hex(), nil
}

// DeployStore originates a new DocumentStore contract seeded with the name.
func (a *Adapter) DeployStore(ctx context.Context, req chain.DeployRequest) (chain.SubmissionResult, error) {
	if err := req.Validate(); err != nil {
		return chain.SubmissionResult{}, err
	}

	bytecode, err := storeBytecode()
	if err != nil {
		return chain.SubmissionResult{}, fmt.Errorf("decode store bytecode: %w", err)
	}
	args, err := a.store.Pack("", req.StoreName)
	if err != nil {
		return chain.SubmissionResult{}, fmt.Errorf("pack constructor args: %w", err)
	}

	receipt, err := a.submit(ctx, "deploy", nil, append(bytecode, args...), req.RequesterEmail)
	if err != nil {
		return chain.SubmissionResult{}, err
	}

	return chain.SubmissionResult{
		TxHash:          receipt.TxHash.Hex(),
		ContractAddress: receipt.ContractAddress.Hex(),
	}, nil
}

// IssueCertificate records a merkle root as issued on an existing store.
func (a *Adapter) IssueCertificate(ctx context.Context, req chain.IssueRequest) (string, error) {
	return a.storeWrite(ctx, "issue", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

// RevokeCertificate records a merkle root as revoked.
func (a *Adapter) RevokeCertificate(ctx context.Context, req chain.RevokeRequest) (string, error) {
	return a.storeWrite(ctx, "revoke", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

func (a *Adapter) storeWrite(ctx context.Context, method, contractAddress, merkleRoot, email string) (string, error) {
	req := chain.IssueRequest{ContractAddress: contractAddress, MerkleRoot: merkleRoot, RequesterEmail: email}
	if err := req.Validate(); err != nil {
		return "", err
	}

	root := common.HexToHash(chain.NormalizeMerkleRoot(merkleRoot))
	calldata, err := a.store.Pack(method, root)
	if err != nil {
		return "", fmt.Errorf("pack %s call: %w", method, err)
	}

	to := common.HexToAddress(contractAddress)
	receipt, err := a.submit(ctx, method, &to, calldata, email)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// submit runs the shared submission pipeline. Any failing step is reported
// to the notifier once, then surfaced as ErrServiceUnavailable. Nothing is
// retried.
func (a *Adapter) submit(ctx context.Context, operation string, to *common.Address, calldata []byte, email string) (*types.Receipt, error) {
	metrics.SubmissionsTotal.WithLabelValues("ethereum", operation).Inc()
	start := time.Now()

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("suggest gas price: %w", err))
	}
	gasPrice = scaleBig(gasPrice, a.gas.PriceMultiplier)

	msg := goethereum.CallMsg{From: a.from, To: to, Data: calldata}
	gasLimit, err := a.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit = uint64(float64(gasLimit) * a.gas.LimitMultiplier)

	// Pending-inclusive nonce read. This is a time-of-check/time-of-use
	// read with no lock: callers serialize writes per adapter instance.
	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("pending nonce: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Data:     calldata,
	})

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(a.profile.ChainID))
	signed, err := types.SignTx(tx, signer, a.key)
	if err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("sign transaction: %w", err))
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("broadcast transaction: %w", err))
	}

	a.log.Info("transaction broadcast",
		zap.String("operation", operation),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
	)

	receipt, err := a.waitConfirmed(ctx, signed.Hash())
	if err != nil {
		return nil, a.fail(ctx, operation, email, fmt.Errorf("await confirmation: %w", err))
	}

	metrics.SubmissionDuration.WithLabelValues("ethereum", operation).Observe(time.Since(start).Seconds())
	return receipt, nil
}

// waitConfirmed polls for the receipt, then for the chain to reach the
// profile's confirmation depth past the inclusion block.
func (a *Adapter) waitConfirmed(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for receipt == nil {
		r, err := a.client.TransactionReceipt(ctx, txHash)
		if err == nil && r != nil {
			receipt = r
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("transaction %s reverted", txHash.Hex())
	}

	target := receipt.BlockNumber.Uint64() + a.profile.Confirmations - 1
	for {
		height, err := a.client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("block number: %w", err)
		}
		if height >= target {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) fail(ctx context.Context, operation, email string, err error) error {
	metrics.SubmissionFailuresTotal.WithLabelValues("ethereum", operation).Inc()
	a.log.Error("submission failed", zap.String("operation", operation), zap.Error(err))
	a.notifier.ReportIssue(ctx, email, err)
	return fmt.Errorf("ethereum %s: %w", operation, chain.ErrServiceUnavailable)
}

// IsIssued reports whether the store has issued the merkle root.
func (a *Adapter) IsIssued(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.storeView(ctx, "isIssued", store, merkleRoot)
}

// IsRevoked reports whether the store has revoked the merkle root.
func (a *Adapter) IsRevoked(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.storeView(ctx, "isRevoked", store, merkleRoot)
}

func (a *Adapter) storeView(ctx context.Context, method, store, merkleRoot string) (bool, error) {
	if !common.IsHexAddress(store) {
		return false, fmt.Errorf("malformed store address %q", store)
	}

	root := common.HexToHash(chain.NormalizeMerkleRoot(merkleRoot))
	calldata, err := a.store.Pack(method, root)
	if err != nil {
		return false, fmt.Errorf("pack %s call: %w", method, err)
	}

	to := common.HexToAddress(store)
	out, err := a.client.CallContract(ctx, goethereum.CallMsg{From: a.from, To: &to, Data: calldata}, nil)
	if err != nil {
		return false, fmt.Errorf("%w: call %s on %s: %v", chain.ErrInfrastructure, method, store, err)
	}

	results, err := a.store.Unpack(method, out)
	if err != nil || len(results) != 1 {
		return false, fmt.Errorf("unpack %s result: %w", method, err)
	}
	value, ok := results[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected %s result type %T", method, results[0])
	}
	return value, nil
}

// scaleBig multiplies a big integer by a float multiplier, truncating.
func scaleBig(v *big.Int, multiplier float64) *big.Int {
	if multiplier == 1 {
		return v
	}
	scaled, _ := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(multiplier)).Int(nil)
	return scaled
}
