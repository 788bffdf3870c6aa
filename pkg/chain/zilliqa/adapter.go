// Package zilliqa anchors document stores on Zilliqa networks. Zilliqa has
// no fee market: calls carry a fixed gas limit and the network minimum gas
// price, and the transaction version packs the chain id with the message
// version constant.
package zilliqa

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/logger"
	"github.com/nextid/blockchain/pkg/metrics"
	"github.com/nextid/blockchain/pkg/notify"
)

//go:embed documentstore.scilla
var storeScillaSource string

const (
	msgVersion = 1

	// Fixed limits; Zilliqa contract calls do not use execution estimation.
	callGasLimit   = 10000
	deployGasLimit = 10000

	// 2000 Li, used when the minimum gas price query yields nothing.
	fallbackGasPriceQa = 2_000_000_000
)

// Options configures an Adapter beyond its network profile.
type Options struct {
	Client          Client
	Notifier        notify.Notifier
	Logger          *zap.Logger
	ConfirmInterval time.Duration
}

// Adapter implements chain.Adapter and chain.StoreReader for Zilliqa.
type Adapter struct {
	profile  chain.NetworkProfile
	client   Client
	wallet   *Wallet
	version  uint32
	notifier notify.Notifier
	log      *zap.Logger
	interval time.Duration
}

// New constructs a Zilliqa adapter bound to one network profile.
func New(profile chain.NetworkProfile, opts Options) (*Adapter, error) {
	wallet, err := NewWallet(profile.AdminKey)
	if err != nil {
		return nil, err
	}

	client := opts.Client
	if client == nil {
		client = NewClient(profile.RPC)
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
		wallet:   wallet,
		version:  uint32(profile.ChainID)<<16 | msgVersion,
		notifier: notifier,
		log:      log.With(zap.String("protocol", "zilliqa"), zap.Uint64("chain_id", profile.ChainID)),
		interval: interval,
	}, nil
}

// ResolveContractAddress derives the contract address created by the given
// transaction from its sender and nonce, rendered bech32.
func (a *Adapter) ResolveContractAddress(ctx context.Context, txHash string) (string, error) {
	info, err := a.client.Transaction(ctx, txHash)
	if err != nil {
		return "", fmt.Errorf("transaction %s: %w", txHash, err)
	}

	sender, err := addressFromPubKey(info.SenderPubKey)
	if err != nil {
		return "", err
	}
	if info.Nonce == 0 {
		return "", fmt.Errorf("transaction %s reports nonce 0", txHash)
	}
	// the account nonce at creation time is the transaction nonce minus one
	return ToBech32Address(contractAddress(sender, info.Nonce-1))
}

// DeployStore deploys the Scilla DocumentStore seeded with the name and the
// admin account as owner.
func (a *Adapter) DeployStore(ctx context.Context, req chain.DeployRequest) (chain.SubmissionResult, error) {
	if err := req.Validate(); err != nil {
		return chain.SubmissionResult{}, err
	}

	init, err := json.Marshal([]scillaValue{
		{VName: "_scilla_version", Type: "Uint32", Value: "0"},
		{VName: "contract_owner", Type: "ByStr20", Value: a.wallet.Address()},
		{VName: "name", Type: "String", Value: req.StoreName},
		{VName: "version", Type: "String", Value: "1.0"},
	})
	if err != nil {
		return chain.SubmissionResult{}, fmt.Errorf("marshal init params: %w", err)
	}

	nilAddr := "0x0000000000000000000000000000000000000000"
	txID, nonce, err := a.submit(ctx, "deploy", nilAddr, storeScillaSource, string(init), deployGasLimit, req.RequesterEmail)
	if err != nil {
		return chain.SubmissionResult{}, err
	}

	deployed, err := ToBech32Address(contractAddress(a.wallet.Address(), nonce-1))
	if err != nil {
		return chain.SubmissionResult{}, err
	}
	return chain.SubmissionResult{TxHash: txID, ContractAddress: deployed}, nil
}

// IssueCertificate invokes the Issue transition with the normalized root.
func (a *Adapter) IssueCertificate(ctx context.Context, req chain.IssueRequest) (string, error) {
	return a.transition(ctx, "Issue", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

// RevokeCertificate invokes the Revoke transition with the normalized root.
func (a *Adapter) RevokeCertificate(ctx context.Context, req chain.RevokeRequest) (string, error) {
	return a.transition(ctx, "Revoke", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

type scillaValue struct {
	VName string `json:"vname"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (a *Adapter) transition(ctx context.Context, tag, contractAddr, merkleRoot, email string) (string, error) {
	req := chain.IssueRequest{ContractAddress: contractAddr, MerkleRoot: merkleRoot, RequesterEmail: email}
	if err := req.Validate(); err != nil {
		return "", err
	}

	to, err := normalizeAddress(contractAddr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", chain.ErrInvalidRequest, err)
	}

	data, err := json.Marshal(map[string]any{
		"_tag": tag,
		"params": []scillaValue{
			{VName: "document", Type: "ByStr32", Value: chain.NormalizeMerkleRoot(merkleRoot)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal %s params: %w", tag, err)
	}

	txID, _, err := a.submit(ctx, tag, to, "", string(data), callGasLimit, email)
	return txID, err
}

// submit runs the fixed-fee submission pipeline: minimum gas price, account
// nonce, sign, broadcast, confirmation poll. At-most-once, no retries. The
// returned nonce is the one the transaction was sent with.
func (a *Adapter) submit(ctx context.Context, operation, toAddr, code, data string, gasLimit uint64, email string) (string, uint64, error) {
	metrics.SubmissionsTotal.WithLabelValues("zilliqa", operation).Inc()
	start := time.Now()

	gasPrice := big.NewInt(fallbackGasPriceQa)
	if minimum, err := a.client.MinimumGasPrice(ctx); err == nil {
		gasPrice = minimum
	} else {
		a.log.Warn("minimum gas price unavailable, using fallback", zap.Error(err))
	}

	current, err := a.client.Nonce(ctx, a.wallet.Address())
	if err != nil {
		return "", 0, a.fail(ctx, operation, email, fmt.Errorf("account nonce: %w", err))
	}
	nonce := current + 1

	payload := &TxPayload{
		Version:  a.version,
		Nonce:    nonce,
		ToAddr:   toAddr,
		Amount:   "0",
		PubKey:   a.wallet.PublicKey(),
		GasPrice: gasPrice.String(),
		GasLimit: fmt.Sprintf("%d", gasLimit),
		Code:     code,
		Data:     data,
	}

	encoded, err := encodeForSigning(payload)
	if err != nil {
		return "", 0, a.fail(ctx, operation, email, fmt.Errorf("encode transaction: %w", err))
	}
	signature, err := a.wallet.Sign(encoded)
	if err != nil {
		return "", 0, a.fail(ctx, operation, email, fmt.Errorf("sign transaction: %w", err))
	}
	payload.Signature = hex.EncodeToString(signature)

	txID, err := a.client.CreateTransaction(ctx, payload)
	if err != nil {
		return "", 0, a.fail(ctx, operation, email, fmt.Errorf("broadcast transaction: %w", err))
	}

	a.log.Info("transaction broadcast",
		zap.String("operation", operation),
		zap.String("tx", txID),
		zap.Uint64("nonce", nonce),
	)

	if err := a.waitConfirmed(ctx, txID); err != nil {
		return "", 0, a.fail(ctx, operation, email, fmt.Errorf("await confirmation: %w", err))
	}

	metrics.SubmissionDuration.WithLabelValues("zilliqa", operation).Observe(time.Since(start).Seconds())
	return txID, nonce, nil
}

func (a *Adapter) waitConfirmed(ctx context.Context, txID string) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		info, err := a.client.Transaction(ctx, txID)
		if err == nil {
			if !info.Success {
				return fmt.Errorf("transaction %s rejected by contract", txID)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) fail(ctx context.Context, operation, email string, err error) error {
	metrics.SubmissionFailuresTotal.WithLabelValues("zilliqa", operation).Inc()
	a.log.Error("submission failed", zap.String("operation", operation), zap.Error(err))
	a.notifier.ReportIssue(ctx, email, err)
	return fmt.Errorf("zilliqa %s: %w", operation, chain.ErrServiceUnavailable)
}

// IsIssued reports whether the store's document_issued map contains the root.
func (a *Adapter) IsIssued(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.subStateExists(ctx, store, "document_issued", merkleRoot)
}

// IsRevoked reports whether the store's document_revoked map contains the root.
func (a *Adapter) IsRevoked(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.subStateExists(ctx, store, "document_revoked", merkleRoot)
}

func (a *Adapter) subStateExists(ctx context.Context, store, variable, merkleRoot string) (bool, error) {
	addr, err := normalizeAddress(store)
	if err != nil {
		return false, fmt.Errorf("malformed store address %q: %w", store, err)
	}

	raw, err := a.client.ContractSubState(ctx, addr, variable, []string{chain.NormalizeMerkleRoot(merkleRoot)})
	if err != nil {
		return false, fmt.Errorf("%w: substate %s on %s: %v", chain.ErrInfrastructure, variable, store, err)
	}
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null")), nil
}

// normalizeAddress accepts bech32 or 0x-hex and returns 0x-hex.
func normalizeAddress(addr string) (string, error) {
	if IsBech32Address(addr) {
		return FromBech32Address(addr)
	}
	raw, err := hex.DecodeString(stripHexPrefix(addr))
	if err != nil {
		return "", fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(raw) != 20 {
		return "", fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// contractAddress derives the address a contract deployment creates:
// sha256(sender address || big-endian nonce), last 20 bytes.
func contractAddress(senderHex string, nonce uint64) string {
	sender, _ := hex.DecodeString(stripHexPrefix(senderHex))
	buf := make([]byte, 0, len(sender)+8)
	buf = append(buf, sender...)
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[12:])
}

func addressFromPubKey(pubKeyHex string) (string, error) {
	raw, err := hex.DecodeString(stripHexPrefix(pubKeyHex))
	if err != nil {
		return "", fmt.Errorf("decode sender public key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "0x" + hex.EncodeToString(sum[12:]), nil
}
