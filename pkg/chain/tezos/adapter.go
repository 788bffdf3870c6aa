// Package tezos anchors document stores on Tezos networks. Stores are
// originated from an embedded Michelson script, certificate roots travel as
// entrypoint arguments, and inclusion is confirmed by scanning recent blocks
// for the injected operation hash.
package tezos

import (
	"context"
	"crypto/ed25519"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/logger"
	"github.com/nextid/blockchain/pkg/metrics"
	"github.com/nextid/blockchain/pkg/notify"
)

//go:embed documentstore.michelson.json
var storeMichelson []byte

// Flat fees and limits in mutez/gas units; Tezos fees are declared by the
// sender rather than market-priced per operation.
const (
	callFee          = "12000"
	callGasLimit     = "10600"
	callStorageLimit = "350"

	originationFee          = "30000"
	originationGasLimit     = "60000"
	originationStorageLimit = "12000"
)

// Options configures an Adapter beyond its network profile.
type Options struct {
	Client          Client
	Notifier        notify.Notifier
	Logger          *zap.Logger
	ConfirmInterval time.Duration
}

// Adapter implements chain.Adapter and chain.StoreReader for Tezos.
type Adapter struct {
	profile  chain.NetworkProfile
	client   Client
	key      ed25519.PrivateKey
	notifier notify.Notifier
	log      *zap.Logger
	interval time.Duration
}

// New constructs a Tezos adapter bound to one network profile. The admin key
// is an edsk-encoded ed25519 key in either seed or expanded form.
func New(profile chain.NetworkProfile, opts Options) (*Adapter, error) {
	key, err := decodeSecretKey(profile.AdminKey)
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
		key:      key,
		notifier: notifier,
		log:      log.With(zap.String("protocol", "tezos"), zap.String("rpc", profile.RPC)),
		interval: interval,
	}, nil
}

func decodeSecretKey(encoded string) (ed25519.PrivateKey, error) {
	if seed, err := base58CheckDecode(prefixEdskSeed, encoded); err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("edsk seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}

	full, err := base58CheckDecode(prefixEdskFull, encoded)
	if err != nil {
		return nil, fmt.Errorf("decode admin key: %w", err)
	}
	if len(full) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("edsk key must be %d bytes, got %d", ed25519.PrivateKeySize, len(full))
	}
	return ed25519.PrivateKey(full), nil
}

// ResolveContractAddress returns the empty string: Tezos contract addresses
// are derived from the origination operation at deploy time, not recoverable
// from a bare transaction hash through the adapter.
func (a *Adapter) ResolveContractAddress(ctx context.Context, txHash string) (string, error) {
	return "", nil
}

// DeployStore originates the DocumentStore script with empty issuance maps
// and the network's metadata URL stored char-to-bytes under the empty key.
func (a *Adapter) DeployStore(ctx context.Context, req chain.DeployRequest) (chain.SubmissionResult, error) {
	if err := req.Validate(); err != nil {
		return chain.SubmissionResult{}, err
	}

	content := map[string]any{
		"kind":          "origination",
		"source":        a.profile.AdminAddress,
		"fee":           originationFee,
		"gas_limit":     originationGasLimit,
		"storage_limit": originationStorageLimit,
		"balance":       "0",
		"script": map[string]any{
			"code":    json.RawMessage(storeMichelson),
			"storage": a.initialStorage(req.StoreName),
		},
	}

	// origination only needs inclusion, not the call confirmation depth
	opHash, err := a.submit(ctx, "deploy", content, 1, req.RequesterEmail)
	if err != nil {
		return chain.SubmissionResult{}, err
	}

	deployed, err := contractAddress(opHash, 0)
	if err != nil {
		return chain.SubmissionResult{}, err
	}
	return chain.SubmissionResult{TxHash: opHash, ContractAddress: deployed}, nil
}

// IssueCertificate calls the issue entrypoint with the normalized root.
func (a *Adapter) IssueCertificate(ctx context.Context, req chain.IssueRequest) (string, error) {
	return a.call(ctx, "issue", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

// RevokeCertificate calls the revoke entrypoint with the normalized root.
func (a *Adapter) RevokeCertificate(ctx context.Context, req chain.RevokeRequest) (string, error) {
	return a.call(ctx, "revoke", req.ContractAddress, req.MerkleRoot, req.RequesterEmail)
}

func (a *Adapter) call(ctx context.Context, entrypoint, contractAddr, merkleRoot, email string) (string, error) {
	req := chain.IssueRequest{ContractAddress: contractAddr, MerkleRoot: merkleRoot, RequesterEmail: email}
	if err := req.Validate(); err != nil {
		return "", err
	}

	content := map[string]any{
		"kind":          "transaction",
		"source":        a.profile.AdminAddress,
		"fee":           callFee,
		"gas_limit":     callGasLimit,
		"storage_limit": callStorageLimit,
		"amount":        "0",
		"destination":   contractAddr,
		"parameters": map[string]any{
			"entrypoint": entrypoint,
			"value":      map[string]string{"string": chain.NormalizeMerkleRoot(merkleRoot)},
		},
	}

	confirmations := a.profile.Confirmations
	if confirmations == 0 {
		confirmations = 3
	}
	return a.submit(ctx, entrypoint, content, confirmations, email)
}

func pair(left, right any) map[string]any {
	return map[string]any{"prim": "Pair", "args": []any{left, right}}
}

// initialStorage builds the readable-mode storage literal: two empty
// issuance maps, the metadata map seeded with the off-chain pointer, the
// store name and the admin owner.
func (a *Adapter) initialStorage(name string) any {
	metadata := []any{}
	if a.profile.MetadataURL != "" {
		metadata = append(metadata, map[string]any{
			"prim": "Elt",
			"args": []any{
				map[string]string{"string": ""},
				map[string]string{"bytes": charToBytes(a.profile.MetadataURL)},
			},
		})
	}

	return pair(
		[]any{}, // documentIssued
		pair(
			[]any{}, // documentRevoked
			pair(
				metadata,
				pair(
					map[string]string{"string": name},
					map[string]string{"string": a.profile.AdminAddress},
				),
			),
		),
	)
}

// submit runs the submission pipeline: account counter, remote forge, local
// ed25519 signature over the watermarked digest, injection, then a poll for
// block inclusion at the requested depth. At-most-once, no retries.
func (a *Adapter) submit(ctx context.Context, operation string, content map[string]any, confirmations uint64, email string) (string, error) {
	metrics.SubmissionsTotal.WithLabelValues("tezos", operation).Inc()
	start := time.Now()

	counter, err := a.client.Counter(ctx, a.profile.AdminAddress)
	if err != nil {
		return "", a.fail(ctx, operation, email, fmt.Errorf("account counter: %w", err))
	}
	content["counter"] = strconv.FormatUint(counter+1, 10)

	forged, err := a.client.Forge(ctx, []any{content})
	if err != nil {
		return "", a.fail(ctx, operation, email, fmt.Errorf("forge operation: %w", err))
	}

	digest := watermarkedDigest(forged)
	signature := ed25519.Sign(a.key, digest[:])
	signedHex := hex.EncodeToString(forged) + hex.EncodeToString(signature)

	opHash, err := a.client.Inject(ctx, signedHex)
	if err != nil {
		return "", a.fail(ctx, operation, email, fmt.Errorf("inject operation: %w", err))
	}

	a.log.Info("operation injected",
		zap.String("operation", operation),
		zap.String("op_hash", opHash),
		zap.Uint64("counter", counter+1),
	)

	if err := a.waitConfirmed(ctx, opHash, confirmations); err != nil {
		return "", a.fail(ctx, operation, email, fmt.Errorf("await confirmation: %w", err))
	}

	metrics.SubmissionDuration.WithLabelValues("tezos", operation).Observe(time.Since(start).Seconds())
	return opHash, nil
}

// waitConfirmed polls until the operation appears in a block and the head has
// advanced the requested number of levels past it.
func (a *Adapter) waitConfirmed(ctx context.Context, opHash string, confirmations uint64) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	var includedAt uint64
	for {
		if includedAt == 0 {
			level, found, err := a.client.FindOperation(ctx, opHash, 60)
			if err != nil {
				a.log.Warn("inclusion scan failed", zap.String("op_hash", opHash), zap.Error(err))
			} else if found {
				includedAt = level
			}
		}
		if includedAt != 0 {
			head, err := a.client.HeadLevel(ctx)
			if err == nil && head >= includedAt+confirmations-1 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) fail(ctx context.Context, operation, email string, err error) error {
	metrics.SubmissionFailuresTotal.WithLabelValues("tezos", operation).Inc()
	a.log.Error("submission failed", zap.String("operation", operation), zap.Error(err))
	a.notifier.ReportIssue(ctx, email, err)
	return fmt.Errorf("tezos %s: %w", operation, chain.ErrServiceUnavailable)
}

// IsIssued reports whether the store's isIssued view accepts the root.
func (a *Adapter) IsIssued(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.runBoolView(ctx, store, "isIssued", merkleRoot)
}

// IsRevoked reports whether the store's isRevoked view accepts the root.
func (a *Adapter) IsRevoked(ctx context.Context, store, merkleRoot string) (bool, error) {
	return a.runBoolView(ctx, store, "isRevoked", merkleRoot)
}

func (a *Adapter) runBoolView(ctx context.Context, store, view, merkleRoot string) (bool, error) {
	input := map[string]string{"string": chain.NormalizeMerkleRoot(merkleRoot)}
	raw, err := a.client.RunView(ctx, store, view, input)
	if err != nil {
		return false, fmt.Errorf("%w: view %s on %s: %v", chain.ErrInfrastructure, view, store, err)
	}

	var value struct {
		Prim string `json:"prim"`
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("view %s on %s: malformed result %s: %w", view, store, raw, err)
	}
	switch value.Prim {
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		return false, fmt.Errorf("view %s on %s: unexpected prim %q", view, store, value.Prim)
	}
}
