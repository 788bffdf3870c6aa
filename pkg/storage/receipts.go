// Package storage persists anchoring receipts so operators can audit what
// was written to which ledger. Receipts are an operational convenience, not
// part of the write path contract: a failed receipt write never fails the
// submission that produced it.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nextid/blockchain/pkg/chain"
)

// Key prefixes for receipt records
const (
	KeyPrefixReceipt = "anchor:rcpt:" // per (protocol, network, operation, root)
	KeyIndexReceipts = "anchor:idx"   // list of all receipt keys, append order
)

// Receipt is one confirmed ledger write.
type Receipt struct {
	Protocol        string    `json:"protocol"`
	Network         string    `json:"network"`
	Operation       string    `json:"operation"`
	MerkleRoot      string    `json:"merkleRoot,omitempty"`
	TxHash          string    `json:"txHash"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	RequesterEmail  string    `json:"requesterEmail"`
	AnchoredAt      time.Time `json:"anchoredAt"`
}

// ReceiptStore records confirmed submissions in redis.
type ReceiptStore struct {
	client *RedisClient
	logger *zap.Logger
}

// NewReceiptStore creates a receipt store over the given client.
func NewReceiptStore(client *RedisClient) *ReceiptStore {
	return &ReceiptStore{
		client: client,
		logger: client.logger.With(zap.String("storage", "receipts")),
	}
}

// Save persists a receipt and appends its key to the audit index.
func (s *ReceiptStore) Save(ctx context.Context, receipt Receipt) error {
	if receipt.TxHash == "" {
		return fmt.Errorf("receipt has no transaction hash")
	}
	if receipt.AnchoredAt.IsZero() {
		receipt.AnchoredAt = time.Now().UTC()
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	key := ReceiptKey(receipt.Protocol, receipt.Network, receipt.Operation, receipt.MerkleRoot)
	pipe := s.client.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.RPush(ctx, KeyIndexReceipts, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save receipt %s: %w", key, err)
	}

	s.logger.Debug("saved receipt",
		zap.String("key", key),
		zap.String("tx", receipt.TxHash),
	)
	return nil
}

// Load retrieves one receipt by its coordinates.
func (s *ReceiptStore) Load(ctx context.Context, protocol, network, operation, merkleRoot string) (*Receipt, error) {
	key := ReceiptKey(protocol, network, operation, merkleRoot)
	data, err := s.client.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load receipt %s: %w", key, err)
	}

	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", key, err)
	}
	return &receipt, nil
}

// ReceiptKey builds the storage key for one submission. Roots are normalized
// so the key is stable across caller spellings; deployments have no root and
// key on the operation alone.
func ReceiptKey(protocol, network, operation, merkleRoot string) string {
	key := fmt.Sprintf("%s%s:%s:%s", KeyPrefixReceipt, protocol, network, operation)
	if merkleRoot != "" {
		key += ":" + chain.NormalizeMerkleRoot(merkleRoot)
	}
	return key
}
