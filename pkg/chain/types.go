package chain

import (
	"fmt"
	"strings"
)

// DeployRequest originates a new document store contract.
type DeployRequest struct {
	StoreName      string
	RequesterEmail string
}

// IssueRequest records a merkle root as issued on an existing store.
type IssueRequest struct {
	ContractAddress string
	MerkleRoot      string
	RequesterEmail  string
}

// RevokeRequest records a merkle root as revoked on an existing store.
type RevokeRequest struct {
	ContractAddress string
	MerkleRoot      string
	RequesterEmail  string
}

// SubmissionResult is returned once the ledger has confirmed the write to the
// profile's required depth. ContractAddress is set for deployments only.
type SubmissionResult struct {
	TxHash          string `json:"txHash"`
	ContractAddress string `json:"contractAddress,omitempty"`
}

// NormalizeMerkleRoot canonicalizes a merkle root to its lower-case,
// 0x-prefixed hex representation. The operation is idempotent.
func NormalizeMerkleRoot(root string) string {
	root = strings.TrimSpace(root)
	root = strings.TrimPrefix(strings.ToLower(root), "0x")
	return "0x" + root
}

func (r DeployRequest) Validate() error {
	if r.StoreName == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalidRequest)
	}
	if r.RequesterEmail == "" {
		return fmt.Errorf("%w: requester email is required", ErrInvalidRequest)
	}
	return nil
}

func (r IssueRequest) Validate() error {
	if r.ContractAddress == "" {
		return fmt.Errorf("%w: contract address is required", ErrInvalidRequest)
	}
	if strings.TrimPrefix(r.MerkleRoot, "0x") == "" {
		return fmt.Errorf("%w: merkle root is required", ErrInvalidRequest)
	}
	if r.RequesterEmail == "" {
		return fmt.Errorf("%w: requester email is required", ErrInvalidRequest)
	}
	return nil
}

func (r RevokeRequest) Validate() error {
	return IssueRequest(r).Validate()
}
