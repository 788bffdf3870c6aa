package chain

import "context"

// Adapter is the uniform contract implemented by every chain-specific
// adapter. Implementations hide signing, fee estimation, nonce handling and
// confirmation semantics behind these four operations.
//
// Write operations are at-most-once: no step is retried on failure. An
// adapter instance owns a single admin signing credential and provides no
// mutual exclusion between concurrent writes; callers must serialize writes
// per instance. Reads are side-effect-free and safely concurrent.
type Adapter interface {
	// ResolveContractAddress looks up the contract address created by the
	// given transaction. Returns the empty string for ledgers where the
	// concept is inapplicable.
	ResolveContractAddress(ctx context.Context, txHash string) (string, error)

	// DeployStore originates a new document store seeded with a name and a
	// metadata pointer.
	DeployStore(ctx context.Context, req DeployRequest) (SubmissionResult, error)

	// IssueCertificate records a merkle root as issued on an existing store.
	IssueCertificate(ctx context.Context, req IssueRequest) (string, error)

	// RevokeCertificate records a merkle root as revoked.
	RevokeCertificate(ctx context.Context, req RevokeRequest) (string, error)
}

// StoreReader is the read-only issuance/revocation view of a document store.
// All three adapters implement it in addition to Adapter.
type StoreReader interface {
	IsIssued(ctx context.Context, store, merkleRoot string) (bool, error)
	IsRevoked(ctx context.Context, store, merkleRoot string) (bool, error)
}

// GasOptions tunes the fee-market submission pipeline. Multipliers default
// to 1 when left unset by configuration.
type GasOptions struct {
	PriceMultiplier float64
	LimitMultiplier float64
}

// Normalized returns a copy with zero multipliers replaced by 1.
func (g GasOptions) Normalized() GasOptions {
	if g.PriceMultiplier <= 0 {
		g.PriceMultiplier = 1
	}
	if g.LimitMultiplier <= 0 {
		g.LimitMultiplier = 1
	}
	return g
}
