// Package document reads wrapped certificate documents. Documents are
// consumed read-only: the verification path needs the issuer metadata, the
// identity-proof block and the merkle root, nothing else. Field values inside
// the data block may carry wrapping salts of the form `<salt>:<type>:<value>`
// which are stripped on access.
package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextid/blockchain/pkg/chain"
)

// Supported wrapped schema versions.
const (
	SchemaOpenCerts  = "opencerts/v2.0"
	SchemaHealthCert = "healthcert/v1.0"
)

// IdentityProofDNSTxt marks an issuer whose identity is claimed through a
// DNS TXT record at the proof's location.
const IdentityProofDNSTxt = "DNS-TXT"

// Document is a wrapped certificate.
type Document struct {
	Version   string    `json:"version"`
	Data      Data      `json:"data"`
	Signature Signature `json:"signature"`
}

// Data is the salted payload block.
type Data struct {
	Name    string   `json:"name"`
	Issuers []Issuer `json:"issuers"`
}

// Issuer declares who anchored the document and where.
type Issuer struct {
	Name             string         `json:"name"`
	DocumentStore    string         `json:"documentStore,omitempty"`
	CertificateStore string         `json:"certificateStore,omitempty"`
	Network          string         `json:"network,omitempty"`
	IdentityProof    *IdentityProof `json:"identityProof,omitempty"`
}

// IdentityProof binds the issuer to an off-chain identity claim.
type IdentityProof struct {
	Type     string `json:"type"`
	Location string `json:"location"`
}

// Signature is the wrapping proof block. Unlike the data block its values
// are never salted.
type Signature struct {
	Type       string   `json:"type"`
	TargetHash string   `json:"targetHash"`
	MerkleRoot string   `json:"merkleRoot"`
	Proof      []string `json:"proof,omitempty"`
}

// Parse decodes a wrapped document and strips wrapping salts from the data
// block. The signature block must carry a merkle root.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode wrapped document: %w", err)
	}

	doc.Data.Name = unsalt(doc.Data.Name)
	for i := range doc.Data.Issuers {
		issuer := &doc.Data.Issuers[i]
		issuer.Name = unsalt(issuer.Name)
		issuer.DocumentStore = unsalt(issuer.DocumentStore)
		issuer.CertificateStore = unsalt(issuer.CertificateStore)
		issuer.Network = unsalt(issuer.Network)
		if issuer.IdentityProof != nil {
			issuer.IdentityProof.Type = unsalt(issuer.IdentityProof.Type)
			issuer.IdentityProof.Location = unsalt(issuer.IdentityProof.Location)
		}
	}

	if doc.Signature.MerkleRoot == "" {
		return nil, fmt.Errorf("wrapped document has no merkle root")
	}
	return &doc, nil
}

// MerkleRoot returns the document's canonical 0x-prefixed merkle root.
func (d *Document) MerkleRoot() string {
	return chain.NormalizeMerkleRoot(d.Signature.MerkleRoot)
}

// Issuers returns the issuer declarations.
func (d *Document) Issuers() []Issuer {
	return d.Data.Issuers
}

// StoreAddress returns the ledger store the issuer anchors against; older
// schemas call the field certificateStore.
func (i Issuer) StoreAddress() string {
	if i.DocumentStore != "" {
		return i.DocumentStore
	}
	return i.CertificateStore
}

// UsesDNSTxt reports whether the issuer claims its identity over DNS TXT.
func (i Issuer) UsesDNSTxt() bool {
	return i.IdentityProof != nil && strings.EqualFold(i.IdentityProof.Type, IdentityProofDNSTxt)
}

// unsalt strips a `<salt>:<type>:<value>` wrapping prefix. Values without a
// recognized type tag pass through unchanged.
func unsalt(value string) string {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return value
	}
	switch parts[1] {
	case "string", "number", "boolean", "null", "undefined":
		return parts[2]
	default:
		return value
	}
}
