// Package storestatus checks a document's on-chain issuance and revocation
// state against every document store its issuers declare.
package storestatus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nextid/blockchain/pkg/chain"
	"github.com/nextid/blockchain/pkg/document"
	"github.com/nextid/blockchain/pkg/verify"
)

const verifierName = "DocumentStoreStatus"

// IssuanceStatus is the per-store issuance verdict.
type IssuanceStatus struct {
	Address string `json:"address"`
	Issued  bool   `json:"issued"`
	Reason  string `json:"reason,omitempty"`
}

// RevocationStatus is the per-store revocation verdict.
type RevocationStatus struct {
	Address string `json:"address"`
	Revoked bool   `json:"revoked"`
	Reason  string `json:"reason,omitempty"`
}

// Data is the fragment payload. Revocation is nil when issuance already
// failed: revocation is not evaluated for an unissued document.
type Data struct {
	IssuedOnAll  bool               `json:"issuedOnAll"`
	RevokedOnAny bool               `json:"revokedOnAny"`
	Issuance     []IssuanceStatus   `json:"issuance"`
	Revocation   []RevocationStatus `json:"revocation,omitempty"`
}

// Verifier checks issuance then revocation across all declared stores.
type Verifier struct {
	reader chain.StoreReader
	log    *zap.Logger
}

// New creates the store status verifier over one ledger session.
func New(reader chain.StoreReader, log *zap.Logger) *Verifier {
	return &Verifier{reader: reader, log: log}
}

func (v *Verifier) Name() string { return verifierName }

// Test reports whether any issuer declares a store address.
func (v *Verifier) Test(doc *document.Document) bool {
	for _, issuer := range doc.Issuers() {
		if issuer.StoreAddress() != "" {
			return true
		}
	}
	return false
}

func (v *Verifier) Skip(*document.Document) verify.Fragment {
	return verify.Fragment{
		Name:   verifierName,
		Type:   verify.TypeDocumentStatus,
		Status: verify.StatusSkipped,
		Reason: "no issuer declares a document store",
	}
}

// Verify queries issuance on every store concurrently; only when all stores
// report issued does it go on to query revocation. Store-level failures are
// absorbed into the verdict, infrastructure failures abort the call.
func (v *Verifier) Verify(ctx context.Context, doc *document.Document) (verify.Fragment, error) {
	stores := make([]string, 0, len(doc.Issuers()))
	for _, issuer := range doc.Issuers() {
		addr := issuer.StoreAddress()
		if addr == "" {
			return verify.Fragment{}, fmt.Errorf("%w: issuer %q declares no document store", verify.ErrMalformedDocument, issuer.Name)
		}
		stores = append(stores, addr)
	}
	merkleRoot := doc.MerkleRoot()

	issuance := make([]IssuanceStatus, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, store := range stores {
		i, store := i, store
		g.Go(func() error {
			issued, err := v.reader.IsIssued(gctx, store, merkleRoot)
			if errors.Is(err, chain.ErrInfrastructure) {
				return err
			}
			if err != nil {
				issuance[i] = IssuanceStatus{Address: store, Reason: err.Error()}
				return nil
			}
			status := IssuanceStatus{Address: store, Issued: issued}
			if !issued {
				status.Reason = fmt.Sprintf("certificate %s has not been issued on %s", merkleRoot, store)
			}
			issuance[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return verify.Fragment{}, err
	}

	for _, status := range issuance {
		if !status.Issued {
			return verify.Fragment{
				Name:   verifierName,
				Type:   verify.TypeDocumentStatus,
				Status: verify.StatusInvalid,
				Data:   Data{IssuedOnAll: false, Issuance: issuance},
				Reason: status.Reason,
			}, nil
		}
	}

	revocation := make([]RevocationStatus, len(stores))
	g, gctx = errgroup.WithContext(ctx)
	for i, store := range stores {
		i, store := i, store
		g.Go(func() error {
			revoked, err := v.reader.IsRevoked(gctx, store, merkleRoot)
			if errors.Is(err, chain.ErrInfrastructure) {
				return err
			}
			if err != nil {
				// a store that cannot prove non-revocation fails the check
				revocation[i] = RevocationStatus{Address: store, Revoked: true, Reason: err.Error()}
				return nil
			}
			status := RevocationStatus{Address: store, Revoked: revoked}
			if revoked {
				status.Reason = fmt.Sprintf("certificate %s has been revoked on %s", merkleRoot, store)
			}
			revocation[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return verify.Fragment{}, err
	}

	for _, status := range revocation {
		if status.Revoked {
			return verify.Fragment{
				Name:   verifierName,
				Type:   verify.TypeDocumentStatus,
				Status: verify.StatusInvalid,
				Data:   Data{IssuedOnAll: true, RevokedOnAny: true, Issuance: issuance, Revocation: revocation},
				Reason: status.Reason,
			}, nil
		}
	}

	return verify.Fragment{
		Name:   verifierName,
		Type:   verify.TypeDocumentStatus,
		Status: verify.StatusValid,
		Data:   Data{IssuedOnAll: true, Issuance: issuance, Revocation: revocation},
	}, nil
}
