// Package dnstxt verifies issuer identity claims published as DNS TXT
// records: a record at the issuer's declared domain must bind the issuer's
// store address to the ledger the document is anchored on.
package dnstxt

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nextid/blockchain/pkg/document"
	"github.com/nextid/blockchain/pkg/verify"
)

const verifierName = "DnsTxtIdentityProof"

// Resolver is the DNS lookup the verifier depends on. *net.Resolver
// satisfies it.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Identity is the per-issuer identity verdict, retained in the fragment data
// even when a later issuer fails.
type Identity struct {
	Status   verify.Status `json:"status"`
	Location string        `json:"location"`
	Value    string        `json:"value"`
	Reason   string        `json:"reason,omitempty"`
}

// Verifier checks every DNS-TXT issuer of a document against one ledger
// identity (network name plus network id).
type Verifier struct {
	resolver Resolver
	net      string
	netID    string
	log      *zap.Logger
}

// New creates a DNS-TXT identity verifier. A nil resolver uses the system
// resolver.
func New(resolver Resolver, network, networkID string, log *zap.Logger) *Verifier {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Verifier{resolver: resolver, net: network, netID: networkID, log: log}
}

func (v *Verifier) Name() string { return verifierName }

// Test reports whether any issuer claims a DNS-TXT identity.
func (v *Verifier) Test(doc *document.Document) bool {
	for _, issuer := range doc.Issuers() {
		if issuer.UsesDNSTxt() {
			return true
		}
	}
	return false
}

func (v *Verifier) Skip(*document.Document) verify.Fragment {
	return verify.Fragment{
		Name:   verifierName,
		Type:   verify.TypeIssuerIdentity,
		Status: verify.StatusSkipped,
		Reason: "no issuer uses the DNS-TXT identity proof",
	}
}

// Verify resolves every DNS-TXT issuer concurrently. The fragment is VALID
// only when every issuer resolves to a matching record; the first mismatch
// supplies the fragment reason while all per-issuer results are kept for
// audit.
func (v *Verifier) Verify(ctx context.Context, doc *document.Document) (verify.Fragment, error) {
	issuers := make([]document.Issuer, 0, len(doc.Issuers()))
	for _, issuer := range doc.Issuers() {
		if !issuer.UsesDNSTxt() {
			continue
		}
		if issuer.IdentityProof.Location == "" {
			return verify.Fragment{}, fmt.Errorf("%w: issuer %q has a DNS-TXT proof without a location", verify.ErrMalformedDocument, issuer.Name)
		}
		if issuer.StoreAddress() == "" {
			return verify.Fragment{}, fmt.Errorf("%w: issuer %q has a DNS-TXT proof without a store address", verify.ErrMalformedDocument, issuer.Name)
		}
		issuers = append(issuers, issuer)
	}

	identities := make([]Identity, len(issuers))
	g, gctx := errgroup.WithContext(ctx)
	for i, issuer := range issuers {
		i, issuer := i, issuer
		g.Go(func() error {
			identities[i] = v.resolve(gctx, issuer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return verify.Fragment{}, err
	}

	for _, identity := range identities {
		if identity.Status != verify.StatusValid {
			return verify.Fragment{
				Name:   verifierName,
				Type:   verify.TypeIssuerIdentity,
				Status: verify.StatusInvalid,
				Data:   identities,
				Reason: identity.Reason,
			}, nil
		}
	}

	return verify.Fragment{
		Name:   verifierName,
		Type:   verify.TypeIssuerIdentity,
		Status: verify.StatusValid,
		Data:   identities,
	}, nil
}

func (v *Verifier) resolve(ctx context.Context, issuer document.Issuer) Identity {
	location := issuer.IdentityProof.Location
	store := issuer.StoreAddress()
	identity := Identity{Location: location, Value: store}

	records, err := v.resolver.LookupTXT(ctx, location)
	if err != nil {
		identity.Status = verify.StatusInvalid
		identity.Reason = fmt.Sprintf("resolving TXT records for %s: %v", location, err)
		return identity
	}

	for _, txt := range records {
		record, ok := parseRecord(txt)
		if !ok {
			continue
		}
		if record.Matches(v.net, v.netID, store) {
			identity.Status = verify.StatusValid
			return identity
		}
	}

	identity.Status = verify.StatusInvalid
	identity.Reason = fmt.Sprintf("matching DNS record not found for %s", location)
	return identity
}
