// Package verify composes independent document checks into one auditable
// verdict. Each verifier produces a fragment; the engine runs all of them and
// returns the full ordered fragment list, never a partial one.
package verify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nextid/blockchain/pkg/document"
	"github.com/nextid/blockchain/pkg/metrics"
)

// ErrMalformedDocument marks a document whose structure defeats a verifier
// that already declared itself applicable. It fails the whole verification
// call instead of being absorbed into a fragment.
var ErrMalformedDocument = errors.New("malformed document")

// Verifier is one independent check.
type Verifier interface {
	Name() string

	// Test is the cheap applicability check; when it reports false the
	// engine records Skip's fragment without calling Verify.
	Test(doc *document.Document) bool
	Skip(doc *document.Document) Fragment

	// Verify produces the fragment. A non-nil error is fatal to the whole
	// verification call.
	Verify(ctx context.Context, doc *document.Document) (Fragment, error)
}

// Engine runs a fixed, ordered registry of verifiers.
type Engine struct {
	verifiers []Verifier
	log       *zap.Logger
}

// NewEngine registers the verifiers in the given order. Order is part of the
// contract: the fragment list is positional.
func NewEngine(log *zap.Logger, verifiers ...Verifier) *Engine {
	return &Engine{verifiers: verifiers, log: log}
}

// Verify fans all verifiers out concurrently and fans their fragments back
// into registration order. Individual INVALID outcomes never short-circuit
// other verifiers; only a fatal verifier error fails the call.
func (e *Engine) Verify(ctx context.Context, doc *document.Document) ([]Fragment, error) {
	fragments := make([]Fragment, len(e.verifiers))

	g, ctx := errgroup.WithContext(ctx)
	for i, v := range e.verifiers {
		i, v := i, v
		g.Go(func() error {
			if !v.Test(doc) {
				fragments[i] = v.Skip(doc)
				return nil
			}
			fragment, err := v.Verify(ctx, doc)
			if err != nil {
				return fmt.Errorf("%s: %w", v.Name(), err)
			}
			fragments[i] = fragment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.log.Error("verification aborted", zap.Error(err))
		return nil, err
	}

	metrics.VerificationsTotal.Inc()
	for _, fragment := range fragments {
		metrics.VerificationFragmentsTotal.WithLabelValues(fragment.Name, string(fragment.Status)).Inc()
		e.log.Debug("fragment produced",
			zap.String("verifier", fragment.Name),
			zap.String("status", string(fragment.Status)),
		)
	}
	return fragments, nil
}
