package zilliqa

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Wallet holds the adapter's admin signing credential and produces the
// Schnorr signatures Zilliqa transactions require.
type Wallet struct {
	priv *secp256k1.PrivateKey
	pub  []byte // compressed
}

// NewWallet parses a hex-encoded secp256k1 private key.
func NewWallet(hexKey string) (*Wallet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse admin key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("admin key must be 32 bytes, got %d", len(raw))
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return &Wallet{
		priv: priv,
		pub:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// PublicKey returns the compressed public key hex.
func (w *Wallet) PublicKey() string {
	return hex.EncodeToString(w.pub)
}

// Address returns the 0x-prefixed account address (last 20 bytes of the
// sha256 of the compressed public key).
func (w *Wallet) Address() string {
	sum := sha256.Sum256(w.pub)
	return "0x" + hex.EncodeToString(sum[12:])
}

// Sign produces a 64-byte r||s Schnorr signature over msg using the
// Zilliqa scheme: r = H(kG || pub || msg), s = k - r*priv mod n.
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	for attempt := 0; attempt < 16; attempt++ {
		k, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate nonce: %w", err)
		}

		h := sha256.New()
		h.Write(k.PubKey().SerializeCompressed())
		h.Write(w.pub)
		h.Write(msg)

		var r secp256k1.ModNScalar
		r.SetByteSlice(h.Sum(nil))
		if r.IsZero() {
			continue
		}

		var s secp256k1.ModNScalar
		s.Set(&r)
		s.Mul(&w.priv.Key)
		s.Negate()
		s.Add(&k.Key)
		if s.IsZero() {
			continue
		}

		rb := r.Bytes()
		sb := s.Bytes()
		sig := make([]byte, 0, 64)
		sig = append(sig, rb[:]...)
		sig = append(sig, sb[:]...)
		return sig, nil
	}
	return nil, errors.New("schnorr: exhausted signing attempts")
}

// Verify reports whether sig is a valid signature over msg for the wallet's
// public key: recompute Q = sG + rP and check r == H(Q || pub || msg).
func (w *Wallet) Verify(msg, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return false
	}

	pub, err := secp256k1.ParsePubKey(w.pub)
	if err != nil {
		return false
	}

	var pj, rp, q secp256k1.JacobianPoint
	pub.AsJacobian(&pj)
	secp256k1.ScalarMultNonConst(&r, &pj, &rp)
	secp256k1.ScalarBaseMultNonConst(&s, &q)
	secp256k1.AddNonConst(&q, &rp, &q)
	if q.Z.IsZero() {
		return false
	}
	q.ToAffine()

	h := sha256.New()
	h.Write(secp256k1.NewPublicKey(&q.X, &q.Y).SerializeCompressed())
	h.Write(w.pub)
	h.Write(msg)

	var check secp256k1.ModNScalar
	check.SetByteSlice(h.Sum(nil))
	return check.Equals(&r)
}
