package tezos

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// Tezos values travel base58check-encoded with type-identifying prefixes.
var (
	prefixEdskSeed  = []byte{13, 15, 58, 7}     // edsk (32-byte seed form)
	prefixEdskFull  = []byte{43, 246, 78, 7}    // edsk (64-byte key form)
	prefixContract  = []byte{2, 90, 121}        // KT1
	prefixOperation = []byte{5, 116}            // o
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func base58Encode(raw []byte) string {
	x := new(big.Int).SetBytes(raw)
	base := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	for _, b := range raw {
		if b != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func base58Decode(s string) ([]byte, error) {
	x := big.NewInt(0)
	base := big.NewInt(58)
	for _, c := range s {
		idx := bytes.IndexByte([]byte(base58Alphabet), byte(c))
		if idx < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", c)
		}
		x.Mul(x, base).Add(x, big.NewInt(int64(idx)))
	}
	raw := x.Bytes()
	for _, c := range s {
		if byte(c) != base58Alphabet[0] {
			break
		}
		raw = append([]byte{0}, raw...)
	}
	return raw, nil
}

// base58CheckEncode prepends the prefix and appends a double-sha256 checksum.
func base58CheckEncode(prefix, payload []byte) string {
	data := append(append([]byte{}, prefix...), payload...)
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return base58Encode(append(data, second[:4]...))
}

// base58CheckDecode verifies the checksum and strips the expected prefix.
func base58CheckDecode(prefix []byte, s string) ([]byte, error) {
	raw, err := base58Decode(s)
	if err != nil {
		return nil, err
	}
	if len(raw) < len(prefix)+4 {
		return nil, fmt.Errorf("base58check payload too short")
	}
	data, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:4], checksum) {
		return nil, fmt.Errorf("base58check checksum mismatch")
	}
	if !bytes.HasPrefix(data, prefix) {
		return nil, fmt.Errorf("unexpected base58check prefix")
	}
	return data[len(prefix):], nil
}

// contractAddress derives the KT1 address an origination creates:
// blake2b-160 over the operation hash and the origination index.
func contractAddress(opHash string, index int32) (string, error) {
	raw, err := base58CheckDecode(prefixOperation, opHash)
	if err != nil {
		return "", fmt.Errorf("decode operation hash %q: %w", opHash, err)
	}

	buf := make([]byte, 0, len(raw)+4)
	buf = append(buf, raw...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(index))

	digest, err := blake2b.New(20, nil)
	if err != nil {
		return "", err
	}
	digest.Write(buf)
	return base58CheckEncode(prefixContract, digest.Sum(nil)), nil
}

// charToBytes hex-encodes a string the way the metadata big map expects its
// off-chain pointer URL.
func charToBytes(s string) string {
	return hex.EncodeToString([]byte(s))
}

// watermarkedDigest is the 32-byte blake2b digest of the generic-operation
// watermark plus the forged bytes; this is what gets signed.
func watermarkedDigest(forged []byte) [32]byte {
	payload := append([]byte{0x03}, forged...)
	return blake2b.Sum256(payload)
}
