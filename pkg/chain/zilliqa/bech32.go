package zilliqa

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Zilliqa account and contract addresses are presented bech32-encoded with
// the "zil" human-readable part.

const bech32HRP = "zil"
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var bech32Generator = [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}

func bech32Polymod(values []byte) uint32 {
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 == 1 {
				chk ^= bech32Generator[i]
			}
		}
	}
	return chk
}

func bech32HRPExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for _, c := range hrp {
		out = append(out, byte(c)>>5)
	}
	out = append(out, 0)
	for _, c := range hrp {
		out = append(out, byte(c)&0x1f)
	}
	return out
}

func bech32CreateChecksum(hrp string, data []byte) []byte {
	values := append(bech32HRPExpand(hrp), data...)
	values = append(values, 0, 0, 0, 0, 0, 0)
	polymod := bech32Polymod(values) ^ 1
	checksum := make([]byte, 6)
	for i := range checksum {
		checksum[i] = byte(polymod >> uint(5*(5-i)) & 0x1f)
	}
	return checksum
}

func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	acc := 0
	bits := uint(0)
	var out []byte
	maxv := (1 << toBits) - 1
	for _, b := range data {
		if b>>fromBits != 0 {
			return nil, fmt.Errorf("invalid data range: %d", b)
		}
		acc = acc<<fromBits | int(b)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits&maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits)&maxv))
		}
	} else if bits >= fromBits || acc<<(toBits-bits)&maxv != 0 {
		return nil, fmt.Errorf("invalid padding")
	}
	return out, nil
}

// ToBech32Address encodes a 20-byte hex address as zil1...
func ToBech32Address(hexAddr string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(hexAddr), "0x"))
	if err != nil {
		return "", fmt.Errorf("decode address %q: %w", hexAddr, err)
	}
	if len(raw) != 20 {
		return "", fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}

	data, err := convertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(bech32HRP)
	sb.WriteByte('1')
	for _, d := range append(data, bech32CreateChecksum(bech32HRP, data)...) {
		sb.WriteByte(bech32Charset[d])
	}
	return sb.String(), nil
}

// FromBech32Address decodes a zil1... address into 0x-prefixed hex.
func FromBech32Address(addr string) (string, error) {
	addr = strings.ToLower(addr)
	sep := strings.LastIndexByte(addr, '1')
	if sep < 1 || !strings.HasPrefix(addr, bech32HRP) {
		return "", fmt.Errorf("not a %s bech32 address: %q", bech32HRP, addr)
	}

	data := make([]byte, 0, len(addr)-sep-1)
	for _, c := range addr[sep+1:] {
		idx := strings.IndexRune(bech32Charset, c)
		if idx < 0 {
			return "", fmt.Errorf("invalid bech32 character %q", c)
		}
		data = append(data, byte(idx))
	}
	if len(data) < 6 {
		return "", fmt.Errorf("bech32 payload too short")
	}

	values := append(bech32HRPExpand(bech32HRP), data...)
	if bech32Polymod(values) != 1 {
		return "", fmt.Errorf("bech32 checksum mismatch")
	}

	raw, err := convertBits(data[:len(data)-6], 5, 8, false)
	if err != nil {
		return "", err
	}
	if len(raw) != 20 {
		return "", fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	return "0x" + hex.EncodeToString(raw), nil
}

// IsBech32Address reports whether addr parses as a zil1... address.
func IsBech32Address(addr string) bool {
	_, err := FromBech32Address(addr)
	return err == nil
}
