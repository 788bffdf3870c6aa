package zilliqa

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

// The node verifies Schnorr signatures over the protobuf serialization of
// the transaction core info, not over the JSON-RPC payload. The message is
// small and fixed, so the wire format is written out directly:
//
//	message ProtoTransactionCoreInfo {
//	    uint32 version         = 1;
//	    uint64 nonce           = 2;
//	    bytes toaddr           = 3;
//	    ByteArray senderpubkey = 4;
//	    ByteArray amount       = 5;  // 16-byte big-endian
//	    ByteArray gasprice     = 6;  // 16-byte big-endian
//	    uint64 gaslimit        = 7;
//	    bytes code             = 8;
//	    bytes data             = 9;
//	}
//	message ByteArray { bytes data = 1; }
const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(buf []byte, field, wire int) []byte {
	return binary.AppendUvarint(buf, uint64(field)<<3|uint64(wire))
}

func appendVarintField(buf []byte, field int, v uint64) []byte {
	buf = appendTag(buf, field, wireVarint)
	return binary.AppendUvarint(buf, v)
}

func appendBytesField(buf []byte, field int, data []byte) []byte {
	buf = appendTag(buf, field, wireBytes)
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	return append(buf, data...)
}

// appendByteArrayField writes a nested ByteArray message.
func appendByteArrayField(buf []byte, field int, data []byte) []byte {
	inner := appendBytesField(nil, 1, data)
	return appendBytesField(buf, field, inner)
}

// uint128 renders a decimal Qa value as the 16-byte big-endian block the
// wire format uses for amount and gas price.
func uint128(decimal string) ([]byte, error) {
	v, ok := new(big.Int).SetString(decimal, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("malformed amount %q", decimal)
	}
	if v.BitLen() > 128 {
		return nil, fmt.Errorf("amount %q exceeds 128 bits", decimal)
	}
	return v.FillBytes(make([]byte, 16)), nil
}

// encodeForSigning serializes the unsigned transaction as the core-info
// message. These are the exact bytes the node recomputes when it checks the
// signature, so any drift here makes every broadcast fail.
func encodeForSigning(payload *TxPayload) ([]byte, error) {
	toAddr, err := hex.DecodeString(stripHexPrefix(payload.ToAddr))
	if err != nil {
		return nil, fmt.Errorf("decode to address: %w", err)
	}
	pubKey, err := hex.DecodeString(payload.PubKey)
	if err != nil {
		return nil, fmt.Errorf("decode sender public key: %w", err)
	}
	amount, err := uint128(payload.Amount)
	if err != nil {
		return nil, err
	}
	gasPrice, err := uint128(payload.GasPrice)
	if err != nil {
		return nil, err
	}
	gasLimit, err := strconv.ParseUint(payload.GasLimit, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed gas limit %q: %w", payload.GasLimit, err)
	}

	var buf []byte
	buf = appendVarintField(buf, 1, uint64(payload.Version))
	buf = appendVarintField(buf, 2, payload.Nonce)
	buf = appendBytesField(buf, 3, toAddr)
	buf = appendByteArrayField(buf, 4, pubKey)
	buf = appendByteArrayField(buf, 5, amount)
	buf = appendByteArrayField(buf, 6, gasPrice)
	buf = appendVarintField(buf, 7, gasLimit)
	if payload.Code != "" {
		buf = appendBytesField(buf, 8, []byte(payload.Code))
	}
	if payload.Data != "" {
		buf = appendBytesField(buf, 9, []byte(payload.Data))
	}
	return buf, nil
}
