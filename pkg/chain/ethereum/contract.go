package ethereum

import (
	_ "embed"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// storeABIJSON describes the DocumentStore contract surface used by the
// adapter: constructor(name), the issue/revoke writes and the
// isIssued/isRevoked views. The full artifact is an external build input.
const storeABIJSON = `[
  {"inputs":[{"internalType":"string","name":"_name","type":"string"}],"stateMutability":"nonpayable","type":"constructor"},
  {"inputs":[{"internalType":"bytes32","name":"document","type":"bytes32"}],"name":"issue","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"document","type":"bytes32"}],"name":"revoke","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"document","type":"bytes32"}],"name":"isIssued","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"bytes32","name":"document","type":"bytes32"}],"name":"isRevoked","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// storeBytecodeHex is the compiled DocumentStore creation bytecode,
// produced by the contract build and committed as an artifact.
//
//go:embed documentstore.bin
var storeBytecodeHex string

func storeABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(storeABIJSON))
}

func storeBytecode() ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(storeBytecodeHex), "0x"))
}
