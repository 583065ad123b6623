package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/briansoule/poa-bridge/pkg/types"
)

const homeBridgeABI = `[
	{
		"type": "function",
		"name": "withdraw",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "vs", "type": "uint8[]"},
			{"name": "rs", "type": "bytes32[]"},
			{"name": "ss", "type": "bytes32[]"},
			{"name": "message", "type": "bytes"}
		],
		"outputs": []
	}
]`

type HomeBridge struct {
	abi abi.ABI
}

func NewHomeBridge() *HomeBridge {
	parsed, err := abi.JSON(strings.NewReader(homeBridgeABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse home bridge abi: %v", err))
	}
	return &HomeBridge{abi: parsed}
}

// PackWithdraw encodes a HomeBridge.withdraw call from the collected
// authority signatures and the raw withdrawal message bytes.
func (h *HomeBridge) PackWithdraw(signatures []*types.Signature, message []byte) ([]byte, error) {
	vs := make([]uint8, len(signatures))
	rs := make([][32]byte, len(signatures))
	ss := make([][32]byte, len(signatures))
	for i, sig := range signatures {
		vs[i] = sig.V
		rs[i] = sig.R
		ss[i] = sig.S
	}
	return h.abi.Pack("withdraw", vs, rs, ss, message)
}
