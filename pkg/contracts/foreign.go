package contracts

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// The foreign bridge surface the withdraw relay consumes: the
// CollectedSignatures notice plus the two lookup functions that hand
// back the signed withdrawal message and the authority signatures.
const foreignBridgeABI = `[
	{
		"type": "event",
		"name": "CollectedSignatures",
		"inputs": [
			{"indexed": false, "name": "authorityResponsibleForRelay", "type": "address"},
			{"indexed": false, "name": "messageHash", "type": "bytes32"},
			{"indexed": false, "name": "numberOfCollectedSignatures", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "message",
		"stateMutability": "view",
		"inputs": [{"name": "messageHash", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bytes"}]
	},
	{
		"type": "function",
		"name": "signature",
		"stateMutability": "view",
		"inputs": [
			{"name": "messageHash", "type": "bytes32"},
			{"name": "index", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bytes"}]
	}
]`

// CollectedSignaturesEvent is one parsed CollectedSignatures log: the
// authority quorum for messageHash is complete and
// authorityResponsibleForRelay owns relaying it to the home chain.
type CollectedSignaturesEvent struct {
	AuthorityResponsibleForRelay common.Address
	MessageHash                  common.Hash
	NumberOfCollectedSignatures  *big.Int
}

type ForeignBridge struct {
	abi abi.ABI
}

func NewForeignBridge() *ForeignBridge {
	parsed, err := abi.JSON(strings.NewReader(foreignBridgeABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse foreign bridge abi: %v", err))
	}
	return &ForeignBridge{abi: parsed}
}

// CollectedSignaturesTopic returns the topic0 used to filter foreign
// chain logs for CollectedSignatures events.
func (f *ForeignBridge) CollectedSignaturesTopic() common.Hash {
	return f.abi.Events["CollectedSignatures"].ID
}

func (f *ForeignBridge) ParseCollectedSignatures(receiptLog ethtypes.Log) (*CollectedSignaturesEvent, error) {
	if len(receiptLog.Topics) == 0 || receiptLog.Topics[0] != f.CollectedSignaturesTopic() {
		return nil, fmt.Errorf("log topic 0 does not match CollectedSignatures event id")
	}
	var args struct {
		AuthorityResponsibleForRelay common.Address
		MessageHash                  [32]byte
		NumberOfCollectedSignatures  *big.Int
	}
	if err := f.abi.UnpackIntoInterface(&args, "CollectedSignatures", receiptLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack CollectedSignatures event: %w", err)
	}
	return &CollectedSignaturesEvent{
		AuthorityResponsibleForRelay: args.AuthorityResponsibleForRelay,
		MessageHash:                  common.Hash(args.MessageHash),
		NumberOfCollectedSignatures:  args.NumberOfCollectedSignatures,
	}, nil
}

// PackMessageCall encodes a ForeignBridge.message(messageHash) call.
func (f *ForeignBridge) PackMessageCall(messageHash common.Hash) ([]byte, error) {
	return f.abi.Pack("message", [32]byte(messageHash))
}

// PackSignatureCall encodes a ForeignBridge.signature(messageHash, index) call.
func (f *ForeignBridge) PackSignatureCall(messageHash common.Hash, index uint32) ([]byte, error) {
	return f.abi.Pack("signature", [32]byte(messageHash), new(big.Int).SetUint64(uint64(index)))
}

func (f *ForeignBridge) UnpackMessage(ret []byte) ([]byte, error) {
	out, err := f.abi.Unpack("message", ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack message return data: %w", err)
	}
	return out[0].([]byte), nil
}

func (f *ForeignBridge) UnpackSignature(ret []byte) ([]byte, error) {
	out, err := f.abi.Unpack("signature", ret)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack signature return data: %w", err)
	}
	return out[0].([]byte), nil
}
