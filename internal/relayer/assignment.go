package relayer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/briansoule/poa-bridge/pkg/contracts"
)

// maxAuthoritySignatures bounds the per-withdraw signature count. The
// count comes straight from a chain log, so it must be validated
// before it sizes any allocation or loop.
const maxAuthoritySignatures = 256

// RelayAssignment holds the foreign chain call payloads needed to
// relay one withdrawal: one ForeignBridge.message call and one
// ForeignBridge.signature call per collected signature.
type RelayAssignment struct {
	MessagePayload    []byte
	SignaturePayloads [][]byte
}

// buildAssignment decodes one CollectedSignatures log. It returns
// (nil, nil) when another authority is responsible for the relay:
// responsibility is sharded across the authority set so exactly one
// node relays each withdrawal. A log that fails to decode aborts the
// whole batch.
func buildAssignment(foreign *contracts.ForeignBridge, myAddress common.Address, receiptLog ethtypes.Log) (*RelayAssignment, error) {
	event, err := foreign.ParseCollectedSignatures(receiptLog)
	if err != nil {
		return nil, fmt.Errorf("failed to decode collected signatures log: %w", err)
	}
	if event.AuthorityResponsibleForRelay != myAddress {
		log.Info().Msgf("[WithdrawRelay] not responsible for relaying withdraw %s, another authority will",
			receiptLog.TxHash.Hex())
		return nil, nil
	}

	count := event.NumberOfCollectedSignatures
	if !count.IsUint64() || count.Uint64() > maxAuthoritySignatures {
		return nil, fmt.Errorf("implausible collected signature count %s for message %s",
			count.String(), event.MessageHash.Hex())
	}
	required := uint32(count.Uint64())
	signaturePayloads := make([][]byte, 0, required)
	for index := uint32(0); index < required; index++ {
		payload, err := foreign.PackSignatureCall(event.MessageHash, index)
		if err != nil {
			return nil, fmt.Errorf("failed to encode signature call: %w", err)
		}
		signaturePayloads = append(signaturePayloads, payload)
	}
	messagePayload, err := foreign.PackMessageCall(event.MessageHash)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message call: %w", err)
	}

	return &RelayAssignment{
		MessagePayload:    messagePayload,
		SignaturePayloads: signaturePayloads,
	}, nil
}
