package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MessageLength is the fixed size of a withdrawal message relayed from
// the foreign bridge to the home bridge:
// recipient (20) ++ value (32) ++ foreign tx hash (32) ++ home gas price (32).
const MessageLength = 116

// MessageToHome is the payload an authority quorum signed off on. The
// home gas price is embedded at withdrawal-request time so the relay
// prices each home transaction the way the requester paid for.
type MessageToHome struct {
	Recipient     common.Address
	Value         *big.Int
	ForeignTxHash common.Hash
	HomeGasPrice  *big.Int
}

func MessageFromBytes(data []byte) (*MessageToHome, error) {
	if len(data) != MessageLength {
		return nil, fmt.Errorf("invalid withdrawal message length %d, expected %d", len(data), MessageLength)
	}
	return &MessageToHome{
		Recipient:     common.BytesToAddress(data[0:20]),
		Value:         new(big.Int).SetBytes(data[20:52]),
		ForeignTxHash: common.BytesToHash(data[52:84]),
		HomeGasPrice:  new(big.Int).SetBytes(data[84:116]),
	}, nil
}

func (m *MessageToHome) Bytes() []byte {
	out := make([]byte, 0, MessageLength)
	out = append(out, m.Recipient.Bytes()...)
	out = append(out, common.BigToHash(m.Value).Bytes()...)
	out = append(out, m.ForeignTxHash.Bytes()...)
	out = append(out, common.BigToHash(m.HomeGasPrice).Bytes()...)
	return out
}
