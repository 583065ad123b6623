package types

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureFromBytes(t *testing.T) {
	raw := make([]byte, SignatureLength)
	copy(raw[0:32], common.HexToHash("0x0102").Bytes())
	copy(raw[32:64], common.HexToHash("0x0304").Bytes())
	raw[64] = 0x1b

	sig, err := SignatureFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x0102"), sig.R)
	assert.Equal(t, common.HexToHash("0x0304"), sig.S)
	assert.Equal(t, byte(0x1b), sig.V)
	assert.Equal(t, raw, sig.Bytes())
}

func TestSignatureFromBytesWrongLength(t *testing.T) {
	_, err := SignatureFromBytes(make([]byte, 64))
	require.Error(t, err)

	_, err = SignatureFromBytes(nil)
	require.Error(t, err)
}

func TestMessageFromBytes(t *testing.T) {
	recipient := common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	txHash := common.HexToHash("0x884edad9ce6fa2440d8a54cc123490eb96d2768479d49ff9c7366125a9424364")

	raw := make([]byte, 0, MessageLength)
	raw = append(raw, recipient.Bytes()...)
	raw = append(raw, common.BigToHash(big.NewInt(1000)).Bytes()...)
	raw = append(raw, txHash.Bytes()...)
	raw = append(raw, common.BigToHash(big.NewInt(250)).Bytes()...)

	msg, err := MessageFromBytes(raw)
	require.NoError(t, err)
	assert.Equal(t, recipient, msg.Recipient)
	assert.Equal(t, big.NewInt(1000), msg.Value)
	assert.Equal(t, txHash, msg.ForeignTxHash)
	assert.Equal(t, big.NewInt(250), msg.HomeGasPrice)
	assert.Equal(t, raw, msg.Bytes())
}

func TestMessageFromBytesWrongLength(t *testing.T) {
	_, err := MessageFromBytes(make([]byte, MessageLength-1))
	require.Error(t, err)

	short, err := hex.DecodeString("deadbeef")
	require.NoError(t, err)
	_, err = MessageFromBytes(short)
	require.Error(t, err)
}
