package relayer

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briansoule/poa-bridge/pkg/contracts"
)

var (
	testAuthority     = common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccc")
	testOtherAddress  = common.HexToAddress("0xaff3454fce5edbc8cca8697c15331677e6ebcccd")
	testMessageHash   = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000f0")
	testForeignBridge = contracts.NewForeignBridge()
)

// collectedSignaturesLog hand-assembles a CollectedSignatures log:
// three abi-encoded words of non-indexed data.
func collectedSignaturesLog(t *testing.T, authority common.Address, messageHash common.Hash, count int64) ethtypes.Log {
	t.Helper()
	data := make([]byte, 0, 96)
	data = append(data, common.LeftPadBytes(authority.Bytes(), 32)...)
	data = append(data, messageHash.Bytes()...)
	data = append(data, common.BigToHash(big.NewInt(count)).Bytes()...)
	return ethtypes.Log{
		Topics: []common.Hash{testForeignBridge.CollectedSignaturesTopic()},
		Data:   data,
		TxHash: common.HexToHash("0x01"),
	}
}

func TestBuildAssignmentResponsible(t *testing.T) {
	receiptLog := collectedSignaturesLog(t, testAuthority, testMessageHash, 2)

	assignment, err := buildAssignment(testForeignBridge, testAuthority, receiptLog)
	require.NoError(t, err)
	require.NotNil(t, assignment)

	expectedMessage, err := testForeignBridge.PackMessageCall(testMessageHash)
	require.NoError(t, err)
	assert.Equal(t, expectedMessage, assignment.MessagePayload)

	require.Len(t, assignment.SignaturePayloads, 2)
	for i, payload := range assignment.SignaturePayloads {
		expected, err := testForeignBridge.PackSignatureCall(testMessageHash, uint32(i))
		require.NoError(t, err)
		assert.Equal(t, expected, payload)
	}
}

func TestBuildAssignmentNotResponsible(t *testing.T) {
	receiptLog := collectedSignaturesLog(t, testOtherAddress, testMessageHash, 2)

	assignment, err := buildAssignment(testForeignBridge, testAuthority, receiptLog)
	require.NoError(t, err)
	assert.Nil(t, assignment)
}

func TestBuildAssignmentRejectsImplausibleSignatureCount(t *testing.T) {
	for _, count := range []*big.Int{
		big.NewInt(maxAuthoritySignatures + 1),
		new(big.Int).Lsh(big.NewInt(1), 32),
		new(big.Int).Lsh(big.NewInt(1), 64),
	} {
		data := make([]byte, 0, 96)
		data = append(data, common.LeftPadBytes(testAuthority.Bytes(), 32)...)
		data = append(data, testMessageHash.Bytes()...)
		data = append(data, common.BigToHash(count).Bytes()...)
		receiptLog := ethtypes.Log{
			Topics: []common.Hash{testForeignBridge.CollectedSignaturesTopic()},
			Data:   data,
		}

		_, err := buildAssignment(testForeignBridge, testAuthority, receiptLog)
		require.Error(t, err, "count %s", count)
		assert.Contains(t, err.Error(), "implausible collected signature count")
	}

	// the maximum itself is fine
	receiptLog := collectedSignaturesLog(t, testAuthority, testMessageHash, maxAuthoritySignatures)
	assignment, err := buildAssignment(testForeignBridge, testAuthority, receiptLog)
	require.NoError(t, err)
	assert.Len(t, assignment.SignaturePayloads, maxAuthoritySignatures)
}

func TestBuildAssignmentMalformedLog(t *testing.T) {
	receiptLog := ethtypes.Log{
		Topics: []common.Hash{testForeignBridge.CollectedSignaturesTopic()},
		Data:   []byte{0x01, 0x02},
	}

	_, err := buildAssignment(testForeignBridge, testAuthority, receiptLog)
	assert.Error(t, err)
}
