package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTxBackend struct {
	pendingNonce uint64
	nonceCalls   int
	nonceErr     error

	sent    []*ethtypes.Transaction
	sendErr error
}

func (f *fakeTxBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.nonceCalls++
	if f.nonceErr != nil {
		return 0, f.nonceErr
	}
	return f.pendingNonce, nil
}

func (f *fakeTxBackend) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func newTestSender(t *testing.T, backend TxBackend) *Sender {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return NewSender(backend, key, 77, 1, time.Millisecond)
}

func withdrawTx() *UnsignedTx {
	return &UnsignedTx{
		To:       common.HexToAddress("0x0dcd2f752394c41875e259e00bb44fd505297caf"),
		GasLimit: 100000,
		GasPrice: big.NewInt(250),
		Data:     []byte{0xde, 0xad},
	}
}

func TestSenderAssignsSequentialNonces(t *testing.T) {
	backend := &fakeTxBackend{pendingNonce: 5}
	sender := newTestSender(t, backend)

	_, err := sender.Send(context.Background(), withdrawTx())
	require.NoError(t, err)
	_, err = sender.Send(context.Background(), withdrawTx())
	require.NoError(t, err)

	require.Len(t, backend.sent, 2)
	assert.Equal(t, uint64(5), backend.sent[0].Nonce())
	assert.Equal(t, uint64(6), backend.sent[1].Nonce())
	// nonce fetched once, then allocated locally
	assert.Equal(t, 1, backend.nonceCalls)
}

func TestSenderSignsConfiguredFields(t *testing.T) {
	backend := &fakeTxBackend{pendingNonce: 0}
	sender := newTestSender(t, backend)

	hash, err := sender.Send(context.Background(), withdrawTx())
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, common.HexToAddress("0x0dcd2f752394c41875e259e00bb44fd505297caf"), *tx.To())
	assert.Equal(t, uint64(100000), tx.Gas())
	assert.Equal(t, big.NewInt(250), tx.GasPrice())
	assert.Equal(t, big.NewInt(0), tx.Value())
	assert.Equal(t, []byte{0xde, 0xad}, tx.Data())

	from, err := ethtypes.Sender(ethtypes.NewEIP155Signer(big.NewInt(77)), tx)
	require.NoError(t, err)
	assert.Equal(t, sender.From(), from)
}

func TestSenderResyncsNonceAfterFailure(t *testing.T) {
	backend := &fakeTxBackend{pendingNonce: 5, sendErr: errors.New("nonce too low")}
	sender := newTestSender(t, backend)

	_, err := sender.Send(context.Background(), withdrawTx())
	require.Error(t, err)

	backend.sendErr = nil
	backend.pendingNonce = 9
	_, err = sender.Send(context.Background(), withdrawTx())
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	assert.Equal(t, uint64(9), backend.sent[0].Nonce())
	assert.Equal(t, 2, backend.nonceCalls)
}

func TestSenderNonceFetchError(t *testing.T) {
	backend := &fakeTxBackend{nonceErr: errors.New("connection refused")}
	sender := newTestSender(t, backend)

	_, err := sender.Send(context.Background(), withdrawTx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending nonce")
}
