package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"
)

// TxBackend is the slice of Client the sender needs; tests substitute
// a fake.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// UnsignedTx is a transaction assembled by the relay engine. The nonce
// is deliberately absent: Send assigns it.
type UnsignedTx struct {
	To       common.Address
	GasLimit uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// Sender signs and submits transactions for a single account. A mutex
// serializes nonce assignment and submission, so concurrent callers
// never race for the same nonce. Transient submission failures are
// retried a bounded number of times; after a failed submission the
// cached nonce is dropped and re-synced from the node.
type Sender struct {
	client     TxBackend
	key        *ecdsa.PrivateKey
	from       common.Address
	signer     ethtypes.Signer
	maxRetries uint
	retryDelay time.Duration

	mu          sync.Mutex
	nonce       uint64
	nonceSynced bool
}

func NewSender(client TxBackend, key *ecdsa.PrivateKey, chainID uint64, maxRetries uint, retryDelay time.Duration) *Sender {
	return &Sender{
		client:     client,
		key:        key,
		from:       crypto.PubkeyToAddress(key.PublicKey),
		signer:     ethtypes.NewEIP155Signer(new(big.Int).SetUint64(chainID)),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (s *Sender) From() common.Address {
	return s.from
}

// Send assigns the next account nonce, signs the transaction and
// submits it, returning the transaction hash.
func (s *Sender) Send(ctx context.Context, tx *UnsignedTx) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nonceSynced {
		nonce, err := s.client.PendingNonceAt(ctx, s.from)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to fetch pending nonce for %s: %w", s.from.Hex(), err)
		}
		s.nonce = nonce
		s.nonceSynced = true
	}

	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	signed, err := ethtypes.SignTx(
		ethtypes.NewTransaction(s.nonce, tx.To, value, tx.GasLimit, tx.GasPrice, tx.Data),
		s.signer,
		s.key,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	err = retry.Do(
		func() error { return s.client.SendTransaction(ctx, signed) },
		retry.Context(ctx),
		retry.Attempts(s.maxRetries),
		retry.Delay(s.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		// The node may or may not have seen the nonce. Re-sync on the
		// next send instead of guessing.
		s.nonceSynced = false
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	log.Info().Msgf("[Sender] [%s] sent tx %s nonce %d gasPrice %s",
		s.from.Hex(), signed.Hash().Hex(), s.nonce, tx.GasPrice.String())
	s.nonce++
	return signed.Hash(), nil
}
