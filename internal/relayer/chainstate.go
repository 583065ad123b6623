package relayer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// HomeStateReader is the engine's read-only view of the home chain
// state cache. Balance returns nil while the first refresh has not
// completed yet.
type HomeStateReader interface {
	Balance() *big.Int
	GasPrice() *big.Int
}

// BalanceFetcher is the slice of the home chain client the refresher
// needs.
type BalanceFetcher interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// HomeChainState caches the relay account balance and the home gas
// price behind a read/write lock. A refresher goroutine owns the
// writes; the relay engine only reads snapshots.
type HomeChainState struct {
	client  BalanceFetcher
	account common.Address

	mu       sync.RWMutex
	balance  *big.Int
	gasPrice *big.Int
}

func NewHomeChainState(client BalanceFetcher, account common.Address, defaultGasPrice *big.Int) *HomeChainState {
	return &HomeChainState{
		client:   client,
		account:  account,
		gasPrice: defaultGasPrice,
	}
}

func (s *HomeChainState) Balance() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.balance == nil {
		return nil
	}
	return new(big.Int).Set(s.balance)
}

func (s *HomeChainState) GasPrice() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.gasPrice)
}

// Refresh fetches the current balance and gas price once. A gas price
// fetch failure keeps the previous value; a balance fetch failure is
// returned so the caller can log it, leaving the cache untouched.
func (s *HomeChainState) Refresh(ctx context.Context) error {
	balance, err := s.client.BalanceAt(ctx, s.account)
	if err != nil {
		return err
	}
	gasPrice, gasErr := s.client.SuggestGasPrice(ctx)

	s.mu.Lock()
	s.balance = balance
	if gasErr == nil {
		s.gasPrice = gasPrice
	}
	s.mu.Unlock()

	if gasErr != nil {
		log.Warn().Err(gasErr).Msgf("[HomeChainState] keeping previous gas price")
	}
	return nil
}

// Run refreshes the cache on an interval until ctx is cancelled.
func (s *HomeChainState) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msgf("[HomeChainState] failed to refresh home account %s", s.account.Hex())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
