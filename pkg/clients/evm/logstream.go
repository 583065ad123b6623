package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"
)

// ChainReader is the slice of Client the log stream needs; tests
// substitute a fake.
type ChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error)
}

// LogBatch is one confirmed slice of the chain: all matching logs in
// (previous watermark, ToBlock]. An empty Logs with an advanced
// ToBlock is a valid batch.
type LogBatch struct {
	Logs    []ethtypes.Log
	ToBlock uint64
}

type LogStreamOptions struct {
	ChainName     string
	After         uint64
	Confirmations uint64
	PollInterval  time.Duration
	Address       common.Address
	Topics        []common.Hash
}

// LogStream turns chain polling into discrete confirmed log batches.
// It only ever reports blocks at least Confirmations behind the head,
// and advances its watermark once per returned batch.
type LogStream struct {
	client ChainReader
	opts   LogStreamOptions
	after  uint64
}

func NewLogStream(client ChainReader, opts LogStreamOptions) *LogStream {
	return &LogStream{
		client: client,
		opts:   opts,
		after:  opts.After,
	}
}

// Next blocks until the confirmed head has advanced past the
// watermark, then returns the matching logs up to it.
func (s *LogStream) Next(ctx context.Context) (*LogBatch, error) {
	for {
		head, err := s.client.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s head block: %w", s.opts.ChainName, err)
		}

		if head >= s.opts.Confirmations {
			confirmed := head - s.opts.Confirmations
			if confirmed > s.after {
				query := ethereum.FilterQuery{
					FromBlock: new(big.Int).SetUint64(s.after + 1),
					ToBlock:   new(big.Int).SetUint64(confirmed),
					Addresses: []common.Address{s.opts.Address},
					Topics:    [][]common.Hash{s.opts.Topics},
				}
				logs, err := s.client.FilterLogs(ctx, query)
				if err != nil {
					return nil, fmt.Errorf("failed to fetch %s logs: %w", s.opts.ChainName, err)
				}
				log.Debug().Msgf("[LogStream] [%s] blocks %d..%d, %d matching logs",
					s.opts.ChainName, s.after+1, confirmed, len(logs))
				s.after = confirmed
				return &LogBatch{Logs: logs, ToBlock: confirmed}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}
}
