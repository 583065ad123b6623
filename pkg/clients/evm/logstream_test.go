package evm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChainReader struct {
	heads   []uint64
	headIdx int
	headErr error

	logs      []ethtypes.Log
	logsErr   error
	lastQuery ethereum.FilterQuery
	queries   int
}

func (f *fakeChainReader) BlockNumber(ctx context.Context) (uint64, error) {
	if f.headErr != nil {
		return 0, f.headErr
	}
	head := f.heads[f.headIdx]
	if f.headIdx < len(f.heads)-1 {
		f.headIdx++
	}
	return head, nil
}

func (f *fakeChainReader) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.lastQuery = query
	f.queries++
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func streamOptions(after uint64) LogStreamOptions {
	return LogStreamOptions{
		ChainName:     "foreign",
		After:         after,
		Confirmations: 12,
		PollInterval:  time.Millisecond,
		Address:       common.HexToAddress("0x01"),
		Topics:        []common.Hash{common.HexToHash("0x02")},
	}
}

func TestLogStreamEmitsConfirmedRange(t *testing.T) {
	chain := &fakeChainReader{
		heads: []uint64{115},
		logs:  []ethtypes.Log{{BlockNumber: 101}},
	}
	stream := NewLogStream(chain, streamOptions(100))

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(103), batch.ToBlock)
	assert.Len(t, batch.Logs, 1)
	assert.Equal(t, uint64(101), chain.lastQuery.FromBlock.Uint64())
	assert.Equal(t, uint64(103), chain.lastQuery.ToBlock.Uint64())
	assert.Equal(t, []common.Address{common.HexToAddress("0x01")}, chain.lastQuery.Addresses)
}

func TestLogStreamWaitsForConfirmations(t *testing.T) {
	// head 105 confirms only block 93; watermark is already 100, so the
	// stream must poll again until the head reaches 113.
	chain := &fakeChainReader{heads: []uint64{105, 113}}
	stream := NewLogStream(chain, streamOptions(100))

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(101), batch.ToBlock)
	assert.Empty(t, batch.Logs)
	assert.Equal(t, 1, chain.queries)
}

func TestLogStreamEmptyBatchIsValid(t *testing.T) {
	chain := &fakeChainReader{heads: []uint64{120}}
	stream := NewLogStream(chain, streamOptions(100))

	batch, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch.Logs)
	assert.Equal(t, uint64(108), batch.ToBlock)
}

func TestLogStreamAdvancesWatermark(t *testing.T) {
	chain := &fakeChainReader{heads: []uint64{120, 130}}
	stream := NewLogStream(chain, streamOptions(100))

	first, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(108), first.ToBlock)

	second, err := stream.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(118), second.ToBlock)
	assert.Equal(t, uint64(109), chain.lastQuery.FromBlock.Uint64())
}

func TestLogStreamHeadError(t *testing.T) {
	chain := &fakeChainReader{headErr: errors.New("connection refused")}
	stream := NewLogStream(chain, streamOptions(100))

	_, err := stream.Next(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "head block")
}

func TestLogStreamFilterError(t *testing.T) {
	chain := &fakeChainReader{heads: []uint64{120}, logsErr: errors.New("filter failed")}
	stream := NewLogStream(chain, streamOptions(100))

	_, err := stream.Next(context.Background())
	require.Error(t, err)
}

func TestLogStreamContextCancel(t *testing.T) {
	chain := &fakeChainReader{heads: []uint64{100}}
	stream := NewLogStream(chain, streamOptions(100))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := stream.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
