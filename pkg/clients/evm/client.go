package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
)

// Client wraps one chain's JSON-RPC connection. Every call runs under
// the configured request timeout so a stalled node cannot wedge the
// relay pipeline.
type Client struct {
	eth            *ethclient.Client
	chainName      string
	requestTimeout time.Duration
}

func DialClient(ctx context.Context, chainName, rpcURL string, requestTimeout time.Duration) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s rpc: %w", chainName, err)
	}
	log.Info().Msgf("[EvmClient] [%s] connected to %s", chainName, rpcURL)
	return &Client{
		eth:            ethclient.NewClient(rpcClient),
		chainName:      chainName,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) ChainName() string {
	return c.chainName
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// CallContract performs a read-only call of payload against the
// contract at to, returning the raw return bytes.
func (c *Client) CallContract(ctx context.Context, to common.Address, payload []byte) ([]byte, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: payload}, nil)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.BlockNumber(callCtx)
}

func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.FilterLogs(callCtx, query)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.BalanceAt(callCtx, account, nil)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.SuggestGasPrice(callCtx)
}

func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.PendingNonceAt(callCtx, account)
}

func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.eth.SendTransaction(callCtx, tx)
}

func (c *Client) Close() {
	c.eth.Close()
}
