package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"github.com/briansoule/poa-bridge/config"
	"github.com/briansoule/poa-bridge/pkg/clients/evm"
	"github.com/briansoule/poa-bridge/pkg/contracts"
	"github.com/briansoule/poa-bridge/pkg/db"
)

const (
	foreignChainName      = "foreign"
	homeChainName         = "home"
	collectedSignaturesEv = "CollectedSignatures"
)

// Service owns the withdraw relay pipeline: both chain clients, the
// home state refresher, the foreign log stream, the relay engine and
// checkpoint persistence.
type Service struct {
	cfg       *config.Config
	dbAdapter *db.DatabaseAdapter

	foreignClient *evm.Client
	homeClient    *evm.Client
	homeState     *HomeChainState
	relay         *WithdrawRelay
}

func NewService(ctx context.Context, cfg *config.Config, dbAdapter *db.DatabaseAdapter) (*Service, error) {
	foreignClient, err := evm.DialClient(ctx, foreignChainName, cfg.Foreign.RPCUrl, cfg.Foreign.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create foreign client: %w", err)
	}
	homeClient, err := evm.DialClient(ctx, homeChainName, cfg.Home.RPCUrl, cfg.Home.RequestTimeout)
	if err != nil {
		foreignClient.Close()
		return nil, fmt.Errorf("failed to create home client: %w", err)
	}

	key, err := cfg.RelayKey()
	if err != nil {
		foreignClient.Close()
		homeClient.Close()
		return nil, fmt.Errorf("failed to load relay key: %w", err)
	}
	myAddress := crypto.PubkeyToAddress(key.PublicKey)
	log.Info().Msgf("[Service] relaying withdraws as authority %s", myAddress.Hex())

	sender := evm.NewSender(homeClient, key, cfg.Home.ChainID, cfg.Home.MaxRetry, cfg.Home.RetryDelay)
	homeState := NewHomeChainState(homeClient, myAddress, new(big.Int).SetUint64(cfg.Home.DefaultGasPrice))

	after, err := dbAdapter.GetCheckpoint(foreignChainName, collectedSignaturesEv, cfg.Foreign.StartBlock)
	if err != nil {
		foreignClient.Close()
		homeClient.Close()
		return nil, err
	}
	logs := evm.NewLogStream(foreignClient, evm.LogStreamOptions{
		ChainName:     foreignChainName,
		After:         after,
		Confirmations: cfg.Foreign.Confirmations,
		PollInterval:  cfg.Foreign.PollInterval,
		Address:       common.HexToAddress(cfg.Foreign.BridgeContract),
		Topics:        []common.Hash{contracts.NewForeignBridge().CollectedSignaturesTopic()},
	})

	relay := NewWithdrawRelay(WithdrawRelayConfig{
		MyAddress:             myAddress,
		ForeignContract:       common.HexToAddress(cfg.Foreign.BridgeContract),
		HomeContract:          common.HexToAddress(cfg.Home.BridgeContract),
		GasLimit:              cfg.Home.GasLimit,
		NotReadyRetryInterval: cfg.Home.StateRefreshInterval,
	}, logs, foreignClient, sender, homeState)

	return &Service{
		cfg:           cfg,
		dbAdapter:     dbAdapter,
		foreignClient: foreignClient,
		homeClient:    homeClient,
		homeState:     homeState,
		relay:         relay,
	}, nil
}

// Start runs the relay loop until ctx is cancelled or the pipeline
// fails. Errors are returned rather than retried; restarting the
// process resumes from the persisted checkpoint, and replayed
// withdraws are no-ops on the home contract.
func (s *Service) Start(ctx context.Context) error {
	go s.homeState.Run(ctx, s.cfg.Home.StateRefreshInterval)

	for {
		checked, err := s.relay.Next(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("withdraw relay failed: %w", err)
		}
		if err := s.dbAdapter.UpdateCheckpoint(foreignChainName, collectedSignaturesEv, checked.ToBlock); err != nil {
			return err
		}
		log.Info().Msgf("[Service] [%s] checkpoint advanced to block %d", checked.Kind, checked.ToBlock)
	}
}

func (s *Service) Stop() {
	s.foreignClient.Close()
	s.homeClient.Close()
}
