package relayer

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/briansoule/poa-bridge/pkg/clients/evm"
	"github.com/briansoule/poa-bridge/pkg/contracts"
	"github.com/briansoule/poa-bridge/pkg/types"
)

// LogBatchSource yields confirmed foreign chain log batches; in
// production this is an evm.LogStream.
type LogBatchSource interface {
	Next(ctx context.Context) (*evm.LogBatch, error)
}

// ContractCaller executes read-only contract calls on the foreign
// chain.
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, payload []byte) ([]byte, error)
}

// WithdrawSender submits withdraw transactions to the home chain.
type WithdrawSender interface {
	Send(ctx context.Context, tx *evm.UnsignedTx) (common.Hash, error)
}

type CheckedKind string

const CheckedWithdrawRelay CheckedKind = "WithdrawRelay"

// Checked records that every withdraw up to and including ToBlock has
// been relayed; persisting it advances the scan watermark.
type Checked struct {
	Kind    CheckedKind
	ToBlock uint64
}

type WithdrawRelayConfig struct {
	MyAddress       common.Address
	ForeignContract common.Address
	HomeContract    common.Address
	GasLimit        uint64
	// How long Next waits between steps while the home balance is not
	// known yet.
	NotReadyRetryInterval time.Duration
}

type relayPhase int

const (
	phaseWait relayPhase = iota
	phaseFetch
	phaseRelay
	phaseYield
)

// fetchResult carries the messages and signatures for every withdraw
// the node is responsible for in one batch, in assignment order.
type fetchResult struct {
	messages   [][]byte
	signatures [][][]byte
	err        error
}

// WithdrawRelay drives withdrawals from the foreign chain to the home
// chain. Each cycle consumes one confirmed log batch, fetches the
// withdrawal messages and authority signatures this node is
// responsible for, submits one home withdraw transaction per message,
// and yields a checkpoint. A failed batch resets the cycle without
// advancing the checkpoint, so the batch is rescanned: delivery is
// at least once, and the home contract is expected to no-op a
// withdraw it has already executed.
type WithdrawRelay struct {
	cfg           WithdrawRelayConfig
	logs          LogBatchSource
	foreignCaller ContractCaller
	sender        WithdrawSender
	homeState     HomeStateReader
	foreign       *contracts.ForeignBridge
	home          *contracts.HomeBridge

	phase        relayPhase
	batchID      string
	toBlock      uint64
	fetchDone    chan *fetchResult
	sendDone     chan error
	pendingSends int
}

func NewWithdrawRelay(
	cfg WithdrawRelayConfig,
	logs LogBatchSource,
	foreignCaller ContractCaller,
	sender WithdrawSender,
	homeState HomeStateReader,
) *WithdrawRelay {
	return &WithdrawRelay{
		cfg:           cfg,
		logs:          logs,
		foreignCaller: foreignCaller,
		sender:        sender,
		homeState:     homeState,
		foreign:       contracts.NewForeignBridge(),
		home:          contracts.NewHomeBridge(),
		phase:         phaseWait,
	}
}

// Step advances the relay cycle by one phase and returns a non-nil
// Checked when a batch has been fully relayed. It returns ErrNotReady
// while the home balance is unknown; stepping again later resumes the
// same batch without re-fetching.
func (r *WithdrawRelay) Step(ctx context.Context) (*Checked, error) {
	switch r.phase {
	case phaseWait:
		return nil, r.stepWait(ctx)
	case phaseFetch:
		return nil, r.stepFetch(ctx)
	case phaseRelay:
		return nil, r.stepRelay(ctx)
	case phaseYield:
		return r.stepYield(), nil
	default:
		panic(fmt.Sprintf("unknown withdraw relay phase %d", r.phase))
	}
}

// Next runs Step until a checkpoint is produced, sleeping through
// ErrNotReady suspensions.
func (r *WithdrawRelay) Next(ctx context.Context) (*Checked, error) {
	for {
		checked, err := r.Step(ctx)
		if err == ErrNotReady {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.cfg.NotReadyRetryInterval):
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if checked != nil {
			return checked, nil
		}
	}
}

func (r *WithdrawRelay) stepWait(ctx context.Context) error {
	batch, err := r.logs.Next(ctx)
	if err != nil {
		return stageError(stagePollingForeign, err)
	}

	r.batchID = uuid.NewString()
	r.toBlock = batch.ToBlock
	log.Info().Msgf("[WithdrawRelay] [%s] got %d CollectedSignatures logs up to block %d",
		r.batchID, len(batch.Logs), batch.ToBlock)

	assignments := make([]*RelayAssignment, 0, len(batch.Logs))
	for _, receiptLog := range batch.Logs {
		assignment, err := buildAssignment(r.foreign, r.cfg.MyAddress, receiptLog)
		if err != nil {
			return stageError(stagePollingForeign, err)
		}
		if assignment != nil {
			assignments = append(assignments, assignment)
		}
	}

	// The channel is buffered and handed to the goroutine directly, so
	// a fetch abandoned by a reset can still deliver and exit.
	r.fetchDone = make(chan *fetchResult, 1)
	go r.fetchMessagesAndSignatures(ctx, assignments, r.fetchDone)
	r.phase = phaseFetch
	return nil
}

// fetchMessagesAndSignatures resolves every assignment's message and
// signature payloads against the foreign contract concurrently and
// delivers one fetchResult on done.
func (r *WithdrawRelay) fetchMessagesAndSignatures(ctx context.Context, assignments []*RelayAssignment, done chan<- *fetchResult) {
	result := &fetchResult{
		messages:   make([][]byte, len(assignments)),
		signatures: make([][][]byte, len(assignments)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	setErr := func(err error) {
		mu.Lock()
		if result.err == nil {
			result.err = err
		}
		mu.Unlock()
	}

	for i, assignment := range assignments {
		wg.Add(1)
		go func(i int, assignment *RelayAssignment) {
			defer wg.Done()
			ret, err := r.foreignCaller.CallContract(ctx, r.cfg.ForeignContract, assignment.MessagePayload)
			if err != nil {
				setErr(fmt.Errorf("failed to call message on foreign bridge: %w", err))
				return
			}
			message, err := r.foreign.UnpackMessage(ret)
			if err != nil {
				setErr(err)
				return
			}
			result.messages[i] = message
		}(i, assignment)

		result.signatures[i] = make([][]byte, len(assignment.SignaturePayloads))
		for j, payload := range assignment.SignaturePayloads {
			wg.Add(1)
			go func(i, j int, payload []byte) {
				defer wg.Done()
				ret, err := r.foreignCaller.CallContract(ctx, r.cfg.ForeignContract, payload)
				if err != nil {
					setErr(fmt.Errorf("failed to call signature on foreign bridge: %w", err))
					return
				}
				signature, err := r.foreign.UnpackSignature(ret)
				if err != nil {
					setErr(err)
					return
				}
				result.signatures[i][j] = signature
			}(i, j, payload)
		}
	}

	wg.Wait()
	done <- result
}

func (r *WithdrawRelay) stepFetch(ctx context.Context) error {
	// Suspend until the balance cache is populated. The in-flight
	// fetch keeps running and its result is picked up once we resume.
	balance := r.homeState.Balance()
	if balance == nil {
		return ErrNotReady
	}

	var result *fetchResult
	select {
	case <-ctx.Done():
		return ctx.Err()
	case result = <-r.fetchDone:
	}

	if result.err != nil {
		r.reset()
		return stageError(stageFetching, result.err)
	}
	if len(result.messages) != len(result.signatures) {
		panic(fmt.Sprintf("fetched %d messages but %d signature sets", len(result.messages), len(result.signatures)))
	}

	gasPrice := r.homeState.GasPrice()
	count := int64(len(result.messages))
	required := new(big.Int).SetUint64(r.cfg.GasLimit)
	required.Mul(required, gasPrice)
	required.Mul(required, big.NewInt(count))
	if balance.Cmp(required) < 0 {
		log.Warn().Msgf("[WithdrawRelay] [%s] balance %s cannot cover %d withdraws at gas price %s",
			r.batchID, balance.String(), count, gasPrice.String())
		r.reset()
		return ErrInsufficientFunds
	}

	txs := make([]*evm.UnsignedTx, 0, count)
	for i, message := range result.messages {
		signatures := make([]*types.Signature, 0, len(result.signatures[i]))
		for _, raw := range result.signatures[i] {
			signature, err := types.SignatureFromBytes(raw)
			if err != nil {
				r.reset()
				return stageError(stageFetching, err)
			}
			signatures = append(signatures, signature)
		}
		payload, err := r.home.PackWithdraw(signatures, message)
		if err != nil {
			r.reset()
			return stageError(stageFetching, err)
		}
		decoded, err := types.MessageFromBytes(message)
		if err != nil {
			r.reset()
			return stageError(stageFetching, err)
		}
		txs = append(txs, &evm.UnsignedTx{
			To:       r.cfg.HomeContract,
			GasLimit: r.cfg.GasLimit,
			GasPrice: decoded.HomeGasPrice,
			Data:     payload,
		})
	}

	// The channel is buffered to the number of sends and captured as a
	// local, together with the batch id, so a send still in flight when
	// a sibling failure resets the batch can deliver and exit instead
	// of touching reused engine fields.
	r.pendingSends = len(txs)
	r.sendDone = make(chan error, len(txs))
	sendDone := r.sendDone
	batchID := r.batchID
	for _, tx := range txs {
		go func(tx *evm.UnsignedTx) {
			txHash, err := r.sender.Send(ctx, tx)
			if err == nil {
				log.Info().Msgf("[WithdrawRelay] [%s] withdraw relayed in home tx %s", batchID, txHash.Hex())
			}
			sendDone <- err
		}(tx)
	}
	r.phase = phaseRelay
	return nil
}

func (r *WithdrawRelay) stepRelay(ctx context.Context) error {
	for r.pendingSends > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-r.sendDone:
			r.pendingSends--
			if err != nil {
				r.reset()
				return stageError(stageSending, err)
			}
		}
	}
	r.phase = phaseYield
	return nil
}

func (r *WithdrawRelay) stepYield() *Checked {
	checked := &Checked{Kind: CheckedWithdrawRelay, ToBlock: r.toBlock}
	log.Info().Msgf("[WithdrawRelay] [%s] batch complete, checkpoint at block %d", r.batchID, r.toBlock)
	r.reset()
	return checked
}

func (r *WithdrawRelay) reset() {
	r.phase = phaseWait
	r.fetchDone = nil
	r.sendDone = nil
	r.pendingSends = 0
}
