package relayer

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the home account cannot pay for every
	// withdraw in the current batch. Recoverable by funding the
	// account; the aborted batch is rescanned from the unchanged
	// checkpoint.
	ErrInsufficientFunds = errors.New("home account balance cannot cover the pending withdraws")

	// ErrNotReady means the engine is suspended until the home balance
	// cache is populated; the caller should step again later.
	ErrNotReady = errors.New("home account balance is not known yet")
)

const (
	stagePollingForeign = "polling foreign for collected signatures"
	stageFetching       = "fetching messages and signatures from foreign"
	stageSending        = "sending withdrawal to home"
)

// StageError tags a collaborator failure with the pipeline stage it
// occurred in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
