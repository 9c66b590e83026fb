package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Voting workflow
	ErrAlreadyVoted = errors.New("user already voted for this item")
	ErrVotingClosed = errors.New("voting is closed for this item")

	// Dispatch engine
	ErrStepConflict = errors.New("step already registered under this predecessor")
	ErrUnknownStep  = errors.New("predecessor step is unknown")

	// Orchestration
	ErrQueueTimeout   = errors.New("queue request timed out")
	ErrBotDeactivated = errors.New("bot registration is deactivated")
	ErrUserBanned     = errors.New("user is banned")
	ErrLockBusy       = errors.New("lock is held elsewhere")
)
