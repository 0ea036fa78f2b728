package indexer

import (
	"context"
	"errors"
	"fmt"

	"treasurySync/internal/model"
)

// Kind classifies a failed run.
type Kind string

const (
	KindInvalidArgument    Kind = "invalid_argument"
	KindRPCUnavailable     Kind = "rpc_unavailable"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindTimeout            Kind = "timeout"
)

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrRPCUnavailable     = errors.New("rpc unavailable")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("timeout")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindRPCUnavailable:
		return ErrRPCUnavailable
	case KindStorageUnavailable:
		return ErrStorageUnavailable
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Stage is a step of the per-run state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageResolvingCursor
	StageFetching
	StageDecoding
	StagePersisting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageResolvingCursor:
		return "resolving_cursor"
	case StageFetching:
		return "fetching"
	case StageDecoding:
		return "decoding"
	case StagePersisting:
		return "persisting"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// SyncError is the terminal failure of a run. It matches its Kind's sentinel with errors.Is.
type SyncError struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *SyncError) Unwrap() []error {
	if sentinel := e.Kind.sentinel(); sentinel != nil {
		return []error{sentinel, e.Err}
	}
	return []error{e.Err}
}

// newSyncError builds a SyncError, reclassifying as Timeout when the run context is done.
func newSyncError(ctx context.Context, stage Stage, kind Kind, err error) *SyncError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		kind = KindTimeout
	}
	return &SyncError{Kind: kind, Stage: stage, Err: err}
}

func invalidArgument(format string, args ...interface{}) *SyncError {
	return &SyncError{Kind: KindInvalidArgument, Stage: StageIdle, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the failure kind of err, or "internal" for unclassified errors.
func KindOf(err error) Kind {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Kind
	}
	return "internal"
}

// Failure renders err as the failure response of the invocation contract.
func Failure(err error) model.SyncFailure {
	out := model.SyncFailure{Success: false, Code: string(KindOf(err))}

	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		out.Error = "Internal error"
		out.Details = err.Error()
		return out
	}

	switch syncErr.Kind {
	case KindInvalidArgument:
		out.Error = syncErr.Err.Error()
		return out
	case KindRPCUnavailable:
		out.Error = "RPC error during " + syncErr.Stage.String()
	case KindStorageUnavailable:
		out.Error = "Storage error during " + syncErr.Stage.String()
	case KindTimeout:
		out.Error = "Sync timed out during " + syncErr.Stage.String()
	}
	out.Details = syncErr.Err.Error()
	return out
}
