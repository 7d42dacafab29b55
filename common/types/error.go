package types

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrProcessNotRunning indicates that the worker process of an interpreter group failed to start or died.
	ErrProcessNotRunning = errors.New("interpreter process is not running")

	// ErrTransportFailure wraps connection-level failures that occurred while issuing an RPC.
	// The connection that produced the failure has already been discarded when this error is returned.
	ErrTransportFailure = errors.New("transport failure")

	// ErrSerialization indicates a malformed or incompatible payload for a shared object or resource.
	ErrSerialization = errors.New("serialization failure")

	ErrInterpreterNotFound  = status.Error(codes.NotFound, "interpreter not found")
	ErrSessionNotFound      = status.Error(codes.NotFound, "session not found")
	ErrGroupNotFound        = status.Error(codes.NotFound, "interpreter group not found")
	ErrResourceNotFound     = status.Error(codes.NotFound, "resource not found")
	ErrInvalidExecutionMode = errors.New("invalid execution mode")
	ErrSchedulerTerminated  = errors.New("scheduler has been terminated")
)

// IsTransportFailure returns true if the given error is, or wraps, ErrTransportFailure.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrTransportFailure)
}

// ToStatusError converts an arbitrary error into a gRPC status error so that it can be returned by an RPC handler.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrSerialization):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrProcessNotRunning):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
