package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/regcheck/internal/types"
)

// Auth errors are mapped in the auth interceptor. Everything a handler
// returns goes through statusFor:
//
//	malformed request, invalid inline definition   INVALID_ARGUMENT
//	unknown plugin or evaluation                   NOT_FOUND
//	rule limit exceeded                            RESOURCE_EXHAUSTED
//	request timeout                                DEADLINE_EXCEEDED
//	store failure                                  UNAVAILABLE
var (
	errBadRequest    = errors.New("bad request")
	errTooManyRules  = errors.New("too many rules")
	errStore         = errors.New("store unavailable")
	errNoHistory     = errors.New("evaluation history is not enabled")
	invalidArguments = []error{
		errBadRequest,
		types.ErrInvalidDefinition,
		types.ErrDuplicateID,
		types.ErrTableNotFound,
		types.ErrUnknownOperator,
		types.ErrTooManyInValues,
		types.ErrPathTooDeep,
		types.ErrUnparseableFormula,
	}
)

func statusFor(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, msg)
	case errors.Is(err, errTooManyRules):
		return status.Error(codes.ResourceExhausted, msg)
	case errors.Is(err, errNoHistory):
		return status.Error(codes.FailedPrecondition, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, msg)
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, msg)
	case errors.Is(err, errStore):
		return status.Error(codes.Unavailable, msg)
	}
	for _, target := range invalidArguments {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, msg)
		}
	}
	return status.Error(codes.Internal, msg)
}
