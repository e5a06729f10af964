// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"
	"gorm.io/gorm"

	"github.com/oggyb/arena-signals/internal/arenas"
	"github.com/oggyb/arena-signals/internal/bravery"
	"github.com/oggyb/arena-signals/internal/chat"
	"github.com/oggyb/arena-signals/internal/geo"
	"github.com/oggyb/arena-signals/internal/matching"
	"github.com/oggyb/arena-signals/internal/moderation"
	"github.com/oggyb/arena-signals/internal/store"
	"github.com/oggyb/arena-signals/internal/utils/pagination"
)

// Domain is set on every ErrorInfo detail.
const Domain = "arena-signals"

type rule struct {
	target error
	code   codes.Code
	reason string
}

// rules are matched in order with errors.Is.
var rules = []rule{
	{matching.ErrAlreadyActiveElsewhere, codes.FailedPrecondition, "ALREADY_ACTIVE_ELSEWHERE"},
	{matching.ErrNotActive, codes.FailedPrecondition, "NOT_ACTIVE"},
	{matching.ErrOutOfSignals, codes.ResourceExhausted, "OUT_OF_SIGNALS"},
	{matching.ErrSenderOrReceiverMissing, codes.NotFound, "SENDER_OR_RECEIVER_MISSING"},
	{matching.ErrArenaClosed, codes.FailedPrecondition, "ARENA_CLOSED"},
	{matching.ErrOutsideArena, codes.FailedPrecondition, "OUTSIDE_ARENA"},
	{matching.ErrBlocked, codes.PermissionDenied, "BLOCKED"},
	{matching.ErrSelfSignal, codes.InvalidArgument, "SELF_SIGNAL"},
	{matching.ErrUserNotFound, codes.NotFound, "USER_NOT_FOUND"},
	{matching.ErrUserExists, codes.AlreadyExists, "USER_EXISTS"},
	{matching.ErrInvalidUser, codes.InvalidArgument, "INVALID_USER"},
	{bravery.ErrUserNotFound, codes.NotFound, "USER_NOT_FOUND"},
	{moderation.ErrUserNotFound, codes.NotFound, "USER_NOT_FOUND"},
	{moderation.ErrSelfAction, codes.InvalidArgument, "SELF_ACTION"},
	{geo.ErrPermissionDenied, codes.PermissionDenied, "PERMISSION_DENIED"},
	{store.ErrTransactionConflict, codes.Aborted, "TRANSACTION_CONFLICT"},
	{arenas.ErrNotFound, codes.NotFound, "ARENA_NOT_FOUND"},
	{arenas.ErrAlreadyExists, codes.AlreadyExists, "ARENA_EXISTS"},
	{arenas.ErrInvalidTimeInput, codes.InvalidArgument, "INVALID_TIME_INPUT"},
	{arenas.ErrInvalidArena, codes.InvalidArgument, "INVALID_ARENA"},
	{chat.ErrMatchNotFound, codes.NotFound, "MATCH_NOT_FOUND"},
	{chat.ErrNotParticipant, codes.PermissionDenied, "NOT_PARTICIPANT"},
	{chat.ErrChatExpired, codes.FailedPrecondition, "CHAT_EXPIRED"},
	{chat.ErrUnmatched, codes.FailedPrecondition, "UNMATCHED"},
	{chat.ErrEmptyMessage, codes.InvalidArgument, "EMPTY_MESSAGE"},
	{chat.ErrMessageTooLong, codes.InvalidArgument, "MESSAGE_TOO_LONG"},
	{pagination.ErrInvalidToken, codes.InvalidArgument, "INVALID_PAGE_TOKEN"},
}

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Errors that already carry a status are returned unchanged.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	for _, r := range rules {
		if errors.Is(err, r.target) {
			return withInfo(r.code, err.Error(), r.reason, metadataOf(err))
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

func metadataOf(err error) map[string]string {
	var outside *matching.OutsideArenaError
	if errors.As(err, &outside) {
		return map[string]string{
			"distance_meters": fmt.Sprintf("%.1f", outside.Distance),
			"radius_meters":   fmt.Sprintf("%.1f", outside.Radius),
		}
	}
	return nil
}

func withInfo(code codes.Code, msg, reason string, md map[string]string) error {
	p := status.New(code, msg).Proto()
	detail, err := anypb.New(&errdetails.ErrorInfo{Reason: reason, Domain: Domain, Metadata: md})
	if err == nil {
		p.Details = append(p.Details, detail)
	}
	return status.ErrorProto(p)
}

// Reason returns the ErrorInfo reason carried by a status error, or "".
func Reason(err error) string {
	if info := Info(err); info != nil {
		return info.GetReason()
	}
	return ""
}

// Info returns the first ErrorInfo detail of a status error.
func Info(err error) *errdetails.ErrorInfo {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	return nil
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return withInfo(codes.InvalidArgument, msg, "INVALID_ARGUMENT", nil)
}

// AlreadyExists creates a gRPC AlreadyExists error.
func AlreadyExists(msg string) error {
	return status.Error(codes.AlreadyExists, msg)
}

// PermissionDenied creates a gRPC PermissionDenied error.
func PermissionDenied(msg string) error {
	return withInfo(codes.PermissionDenied, msg, "PERMISSION_DENIED", nil)
}

// Unauthenticated creates a gRPC Unauthenticated error.
func Unauthenticated(msg string) error {
	return status.Error(codes.Unauthenticated, msg)
}
