package wire

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status codes used across the device model. The gRPC transport maps
// directly onto google.golang.org/grpc/codes; REST additionally needs
// NO_CONTENT and the numeric mapping table below, which grpc/codes does
// not define, so we keep our own small extension on top of it.
const (
	NoContent codes.Code = 1000
)

// RESTStatus maps a gRPC status code onto the abridged HTTP status the
// REST transport uses (spec §6). Codes not present here fall back to 500.
func RESTStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return 200
	case NoContent:
		return 204
	case codes.InvalidArgument:
		return 406
	case codes.Unauthenticated:
		return 407
	case codes.DeadlineExceeded:
		return 408
	case codes.AlreadyExists:
		return 409
	case codes.PermissionDenied:
		return 401
	case codes.NotFound:
		return 410
	case codes.FailedPrecondition:
		return 412
	case codes.OutOfRange:
		return 416
	case codes.Unimplemented:
		return 501
	case codes.Internal:
		return 500
	case codes.Unavailable:
		return 503
	case codes.Canceled:
		return 410
	default:
		return 500
	}
}

// Errorf builds a *status.Status-backed error the way the teacher's
// handlers do throughout gnmi_server (status.Errorf(codes.X, ...)).
func Errorf(code codes.Code, format string, args ...interface{}) error {
	return status.Errorf(code, format, args...)
}

// AsStatus extracts the gRPC status from err, mapping unrecognized error
// types to INTERNAL "Unknown error" per spec §7.
func AsStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}
	return status.New(codes.Internal, "Unknown error")
}
