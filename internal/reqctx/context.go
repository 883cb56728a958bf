// Package reqctx carries per-request bookkeeping (a unique id, the
// authenticated user and scopes) through a context.Context, the same way
// the teacher's common_utils package does for its gNMI/gNOI handlers.
package reqctx

import (
	"context"
	"fmt"
	"sync/atomic"
)

// AuthInfo holds what the (out-of-scope) authentication layer discovered
// about the caller: username and the set of scope permission strings
// granted, e.g. "operate", "admin:w".
type AuthInfo struct {
	User        string
	AuthEnabled bool
	Scopes      []string
}

// RequestContext holds metadata threaded through a single RPC/REST call.
type RequestContext struct {
	ID   string
	Auth AuthInfo
	Slot int32
}

type contextKey int

const requestContextKey contextKey = 0

var requestCounter uint64

// GetContext returns the RequestContext carried by ctx, creating and
// attaching a fresh one (with a new monotonic id) if none is present yet.
func GetContext(ctx context.Context) (*RequestContext, context.Context) {
	if cv := ctx.Value(requestContextKey); cv != nil {
		return cv.(*RequestContext), ctx
	}
	rc := &RequestContext{
		ID: fmt.Sprintf("DM-%d", atomic.AddUint64(&requestCounter, 1)),
	}
	return rc, context.WithValue(ctx, requestContextKey, rc)
}

// WithAuth attaches pre-computed auth info to ctx, returning the derived
// context. Used by transports that resolve authentication before handing
// control to a handler.
func WithAuth(ctx context.Context, auth AuthInfo) context.Context {
	rc, ctx := GetContext(ctx)
	rc.Auth = auth
	return ctx
}
