// Package authz implements the Scope/Authorizer model (spec §3, §4.1),
// grounded on the teacher's pathz_authorizer package (rule evaluation
// against a client's granted permission set) and on original_source's
// Authorization.h/.cpp (the readAuthz/writeAuthz contract).
package authz

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Scope is one of the closed set of access levels a resource declares.
type Scope string

const (
	ScopeUndefined Scope = "undefined"
	ScopeMonitor   Scope = "monitor"
	ScopeOperate   Scope = "operate"
	ScopeConfig    Scope = "config"
	ScopeAdmin     Scope = "admin"
)

// WritePermission returns the "<scope>:w" permission string for s.
func (s Scope) WritePermission() string { return string(s) + ":w" }

// ReadPermission returns the "<scope>" permission string for s.
func (s Scope) ReadPermission() string { return string(s) }

// Resource is anything an Authorizer can check access against: a
// ParamDescriptor, Param, or Command all satisfy this via their declared
// scope and read-only flag.
type Resource interface {
	AuthzScope() Scope
	AuthzReadOnly() bool
}

// Authorizer holds the set of permission strings ("operate", "admin:w", …)
// granted to one client, derived from a verified claim set (claim
// verification itself is out of scope; callers pass in the already-
// verified scope list).
type Authorizer struct {
	granted  map[string]struct{}
	disabled bool
}

// Disabled is the process-wide sentinel Authorizer used when the service
// has authorization checks turned off entirely (spec §4.1 kAuthzDisabled).
// Every read and every non-read-only write succeeds against it.
var Disabled = &Authorizer{disabled: true}

// New builds an Authorizer from a verified list of granted permission
// strings, e.g. []string{"monitor", "operate:w"}.
func New(grantedScopes []string) *Authorizer {
	g := make(map[string]struct{}, len(grantedScopes))
	for _, s := range grantedScopes {
		g[strings.TrimSpace(s)] = struct{}{}
	}
	return &Authorizer{granted: g}
}

// FromRoles builds an Authorizer the way the teacher's role strings work:
// each role is a scope name optionally suffixed with ":w" for write
// access, e.g. "admin:w" or "monitor". Returns UNAUTHENTICATED if roles is
// empty and required is true (spec §4.1: construction only fails if the
// claim set cannot be parsed).
func FromRoles(roles []string, required bool) (*Authorizer, error) {
	if required && len(roles) == 0 {
		return nil, status.Error(codes.Unauthenticated, "no roles in claim set")
	}
	return New(roles), nil
}

// HasAuthz reports whether the client holds the exact permission string.
func (a *Authorizer) HasAuthz(permission string) bool {
	if a.disabled {
		return true
	}
	_, ok := a.granted[permission]
	return ok
}

// ReadAuthz reports whether the client may read r: it holds either the
// scope's read or write permission (spec §4.1 P2).
func (a *Authorizer) ReadAuthz(r Resource) bool {
	if a.disabled {
		return true
	}
	scope := r.AuthzScope()
	return a.HasAuthz(scope.ReadPermission()) || a.HasAuthz(scope.WritePermission())
}

// WriteAuthz reports whether the client may write r: r is not read-only
// and the client holds the scope's write permission (spec §4.1 P1, P3).
func (a *Authorizer) WriteAuthz(r Resource) bool {
	if r.AuthzReadOnly() {
		return false
	}
	if a.disabled {
		return true
	}
	return a.HasAuthz(r.AuthzScope().WritePermission())
}
