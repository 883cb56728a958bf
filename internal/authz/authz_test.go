package authz

import "testing"

type fakeResource struct {
	scope    Scope
	readOnly bool
}

func (f fakeResource) AuthzScope() Scope    { return f.scope }
func (f fakeResource) AuthzReadOnly() bool { return f.readOnly }

func TestReadWriteAuthz(t *testing.T) {
	a := New([]string{"operate:w", "monitor"})
	rw := fakeResource{scope: ScopeOperate}
	ro := fakeResource{scope: ScopeOperate, readOnly: true}
	monitorOnly := fakeResource{scope: ScopeMonitor}
	admin := fakeResource{scope: ScopeAdmin}

	if !a.ReadAuthz(rw) {
		t.Error("expected read authz via write permission")
	}
	if !a.WriteAuthz(rw) {
		t.Error("expected write authz")
	}
	if a.WriteAuthz(ro) {
		t.Error("read-only resource must never be writable")
	}
	if !a.ReadAuthz(monitorOnly) {
		t.Error("expected read authz via plain read permission")
	}
	if a.WriteAuthz(monitorOnly) {
		t.Error("monitor-only client should not have operate write")
	}
	if a.ReadAuthz(admin) {
		t.Error("client without admin scope should not read admin resource")
	}
}

func TestDisabledSentinel(t *testing.T) {
	ro := fakeResource{scope: ScopeAdmin, readOnly: true}
	rw := fakeResource{scope: ScopeAdmin}
	if !Disabled.ReadAuthz(ro) {
		t.Error("disabled authorizer must allow all reads")
	}
	if Disabled.WriteAuthz(ro) {
		t.Error("disabled authorizer must still respect read-only flag")
	}
	if !Disabled.WriteAuthz(rw) {
		t.Error("disabled authorizer must allow writes to non-read-only resources")
	}
}
