package subscription

import "testing"

func TestExactMatch(t *testing.T) {
	m := New()
	m.Add("/temperature/0")
	if !m.IsSubscribed("/temperature/0") {
		t.Error("expected exact oid to be subscribed")
	}
	if m.IsSubscribed("/temperature/1") {
		t.Error("sibling oid should not be subscribed")
	}
}

func TestWildcardMatch(t *testing.T) {
	m := New()
	m.Add("/temperature/*")
	if !m.IsSubscribed("/temperature/0") || !m.IsSubscribed("/temperature/1/alarm") {
		t.Error("expected wildcard prefix to cover all children")
	}
	if m.IsSubscribed("/humidity/0") {
		t.Error("unrelated oid should not match wildcard")
	}
}

func TestAddRemove(t *testing.T) {
	m := New()
	m.Add("/foo")
	m.Remove("/foo")
	if m.IsSubscribed("/foo") {
		t.Error("removed oid should no longer be subscribed")
	}

	m.Add("/bar/*")
	m.Remove("/bar/*")
	if m.IsSubscribed("/bar/1") {
		t.Error("removed wildcard should no longer match")
	}
}
