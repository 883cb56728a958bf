package oid

import "testing"

func TestParseRoundTrip(t *testing.T) {
	cases := []string{"/a", "/a/3/b", "/a/-", "/", "/arrayParam/-"}
	for _, s := range cases {
		p, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", s, err)
		}
		if got := p.Fqoid(); got != s {
			t.Errorf("Parse(%q).Fqoid() = %q, want %q", s, got, s)
		}
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{"", "a/b", "/a//b"}
	for _, s := range cases {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", s)
		}
	}
}

func TestBackIsIndexAppend(t *testing.T) {
	p, err := Parse("/arrayParam/-")
	if err != nil {
		t.Fatal(err)
	}
	if !p.BackIsIndex() || p.BackAsIndex() != KEnd {
		t.Errorf("expected back segment to be append sentinel")
	}
}

func TestPopAndFront(t *testing.T) {
	p, err := Parse("/a/3/b")
	if err != nil {
		t.Fatal(err)
	}
	if !p.FrontIsString() || p.Front().AsString() != "a" {
		t.Errorf("unexpected front segment")
	}
	p.Pop()
	if !p.Front().IsIndex() || p.Front().AsIndex() != 3 {
		t.Errorf("unexpected second segment")
	}
}
