// Package oid implements Path, the JSON-pointer-like address used to
// navigate the device model (spec §3 Path, §4.2). Grounded on the
// teacher's Path-consuming handlers (gnmi_server's path walking) and on
// original_source's catena::common::Path.
package oid

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// KEnd is the sentinel segment value produced by the "-" path token,
// meaning "append a new element".
const KEnd = -1

// Segment is one element of a Path: either a string field name or an
// integer array index (KEnd included).
type Segment struct {
	str     string
	index   int
	isIndex bool
}

// String reports whether this segment is a field-name segment.
func (s Segment) String() bool { return !s.isIndex }

// IsIndex reports whether this segment is a numeric (or "-") segment.
func (s Segment) IsIndex() bool { return s.isIndex }

// AsString returns the field name. Only meaningful when !IsIndex().
func (s Segment) AsString() string { return s.str }

// AsIndex returns the integer index, or KEnd. Only meaningful when IsIndex().
func (s Segment) AsIndex() int { return s.index }

// Path is an ordered, immutable (except for pop/popBack) sequence of
// Segments parsed from a string like "/a/3/-/b".
type Path struct {
	segments []Segment
}

// Parse parses s into a Path. Fails with INVALID_ARGUMENT on empty input,
// a missing leading slash, or an empty token between slashes (spec §4.2).
func Parse(s string) (*Path, error) {
	if s == "" {
		return nil, status.Error(codes.InvalidArgument, "empty path")
	}
	if !strings.HasPrefix(s, "/") {
		return nil, status.Errorf(codes.InvalidArgument, "path must begin with '/': %q", s)
	}
	if s == "/" {
		return &Path{}, nil
	}
	tokens := strings.Split(s[1:], "/")
	segs := make([]Segment, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			return nil, status.Errorf(codes.InvalidArgument, "empty segment in path %q", s)
		}
		if tok == "-" {
			segs = append(segs, Segment{isIndex: true, index: KEnd})
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && n >= 0 {
			segs = append(segs, Segment{isIndex: true, index: n})
			continue
		}
		segs = append(segs, Segment{str: tok})
	}
	return &Path{segments: segs}, nil
}

// Empty reports whether the path has no segments (the root "/").
func (p *Path) Empty() bool { return len(p.segments) == 0 }

// Len returns the number of segments.
func (p *Path) Len() int { return len(p.segments) }

// Front returns the first segment. Panics if Empty().
func (p *Path) Front() Segment { return p.segments[0] }

// FrontIsString reports whether the first segment is a field name.
func (p *Path) FrontIsString() bool { return !p.Empty() && !p.segments[0].isIndex }

// Back returns the last segment. Panics if Empty().
func (p *Path) Back() Segment { return p.segments[len(p.segments)-1] }

// BackIsIndex reports whether the last segment is numeric/append.
func (p *Path) BackIsIndex() bool { return !p.Empty() && p.segments[len(p.segments)-1].isIndex }

// BackAsIndex returns the last segment's index value.
func (p *Path) BackAsIndex() int { return p.segments[len(p.segments)-1].index }

// Pop removes and returns the first segment.
func (p *Path) Pop() Segment {
	s := p.segments[0]
	p.segments = p.segments[1:]
	return s
}

// PopBack removes and returns the last segment.
func (p *Path) PopBack() Segment {
	s := p.segments[len(p.segments)-1]
	p.segments = p.segments[:len(p.segments)-1]
	return s
}

// Copy returns an independent copy of the path (same segments).
func (p *Path) Copy() *Path {
	cp := make([]Segment, len(p.segments))
	copy(cp, p.segments)
	return &Path{segments: cp}
}

// Fqoid reconstructs the canonical "/a/3/b" form of the path (spec §8 P4:
// Path(s).fqoid() == s for every well-formed s).
func (p *Path) Fqoid() string {
	if p.Empty() {
		return "/"
	}
	var b strings.Builder
	for _, s := range p.segments {
		b.WriteByte('/')
		if s.isIndex {
			if s.index == KEnd {
				b.WriteByte('-')
			} else {
				b.WriteString(strconv.Itoa(s.index))
			}
		} else {
			b.WriteString(s.str)
		}
	}
	return b.String()
}

func (p *Path) String() string { return p.Fqoid() }

// Join builds a fqoid from a leading segment name and a trailing raw
// suffix path (used when reporting oids for sub-params).
func Join(leading string, trailing string) string {
	if trailing == "" || trailing == "/" {
		return fmt.Sprintf("/%s", leading)
	}
	return fmt.Sprintf("/%s%s", leading, trailing)
}
