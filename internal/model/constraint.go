// Package model implements the static/runtime parameter model: Constraint,
// ParamDescriptor, Param, LanguagePack, and MenuGroup (spec §3-§4, C3-C6).
// Grounded on original_source's ParamAccessor.h/IParam.h for the
// toProto/validFromProto/fromProto contract, and on the teacher's style of
// small, map-keyed registries (pathz_authorizer's ruleAction tables).
package model

import (
	"github.com/device-model/server/internal/wire"
)

// Constraint is a per-parameter validity predicate with an optional
// clamping transform for range-type constraints (spec §3 Constraint,
// §4.3).
type Constraint interface {
	// IsRange reports whether this is a range (min/max) constraint. Range
	// constraints are skipped by validFromProto's Satisfied check and
	// instead clamped by Apply during fromProto (spec §4.3).
	IsRange() bool
	// Satisfied reports whether v passes the constraint. Only consulted
	// by validFromProto for non-range constraints.
	Satisfied(v *wire.Value) bool
	// Apply returns a (possibly clamped) copy of v. For non-range
	// constraints this is the identity transform.
	Apply(v *wire.Value) *wire.Value
	// ToWire serializes the constraint for the shared-constraint stream.
	ToWire() wire.ConstraintWire
}

// RangeConstraint bounds a scalar or array-of-scalar numeric value,
// clamping out-of-range elements on commit instead of rejecting them.
type RangeConstraint struct {
	Min, Max float64
}

func (r *RangeConstraint) IsRange() bool { return true }

func (r *RangeConstraint) Satisfied(v *wire.Value) bool { return true }

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func (r *RangeConstraint) Apply(v *wire.Value) *wire.Value {
	if v == nil {
		return v
	}
	out := *v
	switch v.Kind {
	case wire.KindInt32:
		out.Int32 = int32(clampF(float64(v.Int32), r.Min, r.Max))
	case wire.KindFloat32:
		out.Float32 = float32(clampF(float64(v.Float32), r.Min, r.Max))
	case wire.KindInt32Array:
		arr := make([]int32, len(v.Int32Array))
		for i, e := range v.Int32Array {
			arr[i] = int32(clampF(float64(e), r.Min, r.Max))
		}
		out.Int32Array = arr
	case wire.KindFloat32Array:
		arr := make([]float32, len(v.Float32Array))
		for i, e := range v.Float32Array {
			arr[i] = float32(clampF(float64(e), r.Min, r.Max))
		}
		out.Float32Array = arr
	}
	return &out
}

func (r *RangeConstraint) ToWire() wire.ConstraintWire {
	return wire.ConstraintWire{
		Type: "range",
		Min:  &wire.Value{Kind: wire.KindFloat32, Float32: float32(r.Min)},
		Max:  &wire.Value{Kind: wire.KindFloat32, Float32: float32(r.Max)},
	}
}

// SetConstraint restricts a value (string or int32, scalar or array
// element-wise) to a fixed enumeration of allowed values.
type SetConstraint struct {
	Allowed []*wire.Value
}

func (s *SetConstraint) IsRange() bool { return false }

func (s *SetConstraint) member(v *wire.Value) bool {
	for _, a := range s.Allowed {
		if a.Equal(v) {
			return true
		}
	}
	return false
}

func (s *SetConstraint) Satisfied(v *wire.Value) bool {
	if v == nil {
		return false
	}
	switch v.Kind {
	case wire.KindInt32Array:
		for _, e := range v.Int32Array {
			if !s.member(&wire.Value{Kind: wire.KindInt32, Int32: e}) {
				return false
			}
		}
		return true
	case wire.KindStringArray:
		for _, e := range v.StringArray {
			if !s.member(&wire.Value{Kind: wire.KindString, String: e}) {
				return false
			}
		}
		return true
	default:
		return s.member(v)
	}
}

func (s *SetConstraint) Apply(v *wire.Value) *wire.Value { return v }

func (s *SetConstraint) ToWire() wire.ConstraintWire {
	return wire.ConstraintWire{Type: "set", Values: s.Allowed}
}
