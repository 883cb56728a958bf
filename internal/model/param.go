package model

import (
	"fmt"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/oid"
	"github.com/device-model/server/internal/wire"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CommandResponder is what Param.ExecuteCommand returns: a lazy producer
// of command responses, driven one at a time by the ExecuteCommand
// handler (spec §4.7, §9 "coroutines for streaming"). A nil *wire.Value
// and nil exception with ok==false signals the responder is exhausted.
type CommandResponder interface {
	Next() (v *wire.Value, exc *CommandException, ok bool)
}

// CommandException boxes a failure from a command handler so it can be
// reported as an ordinary stream message instead of aborting the RPC
// (spec §4.7 ExecuteCommand, §7).
type CommandException struct {
	Type    string
	Details string
}

// CommandHandler implements the business logic bound to an is_command
// Param. Device model code never calls this directly; Param.ExecuteCommand
// does, after authorization.
type CommandHandler func(value *wire.Value) CommandResponder

// Param is the runtime binding of a ParamDescriptor to a value cell (spec
// §3 Param, §4.3).
type Param struct {
	name       string // leaf/top-level name, used when building child oids
	descriptor *ParamDescriptor
	cell       cell

	// pending holds validated-but-uncommitted state for the two-phase
	// commit protocol described in spec §4.4/§9: ValidateSetValue validates
	// and stashes pendingValue; FromProto applies it; ResetValidate discards
	// it.
	pendingValue *wire.Value
	hasPending   bool

	command CommandHandler
}

// NewParam constructs a top-level Param bound to its own cell.
func NewParam(name string, pd *ParamDescriptor, initial *wire.Value) *Param {
	return &Param{name: name, descriptor: pd, cell: &rootCell{value: initial}}
}

// NewCommandParam constructs a top-level command Param.
func NewCommandParam(name string, pd *ParamDescriptor, handler CommandHandler) *Param {
	return &Param{name: name, descriptor: pd, cell: &rootCell{value: wire.Empty()}, command: handler}
}

// Descriptor returns the static metadata bound to this Param.
func (p *Param) Descriptor() *ParamDescriptor { return p.descriptor }

// AuthzScope implements authz.Resource.
func (p *Param) AuthzScope() authz.Scope { return p.descriptor.Scope }

// AuthzReadOnly implements authz.Resource.
func (p *Param) AuthzReadOnly() bool { return p.descriptor.ReadOnly }

// Copy returns a handle sharing the same underlying cell as p (spec §3:
// "a shallow handle used for two-phase commit").
func (p *Param) Copy() *Param {
	return &Param{name: p.name, descriptor: p.descriptor, cell: p.cell, command: p.command}
}

// ---- value round trip (spec §4.3) ----

// GetValue reads the cell into a wire.Value, applying read authorization.
// For structs, a denied sub-field fails the whole read (no partial
// serialization).
func (p *Param) GetValue(az *authz.Authorizer) (*wire.Value, error) {
	return toProto(p.descriptor, p.cell.Get(), az)
}

func toProto(pd *ParamDescriptor, v *wire.Value, az *authz.Authorizer) (*wire.Value, error) {
	if !az.ReadAuthz(pd) {
		return nil, status.Errorf(codes.PermissionDenied, "not authorized to read %s", pd.Oid)
	}
	if v == nil {
		return wire.Empty(), nil
	}
	if pd.Type == wire.TypeStruct && v.Struct != nil {
		out := &wire.StructValue{Fields: map[string]*wire.Value{}}
		for fname, fpd := range pd.SubParams {
			fv, err := toProto(fpd, v.Struct.Fields[fname], az)
			if err != nil {
				return nil, err
			}
			out.Fields[fname] = fv
		}
		return &wire.Value{Kind: wire.KindStruct, Struct: out}, nil
	}
	if pd.Type == wire.TypeStructArray {
		elemPD := pd.elementDescriptor()
		var out []*wire.StructValue
		for _, elem := range v.StructArray {
			ev, err := toProto(elemPD, &wire.Value{Kind: wire.KindStruct, Struct: elem}, az)
			if err != nil {
				return nil, err
			}
			out = append(out, ev.Struct)
		}
		return &wire.Value{Kind: wire.KindStructArray, StructArray: out}, nil
	}
	cp := *v
	return &cp, nil
}

// ValidateSetValue validates a proposed write without mutating the cell,
// stashing the validated value on p so a later FromProto can apply it
// (spec §4.3 validFromProto, §9 beginWrite/commit/resetValidate).
// appendMode, when true, checks max_length against the current length
// plus one and counts the current strings toward a string array's total
// length.
func (p *Param) ValidateSetValue(proposed *wire.Value, az *authz.Authorizer, appendMode bool) error {
	if !az.WriteAuthz(p.descriptor) {
		return status.Errorf(codes.PermissionDenied, "not authorized to write %s", p.descriptor.Oid)
	}
	if err := validFromProto(p.descriptor, p.cell.Get(), proposed, appendMode); err != nil {
		return err
	}
	p.pendingValue = proposed
	p.hasPending = true
	return nil
}

func validFromProto(pd *ParamDescriptor, current, proposed *wire.Value, appendMode bool) error {
	if proposed == nil {
		return status.Error(codes.InvalidArgument, "missing value")
	}
	if err := checkTypeMatch(pd, proposed); err != nil {
		return err
	}
	if isArrayType(pd.Type) && pd.MaxLength > 0 {
		n := arrayLen(pd.Type, proposed)
		if appendMode {
			n = arrayLen(pd.Type, current) + 1
		}
		if uint32(n) > pd.MaxLength {
			return status.Errorf(codes.OutOfRange, "array %s exceeds max length %d", pd.Oid, pd.MaxLength)
		}
	}
	if pd.Type == wire.TypeStringArray && pd.TotalLength > 0 {
		total := uint32(0)
		for _, s := range proposed.StringArray {
			total += uint32(len(s))
		}
		if appendMode && current != nil {
			for _, s := range current.StringArray {
				total += uint32(len(s))
			}
		}
		if total > pd.TotalLength {
			return status.Errorf(codes.OutOfRange, "string array %s exceeds total length %d", pd.Oid, pd.TotalLength)
		}
	}
	if pd.Type == wire.TypeStructVariant {
		if proposed.Kind != wire.KindStructVariant || proposed.Variant == nil {
			return status.Errorf(codes.InvalidArgument, "%s expects a struct_variant value", pd.Oid)
		}
		altPD, ok := pd.Alternatives[proposed.Variant.Type]
		if !ok {
			return status.Errorf(codes.InvalidArgument, "unknown variant_type %q for %s", proposed.Variant.Type, pd.Oid)
		}
		return validFromProto(altPD, nil, proposed.Variant.Value, false)
	}
	if pd.Constraint != nil && !pd.Constraint.IsRange() {
		if !pd.Constraint.Satisfied(proposed) {
			return status.Errorf(codes.InvalidArgument, "value for %s does not satisfy constraint", pd.Oid)
		}
	}
	return nil
}

func checkTypeMatch(pd *ParamDescriptor, v *wire.Value) error {
	want := pd.Type
	ok := false
	switch want {
	case wire.TypeInt32:
		ok = v.Kind == wire.KindInt32
	case wire.TypeFloat32:
		ok = v.Kind == wire.KindFloat32
	case wire.TypeString:
		ok = v.Kind == wire.KindString
	case wire.TypeStruct:
		ok = v.Kind == wire.KindStruct
	case wire.TypeInt32Array:
		ok = v.Kind == wire.KindInt32Array
	case wire.TypeFloat32Array:
		ok = v.Kind == wire.KindFloat32Array
	case wire.TypeStringArray:
		ok = v.Kind == wire.KindStringArray
	case wire.TypeStructArray:
		ok = v.Kind == wire.KindStructArray
	case wire.TypeStructVariant:
		ok = v.Kind == wire.KindStructVariant
	case wire.TypeStructVariantArray:
		ok = v.Kind == wire.KindStructVariantArray
	default:
		ok = true
	}
	if !ok {
		return status.Errorf(codes.InvalidArgument, "type mismatch for %s: expected %s, got %s", pd.Oid, want, v.Kind)
	}
	return nil
}

func arrayLen(t wire.ParamType, v *wire.Value) int {
	if v == nil {
		return 0
	}
	switch t {
	case wire.TypeInt32Array:
		return len(v.Int32Array)
	case wire.TypeFloat32Array:
		return len(v.Float32Array)
	case wire.TypeStringArray:
		return len(v.StringArray)
	case wire.TypeStructArray:
		return len(v.StructArray)
	case wire.TypeStructVariantArray:
		return len(v.StructVariantArray)
	default:
		return 0
	}
}

// ArrayLen returns the current element count of an array-type param, or 0
// for non-array params (spec §4.7 ParamInfoRequest array_lengths).
func (p *Param) ArrayLen() int {
	if !isArrayType(p.descriptor.Type) {
		return 0
	}
	return arrayLen(p.descriptor.Type, p.cell.Get())
}

// ResetValidate discards any pending validated state without committing
// it (spec §4.4 tryMultiSetValue step 5).
func (p *Param) ResetValidate() {
	p.pendingValue = nil
	p.hasPending = false
}

// FromProto commits the previously validated pending value, applying
// range-constraint clamping (spec §4.3 fromProto). It is an error to call
// this without a prior successful ValidateSetValue.
func (p *Param) FromProto(az *authz.Authorizer) error {
	if !p.hasPending {
		return status.Errorf(codes.Internal, "commit without validated value for %s", p.descriptor.Oid)
	}
	v := p.pendingValue
	if p.descriptor.Constraint != nil && p.descriptor.Constraint.IsRange() {
		v = p.descriptor.Constraint.Apply(v)
	}
	p.cell.Set(v)
	p.ResetValidate()
	return nil
}

// AddBack appends a new zero-value element to an array param and returns
// a Param handle bound to that new element (spec §3 Param.addBack). The
// caller validates/commits into the returned handle via the usual
// two-phase protocol.
func (p *Param) AddBack(az *authz.Authorizer) (*Param, error) {
	if !az.WriteAuthz(p.descriptor) {
		return nil, status.Errorf(codes.PermissionDenied, "not authorized to write %s", p.descriptor.Oid)
	}
	cur := p.cell.Get()
	if cur == nil {
		cur = zeroArrayValue(p.descriptor.Type)
	}
	switch p.descriptor.Type {
	case wire.TypeInt32Array:
		cur.Int32Array = append(cur.Int32Array, 0)
	case wire.TypeFloat32Array:
		cur.Float32Array = append(cur.Float32Array, 0)
	case wire.TypeStringArray:
		cur.StringArray = append(cur.StringArray, "")
	case wire.TypeStructArray:
		cur.StructArray = append(cur.StructArray, &wire.StructValue{Fields: map[string]*wire.Value{}})
	default:
		return nil, status.Errorf(codes.InvalidArgument, "%s is not an array", p.descriptor.Oid)
	}
	p.cell.Set(cur)
	idx := arrayLen(p.descriptor.Type, cur) - 1
	return p.elementAt(idx), nil
}

// PopBack removes the last element of an array param (used by
// Device.SetValue to roll back a failed "/-" append).
func (p *Param) PopBack() {
	cur := p.cell.Get()
	if cur == nil {
		return
	}
	switch p.descriptor.Type {
	case wire.TypeInt32Array:
		if len(cur.Int32Array) > 0 {
			cur.Int32Array = cur.Int32Array[:len(cur.Int32Array)-1]
		}
	case wire.TypeFloat32Array:
		if len(cur.Float32Array) > 0 {
			cur.Float32Array = cur.Float32Array[:len(cur.Float32Array)-1]
		}
	case wire.TypeStringArray:
		if len(cur.StringArray) > 0 {
			cur.StringArray = cur.StringArray[:len(cur.StringArray)-1]
		}
	case wire.TypeStructArray:
		if len(cur.StructArray) > 0 {
			cur.StructArray = cur.StructArray[:len(cur.StructArray)-1]
		}
	}
	p.cell.Set(cur)
}

func zeroArrayValue(t wire.ParamType) *wire.Value {
	switch t {
	case wire.TypeInt32Array:
		return &wire.Value{Kind: wire.KindInt32Array}
	case wire.TypeFloat32Array:
		return &wire.Value{Kind: wire.KindFloat32Array}
	case wire.TypeStringArray:
		return &wire.Value{Kind: wire.KindStringArray}
	case wire.TypeStructArray:
		return &wire.Value{Kind: wire.KindStructArray}
	default:
		return wire.Empty()
	}
}

// elementDescriptor returns a synthetic struct descriptor for one element
// of a struct_array, sharing the array descriptor's field map (spec §3:
// "the element descriptor shared by TypeStructArray", paramdescriptor.go).
func (pd *ParamDescriptor) elementDescriptor() *ParamDescriptor {
	if pd.Type != wire.TypeStructArray {
		return pd
	}
	return &ParamDescriptor{
		Oid:       pd.Oid,
		Type:      wire.TypeStruct,
		Scope:     pd.Scope,
		ReadOnly:  pd.ReadOnly,
		SubParams: pd.SubParams,
	}
}

// elementAt returns a Param view bound to one array element.
func (p *Param) elementAt(idx int) *Param {
	switch p.descriptor.Type {
	case wire.TypeStructArray:
		return &Param{
			name:       fmt.Sprintf("%d", idx),
			descriptor: p.descriptor.elementDescriptor(),
			cell:       &indexCell{parent: p.cell, index: idx},
		}
	default:
		return &Param{name: fmt.Sprintf("%d", idx), descriptor: p.descriptor, cell: p.cell}
	}
}

// GetParam navigates further into this param using the remaining path
// segments (the leading top-level segment has already been consumed by
// the caller, spec §4.4 getParam). Supports struct field access, struct
// array indexing, and struct_variant payload access.
func (p *Param) GetParam(path *oid.Path, az *authz.Authorizer) (*Param, error) {
	if path.Empty() {
		return p.Copy(), nil
	}
	switch p.descriptor.Type {
	case wire.TypeStruct:
		if !path.FrontIsString() {
			return nil, status.Error(codes.InvalidArgument, "expected field name")
		}
		field := path.Pop().AsString()
		fpd, ok := p.descriptor.SubParams[field]
		if !ok {
			return nil, status.Errorf(codes.NotFound, "field %q does not exist on %s", field, p.descriptor.Oid)
		}
		sub := &Param{name: field, descriptor: fpd, cell: &fieldCell{parent: p.cell, field: field}}
		if !az.ReadAuthz(fpd) {
			return nil, status.Errorf(codes.PermissionDenied, "not authorized to read %s/%s", p.descriptor.Oid, field)
		}
		return sub.GetParam(path, az)
	case wire.TypeStructArray:
		if !path.Front().IsIndex() {
			return nil, status.Error(codes.InvalidArgument, "expected array index")
		}
		idx := path.Pop().AsIndex()
		if idx == oid.KEnd {
			return nil, status.Error(codes.OutOfRange, "cannot getParam on append sentinel")
		}
		if idx < 0 || idx >= arrayLen(p.descriptor.Type, p.cell.Get()) {
			return nil, status.Errorf(codes.OutOfRange, "index %d out of bounds for %s", idx, p.descriptor.Oid)
		}
		return p.elementAt(idx).GetParam(path, az)
	case wire.TypeStructVariant:
		sub := &Param{name: p.name, descriptor: p.variantAltDescriptor(), cell: &variantCell{parent: p.cell}}
		return sub.GetParam(path, az)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "%s has no sub-paths", p.descriptor.Oid)
	}
}

func (p *Param) variantAltDescriptor() *ParamDescriptor {
	v := p.cell.Get()
	if v == nil || v.Variant == nil {
		return p.descriptor
	}
	if alt, ok := p.descriptor.Alternatives[v.Variant.Type]; ok {
		return alt
	}
	return p.descriptor
}

// ExecuteCommand invokes the bound command handler (spec §4.7
// ExecuteCommand). Returns UNIMPLEMENTED if this Param is not a command.
func (p *Param) ExecuteCommand(value *wire.Value) (CommandResponder, error) {
	if !p.descriptor.IsCommand || p.command == nil {
		return nil, status.Errorf(codes.Unimplemented, "%s is not a command", p.descriptor.Oid)
	}
	return p.command(value), nil
}
