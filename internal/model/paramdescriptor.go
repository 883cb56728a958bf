package model

import (
	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/wire"
)

// ParamDescriptor is the static, read-only-after-construction metadata of
// one parameter or command (spec §3 ParamDescriptor, §4.3).
type ParamDescriptor struct {
	Oid         string
	Type        wire.ParamType
	Scope       authz.Scope
	ReadOnly    bool
	MinimalSet  bool
	IsCommand   bool
	MaxLength   uint32
	TotalLength uint32
	Constraint  Constraint
	// SubParams maps a struct field name to its descriptor (populated for
	// TypeStruct and the element descriptor shared by TypeStructArray).
	SubParams map[string]*ParamDescriptor
	// Alternatives maps a variant tag to its descriptor (TypeStructVariant
	// and TypeStructVariantArray only).
	Alternatives map[string]*ParamDescriptor
}

// AuthzScope implements authz.Resource.
func (pd *ParamDescriptor) AuthzScope() authz.Scope { return pd.Scope }

// AuthzReadOnly implements authz.Resource.
func (pd *ParamDescriptor) AuthzReadOnly() bool { return pd.ReadOnly }

// ToWire serializes the descriptor for a ParamComponent.
func (pd *ParamDescriptor) ToWire() wire.ParamDescriptorWire {
	return wire.ParamDescriptorWire{
		Type:        pd.Type,
		Scope:       string(pd.Scope),
		ReadOnly:    pd.ReadOnly,
		MinimalSet:  pd.MinimalSet,
		IsCommand:   pd.IsCommand,
		MaxLength:   pd.MaxLength,
		TotalLength: pd.TotalLength,
	}
}

func isArrayType(t wire.ParamType) bool {
	switch t {
	case wire.TypeInt32Array, wire.TypeFloat32Array, wire.TypeStringArray,
		wire.TypeStructArray, wire.TypeStructVariantArray:
		return true
	default:
		return false
	}
}
