package wire

// DetailLevel controls which components a DeviceSerializer or Connect
// stream includes (spec §3, §4.6, GLOSSARY).
type DetailLevel int

const (
	DetailFull DetailLevel = iota
	DetailSubscriptions
	DetailMinimal
	DetailCommands
	DetailNone
)

func (d DetailLevel) String() string {
	switch d {
	case DetailFull:
		return "FULL"
	case DetailSubscriptions:
		return "SUBSCRIPTIONS"
	case DetailMinimal:
		return "MINIMAL"
	case DetailCommands:
		return "COMMANDS"
	case DetailNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParamType enumerates the scalar/array/struct kinds a ParamDescriptor may
// declare (spec §3).
type ParamType int

const (
	TypeEmpty ParamType = iota
	TypeInt32
	TypeFloat32
	TypeString
	TypeStruct
	TypeInt32Array
	TypeFloat32Array
	TypeStringArray
	TypeStructArray
	TypeStructVariant
	TypeStructVariantArray
)

func (t ParamType) String() string {
	switch t {
	case TypeEmpty:
		return "empty"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeString:
		return "string"
	case TypeStruct:
		return "struct"
	case TypeInt32Array:
		return "int32_array"
	case TypeFloat32Array:
		return "float32_array"
	case TypeStringArray:
		return "string_array"
	case TypeStructArray:
		return "struct_array"
	case TypeStructVariant:
		return "struct_variant"
	case TypeStructVariantArray:
		return "struct_variant_array"
	default:
		return "unknown"
	}
}

// ParamDescriptorWire is the static metadata shipped for a param or
// command (spec §3 ParamDescriptor, minus the Go-side recursive sub_params
// map, which is not serialized).
type ParamDescriptorWire struct {
	Type        ParamType
	Scope       string
	ReadOnly    bool
	MinimalSet  bool
	IsCommand   bool
	MaxLength   uint32
	TotalLength uint32
}

// ParamComponent is a fully serialized parameter or command: its static
// descriptor plus its current value.
type ParamComponent struct {
	Oid        string
	Descriptor ParamDescriptorWire
	Value      *Value
}

// ConstraintWire is the serialized form of a shared Constraint (spec §3).
type ConstraintWire struct {
	Type      string
	Values    []*Value
	Min       *Value
	Max       *Value
}

// ConstraintComponent names a shared constraint by the oid/key it is
// registered under.
type ConstraintComponent struct {
	Oid        string
	Constraint ConstraintWire
}

// MenuWire is the serialized form of one Menu (spec GLOSSARY "Component").
type MenuWire struct {
	Name        string
	ParamOids   []string
	CommandOids []string
}

// MenuComponent names a Menu by its fqoid ("/<group>/<menu>").
type MenuComponent struct {
	Oid  string
	Menu MenuWire
}

// LanguagePackWire is the serialized form of one LanguagePack.
type LanguagePackWire struct {
	Name  string
	Words map[string]string
}

// LanguagePackComponent names a LanguagePack by its language id.
type LanguagePackComponent struct {
	Language string
	Pack     LanguagePackWire
	Removed  bool // true when this component announces a deletion
}

// MenuGroupSkeleton is the shallow, header-only view of a MenuGroup: its
// name and the menus it contains, without each menu's full body.
type MenuGroupSkeleton struct {
	Name     string
	MenuOids []string
}

// DeviceHeader is the device-wide metadata always emitted first by a
// DeviceSerializer (spec §4.6). When a serializer runs in shallow mode
// the Params/Commands/Constraints/LanguagePacks maps are populated and no
// further components follow; in non-shallow mode those maps are left nil
// and each item is emitted as its own DeviceComponent afterward.
type DeviceHeader struct {
	Slot                 uint32
	DetailLevel          DetailLevel
	DefaultScope         string
	MultiSetEnabled      bool
	SubscriptionsEnabled bool
	AccessScopes         []string
	MenuGroups           map[string]MenuGroupSkeleton

	Params        map[string]ParamComponent
	Commands      map[string]ParamComponent
	Constraints   map[string]ConstraintWire
	LanguagePacks map[string]LanguagePackWire
}

// DeviceComponent is the one-of described in spec §6.
type DeviceComponent struct {
	Device           *DeviceHeader
	Param            *ParamComponent
	Command          *ParamComponent
	SharedConstraint *ConstraintComponent
	Menu             *MenuComponent
	LanguagePack     *LanguagePackComponent
}

// ValueUpdate is the payload of a PushUpdates carrying a value change.
type ValueUpdate struct {
	Oid          string
	ElementIndex int32
	Value        *Value
}

// PushUpdates is the message streamed to a Connect client (spec §6).
type PushUpdates struct {
	Slot            uint32
	Value           *ValueUpdate
	DeviceComponent *DeviceComponent
	LanguagePack    *LanguagePackComponent
}

// ParamInfo is one node of a ParamInfoRequest/BasicParamInfoRequest
// response (spec §4.7): a param's oid and descriptor, with an optional
// array length when the node is an array. Basic and full requests
// produce the same ParamInfo; the descriptor is always filled in.
type ParamInfo struct {
	Oid         string
	Descriptor  ParamDescriptorWire
	ArrayLength *int
}

// SetValuePayload is one entry of a MultiSetValuePayload.
type SetValuePayload struct {
	Oid   string
	Value *Value
}

// MultiSetValuePayload is the request body of MultiSetValue/SetValue.
type MultiSetValuePayload struct {
	Values []SetValuePayload
}
