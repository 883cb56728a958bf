// Package wire defines the messages that travel between a client and the
// device model: the tagged-union Value, the per-component device stream
// messages, and push updates (spec §6). Generating these from a schema
// compiler is explicitly out of scope (spec §1); these are hand-written
// Go types with a JSON encoding, the out-of-scope "wire-format codec"
// reduced to the minimum needed for the gRPC and REST transports to run.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which alternative of a Value is populated.
type Kind int

const (
	KindEmpty Kind = iota
	KindInt32
	KindFloat32
	KindString
	KindStruct
	KindInt32Array
	KindFloat32Array
	KindStringArray
	KindStructArray
	KindStructVariant
	KindStructVariantArray
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindInt32Array:
		return "int32_array"
	case KindFloat32Array:
		return "float32_array"
	case KindStringArray:
		return "string_array"
	case KindStructArray:
		return "struct_array"
	case KindStructVariant:
		return "struct_variant"
	case KindStructVariantArray:
		return "struct_variant_array"
	default:
		return "unknown"
	}
}

// StructValue is the payload of a KindStruct Value: a field-name-keyed map
// of sub-Values, mirroring ParamDescriptor's sub_params shape.
type StructValue struct {
	Fields map[string]*Value
}

// StructVariant is the payload of a KindStructVariant Value.
type StructVariant struct {
	Type  string
	Value *Value
}

// Value is the tagged union described in spec §6. Exactly one of the
// fields matching Kind is meaningful; the rest are zero.
type Value struct {
	Kind Kind

	Int32   int32
	Float32 float32
	String  string

	Struct *StructValue

	Int32Array   []int32
	Float32Array []float32
	StringArray  []string
	StructArray  []*StructValue

	Variant            *StructVariant
	StructVariantArray []*StructVariant
}

// Empty returns the canonical empty Value.
func Empty() *Value { return &Value{Kind: KindEmpty} }

func Int32Value(v int32) *Value   { return &Value{Kind: KindInt32, Int32: v} }
func Float32Value(v float32) *Value { return &Value{Kind: KindFloat32, Float32: v} }
func StringValue(v string) *Value { return &Value{Kind: KindString, String: v} }

// jsonValue is the wire shape: one key present per populated alternative,
// keyed by Kind.String(), plus "variant_type" when Kind is a struct
// variant (spec §4.3: "the wire form is {variant_type: string, value: Value}").
type jsonValue struct {
	Empty        *struct{}           `json:"empty,omitempty"`
	Int32        *int32              `json:"int32,omitempty"`
	Float32      *float32            `json:"float32,omitempty"`
	String       *string             `json:"string,omitempty"`
	Struct       *jsonStruct         `json:"struct,omitempty"`
	Int32Array   []int32             `json:"int32_array,omitempty"`
	Float32Array []float32           `json:"float32_array,omitempty"`
	StringArray  []string            `json:"string_array,omitempty"`
	StructArray  []jsonStruct        `json:"struct_array,omitempty"`
	VariantType  string              `json:"variant_type,omitempty"`
	Variant      *jsonValue          `json:"value,omitempty"`
	VariantArray []jsonVariantScalar `json:"struct_variant_array,omitempty"`
}

type jsonStruct struct {
	Fields map[string]jsonValue `json:"fields"`
}

type jsonVariantScalar struct {
	VariantType string    `json:"variant_type"`
	Value       jsonValue `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(toJSONValue(&v))
}

func toJSONValue(v *Value) jsonValue {
	var out jsonValue
	switch v.Kind {
	case KindEmpty:
		out.Empty = &struct{}{}
	case KindInt32:
		out.Int32 = &v.Int32
	case KindFloat32:
		out.Float32 = &v.Float32
	case KindString:
		out.String = &v.String
	case KindStruct:
		out.Struct = toJSONStruct(v.Struct)
	case KindInt32Array:
		out.Int32Array = v.Int32Array
	case KindFloat32Array:
		out.Float32Array = v.Float32Array
	case KindStringArray:
		out.StringArray = v.StringArray
	case KindStructArray:
		for _, s := range v.StructArray {
			out.StructArray = append(out.StructArray, *toJSONStruct(s))
		}
	case KindStructVariant:
		out.VariantType = v.Variant.Type
		jv := toJSONValue(v.Variant.Value)
		out.Variant = &jv
	case KindStructVariantArray:
		for _, sv := range v.StructVariantArray {
			out.VariantArray = append(out.VariantArray, jsonVariantScalar{
				VariantType: sv.Type,
				Value:       toJSONValue(sv.Value),
			})
		}
	}
	return out
}

func toJSONStruct(s *StructValue) *jsonStruct {
	js := &jsonStruct{Fields: map[string]jsonValue{}}
	for name, fv := range s.Fields {
		js.Fields[name] = toJSONValue(fv)
	}
	return js
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	parsed, err := fromJSONValue(&jv)
	if err != nil {
		return err
	}
	*v = *parsed
	return nil
}

func fromJSONValue(jv *jsonValue) (*Value, error) {
	switch {
	case jv.Empty != nil:
		return &Value{Kind: KindEmpty}, nil
	case jv.Int32 != nil:
		return &Value{Kind: KindInt32, Int32: *jv.Int32}, nil
	case jv.Float32 != nil:
		return &Value{Kind: KindFloat32, Float32: *jv.Float32}, nil
	case jv.String != nil:
		return &Value{Kind: KindString, String: *jv.String}, nil
	case jv.Struct != nil:
		sv, err := fromJSONStruct(jv.Struct)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindStruct, Struct: sv}, nil
	case jv.Int32Array != nil:
		return &Value{Kind: KindInt32Array, Int32Array: jv.Int32Array}, nil
	case jv.Float32Array != nil:
		return &Value{Kind: KindFloat32Array, Float32Array: jv.Float32Array}, nil
	case jv.StringArray != nil:
		return &Value{Kind: KindStringArray, StringArray: jv.StringArray}, nil
	case jv.StructArray != nil:
		var arr []*StructValue
		for i := range jv.StructArray {
			sv, err := fromJSONStruct(&jv.StructArray[i])
			if err != nil {
				return nil, err
			}
			arr = append(arr, sv)
		}
		return &Value{Kind: KindStructArray, StructArray: arr}, nil
	case jv.Variant != nil:
		inner, err := fromJSONValue(jv.Variant)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindStructVariant, Variant: &StructVariant{Type: jv.VariantType, Value: inner}}, nil
	case jv.VariantArray != nil:
		var arr []*StructVariant
		for _, va := range jv.VariantArray {
			inner, err := fromJSONValue(&va.Value)
			if err != nil {
				return nil, err
			}
			arr = append(arr, &StructVariant{Type: va.VariantType, Value: inner})
		}
		return &Value{Kind: KindStructVariantArray, StructVariantArray: arr}, nil
	default:
		return &Value{Kind: KindEmpty}, nil
	}
}

func fromJSONStruct(js *jsonStruct) (*StructValue, error) {
	sv := &StructValue{Fields: map[string]*Value{}}
	for name, fv := range js.Fields {
		fvCopy := fv
		parsed, err := fromJSONValue(&fvCopy)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		sv.Fields[name] = parsed
	}
	return sv, nil
}

// Equal reports whether two Values represent the same data (used by the
// set constraint's membership check).
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	a, _ := json.Marshal(v)
	b, _ := json.Marshal(o)
	return string(a) == string(b)
}
