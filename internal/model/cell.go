package model

import "github.com/device-model/server/internal/wire"

// cell is the storage a Param reads and writes through. Top-level params
// own a rootCell; sub-params returned by GetParam share a view into their
// parent's cell (fieldCell for struct fields, indexCell for array
// elements) so that committing through a sub-param handle mutates the
// same underlying value the top-level Param serializes (spec §3 Param:
// "copy() returning a handle whose operations act against the same
// underlying cell").
type cell interface {
	Get() *wire.Value
	Set(*wire.Value)
}

type rootCell struct {
	value *wire.Value
}

func (c *rootCell) Get() *wire.Value  { return c.value }
func (c *rootCell) Set(v *wire.Value) { c.value = v }

type fieldCell struct {
	parent cell
	field  string
}

func (c *fieldCell) Get() *wire.Value {
	pv := c.parent.Get()
	if pv == nil || pv.Struct == nil {
		return nil
	}
	return pv.Struct.Fields[c.field]
}

func (c *fieldCell) Set(v *wire.Value) {
	pv := c.parent.Get()
	if pv.Struct == nil {
		pv.Struct = &wire.StructValue{Fields: map[string]*wire.Value{}}
	}
	pv.Struct.Fields[c.field] = v
}

// indexCell views one element of a struct_array as a struct-kind cell.
type indexCell struct {
	parent cell
	index  int
}

func (c *indexCell) Get() *wire.Value {
	pv := c.parent.Get()
	if pv == nil || c.index < 0 || c.index >= len(pv.StructArray) {
		return nil
	}
	return &wire.Value{Kind: wire.KindStruct, Struct: pv.StructArray[c.index]}
}

func (c *indexCell) Set(v *wire.Value) {
	pv := c.parent.Get()
	if pv == nil || c.index < 0 || c.index >= len(pv.StructArray) || v == nil {
		return
	}
	pv.StructArray[c.index] = v.Struct
}

// variantCell views the chosen-alternative payload of a struct_variant.
type variantCell struct {
	parent cell
}

func (c *variantCell) Get() *wire.Value {
	pv := c.parent.Get()
	if pv == nil || pv.Variant == nil {
		return nil
	}
	return pv.Variant.Value
}

func (c *variantCell) Set(v *wire.Value) {
	pv := c.parent.Get()
	if pv == nil || pv.Variant == nil {
		return
	}
	pv.Variant.Value = v
}
