// Package devicedesc loads a device's static shape — its params,
// commands, shared constraints, menu groups and seed language packs —
// from a YAML description file and assembles a device.Device from it.
// This replaces the out-of-scope code-generation step the original
// system used to turn a schema into compiled descriptor classes: here the
// schema is data, read once at startup with gopkg.in/yaml.v3, the
// library the teacher already uses for its own config files (spec §A).
package devicedesc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/wire"
)

// paramYAML is the on-disk shape of one param or command node, recursive
// through Fields (struct sub-params) and Element (struct_array element
// descriptor).
type paramYAML struct {
	Name        string                `yaml:"name"`
	Type        string                `yaml:"type"`
	Scope       string                `yaml:"scope"`
	ReadOnly    bool                  `yaml:"read_only"`
	MinimalSet  bool                  `yaml:"minimal_set"`
	IsCommand   bool                  `yaml:"is_command"`
	MaxLength   uint32                `yaml:"max_length"`
	TotalLength uint32                `yaml:"total_length"`
	Constraint  *constraintYAML       `yaml:"constraint"`
	Fields      []paramYAML           `yaml:"fields"`
	Element     *paramYAML            `yaml:"element"`
	Alternatives map[string]paramYAML `yaml:"alternatives"`
	Initial     yaml.Node             `yaml:"initial"`
}

type constraintYAML struct {
	Type   string    `yaml:"type"`
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max"`
	Values []float64 `yaml:"values_numeric"`
	Strings []string `yaml:"values_string"`
}

type constraintRefYAML struct {
	Name string `yaml:"name"`
	constraintYAML `yaml:",inline"`
}

type menuYAML struct {
	Name        string   `yaml:"name"`
	ParamOids   []string `yaml:"param_oids"`
	CommandOids []string `yaml:"command_oids"`
}

type menuGroupYAML struct {
	Name  string     `yaml:"name"`
	Menus []menuYAML `yaml:"menus"`
}

type languagePackYAML struct {
	ID    string            `yaml:"id"`
	Name  string            `yaml:"name"`
	Words map[string]string `yaml:"words"`
}

type deviceYAML struct {
	Slot                 uint32              `yaml:"slot"`
	DetailLevel          string              `yaml:"detail_level"`
	DefaultScope         string              `yaml:"default_scope"`
	MultiSetEnabled      bool                `yaml:"multi_set_enabled"`
	SubscriptionsEnabled bool                `yaml:"subscriptions_enabled"`
	AccessScopes         []string            `yaml:"access_scopes"`
	Params               []paramYAML         `yaml:"params"`
	Commands             []paramYAML         `yaml:"commands"`
	Constraints          []constraintRefYAML `yaml:"constraints"`
	MenuGroups           []menuGroupYAML     `yaml:"menu_groups"`
	LanguagePacks        []languagePackYAML  `yaml:"language_packs"`
}

// Load reads path and builds a fully-populated, not-yet-registered
// device.Device. Command params are built without a handler bound
// (IsCommand descriptors only), and model.Param has no method to bind one
// afterwards, so ExecuteCommand on a loaded command fails UNIMPLEMENTED.
func Load(path string) (*device.Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devicedesc: reading %s: %w", path, err)
	}
	var doc deviceYAML
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("devicedesc: parsing %s: %w", path, err)
	}
	return build(&doc)
}

func build(doc *deviceYAML) (*device.Device, error) {
	dev := device.New(device.Config{
		Slot:                 doc.Slot,
		DetailLevel:          parseDetailLevel(doc.DetailLevel),
		DefaultScope:         authz.Scope(doc.DefaultScope),
		MultiSetEnabled:      doc.MultiSetEnabled,
		SubscriptionsEnabled: doc.SubscriptionsEnabled,
		AccessScopes:         doc.AccessScopes,
	})

	for _, ref := range doc.Constraints {
		c, err := buildConstraint(&ref.constraintYAML)
		if err != nil {
			return nil, fmt.Errorf("devicedesc: constraint %q: %w", ref.Name, err)
		}
		dev.AddConstraint(ref.Name, c)
	}

	for _, pyaml := range doc.Params {
		p, err := buildParam(pyaml)
		if err != nil {
			return nil, fmt.Errorf("devicedesc: param %q: %w", pyaml.Name, err)
		}
		dev.AddParam(pyaml.Name, p)
	}
	for _, pyaml := range doc.Commands {
		pyaml.IsCommand = true
		p, err := buildParam(pyaml)
		if err != nil {
			return nil, fmt.Errorf("devicedesc: command %q: %w", pyaml.Name, err)
		}
		dev.AddParam(pyaml.Name, p)
	}

	for _, gy := range doc.MenuGroups {
		g := model.NewMenuGroup(gy.Name)
		for _, my := range gy.Menus {
			g.AddMenu(&model.Menu{Name: my.Name, ParamOids: my.ParamOids, CommandOids: my.CommandOids})
		}
		dev.AddMenuGroup(g)
	}

	for _, lp := range doc.LanguagePacks {
		dev.SeedLanguage(&model.LanguagePack{ID: lp.ID, Name: lp.Name, Words: lp.Words})
	}

	return dev, nil
}

func parseDetailLevel(s string) wire.DetailLevel {
	switch s {
	case "minimal":
		return wire.DetailMinimal
	case "subscriptions":
		return wire.DetailSubscriptions
	case "commands":
		return wire.DetailCommands
	case "none":
		return wire.DetailNone
	default:
		return wire.DetailFull
	}
}

func parseParamType(s string) wire.ParamType {
	switch s {
	case "int32":
		return wire.TypeInt32
	case "float32":
		return wire.TypeFloat32
	case "string":
		return wire.TypeString
	case "struct":
		return wire.TypeStruct
	case "int32_array":
		return wire.TypeInt32Array
	case "float32_array":
		return wire.TypeFloat32Array
	case "string_array":
		return wire.TypeStringArray
	case "struct_array":
		return wire.TypeStructArray
	case "struct_variant":
		return wire.TypeStructVariant
	case "struct_variant_array":
		return wire.TypeStructVariantArray
	default:
		return wire.TypeEmpty
	}
}

func buildConstraint(c *constraintYAML) (model.Constraint, error) {
	switch c.Type {
	case "range":
		return &model.RangeConstraint{Min: c.Min, Max: c.Max}, nil
	case "set":
		var allowed []*wire.Value
		for _, n := range c.Values {
			allowed = append(allowed, wire.Int32Value(int32(n)))
		}
		for _, s := range c.Strings {
			allowed = append(allowed, wire.StringValue(s))
		}
		return &model.SetConstraint{Allowed: allowed}, nil
	default:
		return nil, fmt.Errorf("unknown constraint type %q", c.Type)
	}
}

func buildDescriptor(name string, py paramYAML) (*model.ParamDescriptor, error) {
	pd := &model.ParamDescriptor{
		Oid:         "/" + name,
		Type:        parseParamType(py.Type),
		Scope:       authz.Scope(py.Scope),
		ReadOnly:    py.ReadOnly,
		MinimalSet:  py.MinimalSet,
		IsCommand:   py.IsCommand,
		MaxLength:   py.MaxLength,
		TotalLength: py.TotalLength,
	}
	if py.Constraint != nil {
		c, err := buildConstraint(py.Constraint)
		if err != nil {
			return nil, err
		}
		pd.Constraint = c
	}
	if len(py.Fields) > 0 {
		pd.SubParams = map[string]*model.ParamDescriptor{}
		for _, f := range py.Fields {
			fpd, err := buildDescriptor(f.Name, f)
			if err != nil {
				return nil, err
			}
			pd.SubParams[f.Name] = fpd
		}
	}
	if py.Element != nil && pd.Type == wire.TypeStructArray {
		epd, err := buildDescriptor(py.Element.Name, *py.Element)
		if err != nil {
			return nil, err
		}
		// A struct_array's element fields are shared directly into the
		// array descriptor's own SubParams, matching
		// ParamDescriptor.elementDescriptor()'s expectation of finding
		// them there (model/param.go).
		pd.SubParams = epd.SubParams
	}
	if len(py.Alternatives) > 0 {
		pd.Alternatives = map[string]*model.ParamDescriptor{}
		for tag, alt := range py.Alternatives {
			apd, err := buildDescriptor(tag, alt)
			if err != nil {
				return nil, err
			}
			pd.Alternatives[tag] = apd
		}
	}
	return pd, nil
}

func buildParam(py paramYAML) (*model.Param, error) {
	pd, err := buildDescriptor(py.Name, py)
	if err != nil {
		return nil, err
	}
	initial, err := valueFromYAMLNode(&py.Initial, pd.Type)
	if err != nil {
		return nil, err
	}
	if pd.IsCommand {
		return model.NewCommandParam(py.Name, pd, nil), nil
	}
	return model.NewParam(py.Name, pd, initial), nil
}

// valueFromYAMLNode decodes the "initial" YAML node into a wire.Value
// matching t's kind. An empty/zero node yields the zero value for t.
func valueFromYAMLNode(n *yaml.Node, t wire.ParamType) (*wire.Value, error) {
	if n == nil || n.IsZero() {
		return zeroValue(t), nil
	}
	switch t {
	case wire.TypeInt32:
		var i int32
		if err := n.Decode(&i); err != nil {
			return nil, err
		}
		return wire.Int32Value(i), nil
	case wire.TypeFloat32:
		var f float32
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return wire.Float32Value(f), nil
	case wire.TypeString:
		var s string
		if err := n.Decode(&s); err != nil {
			return nil, err
		}
		return wire.StringValue(s), nil
	case wire.TypeInt32Array:
		var arr []int32
		if err := n.Decode(&arr); err != nil {
			return nil, err
		}
		return &wire.Value{Kind: wire.KindInt32Array, Int32Array: arr}, nil
	case wire.TypeFloat32Array:
		var arr []float32
		if err := n.Decode(&arr); err != nil {
			return nil, err
		}
		return &wire.Value{Kind: wire.KindFloat32Array, Float32Array: arr}, nil
	case wire.TypeStringArray:
		var arr []string
		if err := n.Decode(&arr); err != nil {
			return nil, err
		}
		return &wire.Value{Kind: wire.KindStringArray, StringArray: arr}, nil
	default:
		return zeroValue(t), nil
	}
}

func zeroValue(t wire.ParamType) *wire.Value {
	switch t {
	case wire.TypeInt32:
		return wire.Int32Value(0)
	case wire.TypeFloat32:
		return wire.Float32Value(0)
	case wire.TypeString:
		return wire.StringValue("")
	case wire.TypeStruct:
		return &wire.Value{Kind: wire.KindStruct, Struct: &wire.StructValue{Fields: map[string]*wire.Value{}}}
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
