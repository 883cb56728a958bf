package model

import "github.com/device-model/server/internal/wire"

// Menu groups a set of param/command oids that a client UI should present
// together (spec GLOSSARY "Component", original_source IMenu.h).
type Menu struct {
	Name        string
	ParamOids   []string
	CommandOids []string
}

func (m *Menu) ToWire() wire.MenuWire {
	return wire.MenuWire{Name: m.Name, ParamOids: m.ParamOids, CommandOids: m.CommandOids}
}

// MenuGroup is a named collection of Menus, the unit a device description
// organizes its menus under (spec §C supplement: menu groups/menus as
// first-class serialized components, original_source's IMenuGroup.h).
type MenuGroup struct {
	Name  string
	Menus map[string]*Menu
}

func NewMenuGroup(name string) *MenuGroup {
	return &MenuGroup{Name: name, Menus: map[string]*Menu{}}
}

func (g *MenuGroup) AddMenu(m *Menu) { g.Menus[m.Name] = m }

func (g *MenuGroup) Skeleton() wire.MenuGroupSkeleton {
	oids := make([]string, 0, len(g.Menus))
	for name := range g.Menus {
		oids = append(oids, "/"+g.Name+"/"+name)
	}
	return wire.MenuGroupSkeleton{Name: g.Name, MenuOids: oids}
}
