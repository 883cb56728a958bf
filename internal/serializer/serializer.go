// Package serializer implements DeviceSerializer: a lazy, one-component-
// at-a-time producer over a Device's header, language packs, shared
// constraints, params, commands and menus, filtered by detail level,
// subscriptions and authorization (spec §4.6). Grounded on the teacher's
// gnmi_server stream-response generators, which hand back one
// gnmi.Notification per Recv() call instead of materializing the whole
// tree up front.
package serializer

import (
	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// Options controls what a DeviceSerializer includes (spec §4.6).
type Options struct {
	DetailLevel wire.DetailLevel
	Subs        *subscription.Manager // required when DetailLevel == DetailSubscriptions
	Shallow     bool                  // true: one component carrying the whole device, then stop (spec §4.6)
	Authorizer  *authz.Authorizer
}

// DeviceSerializer produces DeviceComponents one at a time via GetNext,
// mirroring a coroutine's yield without needing goroutines: all state is
// held in the struct and advanced synchronously (spec §4.6, §9 "model
// push-style streaming as a pull-driven generator").
type DeviceSerializer struct {
	dev  *device.Device
	opts Options

	headerSent bool

	langPacks  []pendingLangPack
	menuGroups []*model.MenuGroup
	constraint []pendingConstraint
	params     []pendingParam
	commands   []pendingParam

	idx int // index into the currently-iterating phase
	phase phase
}

type phase int

const (
	phaseHeader phase = iota
	phaseLangPacks
	phaseMenus
	phaseConstraints
	phaseParams
	phaseCommands
	phaseDone
)

type pendingLangPack struct {
	id string
	lp *model.LanguagePack
}

type pendingConstraint struct {
	name string
	c    model.Constraint
}

type pendingParam struct {
	oid string
	p   *model.Param
}

// New snapshots, under the device lock, which language packs, menus,
// constraints, params and commands the stream will carry, and builds a
// serializer ready to stream (spec §4.6). Values are not part of the
// snapshot: GetNext takes the device lock again and reads each value as
// it builds that component, so a write made between two GetNext calls
// shows up in the later component.
func New(dev *device.Device, opts Options) *DeviceSerializer {
	s := &DeviceSerializer{dev: dev, opts: opts}

	dev.Lock()
	defer dev.Unlock()

	dev.Languages().Each(func(lp *model.LanguagePack) {
		s.langPacks = append(s.langPacks, pendingLangPack{id: lp.ID, lp: lp})
	})
	// One entry per menu, so GetNext emits every menu of a group.
	for _, g := range dev.MenuGroups() {
		for _, m := range g.Menus {
			one := model.NewMenuGroup(g.Name)
			one.AddMenu(m)
			s.menuGroups = append(s.menuGroups, one)
		}
	}
	for name, c := range dev.Constraints() {
		s.constraint = append(s.constraint, pendingConstraint{name: name, c: c})
	}
	for oidKey, p := range dev.Params() {
		if dev.ShouldSendParam(p.Descriptor(), opts.DetailLevel, opts.Subs, opts.Authorizer) {
			s.params = append(s.params, pendingParam{oid: "/" + oidKey, p: p})
		}
	}
	for oidKey, p := range dev.Commands() {
		if dev.ShouldSendParam(p.Descriptor(), opts.DetailLevel, opts.Subs, opts.Authorizer) {
			s.commands = append(s.commands, pendingParam{oid: "/" + oidKey, p: p})
		}
	}
	return s
}

// HasMore reports whether GetNext would return another component (spec
// §4.6 hasMore/getNext contract).
func (s *DeviceSerializer) HasMore() bool { return s.phase != phaseDone }

// GetNext returns the next DeviceComponent, or nil once exhausted. It
// holds the device lock while it builds the component.
// In shallow mode the header's maps are populated in full and GetNext
// returns only that one component; in non-shallow mode the header is
// emitted with empty maps and every subsequent item follows as its own
// component (spec §4.6).
func (s *DeviceSerializer) GetNext() (*wire.DeviceComponent, error) {
	s.dev.Lock()
	defer s.dev.Unlock()
	if !s.headerSent {
		s.headerSent = true
		header := s.buildHeader()
		if s.opts.Shallow {
			s.phase = phaseDone
			return &wire.DeviceComponent{Device: header}, nil
		}
		s.phase = phaseLangPacks
		return &wire.DeviceComponent{Device: header}, nil
	}

	for s.phase != phaseDone {
		switch s.phase {
		case phaseLangPacks:
			if s.idx < len(s.langPacks) {
				lp := s.langPacks[s.idx]
				s.idx++
				w := lp.lp.ToWire()
				return &wire.DeviceComponent{LanguagePack: &wire.LanguagePackComponent{Language: lp.id, Pack: w}}, nil
			}
			s.idx = 0
			s.phase = phaseMenus
		case phaseMenus:
			if s.idx < len(s.menuGroups) {
				g := s.menuGroups[s.idx]
				s.idx++
				for name, m := range g.Menus {
					return &wire.DeviceComponent{Menu: &wire.MenuComponent{Oid: "/" + g.Name + "/" + name, Menu: m.ToWire()}}, nil
				}
				continue
			}
			s.idx = 0
			s.phase = phaseConstraints
		case phaseConstraints:
			if s.idx < len(s.constraint) {
				c := s.constraint[s.idx]
				s.idx++
				return &wire.DeviceComponent{SharedConstraint: &wire.ConstraintComponent{Oid: c.name, Constraint: c.c.ToWire()}}, nil
			}
			s.idx = 0
			s.phase = phaseParams
		case phaseParams:
			if s.idx < len(s.params) {
				pp := s.params[s.idx]
				s.idx++
				return s.paramComponent(pp, false)
			}
			s.idx = 0
			s.phase = phaseCommands
		case phaseCommands:
			if s.idx < len(s.commands) {
				pp := s.commands[s.idx]
				s.idx++
				return s.paramComponent(pp, true)
			}
			s.idx = 0
			s.phase = phaseDone
		}
	}
	return nil, nil
}

func (s *DeviceSerializer) paramComponent(pp pendingParam, isCommand bool) (*wire.DeviceComponent, error) {
	v, err := pp.p.GetValue(s.opts.Authorizer)
	if err != nil {
		return nil, err
	}
	pc := &wire.ParamComponent{Oid: pp.oid, Descriptor: pp.p.Descriptor().ToWire(), Value: v}
	if isCommand {
		return &wire.DeviceComponent{Command: pc}, nil
	}
	return &wire.DeviceComponent{Param: pc}, nil
}

func (s *DeviceSerializer) buildHeader() *wire.DeviceHeader {
	h := &wire.DeviceHeader{
		Slot:                 s.dev.Slot(),
		DetailLevel:          s.opts.DetailLevel,
		DefaultScope:         string(s.dev.DefaultScope()),
		MultiSetEnabled:      s.dev.MultiSetEnabled(),
		SubscriptionsEnabled: s.dev.SubscriptionsEnabled(),
		AccessScopes:         s.dev.AccessScopes(),
		MenuGroups:           map[string]wire.MenuGroupSkeleton{},
	}
	for name, g := range s.dev.MenuGroups() {
		h.MenuGroups[name] = g.Skeleton()
	}
	if s.opts.Shallow {
		h.Params = map[string]wire.ParamComponent{}
		h.Commands = map[string]wire.ParamComponent{}
		h.Constraints = map[string]wire.ConstraintWire{}
		h.LanguagePacks = map[string]wire.LanguagePackWire{}
		for _, pp := range s.params {
			if v, err := pp.p.GetValue(s.opts.Authorizer); err == nil {
				h.Params[pp.oid] = wire.ParamComponent{Oid: pp.oid, Descriptor: pp.p.Descriptor().ToWire(), Value: v}
			}
		}
		for _, pp := range s.commands {
			if v, err := pp.p.GetValue(s.opts.Authorizer); err == nil {
				h.Commands[pp.oid] = wire.ParamComponent{Oid: pp.oid, Descriptor: pp.p.Descriptor().ToWire(), Value: v}
			}
		}
		for _, c := range s.constraint {
			h.Constraints[c.name] = c.c.ToWire()
		}
		for _, lp := range s.langPacks {
			h.LanguagePacks[lp.id] = lp.lp.ToWire()
		}
	}
	return h
}
