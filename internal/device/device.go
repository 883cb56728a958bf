package device

import (
	"strings"
	"sync"

	log "github.com/golang/glog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/oid"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// Device is the aggregate described in spec §4: one slot's params,
// commands, shared constraints, menu groups and language packs, all
// mutated under a single mutex (spec §4.4: "all mutating and reading
// operations on a device take the same lock, giving a total order within
// one device"). Grounded on the teacher's per-slot translib model in
// sonic_data_client, with the dbus/redis backing swapped for the in-memory
// model.Param tree built in §3-§4.
type Device struct {
	mu sync.Mutex

	slot                 uint32
	detailLevel          wire.DetailLevel
	defaultScope         authz.Scope
	multiSetEnabled      bool
	subscriptionsEnabled bool
	accessScopes         []string

	params     map[string]*model.Param
	commands   map[string]*model.Param
	constraint map[string]model.Constraint
	menuGroups map[string]*model.MenuGroup
	languages  *model.LanguagePackRegistry

	signals *signalBus
}

// Config seeds a new Device; assembled by internal/devicedesc from a YAML
// device description at startup.
type Config struct {
	Slot                 uint32
	DetailLevel          wire.DetailLevel
	DefaultScope         authz.Scope
	MultiSetEnabled      bool
	SubscriptionsEnabled bool
	AccessScopes         []string
}

func New(cfg Config) *Device {
	return &Device{
		slot:                 cfg.Slot,
		detailLevel:          cfg.DetailLevel,
		defaultScope:         cfg.DefaultScope,
		multiSetEnabled:      cfg.MultiSetEnabled,
		subscriptionsEnabled: cfg.SubscriptionsEnabled,
		accessScopes:         cfg.AccessScopes,
		params:               map[string]*model.Param{},
		commands:             map[string]*model.Param{},
		constraint:           map[string]model.Constraint{},
		menuGroups:           map[string]*model.MenuGroup{},
		languages:            model.NewLanguagePackRegistry(),
		signals:              newSignalBus(),
	}
}

func (d *Device) Slot() uint32                 { return d.slot }
func (d *Device) DetailLevel() wire.DetailLevel { return d.detailLevel }
func (d *Device) DefaultScope() authz.Scope     { return d.defaultScope }
func (d *Device) MultiSetEnabled() bool        { return d.multiSetEnabled }
func (d *Device) SubscriptionsEnabled() bool   { return d.subscriptionsEnabled }
func (d *Device) AccessScopes() []string       { return d.accessScopes }

// AddParam registers a top-level param or command at startup (used by
// internal/devicedesc while building the device from its description; not
// safe to call concurrently with request handling).
func (d *Device) AddParam(name string, p *model.Param) {
	if p.Descriptor().IsCommand {
		d.commands[name] = p
	} else {
		d.params[name] = p
	}
}

// AddConstraint registers a shared, named constraint (spec §3 Constraint,
// §6 SharedConstraint component).
func (d *Device) AddConstraint(name string, c model.Constraint) { d.constraint[name] = c }

// AddMenuGroup registers a menu group at startup.
func (d *Device) AddMenuGroup(g *model.MenuGroup) { d.menuGroups[g.Name] = g }

// Languages exposes the language pack registry (its own lock, independent
// of the device mutex per spec §4.5).
func (d *Device) Languages() *model.LanguagePackRegistry { return d.languages }

// SubscribeValue/SubscribeLanguage let a Connect dispatcher observe this
// device's signals (spec §4.8, §5).
func (d *Device) SubscribeValue(l ValueListener) func()       { return d.signals.SubscribeValue(l) }
func (d *Device) SubscribeLanguage(l LanguageListener) func() { return d.signals.SubscribeLanguage(l) }

// topLevel splits a parsed path into its top-level name and the remaining
// sub-path, looking the name up in params then commands.
func (d *Device) topLevel(path *oid.Path) (*model.Param, *oid.Path, error) {
	if path.Empty() || !path.FrontIsString() {
		return nil, nil, status.Error(codes.InvalidArgument, "path must begin with a param name")
	}
	rest := path.Copy()
	name := rest.Pop().AsString()
	if p, ok := d.params[name]; ok {
		return p, rest, nil
	}
	if p, ok := d.commands[name]; ok {
		return p, rest, nil
	}
	return nil, nil, status.Errorf(codes.NotFound, "no such param or command: %s", oid.Join(name, ""))
}

// GetParam resolves a fqoid to a Param handle (spec §4.4 getParam). The
// returned handle shares storage with the live param; callers must not
// retain it across mutations without re-resolving.
func (d *Device) GetParam(fqoid string, az *authz.Authorizer) (*model.Param, error) {
	path, err := oid.Parse(fqoid)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	top, rest, err := d.topLevel(path)
	if err != nil {
		return nil, err
	}
	return top.GetParam(rest, az)
}

// GetCommand resolves a fqoid to a command Param (spec §4.7
// ExecuteCommand). Fails NOT_FOUND if the oid does not name a command.
func (d *Device) GetCommand(fqoid string, az *authz.Authorizer) (*model.Param, error) {
	p, err := d.GetParam(fqoid, az)
	if err != nil {
		return nil, err
	}
	if !p.Descriptor().IsCommand {
		return nil, status.Errorf(codes.NotFound, "%s is not a command", fqoid)
	}
	return p, nil
}

// GetValue reads one param's current value (spec §4.4 GetValue).
func (d *Device) GetValue(fqoid string, az *authz.Authorizer) (*wire.Value, error) {
	p, err := d.GetParam(fqoid, az)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return p.GetValue(az)
}

// SetValue validates and commits a single write, then fires
// valueSetByClient (spec §4.4 SetValue, §4.8).
func (d *Device) SetValue(fqoid string, v *wire.Value, az *authz.Authorizer, appendMode bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setValueLocked(fqoid, v, az, appendMode, false)
}

// SetValueByServer is the server-initiated counterpart used by internal
// components (e.g. an asset-driven firmware update) that need to push a
// value without pretending it came from a client (spec §4.8
// valueSetByServer).
func (d *Device) SetValueByServer(fqoid string, v *wire.Value, az *authz.Authorizer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setValueLocked(fqoid, v, az, false, true)
}

func (d *Device) setValueLocked(fqoid string, v *wire.Value, az *authz.Authorizer, appendMode, byServer bool) error {
	path, err := oid.Parse(fqoid)
	if err != nil {
		return err
	}
	top, rest, err := d.topLevel(path)
	if err != nil {
		return err
	}
	appendHere := appendMode
	if rest.BackIsIndex() && rest.BackAsIndex() == oid.KEnd {
		rest.PopBack()
		appendHere = true
	}
	p, err := top.GetParam(rest, az)
	if err != nil {
		return err
	}
	var elementIndex int32 = -1
	if appendHere {
		added, err := p.AddBack(az)
		if err != nil {
			return err
		}
		if verr := added.ValidateSetValue(v, az, false); verr != nil {
			p.PopBack()
			return verr
		}
		if cerr := added.FromProto(az); cerr != nil {
			p.PopBack()
			return cerr
		}
	} else {
		if verr := p.ValidateSetValue(v, az, false); verr != nil {
			return verr
		}
		if cerr := p.FromProto(az); cerr != nil {
			return cerr
		}
	}
	d.signals.fireValue(ValueChange{Oid: fqoid, ElementIndex: elementIndex, Value: v, ByServer: byServer})
	return nil
}

// pendingSet is one leg of a MultiSetValue transaction during the
// validate phase.
type pendingSet struct {
	fqoid string
	param *model.Param
}

// TryMultiSetValue validates every entry against the device's live state
// without committing any of them, returning the handles to commit
// (or discard) in a second pass (spec §4.4 MultiSetValue, §8 P6/P7: all
// entries validate or none commit; overlapping oids within one request are
// rejected).
func (d *Device) TryMultiSetValue(entries []wire.SetValuePayload, az *authz.Authorizer) ([]*model.Param, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.multiSetEnabled && len(entries) > 1 {
		return nil, status.Errorf(codes.PermissionDenied, "Multi-set is disabled for the device in slot %d", d.slot)
	}

	touched := make([]string, 0, len(entries))
	for _, e := range entries {
		for _, other := range touched {
			if oidOverlaps(e.Oid, other) {
				return nil, status.Errorf(codes.InvalidArgument, "Overlapping actions for %s and %s", other, e.Oid)
			}
		}
		touched = append(touched, e.Oid)
	}

	pending := make([]pendingSet, 0, len(entries))
	for _, e := range entries {
		path, err := oid.Parse(e.Oid)
		if err != nil {
			return nil, err
		}
		top, rest, err := d.topLevel(path)
		if err != nil {
			return nil, err
		}
		if rest.BackIsIndex() && rest.BackAsIndex() == oid.KEnd {
			return nil, status.Errorf(codes.InvalidArgument, "append ('-') is not supported inside MultiSetValue: %s", e.Oid)
		}
		p, err := top.GetParam(rest, az)
		if err != nil {
			return nil, err
		}
		if err := p.ValidateSetValue(e.Value, az, false); err != nil {
			return nil, err
		}
		pending = append(pending, pendingSet{fqoid: e.Oid, param: p})
	}

	out := make([]*model.Param, len(pending))
	for i, ps := range pending {
		out[i] = ps.param
	}
	return out, nil
}

// CommitMultiSetValue applies every validated param returned by a prior
// TryMultiSetValue and fires one valueSetByClient signal per entry (spec
// §4.4 MultiSetValue commit phase).
func (d *Device) CommitMultiSetValue(validated []*model.Param, oids []string, az *authz.Authorizer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range validated {
		if err := p.FromProto(az); err != nil {
			log.Errorf("slot %d: commit failed for %s after successful validation: %v", d.slot, oids[i], err)
			return status.Errorf(codes.Internal, "commit failed for %s after successful validation: %v", oids[i], err)
		}
	}
	for i, p := range validated {
		v, _ := p.GetValue(authz.Disabled)
		d.signals.fireValue(ValueChange{Oid: oids[i], ElementIndex: -1, Value: v})
	}
	return nil
}

// ResetMultiSetValue discards a partially validated MultiSetValue
// transaction (spec §4.4 step 5: any failure resets every leg already
// validated).
func (d *Device) ResetMultiSetValue(validated []*model.Param) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range validated {
		p.ResetValidate()
	}
}

// SeedLanguage installs a language pack that ships with the device
// description itself (spec §3 I3: "shipped packs never appear in
// added_packs"). Called only while devicedesc builds the device, before
// it is registered and visible to request handlers; fires no signal.
func (d *Device) SeedLanguage(lp *model.LanguagePack) {
	d.languages.SeedShipped(lp)
}

// AddLanguage installs a language pack and fires languageAdded only when
// the id is genuinely new (spec §4.5 AddLanguage). Fails PERMISSION_DENIED
// with the spec's exact message if id names a pack shipped with the
// device description.
func (d *Device) AddLanguage(lp *model.LanguagePack) error {
	isNew, err := d.languages.Add(lp)
	if err != nil {
		return status.Error(codes.PermissionDenied, err.Error())
	}
	if isNew {
		d.signals.fireLanguage(LanguageEvent{Language: lp.ID, Pack: lp.ToWire()})
	}
	return nil
}

// RemoveLanguage drops a language pack and, if it existed, fires a
// languageAdded signal carrying Removed=true so connected clients evict
// it from their local cache. Fails NOT_FOUND if id is unknown, or
// PERMISSION_DENIED with the spec's exact message if id names a pack
// shipped with the device description (spec §4.5 removeLanguage).
func (d *Device) RemoveLanguage(id string) error {
	removed, err := d.languages.Remove(id)
	if err != nil {
		return status.Error(codes.PermissionDenied, err.Error())
	}
	if !removed {
		return status.Errorf(codes.NotFound, "Language pack '%s' not found", id)
	}
	d.signals.fireLanguage(LanguageEvent{Language: id, Removed: true})
	return nil
}

// ShouldSendParam reports whether pd belongs in a stream filtered by
// detail level, subscriptions, and authorization (spec §4.6
// DeviceSerializer, §4.8 Connect). subs may be nil when detail is not
// DetailSubscriptions.
func (d *Device) ShouldSendParam(pd *model.ParamDescriptor, detail wire.DetailLevel, subs *subscription.Manager, az *authz.Authorizer) bool {
	if !az.ReadAuthz(pd) {
		return false
	}
	switch detail {
	case wire.DetailFull:
		return true
	case wire.DetailMinimal:
		return pd.MinimalSet
	case wire.DetailCommands:
		return pd.IsCommand
	case wire.DetailSubscriptions:
		return pd.MinimalSet || (subs != nil && subs.IsSubscribed(pd.Oid))
	case wire.DetailNone:
		return false
	default:
		return false
	}
}

// TopLevelDescriptor resolves fqoid's leading segment to the descriptor
// of the top-level param or command it names, without taking the device
// mutex. params/commands are populated once at startup and never mutated
// afterward, so reading them needs no lock even when called from inside a
// signal listener invoked while the emitting writer still holds the
// device mutex (spec §5: "a Connect listener must not take the device
// mutex while holding its own handler mutex"). Used by
// internal/connectdispatch to apply the same read-authorization filter
// DeviceSerializer applies (spec §4.8 step 3, §7 broadcast read-denial).
func (d *Device) TopLevelDescriptor(fqoid string) *model.ParamDescriptor {
	path, err := oid.Parse(fqoid)
	if err != nil || path.Empty() || !path.FrontIsString() {
		return nil
	}
	name := path.Front().AsString()
	if p, ok := d.params[name]; ok {
		return p.Descriptor()
	}
	if p, ok := d.commands[name]; ok {
		return p.Descriptor()
	}
	return nil
}

// oidOverlaps reports whether a and b are equal or one is a path-segment
// prefix of the other (spec §3 I4, §4.4 step 4, §8 P7). A plain string
// prefix check would wrongly flag "/paramA" against "/paramAB"; comparing
// on "/"-bounded segments avoids that.
func oidOverlaps(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(a) > len(b) {
		shorter, longer = b, a
	}
	return strings.HasPrefix(longer, shorter+"/")
}

// Params/Commands/Constraints/MenuGroups give read-only iteration access
// for DeviceSerializer; callers must hold no assumption about ordering.
func (d *Device) Params() map[string]*model.Param         { return d.params }
func (d *Device) Commands() map[string]*model.Param       { return d.commands }
func (d *Device) Constraints() map[string]model.Constraint { return d.constraint }
func (d *Device) MenuGroups() map[string]*model.MenuGroup  { return d.menuGroups }

// Lock/Unlock expose the device mutex to internal/serializer, which holds
// it while New takes its snapshot and while each GetNext call builds a
// component (spec
// §4.6: a DeviceSerializer reads a consistent snapshot, not a
// field-by-field race with concurrent writers).
func (d *Device) Lock()   { d.mu.Lock() }
func (d *Device) Unlock() { d.mu.Unlock() }
