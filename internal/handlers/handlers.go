// Package handlers implements the per-RPC contracts shared by the gRPC
// and REST transports (spec §4.7 C10): GetValue, SetValue, MultiSetValue,
// GetParam, DeviceRequest, ParamInfoRequest/BasicParamInfoRequest,
// ExecuteCommand, LanguagePackRequest, AddLanguage, Languages,
// GetPopulatedSlots, UpdateSubscriptions and Connect. Both transports call
// the same Handlers methods and differ only in how they decode requests
// and encode responses, matching the teacher's split between
// gnmi_server's async CallData-style RPC bodies and a REST controller
// doing the same work over net/http.
package handlers

import (
	"fmt"
	"sort"

	log "github.com/golang/glog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/connectdispatch"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/oid"
	"github.com/device-model/server/internal/serializer"
	"github.com/device-model/server/internal/subscription"
	"github.com/device-model/server/internal/wire"
)

// Handlers bundles the device registry every RPC contract is implemented
// against. It carries no per-request state; each method call is one
// kCreate→...→kFinish pass through a Device (spec §4.7: "a unique
// monotonically-increasing object id for logging" is supplied by
// reqctx.GetContext at the transport layer, not here).
type Handlers struct {
	Devices *device.Registry
}

func New(devices *device.Registry) *Handlers {
	return &Handlers{Devices: devices}
}

func (h *Handlers) device(slot uint32) (*device.Device, error) {
	d, ok := h.Devices.Get(slot)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "no device in slot %d", slot)
	}
	return d, nil
}

// GetValue implements spec §4.7 GetValue.
func (h *Handlers) GetValue(slot uint32, oidStr string, az *authz.Authorizer) (*wire.Value, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	return d.GetValue(oidStr, az)
}

// SetValue implements spec §4.7 SetValue: "Wraps into a one-element
// MultiSetValue."
func (h *Handlers) SetValue(slot uint32, oidStr string, v *wire.Value, az *authz.Authorizer) error {
	return h.MultiSetValue(slot, []wire.SetValuePayload{{Oid: oidStr, Value: v}}, az)
}

// MultiSetValue implements spec §4.7 MultiSetValue: validate every entry,
// and only if every entry validates, commit all of them in input order.
func (h *Handlers) MultiSetValue(slot uint32, entries []wire.SetValuePayload, az *authz.Authorizer) error {
	d, err := h.device(slot)
	if err != nil {
		return err
	}
	if len(entries) == 1 && isAppendOid(entries[0].Oid) {
		return d.SetValue(entries[0].Oid, entries[0].Value, az, true)
	}
	log.V(2).Infof("MultiSetValue slot=%d entries=%d", slot, len(entries))
	validated, err := d.TryMultiSetValue(entries, az)
	if err != nil {
		log.V(1).Infof("MultiSetValue slot=%d validation failed: %v", slot, err)
		return err
	}
	oids := make([]string, len(entries))
	for i, e := range entries {
		oids[i] = e.Oid
	}
	if err := d.CommitMultiSetValue(validated, oids, az); err != nil {
		d.ResetMultiSetValue(validated)
		return err
	}
	return nil
}

func isAppendOid(fqoid string) bool {
	p, err := oid.Parse(fqoid)
	if err != nil {
		return false
	}
	return p.BackIsIndex() && p.BackAsIndex() == oid.KEnd
}

// GetParam implements spec §4.7 GetParam.
func (h *Handlers) GetParam(slot uint32, oidStr string, az *authz.Authorizer) (*wire.ParamComponent, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	p, err := d.GetParam(oidStr, az)
	if err != nil {
		return nil, err
	}
	v, err := p.GetValue(az)
	if err != nil {
		return nil, err
	}
	return &wire.ParamComponent{Oid: oidStr, Descriptor: p.Descriptor().ToWire(), Value: v}, nil
}

// DeviceRequest implements spec §4.7 DeviceRequest by building a
// DeviceSerializer; the transport drives HasMore/GetNext to stream
// components.
func (h *Handlers) DeviceRequest(slot uint32, detail wire.DetailLevel, subs *subscription.Manager, shallow bool, az *authz.Authorizer) (*serializer.DeviceSerializer, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	return serializer.New(d, serializer.Options{DetailLevel: detail, Subs: subs, Shallow: shallow, Authorizer: az}), nil
}

// ParamInfoRequest implements spec §4.7: a possibly-recursive visitor over
// a param subtree, each node's read authorization checked individually and
// failures filtered silently rather than aborting the whole request.
// An empty oidPrefix means "every top-level param and command".
func (h *Handlers) ParamInfoRequest(slot uint32, oidPrefix string, recursive bool, az *authz.Authorizer) ([]wire.ParamInfo, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	var out []wire.ParamInfo
	if oidPrefix == "" || oidPrefix == "/" {
		names := make([]string, 0, len(d.Params())+len(d.Commands()))
		byName := map[string]*model.Param{}
		for name, p := range d.Params() {
			names = append(names, name)
			byName[name] = p
		}
		for name, p := range d.Commands() {
			names = append(names, name)
			byName[name] = p
		}
		sort.Strings(names)
		for _, name := range names {
			visitParamInfo("/"+name, byName[name], az, recursive, &out)
		}
		return out, nil
	}
	p, err := d.GetParam(oidPrefix, az)
	if err != nil {
		return nil, err
	}
	visitParamInfo(oidPrefix, p, az, recursive, &out)
	return out, nil
}

func visitParamInfo(fqoid string, p *model.Param, az *authz.Authorizer, recursive bool, out *[]wire.ParamInfo) {
	if !az.ReadAuthz(p.Descriptor()) {
		return
	}
	info := wire.ParamInfo{Oid: fqoid, Descriptor: p.Descriptor().ToWire()}
	if n := p.ArrayLen(); isArrayDescriptor(p.Descriptor()) {
		info.ArrayLength = &n
	}
	*out = append(*out, info)
	if !recursive {
		return
	}
	switch p.Descriptor().Type {
	case wire.TypeStruct:
		fields := make([]string, 0, len(p.Descriptor().SubParams))
		for name := range p.Descriptor().SubParams {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		for _, field := range fields {
			childPath, err := oid.Parse("/" + field)
			if err != nil {
				continue
			}
			child, err := p.GetParam(childPath, az)
			if err != nil {
				continue
			}
			visitParamInfo(fmt.Sprintf("%s/%s", fqoid, field), child, az, recursive, out)
		}
	case wire.TypeStructArray:
		n := p.ArrayLen()
		for i := 0; i < n; i++ {
			childPath, err := oid.Parse(fmt.Sprintf("/%d", i))
			if err != nil {
				continue
			}
			child, err := p.GetParam(childPath, az)
			if err != nil {
				continue
			}
			visitParamInfo(fmt.Sprintf("%s/%d", fqoid, i), child, az, recursive, out)
		}
	}
}

func isArrayDescriptor(pd *model.ParamDescriptor) bool {
	switch pd.Type {
	case wire.TypeInt32Array, wire.TypeFloat32Array, wire.TypeStringArray,
		wire.TypeStructArray, wire.TypeStructVariantArray:
		return true
	default:
		return false
	}
}

// ExecuteCommand implements spec §4.7 ExecuteCommand. When respond is
// false the handler still drives the responder to completion (so the
// command's side effects happen) but discards every result.
func (h *Handlers) ExecuteCommand(slot uint32, oidStr string, v *wire.Value, respond bool, az *authz.Authorizer) (model.CommandResponder, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	p, err := d.GetCommand(oidStr, az)
	if err != nil {
		return nil, err
	}
	if !respond {
		return nil, p.ExecuteFireAndForget(v)
	}
	return p.ExecuteCommand(v)
}

// LanguagePackRequest implements spec §4.7 LanguagePackRequest, §4.5
// getLanguagePack: empty id is INVALID_ARGUMENT, missing id is NOT_FOUND
// with the spec's exact message.
func (h *Handlers) LanguagePackRequest(slot uint32, id string) (wire.LanguagePackWire, error) {
	if id == "" {
		return wire.LanguagePackWire{}, status.Error(codes.InvalidArgument, "language pack id must not be empty")
	}
	d, err := h.device(slot)
	if err != nil {
		return wire.LanguagePackWire{}, err
	}
	lp, ok := d.Languages().Get(id)
	if !ok {
		return wire.LanguagePackWire{}, status.Errorf(codes.NotFound, "Language pack '%s' not found", id)
	}
	return lp.ToWire(), nil
}

// AddLanguage implements spec §4.7 AddLanguage: requires admin:w; empty
// id or name is INVALID_ARGUMENT; overwriting a shipped pack is
// PERMISSION_DENIED (spec §4.5 addLanguage).
func (h *Handlers) AddLanguage(slot uint32, id, name string, words map[string]string, az *authz.Authorizer) error {
	d, err := h.device(slot)
	if err != nil {
		return err
	}
	if !az.WriteAuthz(adminResource{}) {
		return status.Error(codes.PermissionDenied, "AddLanguage requires admin:w")
	}
	if id == "" || name == "" {
		return status.Error(codes.InvalidArgument, "language pack id and name must not be empty")
	}
	return d.AddLanguage(&model.LanguagePack{ID: id, Name: name, Words: words})
}

type adminResource struct{}

func (adminResource) AuthzScope() authz.Scope { return authz.ScopeAdmin }
func (adminResource) AuthzReadOnly() bool     { return false }

// Languages implements spec §4.7 Languages.
func (h *Handlers) Languages(slot uint32) ([]string, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	list := d.Languages().List()
	sort.Strings(list)
	return list, nil
}

// GetPopulatedSlots implements spec §4.7 GetPopulatedSlots.
func (h *Handlers) GetPopulatedSlots() []uint32 {
	slots := h.Devices.PopulatedSlots()
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

// UpdateSubscriptions implements spec §4.7/§5: applies add/remove under
// the subscription manager's own lock, then returns the current
// ParamComponents for every newly-added oid so the caller can stream an
// initialization batch to the client.
func (h *Handlers) UpdateSubscriptions(slot uint32, subs *subscription.Manager, add, remove []string, az *authz.Authorizer) ([]*wire.ParamComponent, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	for _, o := range remove {
		subs.Remove(o)
	}
	for _, o := range add {
		subs.Add(o)
	}
	var out []*wire.ParamComponent
	for _, o := range add {
		if isWildcard(o) {
			continue
		}
		p, err := d.GetParam(o, az)
		if err != nil {
			continue
		}
		v, err := p.GetValue(az)
		if err != nil {
			continue
		}
		out = append(out, &wire.ParamComponent{Oid: o, Descriptor: p.Descriptor().ToWire(), Value: v})
	}
	return out, nil
}

func isWildcard(o string) bool {
	return len(o) >= 2 && o[len(o)-2:] == "/*"
}

// Connect implements spec §4.7/§4.8 Connect.
func (h *Handlers) Connect(slot uint32, subs *subscription.Manager, az *authz.Authorizer, cfg connectdispatch.Config) (*connectdispatch.Dispatcher, error) {
	d, err := h.device(slot)
	if err != nil {
		return nil, err
	}
	return connectdispatch.New(d, subs, az, cfg), nil
}

