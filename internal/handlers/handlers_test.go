package handlers

import (
	"testing"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/device"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/wire"
)

func newTestHandlers() (*Handlers, *device.Device) {
	registry := device.NewRegistry()
	d := device.New(device.Config{Slot: 1, DetailLevel: wire.DetailFull, MultiSetEnabled: true})

	countPD := &model.ParamDescriptor{Oid: "/count", Type: wire.TypeInt32, Scope: authz.ScopeOperate}
	d.AddParam("count", model.NewParam("count", countPD, wire.Int32Value(0)))

	fieldPD := &model.ParamDescriptor{Oid: "name", Type: wire.TypeString, Scope: authz.ScopeOperate}
	structPD := &model.ParamDescriptor{
		Oid: "/info", Type: wire.TypeStruct, Scope: authz.ScopeOperate,
		SubParams: map[string]*model.ParamDescriptor{"name": fieldPD},
	}
	d.AddParam("info", model.NewParam("info", structPD, &wire.Value{Kind: wire.KindStruct, Struct: &wire.StructValue{
		Fields: map[string]*wire.Value{"name": wire.StringValue("unset")},
	}}))

	registry.Put(d)
	return New(registry), d
}

func testAz() *authz.Authorizer { return authz.New([]string{"operate:w", "admin:w"}) }

func TestHandlersGetSetValue(t *testing.T) {
	h, _ := newTestHandlers()
	az := testAz()

	if err := h.SetValue(1, "/count", wire.Int32Value(10), az); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, err := h.GetValue(1, "/count", az)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v.Int32 != 10 {
		t.Fatalf("expected 10, got %d", v.Int32)
	}
}

func TestParamInfoRequestRecursive(t *testing.T) {
	h, _ := newTestHandlers()
	az := testAz()

	infos, err := h.ParamInfoRequest(1, "", true, az)
	if err != nil {
		t.Fatalf("ParamInfoRequest: %v", err)
	}
	var sawField bool
	for _, info := range infos {
		if info.Oid == "/info/name" {
			sawField = true
		}
	}
	if !sawField {
		t.Fatalf("expected recursive visitor to reach /info/name, got %+v", infos)
	}
}

func TestAddLanguageRequiresAdmin(t *testing.T) {
	h, _ := newTestHandlers()
	nonAdmin := authz.New([]string{"operate:w"})
	if err := h.AddLanguage(1, "en", "English", map[string]string{}, nonAdmin); err == nil {
		t.Fatal("expected AddLanguage without admin:w to fail")
	}

	admin := testAz()
	if err := h.AddLanguage(1, "en", "English", map[string]string{"hello": "hi"}, admin); err != nil {
		t.Fatalf("AddLanguage: %v", err)
	}
	langs, err := h.Languages(1)
	if err != nil || len(langs) != 1 || langs[0] != "en" {
		t.Fatalf("expected [en], got %v, err=%v", langs, err)
	}
}

func TestGetPopulatedSlots(t *testing.T) {
	h, _ := newTestHandlers()
	slots := h.GetPopulatedSlots()
	if len(slots) != 1 || slots[0] != 1 {
		t.Fatalf("expected [1], got %v", slots)
	}
}
