package device

import (
	"testing"

	"github.com/device-model/server/internal/authz"
	"github.com/device-model/server/internal/model"
	"github.com/device-model/server/internal/wire"
)

func newTestDevice(multiSet bool) *Device {
	d := New(Config{Slot: 1, DetailLevel: wire.DetailFull, MultiSetEnabled: multiSet})
	intPD := &model.ParamDescriptor{Oid: "/count", Type: wire.TypeInt32, Scope: authz.ScopeOperate}
	d.AddParam("count", model.NewParam("count", intPD, wire.Int32Value(0)))

	arrPD := &model.ParamDescriptor{Oid: "/tags", Type: wire.TypeStringArray, Scope: authz.ScopeOperate, MaxLength: 2}
	d.AddParam("tags", model.NewParam("tags", arrPD, &wire.Value{Kind: wire.KindStringArray}))

	roPD := &model.ParamDescriptor{Oid: "/ro", Type: wire.TypeInt32, Scope: authz.ScopeMonitor, ReadOnly: true}
	d.AddParam("ro", model.NewParam("ro", roPD, wire.Int32Value(7)))
	return d
}

// adminAz grants write, and so read, on every scope the test device uses:
// permissions are per scope, so "admin:w" alone does not cover the
// operate- and monitor-scoped params.
func adminAz() *authz.Authorizer {
	return authz.New([]string{"admin:w", "operate:w", "monitor:w"})
}

func TestGetSetValue(t *testing.T) {
	d := newTestDevice(false)
	az := adminAz()

	v, err := d.GetValue("/count", az)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if v.Int32 != 0 {
		t.Fatalf("expected 0, got %d", v.Int32)
	}

	if err := d.SetValue("/count", wire.Int32Value(5), az, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, _ = d.GetValue("/count", az)
	if v.Int32 != 5 {
		t.Fatalf("expected 5 after set, got %d", v.Int32)
	}
}

func TestSetValueRejectsReadOnly(t *testing.T) {
	d := newTestDevice(false)
	az := adminAz()
	if err := d.SetValue("/ro", wire.Int32Value(1), az, false); err == nil {
		t.Fatal("expected write to read-only param to fail")
	}
}

func TestAppendRespectsMaxLength(t *testing.T) {
	d := newTestDevice(false)
	az := adminAz()
	if err := d.SetValue("/tags/-", wire.StringValue("a"), az, true); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := d.SetValue("/tags/-", wire.StringValue("b"), az, true); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if err := d.SetValue("/tags/-", wire.StringValue("c"), az, true); err == nil {
		t.Fatal("expected third append to exceed max_length")
	}
	v, _ := d.GetValue("/tags", az)
	if len(v.StringArray) != 2 {
		t.Fatalf("expected rollback to leave 2 elements, got %d", len(v.StringArray))
	}
}

func TestMultiSetValueDisabledRejectsMultipleEntries(t *testing.T) {
	d := newTestDevice(false)
	az := adminAz()
	_, err := d.TryMultiSetValue([]wire.SetValuePayload{
		{Oid: "/count", Value: wire.Int32Value(1)},
		{Oid: "/tags/-", Value: wire.StringValue("x")},
	}, az)
	if err == nil {
		t.Fatal("expected a >1-entry batch to fail when multi-set is disabled")
	}
}

// A single-entry batch must still validate when multi-set is disabled:
// setValue is defined as commitMultiSetValue of a one-element payload and
// must share its semantics regardless of the multi_set_enabled flag
// (spec §4.4).
func TestMultiSetValueSingleEntryWorksWhenDisabled(t *testing.T) {
	d := newTestDevice(false)
	az := adminAz()
	_, err := d.TryMultiSetValue([]wire.SetValuePayload{{Oid: "/count", Value: wire.Int32Value(1)}}, az)
	if err != nil {
		t.Fatalf("expected single-entry MultiSetValue to succeed when disabled: %v", err)
	}
}

func TestMultiSetValueRejectsOverlap(t *testing.T) {
	d := newTestDevice(true)
	az := adminAz()
	_, err := d.TryMultiSetValue([]wire.SetValuePayload{
		{Oid: "/count", Value: wire.Int32Value(1)},
		{Oid: "/count", Value: wire.Int32Value(2)},
	}, az)
	if err == nil {
		t.Fatal("expected overlapping oids in one request to be rejected")
	}
}

func TestMultiSetValueAllOrNothing(t *testing.T) {
	d := newTestDevice(true)
	az := adminAz()
	entries := []wire.SetValuePayload{
		{Oid: "/count", Value: wire.Int32Value(9)},
		{Oid: "/ro", Value: wire.Int32Value(1)},
	}
	_, err := d.TryMultiSetValue(entries, az)
	if err == nil {
		t.Fatal("expected validation to fail on read-only leg")
	}
	v, _ := d.GetValue("/count", az)
	if v.Int32 != 0 {
		t.Fatalf("expected /count untouched after failed validation, got %d", v.Int32)
	}
}

func TestMultiSetValueCommits(t *testing.T) {
	d := newTestDevice(true)
	az := adminAz()
	entries := []wire.SetValuePayload{{Oid: "/count", Value: wire.Int32Value(3)}}
	validated, err := d.TryMultiSetValue(entries, az)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	oids := make([]string, len(entries))
	for i, e := range entries {
		oids[i] = e.Oid
	}
	if err := d.CommitMultiSetValue(validated, oids, az); err != nil {
		t.Fatalf("commit: %v", err)
	}
	v, _ := d.GetValue("/count", az)
	if v.Int32 != 3 {
		t.Fatalf("expected commit to apply, got %d", v.Int32)
	}
}

func TestLanguageAddFiresOnlyOnNewID(t *testing.T) {
	d := newTestDevice(false)
	var fired int
	d.SubscribeLanguage(func(e LanguageEvent) { fired++ })
	d.AddLanguage(&model.LanguagePack{ID: "en", Name: "English"})
	d.AddLanguage(&model.LanguagePack{ID: "en", Name: "English (updated)"})
	if fired != 1 {
		t.Fatalf("expected languageAdded to fire once for a new id, fired %d times", fired)
	}
}

// TestShippedLanguagePackCannotBeOverwrittenOrDeleted exercises spec §8
// scenario 5: shipped {en, fr}, AddLanguage("es") succeeds, Languages()
// lists all three, and re-adding "en" fails with the exact spec message.
func TestShippedLanguagePackCannotBeOverwrittenOrDeleted(t *testing.T) {
	d := newTestDevice(false)
	d.SeedLanguage(&model.LanguagePack{ID: "en", Name: "English"})
	d.SeedLanguage(&model.LanguagePack{ID: "fr", Name: "French"})

	if err := d.AddLanguage(&model.LanguagePack{ID: "es", Name: "Spanish"}); err != nil {
		t.Fatalf("AddLanguage(es): %v", err)
	}
	got := d.Languages().List()
	want := map[string]bool{"en": true, "fr": true, "es": true}
	if len(got) != len(want) {
		t.Fatalf("expected 3 languages, got %v", got)
	}
	for _, id := range got {
		if !want[id] {
			t.Fatalf("unexpected language id %q in %v", id, got)
		}
	}

	err := d.AddLanguage(&model.LanguagePack{ID: "en", Name: "English 2"})
	if err == nil || err.Error() != "rpc error: code = PermissionDenied desc = Cannot overwrite language pack shipped with device" {
		t.Fatalf("expected shipped-overwrite PermissionDenied, got %v", err)
	}

	if err := d.RemoveLanguage("fr"); err == nil || err.Error() != "rpc error: code = PermissionDenied desc = Cannot delete language pack shipped with device" {
		t.Fatalf("expected shipped-delete PermissionDenied, got %v", err)
	}

	if err := d.RemoveLanguage("es"); err != nil {
		t.Fatalf("RemoveLanguage(es): %v", err)
	}
	if err := d.RemoveLanguage("es"); err == nil {
		t.Fatal("expected NOT_FOUND removing an already-removed id")
	}
}
