package model

import (
	"errors"
	"sync"

	"github.com/device-model/server/internal/wire"
)

// errShippedOverwrite/errShippedDelete are the spec §4.5 exact-message
// failures for mutating a device-description-shipped language pack;
// callers map these to PERMISSION_DENIED with the spec's literal text.
var (
	errShippedOverwrite = errors.New("Cannot overwrite language pack shipped with device")
	errShippedDelete    = errors.New("Cannot delete language pack shipped with device")
)

// LanguagePack binds a two-letter-ish language id to a word table used to
// localize param/command display names (spec §4.5 AddLanguage,
// LanguagePackRequest, Languages).
type LanguagePack struct {
	ID    string
	Name  string
	Words map[string]string
}

func (lp *LanguagePack) ToWire() wire.LanguagePackWire {
	return wire.LanguagePackWire{Name: lp.Name, Words: lp.Words}
}

// LanguagePackRegistry holds the set of language packs a Device knows
// about, under its own lock so it can be mutated independently of the
// param/value lock (spec §4.5: AddLanguage does not need the device-wide
// mutex held for the whole call). shipped tracks which ids were seeded
// from the device description at load time (spec §3 I2/I3: a language id
// is in added_packs iff it is deletable; shipped packs never appear
// there) — shipped is the complement of "deletable" here, checked
// directly rather than maintaining a second set.
type LanguagePackRegistry struct {
	mu      sync.RWMutex
	packs   map[string]*LanguagePack
	shipped map[string]bool
}

func NewLanguagePackRegistry() *LanguagePackRegistry {
	return &LanguagePackRegistry{packs: map[string]*LanguagePack{}, shipped: map[string]bool{}}
}

// SeedShipped installs a language pack present in the device description
// itself (spec §3: "shipped + added" packs). Shipped packs can never be
// overwritten or deleted via AddLanguage/RemoveLanguage (spec §4.5).
func (r *LanguagePackRegistry) SeedShipped(lp *LanguagePack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs[lp.ID] = lp
	r.shipped[lp.ID] = true
}

// IsShipped reports whether id was seeded from the device description
// rather than added later via AddLanguage.
func (r *LanguagePackRegistry) IsShipped(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.shipped[id]
}

// Add installs or replaces a non-shipped language pack, returning true if
// this is a new language id (spec §4.5: AddLanguage triggers a
// languageAdded signal only for genuinely new ids, but always updates
// stored words) and an error if id names a shipped pack.
func (r *LanguagePackRegistry) Add(lp *LanguagePack) (isNew bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shipped[lp.ID] {
		return false, errShippedOverwrite
	}
	_, exists := r.packs[lp.ID]
	r.packs[lp.ID] = lp
	return !exists, nil
}

// Remove deletes a non-shipped language pack, reporting whether it
// existed, and an error if id names a shipped pack.
func (r *LanguagePackRegistry) Remove(id string) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shipped[id] {
		return false, errShippedDelete
	}
	if _, ok := r.packs[id]; !ok {
		return false, nil
	}
	delete(r.packs, id)
	return true, nil
}

func (r *LanguagePackRegistry) Get(id string) (*LanguagePack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lp, ok := r.packs[id]
	return lp, ok
}

// List returns every known language id, sorted is left to the caller.
func (r *LanguagePackRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.packs))
	for id := range r.packs {
		out = append(out, id)
	}
	return out
}

// Each calls fn for every registered pack, holding the read lock for the
// duration (used by DeviceSerializer to stream language packs without a
// separate snapshot copy).
func (r *LanguagePackRegistry) Each(fn func(*LanguagePack)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lp := range r.packs {
		fn(lp)
	}
}
