// Package device implements the Device aggregate: the map of params,
// commands, shared constraints, menu groups and language packs backing one
// slot, guarded by a single mutex, plus the three signals (valueSetByClient,
// valueSetByServer, languageAdded) that drive Connect streaming (spec §4.4,
// §4.5, §4.8, §9). Grounded on the teacher's translib subscribe/notify
// plumbing, restyled as plain Go observer callbacks rather than dbus
// signals.
package device

import (
	"sync"

	"github.com/device-model/server/internal/wire"
)

// ValueChange describes one committed write, delivered to subscribers of
// valueSetByClient/valueSetByServer (spec §4.8).
type ValueChange struct {
	Oid          string
	ElementIndex int32
	Value        *wire.Value
	ByServer     bool // true for valueSetByServer, false for valueSetByClient
}

// LanguageEvent describes a language pack being added or removed (spec
// §4.5 languageAdded).
type LanguageEvent struct {
	Language string
	Pack     wire.LanguagePackWire
	Removed  bool
}

// ValueListener receives ValueChange notifications. Implementations must
// not block: Connect dispatchers register a listener that pushes into
// their own bounded per-stream queue and returns immediately (spec §4.8,
// §5).
type ValueListener func(ValueChange)

// LanguageListener receives LanguageEvent notifications.
type LanguageListener func(LanguageEvent)

// signalBus is a small broadcaster kept separate from Device's main mutex
// so that firing a signal from inside a locked section never risks
// recursing back into the device lock through a listener callback.
type signalBus struct {
	mu        sync.RWMutex
	valueSubs map[int]ValueListener
	langSubs  map[int]LanguageListener
	nextID    int
}

func newSignalBus() *signalBus {
	return &signalBus{valueSubs: map[int]ValueListener{}, langSubs: map[int]LanguageListener{}}
}

// SubscribeValue registers a listener and returns an unsubscribe func.
func (b *signalBus) SubscribeValue(l ValueListener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.valueSubs[id] = l
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.valueSubs, id)
		b.mu.Unlock()
	}
}

// SubscribeLanguage registers a listener and returns an unsubscribe func.
func (b *signalBus) SubscribeLanguage(l LanguageListener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.langSubs[id] = l
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.langSubs, id)
		b.mu.Unlock()
	}
}

func (b *signalBus) fireValue(c ValueChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.valueSubs {
		l(c)
	}
}

func (b *signalBus) fireLanguage(e LanguageEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.langSubs {
		l(e)
	}
}
