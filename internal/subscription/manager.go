// Package subscription implements the per-Connect-stream subscription set:
// explicit oids plus wildcard prefixes, consulted by Device.shouldSendParam
// before a value change is pushed to a client (spec §4.8 UpdateSubscriptions,
// §5 Connect). Grounded on the teacher's dbus_client subscription-path
// matching in sonic_data_client, restyled as a small mutex-guarded set.
package subscription

import (
	"strings"
	"sync"
)

// Manager tracks one client's subscribed oids. A wildcard entry like
// "/temperature/*" matches any oid sharing that prefix; a plain entry
// matches only the exact oid.
type Manager struct {
	mu        sync.RWMutex
	exact     map[string]struct{}
	wildcards []string
}

func New() *Manager {
	return &Manager{exact: map[string]struct{}{}}
}

// Add registers oid, treating a trailing "/*" as a wildcard prefix (spec
// §4.8 UpdateSubscriptions add list).
func (m *Manager) Add(oid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix, ok := wildcardPrefix(oid); ok {
		for _, existing := range m.wildcards {
			if existing == prefix {
				return
			}
		}
		m.wildcards = append(m.wildcards, prefix)
		return
	}
	m.exact[oid] = struct{}{}
}

// Remove unregisters oid (spec §4.8 UpdateSubscriptions remove list).
func (m *Manager) Remove(oid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prefix, ok := wildcardPrefix(oid); ok {
		for i, existing := range m.wildcards {
			if existing == prefix {
				m.wildcards = append(m.wildcards[:i], m.wildcards[i+1:]...)
				return
			}
		}
		return
	}
	delete(m.exact, oid)
}

// IsSubscribed reports whether oid is covered by an explicit entry or a
// wildcard prefix (spec §4.8: "a client receives updates for any oid it
// has explicitly subscribed to, or that falls under a subscribed wildcard
// prefix").
func (m *Manager) IsSubscribed(oid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.exact[oid]; ok {
		return true
	}
	for _, prefix := range m.wildcards {
		if strings.HasPrefix(oid, prefix) {
			return true
		}
	}
	return false
}

// Snapshot returns copies of the current explicit oids and wildcard
// prefixes.
func (m *Manager) Snapshot() (exact []string, wildcards []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for oid := range m.exact {
		exact = append(exact, oid)
	}
	wildcards = append(wildcards, m.wildcards...)
	return
}

func wildcardPrefix(oid string) (string, bool) {
	if strings.HasSuffix(oid, "/*") {
		return strings.TrimSuffix(oid, "*"), true
	}
	return "", false
}
