package device

import "sync"

// Registry maps slot numbers to the Device occupying them. A slot with no
// Device registered is "unpopulated" (spec §4.7 GetPopulatedSlots).
type Registry struct {
	mu     sync.RWMutex
	bySlot map[uint32]*Device
}

func NewRegistry() *Registry {
	return &Registry{bySlot: map[uint32]*Device{}}
}

func (r *Registry) Put(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySlot[d.Slot()] = d
}

func (r *Registry) Remove(slot uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySlot, slot)
}

func (r *Registry) Get(slot uint32) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.bySlot[slot]
	return d, ok
}

// PopulatedSlots returns every slot number with a Device registered,
// unordered (spec §4.7 GetPopulatedSlots).
func (r *Registry) PopulatedSlots() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint32, 0, len(r.bySlot))
	for slot := range r.bySlot {
		out = append(out, slot)
	}
	return out
}
