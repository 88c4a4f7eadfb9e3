package diamond

import (
	"sort"

	"github.com/roach88/diamond/internal/ir"
)

// StorageNamespace partitions the core's state from every facet's own
// storage.
var StorageNamespace = ir.Namespace("diamond.standard.diamond.storage")

// Slots is a key-value partition. Absent keys load as nil and storing an
// empty value deletes the key. *engine.Storage implements it; MemorySlots
// backs offline replays.
type Slots interface {
	Load(key []byte) ([]byte, error)
	Store(key, value []byte) error
	Clear(key []byte) error
}

// MemorySlots is an in-memory Slots.
type MemorySlots map[string][]byte

// Load implements Slots.
func (m MemorySlots) Load(key []byte) ([]byte, error) {
	v, ok := m[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Store implements Slots.
func (m MemorySlots) Store(key, value []byte) error {
	if len(value) == 0 {
		delete(m, string(key))
		return nil
	}
	m[string(key)] = append([]byte(nil), value...)
	return nil
}

// Clear implements Slots.
func (m MemorySlots) Clear(key []byte) error {
	delete(m, string(key))
	return nil
}

// Keys returns every key in byte order.
func (m MemorySlots) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
