package sim

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SharedRegion is a named block of bytes handed out by a SharedRegionManager.
// The kernel never interprets its contents.
type SharedRegion interface {
	Key() string
	Size() int
	// Bytes returns a copy of the current contents.
	Bytes() []byte
	Write(offset int, p []byte) error
	// Publish makes the region read-only.
	Publish()
	IsPublished() bool
}

// SharedRegionMerger combines another replica's copy of a global region into the
// local one.
type SharedRegionMerger interface {
	Merge(target, other []byte)
}

// MergerFunc adapts a function to SharedRegionMerger.
type MergerFunc func(target, other []byte)

// Merge implements SharedRegionMerger.
func (f MergerFunc) Merge(target, other []byte) { f(target, other) }

// SharedRegionManager hands out named blocks. The same key returns the same block
// for the lifetime of the manager.
type SharedRegionManager interface {
	LocalRegion(key string, size int) (SharedRegion, error)
	GlobalRegion(key string, size int, merger SharedRegionMerger) (SharedRegion, error)
}

type memoryRegion struct {
	mu        sync.RWMutex
	key       string
	data      []byte
	merger    SharedRegionMerger
	published bool
}

func (r *memoryRegion) Key() string { return r.key }
func (r *memoryRegion) Size() int   { return len(r.data) }

func (r *memoryRegion) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out
}

func (r *memoryRegion) Write(offset int, p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.published {
		return contractErr("SharedRegion.Write", "", ErrRegionPublished, "region %q", r.key)
	}
	if offset < 0 || offset+len(p) > len(r.data) {
		return contractErr("SharedRegion.Write", "", ErrRegionMismatch,
			"write [%d,%d) outside region %q of size %d", offset, offset+len(p), r.key, len(r.data))
	}
	copy(r.data[offset:], p)
	return nil
}

func (r *memoryRegion) Publish() {
	r.mu.Lock()
	r.published = true
	r.mu.Unlock()
}

func (r *memoryRegion) IsPublished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.published
}

// MemoryRegionManager keeps regions in process memory. Local and global regions
// live in separate name spaces. Safe for concurrent use by several partitions.
type MemoryRegionManager struct {
	mu     sync.Mutex
	id     uuid.UUID
	local  map[string]*memoryRegion
	global map[string]*memoryRegion
}

// NewMemoryRegionManager creates an empty manager.
func NewMemoryRegionManager() *MemoryRegionManager {
	return &MemoryRegionManager{
		id:     uuid.New(),
		local:  make(map[string]*memoryRegion),
		global: make(map[string]*memoryRegion),
	}
}

// ID identifies this manager replica.
func (m *MemoryRegionManager) ID() uuid.UUID { return m.id }

// LocalRegion returns the block for key, creating it zeroed on first use.
func (m *MemoryRegionManager) LocalRegion(key string, size int) (SharedRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquire(m.local, key, size, nil)
}

// GlobalRegion returns the block for key. The merger of the first request wins.
// A nil merger means Merge overwrites with the other replica's bytes.
func (m *MemoryRegionManager) GlobalRegion(key string, size int, merger SharedRegionMerger) (SharedRegion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquire(m.global, key, size, merger)
}

func (m *MemoryRegionManager) acquire(regions map[string]*memoryRegion, key string, size int, merger SharedRegionMerger) (SharedRegion, error) {
	if size <= 0 {
		return nil, configErr("SharedRegionManager", "", ErrRegionMismatch, "region %q: size %d", key, size)
	}
	if r, ok := regions[key]; ok {
		if len(r.data) != size {
			return nil, configErr("SharedRegionManager", "", ErrRegionMismatch,
				"region %q already exists with size %d, requested %d", key, len(r.data), size)
		}
		return r, nil
	}
	r := &memoryRegion{key: key, data: make([]byte, size), merger: merger}
	regions[key] = r
	return r, nil
}

// GlobalKeys returns the global region keys in sorted order.
func (m *MemoryRegionManager) GlobalKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.global))
	for k := range m.global {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge folds other's global regions into this manager's regions of the same
// key. Keys present on only one side are left alone.
func (m *MemoryRegionManager) Merge(other *MemoryRegionManager) error {
	if other == nil || other == m {
		return nil
	}
	snapshot := make(map[string][]byte)
	other.mu.Lock()
	for k, r := range other.global {
		snapshot[k] = r.Bytes()
	}
	other.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, theirs := range snapshot {
		r, ok := m.global[k]
		if !ok {
			continue
		}
		if len(theirs) != len(r.data) {
			return configErr("MemoryRegionManager.Merge", "", ErrRegionMismatch,
				"region %q: size %d vs %d", k, len(r.data), len(theirs))
		}
		r.mu.Lock()
		if r.merger == nil {
			copy(r.data, theirs)
		} else {
			r.merger.Merge(r.data, theirs)
		}
		r.mu.Unlock()
	}
	return nil
}
