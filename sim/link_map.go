package sim

import "sort"

// LinkMap is a component's table of ports. Each port name maps to at most one
// endpoint. A nil *LinkMap is a valid empty map for lookups.
type LinkMap struct {
	links     map[string]*Link
	selfPorts map[string]bool
}

// NewLinkMap creates an empty LinkMap.
func NewLinkMap() *LinkMap {
	return &LinkMap{
		links:     make(map[string]*Link),
		selfPorts: make(map[string]bool),
	}
}

// InsertLink binds l to port name.
func (m *LinkMap) InsertLink(name string, l *Link) error {
	if _, exists := m.links[name]; exists {
		return configErr("LinkMap.InsertLink", "", ErrDuplicatePort, "port %q already bound", name)
	}
	m.links[name] = l
	return nil
}

// GetLink returns the endpoint bound to name, or nil.
func (m *LinkMap) GetLink(name string) *Link {
	if m == nil {
		return nil
	}
	return m.links[name]
}

// RemoveLink detaches and returns the endpoint bound to name, or nil.
func (m *LinkMap) RemoveLink(name string) *Link {
	if m == nil {
		return nil
	}
	l, ok := m.links[name]
	if !ok {
		return nil
	}
	delete(m.links, name)
	delete(m.selfPorts, name)
	return l
}

// AddSelfPort marks name as a loopback port.
func (m *LinkMap) AddSelfPort(name string) {
	m.selfPorts[name] = true
}

// IsSelfPort reports whether name is a loopback port.
func (m *LinkMap) IsSelfPort(name string) bool {
	if m == nil {
		return false
	}
	return m.selfPorts[name]
}

// Len returns the number of bound ports.
func (m *LinkMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.links)
}

// Names returns the bound port names in sorted order.
func (m *LinkMap) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.links))
	for name := range m.links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
