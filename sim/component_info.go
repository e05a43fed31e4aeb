package sim

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// ComponentID identifies a ComponentInfo. IDs are never reused within a process.
type ComponentID uint64

// Global ID counter; IDs start at 1 so the zero value means "none".
var lastComponentID uint64

func nextComponentID() ComponentID {
	return ComponentID(atomic.AddUint64(&lastComponentID, 1))
}

// ShareFlags controls what a sub-component may see of its parent.
type ShareFlags uint8

const (
	ShareNone ShareFlags = 0
	// SharePorts lets the sub-component claim the parent's unconfigured ports.
	SharePorts ShareFlags = 1 << 0
	// ShareStats lets the sub-component report statistics through the parent.
	ShareStats ShareFlags = 1 << 1
	// InsertStats makes the parent's enabled statistics apply to the sub-component.
	InsertStats ShareFlags = 1 << 2
)

// AnonymousSlot is the slot name used by anonymous loads that do not name one.
const AnonymousSlot = "ANONYMOUS"

// ComponentInfo is one node of the composition tree.
//
// A node owns its LinkMap, its sub-component nodes and, once built, its
// Component. The parent pointer is lookup-only.
type ComponentInfo struct {
	id     ComponentID
	name   string
	typ    string
	params *Params

	linkMap   *LinkMap
	component Component
	base      *BaseComponent

	parent     *ComponentInfo
	slotName   string
	slotNum    int
	shareFlags ShareFlags
	anonymous  bool

	subComponents []*ComponentInfo // ordered by id
	claims        []portClaim
	destroyed     bool
}

// portClaim is an endpoint this node took over from an ancestor, with the
// endpoint's state before the claim.
type portClaim struct {
	port   string
	holder *ComponentInfo
	link   *Link
	before Link
}

// NewComponentInfo creates a top-level node.
func NewComponentInfo(name, typ string, params *Params) *ComponentInfo {
	if params == nil {
		params = EmptyParams()
	}
	return &ComponentInfo{
		id:     nextComponentID(),
		name:   name,
		typ:    typ,
		params: params,
	}
}

func (ci *ComponentInfo) ID() ComponentID         { return ci.id }
func (ci *ComponentInfo) Name() string            { return ci.name }
func (ci *ComponentInfo) Type() string            { return ci.typ }
func (ci *ComponentInfo) Params() *Params         { return ci.params }
func (ci *ComponentInfo) LinkMap() *LinkMap       { return ci.linkMap }
func (ci *ComponentInfo) Component() Component    { return ci.component }
func (ci *ComponentInfo) Parent() *ComponentInfo  { return ci.parent }
func (ci *ComponentInfo) SlotName() string        { return ci.slotName }
func (ci *ComponentInfo) SlotNum() int            { return ci.slotNum }
func (ci *ComponentInfo) ShareFlags() ShareFlags  { return ci.shareFlags }
func (ci *ComponentInfo) IsAnonymous() bool       { return ci.anonymous }
func (ci *ComponentInfo) IsDestroyed() bool       { return ci.destroyed }
func (ci *ComponentInfo) IsBuilt() bool           { return ci.component != nil }
func (ci *ComponentInfo) SharesPorts() bool       { return ci.shareFlags&SharePorts != 0 }
func (ci *ComponentInfo) SharesStatistics() bool  { return ci.shareFlags&ShareStats != 0 }
func (ci *ComponentInfo) InsertsStatistics() bool { return ci.shareFlags&InsertStats != 0 }
func (ci *ComponentInfo) Base() *BaseComponent    { return ci.base }

// SubComponents returns the owned sub-component nodes ordered by ID.
func (ci *ComponentInfo) SubComponents() []*ComponentInfo {
	out := make([]*ComponentInfo, len(ci.subComponents))
	copy(out, ci.subComponents)
	return out
}

// AddSubComponent declares a sub-component from configuration.
// The node is named "<parent>:<slot>[<index>]".
func (ci *ComponentInfo) AddSubComponent(slot string, index int, typ string, params *Params) *ComponentInfo {
	return ci.addSubComponent(slot, index, typ, params, ShareNone, false)
}

// addAnonymousSubComponent creates a node for a sub-component requested by code.
func (ci *ComponentInfo) addAnonymousSubComponent(slot string, index int, typ string, params *Params, share ShareFlags) *ComponentInfo {
	if slot == "" {
		slot = AnonymousSlot
	}
	return ci.addSubComponent(slot, index, typ, params, share, true)
}

func (ci *ComponentInfo) addSubComponent(slot string, index int, typ string, params *Params, share ShareFlags, anonymous bool) *ComponentInfo {
	if params == nil {
		params = EmptyParams()
	}
	sub := &ComponentInfo{
		id:         nextComponentID(),
		name:       fmt.Sprintf("%s:%s[%d]", ci.name, slot, index),
		typ:        typ,
		params:     params,
		parent:     ci,
		slotName:   slot,
		slotNum:    index,
		shareFlags: share,
		anonymous:  anonymous,
	}
	ci.subComponents = append(ci.subComponents, sub)
	// IDs are monotonic, but keep the invariant explicit for callers that splice.
	sort.Slice(ci.subComponents, func(i, j int) bool {
		return ci.subComponents[i].id < ci.subComponents[j].id
	})
	return sub
}

// removeSubComponent drops a node whose construction failed.
func (ci *ComponentInfo) removeSubComponent(sub *ComponentInfo) {
	for i, s := range ci.subComponents {
		if s == sub {
			ci.subComponents = append(ci.subComponents[:i], ci.subComponents[i+1:]...)
			return
		}
	}
}

// FindSubComponent returns the sub-component declared in slot at index, or nil.
func (ci *ComponentInfo) FindSubComponent(slot string, index int) *ComponentInfo {
	for _, sub := range ci.subComponents {
		if sub.slotName == slot && sub.slotNum == index {
			return sub
		}
	}
	return nil
}

// SubComponentsInSlot returns every sub-component declared in slot.
func (ci *ComponentInfo) SubComponentsInSlot(slot string) []*ComponentInfo {
	var out []*ComponentInfo
	for _, sub := range ci.subComponents {
		if sub.slotName == slot {
			out = append(out, sub)
		}
	}
	return out
}

// FindByID searches this node and its descendants.
func (ci *ComponentInfo) FindByID(id ComponentID) *ComponentInfo {
	if ci.id == id {
		return ci
	}
	for _, sub := range ci.subComponents {
		if found := sub.FindByID(id); found != nil {
			return found
		}
	}
	return nil
}

// TrueInfo walks up to the node that has no parent.
func (ci *ComponentInfo) TrueInfo() *ComponentInfo {
	info := ci
	for info.parent != nil {
		info = info.parent
	}
	return info
}

// Depth is the number of ancestors.
func (ci *ComponentInfo) Depth() int {
	d := 0
	for info := ci.parent; info != nil; info = info.parent {
		d++
	}
	return d
}

// Walk visits the node and its descendants, parents before children.
func (ci *ComponentInfo) Walk(fn func(*ComponentInfo)) {
	fn(ci)
	for _, sub := range ci.subComponents {
		sub.Walk(fn)
	}
}

func (ci *ComponentInfo) ensureLinkMap() *LinkMap {
	if ci.linkMap == nil {
		ci.linkMap = NewLinkMap()
	}
	return ci.linkMap
}

// setComponent attaches the constructed component. It may only happen once.
func (ci *ComponentInfo) setComponent(c Component) error {
	if ci.destroyed {
		return contractErr("ComponentInfo.setComponent", ci.name, ErrDestroyed, "cannot attach to destroyed node")
	}
	if ci.component != nil {
		return contractErr("ComponentInfo.setComponent", ci.name, ErrAlreadyBuilt, "component already attached")
	}
	ci.component = c
	return nil
}

// findInheritedPort is called on the parent of a requesting sub-component.
// An unconfigured endpoint in this node's map is detached and returned together
// with this node; otherwise the search continues upward while sharing allows.
func (ci *ComponentInfo) findInheritedPort(port string) (*Link, *ComponentInfo) {
	if l := ci.linkMap.GetLink(port); l != nil && !l.configured {
		ci.linkMap.RemoveLink(port)
		return l, ci
	}
	if ci.SharesPorts() && ci.parent != nil {
		return ci.parent.findInheritedPort(port)
	}
	return nil, nil
}

// returnClaimedPorts hands every endpoint claimed by ci or its descendants back
// to the node it was taken from, in its unconfigured state. Descendants go first
// so that chained claims unwind in order.
func (ci *ComponentInfo) returnClaimedPorts() {
	for _, sub := range ci.subComponents {
		sub.returnClaimedPorts()
	}
	for i := len(ci.claims) - 1; i >= 0; i-- {
		c := ci.claims[i]
		ci.linkMap.RemoveLink(c.port)
		*c.link = c.before
		// the holder's entry was removed at claim time, so the name is free
		_ = c.holder.ensureLinkMap().InsertLink(c.port, c.link)
	}
	ci.claims = nil
}

// peekInheritedPort is findInheritedPort without detaching.
func (ci *ComponentInfo) peekInheritedPort(port string) *Link {
	if l := ci.linkMap.GetLink(port); l != nil && !l.configured {
		return l
	}
	if ci.SharesPorts() && ci.parent != nil {
		return ci.parent.peekInheritedPort(port)
	}
	return nil
}

// setDefaultTimeBaseForLinks gives tc to every endpoint whose time base is unset,
// and recurses into anonymous sub-components. Declared sub-components set their
// own time bases.
func (ci *ComponentInfo) setDefaultTimeBaseForLinks(tc *TimeConverter) {
	if ci.linkMap != nil {
		for _, name := range ci.linkMap.Names() {
			if l := ci.linkMap.GetLink(name); l.defaultTimeBase == nil {
				l.defaultTimeBase = tc
			}
		}
	}
	for _, sub := range ci.subComponents {
		if sub.anonymous {
			sub.setDefaultTimeBaseForLinks(tc)
		}
	}
}

// destroy tears down the node. The component's Destroy hook runs while every
// sub-component node is still intact; sub-components are torn down afterwards.
func (ci *ComponentInfo) destroy() {
	if ci.destroyed {
		return
	}
	if d, ok := ci.component.(Destroyer); ok {
		d.Destroy()
	}
	for _, sub := range ci.subComponents {
		sub.destroy()
	}
	ci.destroyed = true
	ci.component = nil
	ci.linkMap = nil
	ci.subComponents = nil
}
