package archetype

import (
	"fmt"
	"iter"
)

// NodeKind tags the shape of a node.
type NodeKind uint8

const (
	NodeObject NodeKind = iota
	NodeList
	NodeMap
)

func (k NodeKind) String() string {
	switch k {
	case NodeObject:
		return "object"
	case NodeList:
		return "list"
	case NodeMap:
		return "map"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

func nodeKindFor(t Type) (NodeKind, bool) {
	switch t.Kind {
	case KindObject:
		return NodeObject, true
	case KindList:
		return NodeList, true
	case KindMap:
		return NodeMap, true
	}
	return 0, false
}

// Node is one object, list or map of an asset. Objects hold member slots in
// declaration order, lists hold ordered item slots and maps hold item slots
// in insertion order. Nodes are created and mutated through their
// NodeContainer.
type Node struct {
	container *NodeContainer
	id        Identity
	kind      NodeKind
	typ       Type
	parent    *Slot
	root      bool
	released  bool
	pointer   any

	slots   []*Slot
	members map[string]*Slot
	items   map[ItemID]*Slot
	keys    map[any]*Slot
}

func newNode(c *NodeContainer, id Identity, kind NodeKind, typ Type) *Node {
	n := &Node{container: c, id: id, kind: kind, typ: typ}
	if kind == NodeObject {
		n.members = map[string]*Slot{}
	} else {
		n.items = map[ItemID]*Slot{}
	}
	if kind == NodeMap {
		n.keys = map[any]*Slot{}
	}
	return n
}

// ID returns the node identity.
func (n *Node) ID() Identity { return n.id }

// Kind returns the node shape.
func (n *Node) Kind() NodeKind { return n.kind }

// Type returns the node type.
func (n *Node) Type() Type { return n.typ }

// Container returns the owning container.
func (n *Node) Container() *NodeContainer { return n.container }

// Parent returns the slot owning n, nil for roots and detached nodes.
func (n *Node) Parent() *Slot { return n.parent }

// IsRoot reports whether n is the root of a graph.
func (n *Node) IsRoot() bool { return n.root }

// Released reports whether n was released from its container.
func (n *Node) Released() bool { return n.released }

// Len returns the number of members or items.
func (n *Node) Len() int { return len(n.slots) }

// Member returns the member slot named name.
func (n *Node) Member(name string) (*Slot, bool) {
	slot, ok := n.members[name]
	return slot, ok
}

// Item returns the list or map item at position i.
func (n *Node) Item(i int) (*Slot, bool) {
	if n.kind == NodeObject || i < 0 || i >= len(n.slots) {
		return nil, false
	}
	return n.slots[i], true
}

// ItemByID returns the item with id.
func (n *Node) ItemByID(id ItemID) (*Slot, bool) {
	slot, ok := n.items[id]
	return slot, ok
}

// ItemByKey returns the map item stored under key.
func (n *Node) ItemByKey(key any) (*Slot, bool) {
	if n.keys == nil {
		return nil, false
	}
	key, err := coerceKey(n.typ, key)
	if err != nil {
		return nil, false
	}
	slot, ok := n.keys[key]
	return slot, ok
}

// Children enumerates the member or item slots in order together with their
// natural selector (Name, Seq or Key).
func (n *Node) Children() iter.Seq2[Selector, *Slot] {
	return func(yield func(Selector, *Slot) bool) {
		for i, slot := range n.slots {
			if !yield(slot.selectorAt(i), slot) {
				return
			}
		}
	}
}

// Lookup resolves sel against n.
func (n *Node) Lookup(sel Selector) (*Slot, error) {
	if n == nil || n.released {
		return nil, ErrDetached
	}
	switch s := sel.(type) {
	case Name:
		if n.kind != NodeObject {
			return nil, fmt.Errorf("%w: member %q on %s node", ErrInvalidIndex, string(s), n.kind)
		}
		slot, ok := n.members[string(s)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown member %q of %s", ErrInvalidIndex, string(s), n.typ)
		}
		return slot, nil
	case Index:
		if err := s.validate(); err != nil {
			return nil, err
		}
		if s.IsSeq() {
			if n.kind != NodeList {
				return nil, fmt.Errorf("%w: position %s on %s node", ErrInvalidIndex, s, n.kind)
			}
			if s.seq >= len(n.slots) {
				return nil, fmt.Errorf("%w: position %d out of range [0,%d)", ErrInvalidIndex, s.seq, len(n.slots))
			}
			return n.slots[s.seq], nil
		}
		if n.kind != NodeMap {
			return nil, fmt.Errorf("%w: key %s on %s node", ErrInvalidIndex, s, n.kind)
		}
		key, err := coerceKey(n.typ, s.key)
		if err != nil {
			return nil, err
		}
		slot, ok := n.keys[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown key %s", ErrInvalidIndex, s)
		}
		return slot, nil
	case itemSelector:
		if n.kind == NodeObject {
			return nil, fmt.Errorf("%w: item %s on object node", ErrInvalidIndex, s)
		}
		slot, ok := n.items[s.id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown item %s", ErrInvalidIndex, s.id)
		}
		return slot, nil
	case nil:
		return nil, fmt.Errorf("%w: nil selector", ErrInvalidIndex)
	default:
		return nil, fmt.Errorf("%w: unsupported selector %T", ErrInvalidIndex, sel)
	}
}

func (n *Node) position(slot *Slot) int {
	for i, candidate := range n.slots {
		if candidate == slot {
			return i
		}
	}
	return -1
}

func (n *Node) addSlot(pos int, slot *Slot) {
	slot.owner = n
	if pos < 0 || pos >= len(n.slots) {
		n.slots = append(n.slots, slot)
	} else {
		n.slots = append(n.slots, nil)
		copy(n.slots[pos+1:], n.slots[pos:])
		n.slots[pos] = slot
	}
	switch n.kind {
	case NodeObject:
		n.members[slot.name] = slot
	case NodeMap:
		n.keys[slot.key] = slot
		n.items[slot.item] = slot
	default:
		n.items[slot.item] = slot
	}
}

func (n *Node) dropSlot(slot *Slot) {
	pos := n.position(slot)
	if pos < 0 {
		return
	}
	n.slots = append(n.slots[:pos], n.slots[pos+1:]...)
	delete(n.items, slot.item)
	if n.keys != nil {
		delete(n.keys, slot.key)
	}
}

// Slot is one member or item of a node. The declared type never changes.
// A slot holds a scalar, an owned child node, a referenced node or nothing.
type Slot struct {
	owner          *Node
	name           string
	item           ItemID
	key            any
	decl           Type
	scalar         any
	child          *Node
	ref            bool
	nonOverridable bool
}

// Owner returns the node holding the slot.
func (s *Slot) Owner() *Node { return s.owner }

// Name returns the member name, empty for items.
func (s *Slot) Name() string { return s.name }

// ItemID returns the item id, zero for members.
func (s *Slot) ItemID() ItemID { return s.item }

// Key returns the map key of a map item.
func (s *Slot) Key() any { return s.key }

// IsItem reports whether s is a collection item.
func (s *Slot) IsItem() bool { return s.name == "" }

// Type returns the declared type.
func (s *Slot) Type() Type { return s.decl }

// IsReference reports whether s references a node it does not own.
func (s *Slot) IsReference() bool { return s.ref }

// NonOverridable reports whether s always follows its base.
func (s *Slot) NonOverridable() bool { return s.nonOverridable }

// Node returns the owned or referenced node, nil for scalars.
func (s *Slot) Node() *Node { return s.child }

// Value returns the scalar, the *Node or nil.
func (s *Slot) Value() any {
	if s.child != nil {
		return s.child
	}
	return s.scalar
}

// Selector returns the natural selector of s inside its owner.
func (s *Slot) Selector() Selector {
	if s.owner == nil {
		return Name(s.name)
	}
	return s.selectorAt(s.owner.position(s))
}

func (s *Slot) selectorAt(pos int) Selector {
	if !s.IsItem() {
		return Name(s.name)
	}
	if s.owner != nil && s.owner.kind == NodeMap {
		return Key(s.key)
	}
	return Seq(pos)
}

func (s *Slot) owns() bool {
	return s.child != nil && !s.ref
}

func (s *Slot) String() string {
	if !s.IsItem() {
		return s.name
	}
	return "[#" + s.item.String() + "]"
}
