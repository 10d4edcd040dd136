package archetype

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// NodeContainer owns the nodes of one asset. It maps identities to nodes so
// wrapping the same logical value twice returns the same node, and it is the
// only place where slots are mutated. Every mutation validates first, builds
// new subtrees detached and swaps them in, so a failed mutation leaves the
// tree untouched.
type NodeContainer struct {
	describer Describer

	nodes     map[Identity]*Node
	pointers  map[any]*Node
	referrers map[*Node]map[*Slot]struct{}
	epoch     uint64
	fromBase  bool

	nextObserver int
	observers    []containerObserver
	releases     []releaseObserver
}

type containerObserver struct {
	id int
	fn func(ChangeEvent)
}

type releaseObserver struct {
	id int
	fn func(*Node)
}

// NewNodeContainer constructs an empty container. Only WithDescriber is
// relevant to containers.
func NewNodeContainer(opts ...Option) *NodeContainer {
	cfg := applyOptions(opts)
	describer := cfg.describer
	if describer == nil {
		describer = ReflectDescriber{}
	}
	return &NodeContainer{
		describer: describer,
		nodes:     map[Identity]*Node{},
		pointers:  map[any]*Node{},
		referrers: map[*Node]map[*Slot]struct{}{},
	}
}

// Epoch increments on every structural edit: a child node replaced, an item
// inserted, removed, moved or re-keyed.
func (c *NodeContainer) Epoch() uint64 { return c.epoch }

// Len returns the number of live nodes.
func (c *NodeContainer) Len() int { return len(c.nodes) }

// Node returns the live node with id.
func (c *NodeContainer) Node(id Identity) (*Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

// GetOrCreateNode returns the node already wrapping value, or builds one
// recursively through the container's Describer.
func (c *NodeContainer) GetOrCreateNode(value any) (*Node, error) {
	if n, ok := c.existing(value); ok {
		return n, nil
	}
	b := c.newBuilder()
	n, err := b.build(value, AnyType)
	if err == nil {
		err = b.resolveRefs()
	}
	if err != nil {
		b.discard()
		return nil, err
	}
	b.commit()
	return n, nil
}

// Clone deep-copies n as a detached subtree. Object nodes get fresh
// identities, items keep their item ids, and references that point inside
// the subtree are remapped to the copies.
func (c *NodeContainer) Clone(n *Node) (*Node, error) {
	if n == nil || n.released {
		return nil, ErrDetached
	}
	b := c.newBuilder()
	clone, err := b.clone(n)
	if err == nil {
		err = b.resolveRefs()
	}
	if err != nil {
		b.discard()
		return nil, err
	}
	b.commit()
	return clone, nil
}

// Set replaces the value held by the slot sel of node.
func (c *NodeContainer) Set(node *Node, sel Selector, value any) error {
	slot, err := c.lookup(node, sel)
	if err != nil {
		return err
	}
	return c.setSlot(slot, value)
}

// Insert adds value to a list at position idx (0..Len) or to a map under a
// new key. The item receives a fresh item id.
func (c *NodeContainer) Insert(node *Node, idx Index, value any) (*Slot, error) {
	if err := c.attached(node); err != nil {
		return nil, err
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}
	switch node.kind {
	case NodeList:
		if !idx.IsSeq() {
			return nil, fmt.Errorf("%w: key %s on list node", ErrInvalidIndex, idx)
		}
		if idx.seq > len(node.slots) {
			return nil, fmt.Errorf("%w: position %d out of range [0,%d]", ErrInvalidIndex, idx.seq, len(node.slots))
		}
		return c.insertItem(node, idx.seq, NewItemID(), nil, value)
	case NodeMap:
		if !idx.IsKey() {
			return nil, fmt.Errorf("%w: position %s on map node", ErrInvalidIndex, idx)
		}
		return c.insertItem(node, -1, NewItemID(), idx.key, value)
	default:
		return nil, fmt.Errorf("%w: insert into object node", ErrInvalidIndex)
	}
}

// Remove deletes the item sel of a list or map.
func (c *NodeContainer) Remove(node *Node, sel Selector) error {
	slot, err := c.lookup(node, sel)
	if err != nil {
		return err
	}
	if !slot.IsItem() {
		return fmt.Errorf("%w: cannot remove member %q", ErrInvalidIndex, slot.name)
	}
	c.removeSlot(slot)
	return nil
}

// Move reorders a list item from position from to position to.
func (c *NodeContainer) Move(node *Node, from, to int) error {
	if err := c.attached(node); err != nil {
		return err
	}
	if node.kind != NodeList {
		return fmt.Errorf("%w: move on %s node", ErrInvalidIndex, node.kind)
	}
	if from < 0 || from >= len(node.slots) || to < 0 || to >= len(node.slots) {
		return fmt.Errorf("%w: move %d to %d out of range [0,%d)", ErrInvalidIndex, from, to, len(node.slots))
	}
	if from == to {
		return nil
	}
	slot := node.slots[from]
	node.slots = append(node.slots[:from], node.slots[from+1:]...)
	node.slots = append(node.slots, nil)
	copy(node.slots[to+1:], node.slots[to:])
	node.slots[to] = slot
	c.epoch++
	c.notify(ChangeEvent{Type: ItemMoved, Node: node, Selector: Seq(to), Slot: slot, Old: int64(from), New: int64(to)})
	return nil
}

// Observe registers fn for every committed mutation and returns a function
// that removes it.
func (c *NodeContainer) Observe(fn func(ChangeEvent)) func() {
	c.nextObserver++
	id := c.nextObserver
	c.observers = append(c.observers, containerObserver{id: id, fn: fn})
	return func() {
		for i, observer := range c.observers {
			if observer.id == id {
				c.observers = append(c.observers[:i], c.observers[i+1:]...)
				return
			}
		}
	}
}

// OnRelease registers fn for every released node.
func (c *NodeContainer) OnRelease(fn func(*Node)) func() {
	c.nextObserver++
	id := c.nextObserver
	c.releases = append(c.releases, releaseObserver{id: id, fn: fn})
	return func() {
		for i, observer := range c.releases {
			if observer.id == id {
				c.releases = append(c.releases[:i], c.releases[i+1:]...)
				return
			}
		}
	}
}

// Release drops n and its owned subtree from the container.
func (c *NodeContainer) Release(n *Node) {
	if n == nil || n.released || n.container != c {
		return
	}
	if n.parent != nil {
		n.parent.child = nil
		n.parent = nil
		c.epoch++
	}
	c.clearDangling(c.release(n))
}

func (c *NodeContainer) notify(event ChangeEvent) {
	event.FromBase = c.fromBase
	for _, observer := range append([]containerObserver(nil), c.observers...) {
		observer.fn(event)
	}
}

func (c *NodeContainer) attached(node *Node) error {
	if node == nil || node.released {
		return ErrDetached
	}
	if node.container != c {
		return fmt.Errorf("%w: node %s belongs to another container", ErrDetached, node.id)
	}
	return nil
}

func (c *NodeContainer) lookup(node *Node, sel Selector) (*Slot, error) {
	if err := c.attached(node); err != nil {
		return nil, err
	}
	return node.Lookup(sel)
}

func (c *NodeContainer) existing(value any) (*Node, bool) {
	switch typed := value.(type) {
	case *Node:
		if typed != nil && typed.container == c && !typed.released {
			return typed, true
		}
		return nil, false
	case Identity:
		n, ok := c.nodes[typed]
		return n, ok
	case Description:
		if !typed.ID.IsZero() {
			n, ok := c.nodes[typed.ID]
			return n, ok
		}
		return nil, false
	case Identifiable:
		if n, ok := c.nodes[typed.AssetIdentity()]; ok {
			return n, true
		}
	}
	if key, ok := pointerKey(value); ok {
		n, ok := c.pointers[key]
		return n, ok
	}
	return nil, false
}

func (c *NodeContainer) setSlot(slot *Slot, value any) error {
	if slot.ref {
		return c.setRef(slot, value)
	}
	if n, ok := value.(*Node); ok && n != nil && n == slot.child {
		return nil
	}
	b := c.newBuilder()
	staged := &Slot{owner: slot.owner, name: slot.name, item: slot.item, key: slot.key, decl: slot.decl}
	err := b.fill(staged, value)
	if err == nil {
		err = b.resolveRefs()
	}
	if err != nil {
		b.discard()
		return err
	}
	prev := slot.child
	if prev == nil && staged.child == nil && slot.scalar == staged.scalar {
		return nil
	}
	var old any = slot.scalar
	if prev != nil {
		old = exportNode(prev)
	}
	slot.scalar = staged.scalar
	slot.child = staged.child
	if slot.child != nil {
		slot.child.parent = slot
	}
	b.commit()
	var dangling []*Slot
	if prev != nil {
		prev.parent = nil
		dangling = c.release(prev)
	}
	if prev != nil || slot.child != nil {
		c.epoch++
	}
	c.notify(ChangeEvent{Type: ValueChanged, Node: slot.owner, Selector: slot.Selector(), Slot: slot, Old: old, New: slot.Value()})
	c.clearDangling(dangling)
	return nil
}

func (c *NodeContainer) setRef(slot *Slot, value any) error {
	target, err := c.resolveTarget(value, nil)
	if err != nil {
		return err
	}
	if target != nil && !slot.decl.AssignableFrom(target.typ) {
		return fmt.Errorf("%w: cannot reference %s from %s", ErrTypeMismatch, target.typ, slot.decl)
	}
	if target == slot.child {
		return nil
	}
	prev := slot.child
	c.unlinkRef(slot)
	c.linkRef(slot, target)
	c.epoch++
	var old any
	if prev != nil {
		old = prev
	}
	c.notify(ChangeEvent{Type: ValueChanged, Node: slot.owner, Selector: slot.Selector(), Slot: slot, Old: old, New: slot.Value()})
	return nil
}

func (c *NodeContainer) insertItem(node *Node, pos int, id ItemID, key any, value any) (*Slot, error) {
	if _, dup := node.items[id]; dup {
		return nil, fmt.Errorf("%w: duplicate item %s", ErrInvalidIndex, id)
	}
	if node.kind == NodeMap {
		normalized, err := coerceKey(node.typ, key)
		if err != nil {
			return nil, err
		}
		if _, dup := node.keys[normalized]; dup {
			return nil, fmt.Errorf("%w: duplicate key %v", ErrInvalidIndex, normalized)
		}
		key = normalized
	}
	slot := &Slot{owner: node, item: id, key: key, decl: node.typ.ElemType()}
	b := c.newBuilder()
	err := b.fill(slot, value)
	if err == nil {
		err = b.resolveRefs()
	}
	if err != nil {
		b.discard()
		return nil, err
	}
	node.addSlot(pos, slot)
	b.commit()
	c.epoch++
	c.notify(ChangeEvent{Type: ItemAdded, Node: node, Selector: slot.Selector(), Slot: slot, New: slot.Value()})
	return slot, nil
}

func (c *NodeContainer) removeSlot(slot *Slot) {
	node := slot.owner
	sel := slot.Selector()
	var old any = slot.scalar
	if slot.child != nil && !slot.ref {
		old = exportNode(slot.child)
	}
	node.dropSlot(slot)
	var dangling []*Slot
	if slot.ref {
		c.unlinkRef(slot)
	} else if slot.child != nil {
		child := slot.child
		child.parent = nil
		dangling = c.release(child)
	}
	c.epoch++
	c.notify(ChangeEvent{Type: ItemRemoved, Node: node, Selector: sel, Slot: slot, Old: old})
	c.clearDangling(dangling)
}

func (c *NodeContainer) renameKey(slot *Slot, key any) error {
	node := slot.owner
	normalized, err := coerceKey(node.typ, key)
	if err != nil {
		return err
	}
	if normalized == slot.key {
		return nil
	}
	if _, dup := node.keys[normalized]; dup {
		return fmt.Errorf("%w: duplicate key %v", ErrInvalidIndex, normalized)
	}
	old := slot.key
	delete(node.keys, old)
	slot.key = normalized
	node.keys[normalized] = slot
	c.epoch++
	c.notify(ChangeEvent{Type: KeyChanged, Node: node, Selector: Key(normalized), Slot: slot, Old: old, New: normalized})
	return nil
}

// release drops n and its owned subtree. References into the subtree held
// by slots outside it are returned; they still point at the dropped nodes
// until clearDangling runs.
func (c *NodeContainer) release(n *Node) []*Slot {
	doomed := map[*Node]bool{}
	markSubtree(n, doomed)
	var dangling []*Slot
	for node := range doomed {
		for slot := range c.referrers[node] {
			if !doomed[slot.owner] {
				dangling = append(dangling, slot)
			}
		}
	}
	slices.SortFunc(dangling, func(a, b *Slot) int {
		return strings.Compare(SlotPath(a).String(), SlotPath(b).String())
	})
	c.drop(n)
	return dangling
}

// clearDangling nils references left pointing at released nodes and
// reports each one as a value change.
func (c *NodeContainer) clearDangling(slots []*Slot) {
	for _, slot := range slots {
		if slot.child == nil || !slot.child.released {
			continue
		}
		prev := slot.child
		slot.child = nil
		c.epoch++
		c.notify(ChangeEvent{Type: ValueChanged, Node: slot.owner, Selector: slot.Selector(), Slot: slot, Old: prev})
	}
}

func markSubtree(n *Node, into map[*Node]bool) {
	if n == nil || n.released || into[n] {
		return
	}
	into[n] = true
	for _, slot := range n.slots {
		if slot.owns() {
			markSubtree(slot.child, into)
		}
	}
}

func (c *NodeContainer) drop(n *Node) {
	if n.released {
		return
	}
	for _, slot := range n.slots {
		if slot.ref {
			c.unlinkRef(slot)
			continue
		}
		if slot.child != nil {
			c.drop(slot.child)
		}
	}
	delete(c.referrers, n)
	if c.nodes[n.id] == n {
		delete(c.nodes, n.id)
	}
	if n.pointer != nil && c.pointers[n.pointer] == n {
		delete(c.pointers, n.pointer)
	}
	n.released = true
	for _, observer := range append([]releaseObserver(nil), c.releases...) {
		observer.fn(n)
	}
}

func (c *NodeContainer) linkRef(slot *Slot, target *Node) {
	slot.child = target
	if target == nil {
		return
	}
	set := c.referrers[target]
	if set == nil {
		set = map[*Slot]struct{}{}
		c.referrers[target] = set
	}
	set[slot] = struct{}{}
}

func (c *NodeContainer) unlinkRef(slot *Slot) {
	if slot.child == nil {
		return
	}
	if set := c.referrers[slot.child]; set != nil {
		delete(set, slot)
		if len(set) == 0 {
			delete(c.referrers, slot.child)
		}
	}
	slot.child = nil
}

// rekey recomputes the derived identities of collection nodes below slot
// owners whose identity changed.
func (c *NodeContainer) rekey(n *Node) {
	if n.kind != NodeObject && n.parent != nil && n.parent.owner != nil {
		id := collectionIdentity(n.parent.owner.id, n.parent)
		if id != n.id {
			if c.nodes[n.id] == n {
				delete(c.nodes, n.id)
				c.nodes[id] = n
			}
			n.id = id
		}
	}
	for _, slot := range n.slots {
		if slot.owns() && slot.child.kind != NodeObject {
			c.rekey(slot.child)
		}
	}
}

func (c *NodeContainer) resolveTarget(value any, b *builder) (*Node, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case *Node:
		if typed == nil {
			return nil, nil
		}
		if typed.container != c || typed.released {
			return nil, fmt.Errorf("%w: node %s is not part of this container", ErrInvalidReference, typed.id)
		}
		return typed, nil
	case Identity:
		if n, ok := c.nodes[typed]; ok {
			return n, nil
		}
		if b != nil {
			if n, ok := b.ids[typed]; ok {
				return n, nil
			}
		}
		return nil, fmt.Errorf("%w: unknown identity %s", ErrInvalidReference, typed)
	case Identifiable:
		return c.resolveTarget(typed.AssetIdentity(), b)
	}
	if key, ok := pointerKey(value); ok {
		if n, ok := c.pointers[key]; ok {
			return n, nil
		}
		if b != nil {
			if n, ok := b.pointers[key]; ok {
				return n, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T does not name a node", ErrInvalidReference, value)
}

func coerceKey(mapType Type, key any) (any, error) {
	key = normalizeScalar(key)
	if !comparableKey(key) {
		return nil, fmt.Errorf("%w: key of type %T is not comparable", ErrInvalidIndex, key)
	}
	keyType := mapType.KeyType()
	if keyType.Kind == KindScalar {
		coerced, err := coerceScalar(keyType, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
		}
		return coerced, nil
	}
	return key, nil
}

func pointerKey(value any) (any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}
	return value, true
}

// builder stages the nodes created by one mutation until it commits.
type builder struct {
	c        *NodeContainer
	created  []*Node
	ids      map[Identity]*Node
	pointers map[any]*Node
	visiting map[any]bool
	adopted  []*Node
	refs     []pendingRef
	cloned   map[*Node]*Node
}

type pendingRef struct {
	slot   *Slot
	target any
}

func (c *NodeContainer) newBuilder() *builder {
	return &builder{
		c:        c,
		ids:      map[Identity]*Node{},
		pointers: map[any]*Node{},
		visiting: map[any]bool{},
		cloned:   map[*Node]*Node{},
	}
}

func (b *builder) build(value any, decl Type) (*Node, error) {
	ptr, isPointer := pointerKey(value)
	if isPointer {
		if b.visiting[ptr] {
			return nil, fmt.Errorf("archetype: value %T owns itself", value)
		}
		b.visiting[ptr] = true
		defer delete(b.visiting, ptr)
	}
	desc, err := describeValue(b.c.describer, value)
	if err != nil {
		return nil, err
	}
	kind, ok := nodeKindFor(desc.Type)
	if !ok {
		return nil, fmt.Errorf("%w: %s does not describe a node", ErrTypeMismatch, desc.Type)
	}
	if !decl.AssignableFrom(desc.Type) {
		return nil, fmt.Errorf("%w: cannot assign %s to %s", ErrTypeMismatch, desc.Type, decl)
	}
	id := desc.ID
	if kind != NodeObject || id.IsZero() || b.inUse(id) {
		id = NewIdentity()
	}
	node := b.stage(newNode(b.c, id, kind, desc.Type))
	if isPointer && b.c.pointers[ptr] == nil {
		node.pointer = ptr
		b.pointers[ptr] = node
	}

	if kind == NodeObject {
		for _, member := range desc.Members {
			if member.Name == "" {
				return nil, fmt.Errorf("archetype: %s has a member without a name", desc.Type)
			}
			if _, dup := node.members[member.Name]; dup {
				return nil, fmt.Errorf("archetype: %s declares member %q twice", desc.Type, member.Name)
			}
			memberType := member.Type
			if memberType.IsZero() {
				memberType = AnyType
			}
			slot := &Slot{
				owner:          node,
				name:           member.Name,
				decl:           memberType,
				ref:            member.Reference,
				nonOverridable: member.NonOverridable,
			}
			if member.Reference {
				b.refs = append(b.refs, pendingRef{slot: slot, target: member.Value})
			} else if err := b.fill(slot, member.Value); err != nil {
				return nil, fmt.Errorf("member %q: %w", member.Name, err)
			}
			node.addSlot(-1, slot)
		}
		return node, nil
	}

	elem := desc.Type.ElemType()
	for _, item := range desc.Items {
		itemID := item.ID
		if itemID.IsZero() {
			itemID = NewItemID()
		}
		if _, dup := node.items[itemID]; dup {
			return nil, fmt.Errorf("%w: duplicate item %s", ErrInvalidIndex, itemID)
		}
		slot := &Slot{owner: node, item: itemID, decl: elem}
		if kind == NodeMap {
			key, err := coerceKey(desc.Type, item.Key)
			if err != nil {
				return nil, err
			}
			if _, dup := node.keys[key]; dup {
				return nil, fmt.Errorf("%w: duplicate key %v", ErrInvalidIndex, key)
			}
			slot.key = key
		}
		if err := b.fill(slot, item.Value); err != nil {
			return nil, err
		}
		node.addSlot(-1, slot)
	}
	return node, nil
}

// fill stores value into slot, building or adopting child nodes.
func (b *builder) fill(slot *Slot, value any) error {
	decl := slot.decl
	if n, ok := value.(*Node); ok && n != nil {
		if !decl.AssignableFrom(n.typ) {
			return fmt.Errorf("%w: cannot assign %s to %s", ErrTypeMismatch, n.typ, decl)
		}
		if n.container == b.c && n.parent == nil && !n.root && !n.released {
			n.parent = slot
			b.adopted = append(b.adopted, n)
			b.c.rekey(n)
			slot.child = n
			return nil
		}
		clone, err := b.clone(n)
		if err != nil {
			return err
		}
		clone.parent = slot
		b.c.rekey(clone)
		slot.child = clone
		return nil
	}
	if value == nil {
		if decl.Kind == KindScalar {
			return fmt.Errorf("%w: cannot assign nil to %s", ErrTypeMismatch, decl)
		}
		slot.scalar = nil
		slot.child = nil
		return nil
	}
	if isScalarValue(value) {
		scalar, err := coerceScalar(decl, value)
		if err != nil {
			return err
		}
		slot.scalar = scalar
		return nil
	}
	if decl.Kind == KindScalar {
		return fmt.Errorf("%w: cannot assign %T to %s", ErrTypeMismatch, value, decl)
	}
	child, err := b.build(value, decl)
	if err != nil {
		return err
	}
	child.parent = slot
	b.c.rekey(child)
	slot.child = child
	return nil
}

func (b *builder) clone(src *Node) (*Node, error) {
	id := NewIdentity()
	node := b.stage(newNode(b.c, id, src.kind, src.typ))
	b.cloned[src] = node
	for _, srcSlot := range src.slots {
		slot := &Slot{
			owner:          node,
			name:           srcSlot.name,
			item:           srcSlot.item,
			key:            srcSlot.key,
			decl:           srcSlot.decl,
			scalar:         srcSlot.scalar,
			ref:            srcSlot.ref,
			nonOverridable: srcSlot.nonOverridable,
		}
		switch {
		case srcSlot.ref:
			if srcSlot.child != nil {
				b.refs = append(b.refs, pendingRef{slot: slot, target: srcSlot.child})
			}
		case srcSlot.child != nil:
			child, err := b.clone(srcSlot.child)
			if err != nil {
				return nil, err
			}
			child.parent = slot
			slot.child = child
		}
		node.addSlot(-1, slot)
	}
	for _, slot := range node.slots {
		if slot.owns() && slot.child.kind != NodeObject {
			b.c.rekey(slot.child)
		}
	}
	return node, nil
}

func (b *builder) stage(n *Node) *Node {
	b.created = append(b.created, n)
	b.ids[n.id] = n
	return n
}

func (b *builder) inUse(id Identity) bool {
	if _, ok := b.c.nodes[id]; ok {
		return true
	}
	_, ok := b.ids[id]
	return ok
}

// resolveRefs binds reference slots once every staged node exists. Cloned
// references pointing inside the cloned subtree follow the copy; references
// to nodes of another container are left empty for the synchronizer.
func (b *builder) resolveRefs() error {
	for _, ref := range b.refs {
		if src, ok := ref.target.(*Node); ok && src != nil {
			if copied, ok := b.cloned[src]; ok {
				b.c.linkRef(ref.slot, copied)
				continue
			}
			if src.container != b.c {
				ref.slot.child = nil
				continue
			}
		}
		target, err := b.c.resolveTarget(ref.target, b)
		if err != nil {
			return fmt.Errorf("member %q: %w", ref.slot.name, err)
		}
		if target != nil && !ref.slot.decl.AssignableFrom(target.typ) {
			return fmt.Errorf("%w: cannot reference %s from %s", ErrTypeMismatch, target.typ, ref.slot.decl)
		}
		b.c.linkRef(ref.slot, target)
	}
	b.refs = nil
	return nil
}

func (b *builder) commit() {
	for _, n := range b.created {
		b.c.nodes[n.id] = n
		if n.pointer != nil {
			b.c.pointers[n.pointer] = n
		}
	}
	b.created = nil
}

func (b *builder) discard() {
	for _, n := range b.adopted {
		n.parent = nil
	}
	for _, ref := range b.refs {
		ref.slot.child = nil
	}
	for _, n := range b.created {
		for _, slot := range n.slots {
			if slot.ref {
				b.c.unlinkRef(slot)
			}
		}
	}
	b.created = nil
	b.adopted = nil
	b.refs = nil
}
