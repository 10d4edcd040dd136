package archetype

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/goliatone/go-archetype/pkg/activity"
)

// Graph is the property graph of one asset. It layers override tracking and
// base resolution on top of a NodeContainer. Graphs are single owner: callers
// serialize access themselves.
type Graph struct {
	id        AssetID
	baseID    AssetID
	base      *Graph
	registry  *GraphContainer
	container *NodeContainer
	root      *Node
	tracker   *overrideTracker
	link      baseLink

	cfg     config
	logger  *slog.Logger
	emitter *activity.Emitter

	subscribers    []graphSubscriber
	nextSubscriber int
	dropped        uint64

	stopObserve func()
	stopRelease func()
}

// WriteOption configures a single Write.
type WriteOption func(*writeConfig)

type writeConfig struct {
	through bool
}

// WriteThrough writes the value without sealing the slot, so the next
// refresh may replace it with the base value again.
func WriteThrough() WriteOption {
	return func(cfg *writeConfig) {
		cfg.through = true
	}
}

// NewGraph wraps root as the root node of asset id.
func NewGraph(id AssetID, root any, opts ...Option) (*Graph, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("archetype: asset id is required")
	}
	cfg := applyOptions(opts)
	if cfg.baseID == id {
		return nil, fmt.Errorf("%w: asset %s is its own base", ErrBaseCycle, id)
	}
	container := cfg.container
	if container == nil {
		container = NewNodeContainer(WithDescriber(cfg.describer))
	}
	node, err := container.GetOrCreateNode(root)
	if err != nil {
		return nil, opError("new graph", nil, err)
	}
	if node.parent != nil || node.root {
		return nil, opError("new graph", nil, fmt.Errorf("%w: node %s is already attached", ErrDetached, node.id))
	}
	node.root = true

	g := &Graph{
		id:        id,
		baseID:    cfg.baseID,
		base:      cfg.baseGraph,
		container: container,
		root:      node,
		tracker:   newOverrideTracker(),
		cfg:       cfg,
		logger:    cfg.loggerOrDiscard(),
		emitter:   cfg.activity.emitter(),
	}
	g.stopObserve = container.Observe(g.publish)
	g.stopRelease = container.OnRelease(func(n *Node) {
		g.tracker.dropNode(n.id)
	})
	return g, nil
}

// Derive creates asset id as a copy of base. Object nodes get fresh
// identities and every item keeps its base item id, so the new graph starts
// with no overrides.
func Derive(id AssetID, base *Graph, opts ...Option) (*Graph, error) {
	if base == nil {
		return nil, fmt.Errorf("archetype: base graph is required")
	}
	cfg := applyOptions(opts)
	container := cfg.container
	if container == nil {
		container = NewNodeContainer(WithDescriber(cfg.describer))
	}
	root, err := container.Clone(base.root)
	if err != nil {
		return nil, opError("derive", nil, err)
	}
	opts = append(opts, WithNodeContainer(container), WithBaseGraph(base))
	g, err := NewGraph(id, root, opts...)
	if err != nil {
		return nil, err
	}
	if report := g.Refresh(); report.Err() != nil {
		return g, report.Err()
	}
	return g, nil
}

// ID returns the asset id.
func (g *Graph) ID() AssetID { return g.id }

// BaseID returns the declared base asset id, zero for plain assets.
func (g *Graph) BaseID() AssetID { return g.baseID }

// Root returns the root node.
func (g *Graph) Root() *Node { return g.root }

// Container returns the node container of the graph.
func (g *Graph) Container() *NodeContainer { return g.container }

// Node returns the live node with id.
func (g *Graph) Node(id Identity) (*Node, bool) { return g.container.Node(id) }

// Close detaches the graph from its container notifications.
func (g *Graph) Close() {
	if g.stopObserve != nil {
		g.stopObserve()
		g.stopObserve = nil
	}
	if g.stopRelease != nil {
		g.stopRelease()
		g.stopRelease = nil
	}
}

// Lookup resolves a path string like `stats.armor` or `tags[2]` from the
// root.
func (g *Graph) Lookup(path string) (*Slot, error) {
	parsed, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	slot, err := parsed.Resolve(g.root)
	if err != nil {
		return nil, opError("lookup", parsed, err)
	}
	return slot, nil
}

// NodeAt resolves a path string to a node. The empty path is the root.
func (g *Graph) NodeAt(path string) (*Node, error) {
	parsed, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	node, err := parsed.ResolveNode(g.root)
	if err != nil {
		return nil, opError("lookup", parsed, err)
	}
	return node, nil
}

// Read returns the derived value of sel: a scalar, a *Node or nil.
func (g *Graph) Read(node *Node, sel Selector) (any, error) {
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return nil, opError("read", selectorPath(node, sel), err)
	}
	return slot.Value(), nil
}

// Write replaces the value of sel. A slot in state None whose base
// counterpart exists becomes Sealed unless WriteThrough is given or the
// member is non-overridable. Subscribers see the value change first and
// then, when the state moved, a separate OverrideChanged event.
func (g *Graph) Write(node *Node, sel Selector, value any, opts ...WriteOption) error {
	var cfg writeConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return opError("write", selectorPath(node, sel), err)
	}
	if err := g.container.setSlot(slot, value); err != nil {
		return opError("write", SlotPath(slot), err)
	}
	if cfg.through || slot.nonOverridable {
		return nil
	}
	if g.tracker.get(slot) == OverrideNone {
		if _, ok := g.baseSlot(slot); ok {
			g.setState(slot, OverrideSealed)
		}
	}
	return nil
}

// Insert adds an item to a list or map. With a resolvable base the item is
// marked New.
func (g *Graph) Insert(node *Node, idx Index, value any) (*Slot, error) {
	slot, err := g.container.Insert(node, idx, value)
	if err != nil {
		return nil, opError("insert", selectorPath(node, idx), err)
	}
	if _, ok := g.Base(node); ok {
		g.setState(slot, OverrideNew)
	}
	return slot, nil
}

// Remove deletes an item. Removing an inherited item leaves a deleted marker
// so refreshes do not bring it back.
func (g *Graph) Remove(node *Node, sel Selector) error {
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return opError("remove", selectorPath(node, sel), err)
	}
	if !slot.IsItem() {
		return opError("remove", SlotPath(slot), fmt.Errorf("%w: cannot remove member %q", ErrInvalidIndex, slot.name))
	}
	inherited := false
	if g.tracker.get(slot) != OverrideNew {
		_, inherited = g.baseSlot(slot)
	}
	g.tracker.clear(slot)
	g.container.removeSlot(slot)
	if inherited {
		g.tracker.markDeleted(node, slot.item)
	}
	return nil
}

// Move reorders a list item. Item order is local and survives refreshes.
func (g *Graph) Move(node *Node, from, to int) error {
	if err := g.container.Move(node, from, to); err != nil {
		return opError("move", selectorPath(node, Seq(from)), err)
	}
	return nil
}

// ResetToBase clears the override of sel and pulls the base value right
// away. Resetting a New item removes it. Resetting a slot holding a
// collection also drops its deleted markers, so removed base items return.
// Nested overrides below a reset object member survive.
func (g *Graph) ResetToBase(node *Node, sel Selector) error {
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return opError("reset", selectorPath(node, sel), err)
	}
	base, ok := g.baseGraph()
	if !ok {
		return opError("reset", SlotPath(slot), fmt.Errorf("%w: asset %s", ErrUnresolvedBase, g.baseID))
	}
	if slot.IsItem() && g.tracker.get(slot) == OverrideNew {
		g.setState(slot, OverrideNone)
		g.container.removeSlot(slot)
		return nil
	}
	baseSlot, hasBase := g.baseSlot(slot)
	g.setState(slot, OverrideNone)
	if slot.owns() && slot.child.kind != NodeObject {
		g.tracker.clearDeleted(slot.child)
	}
	if !hasBase {
		if slot.IsItem() {
			g.container.removeSlot(slot)
		}
		return nil
	}
	report := &SyncReport{Asset: g.id}
	s := newSynchronizer(g, base, report)
	s.run(func() {
		s.syncSlot(slot, baseSlot)
	})
	return report.Err()
}

// Override returns the override state of sel. Unknown selectors report
// None. While the declared base cannot be resolved every None slot reads as
// New.
func (g *Graph) Override(node *Node, sel Selector) OverrideState {
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return OverrideNone
	}
	return g.effectiveState(slot, g.degraded())
}

// StoredOverride returns the recorded state of slot, ignoring degraded
// mode. Document writers persist this value.
func (g *Graph) StoredOverride(slot *Slot) OverrideState {
	if slot == nil || slot.owner == nil {
		return OverrideNone
	}
	return g.tracker.get(slot)
}

// SetOverride applies a state transition to sel. Sealing is idempotent and
// never changes the value. New is only valid for items without a base
// counterpart. None clears the record without pulling base values.
func (g *Graph) SetOverride(node *Node, sel Selector, state OverrideState) error {
	slot, err := g.container.lookup(node, sel)
	if err != nil {
		return opError("set override", selectorPath(node, sel), fmt.Errorf("%w: %v", ErrInvalidOverrideTransition, err))
	}
	path := SlotPath(slot)
	switch state {
	case OverrideNone:
	case OverrideSealed:
		if slot.nonOverridable {
			return opError("set override", path, fmt.Errorf("%w: member %q is not overridable", ErrInvalidOverrideTransition, slot.name))
		}
	case OverrideNew:
		if !slot.IsItem() {
			return opError("set override", path, fmt.Errorf("%w: member %q cannot be new", ErrInvalidOverrideTransition, slot.name))
		}
		if _, ok := g.baseSlot(slot); ok {
			return opError("set override", path, fmt.Errorf("%w: item exists in base", ErrInvalidOverrideTransition))
		}
	default:
		return opError("set override", path, fmt.Errorf("%w: unknown state %s", ErrInvalidOverrideTransition, state))
	}
	g.setState(slot, state)
	return nil
}

// Overrides lazily enumerates the non-None slots of node in order.
func (g *Graph) Overrides(node *Node) iter.Seq2[Selector, OverrideState] {
	return func(yield func(Selector, OverrideState) bool) {
		if node == nil || node.released || node.container != g.container {
			return
		}
		degraded := g.degraded()
		for sel, slot := range node.Children() {
			state := g.effectiveState(slot, degraded)
			if state == OverrideNone {
				continue
			}
			if !yield(sel, state) {
				return
			}
		}
	}
}

// AllOverrides enumerates every non-None slot of the graph depth first, in
// member and item order.
func (g *Graph) AllOverrides() iter.Seq2[Path, OverrideState] {
	return func(yield func(Path, OverrideState) bool) {
		degraded := g.degraded()
		var walk func(n *Node, prefix Path) bool
		walk = func(n *Node, prefix Path) bool {
			for _, slot := range n.slots {
				path := prefix.Append(segmentOf(slot))
				if state := g.effectiveState(slot, degraded); state != OverrideNone {
					if !yield(path, state) {
						return false
					}
				}
				if slot.owns() && !walk(slot.child, path) {
					return false
				}
			}
			return true
		}
		walk(g.root, nil)
	}
}

// Deleted returns the deleted markers of a collection node.
func (g *Graph) Deleted(node *Node) []ItemID {
	if node == nil {
		return nil
	}
	return g.tracker.deletedItems(node)
}

// RestoreOverride sets a persisted override record without transition
// checks. Document loaders use it before the base is available.
func (g *Graph) RestoreOverride(path Path, state OverrideState) error {
	slot, err := path.Resolve(g.root)
	if err != nil {
		return opError("restore override", path, err)
	}
	g.tracker.set(slot, state)
	return nil
}

// RestoreDeleted sets persisted deleted markers on the collection at path.
func (g *Graph) RestoreDeleted(path Path, ids []ItemID) error {
	node, err := path.ResolveNode(g.root)
	if err != nil {
		return opError("restore deleted", path, err)
	}
	if node.kind == NodeObject {
		return opError("restore deleted", path, fmt.Errorf("%w: deleted markers on object node", ErrInvalidIndex))
	}
	for _, id := range ids {
		g.tracker.markDeleted(node, id)
	}
	return nil
}

func (g *Graph) effectiveState(slot *Slot, degraded bool) OverrideState {
	state := g.tracker.get(slot)
	if state == OverrideNone && degraded && !slot.nonOverridable {
		return OverrideNew
	}
	return state
}

func (g *Graph) setState(slot *Slot, state OverrideState) {
	prev := g.tracker.get(slot)
	if !g.tracker.set(slot, state) {
		return
	}
	g.publish(ChangeEvent{
		Type:     OverrideChanged,
		Node:     slot.owner,
		Selector: slot.Selector(),
		Slot:     slot,
		Old:      prev,
		New:      state,
		FromBase: g.container.fromBase,
	})
}

func selectorPath(node *Node, sel Selector) Path {
	if node == nil {
		return nil
	}
	path, _ := PathOf(node)
	switch s := sel.(type) {
	case Name:
		return path.Append(Segment{Member: string(s)})
	case Index:
		return path.Append(Segment{Index: s})
	case itemSelector:
		return path.Append(Segment{Item: s.id})
	}
	return path
}
