package archetype

// baseLink caches the structural mapping from derived nodes to their base
// counterparts. The cache is dropped whenever either container changes
// structure or the base graph itself is swapped.
type baseLink struct {
	base         *Graph
	derivedEpoch uint64
	baseEpoch    uint64
	cache        map[*Node]*Node
}

func (l *baseLink) validate(derived *NodeContainer, base *Graph) {
	if l.cache != nil && l.base == base && l.derivedEpoch == derived.epoch && l.baseEpoch == base.container.epoch {
		return
	}
	l.base = base
	l.derivedEpoch = derived.epoch
	l.baseEpoch = base.container.epoch
	l.cache = map[*Node]*Node{}
}

func (l *baseLink) reset() {
	l.cache = nil
	l.base = nil
}

// BaseGraph returns the graph this graph derives from. Registered graphs
// resolve their base through their GraphContainer only.
func (g *Graph) BaseGraph() (*Graph, bool) {
	return g.baseGraph()
}

func (g *Graph) baseGraph() (*Graph, bool) {
	if g.baseID.IsZero() {
		return nil, false
	}
	if g.registry != nil {
		return g.registry.Graph(g.baseID)
	}
	if g.base != nil {
		return g.base, true
	}
	return nil, false
}

// degraded reports whether a base is declared but cannot be resolved.
func (g *Graph) degraded() bool {
	if g.baseID.IsZero() {
		return false
	}
	_, ok := g.baseGraph()
	return !ok
}

// Base returns the base counterpart of node. The root maps to the base root;
// a node reached through member m or item i maps to the node held by member
// m or by the item with the same item id in the counterpart of its owner.
func (g *Graph) Base(node *Node) (*Node, bool) {
	base, ok := g.baseGraph()
	if !ok || node == nil || node.released || node.container != g.container || base.root == nil {
		return nil, false
	}
	g.link.validate(g.container, base)
	if cached, ok := g.link.cache[node]; ok {
		return cached, cached != nil
	}
	resolved := g.resolveBase(node, base)
	g.link.cache[node] = resolved
	return resolved, resolved != nil
}

func (g *Graph) resolveBase(node *Node, base *Graph) *Node {
	if node == g.root {
		return base.root
	}
	slot := node.parent
	if slot == nil || slot.ref {
		return nil
	}
	baseSlot, ok := g.baseSlot(slot)
	if !ok || !baseSlot.owns() {
		return nil
	}
	return baseSlot.child
}

// BaseSlot returns the counterpart of slot in the base graph.
func (g *Graph) BaseSlot(slot *Slot) (*Slot, bool) {
	if slot == nil || slot.owner == nil {
		return nil, false
	}
	return g.baseSlot(slot)
}

func (g *Graph) baseSlot(slot *Slot) (*Slot, bool) {
	owner, ok := g.Base(slot.owner)
	if !ok {
		return nil, false
	}
	if slot.IsItem() {
		if owner.kind == NodeObject {
			return nil, false
		}
		return owner.ItemByID(slot.item)
	}
	if owner.kind != NodeObject {
		return nil, false
	}
	return owner.Member(slot.name)
}
