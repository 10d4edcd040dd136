package archetype

// FieldDescriptor describes one slot of the graph for editors: where it is,
// what it holds and whether it overrides its base.
type FieldDescriptor struct {
	Path           Path
	Type           Type
	State          OverrideState
	Inherited      bool
	NonOverridable bool
	Reference      bool
	// Key is the key of a map entry.
	Key any
	// Kind is "scalar", "ref", "object", "list" or "map".
	Kind string
	// Value is the scalar value, the target identity string of a reference,
	// or nil for nested nodes.
	Value any
}

// Fields flattens the graph depth first, in member and item order.
func (g *Graph) Fields() []FieldDescriptor {
	var fields []FieldDescriptor
	degraded := g.degraded()
	var walk func(n *Node, prefix Path)
	walk = func(n *Node, prefix Path) {
		for _, slot := range n.slots {
			path := prefix.Append(segmentOf(slot))
			fields = append(fields, g.describeSlot(slot, path, degraded))
			if slot.owns() {
				walk(slot.child, path)
			}
		}
	}
	walk(g.root, nil)
	return fields
}

func (g *Graph) describeSlot(slot *Slot, path Path, degraded bool) FieldDescriptor {
	_, inherited := g.baseSlot(slot)
	field := FieldDescriptor{
		Path:           path,
		Type:           slot.Type(),
		State:          g.effectiveState(slot, degraded),
		Inherited:      inherited,
		NonOverridable: slot.nonOverridable,
		Reference:      slot.ref,
	}
	if slot.IsItem() && slot.owner != nil && slot.owner.kind == NodeMap {
		field.Key = slot.key
	}
	switch {
	case slot.ref:
		field.Kind = "ref"
		if slot.child != nil {
			field.Value = slot.child.id.String()
		}
	case slot.child != nil:
		field.Kind = slot.child.kind.String()
	default:
		field.Kind = "scalar"
		field.Value = slot.scalar
	}
	return field
}
