package archetype

import (
	"fmt"
	"sort"
	"strings"
)

// OverrideState is the per slot override state of a derived asset.
type OverrideState uint8

const (
	// OverrideNone means the slot follows its base.
	OverrideNone OverrideState = iota
	// OverrideNew marks an item that exists only in the derived asset.
	OverrideNew
	// OverrideSealed means the slot keeps its local value. On a slot holding
	// a collection it also freezes the membership of that collection.
	OverrideSealed
)

func (s OverrideState) String() string {
	switch s {
	case OverrideNone:
		return "none"
	case OverrideNew:
		return "new"
	case OverrideSealed:
		return "sealed"
	default:
		return fmt.Sprintf("OverrideState(%d)", uint8(s))
	}
}

// ParseOverrideState parses the String form of a state.
func ParseOverrideState(s string) (OverrideState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return OverrideNone, nil
	case "new":
		return OverrideNew, nil
	case "sealed":
		return OverrideSealed, nil
	default:
		return OverrideNone, fmt.Errorf("archetype: unknown override state %q", s)
	}
}

// overrideTracker stores override records keyed by node identity and member
// name or item id. Records of a node are dropped when the node is released.
type overrideTracker struct {
	records map[Identity]*nodeOverrides
}

type nodeOverrides struct {
	members map[string]OverrideState
	items   map[ItemID]OverrideState
	deleted map[ItemID]struct{}
}

func (r *nodeOverrides) empty() bool {
	return len(r.members) == 0 && len(r.items) == 0 && len(r.deleted) == 0
}

func newOverrideTracker() *overrideTracker {
	return &overrideTracker{records: map[Identity]*nodeOverrides{}}
}

func (t *overrideTracker) get(slot *Slot) OverrideState {
	record := t.records[slot.owner.id]
	if record == nil {
		return OverrideNone
	}
	if slot.IsItem() {
		return record.items[slot.item]
	}
	return record.members[slot.name]
}

func (t *overrideTracker) record(id Identity) *nodeOverrides {
	record := t.records[id]
	if record == nil {
		record = &nodeOverrides{}
		t.records[id] = record
	}
	return record
}

// set stores state for slot and reports whether it changed.
func (t *overrideTracker) set(slot *Slot, state OverrideState) bool {
	if t.get(slot) == state {
		return false
	}
	if state == OverrideNone {
		t.clear(slot)
		return true
	}
	record := t.record(slot.owner.id)
	if slot.IsItem() {
		if record.items == nil {
			record.items = map[ItemID]OverrideState{}
		}
		record.items[slot.item] = state
		return true
	}
	if record.members == nil {
		record.members = map[string]OverrideState{}
	}
	record.members[slot.name] = state
	return true
}

func (t *overrideTracker) clear(slot *Slot) {
	record := t.records[slot.owner.id]
	if record == nil {
		return
	}
	if slot.IsItem() {
		delete(record.items, slot.item)
	} else {
		delete(record.members, slot.name)
	}
	if record.empty() {
		delete(t.records, slot.owner.id)
	}
}

func (t *overrideTracker) markDeleted(collection *Node, id ItemID) {
	record := t.record(collection.id)
	if record.deleted == nil {
		record.deleted = map[ItemID]struct{}{}
	}
	record.deleted[id] = struct{}{}
}

func (t *overrideTracker) unmarkDeleted(collection *Node, id ItemID) {
	record := t.records[collection.id]
	if record == nil {
		return
	}
	delete(record.deleted, id)
	if record.empty() {
		delete(t.records, collection.id)
	}
}

func (t *overrideTracker) isDeleted(collection *Node, id ItemID) bool {
	record := t.records[collection.id]
	if record == nil {
		return false
	}
	_, ok := record.deleted[id]
	return ok
}

func (t *overrideTracker) clearDeleted(collection *Node) bool {
	record := t.records[collection.id]
	if record == nil || len(record.deleted) == 0 {
		return false
	}
	record.deleted = nil
	if record.empty() {
		delete(t.records, collection.id)
	}
	return true
}

// deletedItems returns the deleted markers of collection in a stable order.
func (t *overrideTracker) deletedItems(collection *Node) []ItemID {
	record := t.records[collection.id]
	if record == nil || len(record.deleted) == 0 {
		return nil
	}
	ids := make([]ItemID, 0, len(record.deleted))
	for id := range record.deleted {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

func (t *overrideTracker) dropNode(id Identity) {
	delete(t.records, id)
}

// subtreeOverridden reports whether n or any node it owns carries an
// override record or a deleted marker.
func (t *overrideTracker) subtreeOverridden(n *Node) bool {
	if n == nil {
		return false
	}
	if record := t.records[n.id]; record != nil && !record.empty() {
		return true
	}
	for _, slot := range n.slots {
		if slot.owns() && t.subtreeOverridden(slot.child) {
			return true
		}
	}
	return false
}

func (t *overrideTracker) len() int {
	count := 0
	for _, record := range t.records {
		count += len(record.members) + len(record.items)
	}
	return count
}
