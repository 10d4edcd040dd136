package archetype

import (
	"errors"
	"fmt"
	"time"
)

// Orphan is an overridden item whose base counterpart disappeared. The item
// is kept; it is reported so editors can surface it.
type Orphan struct {
	Path  Path
	Item  ItemID
	State OverrideState
}

// Err returns the orphan as an error wrapping ErrOrphanedOverride.
func (o Orphan) Err() error {
	return &GraphError{Op: "refresh", Path: o.Path, Err: ErrOrphanedOverride}
}

// SyncReport collects the outcome of one refresh. The graph is always left
// in a usable, best-effort state; problems are listed rather than returned
// one at a time.
type SyncReport struct {
	Asset    AssetID
	Changes  int
	Orphans  []Orphan
	Errors   []error
	Duration time.Duration
}

// Err joins every collected error, nil when none.
func (r *SyncReport) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	return errors.Join(r.Errors...)
}

// OK reports whether the refresh completed without errors. Orphans do not
// count as errors.
func (r *SyncReport) OK() bool {
	return r == nil || len(r.Errors) == 0
}

// Refresh merges the current base into the graph. Slots in state None take
// the base value, New and Sealed slots keep theirs, base items missing
// locally are inserted unless a deleted marker exists, and local items whose
// base item disappeared are removed unless they still carry overrides.
// Refresh never changes override states, except that a removed item that
// still carries nested overrides is kept and marked New, and a member whose
// overridden subtree the base replaced with an incompatible value is kept
// and sealed.
func (g *Graph) Refresh() *SyncReport {
	start := time.Now()
	report := &SyncReport{Asset: g.id}
	defer func() {
		report.Duration = time.Since(start)
		if g.cfg.metrics != nil {
			g.cfg.metrics.RecordRefresh(g.id, report.Duration, report)
		}
		g.logger.Debug("archetype: refresh",
			"asset", g.id.String(),
			"base", g.baseID.String(),
			"changes", report.Changes,
			"orphans", len(report.Orphans),
			"errors", len(report.Errors),
			"duration", report.Duration,
		)
		g.emitRefreshed(report)
	}()
	if g.baseID.IsZero() {
		return report
	}
	base, ok := g.baseGraph()
	if !ok {
		report.Errors = append(report.Errors, &GraphError{Op: "refresh", Err: fmt.Errorf("%w: asset %s", ErrUnresolvedBase, g.baseID)})
		g.logger.Warn("archetype: base not found", "asset", g.id.String(), "base", g.baseID.String())
		return report
	}
	s := newSynchronizer(g, base, report)
	s.run(func() {
		s.syncNode(g.root, base.root, false)
	})
	return report
}

type synchronizer struct {
	g      *Graph
	base   *Graph
	report *SyncReport
	refs   []refPair
}

type refPair struct {
	derived *Slot
	base    *Slot
}

func newSynchronizer(g, base *Graph, report *SyncReport) *synchronizer {
	return &synchronizer{g: g, base: base, report: report}
}

// run marks every mutation made by fn as coming from the base and then
// resolves queued references once the structure settled.
func (s *synchronizer) run(fn func()) {
	prev := s.g.container.fromBase
	s.g.container.fromBase = true
	defer func() {
		s.g.container.fromBase = prev
	}()
	fn()
	s.syncReferences()
}

func (s *synchronizer) syncNode(d, b *Node, frozen bool) {
	if d.kind != b.kind {
		path, _ := PathOf(d)
		s.fail(path, fmt.Errorf("%w: %s node derives from %s node", ErrTypeMismatch, d.kind, b.kind))
		return
	}
	if d.kind == NodeObject {
		for _, slot := range append([]*Slot(nil), d.slots...) {
			baseSlot, ok := b.Member(slot.name)
			if !ok {
				continue
			}
			s.syncSlot(slot, baseSlot)
		}
		return
	}
	s.syncItems(d, b, frozen)
}

// syncSlot reconciles one slot with its base counterpart. A sealed slot
// holding a collection keeps its membership while its None items still
// follow the base.
func (s *synchronizer) syncSlot(ds, bs *Slot) {
	state := s.g.tracker.get(ds)
	if ds.nonOverridable {
		state = OverrideNone
	}
	switch state {
	case OverrideNew:
		return
	case OverrideSealed:
		if ds.owns() && bs.owns() && ds.child.kind != NodeObject && ds.child.kind == bs.child.kind {
			s.syncNode(ds.child, bs.child, true)
		}
		return
	}
	s.pull(ds, bs)
}

func (s *synchronizer) pull(ds, bs *Slot) {
	if ds.ref {
		s.refs = append(s.refs, refPair{derived: ds, base: bs})
		return
	}
	if bs.ref {
		s.fail(SlotPath(ds), fmt.Errorf("%w: base member %q is a reference", ErrTypeMismatch, bs.name))
		return
	}
	if ds.owns() && !(bs.owns() && compatibleNodes(ds.child, bs.child)) && s.keepOverridden(ds) {
		return
	}
	if !bs.owns() {
		if ds.child == nil && ds.scalar == bs.scalar {
			return
		}
		if err := s.g.container.setSlot(ds, bs.scalar); err != nil {
			s.fail(SlotPath(ds), err)
			return
		}
		s.report.Changes++
		return
	}
	if ds.owns() && compatibleNodes(ds.child, bs.child) {
		s.syncNode(ds.child, bs.child, false)
		return
	}
	if err := s.g.container.setSlot(ds, bs.child); err != nil {
		s.fail(SlotPath(ds), err)
		return
	}
	s.report.Changes++
	s.queueRefs(ds.child, bs.child)
}

// keepOverridden protects an owned subtree carrying overrides from being
// replaced by an incompatible base value. The slot is sealed, since its
// base counterpart still exists, and reported as an orphan. Non-overridable slots still follow the base; the
// overrides they lose are reported.
func (s *synchronizer) keepOverridden(ds *Slot) bool {
	if !s.g.tracker.subtreeOverridden(ds.child) {
		return false
	}
	if ds.nonOverridable {
		s.orphan(ds, OverrideNone)
		return false
	}
	s.g.setState(ds, OverrideSealed)
	s.orphan(ds, OverrideSealed)
	return true
}

func (s *synchronizer) syncItems(d, b *Node, frozen bool) {
	tracker := s.g.tracker
	if !frozen {
		for _, slot := range append([]*Slot(nil), d.slots...) {
			if _, ok := b.ItemByID(slot.item); ok {
				continue
			}
			switch tracker.get(slot) {
			case OverrideNew:
				continue
			case OverrideSealed:
				s.orphan(slot, OverrideSealed)
				continue
			}
			if slot.owns() && tracker.subtreeOverridden(slot.child) {
				s.g.setState(slot, OverrideNew)
				s.orphan(slot, OverrideNew)
				continue
			}
			s.g.container.removeSlot(slot)
			s.report.Changes++
		}
		for _, id := range tracker.deletedItems(d) {
			if _, ok := b.ItemByID(id); !ok {
				tracker.unmarkDeleted(d, id)
			}
		}
		s.insertMissing(d, b)
	}

	for _, slot := range append([]*Slot(nil), d.slots...) {
		baseSlot, ok := b.ItemByID(slot.item)
		if !ok {
			continue
		}
		if d.kind == NodeMap && tracker.get(slot) == OverrideNone && slot.key != baseSlot.key {
			if err := s.g.container.renameKey(slot, baseSlot.key); err != nil {
				s.fail(SlotPath(slot), err)
			} else {
				s.report.Changes++
			}
		}
		s.syncSlot(slot, baseSlot)
	}
}

// insertMissing adds base items that are neither present nor deleted. Each
// goes right after the nearest preceding base item present locally, or to
// the front when none precedes it. Map entries whose key is taken by a local
// entry are marked deleted instead.
func (s *synchronizer) insertMissing(d, b *Node) {
	var anchor *Slot
	for _, baseSlot := range b.slots {
		if local, ok := d.ItemByID(baseSlot.item); ok {
			anchor = local
			continue
		}
		if s.g.tracker.isDeleted(d, baseSlot.item) {
			continue
		}
		if d.kind == NodeMap {
			if _, taken := d.keys[baseSlot.key]; taken {
				s.g.tracker.markDeleted(d, baseSlot.item)
				continue
			}
		}
		pos := 0
		if anchor != nil {
			pos = d.position(anchor) + 1
		}
		var value any = baseSlot.scalar
		if baseSlot.owns() {
			value = baseSlot.child
		}
		slot, err := s.g.container.insertItem(d, pos, baseSlot.item, baseSlot.key, value)
		if err != nil {
			path, _ := PathOf(d)
			s.fail(path.Append(Segment{Item: baseSlot.item}), err)
			continue
		}
		s.report.Changes++
		if slot.owns() {
			s.queueRefs(slot.child, baseSlot.child)
		}
		anchor = slot
	}
}

// queueRefs pairs the reference slots of a fresh copy with the slots of the
// base subtree it was copied from.
func (s *synchronizer) queueRefs(d, b *Node) {
	if d == nil || b == nil || len(d.slots) != len(b.slots) {
		return
	}
	for i, slot := range d.slots {
		baseSlot := b.slots[i]
		switch {
		case slot.ref:
			s.refs = append(s.refs, refPair{derived: slot, base: baseSlot})
		case slot.owns() && baseSlot.owns():
			s.queueRefs(slot.child, baseSlot.child)
		}
	}
}

// syncReferences points derived references at the derived node found at
// the path of the base target.
func (s *synchronizer) syncReferences() {
	for _, pair := range s.refs {
		ds, bs := pair.derived, pair.base
		if ds.owner == nil || ds.owner.released {
			continue
		}
		var target *Node
		if bs.child != nil {
			path, root := PathOf(bs.child)
			if root != s.base.root {
				s.fail(SlotPath(ds), fmt.Errorf("%w: base target is outside the base graph", ErrInvalidReference))
				continue
			}
			node, err := path.ResolveNode(s.g.root)
			if err != nil {
				s.fail(SlotPath(ds), fmt.Errorf("%w: %s not found locally", ErrInvalidReference, path))
				continue
			}
			target = node
		}
		if ds.child == target {
			continue
		}
		if err := s.g.container.setRef(ds, target); err != nil {
			s.fail(SlotPath(ds), err)
			continue
		}
		s.report.Changes++
	}
	s.refs = nil
}

func (s *synchronizer) fail(path Path, err error) {
	s.report.Errors = append(s.report.Errors, opError("refresh", path, err))
	s.g.logger.Warn("archetype: refresh problem", "asset", s.g.id.String(), "path", path.String(), "error", err)
}

func (s *synchronizer) orphan(slot *Slot, state OverrideState) {
	path := SlotPath(slot)
	s.report.Orphans = append(s.report.Orphans, Orphan{Path: path, Item: slot.item, State: state})
	s.g.logger.Warn("archetype: orphaned override", "asset", s.g.id.String(), "path", path.String(), "state", state.String())
}

func compatibleNodes(d, b *Node) bool {
	return d.kind == b.kind && d.typ.Equal(b.typ)
}
