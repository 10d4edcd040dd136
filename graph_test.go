package archetype

import (
	"errors"
	"slices"
	"testing"
)

func TestNewGraphWrapsValue(t *testing.T) {
	g := newEnemyBase(t)

	root := g.Root()
	if root.Kind() != NodeObject || root.Type().String() != "Enemy" {
		t.Fatalf("expected Enemy object root, got %s %s", root.Kind(), root.Type())
	}
	if !root.IsRoot() {
		t.Fatalf("expected root flag")
	}
	if got := valueAt(t, g, "name"); got != "Enemy" {
		t.Fatalf("expected name Enemy, got %v", got)
	}
	if got := valueAt(t, g, "stats.speed"); got != float64(3) {
		t.Fatalf("expected speed 3, got %#v", got)
	}
	if got := valueAt(t, g, `loot["gold"]`); got != int64(10) {
		t.Fatalf("expected gold 10, got %#v", got)
	}
	if got := scalars(t, g, "tags"); !slices.Equal(got, []any{"a", "b"}) {
		t.Fatalf("expected tags [a b], got %v", got)
	}
}

func TestNewGraphValidatesIdentity(t *testing.T) {
	if _, err := NewGraph(AssetID{}, &Enemy{}); err == nil {
		t.Fatalf("expected zero asset id to be rejected")
	}
	id := NewAssetID()
	if _, err := NewGraph(id, &Enemy{}, WithBaseAsset(id)); !errors.Is(err, ErrBaseCycle) {
		t.Fatalf("expected ErrBaseCycle for self base, got %v", err)
	}
	if _, err := NewGraph(NewAssetID(), 42); err == nil {
		t.Fatalf("expected scalar root to be rejected, got %v", err)
	}
}

func TestWriteSealsInheritedSlot(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	mustWrite(t, derived, derived.Root(), Name("health"), 50)
	if state := derived.Override(derived.Root(), Name("health")); state != OverrideSealed {
		t.Fatalf("expected health sealed, got %s", state)
	}
	if got := valueAt(t, derived, "health"); got != int64(50) {
		t.Fatalf("expected health 50, got %v", got)
	}

	// Graphs without a base never seal.
	mustWrite(t, base, base.Root(), Name("health"), 120)
	if state := base.Override(base.Root(), Name("health")); state != OverrideNone {
		t.Fatalf("expected base write to stay none, got %s", state)
	}
}

func TestWriteThroughKeepsNone(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	mustWrite(t, derived, derived.Root(), Name("name"), "Preview", WriteThrough())
	if state := derived.Override(derived.Root(), Name("name")); state != OverrideNone {
		t.Fatalf("expected write-through to keep none, got %s", state)
	}
	mustRefresh(t, derived)
	if got := valueAt(t, derived, "name"); got != "Enemy" {
		t.Fatalf("expected refresh to restore base name, got %v", got)
	}
}

func TestWriteRejectsTypeMismatch(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	err := derived.Write(derived.Root(), Name("health"), "lots")
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
	var graphErr *GraphError
	if !errors.As(err, &graphErr) || graphErr.Op != "write" || graphErr.Path.String() != "health" {
		t.Fatalf("expected write GraphError on health, got %#v", err)
	}
	if got := valueAt(t, derived, "health"); got != int64(100) {
		t.Fatalf("expected health untouched, got %v", got)
	}
	if state := derived.Override(derived.Root(), Name("health")); state != OverrideNone {
		t.Fatalf("expected failed write to keep none, got %s", state)
	}

	// Ints are accepted by float slots.
	stats := nodeAt(t, derived, "stats")
	mustWrite(t, derived, stats, Name("armor"), 2)
	if got := valueAt(t, derived, "stats.armor"); got != float64(2) {
		t.Fatalf("expected armor 2.0, got %#v", got)
	}
}

func TestWriteReplacesCollection(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	mustWrite(t, derived, derived.Root(), Name("tags"), []string{"x"})
	if got := scalars(t, derived, "tags"); !slices.Equal(got, []any{"x"}) {
		t.Fatalf("expected tags [x], got %v", got)
	}
	if state := derived.Override(derived.Root(), Name("tags")); state != OverrideSealed {
		t.Fatalf("expected tags sealed, got %s", state)
	}
	if err := derived.Write(derived.Root(), Name("tags"), []int{1}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected list<int> to be rejected, got %v", err)
	}
}

func TestNonOverridableMembersFollowBase(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	mustWrite(t, derived, derived.Root(), Name("level"), 5)
	if state := derived.Override(derived.Root(), Name("level")); state != OverrideNone {
		t.Fatalf("expected level to stay none, got %s", state)
	}
	err := derived.SetOverride(derived.Root(), Name("level"), OverrideSealed)
	if !errors.Is(err, ErrInvalidOverrideTransition) {
		t.Fatalf("expected sealing level to fail, got %v", err)
	}
	mustRefresh(t, derived)
	if got := valueAt(t, derived, "level"); got != int64(1) {
		t.Fatalf("expected level to follow base, got %v", got)
	}
}

func TestInsertMarksNewItems(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	tags := nodeAt(t, derived, "tags")
	slot := mustInsert(t, derived, tags, Seq(2), "c")
	if state := derived.Override(tags, ByItem(slot.ItemID())); state != OverrideNew {
		t.Fatalf("expected inserted item new, got %s", state)
	}
	loot := nodeAt(t, derived, "loot")
	gems := mustInsert(t, derived, loot, Key("gems"), 3)
	if state := derived.Override(loot, Key("gems")); state != OverrideNew {
		t.Fatalf("expected inserted entry new, got %s", state)
	}
	if gems.Key() != "gems" {
		t.Fatalf("expected key gems, got %v", gems.Key())
	}

	baseTags := nodeAt(t, base, "tags")
	baseSlot := mustInsert(t, base, baseTags, Seq(0), "z")
	if state := base.Override(baseTags, ByItem(baseSlot.ItemID())); state != OverrideNone {
		t.Fatalf("expected base insert to stay none, got %s", state)
	}
}

func TestInsertRejectsMismatchedIndices(t *testing.T) {
	g := newEnemyBase(t)
	tags := nodeAt(t, g, "tags")
	loot := nodeAt(t, g, "loot")

	cases := []struct {
		name string
		node *Node
		idx  Index
		val  any
		want error
	}{
		{name: "key on list", node: tags, idx: Key("x"), val: "x", want: ErrInvalidIndex},
		{name: "position on map", node: loot, idx: Seq(0), val: 1, want: ErrInvalidIndex},
		{name: "out of range", node: tags, idx: Seq(5), val: "x", want: ErrInvalidIndex},
		{name: "object node", node: g.Root(), idx: Seq(0), val: "x", want: ErrInvalidIndex},
		{name: "duplicate key", node: loot, idx: Key("gold"), val: 1, want: ErrInvalidIndex},
		{name: "wrong element", node: tags, idx: Seq(0), val: 7, want: ErrTypeMismatch},
		{name: "uncomparable key", node: loot, idx: Key([]string{"x"}), val: 1, want: ErrInvalidIndex},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := g.Insert(tc.node, tc.idx, tc.val); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := scalars(t, g, "tags"); !slices.Equal(got, []any{"a", "b"}) {
		t.Fatalf("expected failed inserts to leave tags untouched, got %v", got)
	}
}

func TestRemoveLeavesDeletedMarker(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	tags := nodeAt(t, derived, "tags")
	first, _ := tags.Item(0)
	removed := first.ItemID()
	if err := derived.Remove(tags, Seq(0)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := derived.Deleted(tags); !slices.Equal(got, []ItemID{removed}) {
		t.Fatalf("expected deleted marker for %s, got %v", removed, got)
	}

	local := mustInsert(t, derived, tags, Seq(1), "c")
	if err := derived.Remove(tags, ByItem(local.ItemID())); err != nil {
		t.Fatalf("remove new item: %v", err)
	}
	if got := derived.Deleted(tags); len(got) != 1 {
		t.Fatalf("expected removing a new item to leave no marker, got %v", got)
	}

	mustRefresh(t, derived)
	if got := scalars(t, derived, "tags"); !slices.Equal(got, []any{"b"}) {
		t.Fatalf("expected removed item to stay removed, got %v", got)
	}
	if err := derived.Remove(derived.Root(), Name("name")); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected removing a member to fail, got %v", err)
	}
}

func TestSetOverrideTransitions(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)
	tags := nodeAt(t, derived, "tags")
	inherited, _ := tags.Item(0)
	local := mustInsert(t, derived, tags, Seq(2), "c")

	cases := []struct {
		name  string
		node  *Node
		sel   Selector
		state OverrideState
		want  error
	}{
		{name: "new on inherited item", node: tags, sel: ByItem(inherited.ItemID()), state: OverrideNew, want: ErrInvalidOverrideTransition},
		{name: "new on member", node: derived.Root(), sel: Name("name"), state: OverrideNew, want: ErrInvalidOverrideTransition},
		{name: "seal unknown member", node: derived.Root(), sel: Name("mana"), state: OverrideSealed, want: ErrInvalidOverrideTransition},
		{name: "seal missing position", node: tags, sel: Seq(9), state: OverrideSealed, want: ErrInvalidOverrideTransition},
		{name: "unknown state", node: derived.Root(), sel: Name("name"), state: OverrideState(9), want: ErrInvalidOverrideTransition},
		{name: "seal member", node: derived.Root(), sel: Name("name"), state: OverrideSealed},
		{name: "seal twice", node: derived.Root(), sel: Name("name"), state: OverrideSealed},
		{name: "new on local item", node: tags, sel: ByItem(local.ItemID()), state: OverrideNew},
		{name: "clear", node: derived.Root(), sel: Name("health"), state: OverrideNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := derived.SetOverride(tc.node, tc.sel, tc.state)
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("set override: %v", err)
			}
			if got := derived.Override(tc.node, tc.sel); got != tc.state {
				t.Fatalf("expected %s, got %s", tc.state, got)
			}
		})
	}
	if got := valueAt(t, derived, "name"); got != "Enemy" {
		t.Fatalf("expected sealing to keep the value, got %v", got)
	}
}

func TestResetToBase(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)
	root := derived.Root()

	mustWrite(t, derived, root, Name("health"), 50)
	if err := derived.ResetToBase(root, Name("health")); err != nil {
		t.Fatalf("reset health: %v", err)
	}
	if got := valueAt(t, derived, "health"); got != int64(100) {
		t.Fatalf("expected base health after reset, got %v", got)
	}
	if state := derived.Override(root, Name("health")); state != OverrideNone {
		t.Fatalf("expected none after reset, got %s", state)
	}

	tags := nodeAt(t, derived, "tags")
	local := mustInsert(t, derived, tags, Seq(2), "c")
	if err := derived.ResetToBase(tags, ByItem(local.ItemID())); err != nil {
		t.Fatalf("reset new item: %v", err)
	}
	if got := scalars(t, derived, "tags"); !slices.Equal(got, []any{"a", "b"}) {
		t.Fatalf("expected new item removed by reset, got %v", got)
	}

	if err := derived.Remove(tags, Seq(0)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := derived.ResetToBase(root, Name("tags")); err != nil {
		t.Fatalf("reset tags: %v", err)
	}
	if got := scalars(t, derived, "tags"); !slices.Equal(got, []any{"a", "b"}) {
		t.Fatalf("expected removed item restored, got %v", got)
	}
	if got := derived.Deleted(nodeAt(t, derived, "tags")); len(got) != 0 {
		t.Fatalf("expected deleted markers cleared, got %v", got)
	}

	// Nested overrides below a reset object member survive.
	stats := nodeAt(t, derived, "stats")
	mustWrite(t, derived, stats, Name("armor"), 9.5)
	mustWrite(t, base, nodeAt(t, base, "stats"), Name("speed"), 4.0)
	if err := derived.ResetToBase(root, Name("stats")); err != nil {
		t.Fatalf("reset stats: %v", err)
	}
	if got := valueAt(t, derived, "stats.armor"); got != 9.5 {
		t.Fatalf("expected nested override kept, got %v", got)
	}
	if got := valueAt(t, derived, "stats.speed"); got != 4.0 {
		t.Fatalf("expected reset to pull base speed, got %v", got)
	}
}

func TestResetToBaseWithoutBase(t *testing.T) {
	g := newEnemyBase(t)
	if err := g.ResetToBase(g.Root(), Name("health")); !errors.Is(err, ErrUnresolvedBase) {
		t.Fatalf("expected ErrUnresolvedBase, got %v", err)
	}
}

func TestMoveKeepsLocalOrder(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)
	tags := nodeAt(t, derived, "tags")

	if err := derived.Move(tags, 1, 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	mustRefresh(t, derived)
	if got := scalars(t, derived, "tags"); !slices.Equal(got, []any{"b", "a"}) {
		t.Fatalf("expected local order to survive refresh, got %v", got)
	}
	if err := derived.Move(tags, 0, 5); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected out of range move to fail, got %v", err)
	}
}

func TestOverridesEnumeration(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)
	root := derived.Root()

	mustWrite(t, derived, root, Name("name"), "Boss")
	mustWrite(t, derived, root, Name("health"), 50)
	stats := nodeAt(t, derived, "stats")
	mustWrite(t, derived, stats, Name("armor"), 2.5)
	local := mustInsert(t, derived, nodeAt(t, derived, "tags"), Seq(0), "c")

	var members []string
	for sel, state := range derived.Overrides(root) {
		members = append(members, sel.String()+"="+state.String())
	}
	if want := []string{"name=sealed", "health=sealed"}; !slices.Equal(members, want) {
		t.Fatalf("expected %v, got %v", want, members)
	}

	var paths []string
	for path, state := range derived.AllOverrides() {
		paths = append(paths, path.String()+"="+state.String())
	}
	want := []string{
		"name=sealed",
		"health=sealed",
		"tags[#" + local.ItemID().String() + "]=new",
		"stats.armor=sealed",
	}
	if !slices.Equal(paths, want) {
		t.Fatalf("expected %v, got %v", want, paths)
	}

	count := 0
	for range derived.AllOverrides() {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected early break to stop enumeration")
	}
}

func TestLookupPaths(t *testing.T) {
	g := newEnemyBase(t)
	tags := nodeAt(t, g, "tags")
	second, _ := tags.Item(1)

	cases := []struct {
		path string
		want any
	}{
		{path: "tags[1]", want: "b"},
		{path: "tags[#" + second.ItemID().String() + "]", want: "b"},
		{path: `loot["gold"]`, want: int64(10)},
		{path: "stats.armor", want: 1.5},
	}
	for _, tc := range cases {
		if got := valueAt(t, g, tc.path); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.path, tc.want, got)
		}
	}
	if _, err := g.Lookup("stats.mana"); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected unknown member error, got %v", err)
	}
	if _, err := g.Lookup("tags[x"); err == nil {
		t.Fatalf("expected malformed path error")
	}
}

func TestExportAndDecode(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)
	mustWrite(t, derived, derived.Root(), Name("health"), 50)

	type enemyView struct {
		Name   string         `json:"name"`
		Health int            `json:"health"`
		Tags   []string       `json:"tags"`
		Loot   map[string]int `json:"loot"`
		Stats  struct {
			Armor float64 `json:"armor"`
		} `json:"stats"`
	}
	view, err := Decode[enemyView](derived)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Name != "Enemy" || view.Health != 50 || !slices.Equal(view.Tags, []string{"a", "b"}) {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Loot["gold"] != 10 || view.Stats.Armor != 1.5 {
		t.Fatalf("unexpected nested view %+v", view)
	}

	if _, err := Decode[enemyView](derived, DecodeStrict[enemyView]()); err == nil {
		t.Fatalf("expected strict decode to reject undeclared members")
	}

	exported, ok := derived.Export(nil).(map[string]any)
	if !ok || exported["health"] != int64(50) {
		t.Fatalf("unexpected export %#v", exported)
	}
}
