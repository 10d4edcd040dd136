package archetype

import (
	"errors"
	"slices"
	"testing"
)

func TestGetOrCreateNodeReusesWrappedValues(t *testing.T) {
	c := NewNodeContainer()
	enemy := &Enemy{Name: "Enemy", Tags: []string{"a"}}

	first, err := c.GetOrCreateNode(enemy)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := c.GetOrCreateNode(enemy)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same node for the same pointer")
	}
	byID, err := c.GetOrCreateNode(first.ID())
	if err != nil || byID != first {
		t.Fatalf("expected lookup by identity, got %v %v", byID, err)
	}
	if first.Kind() != NodeObject || first.Type().String() != "Enemy" {
		t.Fatalf("unexpected root %s %s", first.Kind(), first.Type())
	}
}

func TestCloneKeepsItemIDs(t *testing.T) {
	g := newEnemyBase(t)
	clone, err := g.Container().Clone(g.Root())
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if clone.ID() == g.Root().ID() {
		t.Fatalf("expected a fresh root identity")
	}
	tags, _ := clone.Member("tags")
	if !slices.Equal(itemIDs(tags.Node()), itemIDs(nodeAt(t, g, "tags"))) {
		t.Fatalf("expected cloned items to keep their ids")
	}
	if err := g.Container().Set(clone, Name("name"), "Copy"); err != nil {
		t.Fatalf("set on clone: %v", err)
	}
	if valueAt(t, g, "name") != "Enemy" {
		t.Fatalf("expected the original untouched")
	}
}

func TestContainerIndexValidation(t *testing.T) {
	g := newEnemyBase(t)
	c := g.Container()
	tags := nodeAt(t, g, "tags")
	loot := nodeAt(t, g, "loot")

	cases := []struct {
		name string
		node *Node
		idx  Index
	}{
		{name: "key on list", node: tags, idx: Key("x")},
		{name: "position on map", node: loot, idx: Seq(0)},
		{name: "object", node: g.Root(), idx: Seq(0)},
		{name: "out of range", node: tags, idx: Seq(5)},
		{name: "negative", node: tags, idx: Seq(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Insert(tc.node, tc.idx, "v"); !errors.Is(err, ErrInvalidIndex) {
				t.Fatalf("expected ErrInvalidIndex, got %v", err)
			}
		})
	}
	if err := c.Remove(g.Root(), Name("name")); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected removing a member to fail, got %v", err)
	}
}

func TestContainerEpochAndObservers(t *testing.T) {
	g := newEnemyBase(t)
	c := g.Container()

	var events []ChangeEvent
	stop := c.Observe(func(event ChangeEvent) {
		events = append(events, event)
	})

	epoch := c.Epoch()
	if err := c.Set(g.Root(), Name("name"), "Boss"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if c.Epoch() != epoch {
		t.Fatalf("expected scalar writes to keep the epoch")
	}
	if _, err := c.Insert(nodeAt(t, g, "tags"), Seq(0), "z"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if c.Epoch() != epoch+1 {
		t.Fatalf("expected insert to bump the epoch, got %d", c.Epoch()-epoch)
	}
	if len(events) != 2 || events[0].Type != ValueChanged || events[1].Type != ItemAdded {
		t.Fatalf("expected one event per mutation, got %+v", events)
	}

	stop()
	if err := c.Move(nodeAt(t, g, "tags"), 0, 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected no events after stop, got %d", len(events))
	}
	if got := scalars(t, g, "tags"); !slices.Equal(got, []any{"a", "b", "z"}) {
		t.Fatalf("expected [a b z], got %v", got)
	}
}

func TestReleasedNodesAreDetached(t *testing.T) {
	g := newEnemyBase(t)
	stats := nodeAt(t, g, "stats")
	mustWrite(t, g, g.Root(), Name("stats"), Stats{Armor: 2})
	if !stats.Released() {
		t.Fatalf("expected the replaced subtree to be released")
	}
	if _, err := g.Container().Clone(stats); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got %v", err)
	}
	if err := g.Container().Set(stats, Name("armor"), 3.0); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached on released node, got %v", err)
	}
}

func TestMapKeysAreCoercedOnLookup(t *testing.T) {
	weights := ObjectType("Weights")
	g, err := NewGraph(NewAssetID(), Description{Type: weights, Members: []MemberValue{
		{Name: "table", Type: MapOf(FloatType, IntType), Value: Description{
			Type:  MapOf(FloatType, IntType),
			Items: []ItemValue{{Key: 0.5, Value: 1}},
		}},
	}})
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	table := nodeAt(t, g, "table")
	if _, err := g.Insert(table, Key(1), 5); err != nil {
		t.Fatalf("insert: %v", err)
	}

	value, err := g.Read(table, Key(1))
	if err != nil {
		t.Fatalf("read int key on float map: %v", err)
	}
	if value != int64(5) {
		t.Fatalf("expected 5, got %v", value)
	}
	if _, ok := table.ItemByKey(1); !ok {
		t.Fatalf("expected ItemByKey to coerce the key")
	}
	if _, err := g.Read(table, Key("1")); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("expected invalid index for a string key, got %v", err)
	}
}
