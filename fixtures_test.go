package archetype

import (
	"testing"
)

type Stats struct {
	Armor float64
	Speed float64
}

type Enemy struct {
	Name   string
	Health int
	Tags   []string
	Loot   map[string]int
	Stats  Stats
	Level  int `asset:"level,nooverride"`
}

type Wave struct {
	Label string
	Stats Stats
}

type Encounter struct {
	Title  string
	Waves  []Wave
	Boss   *Enemy `asset:"boss,ref"`
	Roster []*Enemy
}

type Loadout struct {
	Name  string
	Stats *Stats
}

func newEnemyBase(t *testing.T) *Graph {
	t.Helper()
	g, err := NewGraph(NewAssetID(), &Enemy{
		Name:   "Enemy",
		Health: 100,
		Tags:   []string{"a", "b"},
		Loot:   map[string]int{"gold": 10},
		Stats:  Stats{Armor: 1.5, Speed: 3},
		Level:  1,
	})
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return g
}

func derive(t *testing.T, base *Graph, opts ...Option) *Graph {
	t.Helper()
	g, err := Derive(NewAssetID(), base, opts...)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	return g
}

func nodeAt(t *testing.T, g *Graph, path string) *Node {
	t.Helper()
	n, err := g.NodeAt(path)
	if err != nil {
		t.Fatalf("node at %q: %v", path, err)
	}
	return n
}

func valueAt(t *testing.T, g *Graph, path string) any {
	t.Helper()
	slot, err := g.Lookup(path)
	if err != nil {
		t.Fatalf("lookup %q: %v", path, err)
	}
	return slot.Value()
}

func mustWrite(t *testing.T, g *Graph, node *Node, sel Selector, value any, opts ...WriteOption) {
	t.Helper()
	if err := g.Write(node, sel, value, opts...); err != nil {
		t.Fatalf("write %s: %v", sel, err)
	}
}

func mustInsert(t *testing.T, g *Graph, node *Node, idx Index, value any) *Slot {
	t.Helper()
	slot, err := g.Insert(node, idx, value)
	if err != nil {
		t.Fatalf("insert %s: %v", idx, err)
	}
	return slot
}

func mustRefresh(t *testing.T, g *Graph) *SyncReport {
	t.Helper()
	report := g.Refresh()
	if err := report.Err(); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return report
}

// scalars returns the scalar items of the list or map at path in order.
func scalars(t *testing.T, g *Graph, path string) []any {
	t.Helper()
	var out []any
	for _, slot := range nodeAt(t, g, path).Children() {
		out = append(out, slot.Value())
	}
	return out
}

func itemIDs(n *Node) []ItemID {
	var ids []ItemID
	for _, slot := range n.Children() {
		ids = append(ids, slot.ItemID())
	}
	return ids
}
