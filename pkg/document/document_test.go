package document_test

import (
	"strings"
	"testing"

	archetype "github.com/goliatone/go-archetype"
	"github.com/goliatone/go-archetype/pkg/document"
	"github.com/stretchr/testify/require"
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

type Squad struct {
	Title   string
	Leader  *Enemy `asset:"leader,ref"`
	Members []*Enemy
}

type triple struct {
	Path  string
	State string
	Kind  string
	Value any
}

func triples(g *archetype.Graph) []triple {
	var out []triple
	for _, field := range g.Fields() {
		out = append(out, triple{
			Path:  field.Path.String(),
			State: field.State.String(),
			Kind:  field.Kind,
			Value: field.Value,
		})
	}
	return out
}

func newTemplate(t *testing.T) *archetype.Graph {
	t.Helper()
	base, err := archetype.NewGraph(archetype.NewAssetID(), &Enemy{
		Name:   "Enemy",
		Health: 100,
		Tags:   []string{"a", "b"},
		Loot:   map[string]int{"gold": 10, "gems": 1},
		Stats:  Stats{Armor: 1.5, Speed: 3},
		Level:  1,
	})
	require.NoError(t, err)
	return base
}

func TestRoundTripPreservesStatesAndValues(t *testing.T) {
	base := newTemplate(t)
	derived, err := archetype.Derive(archetype.NewAssetID(), base)
	require.NoError(t, err)

	root := derived.Root()
	require.NoError(t, derived.Write(root, archetype.Name("health"), 50))

	tags, err := derived.NodeAt("tags")
	require.NoError(t, err)
	_, err = derived.Insert(tags, archetype.Seq(tags.Len()), "c")
	require.NoError(t, err)
	first, ok := tags.Item(0)
	require.True(t, ok)
	removed := first.ItemID()
	require.NoError(t, derived.Remove(tags, archetype.ByItem(removed)))

	stats, err := derived.NodeAt("stats")
	require.NoError(t, err)
	require.NoError(t, derived.Write(stats, archetype.Name("speed"), 7))

	loot, err := derived.NodeAt("loot")
	require.NoError(t, err)
	_, err = derived.Insert(loot, archetype.Key("keys"), 2)
	require.NoError(t, err)

	data, err := document.Marshal(derived)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, "health*: 50")
	require.Contains(t, text, "speed*: 7.0")
	require.Contains(t, text, "level: nooverride int")
	require.Contains(t, text, "~gold: 10")

	doc, err := document.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, derived.ID(), doc.ID)
	require.Equal(t, base.ID(), doc.Base)

	graphs := archetype.NewGraphContainer()
	require.NoError(t, graphs.Register(base))
	loaded, err := doc.Load(graphs)
	require.NoError(t, err)

	require.Equal(t, triples(derived), triples(loaded))
	loadedTags, err := loaded.NodeAt("tags")
	require.NoError(t, err)
	require.Equal(t, []archetype.ItemID{removed}, loaded.Deleted(loadedTags))

	report, err := graphs.Refresh(t.Context(), loaded.ID())
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Zero(t, report.Changes)
	require.Equal(t, triples(derived), triples(loaded))
}

func TestRoundTripKeepsReferences(t *testing.T) {
	boss := &Enemy{Name: "Boss", Health: 500, Tags: []string{}, Loot: map[string]int{}}
	grunt := &Enemy{Name: "Grunt", Health: 20, Tags: []string{}, Loot: map[string]int{}}
	squad, err := archetype.NewGraph(archetype.NewAssetID(), &Squad{
		Title:   "Vanguard",
		Leader:  boss,
		Members: []*Enemy{boss, grunt},
	})
	require.NoError(t, err)

	data, err := document.Marshal(squad)
	require.NoError(t, err)
	doc, err := document.Unmarshal(data)
	require.NoError(t, err)
	loaded, err := doc.Load(nil)
	require.NoError(t, err)

	leader, err := loaded.Lookup("leader")
	require.NoError(t, err)
	require.True(t, leader.IsReference())
	members, err := loaded.NodeAt("members")
	require.NoError(t, err)
	first, ok := members.Item(0)
	require.True(t, ok)
	require.Same(t, first.Node(), leader.Node())
	require.Equal(t, triples(squad), triples(loaded))
}

func TestUnmarshalRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		expect string
	}{
		{"missing id", "root: {}\n", "id is required"},
		{"missing root", "id: " + archetype.NewAssetID().String() + "\n", "has no root"},
		{"unknown key", "id: " + archetype.NewAssetID().String() + "\nextra: 1\n", "unknown key"},
		{"bad modifier", "id: " + archetype.NewAssetID().String() + "\ntypes:\n  Enemy:\n    hp: weak int\nroot: {}\n", "unknown modifier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := document.Unmarshal([]byte(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expect)
		})
	}
}

func TestLoadRejectsUnknownMembers(t *testing.T) {
	input := strings.Join([]string{
		"id: " + archetype.NewAssetID().String(),
		"types:",
		"  Stats:",
		"    armor: float",
		"root:",
		"  ~type: Stats",
		"  armor: 1.0",
		"  speed: 2.0",
		"",
	}, "\n")
	doc, err := document.Unmarshal([]byte(input))
	require.NoError(t, err)
	_, err = doc.Load(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `no member "speed"`)
}

func TestLoadRejectsMisspelledMemberWithMissingOne(t *testing.T) {
	input := strings.Join([]string{
		"id: " + archetype.NewAssetID().String(),
		"types:",
		"  Stats:",
		"    armor: float",
		"    speed: float",
		"root:",
		"  ~type: Stats",
		"  armour: 1.0",
		"",
	}, "\n")
	doc, err := document.Unmarshal([]byte(input))
	require.NoError(t, err)
	_, err = doc.Load(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), `no member "armour"`)
	require.Contains(t, err.Error(), "line 8")
}

func TestMemberDeclString(t *testing.T) {
	decl := document.MemberDecl{Name: "leader", Type: archetype.ObjectType("Enemy"), Reference: true, NonOverridable: true}
	require.Equal(t, "nooverride ref Enemy", decl.String())
}
