package archetype

import (
	"slices"
	"testing"
)

func TestSubscribeReportsValueThenOverrideChange(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	var events []ChangeEvent
	unsubscribe := derived.Subscribe(func(event ChangeEvent) {
		events = append(events, event)
	})

	mustWrite(t, derived, derived.Root(), Name("health"), 50)
	var types []ChangeType
	for _, event := range events {
		types = append(types, event.Type)
	}
	if want := []ChangeType{ValueChanged, OverrideChanged}; !slices.Equal(types, want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	changed := events[0]
	if changed.Asset != derived.ID() || changed.Path.String() != "health" || changed.Old != int64(100) || changed.New != int64(50) {
		t.Fatalf("unexpected value event %+v", changed)
	}
	if changed.FromBase {
		t.Fatalf("expected local edit not to be marked from base")
	}
	if events[1].Old != OverrideNone || events[1].New != OverrideSealed {
		t.Fatalf("unexpected override event %+v", events[1])
	}

	// Rewriting the same value commits nothing.
	events = nil
	mustWrite(t, derived, derived.Root(), Name("health"), 50)
	if len(events) != 0 {
		t.Fatalf("expected no events for an unchanged value, got %d", len(events))
	}

	unsubscribe()
	mustWrite(t, derived, derived.Root(), Name("name"), "Boss")
	if len(events) != 0 {
		t.Fatalf("expected no events after unsubscribe, got %d", len(events))
	}
}

func TestRefreshEventsAreMarkedFromBase(t *testing.T) {
	base := newEnemyBase(t)
	derived := derive(t, base)

	var events []ChangeEvent
	derived.Subscribe(func(event ChangeEvent) {
		events = append(events, event)
	})
	mustWrite(t, base, base.Root(), Name("name"), "Elite")
	mustInsert(t, base, nodeAt(t, base, "tags"), Seq(2), "d")
	mustRefresh(t, derived)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != ValueChanged || events[1].Type != ItemAdded {
		t.Fatalf("unexpected event types %s, %s", events[0].Type, events[1].Type)
	}
	for _, event := range events {
		if !event.FromBase {
			t.Fatalf("expected %s to be marked from base", event.Type)
		}
	}
}

func TestSubscribeChannelDropsWhenFull(t *testing.T) {
	g := newEnemyBase(t)
	ch, unsubscribe := g.SubscribeChannel(1)

	mustWrite(t, g, g.Root(), Name("name"), "One")
	mustWrite(t, g, g.Root(), Name("name"), "Two")
	mustWrite(t, g, g.Root(), Name("name"), "Three")

	event := <-ch
	if event.New != "One" {
		t.Fatalf("expected the first event to be buffered, got %v", event.New)
	}
	if dropped := g.Dropped(); dropped != 2 {
		t.Fatalf("expected 2 dropped events, got %d", dropped)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unsubscribe")
	}
}

func TestChangeTypeString(t *testing.T) {
	cases := map[ChangeType]string{
		ValueChanged:    "value.changed",
		ItemAdded:       "item.added",
		ItemRemoved:     "item.removed",
		ItemMoved:       "item.moved",
		KeyChanged:      "key.changed",
		OverrideChanged: "override.changed",
		ChangeType(42):  "ChangeType(42)",
	}
	for changeType, want := range cases {
		if got := changeType.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestRemovingReferencedNodeClearsReferrers(t *testing.T) {
	grunt := &Enemy{Name: "Grunt"}
	brute := &Enemy{Name: "Brute"}
	g, err := NewGraph(NewAssetID(), &Encounter{Title: "Ambush", Boss: grunt, Roster: []*Enemy{grunt, brute}})
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	if valueAt(t, g, "boss") != nodeAt(t, g, "roster[0]") {
		t.Fatalf("expected boss to reference the first roster entry")
	}

	var events []ChangeEvent
	g.Subscribe(func(event ChangeEvent) {
		events = append(events, event)
	})
	if err := g.Remove(nodeAt(t, g, "roster"), Seq(0)); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if got := valueAt(t, g, "boss"); got != nil {
		t.Fatalf("expected boss cleared, got %v", got)
	}
	if len(events) != 2 || events[0].Type != ItemRemoved || events[1].Type != ValueChanged {
		t.Fatalf("expected item removal then reference change, got %+v", events)
	}
	cleared := events[1]
	if cleared.Path.String() != "boss" || cleared.New != nil {
		t.Fatalf("unexpected reference event %+v", cleared)
	}
	if old, ok := cleared.Old.(*Node); !ok || !old.Released() {
		t.Fatalf("expected the released target as old value, got %v", cleared.Old)
	}
}
