package activity

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestNormalizeEvent(t *testing.T) {
	meta := map[string]any{"k": "v"}
	recipients := []string{"a", "b"}
	evt := Event{
		Verb:       " node.updated ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		AssetID:    " asset-1 ",
		Path:       " stats.armor ",
		ObjectType: " asset.node ",
		Recipients: recipients,
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)
	if got.Verb != "node.updated" || got.ActorID != "actor" || got.TenantID != "tenant" || got.ObjectType != "asset.node" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.ObjectID != "asset-1#stats.armor" {
		t.Fatalf("expected object id derived from asset and path, got %q", got.ObjectID)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	got.Recipients[0] = "changed"
	if meta["k"] != "v" || recipients[0] != "a" {
		t.Fatalf("expected inputs untouched: %+v %+v", meta, recipients)
	}

	explicit := NormalizeEvent(Event{AssetID: "asset-1", ObjectID: "custom"})
	if explicit.ObjectID != "custom" {
		t.Fatalf("expected explicit object id kept, got %q", explicit.ObjectID)
	}
}

func TestHooksNotify(t *testing.T) {
	capture := &CaptureHook{}
	var sawContext bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, _ Event) error {
			sawContext = ctx != nil
			return nil
		}),
		capture,
		nil,
		HookFunc(func(context.Context, Event) error { return errors.New("sink one") }),
		HookFunc(func(context.Context, Event) error { return errors.New("sink two") }),
	}

	if err := hooks.Notify(context.Background(), Event{}); err != nil {
		t.Fatalf("expected invalid events dropped without error, got %v", err)
	}
	if len(capture.Events) != 0 {
		t.Fatalf("expected invalid event skipped")
	}

	err := hooks.Notify(nil, Event{Verb: "item.added", ObjectType: "asset.item", AssetID: "a", Path: "tags"})
	if err == nil || err.Error() != "sink one\nsink two" {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if !sawContext {
		t.Fatalf("expected a non-nil context")
	}
	if len(capture.Events) != 1 || capture.Events[0].ObjectID != "a#tags" {
		t.Fatalf("expected one normalized event, got %+v", capture.Events)
	}
}

func TestOnlyVerbs(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{OnlyVerbs(capture, "asset.refreshed")}

	for _, verb := range []string{"node.updated", "asset.refreshed", "item.added"} {
		if err := hooks.Notify(context.Background(), Event{Verb: verb, ObjectType: "asset", ObjectID: "a"}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	if got := capture.Verbs(); !slices.Equal(got, []string{"asset.refreshed"}) {
		t.Fatalf("expected only refreshed events, got %v", got)
	}
	capture.Reset()
	if len(capture.Events) != 0 {
		t.Fatalf("expected reset to drop events")
	}
}

func TestEmitterDefaults(t *testing.T) {
	capture := &CaptureHook{}

	disabled := NewEmitter(Hooks{capture}, Config{})
	if disabled.Enabled() {
		t.Fatalf("expected emitter disabled without Enabled")
	}
	if err := disabled.Emit(context.Background(), Event{Verb: "item.added", ObjectType: "asset.item", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter disabled with only nil hooks")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true, ActorID: "editor", TenantID: "studio"})
	if err := enabled.Emit(context.Background(), Event{Verb: "item.added", ObjectType: "asset.item", ObjectID: "1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := enabled.Emit(context.Background(), Event{Verb: "item.added", ObjectType: "asset.item", ObjectID: "2", Channel: "custom", ActorID: "script", OccurredAt: at}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected two events, got %d", len(capture.Events))
	}
	first, second := capture.Events[0], capture.Events[1]
	if first.Channel != DefaultChannel || first.ActorID != "editor" || first.TenantID != "studio" {
		t.Fatalf("expected defaults applied, got %+v", first)
	}
	if second.Channel != "custom" || second.ActorID != "script" || !second.OccurredAt.Equal(at) {
		t.Fatalf("expected explicit fields kept, got %+v", second)
	}
}
