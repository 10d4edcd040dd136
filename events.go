package archetype

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/goliatone/go-archetype/pkg/activity"
)

// ChangeType classifies a committed mutation.
type ChangeType uint8

const (
	ValueChanged ChangeType = iota
	ItemAdded
	ItemRemoved
	ItemMoved
	KeyChanged
	OverrideChanged
)

func (t ChangeType) String() string {
	switch t {
	case ValueChanged:
		return "value.changed"
	case ItemAdded:
		return "item.added"
	case ItemRemoved:
		return "item.removed"
	case ItemMoved:
		return "item.moved"
	case KeyChanged:
		return "key.changed"
	case OverrideChanged:
		return "override.changed"
	default:
		return fmt.Sprintf("ChangeType(%d)", uint8(t))
	}
}

// ChangeEvent describes one committed mutation. Old and New hold scalars,
// plain exported data for replaced subtrees, or override states for
// OverrideChanged. FromBase is set for mutations applied by a refresh.
type ChangeEvent struct {
	Type     ChangeType
	Asset    AssetID
	Node     *Node
	Selector Selector
	Slot     *Slot
	Path     Path
	Old      any
	New      any
	FromBase bool
}

type graphSubscriber struct {
	id int
	fn func(ChangeEvent)
}

// Subscribe registers fn for every change of the graph. Observers run
// synchronously on the mutating goroutine.
func (g *Graph) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	g.nextSubscriber++
	id := g.nextSubscriber
	g.subscribers = append(g.subscribers, graphSubscriber{id: id, fn: fn})
	return func() {
		for i, sub := range g.subscribers {
			if sub.id == id {
				g.subscribers = append(g.subscribers[:i], g.subscribers[i+1:]...)
				return
			}
		}
	}
}

// SubscribeChannel delivers changes on a buffered channel. Sends never
// block: events that do not fit the buffer are dropped and counted by
// Dropped. The channel is closed on unsubscribe.
func (g *Graph) SubscribeChannel(buffer int) (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, buffer)
	closed := false
	unsubscribe := g.Subscribe(func(event ChangeEvent) {
		select {
		case ch <- event:
		default:
			atomic.AddUint64(&g.dropped, 1)
		}
	})
	return ch, func() {
		if closed {
			return
		}
		closed = true
		unsubscribe()
		close(ch)
	}
}

// Dropped returns the number of events dropped by channel subscribers.
func (g *Graph) Dropped() uint64 {
	return atomic.LoadUint64(&g.dropped)
}

func (g *Graph) publish(event ChangeEvent) {
	event.Asset = g.id
	if event.Path == nil && event.Slot != nil {
		event.Path = SlotPath(event.Slot)
	}
	if g.cfg.metrics != nil {
		g.cfg.metrics.RecordChange(event.Type.String(), event.FromBase)
	}
	for _, sub := range append([]graphSubscriber(nil), g.subscribers...) {
		sub.fn(event)
	}
	g.emitActivity(event)
}

func (g *Graph) emitActivity(event ChangeEvent) {
	if !g.emitter.Enabled() {
		return
	}
	input := activity.NodeEventInput{
		AssetID:  g.id.String(),
		Path:     event.Path.String(),
		OldValue: activityValue(event.Old),
		NewValue: activityValue(event.New),
		FromBase: event.FromBase,
	}
	var evt activity.Event
	switch event.Type {
	case ItemAdded:
		evt = activity.BuildItemAddedEvent(input)
	case ItemRemoved:
		evt = activity.BuildItemRemovedEvent(input)
	case OverrideChanged:
		if state, ok := event.New.(OverrideState); ok {
			input.State = state.String()
		}
		evt = activity.BuildOverrideChangedEvent(input)
	default:
		evt = activity.BuildNodeUpdatedEvent(input)
	}
	if err := g.emitter.Emit(context.Background(), evt); err != nil {
		g.logger.Warn("archetype: activity hook failed", "asset", g.id.String(), "verb", evt.Verb, "error", err)
	}
}

func (g *Graph) emitRefreshed(report *SyncReport) {
	if !g.emitter.Enabled() || g.baseID.IsZero() {
		return
	}
	evt := activity.BuildRefreshedEvent(activity.RefreshEventInput{
		AssetID:  g.id.String(),
		BaseID:   g.baseID.String(),
		Changes:  report.Changes,
		Orphans:  len(report.Orphans),
		Errors:   len(report.Errors),
		Duration: report.Duration,
	})
	if err := g.emitter.Emit(context.Background(), evt); err != nil {
		g.logger.Warn("archetype: activity hook failed", "asset", g.id.String(), "verb", evt.Verb, "error", err)
	}
}

func activityValue(v any) any {
	switch typed := v.(type) {
	case *Node:
		return exportNode(typed)
	case OverrideState:
		return typed.String()
	}
	return v
}
