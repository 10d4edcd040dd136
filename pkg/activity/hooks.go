package activity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
)

// Event is one activity record raised by a graph. AssetID and Path locate
// the change; ObjectID defaults to "<asset>#<path>" when left empty.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	TenantID   string
	AssetID    string
	Path       string
	ObjectType string
	ObjectID   string
	Channel    string
	Recipients []string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event carries the fields sinks key on.
func (e Event) Valid() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// ActivityHook receives normalized activity events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes event and forwards it to every hook. Invalid events are
// dropped silently. Hook failures are joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OnlyVerbs wraps hook so it only sees events whose verb is listed.
func OnlyVerbs(hook ActivityHook, verbs ...string) ActivityHook {
	allowed := slices.Clone(verbs)
	return HookFunc(func(ctx context.Context, event Event) error {
		if hook == nil || !slices.Contains(allowed, event.Verb) {
			return nil
		}
		return hook.Notify(ctx, event)
	})
}

// NormalizeEvent trims identifiers, fills ObjectID from AssetID and Path,
// copies metadata and recipients, and stamps OccurredAt when missing.
func NormalizeEvent(event Event) Event {
	out := event
	for _, field := range []*string{
		&out.Verb, &out.ActorID, &out.UserID, &out.TenantID, &out.AssetID,
		&out.Path, &out.ObjectType, &out.ObjectID, &out.Channel,
	} {
		*field = strings.TrimSpace(*field)
	}
	if out.ObjectID == "" {
		out.ObjectID = objectID(out.AssetID, out.Path, "")
	}
	out.Metadata = cloneMap(event.Metadata)
	out.Recipients = nil
	if len(event.Recipients) > 0 {
		out.Recipients = slices.Clone(event.Recipients)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}

// objectID joins asset and path as "<asset>#<path>", falling back to
// whichever part is set and then to fallback.
func objectID(asset, path, fallback string) string {
	asset, path = strings.TrimSpace(asset), strings.TrimSpace(path)
	switch {
	case asset != "" && path != "":
		return asset + "#" + path
	case asset != "":
		return asset
	case path != "":
		return path
	default:
		return fallback
	}
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
