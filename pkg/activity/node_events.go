package activity

import (
	"strings"
	"time"
)

// NodeEventInput describes the common fields for graph change events.
type NodeEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	AssetID    string
	Channel    string
	Recipients []string
	Metadata   map[string]any
	Path       string
	OldValue   any
	NewValue   any
	// State is the override state after an override change.
	State string
	// FromBase marks changes applied by a refresh rather than an edit.
	FromBase   bool
	OccurredAt time.Time
}

// RefreshEventInput summarizes one refresh of an asset.
type RefreshEventInput struct {
	ActorID    string
	TenantID   string
	AssetID    string
	BaseID     string
	Channel    string
	Changes    int
	Orphans    int
	Errors     int
	Duration   time.Duration
	OccurredAt time.Time
}

// BuildNodeUpdatedEvent constructs an event for a changed member or item
// value.
func BuildNodeUpdatedEvent(input NodeEventInput) Event {
	return buildNodeEvent("node.updated", "asset.node", input)
}

// BuildItemAddedEvent constructs an event for an item inserted into a list or
// map.
func BuildItemAddedEvent(input NodeEventInput) Event {
	return buildNodeEvent("item.added", "asset.item", input)
}

// BuildItemRemovedEvent constructs an event for a removed item.
func BuildItemRemovedEvent(input NodeEventInput) Event {
	return buildNodeEvent("item.removed", "asset.item", input)
}

// BuildOverrideChangedEvent constructs an event for an override state
// transition.
func BuildOverrideChangedEvent(input NodeEventInput) Event {
	return buildNodeEvent("override.changed", "asset.override", input)
}

// BuildRefreshedEvent constructs an event summarizing a refresh.
func BuildRefreshedEvent(input RefreshEventInput) Event {
	metadata := map[string]any{
		"changes":     input.Changes,
		"orphans":     input.Orphans,
		"errors":      input.Errors,
		"duration_ms": input.Duration.Milliseconds(),
	}
	if base := strings.TrimSpace(input.BaseID); base != "" {
		metadata["base_id"] = base
	}
	return Event{
		Verb:       "asset.refreshed",
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		AssetID:    strings.TrimSpace(input.AssetID),
		ObjectType: "asset",
		ObjectID:   strings.TrimSpace(input.AssetID),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func buildNodeEvent(verb, objectType string, input NodeEventInput) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata["from_base"] = input.FromBase
	if input.Path != "" {
		metadata["path"] = input.Path
	}
	if input.State != "" {
		metadata["state"] = input.State
	}
	if input.OldValue != nil {
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata["new_value"] = input.NewValue
	}

	var recipients []string
	if len(input.Recipients) > 0 {
		recipients = append(recipients, input.Recipients...)
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		AssetID:    strings.TrimSpace(input.AssetID),
		Path:       strings.TrimSpace(input.Path),
		ObjectType: objectType,
		ObjectID:   objectID(input.AssetID, input.Path, objectType),
		Channel:    strings.TrimSpace(input.Channel),
		Recipients: recipients,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
