package activity

import (
	"context"
	"strings"
)

// DefaultChannel is stamped on events emitted without a channel.
const DefaultChannel = "archetype"

// Config holds the defaults an Emitter applies to every event.
type Config struct {
	Enabled  bool
	Channel  string
	ActorID  string
	TenantID string
}

// Emitter forwards graph events to hooks, filling in the configured channel
// and actor when an event leaves them empty.
type Emitter struct {
	hooks    Hooks
	channel  string
	actorID  string
	tenantID string
}

// NewEmitter returns an emitter for hooks. It stays disabled unless
// cfg.Enabled is set and at least one non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	e := &Emitter{
		channel:  strings.TrimSpace(cfg.Channel),
		actorID:  strings.TrimSpace(cfg.ActorID),
		tenantID: strings.TrimSpace(cfg.TenantID),
	}
	if e.channel == "" {
		e.channel = DefaultChannel
	}
	if cfg.Enabled {
		for _, hook := range hooks {
			if hook != nil {
				e.hooks = append(e.hooks, hook)
			}
		}
	}
	return e
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit applies the defaults and notifies the hooks.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.tenantID
	}
	return e.hooks.Notify(ctx, event)
}
