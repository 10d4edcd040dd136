package archetype

import (
	"slices"

	"github.com/goliatone/go-archetype/pkg/activity"
)

type activityConfig struct {
	hooks    activity.Hooks
	channel  string
	actorID  string
	tenantID string
}

// WithActivityHooks notifies hooks of every change of the graph and of
// every refresh. Nil hooks are dropped. A failing hook is logged; the
// mutation that raised the event still succeeds.
func WithActivityHooks(hooks activity.Hooks) Option {
	hooks = compactHooks(hooks)
	return func(cfg *config) {
		cfg.activity.hooks = hooks
	}
}

// WithActivityChannel sets the channel of emitted events. It defaults to
// activity.DefaultChannel.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.activity.channel = channel
	}
}

// WithActivityActor stamps actor and tenant ids on emitted events.
func WithActivityActor(actorID, tenantID string) Option {
	return func(cfg *config) {
		cfg.activity.actorID = actorID
		cfg.activity.tenantID = tenantID
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (g *Graph) ActivityHooks() activity.Hooks {
	if g == nil {
		return nil
	}
	return compactHooks(g.cfg.activity.hooks)
}

func (a activityConfig) emitter() *activity.Emitter {
	return activity.NewEmitter(a.hooks, activity.Config{
		Enabled:  len(a.hooks) > 0,
		Channel:  a.channel,
		ActorID:  a.actorID,
		TenantID: a.tenantID,
	})
}

func compactHooks(hooks activity.Hooks) activity.Hooks {
	out := slices.DeleteFunc(slices.Clone(hooks), func(hook activity.ActivityHook) bool {
		return hook == nil
	})
	if len(out) == 0 {
		return nil
	}
	return out
}
