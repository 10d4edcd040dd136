package archetype

// EngineOption configures the built-in expression evaluators.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// UseProgramCache stores compiled programs in cache, keyed by expression.
func UseProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// UseFunctions exposes a copy of registry to expressions.
func UseFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		cfg.functions = registry.Clone()
	}
}

func newEngineConfig(opts []EngineOption) engineConfig {
	var cfg engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// program returns the cached program of expression, or compiles and caches
// it. Cached values of another engine are ignored.
func program[P any](cfg engineConfig, expression string, compile func() (P, error)) (P, error) {
	if cfg.cache != nil {
		if cached, ok := cfg.cache.Get(expression); ok {
			if p, ok := cached.(P); ok {
				return p, nil
			}
		}
	}
	p, err := compile()
	if err != nil {
		return p, err
	}
	if cfg.cache != nil {
		cfg.cache.Set(expression, p)
	}
	return p, nil
}

// bindings returns the variables every engine exposes: now, args,
// metadata, asset and the members of a map snapshot. Snapshot members named
// in skip are left out.
func bindings(ctx RuleContext, skip map[string]bool) map[string]any {
	ctx = ctx.withDefaults()
	vars := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
		"asset":    "",
	}
	if !ctx.Asset.IsZero() {
		vars["asset"] = ctx.Asset.String()
	}
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		for key, value := range snapshot {
			if _, builtin := vars[key]; builtin || skip[key] {
				continue
			}
			vars[key] = value
		}
	}
	return vars
}

// callable returns the registry function name as a plain Go func, as used
// by the expr and goja bindings.
func (cfg engineConfig) callable(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return cfg.functions.Call(name, args...)
	}
}
