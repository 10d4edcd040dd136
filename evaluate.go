package archetype

import (
	"errors"
	"time"
)

var ErrNoEvaluator = errors.New("archetype: evaluator not configured")

var errEmptyExpression = errors.New("archetype: expression must not be empty")

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Asset    AssetID
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) assetLabel() string {
	if ctx.Asset.IsZero() {
		return "unknown"
	}
	return ctx.Asset.String()
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// Evaluate runs expr with the exported root of the graph as its snapshot.
// Top level members are bound as variables.
func (g *Graph) Evaluate(expr string) (any, error) {
	return g.EvaluateWith(RuleContext{}, expr)
}

// EvaluateWith runs expr using ctx, falling back to the exported root when
// ctx.Snapshot is nil.
func (g *Graph) EvaluateWith(ctx RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, errEmptyExpression
	}
	evaluator, err := g.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	if ctx.Snapshot == nil {
		ctx.Snapshot = g.Export(g.root)
	}
	if ctx.Asset.IsZero() {
		ctx.Asset = g.id
	}
	ctx = ctx.withDefaults()
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, expr)
	duration := time.Since(start)
	evalErr = wrapEvaluationError(engine, expr, ctx.assetLabel(), evalErr)
	g.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Op:       "evaluate",
		Engine:   engine,
		Expr:     expr,
		Asset:    ctx.assetLabel(),
		Duration: duration,
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func (g *Graph) resolveEvaluator() (Evaluator, error) {
	if g.cfg.evaluator != nil {
		return g.cfg.evaluator, nil
	}
	evaluator := NewExprEvaluator(UseProgramCache(g.cfg.programCache), UseFunctions(g.cfg.functions))
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	g.cfg.evaluator = evaluator
	return evaluator, nil
}

func (g *Graph) evaluatorLogger() EvaluatorLogger {
	if g.cfg.evalLogger != nil {
		return g.cfg.evalLogger
	}
	return noopEvaluatorLogger{}
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}
