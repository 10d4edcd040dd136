package archetype

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// exprEvaluator runs expressions with github.com/expr-lang/expr. Undefined
// variables evaluate to nil. Registry functions are callable by name and
// through call(name, args...).
type exprEvaluator struct {
	cfg engineConfig
}

// NewExprEvaluator constructs the default evaluator.
func NewExprEvaluator(opts ...EngineOption) Evaluator {
	return &exprEvaluator{cfg: newEngineConfig(opts)}
}

func (e *exprEvaluator) Engine() string { return "expr" }

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *exprEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	prog, err := program(e.cfg, expression, func() (*exprvm.Program, error) {
		options := []exprlang.Option{
			exprlang.Env(map[string]any{}),
			exprlang.AllowUndefinedVariables(),
		}
		for _, name := range e.cfg.functions.Names() {
			options = append(options, exprlang.Function(name, e.cfg.callable(name)))
		}
		return exprlang.Compile(expression, options...)
	})
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	return &exprRule{evaluator: e, program: prog, expression: expression}, nil
}

type exprRule struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	vars := bindings(ctx, nil)
	if r.evaluator.cfg.functions != nil {
		vars["call"] = func(name string, args ...any) (any, error) {
			return r.evaluator.cfg.functions.Call(name, args...)
		}
	}
	out, err := exprlang.Run(r.program, vars)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.assetLabel(), err)
	}
	return out, nil
}
