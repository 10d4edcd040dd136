//go:build js_eval

package archetype

import (
	"fmt"

	"github.com/dop251/goja"
)

// jsEvaluator runs expressions as JavaScript with goja. Each evaluation
// gets a fresh runtime.
type jsEvaluator struct {
	cfg engineConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	return &jsEvaluator{cfg: newEngineConfig(opts)}
}

func (e *jsEvaluator) Engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	prog, err := program(e.cfg, expression, func() (*goja.Program, error) {
		return goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	})
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	return &jsRule{evaluator: e, program: prog, expression: expression}, nil
}

type jsRule struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

func (r *jsRule) Evaluate(ctx RuleContext) (any, error) {
	vm := goja.New()
	for name, value := range bindings(ctx, nil) {
		if err := vm.Set(name, value); err != nil {
			return nil, wrapEvaluationError("js", r.expression, ctx.assetLabel(), err)
		}
	}
	if functions := r.evaluator.cfg.functions; functions != nil {
		_ = vm.Set("call", func(name string, args ...any) (any, error) {
			return functions.Call(name, args...)
		})
		for _, name := range functions.Names() {
			_ = vm.Set(name, r.evaluator.cfg.callable(name))
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapEvaluationError("js", r.expression, ctx.assetLabel(), err)
	}
	return value.Export(), nil
}
