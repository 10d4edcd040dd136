package archetype

import (
	"reflect"
	"slices"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celReserved lists snapshot members CEL cannot bind. "type" is the CEL
// type() builtin and "call" is the registry entry point.
var celReserved = map[string]bool{"type": true, "call": true}

// celEvaluator runs expressions with cel-go. Every snapshot member is
// declared as a dyn variable, so programs are checked against the member
// names of the first snapshot they see.
type celEvaluator struct {
	cfg engineConfig
}

type celProgram struct {
	program celgo.Program
	vars    []string
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	return &celEvaluator{cfg: newEngineConfig(opts)}
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile defers checking until the first evaluation, when the variables
// of the snapshot are known.
func (e *celEvaluator) Compile(expression string, _ ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, errEmptyExpression
	}
	return &celRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) compile(expression string, vars map[string]any) (*celProgram, error) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	opts := []celgo.EnvOption{}
	for _, name := range names {
		switch name {
		case "now":
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
		case "asset":
			opts = append(opts, celgo.Variable(name, celgo.StringType))
		default:
			opts = append(opts, celgo.Variable(name, celgo.DynType))
		}
	}
	if e.cfg.functions != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType},
				celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return e.call(name, nil)
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.call),
			),
		))
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	checked, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &celProgram{program: prg, vars: names}, nil
}

type celRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celRule) Evaluate(ctx RuleContext) (any, error) {
	vars := bindings(ctx, celReserved)
	prog, err := program(r.evaluator.cfg, r.expression, func() (*celProgram, error) {
		return r.evaluator.compile(r.expression, vars)
	})
	if err != nil {
		return nil, wrapEvaluationError("cel", r.expression, ctx.assetLabel(), err)
	}
	// Members missing from this snapshot bind as null.
	for _, name := range prog.vars {
		if _, ok := vars[name]; !ok {
			vars[name] = nil
		}
	}
	out, _, err := prog.program.Eval(vars)
	if err != nil {
		return nil, wrapEvaluationError("cel", r.expression, ctx.assetLabel(), err)
	}
	return out.Value(), nil
}

// call invokes a registry function from CEL as call(name) or
// call(name, [args]).
func (e *celEvaluator) call(nameVal, argsVal ref.Val) ref.Val {
	name, ok := nameVal.Value().(string)
	if !ok {
		return types.NewErr("archetype: call name must be string")
	}
	var args []any
	if argsVal != nil {
		native, err := argsVal.ConvertToNative(reflect.TypeOf([]any{}))
		if err != nil {
			return types.NewErr("archetype: call arguments: %v", err)
		}
		args, _ = native.([]any)
	}
	result, err := e.cfg.functions.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
