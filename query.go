package archetype

import (
	"fmt"
	"time"
)

// Select returns the fields for which expr evaluates to true. Each field is
// bound as:
//
//	path       string   canonical path, e.g. `tags[#<item id>]`
//	state      string   "none", "new" or "sealed"
//	overridden bool     state is not none
//	inherited  bool     the slot has a base counterpart
//	type       string   declared type, e.g. "list<string>"
//	kind       string   "scalar", "ref", "object", "list" or "map"
//	value      any      scalar value or reference target, nil for nodes
//	member     string   member name, empty for items
//	item       string   item id, empty for members
//	key        any      map key, nil otherwise
//	depth      int      number of path segments
//
// The expression is compiled once per call.
func (g *Graph) Select(expr string) ([]FieldDescriptor, error) {
	if expr == "" {
		return nil, errEmptyExpression
	}
	evaluator, err := g.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	label := g.id.String()
	start := time.Now()
	rule, err := evaluator.Compile(expr)
	if err != nil {
		err = wrapEvaluationError(engine, expr, label, err)
		g.logSelect(engine, expr, label, start, 0, err)
		return nil, err
	}

	now := time.Now()
	var matched []FieldDescriptor
	for _, field := range g.Fields() {
		out, err := rule.Evaluate(RuleContext{Snapshot: fieldEnvironment(field), Now: &now, Asset: g.id})
		if err != nil {
			err = fieldEvaluationError(engine, expr, label, field.Path, err)
			g.logSelect(engine, expr, label, start, len(matched), err)
			return nil, err
		}
		ok, isBool := out.(bool)
		if !isBool {
			err = fieldEvaluationError(engine, expr, label, field.Path, fmt.Errorf("expected bool result, got %T", out))
			g.logSelect(engine, expr, label, start, len(matched), err)
			return nil, err
		}
		if ok {
			matched = append(matched, field)
		}
	}
	g.logSelect(engine, expr, label, start, len(matched), nil)
	return matched, nil
}

func (g *Graph) logSelect(engine, expr, label string, start time.Time, matched int, err error) {
	g.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Op:       "select",
		Matched:  matched,
		Engine:   engine,
		Expr:     expr,
		Asset:    label,
		Duration: time.Since(start),
		Err:      err,
	})
}

func fieldEnvironment(field FieldDescriptor) map[string]any {
	env := map[string]any{
		"path":       field.Path.String(),
		"state":      field.State.String(),
		"overridden": field.State != OverrideNone,
		"inherited":  field.Inherited,
		"type":       field.Type.String(),
		"kind":       field.Kind,
		"value":      field.Value,
		"member":     "",
		"item":       "",
		"key":        field.Key,
		"depth":      len(field.Path),
	}
	if n := len(field.Path); n > 0 {
		last := field.Path[n-1]
		env["member"] = last.Member
		if !last.Item.IsZero() {
			env["item"] = last.Item.String()
		}
	}
	return env
}
