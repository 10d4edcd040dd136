package archetype

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError reports a failed compile or evaluation together with the
// engine, the expression, the asset and, for Select, the field being
// evaluated.
type EvaluationError struct {
	Engine string
	Expr   string
	Asset  string
	Path   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "archetype: %s evaluator", e.Engine)
	if e.Expr == "" {
		sb.WriteString(" expr=<empty>")
	} else {
		fmt.Fprintf(&sb, " expr=%q", e.Expr)
	}
	if e.Asset != "" {
		fmt.Fprintf(&sb, " asset=%s", e.Asset)
	}
	if e.Path != "" {
		fmt.Fprintf(&sb, " path=%s", e.Path)
	}
	fmt.Fprintf(&sb, ": %v", e.Err)
	return sb.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// wrapEvaluationError returns err as an EvaluationError. An EvaluationError
// already in the chain is completed in place rather than nested.
func wrapEvaluationError(engine, expr, asset string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Asset: asset, Err: err}
	}
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&evalErr.Engine, engine)
	fill(&evalErr.Expr, expr)
	fill(&evalErr.Asset, asset)
	return evalErr
}

// fieldEvaluationError attributes err to the field at path.
func fieldEvaluationError(engine, expr, asset string, path Path, err error) error {
	wrapped := wrapEvaluationError(engine, expr, asset, err)
	var evalErr *EvaluationError
	if errors.As(wrapped, &evalErr) && evalErr.Path == "" {
		evalErr.Path = path.String()
	}
	return wrapped
}
