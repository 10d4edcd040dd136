package archetype

import (
	"errors"
	"testing"
)

func TestWrapEvaluationError(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", `state == "sealed" && missing`, "asset-1", base)

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected the cause to unwrap")
	}
	want := `archetype: expr evaluator expr="state == \"sealed\" && missing" asset=asset-1: boom`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if wrapEvaluationError("expr", "x", "a", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestWrapEvaluationErrorCompletesExisting(t *testing.T) {
	existing := &EvaluationError{Engine: "cel", Err: errors.New("compile failure")}

	err := wrapEvaluationError("expr", "inherited", "asset-9", existing)
	if err != existing {
		t.Fatalf("expected the existing error to be returned")
	}
	if existing.Engine != "cel" || existing.Expr != "inherited" || existing.Asset != "asset-9" {
		t.Fatalf("expected only missing fields filled, got %+v", existing)
	}
}

func TestFieldEvaluationErrorRecordsPath(t *testing.T) {
	path, err := ParsePath("stats.armor")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wrapped := fieldEvaluationError("expr", "value", "", path, errors.New("bad"))
	var evalErr *EvaluationError
	if !errors.As(wrapped, &evalErr) || evalErr.Path != "stats.armor" {
		t.Fatalf("expected path recorded, got %v", wrapped)
	}
	if wrapped.Error() != `archetype: expr evaluator expr="value" path=stats.armor: bad` {
		t.Fatalf("unexpected message %q", wrapped.Error())
	}
}
