package rules

import (
	"errors"
	"testing"
)

func TestFailWrapsPlainErrors(t *testing.T) {
	base := errors.New("boom")
	err := fail(PhaseEval, "expr", "propertyType == nil", "subject/site", base)

	var ruleErr *Error
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if ruleErr.Backend != "expr" || ruleErr.Phase != PhaseEval {
		t.Fatalf("unexpected metadata %+v", ruleErr)
	}
	if ruleErr.At != "subject/site" {
		t.Fatalf("expected location, got %q", ruleErr.At)
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped error should unwrap to base error")
	}
	want := `rules: expr eval "propertyType == nil" at subject/site: boom`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestFailFillsExistingErrors(t *testing.T) {
	existing := &Error{Backend: "cel", Phase: PhaseCompile, Err: errors.New("bad")}

	err := fail(PhaseEval, "expr", "x > 1", "income", existing)
	if err != existing {
		t.Fatalf("expected the existing error back")
	}
	if existing.Backend != "cel" || existing.Phase != PhaseCompile {
		t.Fatalf("set fields should not be overwritten, got %+v", existing)
	}
	if existing.Expr != "x > 1" || existing.At != "income" {
		t.Fatalf("missing fields should be filled, got %+v", existing)
	}
}

func TestCompileErrorsOmitLocation(t *testing.T) {
	_, err := NewCompiler().Compile(`propertyType +* 1`)
	var ruleErr *Error
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ruleErr.At != "" || ruleErr.Phase != PhaseCompile {
		t.Fatalf("unexpected metadata %+v", ruleErr)
	}
}
