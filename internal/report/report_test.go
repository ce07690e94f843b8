package report_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/constraints"
	"github.com/sumtype/deadval/internal/depgraph"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/preprocess"
	"github.com/sumtype/deadval/internal/report"
)

// src is "let x = 1 in let y = 2 in x": the whole expression is exported
// as result, which reads x; y is bound but never read, so y's declaration and
// its initializer "2" should both come back dead.
const src = "let x = 1 in let y = 2 in x"

const fixtureJSON = `{
	"name": "R",
	"file": "r.ml",
	"source": "let x = 1 in let y = 2 in x",
	"exports": {"result": 1},
	"items": [
		{"kind": "value", "bindings": [
			{"pattern": {"kind": "pvar", "id": 1},
			 "rhs": {"kind": "let", "pos": {"filename": "r.ml", "line": 1, "start": 0, "end": 27},
				"bindings": [
					{"pattern": {"kind": "pvar", "id": 2, "pos": {"filename": "r.ml", "line": 1, "start": 4, "end": 5}},
					 "rhs": {"kind": "const", "repr": "1", "pos": {"filename": "r.ml", "line": 1, "start": 8, "end": 9}}}
				],
				"body": {"kind": "let", "pos": {"filename": "r.ml", "line": 1, "start": 13, "end": 27},
					"bindings": [
						{"pattern": {"kind": "pvar", "id": 3, "pos": {"filename": "r.ml", "line": 1, "start": 17, "end": 18}},
						 "rhs": {"kind": "const", "repr": "2", "pos": {"filename": "r.ml", "line": 1, "start": 21, "end": 22}}}
					],
					"body": {"kind": "var", "id": 2, "pos": {"filename": "r.ml", "line": 1, "start": 26, "end": 27}}
				}
			 }}
		]}
	]
}`

func buildReporter(t *testing.T, suppress []string) *report.Reporter {
	t.Helper()
	units, err := artifact.Load([]byte("[" + fixtureJSON + "]"))
	if err != nil {
		t.Fatalf("artifact.Load: %v", err)
	}
	u := units[0]

	alloc := &label.Allocator{}
	ix := preprocess.NewIndex(alloc)
	excLabel := alloc.New()
	preprocess.Walk(ix, u)

	cx := closure.NewContext()
	constraints.New(cx, ix, excLabel).Generate(u)
	closure.Solve(cx)

	g := depgraph.NewGraph()
	depgraph.NewCollector(g, cx, ix, excLabel).Collect(u)
	m := depgraph.Solve(g)

	return &report.Reporter{
		G:        g,
		M:        m,
		Cx:       cx,
		Ix:       ix,
		Sources:  map[string][]byte{"R": []byte(src)},
		Suppress: suppress,
	}
}

func TestReportFindsDeadBindingAndDeadExpression(t *testing.T) {
	r := buildReporter(t, nil)
	warnings := r.Report()
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(warnings), warnings)
	}

	var binding, expr *report.Warning
	for i := range warnings {
		switch warnings[i].Kind {
		case report.DeadBinding:
			binding = &warnings[i]
		case report.DeadExpression:
			expr = &warnings[i]
		}
	}
	if binding == nil {
		t.Fatal("missing dead-binding warning for y")
	}
	if binding.Start != 17 || binding.End != 18 {
		t.Errorf("dead-binding at [%d,%d), want [17,18)", binding.Start, binding.End)
	}
	if binding.Rule != report.Rule {
		t.Errorf("Rule = %q, want %q", binding.Rule, report.Rule)
	}

	if expr == nil {
		t.Fatal("missing dead-expression warning for the unused 2")
	}
	if expr.Start != 21 || expr.End != 22 {
		t.Errorf("dead-expression at [%d,%d), want [21,22)", expr.Start, expr.End)
	}
	if !strings.Contains(expr.Excerpt, "^") {
		t.Errorf("excerpt has no underline: %q", expr.Excerpt)
	}
	if !strings.HasPrefix(expr.Excerpt, src) {
		t.Errorf("excerpt %q does not start with the source line %q", expr.Excerpt, src)
	}
}

// TestReportWarningsMatchExactly compares every field of both reported
// warnings at once, rather than picking them apart field-by-field as
// TestReportFindsDeadBindingAndDeadExpression does, so the excerpt
// rendering and field wiring stay pinned together.
func TestReportWarningsMatchExactly(t *testing.T) {
	r := buildReporter(t, nil)
	warnings := r.Report()

	want := []report.Warning{
		{
			Severity: "warning",
			Rule:     report.Rule,
			Kind:     report.DeadBinding,
			File:     "r.ml",
			Line:     1,
			Start:    17,
			End:      18,
			Message:  "unused binding",
			Excerpt:  src + "\n" + strings.Repeat(" ", 17) + "^",
		},
		{
			Severity: "warning",
			Rule:     report.Rule,
			Kind:     report.DeadExpression,
			File:     "r.ml",
			Line:     1,
			Start:    21,
			End:      22,
			Message:  "unused value",
			Excerpt:  src + "\n" + strings.Repeat(" ", 21) + "^",
		},
	}

	if diff := cmp.Diff(want, warnings); diff != "" {
		t.Errorf("Report() mismatch (-want +got):\n%s", diff)
	}
}

func TestReportIsSortedByFileThenStart(t *testing.T) {
	r := buildReporter(t, nil)
	warnings := r.Report()
	for i := 1; i < len(warnings); i++ {
		a, b := warnings[i-1], warnings[i]
		if a.File > b.File || (a.File == b.File && a.Start > b.Start) {
			t.Fatalf("warnings not sorted: %+v then %+v", a, b)
		}
	}
}

func TestReportSuppressesByFilePrefix(t *testing.T) {
	r := buildReporter(t, []string{"r.ml"})
	if warnings := r.Report(); len(warnings) != 0 {
		t.Errorf("got %d warnings with suppress=r.ml, want 0: %+v", len(warnings), warnings)
	}
}

func TestReportSuppressMismatchedPrefixKeepsWarnings(t *testing.T) {
	r := buildReporter(t, []string{"other.ml"})
	if warnings := r.Report(); len(warnings) != 2 {
		t.Errorf("got %d warnings with a non-matching suppress prefix, want 2", len(warnings))
	}
}
