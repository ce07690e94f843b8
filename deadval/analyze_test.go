package deadval_test

import (
	"testing"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/config"
	"github.com/sumtype/deadval/deadval"
	"github.com/sumtype/deadval/internal/report"
)

func loadUnit(t *testing.T, js string) *artifact.CompilationUnit {
	t.Helper()
	units, err := artifact.Load([]byte("[" + js + "]"))
	if err != nil {
		t.Fatalf("artifact.Load: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("Load returned %d units, want 1", len(units))
	}
	return units[0]
}

// exampleOne is spec scenario 1: `let x = 1 in let y = 2 in x`, exported
// as "result" so the whole chain is demanded from outside the unit. y
// and its initializer should come back dead; x and its initializer
// should not.
const exampleOne = `{
	"name": "Ex1",
	"file": "ex1.ml",
	"exports": {"result": 1},
	"items": [
		{"kind": "value", "bindings": [
			{"pattern": {"kind": "pvar", "id": 1},
			 "rhs": {"kind": "let", "pos": {"filename": "ex1.ml", "start": 0, "end": 40},
				"bindings": [
					{"pattern": {"kind": "pvar", "id": 2, "pos": {"filename": "ex1.ml", "start": 4, "end": 5}},
					 "rhs": {"kind": "const", "repr": "1", "pos": {"filename": "ex1.ml", "start": 8, "end": 9}}}
				],
				"body": {"kind": "let", "pos": {"filename": "ex1.ml", "start": 12, "end": 39},
					"bindings": [
						{"pattern": {"kind": "pvar", "id": 3, "pos": {"filename": "ex1.ml", "start": 17, "end": 18}},
						 "rhs": {"kind": "const", "repr": "2", "pos": {"filename": "ex1.ml", "start": 21, "end": 22}}}
					],
					"body": {"kind": "var", "id": 2, "pos": {"filename": "ex1.ml", "start": 35, "end": 36}}
				}
			 }}
		]}
	]
}`

func TestAnalyzeReportsDeadBindingAndDeadExpression(t *testing.T) {
	u := loadUnit(t, exampleOne)
	res, errs := deadval.Analyze([]*artifact.CompilationUnit{u}, config.Config{})
	if len(errs) != 0 {
		t.Fatalf("unexpected unit errors: %v", errs)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(res.Warnings), res.Warnings)
	}

	var sawBinding, sawExpr bool
	for _, w := range res.Warnings {
		switch w.Kind {
		case report.DeadBinding:
			sawBinding = true
			if w.Start != 17 {
				t.Errorf("dead-binding warning at Start=%d, want 17 (y's declaration)", w.Start)
			}
		case report.DeadExpression:
			sawExpr = true
			if w.Start != 21 {
				t.Errorf("dead-expression warning at Start=%d, want 21 (the unused 2)", w.Start)
			}
		}
	}
	if !sawBinding {
		t.Error("missing a dead-binding warning for y")
	}
	if !sawExpr {
		t.Error("missing a dead-expression warning for the unused 2")
	}
}

func TestAnalyzeSuppressDropsByFilePrefix(t *testing.T) {
	u := loadUnit(t, exampleOne)
	res, errs := deadval.Analyze([]*artifact.CompilationUnit{u}, config.Config{Suppress: []string{"ex1"}})
	if len(errs) != 0 {
		t.Fatalf("unexpected unit errors: %v", errs)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("got %d warnings with -suppress=ex1, want 0: %+v", len(res.Warnings), res.Warnings)
	}
}

// examplePrim is spec scenario 2: `let f = fun x -> x + 1 in f 3`, where
// "+" is a declared-pure but tainting primitive. Every operand along the
// chain (the literal 3, the parameter x, the literal 1) must come back
// live even though nothing ever consumes f 3's own result.
const examplePrim = `{
	"name": "Ex2",
	"file": "ex2.ml",
	"primitives": {"+": "pure"},
	"items": [
		{"kind": "expr", "expr": {"kind": "let", "pos": {"filename": "ex2.ml", "start": 0, "end": 50},
			"bindings": [
				{"pattern": {"kind": "pvar", "id": 1},
				 "rhs": {"kind": "fun", "pos": {"filename": "ex2.ml", "start": 5, "end": 20},
					"cases": [
						{"pattern": {"kind": "pvar", "id": 2, "pos": {"filename": "ex2.ml", "start": 6, "end": 7}},
						 "rhs": {"kind": "app", "pos": {"filename": "ex2.ml", "start": 10, "end": 16},
							"fn": {"kind": "prim", "name": "+", "arity": 2, "pos": {"filename": "ex2.ml", "start": 10, "end": 11}},
							"args": [
								{"kind": "var", "id": 2, "pos": {"filename": "ex2.ml", "start": 12, "end": 13}},
								{"kind": "const", "repr": "1", "pos": {"filename": "ex2.ml", "start": 14, "end": 15}}
							]
						 }}
					]
				 }}
			],
			"body": {"kind": "app", "pos": {"filename": "ex2.ml", "start": 25, "end": 30},
				"fn": {"kind": "var", "id": 1, "pos": {"filename": "ex2.ml", "start": 25, "end": 26}},
				"args": [{"kind": "const", "repr": "3", "pos": {"filename": "ex2.ml", "start": 28, "end": 29}}]
			}
		}}
	]
}`

func TestAnalyzePrimitiveForcesOperandsLive(t *testing.T) {
	u := loadUnit(t, examplePrim)
	res, errs := deadval.Analyze([]*artifact.CompilationUnit{u}, config.Config{})
	if len(errs) != 0 {
		t.Fatalf("unexpected unit errors: %v", errs)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("primitive application reported dead operands: %+v", res.Warnings)
	}
}

// badUnit shares one *artifact.Fun pointer between two bindings, which
// preprocess.Walk treats as an internal invariant violation (a function
// label can only ever be assigned once) and panics on the second visit.
// deadval.Analyze must recover from that per unit, not abort the run.
func badUnit() *artifact.CompilationUnit {
	shared := &artifact.Fun{Cases: []artifact.FunCase{
		{Pattern: &artifact.WildcardPattern{}, Rhs: &artifact.Const{Repr: "0"}},
	}}
	return &artifact.CompilationUnit{
		Name: "Bad",
		Items: []artifact.StructureItem{
			artifact.ValueBindingItem{Bindings: []artifact.LetBinding{{Pattern: &artifact.WildcardPattern{}, Rhs: shared}}},
			artifact.ValueBindingItem{Bindings: []artifact.LetBinding{{Pattern: &artifact.WildcardPattern{}, Rhs: shared}}},
		},
	}
}

func goodUnit() *artifact.CompilationUnit {
	return &artifact.CompilationUnit{
		Name: "Good",
		Items: []artifact.StructureItem{
			artifact.ExpressionItem{Expr: &artifact.Const{Repr: "()"}},
		},
	}
}

func TestAnalyzeSkipsUnrecoverableUnit(t *testing.T) {
	units := []*artifact.CompilationUnit{badUnit(), goodUnit()}
	res, errs := deadval.Analyze(units, config.Config{})
	if len(errs) != 1 {
		t.Fatalf("got %d unit errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Unit != "Bad" {
		t.Errorf("unit error names %q, want Bad", errs[0].Unit)
	}
	if res == nil {
		t.Fatal("Analyze returned a nil Result alongside the unit error")
	}
	for _, e := range errs {
		if e.Unit == "Good" {
			t.Errorf("Good was reported as failed alongside Bad: %v", e)
		}
	}
}

func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	u1 := loadUnit(t, exampleOne)
	u2 := loadUnit(t, examplePrim)

	seq, errs := deadval.Analyze([]*artifact.CompilationUnit{u1, u2}, config.Config{})
	if len(errs) != 0 {
		t.Fatalf("sequential run: unexpected unit errors: %v", errs)
	}
	par, errs := deadval.Analyze([]*artifact.CompilationUnit{u1, u2}, config.Config{Parallel: true})
	if len(errs) != 0 {
		t.Fatalf("parallel run: unexpected unit errors: %v", errs)
	}
	if len(seq.Warnings) != len(par.Warnings) {
		t.Fatalf("sequential produced %d warnings, parallel produced %d", len(seq.Warnings), len(par.Warnings))
	}
}
