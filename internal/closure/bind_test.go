package closure

import (
	"testing"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
)

func TestBindPatternTuple(t *testing.T) {
	alloc := &label.Allocator{}
	child0 := alloc.New()
	child1 := alloc.New()
	scrutinee := alloc.New()
	ids := label.NewIdAllocator("m")
	idA := ids.New()
	idB := ids.New()

	cx := NewContext()
	cx.JoinValue(ExprKey(child0), Unknown())
	cx.JoinValue(ExprKey(child1), Unknown())
	cx.JoinValue(ExprKey(scrutinee), Ctor(CtorTag{Kind: TagTuple}, []label.Label{child0, child1}))

	pat := &artifact.TuplePattern{Elems: []artifact.Pattern{
		&artifact.VarPattern{Id: idA},
		&artifact.VarPattern{Id: idB},
	}}

	changed := bindPattern(cx, pat, ExprKey(scrutinee))
	if !changed {
		t.Fatalf("bindPattern reported no change on first binding")
	}
	if cx.GetId(idA).Len() != 1 {
		t.Errorf("idA got %d values, want 1", cx.GetId(idA).Len())
	}
	if cx.GetId(idB).Len() != 1 {
		t.Errorf("idB got %d values, want 1", cx.GetId(idB).Len())
	}
}

func TestBindPatternConstructMismatchedArityIgnored(t *testing.T) {
	alloc := &label.Allocator{}
	child := alloc.New()
	scrutinee := alloc.New()
	ids := label.NewIdAllocator("m")
	idA := ids.New()

	cx := NewContext()
	cx.JoinValue(ExprKey(child), Unknown())
	cx.JoinValue(ExprKey(scrutinee), Ctor(CtorTag{Kind: TagConstruct, Name: "Some"}, []label.Label{child}))

	pat := &artifact.ConstructPattern{Name: "Some", Args: []artifact.Pattern{
		&artifact.VarPattern{Id: idA},
		&artifact.VarPattern{Id: idA},
	}}

	if bindPattern(cx, pat, ExprKey(scrutinee)) {
		t.Errorf("arity-mismatched constructor pattern should never bind")
	}
	if cx.GetId(idA).Len() != 0 {
		t.Errorf("idA should remain unbound, got %d values", cx.GetId(idA).Len())
	}
}

func TestBindPatternTopTaintsVariables(t *testing.T) {
	ids := label.NewIdAllocator("m")
	idA := ids.New()
	cx := NewContext()
	alloc := &label.Allocator{}
	scrutinee := alloc.New()
	cx.SetTop(ExprKey(scrutinee))

	pat := &artifact.VarPattern{Id: idA}
	if !bindPattern(cx, pat, ExprKey(scrutinee)) {
		t.Fatalf("binding against a Top scrutinee should change something")
	}
	if !cx.GetId(idA).IsTop() {
		t.Errorf("variable bound against a Top scrutinee should become Top")
	}
}

func TestBindPatternRecordMutableFieldReadsMem(t *testing.T) {
	alloc := &label.Allocator{}
	recLabel := alloc.New()
	initChild := alloc.New()
	scrutinee := alloc.New()
	ids := label.NewIdAllocator("m")
	idX := ids.New()

	cx := NewContext()
	cx.JoinValue(ExprKey(initChild), Unknown())
	rec := RecordValue(recLabel, []string{"x"}, []label.Label{initChild}, map[string]bool{"x": true})
	cx.JoinValue(ExprKey(scrutinee), rec)

	pat := &artifact.RecordPattern{Fields: []artifact.RecordFieldPattern{
		{Name: "x", Pattern: &artifact.VarPattern{Id: idX}},
	}}

	if changed := bindPattern(cx, pat, ExprKey(scrutinee)); changed {
		t.Fatalf("binding before any assignment reached Mem should report no change (Mem starts empty)")
	}
	if cx.GetId(idX).Len() != 0 {
		t.Errorf("idX should stay unbound before the mutable field is ever assigned, got %d values", cx.GetId(idX).Len())
	}

	assigned := alloc.New()
	cx.JoinValue(ExprKey(assigned), Unknown())
	cx.JoinMem(MemKey{L: recLabel, Field: "x"}, cx.GetExpr(assigned))

	if !bindPattern(cx, pat, ExprKey(scrutinee)) {
		t.Fatalf("re-binding after Mem grew should report a change")
	}
	if cx.GetId(idX).Len() != 1 {
		t.Errorf("idX should pick up the assigned value, got %d values", cx.GetId(idX).Len())
	}
}

func TestBindPatternWildcardNoOp(t *testing.T) {
	alloc := &label.Allocator{}
	scrutinee := alloc.New()
	cx := NewContext()
	cx.JoinValue(ExprKey(scrutinee), Unknown())

	if bindPattern(cx, &artifact.WildcardPattern{}, ExprKey(scrutinee)) {
		t.Errorf("wildcard pattern should never report a change")
	}
}
