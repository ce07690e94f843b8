package preprocess_test

import (
	"testing"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/preprocess"
)

func TestWalkAssignsLabelsAndRecordsDecls(t *testing.T) {
	xId := label.Id{Module: "M", Stamp: 1}
	rhs := &artifact.Const{Repr: "1"}
	body := &artifact.Var{Id: xId}
	let := &artifact.Let{
		Bindings: []artifact.LetBinding{{Pattern: &artifact.VarPattern{Id: xId}, Rhs: rhs}},
		Body:     body,
	}
	u := &artifact.CompilationUnit{
		Name: "M",
		Items: []artifact.StructureItem{
			artifact.ValueBindingItem{Bindings: []artifact.LetBinding{{Pattern: &artifact.WildcardPattern{}, Rhs: let}}},
		},
	}

	ix := preprocess.NewIndex(&label.Allocator{})
	preprocess.Walk(ix, u)

	letLabel := ix.LabelOf(let)
	if !letLabel.Valid() {
		t.Fatal("Let node got an invalid label")
	}
	rhsLabel := ix.LabelOf(rhs)
	bodyLabel := ix.LabelOf(body)
	if rhsLabel == bodyLabel {
		t.Error("distinct nodes got the same label")
	}

	info, ok := ix.Expr(letLabel)
	if !ok || info.Node != let {
		t.Fatalf("Expr(letLabel) = %+v, %v", info, ok)
	}

	if _, ok := ix.DeclPos(xId); !ok {
		t.Error("x's VarPattern declaration was not recorded")
	}
}

func TestWalkSynthesizesFunParamId(t *testing.T) {
	fn := &artifact.Fun{Cases: []artifact.FunCase{
		{Pattern: &artifact.WildcardPattern{}, Rhs: &artifact.Const{Repr: "0"}},
	}}
	u := &artifact.CompilationUnit{
		Name:  "M",
		Items: []artifact.StructureItem{artifact.ExpressionItem{Expr: fn}},
	}

	ix := preprocess.NewIndex(&label.Allocator{})
	preprocess.Walk(ix, u)

	l := ix.LabelOf(fn)
	info, ok := ix.Expr(l)
	if !ok {
		t.Fatal("Fun node missing from index")
	}
	if !info.ParamId.Valid() {
		t.Error("Fun node got no synthesized ParamId")
	}
	if _, ok := ix.DeclPos(info.ParamId); !ok {
		t.Error("synthesized ParamId has no recorded declaration position")
	}
}

func TestWalkPanicsOnDoubleFunVisit(t *testing.T) {
	fn := &artifact.Fun{Cases: []artifact.FunCase{
		{Pattern: &artifact.WildcardPattern{}, Rhs: &artifact.Const{Repr: "0"}},
	}}
	u := &artifact.CompilationUnit{
		Name: "M",
		Items: []artifact.StructureItem{
			artifact.ExpressionItem{Expr: fn},
			artifact.ExpressionItem{Expr: fn},
		},
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Walk did not panic on revisiting the same Fun node")
		}
	}()
	preprocess.Walk(preprocess.NewIndex(&label.Allocator{}), u)
}

func TestExternalIdIsStableAndCached(t *testing.T) {
	ix := preprocess.NewIndex(&label.Allocator{})
	a := ix.ExternalId("Other", "value")
	b := ix.ExternalId("Other", "value")
	if a != b {
		t.Errorf("ExternalId(Other, value) not stable across calls: %v != %v", a, b)
	}
	c := ix.ExternalId("Other", "different")
	if a == c {
		t.Error("ExternalId gave the same Id for two different names")
	}
}

func TestLabelOfPanicsOnUnwalkedNode(t *testing.T) {
	ix := preprocess.NewIndex(&label.Allocator{})
	defer func() {
		if recover() == nil {
			t.Fatal("LabelOf did not panic for a node Walk never saw")
		}
	}()
	ix.LabelOf(&artifact.Const{Repr: "orphan"})
}
