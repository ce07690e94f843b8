// Package constraints implements spec §4.2: it walks a preprocessed
// compilation unit's AST and seeds a closure.Context with the initial
// value-set constraints, pending application reductions, and pending
// pattern/field projections that internal/closure's fixed point then
// solves to completion.
//
// Generation never inspects a node's current value set — only
// internal/closure.Solve does, once every unit's constraints are in
// place — so Generate can run once per unit, in any order, independent
// of the others (see config.Config.Parallel).
package constraints

import (
	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/preprocess"
)

// Generator walks one compilation unit, emitting constraints into cx.
// excLabel names the single program-wide synthetic flow node standing
// for "the value carried by some uncaught raise somewhere" (design
// note: exception flow is not tracked per-handler, so Raise and Try
// both talk to this one node rather than to each other directly).
type Generator struct {
	cx       *closure.Context
	ix       *preprocess.Index
	excLabel label.Label
	unit     *artifact.CompilationUnit
}

func New(cx *closure.Context, ix *preprocess.Index, excLabel label.Label) *Generator {
	return &Generator{cx: cx, ix: ix, excLabel: excLabel}
}

// Generate seeds cx with u's constraints.
func (g *Generator) Generate(u *artifact.CompilationUnit) {
	g.unit = u
	for _, item := range u.Items {
		g.item(item)
	}
}

func (g *Generator) item(item artifact.StructureItem) {
	switch it := item.(type) {
	case artifact.ValueBindingItem:
		for _, b := range it.Bindings {
			g.expr(b.Rhs)
			g.cx.AddBind(b.Pattern, closure.ExprKey(g.ix.LabelOf(b.Rhs)))
		}
	case artifact.ModuleBindingItem:
		g.modExpr(it.Mod)
	case artifact.ExpressionItem:
		g.expr(it.Expr)
	}
}

func (g *Generator) modExpr(m artifact.ModExpr) {
	switch n := m.(type) {
	case artifact.MStruct:
		for _, it := range n.Items {
			g.item(it)
		}
	case artifact.MIdent:
		// leaf: no Expr-level constraint to emit here.
	case artifact.MApply:
		// Functor application's conservative Top taint is a
		// dependency-graph concern (spec §4.5), not a closure constraint.
		g.modExpr(n.Functor)
		g.modExpr(n.Arg)
	}
}

// effectOf looks up a primitive's declared effect, defaulting to Impure
// when the unit's registry has no entry (spec §3 design note, open
// question #2's resolution).
func (g *Generator) effectOf(name string) artifact.Effect {
	if g.unit.Primitives == nil {
		return artifact.EffectImpure
	}
	eff, ok := g.unit.Primitives[name]
	if !ok {
		return artifact.EffectImpure
	}
	return eff
}

func (g *Generator) expr(e artifact.Expr) {
	if e == nil {
		return
	}
	l := g.ix.LabelOf(e)

	switch n := e.(type) {
	case *artifact.Var:
		g.cx.JoinValue(closure.ExprKey(l), closure.IdRef(n.Id))

	case *artifact.ExternalRef:
		id := g.ix.ExternalId(n.Module, n.Name)
		g.cx.SetTop(closure.IdKey(id))
		g.cx.JoinValue(closure.ExprKey(l), closure.IdRef(id))

	case *artifact.Const:
		// no constraint

	case *artifact.Let:
		for _, b := range n.Bindings {
			g.expr(b.Rhs)
			g.cx.AddBind(b.Pattern, closure.ExprKey(g.ix.LabelOf(b.Rhs)))
		}
		g.expr(n.Body)
		g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.Body)))

	case *artifact.Fun:
		info, _ := g.ix.Expr(l)
		bodies := make([]closure.FunBody, len(n.Cases))
		for i, c := range n.Cases {
			g.expr(c.Rhs)
			bodies[i] = closure.FunBody{Pattern: c.Pattern, Rhs: g.ix.LabelOf(c.Rhs)}
		}
		g.cx.JoinValue(closure.ExprKey(l), closure.Fn(l, info.ParamId, bodies))

	case *artifact.App:
		g.expr(n.Fn)
		for _, a := range n.Args {
			g.expr(a)
		}
		if len(n.Args) == 0 {
			g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.Fn)))
			return
		}
		argLabels := make([]label.Label, len(n.Args))
		for i, a := range n.Args {
			argLabels[i] = g.ix.LabelOf(a)
		}
		g.cx.AddReduction(closure.Reduce{
			Call: l,
			Fn:   g.ix.LabelOf(n.Fn),
			Arg:  argLabels[0],
			Rest: argLabels[1:],
		})

	case *artifact.Match:
		g.expr(n.Scrutinee)
		scrutLabel := g.ix.LabelOf(n.Scrutinee)
		for _, arm := range n.Arms {
			if arm.Guard != nil {
				g.expr(arm.Guard)
			}
			g.expr(arm.Rhs)
			g.cx.AddBind(arm.Pattern, closure.ExprKey(scrutLabel))
			g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(arm.Rhs)))
		}

	case *artifact.Try:
		g.expr(n.Body)
		g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.Body)))
		for _, arm := range n.Arms {
			if arm.Guard != nil {
				g.expr(arm.Guard)
			}
			g.expr(arm.Rhs)
			g.cx.AddBind(arm.Pattern, closure.ExprKey(g.excLabel))
			g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(arm.Rhs)))
		}

	case *artifact.Raise:
		g.expr(n.Exn)
		g.cx.JoinValue(closure.ExprKey(g.excLabel), closure.ExprRef(g.ix.LabelOf(n.Exn)))
		g.cx.MarkSideEffect(l)

	case *artifact.Tuple:
		children := make([]label.Label, len(n.Elems))
		for i, el := range n.Elems {
			g.expr(el)
			children[i] = g.ix.LabelOf(el)
		}
		g.cx.JoinValue(closure.ExprKey(l), closure.Ctor(closure.CtorTag{Kind: closure.TagTuple}, children))

	case *artifact.Construct:
		children := make([]label.Label, len(n.Args))
		for i, a := range n.Args {
			g.expr(a)
			children[i] = g.ix.LabelOf(a)
		}
		tag := closure.CtorTag{Kind: closure.TagConstruct, Name: n.Name}
		g.cx.JoinValue(closure.ExprKey(l), closure.Ctor(tag, children))

	case *artifact.Variant:
		var children []label.Label
		if n.Arg != nil {
			g.expr(n.Arg)
			children = []label.Label{g.ix.LabelOf(n.Arg)}
		}
		g.cx.JoinValue(closure.ExprKey(l), closure.VariantValue(n.Tag, l, children))

	case *artifact.Record:
		names := make([]string, len(n.Fields))
		children := make([]label.Label, len(n.Fields))
		mutable := map[string]bool{}
		for i, f := range n.Fields {
			g.expr(f.Value)
			names[i] = f.Name
			children[i] = g.ix.LabelOf(f.Value)
			if f.Mutable {
				mutable[f.Name] = true
				g.cx.JoinMem(closure.MemKey{L: l, Field: f.Name}, closure.SingletonSet(closure.ExprRef(children[i])))
			}
		}
		g.cx.JoinValue(closure.ExprKey(l), closure.RecordValue(l, names, children, mutable))

	case *artifact.FieldGet:
		g.expr(n.Rec)
		g.cx.AddFieldGet(closure.ExprKey(g.ix.LabelOf(n.Rec)), n.Field, l)

	case *artifact.FieldSet:
		g.expr(n.Rec)
		g.expr(n.Value)
		g.cx.AddFieldSet(closure.ExprKey(g.ix.LabelOf(n.Rec)), n.Field, closure.ExprKey(g.ix.LabelOf(n.Value)))
		g.cx.MarkSideEffect(l)

	case *artifact.Seq:
		g.expr(n.E1)
		g.expr(n.E2)
		g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.E2)))

	case *artifact.If:
		g.expr(n.Cond)
		g.expr(n.Then)
		g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.Then)))
		if n.Else != nil {
			g.expr(n.Else)
			g.cx.JoinValue(closure.ExprKey(l), closure.ExprRef(g.ix.LabelOf(n.Else)))
		}

	case *artifact.While:
		g.expr(n.Cond)
		g.expr(n.Body)

	case *artifact.For:
		g.expr(n.Lo)
		g.expr(n.Hi)
		g.expr(n.Body)
		g.cx.SetTop(closure.IdKey(n.Index))

	case *artifact.Prim:
		eff := g.effectOf(n.Name)
		g.cx.JoinValue(closure.ExprKey(l), closure.Prim(n.Name, n.Arity, eff))
		if eff == artifact.EffectImpure {
			g.cx.MarkSideEffect(l)
		}
	}
}
