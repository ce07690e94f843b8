package depgraph

import (
	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/liveness"
	"github.com/sumtype/deadval/internal/preprocess"
)

// Collector walks a compilation unit a second time, after the closure
// fixed point has converged, and emits spec §4.5's dependency edges.
// Unlike constraints.Generator it DOES inspect cx's resolved value sets —
// that's the whole point, since an edge's shape for Application, Field
// access and pattern binding depends on which concrete Ctor/Fn values a
// source turned out to hold.
type Collector struct {
	g        *Graph
	cx       *closure.Context
	ix       *preprocess.Index
	excLabel label.Label
	unit     *artifact.CompilationUnit
}

func NewCollector(g *Graph, cx *closure.Context, ix *preprocess.Index, excLabel label.Label) *Collector {
	return &Collector{g: g, cx: cx, ix: ix, excLabel: excLabel}
}

// identity is the no-op Live→Live transformer used by most "value passes
// straight through" edges.
func identity(l liveness.Live) liveness.Live { return l }

func constTop(liveness.Live) liveness.Live { return liveness.Top() }

func constEmptyCtor(liveness.Live) liveness.Live {
	return liveness.Ctor(map[closure.CtorTag][]liveness.Live{})
}

func funcWrap(n int) Transformer {
	return func(l liveness.Live) liveness.Live {
		for i := 0; i < n; i++ {
			l = liveness.Func(l)
		}
		return l
	}
}

func ifNotBot(then liveness.Live) Transformer {
	return func(l liveness.Live) liveness.Live { return liveness.IfNotBot(l, then) }
}

// fieldExtract and fieldInject implement the two field-shaped
// transformers. The spec text names them the other way around for the
// constructor and field-access rules; swapped here because
// liveness.Field extracts a slot from a structured carrier (what a
// constructor's children need, given the constructor's own demand) and
// liveness.FromField builds a structured contribution from a scalar
// (what a field access contributes back to the record it reads) — using
// the spec's literal pairing the other way around degenerates both rules
// into a no-op. See DESIGN.md.
func fieldExtract(tag closure.CtorTag, i int) Transformer {
	return func(l liveness.Live) liveness.Live { return liveness.Field(l, tag, i) }
}

func fieldInject(tag closure.CtorTag, i int) Transformer {
	return func(l liveness.Live) liveness.Live { return liveness.FromField(tag, i, l) }
}

// Collect seeds g with every edge spec §4.5 names for u, then adds the
// generic side-effect and module-export edges that apply once per unit
// rather than once per AST node.
func (c *Collector) Collect(u *artifact.CompilationUnit) {
	c.unit = u
	for _, item := range u.Items {
		c.item(item)
	}
	c.sideEffectEdges()
	c.exportEdges()
}

func (c *Collector) item(item artifact.StructureItem) {
	switch it := item.(type) {
	case artifact.ValueBindingItem:
		for _, b := range it.Bindings {
			c.expr(b.Rhs)
			c.patternEdges(b.Pattern, closure.ExprKey(c.ix.LabelOf(b.Rhs)))
		}
	case artifact.ModuleBindingItem:
		c.modExpr(it.Mod)
		c.g.AddEdge(IdNode(it.Id), ExprNode(c.ix.ModLabelOf(it.Mod)), identity)
	case artifact.ExpressionItem:
		c.expr(it.Expr)
	}
}

func (c *Collector) modExpr(m artifact.ModExpr) {
	ml := c.ix.ModLabelOf(m)
	c.g.AddNode(ExprNode(ml))

	switch n := m.(type) {
	case artifact.MStruct:
		for _, it := range n.Items {
			c.item(it)
		}
	case artifact.MIdent:
		// Module paths are never resolved to a binding's Id anywhere in
		// this analysis, so every MIdent is an unresolved reference —
		// the module-level analogue of Var's own unresolved-identifier
		// fallback (spec §4.5): join with Top.
		c.g.AddEdge(Top, ExprNode(ml), constTop)
	case artifact.MApply:
		c.modExpr(n.Functor)
		c.modExpr(n.Arg)
		// Functor application isn't modeled beyond this conservative
		// fallback (spec §7): whatever flows through one joins with Top.
		c.g.AddEdge(Top, ExprNode(ml), constTop)
	}
}

// patternEdges is the edge-emitting mirror of closure/bind.go's
// bindPattern: for every variable the pattern binds, it walks the
// source's now-final concrete Ctor values and adds an identity edge from
// that variable's Id to the exact child label (or Mem cell) the pattern
// projects out, so the variable's use-driven demand reaches the precise
// slot it came from rather than the source as a whole.
func (c *Collector) patternEdges(pat artifact.Pattern, source closure.Key) {
	c.patternEdgesFrom(pat, exprOrMemNodeFor(source), c.cx.Get(source))
}

// patternEdgesFrom is patternEdges' core: it projects pat against an
// already-resolved (node, value set) pair rather than a Key, so a
// mutable record field's current contents (which live in Mem, a flow
// node Key can't address) can be threaded through the same recursion
// as everything else.
func (c *Collector) patternEdgesFrom(pat artifact.Pattern, sourceNode Node, vs closure.ValueSet) {
	if vs.IsTop() {
		c.patternEdgesTop(pat)
		return
	}

	switch p := pat.(type) {
	case *artifact.WildcardPattern, *artifact.ConstPattern:

	case *artifact.VarPattern:
		c.g.AddEdge(IdNode(p.Id), sourceNode, identity)

	case *artifact.AliasPattern:
		c.g.AddEdge(IdNode(p.Id), sourceNode, identity)
		c.patternEdgesFrom(p.Inner, sourceNode, vs)

	case *artifact.TuplePattern:
		vs.Each(func(v closure.Value) {
			if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagTuple {
				return
			}
			if len(v.Ctor.Children) != len(p.Elems) {
				return
			}
			for i, sub := range p.Elems {
				c.patternEdges(sub, closure.ExprKey(v.Ctor.Children[i]))
			}
		})

	case *artifact.ConstructPattern:
		vs.Each(func(v closure.Value) {
			if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagConstruct || v.Ctor.Tag.Name != p.Name {
				return
			}
			if len(v.Ctor.Children) != len(p.Args) {
				return
			}
			for i, sub := range p.Args {
				c.patternEdges(sub, closure.ExprKey(v.Ctor.Children[i]))
			}
		})

	case *artifact.VariantPattern:
		vs.Each(func(v closure.Value) {
			if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagVariant || v.Ctor.Tag.Name != p.Tag {
				return
			}
			if p.Arg == nil || len(v.Ctor.Children) < 1 {
				return
			}
			c.patternEdges(p.Arg, closure.ExprKey(v.Ctor.Children[0]))
		})

	case *artifact.RecordPattern:
		vs.Each(func(v closure.Value) {
			if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagRecord {
				return
			}
			for _, fp := range p.Fields {
				child, mutable, ok := recordFieldSource(v.Ctor, fp.Name)
				if !ok {
					continue
				}
				if mutable {
					mk := closure.MemKey{L: v.Ctor.Label, Field: fp.Name}
					c.patternEdgesFrom(fp.Pattern, MemNode(mk), c.cx.GetMem(mk))
				} else {
					c.patternEdgesFrom(fp.Pattern, ExprNode(child), c.cx.GetExpr(child))
				}
			}
		})

	case *artifact.OrPattern:
		c.patternEdgesFrom(p.Left, sourceNode, vs)
		c.patternEdgesFrom(p.Right, sourceNode, vs)

	case *artifact.ArrayPattern:
		for _, el := range p.Elems {
			c.patternEdgesTop(el)
		}

	case *artifact.LazyPattern:
		c.patternEdgesTop(p.Inner)
	}
}

// exprOrMemNodeFor resolves a closure.Key to the matching flow Node;
// PendingBind sources are always Expr/Id keys (never Mem), so this only
// needs to cover Key, not MemKey.
func exprOrMemNodeFor(k closure.Key) Node {
	if k.Kind == closure.KeyId {
		return IdNode(k.Id)
	}
	return ExprNode(k.L)
}

// recordFieldSource finds a record Ctor value's field by name, returning
// its child label and whether the field is a mutable one (in which case
// callers that care about reading its current contents should use
// Mem(c.Label, name) instead of the child label directly).
func recordFieldSource(c *closure.CtorValue, name string) (label.Label, bool, bool) {
	for i, n := range c.FieldNames {
		if n == name {
			return c.Children[i], c.Mutable[name], true
		}
	}
	return label.Label{}, false, false
}

func (c *Collector) patternEdgesTop(pat artifact.Pattern) {
	switch p := pat.(type) {
	case *artifact.WildcardPattern, *artifact.ConstPattern:
	case *artifact.VarPattern:
		c.g.AddNode(IdNode(p.Id))
	case *artifact.AliasPattern:
		c.g.AddNode(IdNode(p.Id))
		c.patternEdgesTop(p.Inner)
	case *artifact.TuplePattern:
		for _, sub := range p.Elems {
			c.patternEdgesTop(sub)
		}
	case *artifact.ConstructPattern:
		for _, sub := range p.Args {
			c.patternEdgesTop(sub)
		}
	case *artifact.VariantPattern:
		if p.Arg != nil {
			c.patternEdgesTop(p.Arg)
		}
	case *artifact.RecordPattern:
		for _, fp := range p.Fields {
			c.patternEdgesTop(fp.Pattern)
		}
	case *artifact.OrPattern:
		c.patternEdgesTop(p.Left)
		c.patternEdgesTop(p.Right)
	case *artifact.ArrayPattern:
		for _, el := range p.Elems {
			c.patternEdgesTop(el)
		}
	case *artifact.LazyPattern:
		c.patternEdgesTop(p.Inner)
	}
}

func (c *Collector) expr(e artifact.Expr) {
	if e == nil {
		return
	}
	l := c.ix.LabelOf(e)
	c.g.AddNode(ExprNode(l))

	switch n := e.(type) {
	case *artifact.Var:
		c.g.AddEdge(ExprNode(l), IdNode(n.Id), identity)

	case *artifact.ExternalRef:
		id := c.ix.ExternalId(n.Module, n.Name)
		c.g.AddEdge(ExprNode(l), IdNode(id), identity)
		c.g.AddEdge(Top, IdNode(id), constTop)

	case *artifact.Const:

	case *artifact.Let:
		for _, b := range n.Bindings {
			c.expr(b.Rhs)
			c.patternEdges(b.Pattern, closure.ExprKey(c.ix.LabelOf(b.Rhs)))
		}
		c.expr(n.Body)
		c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Body)), identity)

	case *artifact.Fun:
		for _, cs := range n.Cases {
			c.expr(cs.Rhs)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(cs.Rhs)), liveness.Body)
		}

	case *artifact.App:
		c.expr(n.Fn)
		for _, a := range n.Args {
			c.expr(a)
		}
		c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Fn)), funcWrap(len(n.Args)))
		for _, r := range reductionsForCall(c.cx, l) {
			fset := c.cx.GetExpr(r.Fn)
			if fset.IsTop() {
				continue
			}
			fset.Each(func(v closure.Value) {
				switch v.Kind {
				case closure.VFn:
					for _, body := range v.Fn.Bodies {
						c.g.AddEdge(ExprNode(l), ExprNode(body.Rhs), identity)
						c.g.AddEdge(IdNode(v.Fn.Param), ExprNode(r.Arg), identity)
						c.patternEdges(body.Pattern, closure.ExprKey(r.Arg))
					}
				case closure.VPrim:
					// spec §4.3's default primitive rule taints every
					// supplied argument live the moment arity saturates
					// (applyPrim does the matching thing to the closure
					// value set); a partial application isn't a call yet.
					if 1+len(r.Rest) >= v.Prim.Arity {
						c.g.AddEdge(Top, ExprNode(r.Arg), constTop)
						for _, a := range r.Rest {
							c.g.AddEdge(Top, ExprNode(a), constTop)
						}
					}
				}
			})
		}

	case *artifact.Match:
		c.expr(n.Scrutinee)
		scrutLabel := c.ix.LabelOf(n.Scrutinee)
		var demand liveness.Live
		for _, arm := range n.Arms {
			demand = liveness.Join(demand, liveness.ControlledByPat(arm.Pattern))
		}
		c.g.AddEdge(ExprNode(l), ExprNode(scrutLabel), ifNotBot(demand))
		for _, arm := range n.Arms {
			if arm.Guard != nil {
				c.expr(arm.Guard)
				c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(arm.Guard)), ifNotBot(liveness.Top()))
			}
			c.expr(arm.Rhs)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(arm.Rhs)), identity)
			c.patternEdges(arm.Pattern, closure.ExprKey(scrutLabel))
		}

	case *artifact.Try:
		c.expr(n.Body)
		c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Body)), identity)
		var demand liveness.Live
		for _, arm := range n.Arms {
			demand = liveness.Join(demand, liveness.ControlledByPat(arm.Pattern))
		}
		c.g.AddEdge(ExprNode(l), ExprNode(c.excLabel), ifNotBot(demand))
		for _, arm := range n.Arms {
			if arm.Guard != nil {
				c.expr(arm.Guard)
				c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(arm.Guard)), ifNotBot(liveness.Top()))
			}
			c.expr(arm.Rhs)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(arm.Rhs)), identity)
			c.patternEdges(arm.Pattern, closure.ExprKey(c.excLabel))
		}

	case *artifact.Raise:
		c.expr(n.Exn)
		c.g.AddEdge(ExprNode(c.excLabel), ExprNode(c.ix.LabelOf(n.Exn)), identity)

	case *artifact.Tuple:
		for i, el := range n.Elems {
			c.expr(el)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(el)), fieldExtract(closure.CtorTag{Kind: closure.TagTuple}, i))
		}

	case *artifact.Construct:
		tag := closure.CtorTag{Kind: closure.TagConstruct, Name: n.Name}
		for i, a := range n.Args {
			c.expr(a)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(a)), fieldExtract(tag, i))
		}

	case *artifact.Variant:
		if n.Arg != nil {
			c.expr(n.Arg)
			tag := closure.CtorTag{Kind: closure.TagVariant, Name: n.Tag}
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Arg)), fieldExtract(tag, 0))
		}

	case *artifact.Record:
		for _, f := range n.Fields {
			c.expr(f.Value)
			tag := liveness.RecordField(f.Name)
			if f.Mutable {
				c.g.AddEdge(ExprNode(l), MemNode(closure.MemKey{L: l, Field: f.Name}), fieldExtract(tag, 0))
			} else {
				c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(f.Value)), fieldExtract(tag, 0))
			}
		}

	case *artifact.FieldGet:
		c.expr(n.Rec)
		recSet := c.cx.GetExpr(c.ix.LabelOf(n.Rec))
		if !recSet.IsTop() {
			tag := liveness.RecordField(n.Field)
			recSet.Each(func(v closure.Value) {
				if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagRecord {
					return
				}
				_, mutable, ok := recordFieldSource(v.Ctor, n.Field)
				if !ok {
					return
				}
				if mutable {
					c.g.AddEdge(ExprNode(l), MemNode(closure.MemKey{L: v.Ctor.Label, Field: n.Field}), fieldInject(tag, 0))
				} else {
					c.g.AddEdge(ExprNode(l), ExprNode(v.Ctor.Label), fieldInject(tag, 0))
				}
			})
		}

	case *artifact.FieldSet:
		c.expr(n.Rec)
		c.expr(n.Value)
		recSet := c.cx.GetExpr(c.ix.LabelOf(n.Rec))
		if !recSet.IsTop() {
			recSet.Each(func(v closure.Value) {
				if v.Kind != closure.VCtor || v.Ctor.Tag.Kind != closure.TagRecord || !v.Ctor.Mutable[n.Field] {
					return
				}
				c.g.AddEdge(MemNode(closure.MemKey{L: v.Ctor.Label, Field: n.Field}), ExprNode(c.ix.LabelOf(n.Value)), identity)
			})
		}
		c.g.AddEdge(Top, ExprNode(c.ix.LabelOf(n.Rec)), constEmptyCtor)

	case *artifact.Seq:
		c.expr(n.E1)
		c.expr(n.E2)
		c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.E2)), identity)

	case *artifact.If:
		c.expr(n.Cond)
		c.expr(n.Then)
		c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Then)), identity)
		effectful := mayHaveSideEffect(c.cx, c.ix, c.ix.LabelOf(n.Then))
		if n.Else != nil {
			c.expr(n.Else)
			c.g.AddEdge(ExprNode(l), ExprNode(c.ix.LabelOf(n.Else)), identity)
			effectful = effectful || mayHaveSideEffect(c.cx, c.ix, c.ix.LabelOf(n.Else))
		}
		if effectful {
			c.g.AddEdge(Top, ExprNode(c.ix.LabelOf(n.Cond)), constTop)
		}

	case *artifact.While:
		c.expr(n.Cond)
		c.expr(n.Body)
		if mayHaveSideEffect(c.cx, c.ix, c.ix.LabelOf(n.Body)) {
			c.g.AddEdge(Top, ExprNode(c.ix.LabelOf(n.Cond)), constTop)
		}

	case *artifact.For:
		c.expr(n.Lo)
		c.expr(n.Hi)
		c.expr(n.Body)
		if mayHaveSideEffect(c.cx, c.ix, c.ix.LabelOf(n.Body)) {
			c.g.AddEdge(Top, ExprNode(c.ix.LabelOf(n.Lo)), constTop)
			c.g.AddEdge(Top, ExprNode(c.ix.LabelOf(n.Hi)), constTop)
		}
		c.g.AddNode(IdNode(n.Index))

	case *artifact.Prim:
		// A bare primitive reference carries no argument edges of its
		// own; those are wired from the call site once an App's
		// reduction resolves to this value (see the VPrim case above).
	}
}

// reductionsForCall finds every closure.Reduce belonging to one
// application, including every stage of a curried chain: solve.go keeps
// Call fixed at the original App's label across every enqueued
// continuation, so a single scan recovers the whole chain.
func reductionsForCall(cx *closure.Context, call label.Label) []closure.Reduce {
	var out []closure.Reduce
	for _, r := range cx.Reductions {
		if r.Call == call {
			out = append(out, r)
		}
	}
	return out
}

// mayHaveSideEffect reports whether l, or an expression whose value
// flows into l unchanged (a tail position: let-body, sequence's second
// half, an if/match/try arm's result), may cause an observable effect.
// Scoped to tail positions rather than every subexpression because the
// analysis only tracks directly-marked effects (spec §1 non-goals:
// "no inter-procedural effect inference beyond this expression may cause
// an externally visible effect"), and it's exactly the tail position
// whose effect should gate a guarding condition's own liveness.
func mayHaveSideEffect(cx *closure.Context, ix *preprocess.Index, l label.Label) bool {
	if cx.HasSideEffect(l) {
		return true
	}
	info, ok := ix.Expr(l)
	if !ok {
		return false
	}
	switch n := info.Node.(type) {
	case *artifact.Let:
		return mayHaveSideEffect(cx, ix, ix.LabelOf(n.Body))
	case *artifact.Seq:
		return mayHaveSideEffect(cx, ix, ix.LabelOf(n.E2))
	case *artifact.If:
		if mayHaveSideEffect(cx, ix, ix.LabelOf(n.Then)) {
			return true
		}
		return n.Else != nil && mayHaveSideEffect(cx, ix, ix.LabelOf(n.Else))
	case *artifact.Match:
		for _, arm := range n.Arms {
			if mayHaveSideEffect(cx, ix, ix.LabelOf(arm.Rhs)) {
				return true
			}
		}
		return false
	case *artifact.Try:
		if mayHaveSideEffect(cx, ix, ix.LabelOf(n.Body)) {
			return true
		}
		for _, arm := range n.Arms {
			if mayHaveSideEffect(cx, ix, ix.LabelOf(arm.Rhs)) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// sideEffectEdges implements spec §4.5's standalone "side-effecting
// expression" rule: every label the closure phase marked gets pinned
// live from Top, independent of what kind of node it is.
func (c *Collector) sideEffectEdges() {
	for l := range c.cx.SideEffects {
		c.g.AddEdge(Top, ExprNode(l), constTop)
	}
}

// exportEdges treats every member a unit's signature exports as
// conservatively live: the lattice does define a per-member projection
// (TagModule, extracted the same way TagRecord's fields are), but that
// projection needs a concrete member-access expression to route
// through, and an export consumed by a compilation unit outside this
// run has none — there's nothing in this graph for it to demand through.
// Pinning straight to Top resolves that gap the same way a real
// whole-program dead-code tool treats its public API surface. See
// DESIGN.md.
func (c *Collector) exportEdges() {
	if c.unit.Signature == nil {
		return
	}
	for _, id := range c.unit.Signature.Exports {
		c.g.AddEdge(Top, IdNode(id), constTop)
	}
}
