package closure

import (
	"slices"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
)

// Solve runs the closure fixed point to completion (spec §4.3): repeated
// passes over transitive-reference resolution, application reductions,
// and pattern/field projections, until a full pass changes nothing. The
// label and constructor universe is finite, so this always terminates.
func Solve(cx *Context) {
	for {
		changed := false
		if resolveRefs(cx) {
			changed = true
		}
		if resolveReductions(cx) {
			changed = true
		}
		if resolveFieldGets(cx) {
			changed = true
		}
		if resolveFieldSets(cx) {
			changed = true
		}
		if resolveBinds(cx) {
			changed = true
		}
		if !changed {
			return
		}
	}
}

// resolveRefs folds every ExprRef/IdRef value's source set into the
// holding node, for both the ordinary closure map and the Mem map (spec
// §4.3 step 1: "transitive closure over ExprRef/IdRef indirections").
func resolveRefs(cx *Context) bool {
	changed := false

	keys := make([]Key, 0, len(cx.C))
	for k := range cx.C {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if pullRefs(cx, cx.C[k], func(vs ValueSet) bool { return cx.Join(k, vs) }) {
			changed = true
		}
	}

	memKeys := make([]MemKey, 0, len(cx.Mem))
	for k := range cx.Mem {
		memKeys = append(memKeys, k)
	}
	for _, k := range memKeys {
		if pullRefs(cx, cx.Mem[k], func(vs ValueSet) bool { return cx.JoinMem(k, vs) }) {
			changed = true
		}
	}
	return changed
}

// pullRefs resolves every ExprRef/IdRef value found in vs against cx,
// applying each resolved set via join.
func pullRefs(cx *Context, vs ValueSet, join func(ValueSet) bool) bool {
	if vs.IsTop() {
		return false
	}
	changed := false
	var refs []Value
	vs.Each(func(v Value) {
		if v.Kind == VExprRef || v.Kind == VIdRef {
			refs = append(refs, v)
		}
	})
	for _, v := range refs {
		var src ValueSet
		if v.Ref.IsId {
			src = cx.GetId(v.Ref.Id)
		} else {
			src = cx.GetExpr(v.Ref.Label)
		}
		if join(src) {
			changed = true
		}
	}
	return changed
}

// resolveReductions resolves every pending application against the
// current value set of its callee (spec §4.3 step 2). New reductions
// may be appended while resolving a curried chain or a PartialApp; those
// are picked up on this same pass since we index by position, not by
// range over a snapshot.
func resolveReductions(cx *Context) bool {
	changed := false
	for i := 0; i < len(cx.Reductions); i++ {
		if applyReduction(cx, cx.Reductions[i]) {
			changed = true
		}
	}
	return changed
}

func applyReduction(cx *Context, r Reduce) bool {
	fset := cx.GetExpr(r.Fn)
	changed := false

	allArgs := func() []label.Label { return append([]label.Label{r.Arg}, r.Rest...) }

	if fset.IsTop() {
		if cx.SetTop(ExprKey(r.Call)) {
			changed = true
		}
		for _, a := range allArgs() {
			if cx.SetTop(ExprKey(a)) {
				changed = true
			}
		}
		return changed
	}

	fset.Each(func(v Value) {
		switch v.Kind {
		case VFn:
			if cx.JoinId(v.Fn.Param, cx.GetExpr(r.Arg)) {
				changed = true
			}
			for _, body := range v.Fn.Bodies {
				if bindPattern(cx, body.Pattern, ExprKey(r.Arg)) {
					changed = true
				}
				if len(r.Rest) == 0 {
					if cx.JoinExpr(r.Call, cx.GetExpr(body.Rhs)) {
						changed = true
					}
				} else {
					if addReduction(cx, Reduce{Call: r.Call, Fn: body.Rhs, Arg: r.Rest[0], Rest: r.Rest[1:]}) {
						changed = true
					}
				}
			}

		case VPrim:
			supplied := 1 + len(r.Rest)
			switch {
			case supplied == v.Prim.Arity:
				if applyPrim(cx, v.Prim, allArgs(), r.Call) {
					changed = true
				}
			case supplied < v.Prim.Arity:
				if cx.JoinValue(ExprKey(r.Call), PartialApp(r.Fn, allArgs())) {
					changed = true
				}
			default:
				// over-applied: result of the fully-applied prefix is
				// itself called with the extra arguments. Conservative:
				// the host type-checker already ruled out arity
				// mismatches that aren't currying through a returned
				// closure, which this analysis doesn't track structurally.
				if cx.SetTop(ExprKey(r.Call)) {
					changed = true
				}
				for _, a := range allArgs() {
					if cx.SetTop(ExprKey(a)) {
						changed = true
					}
				}
			}

		case VPartialApp:
			combined := append(append([]label.Label{}, v.PA.Args...), allArgs()...)
			if addReduction(cx, Reduce{Call: r.Call, Fn: v.PA.Callee, Arg: combined[0], Rest: combined[1:]}) {
				changed = true
			}

		case VExprRef, VIdRef:
			// resolveRefs has already folded the referenced set into fset,
			// so its values are applied directly; the marker itself is not
			// a callee.

		default:
			// Ctor/Mutable/Unknown applied as a function: unreachable in a
			// well-typed program, but stay sound rather than panic.
			if cx.SetTop(ExprKey(r.Call)) {
				changed = true
			}
		}
	})
	return changed
}

// addReduction enqueues r unless an identical reduction is already
// pending, reporting whether it was added.
func addReduction(cx *Context, r Reduce) bool {
	for _, p := range cx.Reductions {
		if p.Call == r.Call && p.Fn == r.Fn && p.Arg == r.Arg && slices.Equal(p.Rest, r.Rest) {
			return false
		}
	}
	cx.AddReduction(r)
	return true
}

// applyPrim dispatches a fully-applied primitive call. No primitive gets
// modeled semantics; every call taints its arguments and its result to
// Top (spec §4.3's default rule), and marks the call site side-effecting
// unless the primitive is declared pure.
func applyPrim(cx *Context, p *PrimValue, args []label.Label, call label.Label) bool {
	changed := false
	if cx.SetTop(ExprKey(call)) {
		changed = true
	}
	for _, a := range args {
		if cx.SetTop(ExprKey(a)) {
			changed = true
		}
	}
	if p.Effect != artifact.EffectPure {
		cx.MarkSideEffect(call)
	}
	return changed
}

func resolveFieldGets(cx *Context) bool {
	changed := false
	for _, fg := range cx.PendingFieldGets {
		if applyFieldGet(cx, fg) {
			changed = true
		}
	}
	return changed
}

func applyFieldGet(cx *Context, fg PendingFieldGet) bool {
	vs := cx.Get(fg.Source)
	if vs.IsTop() {
		return cx.SetTop(ExprKey(fg.Target))
	}
	changed := false
	vs.Each(func(v Value) {
		if v.Kind != VCtor || v.Ctor.Tag.Kind != TagRecord {
			return
		}
		child, mutable, ok := fieldChild(v.Ctor, fg.Field)
		if !ok {
			return
		}
		if mutable {
			if cx.JoinExpr(fg.Target, cx.GetMem(MemKey{L: v.Ctor.Label, Field: fg.Field})) {
				changed = true
			}
		} else {
			if cx.JoinExpr(fg.Target, cx.GetExpr(child)) {
				changed = true
			}
		}
	})
	return changed
}

func resolveFieldSets(cx *Context) bool {
	changed := false
	for _, fs := range cx.PendingFieldSets {
		if applyFieldSet(cx, fs) {
			changed = true
		}
	}
	return changed
}

func applyFieldSet(cx *Context, fs PendingFieldSet) bool {
	vs := cx.Get(fs.Source)
	if vs.IsTop() {
		return false
	}
	changed := false
	vs.Each(func(v Value) {
		if v.Kind != VCtor || v.Ctor.Tag.Kind != TagRecord || !v.Ctor.Mutable[fs.Field] {
			return
		}
		if cx.JoinMem(MemKey{L: v.Ctor.Label, Field: fs.Field}, cx.Get(fs.Value)) {
			changed = true
		}
	})
	return changed
}

func resolveBinds(cx *Context) bool {
	changed := false
	for _, pb := range cx.PendingBinds {
		if applyBind(cx, pb) {
			changed = true
		}
	}
	return changed
}
