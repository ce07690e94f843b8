package closure

import (
	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
)

// applyBind projects pb.Pattern against pb.Source's current value set,
// joining every pattern variable's Id with the structurally-appropriate
// piece of whatever Ctor values Source holds (spec §4.2's pattern
// binding rules). Re-running it as Source's set grows is what makes
// this sound without having to know Source's values up front.
func applyBind(cx *Context, pb PendingBind) bool {
	return bindPattern(cx, pb.Pattern, pb.Source)
}

func bindPattern(cx *Context, pat artifact.Pattern, source Key) bool {
	return bindPatternVS(cx, pat, cx.Get(source))
}

// bindPatternVS is bindPattern's core: it projects pat against an
// already-resolved value set rather than a Key, so mutable record
// fields (whose current value lives in Mem, which Key can't address —
// see KeyKind's doc comment) can be bound without forcing Mem into the
// Key space.
func bindPatternVS(cx *Context, pat artifact.Pattern, vs ValueSet) bool {
	if vs.IsTop() {
		return bindPatternTop(cx, pat)
	}

	changed := false
	switch p := pat.(type) {
	case *artifact.WildcardPattern, *artifact.ConstPattern:
		// no binding, no projection

	case *artifact.VarPattern:
		if cx.JoinId(p.Id, vs) {
			changed = true
		}

	case *artifact.AliasPattern:
		if cx.JoinId(p.Id, vs) {
			changed = true
		}
		if bindPatternVS(cx, p.Inner, vs) {
			changed = true
		}

	case *artifact.TuplePattern:
		vs.Each(func(v Value) {
			if v.Kind != VCtor || v.Ctor.Tag.Kind != TagTuple {
				return
			}
			if len(v.Ctor.Children) != len(p.Elems) {
				return
			}
			for i, sub := range p.Elems {
				if bindPattern(cx, sub, ExprKey(v.Ctor.Children[i])) {
					changed = true
				}
			}
		})

	case *artifact.ConstructPattern:
		vs.Each(func(v Value) {
			if v.Kind != VCtor || v.Ctor.Tag.Kind != TagConstruct || v.Ctor.Tag.Name != p.Name {
				return
			}
			if len(v.Ctor.Children) != len(p.Args) {
				return
			}
			for i, sub := range p.Args {
				if bindPattern(cx, sub, ExprKey(v.Ctor.Children[i])) {
					changed = true
				}
			}
		})

	case *artifact.VariantPattern:
		vs.Each(func(v Value) {
			if v.Kind != VCtor || v.Ctor.Tag.Kind != TagVariant || v.Ctor.Tag.Name != p.Tag {
				return
			}
			if p.Arg == nil {
				return
			}
			if len(v.Ctor.Children) < 1 {
				return
			}
			if bindPattern(cx, p.Arg, ExprKey(v.Ctor.Children[0])) {
				changed = true
			}
		})

	case *artifact.RecordPattern:
		vs.Each(func(v Value) {
			if v.Kind != VCtor || v.Ctor.Tag.Kind != TagRecord {
				return
			}
			for _, fp := range p.Fields {
				child, mutable, ok := fieldChild(v.Ctor, fp.Name)
				if !ok {
					continue
				}
				// Mutable fields are re-read from Mem on every pass so a
				// later assignment (applyFieldSet) is picked up here too,
				// matching applyFieldGet's own mutable branch.
				fieldVS := cx.Get(ExprKey(child))
				if mutable {
					fieldVS = cx.GetMem(MemKey{L: v.Ctor.Label, Field: fp.Name})
				}
				if bindPatternVS(cx, fp.Pattern, fieldVS) {
					changed = true
				}
			}
		})

	case *artifact.OrPattern:
		if bindPatternVS(cx, p.Left, vs) {
			changed = true
		}
		if bindPatternVS(cx, p.Right, vs) {
			changed = true
		}

	case *artifact.ArrayPattern:
		for _, el := range p.Elems {
			if bindPatternTop(cx, el) {
				changed = true
			}
		}

	case *artifact.LazyPattern:
		if bindPatternTop(cx, p.Inner) {
			changed = true
		}
	}
	return changed
}

// bindPatternTop binds every variable in pat to Top, the conservative
// fallback used when the scrutinee itself is Top or when the pattern
// shape (array, lazy) deliberately isn't tracked structurally.
func bindPatternTop(cx *Context, pat artifact.Pattern) bool {
	changed := false
	switch p := pat.(type) {
	case *artifact.WildcardPattern, *artifact.ConstPattern:
	case *artifact.VarPattern:
		if cx.SetTop(IdKey(p.Id)) {
			changed = true
		}
	case *artifact.AliasPattern:
		if cx.SetTop(IdKey(p.Id)) {
			changed = true
		}
		if bindPatternTop(cx, p.Inner) {
			changed = true
		}
	case *artifact.TuplePattern:
		for _, sub := range p.Elems {
			if bindPatternTop(cx, sub) {
				changed = true
			}
		}
	case *artifact.ConstructPattern:
		for _, sub := range p.Args {
			if bindPatternTop(cx, sub) {
				changed = true
			}
		}
	case *artifact.VariantPattern:
		if p.Arg != nil {
			if bindPatternTop(cx, p.Arg) {
				changed = true
			}
		}
	case *artifact.RecordPattern:
		for _, fp := range p.Fields {
			if bindPatternTop(cx, fp.Pattern) {
				changed = true
			}
		}
	case *artifact.OrPattern:
		if bindPatternTop(cx, p.Left) {
			changed = true
		}
		if bindPatternTop(cx, p.Right) {
			changed = true
		}
	case *artifact.ArrayPattern:
		for _, el := range p.Elems {
			if bindPatternTop(cx, el) {
				changed = true
			}
		}
	case *artifact.LazyPattern:
		if bindPatternTop(cx, p.Inner) {
			changed = true
		}
	}
	return changed
}

// fieldChild looks up a record Ctor value's field by name, returning its
// static initializer label, whether it's a mutable field, and whether
// the field was found at all.
func fieldChild(c *CtorValue, name string) (l label.Label, mutable bool, ok bool) {
	for i, n := range c.FieldNames {
		if n == name {
			return c.Children[i], c.Mutable[name], true
		}
	}
	return label.Label{}, false, false
}
