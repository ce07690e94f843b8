// Package liveness implements spec §4.4's Live lattice: the structural
// "how much of a value is observed" descriptor that the dependency
// graph propagates from side-effecting sinks back to sources.
package liveness

import (
	"strings"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
)

// Kind discriminates Live's four shapes.
type Kind int

const (
	KBot Kind = iota
	KTop
	KFunc
	KCtor
)

// Live is spec §4.4's `Live := Top | Bot | Func(Live) | Ctor(Map<CtorTag,
// [Live]>)`. The zero Live is Bot, so an unset map/slice entry means
// "not demanded" without any extra bookkeeping.
//
// Record fields are keyed one-per-field, as closure.CtorTag{Kind:
// TagRecord, Name: fieldName} mapped to a single-element slice, rather
// than one combined record tag indexed positionally: a record pattern
// or field access names a field, never a position, and source order
// carries no meaning the rest of the system can recover.
type Live struct {
	Kind   Kind
	Inner  *Live // valid when Kind == KFunc
	Fields map[closure.CtorTag][]Live
}

func Bot() Live { return Live{Kind: KBot} }
func Top() Live { return Live{Kind: KTop} }

// String renders l for -debug dumps; not used for any decision logic.
func (l Live) String() string {
	switch l.Kind {
	case KBot:
		return "Bot"
	case KTop:
		return "Top"
	case KFunc:
		return "Func(" + l.Inner.String() + ")"
	case KCtor:
		var b strings.Builder
		b.WriteString("Ctor{")
		first := true
		for tag, slots := range l.Fields {
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteString(tag.String())
			b.WriteByte('(')
			for i, s := range slots {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(s.String())
			}
			b.WriteByte(')')
		}
		b.WriteByte('}')
		return b.String()
	default:
		return "?"
	}
}

func Func(inner Live) Live { return Live{Kind: KFunc, Inner: &inner} }

func Ctor(fields map[closure.CtorTag][]Live) Live { return Live{Kind: KCtor, Fields: fields} }

// RecordField is shorthand for the record pseudo-tag described above.
func RecordField(name string) closure.CtorTag {
	return closure.CtorTag{Kind: closure.TagRecord, Name: name}
}

// Equal reports structural equality, used by internal/report to test a
// node for Bot and by tests to compare solved values.
func Equal(a, b Live) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KFunc:
		return Equal(*a.Inner, *b.Inner)
	case KCtor:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for tag, as := range a.Fields {
			bs, ok := b.Fields[tag]
			if !ok || len(as) != len(bs) {
				return false
			}
			for i := range as {
				if !Equal(as[i], bs[i]) {
					return false
				}
			}
		}
		return true
	default:
		return true
	}
}

// Join is the lattice's least upper bound. A tag present in only one
// operand contributes as-is (Bot is join's identity on the missing
// side); mismatched non-Ctor/Ctor shapes fall back to Top, the only
// sound combination when the two carriers can't be reconciled
// structurally (this only arises from unsound input or an unhandled
// node kind, per spec §7's conservative-fallback policy).
func Join(a, b Live) Live {
	if a.Kind == KTop || b.Kind == KTop {
		return Top()
	}
	if a.Kind == KBot {
		return b
	}
	if b.Kind == KBot {
		return a
	}
	if a.Kind == KFunc && b.Kind == KFunc {
		return Func(Join(*a.Inner, *b.Inner))
	}
	if a.Kind == KCtor && b.Kind == KCtor {
		return Ctor(mergeFields(a.Fields, b.Fields, Join, Bot()))
	}
	return Top()
}

// Meet is the lattice's greatest lower bound. A tag present in only one
// operand contributes as-is (Top is meet's identity on the missing
// side, dual to Join).
func Meet(a, b Live) Live {
	if a.Kind == KBot || b.Kind == KBot {
		return Bot()
	}
	if a.Kind == KTop {
		return b
	}
	if b.Kind == KTop {
		return a
	}
	if a.Kind == KFunc && b.Kind == KFunc {
		return Func(Meet(*a.Inner, *b.Inner))
	}
	if a.Kind == KCtor && b.Kind == KCtor {
		return Ctor(mergeFields(a.Fields, b.Fields, Meet, Top()))
	}
	return Bot()
}

func mergeFields(a, b map[closure.CtorTag][]Live, combine func(Live, Live) Live, identity Live) map[closure.CtorTag][]Live {
	out := make(map[closure.CtorTag][]Live, len(a)+len(b))
	for tag, as := range a {
		if bs, ok := b[tag]; ok {
			out[tag] = combineSlots(as, bs, combine, identity)
		} else {
			out[tag] = as
		}
	}
	for tag, bs := range b {
		if _, ok := a[tag]; !ok {
			out[tag] = bs
		}
	}
	return out
}

func combineSlots(as, bs []Live, combine func(Live, Live) Live, identity Live) []Live {
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	out := make([]Live, n)
	for i := 0; i < n; i++ {
		x, y := identity, identity
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		out[i] = combine(x, y)
	}
	return out
}

// Field extracts the i-th slot of carrier under tag (spec §4.4:
// "returning Top if the carrier is Top, Bot otherwise").
func Field(carrier Live, tag closure.CtorTag, i int) Live {
	if carrier.Kind == KTop {
		return Top()
	}
	if carrier.Kind != KCtor {
		return Bot()
	}
	slots, ok := carrier.Fields[tag]
	if !ok || i >= len(slots) {
		return Bot()
	}
	return slots[i]
}

// FromField injects l into the i-th slot under tag, every other slot
// and tag absent (hence implicitly Bot for join's purposes).
func FromField(tag closure.CtorTag, i int, l Live) Live {
	slots := make([]Live, i+1)
	slots[i] = l
	return Ctor(map[closure.CtorTag][]Live{tag: slots})
}

// Body unwraps a Func layer: the demand that flows into a function's
// body given a demand on the result of calling it (spec §4.4:
// "body(Func(l)) = l; body(Top) = Top; else Bot").
func Body(l Live) Live {
	switch l.Kind {
	case KFunc:
		return *l.Inner
	case KTop:
		return Top()
	default:
		return Bot()
	}
}

// IfNotBot returns then if l is not Bot, Bot otherwise — the
// "Func.ifnotbot" transformer named in spec §4.5 for guard and
// scrutinee edges: any non-trivial demand on the whole forces full
// evaluation of the condition, but no demand at all imposes none.
func IfNotBot(l, then Live) Live {
	if l.Kind == KBot {
		return Bot()
	}
	return then
}

// ControlledByPat computes the structural demand a pattern places on
// its scrutinee (spec §4.4): constants demand Top (the whole value must
// be inspected to compare), variables and wildcards demand Bot (no
// structural constraint beyond "this much must exist to bind"),
// constructors/tuples/records/variants the join of their children's
// demand wrapped under the matching tag. Arrays and lazy patterns force
// the scrutinee fully (spec's open question #1: array elements aren't
// tracked, so matching one at all is treated as a full observation).
func ControlledByPat(p artifact.Pattern) Live {
	switch pat := p.(type) {
	case *artifact.WildcardPattern:
		return Bot()
	case *artifact.VarPattern:
		return Bot()
	case *artifact.AliasPattern:
		return ControlledByPat(pat.Inner)
	case *artifact.ConstPattern:
		return Top()
	case *artifact.TuplePattern:
		slots := make([]Live, len(pat.Elems))
		for i, el := range pat.Elems {
			slots[i] = ControlledByPat(el)
		}
		return Ctor(map[closure.CtorTag][]Live{{Kind: closure.TagTuple}: slots})
	case *artifact.ConstructPattern:
		slots := make([]Live, len(pat.Args))
		for i, a := range pat.Args {
			slots[i] = ControlledByPat(a)
		}
		tag := closure.CtorTag{Kind: closure.TagConstruct, Name: pat.Name}
		return Ctor(map[closure.CtorTag][]Live{tag: slots})
	case *artifact.VariantPattern:
		var slots []Live
		if pat.Arg != nil {
			slots = []Live{ControlledByPat(pat.Arg)}
		}
		tag := closure.CtorTag{Kind: closure.TagVariant, Name: pat.Tag}
		return Ctor(map[closure.CtorTag][]Live{tag: slots})
	case *artifact.RecordPattern:
		fields := make(map[closure.CtorTag][]Live, len(pat.Fields))
		for _, fp := range pat.Fields {
			fields[RecordField(fp.Name)] = []Live{ControlledByPat(fp.Pattern)}
		}
		return Ctor(fields)
	case *artifact.OrPattern:
		return Join(ControlledByPat(pat.Left), ControlledByPat(pat.Right))
	case *artifact.ArrayPattern, *artifact.LazyPattern:
		return Top()
	default:
		return Top()
	}
}
