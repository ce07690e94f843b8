// Package closure implements spec §3's abstract-value lattice and §4.3's
// closure solver: the 0-CFA fixed point that maps every Label and Id to
// an over-approximated set of abstract values.
package closure

import (
	"strconv"
	"strings"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
)

// ValueKind discriminates Value's variant.
type ValueKind int

const (
	VPrim ValueKind = iota
	VFn
	VPartialApp
	VCtor
	VMutable
	VExprRef
	VIdRef
	VUnknown
)

// CtorTagKind discriminates the five shapes a Ctor value's tag may take
// (spec §4.4: "Constructor tags include ordinary constructors,
// polymorphic variants, tuple, record, and 'member of module named s'").
type CtorTagKind int

const (
	TagConstruct CtorTagKind = iota
	TagVariant
	TagTuple
	TagRecord
	TagModule
)

// CtorTag identifies which "shape" of sum value a Ctor Value or a
// liveness.Ctor lattice element carries.
type CtorTag struct {
	Kind CtorTagKind
	Name string // constructor/variant/field-access-irrelevant/module name; "" for Tuple
}

func (t CtorTag) String() string {
	switch t.Kind {
	case TagConstruct:
		return "C:" + t.Name
	case TagVariant:
		return "V:" + t.Name
	case TagTuple:
		return "tuple"
	case TagRecord:
		return "record"
	case TagModule:
		return "M:" + t.Name
	default:
		return "?"
	}
}

// FunBody is one `pattern -> rhs` case of a Fn value, mirroring
// spec §3's "Fn(L, param-Id, bodies)" where bodies are
// (pattern, label-of-rhs) descriptors.
type FunBody struct {
	Pattern artifact.Pattern
	Rhs     label.Label
}

// Value is one abstract value an expression may evaluate to (spec §3).
// Exactly one of the variant pointer fields is non-nil, selected by Kind.
type Value struct {
	Kind ValueKind

	Prim *PrimValue
	Fn   *FnValue
	PA   *PartialAppValue
	Ctor *CtorValue
	Mut  *MutableValue
	Ref  *RefValue
}

type PrimValue struct {
	Name   string
	Arity  int
	Effect artifact.Effect
}

// FnValue is a function closure identified by its defining expression's
// Label (spec §3; also the basis for "function identity via defining
// expression label" in the design notes, replacing reference equality).
type FnValue struct {
	Label  label.Label
	Param  label.Id
	Bodies []FunBody
}

// PartialAppValue is an under-applied call awaiting more arguments.
type PartialAppValue struct {
	Callee label.Label   // the label of the function expression
	Args   []label.Label // arguments already supplied
}

// CtorValue is a constructed sum value: ordinary constructor,
// polymorphic variant, tuple, or record. Variants carry their defining
// label (spec §3: "variants carry their label") so two
// syntactically-identical variant literals at different sites are not
// conflated; records also carry it, because a mutable field's storage
// cell (Mem) is addressed by the record literal's own label plus field
// name, and that label has to come from somewhere.
type CtorValue struct {
	Tag      CtorTag
	Label    label.Label // valid for Tag.Kind in {TagVariant, TagRecord}
	Children []label.Label
	// FieldNames is parallel to Children and non-nil only when
	// Tag.Kind == TagRecord, so field access can resolve a field name to
	// its child's label without a fixed field order assumption.
	FieldNames []string
	// Mutable marks which of FieldNames are mutable record fields, read
	// and written through Mem(Label, field) instead of through Children
	// directly (spec §4.2's field-access and assignment rules).
	Mutable map[string]bool
}

// MutableValue is a reference to a mutable record field's storage cell.
type MutableValue struct {
	Label label.Label
	Field string
}

// RefValue is ExprRef(L) or IdRef(id): an indirection back to another
// node's value set, resolved by the closure solver's transitive-closure
// step without copying sets during constraint generation.
type RefValue struct {
	IsId  bool
	Label label.Label
	Id    label.Id
}

func Prim(name string, arity int, eff artifact.Effect) Value {
	return Value{Kind: VPrim, Prim: &PrimValue{Name: name, Arity: arity, Effect: eff}}
}

func Fn(l label.Label, param label.Id, bodies []FunBody) Value {
	return Value{Kind: VFn, Fn: &FnValue{Label: l, Param: param, Bodies: bodies}}
}

func PartialApp(callee label.Label, args []label.Label) Value {
	return Value{Kind: VPartialApp, PA: &PartialAppValue{Callee: callee, Args: args}}
}

func Ctor(tag CtorTag, children []label.Label) Value {
	return Value{Kind: VCtor, Ctor: &CtorValue{Tag: tag, Children: children}}
}

// VariantValue is Ctor specialized for polymorphic variants, which carry
// their defining label.
func VariantValue(name string, definingLabel label.Label, children []label.Label) Value {
	return Value{Kind: VCtor, Ctor: &CtorValue{
		Tag:      CtorTag{Kind: TagVariant, Name: name},
		Label:    definingLabel,
		Children: children,
	}}
}

// RecordValue is Ctor specialized for record literals.
func RecordValue(definingLabel label.Label, fieldNames []string, children []label.Label, mutable map[string]bool) Value {
	return Value{Kind: VCtor, Ctor: &CtorValue{
		Tag:        CtorTag{Kind: TagRecord},
		Label:      definingLabel,
		Children:   children,
		FieldNames: fieldNames,
		Mutable:    mutable,
	}}
}

func Mutable(l label.Label, field string) Value {
	return Value{Kind: VMutable, Mut: &MutableValue{Label: l, Field: field}}
}

func ExprRef(l label.Label) Value {
	return Value{Kind: VExprRef, Ref: &RefValue{Label: l}}
}

func IdRef(id label.Id) Value {
	return Value{Kind: VIdRef, Ref: &RefValue{IsId: true, Id: id}}
}

func Unknown() Value { return Value{Kind: VUnknown} }

// key returns a canonical string distinguishing v from every
// non-equal Value, used by ValueSet to deduplicate without requiring
// Value to be a comparable (hence slice-free) struct.
func (v Value) key() string {
	var b strings.Builder
	switch v.Kind {
	case VPrim:
		b.WriteString("prim:")
		b.WriteString(v.Prim.Name)
	case VFn:
		b.WriteString("fn:")
		b.WriteString(v.Fn.Label.String())
	case VPartialApp:
		b.WriteString("pa:")
		b.WriteString(v.PA.Callee.String())
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(len(v.PA.Args)))
		for _, a := range v.PA.Args {
			b.WriteByte(',')
			b.WriteString(a.String())
		}
	case VCtor:
		b.WriteString("ctor:")
		b.WriteString(v.Ctor.Tag.String())
		if v.Ctor.Tag.Kind == TagVariant || v.Ctor.Tag.Kind == TagRecord {
			b.WriteByte('@')
			b.WriteString(v.Ctor.Label.String())
		}
		for _, c := range v.Ctor.Children {
			b.WriteByte(',')
			b.WriteString(c.String())
		}
	case VMutable:
		b.WriteString("mut:")
		b.WriteString(v.Mut.Label.String())
		b.WriteByte('.')
		b.WriteString(v.Mut.Field)
	case VExprRef:
		b.WriteString("exprref:")
		b.WriteString(v.Ref.Label.String())
	case VIdRef:
		b.WriteString("idref:")
		b.WriteString(v.Ref.Id.String())
	case VUnknown:
		b.WriteString("unknown")
	}
	return b.String()
}
