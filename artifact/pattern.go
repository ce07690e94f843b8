package artifact

import "github.com/sumtype/deadval/internal/label"

// PatternKind discriminates Pattern's concrete type.
type PatternKind int

const (
	PWildcard PatternKind = iota
	PVar
	PAlias
	PConst
	PTuple
	PConstruct
	PVariant
	PRecord
	POr
	PArray
	PLazy
)

// Pattern is a match/let/function pattern. internal/constraints binds
// patterns against a scrutinee source (spec §4.2, "Pattern binding").
type Pattern interface {
	PatternKind() PatternKind
	PatternPos() Pos
}

type patBase struct{ P Pos }

func (p patBase) PatternPos() Pos { return p.P }

type WildcardPattern struct{ patBase }

func (*WildcardPattern) PatternKind() PatternKind { return PWildcard }

// VarPattern binds the scrutinee to Id.
type VarPattern struct {
	patBase
	Id label.Id
}

func (*VarPattern) PatternKind() PatternKind { return PVar }

// AliasPattern is `p as x`.
type AliasPattern struct {
	patBase
	Inner Pattern
	Id    label.Id
}

func (*AliasPattern) PatternKind() PatternKind { return PAlias }

// ConstPattern matches a literal; per spec, constants "demand Top" in
// controlledByPat.
type ConstPattern struct {
	patBase
	Repr string
}

func (*ConstPattern) PatternKind() PatternKind { return PConst }

type TuplePattern struct {
	patBase
	Elems []Pattern
}

func (*TuplePattern) PatternKind() PatternKind { return PTuple }

type ConstructPattern struct {
	patBase
	Name string
	Args []Pattern
}

func (*ConstructPattern) PatternKind() PatternKind { return PConstruct }

type VariantPattern struct {
	patBase
	Tag string
	Arg Pattern // nil for an argument-less tag
}

func (*VariantPattern) PatternKind() PatternKind { return PVariant }

type RecordFieldPattern struct {
	Name    string
	Pattern Pattern
}

type RecordPattern struct {
	patBase
	Fields []RecordFieldPattern
}

func (*RecordPattern) PatternKind() PatternKind { return PRecord }

// OrPattern is `p1 | p2`; both sides bind against the same scrutinee
// (spec §4.2: "or-pattern p1 | p2 → bind both against S").
type OrPattern struct {
	patBase
	Left, Right Pattern
}

func (*OrPattern) PatternKind() PatternKind { return POr }

// ArrayPattern's elements are bound against Top: no per-element
// tracking (spec §4.2, and design note open question #1).
type ArrayPattern struct {
	patBase
	Elems []Pattern
}

func (*ArrayPattern) PatternKind() PatternKind { return PArray }

// LazyPattern is `lazy p`; like ArrayPattern its child binds against Top
// (spec §4.2: "array/lazy → bind children against Top").
type LazyPattern struct {
	patBase
	Inner Pattern
}

func (*LazyPattern) PatternKind() PatternKind { return PLazy }
