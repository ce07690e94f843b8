// Package artifact is the Go-side shape of the typed AST artifacts
// deadval consumes: one value per compilation unit, as produced by the
// host compiler's type-checker. The real artifact format (binary .cmt
// files, a serialized IR, whatever the host toolchain emits) is out of
// scope per the system's own external-interface contract; this package
// defines the minimal structural surface the rest of deadval needs and,
// in load.go, a JSON encoding of it for tests and for the artifact files
// cmd/deadval reads.
//
// Identifiers (Id) are assumed already resolved by the host
// type-checker, the same way OCaml's typedtree carries stamped Ident.t
// values at every binding and every use: deadval's preprocessor never
// performs name resolution, it only assigns Labels and builds the AST
// index (see internal/preprocess).
package artifact

import (
	"go/token"

	"github.com/sumtype/deadval/internal/label"
)

// CompilationUnit is one top-level module's typed AST.
type CompilationUnit struct {
	Name      string // cmt-module name
	File      string // source file path, for diagnostics
	Source    []byte // source text, for the reporter's excerpt and -write
	Items     []StructureItem
	Signature *Signature // nil if the unit exports nothing (or is a .ml with no .mli)

	// Primitives declares the effect classification of every primitive
	// name this unit's syntax may reference, sourced from the host
	// compiler's primitive registry (design note: open question #2).
	// Names absent from this map default to Impure (conservative).
	Primitives map[string]Effect
}

// Effect classifies whether invoking a primitive can be observed
// externally.
type Effect int

const (
	EffectImpure Effect = iota // default: conservatively tainting
	EffectPure
)

// Signature lists a module's exported members and the Id each resolves
// to, for the dependency collector's module-structure rule (spec §4.5).
type Signature struct {
	Exports map[string]label.Id
}

// StructureItem is one top-level item: a value binding group, a nested
// module binding, or a bare effectful expression (OCaml's `let () = e`).
type StructureItem interface{ structureItem() }

type ValueBindingItem struct {
	Rec      bool
	Bindings []LetBinding
}

type ModuleBindingItem struct {
	Id  label.Id
	Mod ModExpr
}

type ExpressionItem struct {
	Expr Expr
}

func (ValueBindingItem) structureItem()  {}
func (ModuleBindingItem) structureItem() {}
func (ExpressionItem) structureItem()    {}

// LetBinding pairs a pattern with its right-hand side, used both by
// `let`/`let rec` expressions and by top-level value bindings.
type LetBinding struct {
	Pattern Pattern
	Rhs     Expr
}

// Pos is a byte-offset source range, deliberately shaped like
// go/token.Position so the reporter can reuse token.Position's
// file/line/column formatting instead of inventing its own.
type Pos struct {
	Filename   string
	Line, Col  int
	Start, End int // byte offsets into Filename, for the excerpt underline
}

func (p Pos) Position() token.Position {
	return token.Position{Filename: p.Filename, Line: p.Line, Column: p.Col}
}

// ExprKind discriminates the concrete type of an Expr without a type
// switch, for internal/preprocess's structural node summaries.
type ExprKind int

const (
	KVar ExprKind = iota
	KExternalRef
	KConst
	KLet
	KFun
	KApp
	KMatch
	KTry
	KRaise
	KTuple
	KConstruct
	KVariant
	KRecord
	KFieldGet
	KFieldSet
	KSeq
	KIf
	KWhile
	KFor
	KPrim
)

func (k ExprKind) String() string {
	names := [...]string{
		"Var", "ExternalRef", "Const", "Let", "Fun", "App", "Match", "Try",
		"Raise", "Tuple", "Construct", "Variant", "Record", "FieldGet",
		"FieldSet", "Seq", "If", "While", "For", "Prim",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "ExprKind(?)"
}

// Expr is a typed-AST expression node. Every concrete type below
// implements it; internal/preprocess assigns each occurrence a Label.
type Expr interface {
	Kind() ExprKind
	Pos() Pos
	// HasUnitType reports whether the host type-checker inferred this
	// expression's static type as unit, used by internal/report to
	// suppress dead-expression warnings whose result is by definition
	// uninformative (spec §4.7).
	HasUnitType() bool
}

type exprBase struct {
	P    Pos
	Unit bool
}

func (e exprBase) Pos() Pos         { return e.P }
func (e exprBase) HasUnitType() bool { return e.Unit }

// Var is a reference to a name already resolved to an Id by the host
// type-checker (let/fun/for/module binding).
type Var struct {
	exprBase
	Id label.Id
}

func (*Var) Kind() ExprKind { return KVar }

// ExternalRef is a reference the host type-checker resolved to a member
// of a module outside the analyzed set: no Id is available, so
// internal/preprocess synthesizes one on demand.
type ExternalRef struct {
	exprBase
	Module, Name string
}

func (*ExternalRef) Kind() ExprKind { return KExternalRef }

// Const is any constant literal; constants never constrain C[L] (spec
// §4.2: "Constant. No constraint.").
type Const struct {
	exprBase
	Repr string // for -debug dumps and source excerpts only
}

func (*Const) Kind() ExprKind { return KConst }

type Let struct {
	exprBase
	Rec      bool
	Bindings []LetBinding
	Body     Expr
}

func (*Let) Kind() ExprKind { return KLet }

// FunCase is one `| pattern -> rhs` arm of a `function`-style closure.
type FunCase struct {
	Pattern Pattern
	Rhs     Expr
}

// Fun is a closure: `function p1 -> e1 | p2 -> e2 | ...`. Its implicit
// single formal parameter has no source-level Id; internal/preprocess
// synthesizes one (spec §3: "function parameter" is always exactly one
// Id, whether or not the surface syntax names it).
type Fun struct {
	exprBase
	Cases []FunCase
}

func (*Fun) Kind() ExprKind { return KFun }

// App is an application `f a1 ... an`.
type App struct {
	exprBase
	Fn   Expr
	Args []Expr
}

func (*App) Kind() ExprKind { return KApp }

type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil if unguarded
	Rhs     Expr
}

type Match struct {
	exprBase
	Scrutinee Expr
	Arms      []MatchArm
}

func (*Match) Kind() ExprKind { return KMatch }

// Try is `try body with arms`; the implicit scrutinee is the raised
// exception value, handled identically to Match's (spec §4.2: "Exception
// case. Treated as an additional arm with the exception pattern as
// scrutinee").
type Try struct {
	exprBase
	Body Expr
	Arms []MatchArm
}

func (*Try) Kind() ExprKind { return KTry }

type Raise struct {
	exprBase
	Exn Expr
}

func (*Raise) Kind() ExprKind { return KRaise }

type Tuple struct {
	exprBase
	Elems []Expr
}

func (*Tuple) Kind() ExprKind { return KTuple }

// Construct is an ordinary sum-type constructor application, including
// nullary constructors (Args may be empty) and exception constructors
// used as values (e.g. in `raise (Failure "x")`, the argument to Raise).
type Construct struct {
	exprBase
	Name string
	Args []Expr
}

func (*Construct) Kind() ExprKind { return KConstruct }

// Variant is a polymorphic variant `` `Tag arg ``; Arg is nil for a
// argument-less tag.
type Variant struct {
	exprBase
	Tag string
	Arg Expr
}

func (*Variant) Kind() ExprKind { return KVariant }

type RecordField struct {
	Name    string
	Value   Expr
	Mutable bool
}

type Record struct {
	exprBase
	Fields []RecordField
}

func (*Record) Kind() ExprKind { return KRecord }

type FieldGet struct {
	exprBase
	Rec   Expr
	Field string
}

func (*FieldGet) Kind() ExprKind { return KFieldGet }

// FieldSet is `e1.f <- e2`; always has the side-effect bit set (spec
// §4.2).
type FieldSet struct {
	exprBase
	Rec   Expr
	Field string
	Value Expr
}

func (*FieldSet) Kind() ExprKind { return KFieldSet }

type Seq struct {
	exprBase
	E1, E2 Expr
}

func (*Seq) Kind() ExprKind { return KSeq }

// If's Else is nil for a one-armed conditional (result is unit).
type If struct {
	exprBase
	Cond, Then, Else Expr
}

func (*If) Kind() ExprKind { return KIf }

type While struct {
	exprBase
	Cond, Body Expr
}

func (*While) Kind() ExprKind { return KWhile }

// For is `for i = lo to/downto hi do body done`; Index has no
// source-level occurrence of its own but is still exactly one Id (spec
// §3: "for-index" is explicitly listed among bound names).
type For struct {
	exprBase
	Index  label.Id
	Lo, Hi Expr
	Up     bool
	Body   Expr
}

func (*For) Kind() ExprKind { return KFor }

// Prim is a reference to a named primitive, already disambiguated from
// an ordinary Var by the host type-checker.
type Prim struct {
	exprBase
	Name  string
	Arity int
}

func (*Prim) Kind() ExprKind { return KPrim }

// ModExpr is a module-expression occurrence; like Expr, every occurrence
// gets its own Label.
type ModExpr interface {
	ModPos() Pos
}

type modBase struct{ P Pos }

func (m modBase) ModPos() Pos { return m.P }

// MStruct is a literal module structure `struct ... end`.
type MStruct struct {
	modBase
	Items []StructureItem
}

// MIdent is a reference to another module by path, analogous to Var but
// at the module level.
type MIdent struct {
	modBase
	Path string
}

// MApply is functor application; deadval does not model functors beyond
// the conservative fallback (spec §7): any node that flows through one
// is joined with Top.
type MApply struct {
	modBase
	Functor ModExpr
	Arg     ModExpr
}
