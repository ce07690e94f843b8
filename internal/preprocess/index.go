// Package preprocess implements spec §4.1: it walks each compilation
// unit's typed AST once, assigns every expression and module-expression
// occurrence a fresh Label, and builds the AST index that lets later
// phases resolve a Label back to its source location and structural
// summary without re-walking the original tree.
package preprocess

import (
	"sync"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
	"golang.org/x/xerrors"
)

// NodeInfo is the structural summary an AST index entry carries for one
// expression Label: its source position, its original node (for the
// reporter's excerpt and the constraint generator's per-kind logic), and
// — for Fun nodes — its synthesized parameter Id (spec §3: "function
// parameter" is always exactly one Id).
type NodeInfo struct {
	Pos     artifact.Pos
	Node    artifact.Expr
	Unit    string
	ParamId label.Id // valid only when Node is *artifact.Fun
}

// ModInfo is the analogous summary for a module-expression occurrence.
type ModInfo struct {
	Pos  artifact.Pos
	Node artifact.ModExpr
	Unit string
}

// Index maps every Label the preprocessor assigned back to its node
// summary (for a Fun node, including the Id the preprocessor synthesized
// for its implicit parameter).
//
// Per design note 9 ("wrap [process-wide state] in a per-analysis
// Context passed by reference"), Index has no package-level state: every
// field is populated by Walk and read thereafter.
type Index struct {
	Alloc *label.Allocator

	// mu guards every map below: config.Config.Parallel runs one Walk
	// goroutine per compilation unit (spec §5), and distinct units still
	// write into this one shared Index.
	mu       sync.Mutex
	exprs    map[label.Label]NodeInfo
	mods     map[label.Label]ModInfo
	labelOf  map[artifact.Expr]label.Label
	modLabel map[artifact.ModExpr]label.Label

	// externalIds caches synthesized Ids for (module, name) external
	// references so two uses of the same external name within one run
	// resolve to the same Id (label.Synthesize is already deterministic;
	// the cache only avoids recomputing the hash).
	externalIds map[externalKey]label.Id

	// declPos maps every bound Id to the source position of the binding
	// occurrence that introduced it (a VarPattern/AliasPattern, a Fun's
	// implicit parameter, a For's index, or a module binding), so internal/report can
	// point a dead-binding warning at the declaration rather than at
	// some arbitrary use (spec §4.7: "dead identifier nodes are reported
	// at declaration site").
	declPos map[label.Id]artifact.Pos
}

type externalKey struct{ Module, Name string }

// NewIndex returns an empty index sharing the given Label allocator; a
// single Allocator must be shared across every compilation unit in a run
// so Labels stay globally unique (spec §3).
func NewIndex(alloc *label.Allocator) *Index {
	return &Index{
		Alloc:       alloc,
		exprs:       make(map[label.Label]NodeInfo),
		mods:        make(map[label.Label]ModInfo),
		labelOf:     make(map[artifact.Expr]label.Label),
		modLabel:    make(map[artifact.ModExpr]label.Label),
		externalIds: make(map[externalKey]label.Id),
		declPos:     make(map[label.Id]artifact.Pos),
	}
}

// DeclPos returns the source position of id's binding occurrence, if
// Walk has recorded one.
func (ix *Index) DeclPos(id label.Id) (artifact.Pos, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	p, ok := ix.declPos[id]
	return p, ok
}

func (ix *Index) recordDecl(id label.Id, p artifact.Pos) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.declPos[id]; !ok {
		ix.declPos[id] = p
	}
}

// Expr resolves a Label to its node summary. Every Label produced by
// Walk satisfies this (spec §3 invariant: "Every Expr(L) key used in any
// constraint appears in the AST index").
func (ix *Index) Expr(l label.Label) (NodeInfo, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	info, ok := ix.exprs[l]
	return info, ok
}

func (ix *Index) Mod(l label.Label) (ModInfo, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	info, ok := ix.mods[l]
	return info, ok
}

// LabelOf returns the Label assigned to an already-walked expression
// node. Panics if e was never walked — an internal invariant violation,
// not a recoverable error (spec §7: "internal invariant violations ...
// abort the run").
func (ix *Index) LabelOf(e artifact.Expr) label.Label {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.labelOf[e]
	if !ok {
		panic(xerrors.Errorf("preprocess: node has no assigned label: %T", e))
	}
	return l
}

func (ix *Index) ModLabelOf(m artifact.ModExpr) label.Label {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	l, ok := ix.modLabel[m]
	if !ok {
		panic(xerrors.Errorf("preprocess: module node has no assigned label: %T", m))
	}
	return l
}

// ExternalId returns a stable Id for a reference to (module, name) that
// the host type-checker left unresolved (spec §3: "Identifiers of
// external top-level modules are synthesized on demand").
func (ix *Index) ExternalId(module, name string) label.Id {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key := externalKey{module, name}
	if id, ok := ix.externalIds[key]; ok {
		return id
	}
	id := label.Synthesize(module, name)
	ix.externalIds[key] = id
	return id
}

// Walker assigns labels while walking one compilation unit.
type Walker struct {
	ix   *Index
	unit string
}

// Walk preprocesses one compilation unit into ix, returning the Label
// assigned to each top-level binding's right-hand side is not returned
// directly — callers that need it look it up via ix.LabelOf on the
// binding's Rhs node. Walk never mutates u.
//
// Walk must not be called twice for the same *artifact.Fun node (spec
// §4.1: "if the same function label is preprocessed twice, raise an
// internal invariant error").
func Walk(ix *Index, u *artifact.CompilationUnit) {
	w := &Walker{ix: ix, unit: u.Name}
	for _, item := range u.Items {
		w.item(item)
	}
}

// walkPatternDecls records the declaration site of every variable pat
// binds, recursing through alias/tuple/constructor/record/or/array/lazy
// shapes the same way closure/depgraph's pattern walkers do.
func walkPatternDecls(ix *Index, pat artifact.Pattern) {
	switch p := pat.(type) {
	case *artifact.VarPattern:
		ix.recordDecl(p.Id, p.PatternPos())
	case *artifact.AliasPattern:
		ix.recordDecl(p.Id, p.PatternPos())
		walkPatternDecls(ix, p.Inner)
	case *artifact.TuplePattern:
		for _, sub := range p.Elems {
			walkPatternDecls(ix, sub)
		}
	case *artifact.ConstructPattern:
		for _, sub := range p.Args {
			walkPatternDecls(ix, sub)
		}
	case *artifact.VariantPattern:
		if p.Arg != nil {
			walkPatternDecls(ix, p.Arg)
		}
	case *artifact.RecordPattern:
		for _, fp := range p.Fields {
			walkPatternDecls(ix, fp.Pattern)
		}
	case *artifact.OrPattern:
		walkPatternDecls(ix, p.Left)
		walkPatternDecls(ix, p.Right)
	case *artifact.ArrayPattern:
		for _, sub := range p.Elems {
			walkPatternDecls(ix, sub)
		}
	case *artifact.LazyPattern:
		walkPatternDecls(ix, p.Inner)
	}
}

func (w *Walker) item(item artifact.StructureItem) {
	switch it := item.(type) {
	case artifact.ValueBindingItem:
		for _, b := range it.Bindings {
			walkPatternDecls(w.ix, b.Pattern)
			w.expr(b.Rhs)
		}
	case artifact.ModuleBindingItem:
		w.ix.recordDecl(it.Id, it.Mod.ModPos())
		w.modExpr(it.Mod)
	case artifact.ExpressionItem:
		w.expr(it.Expr)
	default:
		panic(xerrors.Errorf("preprocess: unknown structure item %T", item))
	}
}

// expr assigns e a fresh label, records its NodeInfo, and recurses into
// its children so their labels exist before any constraint referencing
// them is generated.
func (w *Walker) expr(e artifact.Expr) label.Label {
	if e == nil {
		return label.Label{}
	}
	w.ix.mu.Lock()
	existing, ok := w.ix.labelOf[e]
	if ok {
		w.ix.mu.Unlock()
		// Re-encountering the same node pointer is only possible for Fun,
		// whose body descriptors are keyed by the function's own label;
		// every other node occurs exactly once by construction.
		if _, isFun := e.(*artifact.Fun); isFun {
			panic(xerrors.Errorf("preprocess: function label assigned twice: %v", existing))
		}
		return existing
	}
	l := w.ix.Alloc.New()
	w.ix.labelOf[e] = l
	w.ix.mu.Unlock()

	info := NodeInfo{Pos: e.Pos(), Node: e, Unit: w.unit}

	switch n := e.(type) {
	case *artifact.Var, *artifact.ExternalRef, *artifact.Const, *artifact.Prim:
		// leaves: nothing to recurse into
	case *artifact.Let:
		for _, b := range n.Bindings {
			walkPatternDecls(w.ix, b.Pattern)
			w.expr(b.Rhs)
		}
		w.expr(n.Body)
	case *artifact.Fun:
		info.ParamId = l.SyntheticId(w.unit)
		w.ix.recordDecl(info.ParamId, e.Pos())
		for _, c := range n.Cases {
			walkPatternDecls(w.ix, c.Pattern)
			w.expr(c.Rhs)
		}
	case *artifact.App:
		w.expr(n.Fn)
		for _, a := range n.Args {
			w.expr(a)
		}
	case *artifact.Match:
		w.expr(n.Scrutinee)
		for _, arm := range n.Arms {
			walkPatternDecls(w.ix, arm.Pattern)
			if arm.Guard != nil {
				w.expr(arm.Guard)
			}
			w.expr(arm.Rhs)
		}
	case *artifact.Try:
		w.expr(n.Body)
		for _, arm := range n.Arms {
			walkPatternDecls(w.ix, arm.Pattern)
			if arm.Guard != nil {
				w.expr(arm.Guard)
			}
			w.expr(arm.Rhs)
		}
	case *artifact.Raise:
		w.expr(n.Exn)
	case *artifact.Tuple:
		for _, el := range n.Elems {
			w.expr(el)
		}
	case *artifact.Construct:
		for _, a := range n.Args {
			w.expr(a)
		}
	case *artifact.Variant:
		if n.Arg != nil {
			w.expr(n.Arg)
		}
	case *artifact.Record:
		for _, f := range n.Fields {
			w.expr(f.Value)
		}
	case *artifact.FieldGet:
		w.expr(n.Rec)
	case *artifact.FieldSet:
		w.expr(n.Rec)
		w.expr(n.Value)
	case *artifact.Seq:
		w.expr(n.E1)
		w.expr(n.E2)
	case *artifact.If:
		w.expr(n.Cond)
		w.expr(n.Then)
		if n.Else != nil {
			w.expr(n.Else)
		}
	case *artifact.While:
		w.expr(n.Cond)
		w.expr(n.Body)
	case *artifact.For:
		w.ix.recordDecl(n.Index, e.Pos())
		w.expr(n.Lo)
		w.expr(n.Hi)
		w.expr(n.Body)
	default:
		panic(xerrors.Errorf("preprocess: unhandled expr kind %T", e))
	}

	w.ix.mu.Lock()
	w.ix.exprs[l] = info
	w.ix.mu.Unlock()
	return l
}

func (w *Walker) modExpr(m artifact.ModExpr) label.Label {
	if m == nil {
		return label.Label{}
	}
	w.ix.mu.Lock()
	if existing, ok := w.ix.modLabel[m]; ok {
		w.ix.mu.Unlock()
		return existing
	}
	l := w.ix.Alloc.New()
	w.ix.modLabel[m] = l
	w.ix.mods[l] = ModInfo{Pos: m.ModPos(), Node: m, Unit: w.unit}
	w.ix.mu.Unlock()

	switch n := m.(type) {
	case artifact.MStruct:
		for _, it := range n.Items {
			w.item(it)
		}
	case artifact.MIdent:
		// leaf
	case artifact.MApply:
		w.modExpr(n.Functor)
		w.modExpr(n.Arg)
	default:
		panic(xerrors.Errorf("preprocess: unhandled module expr kind %T", m))
	}
	return l
}
