package closure

import (
	"sync"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/label"
)

// KeyKind discriminates Key's two flavors: the closure map C only ever
// tracks Expr(L) and Id(id) keys. Mutable field cells are not Keys;
// their value sets are held separately in Context.Mem, keyed by MemKey.
type KeyKind int

const (
	KeyExpr KeyKind = iota
	KeyId
)

type Key struct {
	Kind KeyKind
	L    label.Label
	Id   label.Id
}

func ExprKey(l label.Label) Key { return Key{Kind: KeyExpr, L: l} }
func IdKey(id label.Id) Key     { return Key{Kind: KeyId, Id: id} }

func (k Key) String() string {
	if k.Kind == KeyId {
		return "Id(" + k.Id.String() + ")"
	}
	return "Expr(" + k.L.String() + ")"
}

// Reduce is a pending application (f-label, first-arg-label,
// remaining-args) awaiting resolution during the closure fixed point
// (spec §4.2/§4.3, glossary "Reduction").
type Reduce struct {
	Call label.Label // the label of the application expression itself
	Fn   label.Label
	Arg  label.Label
	Rest []label.Label
}

// PendingBind is a pattern-binding projection awaiting resolution: bind
// Pattern against whatever value set Source ends up holding (spec §4.2,
// "Pattern binding"). Re-applied on every solver pass because which
// Ctor values Source holds can grow as the fixed point proceeds.
type PendingBind struct {
	Pattern artifact.Pattern
	Source  Key
}

// PendingFieldGet is a field-read projection: for every Ctor(record, ...)
// value appearing in Source, join Target with the value set of the
// child labeled Field (or, for a mutable field, with Mem(recordLabel,
// Field) — spec §4.2's field-access rule).
type PendingFieldGet struct {
	Source Key
	Field  string
	Target label.Label
}

// PendingFieldSet is an assignment projection: for every Mutable(L',
// Field) value appearing in Source, join Mem(L', Field) with Value's set
// (spec §4.2's assignment rule).
type PendingFieldSet struct {
	Source Key
	Field  string
	Value  Key
}

// Context is the process-wide state of the closure phase, held by
// reference rather than in package globals (design note 9). One Context
// is shared across every compilation unit in a run.
type Context struct {
	// mu guards every field below: config.Config.Parallel runs one
	// constraints.Generate goroutine per compilation unit (spec §5),
	// and every unit's generator writes into this one shared Context.
	mu          sync.Mutex
	C           map[Key]ValueSet
	SideEffects map[label.Label]bool
	Mem         map[MemKey]ValueSet

	Reductions       []Reduce
	PendingBinds     []PendingBind
	PendingFieldGets []PendingFieldGet
	PendingFieldSets []PendingFieldSet
}

// MemKey addresses a mutable record field's storage cell: the record
// literal's own label plus the field name (spec §3's Mem flow node,
// narrowed to (label, field) pairs since that's the only shape a mutable
// field cell ever takes in this language).
type MemKey struct {
	L     label.Label
	Field string
}

func NewContext() *Context {
	return &Context{
		C:           make(map[Key]ValueSet),
		SideEffects: make(map[label.Label]bool),
		Mem:         make(map[MemKey]ValueSet),
	}
}

func (cx *Context) GetMem(k MemKey) ValueSet {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return cx.Mem[k]
}

func (cx *Context) JoinMem(k MemKey, vs ValueSet) bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cur := cx.Mem[k]
	changed := cur.Join(vs)
	cx.Mem[k] = cur
	return changed
}

func (cx *Context) Get(k Key) ValueSet {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return cx.C[k]
}

func (cx *Context) GetExpr(l label.Label) ValueSet { return cx.Get(ExprKey(l)) }
func (cx *Context) GetId(id label.Id) ValueSet     { return cx.Get(IdKey(id)) }

// Join merges vs into the set at k, returning whether anything changed.
func (cx *Context) Join(k Key, vs ValueSet) bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cur := cx.C[k]
	changed := cur.Join(vs)
	cx.C[k] = cur
	return changed
}

func (cx *Context) JoinValue(k Key, v Value) bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cur := cx.C[k]
	changed := cur.Add(v)
	cx.C[k] = cur
	return changed
}

func (cx *Context) JoinExpr(l label.Label, vs ValueSet) bool { return cx.Join(ExprKey(l), vs) }
func (cx *Context) JoinId(id label.Id, vs ValueSet) bool     { return cx.Join(IdKey(id), vs) }

func (cx *Context) SetTop(k Key) bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cur := cx.C[k]
	changed := cur.SetTop()
	cx.C[k] = cur
	return changed
}

// MarkSideEffect records that evaluating l may cause an externally
// observable effect (spec §3: "Side-effect set (E)").
func (cx *Context) MarkSideEffect(l label.Label) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.SideEffects[l] = true
}

func (cx *Context) HasSideEffect(l label.Label) bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return cx.SideEffects[l]
}

func (cx *Context) AddReduction(r Reduce) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.Reductions = append(cx.Reductions, r)
}

func (cx *Context) AddBind(pat artifact.Pattern, source Key) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.PendingBinds = append(cx.PendingBinds, PendingBind{Pattern: pat, Source: source})
}

func (cx *Context) AddFieldGet(source Key, field string, target label.Label) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.PendingFieldGets = append(cx.PendingFieldGets, PendingFieldGet{Source: source, Field: field, Target: target})
}

func (cx *Context) AddFieldSet(source Key, field string, value Key) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.PendingFieldSets = append(cx.PendingFieldSets, PendingFieldSet{Source: source, Field: field, Value: value})
}
