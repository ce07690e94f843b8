package artifact

import (
	"encoding/json"

	"github.com/sumtype/deadval/internal/label"
	"golang.org/x/xerrors"
)

// Load decodes a sequence of compilation units from their JSON wire
// representation (one artifact file per cmd/deadval argument). The
// wire schema is deadval's own invention: the real host-compiler
// artifact format is out of scope (spec §6).
func Load(data []byte) ([]*CompilationUnit, error) {
	var wire []wireUnit
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, xerrors.Errorf("decoding artifact: %w", err)
	}
	units := make([]*CompilationUnit, 0, len(wire))
	for _, wu := range wire {
		u, err := wu.decode()
		if err != nil {
			return nil, xerrors.Errorf("decoding unit %q: %w", wu.Name, err)
		}
		units = append(units, u)
	}
	return units, nil
}

// -- wire schema: a tagged union keyed by "kind", the same shape
// gopls/internal/protocol's generated types use for LSP's discriminated
// unions, hand-written here since deadval has no code generator.

type wireUnit struct {
	Name       string            `json:"name"`
	File       string            `json:"file"`
	Source     string            `json:"source,omitempty"`
	Items      []wireItem        `json:"items"`
	Exports    map[string]uint64 `json:"exports,omitempty"`
	Primitives map[string]string `json:"primitives,omitempty"`
}

type wirePos struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

func (p wirePos) decode() Pos {
	return Pos{Filename: p.Filename, Line: p.Line, Col: p.Col, Start: p.Start, End: p.End}
}

type wireItem struct {
	Kind     string          `json:"kind"` // "value" | "module" | "expr"
	Rec      bool            `json:"rec,omitempty"`
	Bindings []wireBinding   `json:"bindings,omitempty"`
	Id       uint64          `json:"id,omitempty"`
	Mod      json.RawMessage `json:"mod,omitempty"`
	Expr     json.RawMessage `json:"expr,omitempty"`
}

type wireBinding struct {
	Pattern json.RawMessage `json:"pattern"`
	Rhs     json.RawMessage `json:"rhs"`
}

type wireNode struct {
	Kind string  `json:"kind"`
	Pos  wirePos `json:"pos"`

	// Shared optional payload fields; which ones are meaningful depends
	// on Kind. Kept flat rather than split per-kind to keep the decoder
	// a single switch instead of N near-duplicate structs.
	Id       uint64            `json:"id,omitempty"`
	Module   string            `json:"module,omitempty"`
	Name     string            `json:"name,omitempty"`
	Repr     string            `json:"repr,omitempty"`
	Rec      bool              `json:"rec,omitempty"`
	Bindings []wireBinding     `json:"bindings,omitempty"`
	Body     json.RawMessage   `json:"body,omitempty"`
	Cases    []wireCase        `json:"cases,omitempty"`
	Fn       json.RawMessage   `json:"fn,omitempty"`
	Args     []json.RawMessage `json:"args,omitempty"`
	Scrut    json.RawMessage   `json:"scrut,omitempty"`
	Arms     []wireArm         `json:"arms,omitempty"`
	Exn      json.RawMessage   `json:"exn,omitempty"`
	Elems    []json.RawMessage `json:"elems,omitempty"`
	Tag      string            `json:"tag,omitempty"`
	Arg      json.RawMessage   `json:"arg,omitempty"`
	Fields   []wireField       `json:"fields,omitempty"`
	Rec2     json.RawMessage   `json:"rec2,omitempty"` // FieldGet/FieldSet receiver
	Field    string            `json:"field,omitempty"`
	Value    json.RawMessage   `json:"value,omitempty"`
	E1       json.RawMessage   `json:"e1,omitempty"`
	E2       json.RawMessage   `json:"e2,omitempty"`
	Cond     json.RawMessage   `json:"cond,omitempty"`
	Then     json.RawMessage   `json:"then,omitempty"`
	Else     json.RawMessage   `json:"else,omitempty"`
	Lo       json.RawMessage   `json:"lo,omitempty"`
	Hi       json.RawMessage   `json:"hi,omitempty"`
	Up       bool              `json:"up,omitempty"`
	Index    uint64            `json:"index,omitempty"`
	Arity    int               `json:"arity,omitempty"`
	Items    []wireItem        `json:"items,omitempty"`
	Path     string            `json:"path,omitempty"`
	Functor  json.RawMessage   `json:"functor,omitempty"`
	Unit     bool              `json:"unit,omitempty"`
}

type wireCase struct {
	Pattern json.RawMessage `json:"pattern"`
	Rhs     json.RawMessage `json:"rhs"`
}

type wireArm struct {
	Pattern json.RawMessage `json:"pattern"`
	Guard   json.RawMessage `json:"guard,omitempty"`
	Rhs     json.RawMessage `json:"rhs"`
}

type wireField struct {
	Name    string          `json:"name"`
	Value   json.RawMessage `json:"value,omitempty"`   // Record
	Pattern json.RawMessage `json:"pattern,omitempty"` // RecordPattern
	Mutable bool            `json:"mutable,omitempty"`
}

func (wu wireUnit) decode() (*CompilationUnit, error) {
	u := &CompilationUnit{Name: wu.Name, File: wu.File, Source: []byte(wu.Source)}
	if wu.Primitives != nil {
		u.Primitives = make(map[string]Effect, len(wu.Primitives))
		for name, eff := range wu.Primitives {
			if eff == "pure" {
				u.Primitives[name] = EffectPure
			} else {
				u.Primitives[name] = EffectImpure
			}
		}
	}
	if wu.Exports != nil {
		sig := &Signature{Exports: make(map[string]label.Id, len(wu.Exports))}
		for name, stamp := range wu.Exports {
			sig.Exports[name] = label.Id{Module: wu.Name, Stamp: stamp}
		}
		u.Signature = sig
	}
	items, err := decodeItems(wu.Name, wu.Items)
	if err != nil {
		return nil, err
	}
	u.Items = items
	return u, nil
}

func decodeItems(module string, wis []wireItem) ([]StructureItem, error) {
	items := make([]StructureItem, 0, len(wis))
	for _, wi := range wis {
		it, err := decodeItem(module, wi)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeItem(module string, wi wireItem) (StructureItem, error) {
	switch wi.Kind {
	case "value":
		bindings, err := decodeBindings(module, wi.Bindings)
		if err != nil {
			return nil, err
		}
		return ValueBindingItem{Rec: wi.Rec, Bindings: bindings}, nil
	case "module":
		mod, err := decodeModExpr(module, wi.Mod)
		if err != nil {
			return nil, err
		}
		return ModuleBindingItem{Id: label.Id{Module: module, Stamp: wi.Id}, Mod: mod}, nil
	case "expr":
		e, err := decodeExpr(module, wi.Expr)
		if err != nil {
			return nil, err
		}
		return ExpressionItem{Expr: e}, nil
	default:
		return nil, xerrors.Errorf("unknown structure item kind %q", wi.Kind)
	}
}

func decodeBindings(module string, wbs []wireBinding) ([]LetBinding, error) {
	out := make([]LetBinding, 0, len(wbs))
	for _, wb := range wbs {
		pat, err := decodePattern(module, wb.Pattern)
		if err != nil {
			return nil, err
		}
		rhs, err := decodeExpr(module, wb.Rhs)
		if err != nil {
			return nil, err
		}
		out = append(out, LetBinding{Pattern: pat, Rhs: rhs})
	}
	return out, nil
}

func decodeExpr(module string, raw json.RawMessage) (Expr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n wireNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, xerrors.Errorf("decoding expr: %w", err)
	}
	pos := n.Pos.decode()

	decodeOne := func(r json.RawMessage) (Expr, error) { return decodeExpr(module, r) }
	decodeMany := func(rs []json.RawMessage) ([]Expr, error) {
		out := make([]Expr, 0, len(rs))
		for _, r := range rs {
			e, err := decodeOne(r)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}

	switch n.Kind {
	case "var":
		return &Var{exprBase{pos, n.Unit}, label.Id{Module: module, Stamp: n.Id}}, nil
	case "external":
		return &ExternalRef{exprBase{pos, n.Unit}, n.Module, n.Name}, nil
	case "const":
		return &Const{exprBase{pos, n.Unit}, n.Repr}, nil
	case "let":
		bindings, err := decodeBindings(module, n.Bindings)
		if err != nil {
			return nil, err
		}
		body, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		return &Let{exprBase{pos, n.Unit}, n.Rec, bindings, body}, nil
	case "fun":
		cases := make([]FunCase, 0, len(n.Cases))
		for _, c := range n.Cases {
			pat, err := decodePattern(module, c.Pattern)
			if err != nil {
				return nil, err
			}
			rhs, err := decodeOne(c.Rhs)
			if err != nil {
				return nil, err
			}
			cases = append(cases, FunCase{Pattern: pat, Rhs: rhs})
		}
		return &Fun{exprBase{pos, n.Unit}, cases}, nil
	case "app":
		fn, err := decodeOne(n.Fn)
		if err != nil {
			return nil, err
		}
		args, err := decodeMany(n.Args)
		if err != nil {
			return nil, err
		}
		return &App{exprBase{pos, n.Unit}, fn, args}, nil
	case "match":
		scrut, err := decodeOne(n.Scrut)
		if err != nil {
			return nil, err
		}
		arms, err := decodeArms(module, n.Arms)
		if err != nil {
			return nil, err
		}
		return &Match{exprBase{pos, n.Unit}, scrut, arms}, nil
	case "try":
		body, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		arms, err := decodeArms(module, n.Arms)
		if err != nil {
			return nil, err
		}
		return &Try{exprBase{pos, n.Unit}, body, arms}, nil
	case "raise":
		exn, err := decodeOne(n.Exn)
		if err != nil {
			return nil, err
		}
		return &Raise{exprBase{pos, n.Unit}, exn}, nil
	case "tuple":
		elems, err := decodeMany(n.Elems)
		if err != nil {
			return nil, err
		}
		return &Tuple{exprBase{pos, n.Unit}, elems}, nil
	case "construct":
		args, err := decodeMany(n.Args)
		if err != nil {
			return nil, err
		}
		return &Construct{exprBase{pos, n.Unit}, n.Name, args}, nil
	case "variant":
		arg, err := decodeOne(n.Arg)
		if err != nil {
			return nil, err
		}
		return &Variant{exprBase{pos, n.Unit}, n.Tag, arg}, nil
	case "record":
		fields := make([]RecordField, 0, len(n.Fields))
		for _, f := range n.Fields {
			v, err := decodeOne(f.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, RecordField{Name: f.Name, Value: v, Mutable: f.Mutable})
		}
		return &Record{exprBase{pos, n.Unit}, fields}, nil
	case "fieldget":
		rec, err := decodeOne(n.Rec2)
		if err != nil {
			return nil, err
		}
		return &FieldGet{exprBase{pos, n.Unit}, rec, n.Field}, nil
	case "fieldset":
		rec, err := decodeOne(n.Rec2)
		if err != nil {
			return nil, err
		}
		val, err := decodeOne(n.Value)
		if err != nil {
			return nil, err
		}
		return &FieldSet{exprBase{pos, n.Unit}, rec, n.Field, val}, nil
	case "seq":
		e1, err := decodeOne(n.E1)
		if err != nil {
			return nil, err
		}
		e2, err := decodeOne(n.E2)
		if err != nil {
			return nil, err
		}
		return &Seq{exprBase{pos, n.Unit}, e1, e2}, nil
	case "if":
		cond, err := decodeOne(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := decodeOne(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := decodeOne(n.Else)
		if err != nil {
			return nil, err
		}
		return &If{exprBase{pos, n.Unit}, cond, then, els}, nil
	case "while":
		cond, err := decodeOne(n.Cond)
		if err != nil {
			return nil, err
		}
		body, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		return &While{exprBase{pos, n.Unit}, cond, body}, nil
	case "for":
		lo, err := decodeOne(n.Lo)
		if err != nil {
			return nil, err
		}
		hi, err := decodeOne(n.Hi)
		if err != nil {
			return nil, err
		}
		body, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		return &For{exprBase{pos, n.Unit}, label.Id{Module: module, Stamp: n.Index}, lo, hi, n.Up, body}, nil
	case "prim":
		return &Prim{exprBase{pos, n.Unit}, n.Name, n.Arity}, nil
	default:
		return nil, xerrors.Errorf("unknown expr kind %q", n.Kind)
	}
}

func decodeArms(module string, was []wireArm) ([]MatchArm, error) {
	out := make([]MatchArm, 0, len(was))
	for _, wa := range was {
		pat, err := decodePattern(module, wa.Pattern)
		if err != nil {
			return nil, err
		}
		var guard Expr
		if len(wa.Guard) > 0 {
			guard, err = decodeExpr(module, wa.Guard)
			if err != nil {
				return nil, err
			}
		}
		rhs, err := decodeExpr(module, wa.Rhs)
		if err != nil {
			return nil, err
		}
		out = append(out, MatchArm{Pattern: pat, Guard: guard, Rhs: rhs})
	}
	return out, nil
}

func decodePattern(module string, raw json.RawMessage) (Pattern, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n wireNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, xerrors.Errorf("decoding pattern: %w", err)
	}
	pos := n.Pos.decode()
	decodeOne := func(r json.RawMessage) (Pattern, error) { return decodePattern(module, r) }

	switch n.Kind {
	case "wildcard":
		return &WildcardPattern{patBase{pos}}, nil
	case "pvar":
		return &VarPattern{patBase{pos}, label.Id{Module: module, Stamp: n.Id}}, nil
	case "palias":
		inner, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		return &AliasPattern{patBase{pos}, inner, label.Id{Module: module, Stamp: n.Id}}, nil
	case "pconst":
		return &ConstPattern{patBase{pos}, n.Repr}, nil
	case "ptuple":
		elems := make([]Pattern, 0, len(n.Elems))
		for _, r := range n.Elems {
			p, err := decodeOne(r)
			if err != nil {
				return nil, err
			}
			elems = append(elems, p)
		}
		return &TuplePattern{patBase{pos}, elems}, nil
	case "pconstruct":
		args := make([]Pattern, 0, len(n.Args))
		for _, r := range n.Args {
			p, err := decodeOne(r)
			if err != nil {
				return nil, err
			}
			args = append(args, p)
		}
		return &ConstructPattern{patBase{pos}, n.Name, args}, nil
	case "pvariant":
		var arg Pattern
		var err error
		if len(n.Arg) > 0 {
			arg, err = decodeOne(n.Arg)
			if err != nil {
				return nil, err
			}
		}
		return &VariantPattern{patBase{pos}, n.Tag, arg}, nil
	case "precord":
		fields := make([]RecordFieldPattern, 0, len(n.Fields))
		for _, f := range n.Fields {
			p, err := decodeOne(f.Pattern)
			if err != nil {
				return nil, err
			}
			fields = append(fields, RecordFieldPattern{Name: f.Name, Pattern: p})
		}
		return &RecordPattern{patBase{pos}, fields}, nil
	case "por":
		left, err := decodeOne(n.E1)
		if err != nil {
			return nil, err
		}
		right, err := decodeOne(n.E2)
		if err != nil {
			return nil, err
		}
		return &OrPattern{patBase{pos}, left, right}, nil
	case "parray":
		elems := make([]Pattern, 0, len(n.Elems))
		for _, r := range n.Elems {
			p, err := decodeOne(r)
			if err != nil {
				return nil, err
			}
			elems = append(elems, p)
		}
		return &ArrayPattern{patBase{pos}, elems}, nil
	case "plazy":
		inner, err := decodeOne(n.Body)
		if err != nil {
			return nil, err
		}
		return &LazyPattern{patBase{pos}, inner}, nil
	default:
		return nil, xerrors.Errorf("unknown pattern kind %q", n.Kind)
	}
}

func decodeModExpr(module string, raw json.RawMessage) (ModExpr, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var n wireNode
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, xerrors.Errorf("decoding module expr: %w", err)
	}
	pos := n.Pos.decode()

	switch n.Kind {
	case "mstruct":
		items, err := decodeItems(module, n.Items)
		if err != nil {
			return nil, err
		}
		return MStruct{modBase{pos}, items}, nil
	case "mident":
		return MIdent{modBase{pos}, n.Path}, nil
	case "mapply":
		functor, err := decodeModExpr(module, n.Functor)
		if err != nil {
			return nil, err
		}
		arg, err := decodeModExpr(module, n.Arg)
		if err != nil {
			return nil, err
		}
		return MApply{modBase{pos}, functor, arg}, nil
	default:
		return nil, xerrors.Errorf("unknown module expr kind %q", n.Kind)
	}
}
