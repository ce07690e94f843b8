// Package report implements spec §4.7's Reporter: it walks the solved
// dependency graph's nodes, classifies each as dead or live, and emits
// warnings grounded on the same location/excerpt shape cmd/deadcode's
// jsonFunction/jsonPackage records use.
package report

import (
	"sort"
	"strings"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/depgraph"
	"github.com/sumtype/deadval/internal/liveness"
	"github.com/sumtype/deadval/internal/preprocess"
)

// Kind discriminates a warning's flavor (spec §4.7: "kind ∈
// {dead-expression, dead-binding}").
type Kind int

const (
	DeadExpression Kind = iota
	DeadBinding
)

func (k Kind) String() string {
	if k == DeadBinding {
		return "dead-binding"
	}
	return "dead-expression"
}

// Rule is the one diagnostic rule name this analyzer ever reports under
// (spec §6: "rule name (Dead Value)").
const Rule = "Dead Value"

// Warning is one reported dead node (spec §6's output record).
type Warning struct {
	Severity string // always "warning"; kept as a field for -f/-json uniformity
	Rule     string
	Kind     Kind
	File     string
	Line     int
	Start    int
	End      int
	Message  string
	Excerpt  string
}

func (w Warning) String() string { return w.File }

// Reporter classifies every flow node the dependency collector produced
// and turns the dead ones into Warnings.
type Reporter struct {
	G        *depgraph.Graph
	M        map[depgraph.Node]liveness.Live
	Cx       *closure.Context
	Ix       *preprocess.Index
	Sources  map[string][]byte // unit name -> source text, for excerpts
	Suppress []string          // path prefixes to drop, matched against File
}

// Report walks every node Collect registered and returns the dead ones'
// warnings, sorted by file then start offset (spec §5: "Warning output
// order is deterministic").
func (r *Reporter) Report() []Warning {
	var out []Warning
	for _, n := range r.G.Nodes() {
		switch n.Kind {
		case depgraph.NExpr:
			if w, ok := r.exprWarning(n); ok {
				out = append(out, w)
			}
		case depgraph.NId:
			if w, ok := r.idWarning(n); ok {
				out = append(out, w)
			}
		}
	}
	out = r.suppressed(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (r *Reporter) isDead(n depgraph.Node) bool {
	return liveness.Equal(r.M[n], liveness.Bot())
}

// exprWarning reports an Expr(L) node dead per spec §4.7: Bot, no side
// effect, and not of unit type (a dead unit-typed expression's result
// is by definition uninformative, so it's suppressed rather than
// reported).
func (r *Reporter) exprWarning(n depgraph.Node) (Warning, bool) {
	if !r.isDead(n) || r.Cx.HasSideEffect(n.L) {
		return Warning{}, false
	}
	info, ok := r.Ix.Expr(n.L)
	if !ok {
		return Warning{}, false
	}
	if info.Node.HasUnitType() {
		return Warning{}, false
	}
	pos := info.Node.Pos()
	return Warning{
		Severity: "warning",
		Rule:     Rule,
		Kind:     DeadExpression,
		File:     pos.Filename,
		Line:     pos.Line,
		Start:    pos.Start,
		End:      pos.End,
		Message:  "unused value",
		Excerpt:  excerpt(r.Sources[info.Unit], pos),
	}, true
}

// idWarning reports an Id node dead at its declaration site (spec
// §4.7: "dead identifier nodes are reported at declaration site").
func (r *Reporter) idWarning(n depgraph.Node) (Warning, bool) {
	if !r.isDead(n) {
		return Warning{}, false
	}
	pos, ok := r.Ix.DeclPos(n.Id)
	if !ok {
		return Warning{}, false
	}
	return Warning{
		Severity: "warning",
		Rule:     Rule,
		Kind:     DeadBinding,
		File:     pos.Filename,
		Line:     pos.Line,
		Start:    pos.Start,
		End:      pos.End,
		Message:  "unused binding",
		Excerpt:  excerpt(r.Sources[n.Id.Module], pos),
	}, true
}

func (r *Reporter) suppressed(ws []Warning) []Warning {
	if len(r.Suppress) == 0 {
		return ws
	}
	out := ws[:0]
	for _, w := range ws {
		drop := false
		for _, prefix := range r.Suppress {
			if strings.HasPrefix(w.File, prefix) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, w)
		}
	}
	return out
}

// excerpt renders the source line containing pos plus an ASCII
// underline of its byte range (spec §6: "source excerpt with an ASCII
// underline of the dead range"). Returns "" if src is unavailable,
// which -f/-json callers render as an empty Excerpt field rather than
// failing the run.
func excerpt(src []byte, pos artifact.Pos) string {
	if len(src) == 0 || pos.Start < 0 || pos.End > len(src) || pos.Start > pos.End {
		return ""
	}
	lineStart := pos.Start
	for lineStart > 0 && src[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := pos.End
	for lineEnd < len(src) && src[lineEnd] != '\n' {
		lineEnd++
	}
	line := string(src[lineStart:lineEnd])
	col := pos.Start - lineStart
	width := pos.End - pos.Start
	if width < 1 {
		width = 1
	}
	var b strings.Builder
	b.WriteString(line)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", col))
	b.WriteString(strings.Repeat("^", width))
	return b.String()
}
