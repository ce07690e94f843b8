// Package deadval wires the analyzer's phases into spec §5's batched
// pipeline: preprocess every compilation unit, generate constraints,
// solve the closure fixed point, collect the dependency graph, solve
// liveness over it, and report the dead nodes.
//
// Each phase runs to completion across every unit before the next
// starts (spec §5: "no phase may begin until every unit has finished
// the previous one"); only the per-unit work inside the preprocess and
// constraints phases is eligible to run concurrently, and only when
// config.Config.Parallel is set.
package deadval

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/sumtype/deadval/artifact"
	"github.com/sumtype/deadval/config"
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/constraints"
	"github.com/sumtype/deadval/internal/depgraph"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/liveness"
	"github.com/sumtype/deadval/internal/preprocess"
	"github.com/sumtype/deadval/internal/report"
)

// UnitError names the compilation unit a recoverable per-unit failure
// came from (spec §7: "the offending unit is skipped with a
// warning"). A unit reaching Analyze is expected to have a well-formed
// AST already (the artifact format's own loader rejects malformed
// JSON before Analyze ever sees it) — UnitError instead catches the
// analyzer's own internal-consistency panics, such as a pattern whose
// shape preprocess.Walk never recorded a label for.
type UnitError struct {
	Unit string
	Err  error
}

func (e *UnitError) Error() string {
	return xerrors.Errorf("%s: %w", e.Unit, e.Err).Error()
}

// Result is one run's complete output: every live/dead classification
// the reporter produced, plus the solved graph and liveness map, kept
// around so -whyalive/-whydead can search them without re-solving.
type Result struct {
	Warnings []report.Warning
	Graph    *depgraph.Graph
	Liveness map[depgraph.Node]liveness.Live
	Index    *preprocess.Index
	Context  *closure.Context
}

// Analyze runs the full pipeline over units and returns the dead-value
// warnings the reporter produced (sorted per report.Reporter.Report)
// together with any per-unit failures. A unit that fails during
// preprocessing or constraint generation is not collected, so it adds
// no graph nodes and no warnings; a unit that fails during collection
// keeps the nodes and edges it added before the failure, and those are
// reported like any other. Every other unit is analyzed in full.
func Analyze(units []*artifact.CompilationUnit, cfg config.Config) (*Result, []UnitError) {
	alloc := &label.Allocator{}
	ix := preprocess.NewIndex(alloc)
	excLabel := alloc.New()

	ok, errs := runPreprocess(ix, units, cfg.Parallel)

	cx := closure.NewContext()
	ok, genErrs := runGenerate(cx, ix, excLabel, ok, cfg.Parallel)
	errs = append(errs, genErrs...)

	closure.Solve(cx)

	g := depgraph.NewGraph()
	coll := depgraph.NewCollector(g, cx, ix, excLabel)
	for _, u := range ok {
		if err := collectUnit(coll, u); err != nil {
			errs = append(errs, UnitError{Unit: u.Name, Err: err})
		}
	}

	m := depgraph.Solve(g)

	sources := make(map[string][]byte, len(units))
	for _, u := range units {
		sources[u.Name] = u.Source
	}

	r := &report.Reporter{
		G:        g,
		M:        m,
		Cx:       cx,
		Ix:       ix,
		Sources:  sources,
		Suppress: cfg.Suppress,
	}

	return &Result{
		Warnings: r.Report(),
		Graph:    g,
		Liveness: m,
		Index:    ix,
		Context:  cx,
	}, errs
}

// recoverAsError turns a panic from one unit's phase into a plain
// error, the way a top-level recover in a worker pool would, so a
// malformed unit can be skipped instead of taking the whole run down.
func recoverAsError(errp *error) {
	if v := recover(); v != nil {
		if err, isErr := v.(error); isErr {
			*errp = err
		} else {
			*errp = fmt.Errorf("%v", v)
		}
	}
}

func walkUnit(ix *preprocess.Index, u *artifact.CompilationUnit) (err error) {
	defer recoverAsError(&err)
	preprocess.Walk(ix, u)
	return nil
}

// runPreprocess walks every unit into ix, sequentially unless cfg asks
// for one goroutine per unit. preprocess.Index is safe for concurrent
// use (see internal/preprocess's mutex) precisely so this can fan out.
// It returns the units that preprocessed cleanly.
func runPreprocess(ix *preprocess.Index, units []*artifact.CompilationUnit, parallel bool) ([]*artifact.CompilationUnit, []UnitError) {
	if !parallel {
		var ok []*artifact.CompilationUnit
		var errs []UnitError
		for _, u := range units {
			if err := walkUnit(ix, u); err != nil {
				errs = append(errs, UnitError{Unit: u.Name, Err: err})
				continue
			}
			ok = append(ok, u)
		}
		return ok, errs
	}

	results := make([]error, len(units))
	var g errgroup.Group
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			results[i] = walkUnit(ix, u)
			return nil
		})
	}
	g.Wait()

	var ok []*artifact.CompilationUnit
	var errs []UnitError
	for i, u := range units {
		if results[i] != nil {
			errs = append(errs, UnitError{Unit: u.Name, Err: results[i]})
			continue
		}
		ok = append(ok, u)
	}
	return ok, errs
}

func generateUnit(cx *closure.Context, ix *preprocess.Index, excLabel label.Label, u *artifact.CompilationUnit) (err error) {
	defer recoverAsError(&err)
	constraints.New(cx, ix, excLabel).Generate(u)
	return nil
}

// runGenerate seeds cx with every unit's constraints, sequentially
// unless cfg asks for one goroutine per unit. Safe to parallelize
// because Generate never reads cx's resolved value sets, only writes
// into it (see internal/constraints's package doc). It returns the
// units that generated cleanly, for depgraph.Collect to walk in turn.
func runGenerate(cx *closure.Context, ix *preprocess.Index, excLabel label.Label, units []*artifact.CompilationUnit, parallel bool) ([]*artifact.CompilationUnit, []UnitError) {
	if !parallel {
		var ok []*artifact.CompilationUnit
		var errs []UnitError
		for _, u := range units {
			if err := generateUnit(cx, ix, excLabel, u); err != nil {
				errs = append(errs, UnitError{Unit: u.Name, Err: err})
				continue
			}
			ok = append(ok, u)
		}
		return ok, errs
	}

	results := make([]error, len(units))
	var g errgroup.Group
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			results[i] = generateUnit(cx, ix, excLabel, u)
			return nil
		})
	}
	g.Wait()

	var ok []*artifact.CompilationUnit
	var errs []UnitError
	for i, u := range units {
		if results[i] != nil {
			errs = append(errs, UnitError{Unit: u.Name, Err: results[i]})
			continue
		}
		ok = append(ok, u)
	}
	return ok, errs
}

// collectUnit runs the dependency collector over one unit, isolating
// the run from a panic the same way runPreprocess/runGenerate do. The
// collector runs single-threaded regardless of config.Config.Parallel
// (spec §5: collection happens after the closure fixed point, which
// is itself strictly sequential), so there is no goroutine fan-out
// here to mirror.
func collectUnit(coll *depgraph.Collector, u *artifact.CompilationUnit) (err error) {
	defer recoverAsError(&err)
	coll.Collect(u)
	return nil
}
