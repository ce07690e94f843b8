package report_test

import (
	"testing"

	"github.com/sumtype/deadval/internal/depgraph"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/liveness"
	"github.com/sumtype/deadval/internal/report"
)

func noop(l liveness.Live) liveness.Live { return l }

func TestPathFromTopTargetIsTopItself(t *testing.T) {
	g := depgraph.NewGraph()
	path, ok := report.PathFromTop(g, depgraph.Top)
	if !ok {
		t.Fatal("PathFromTop(Top) reported unreachable")
	}
	if len(path) != 0 {
		t.Errorf("PathFromTop(Top) returned %d steps, want 0", len(path))
	}
}

func TestPathFromTopFindsShortestChain(t *testing.T) {
	alloc := &label.Allocator{}
	a := depgraph.ExprNode(alloc.New())
	b := depgraph.ExprNode(alloc.New())
	c := depgraph.ExprNode(alloc.New())

	g := depgraph.NewGraph()
	// Two routes from Top to c: the direct Top->a->c hop, and a longer
	// Top->b->a->c detour; the search must prefer the 2-hop route.
	g.AddEdge(depgraph.Top, a, noop)
	g.AddEdge(a, c, noop)
	g.AddEdge(depgraph.Top, b, noop)
	g.AddEdge(b, a, noop)

	path, ok := report.PathFromTop(g, c)
	if !ok {
		t.Fatal("PathFromTop(c) reported unreachable")
	}
	if len(path) != 2 {
		t.Fatalf("got %d steps, want 2: %+v", len(path), path)
	}
	if path[0].From != depgraph.Top || path[0].To != a {
		t.Errorf("first step = %+v, want Top->a", path[0])
	}
	if path[1].From != a || path[1].To != c {
		t.Errorf("second step = %+v, want a->c", path[1])
	}
}

func TestPathFromTopReportsUnreachable(t *testing.T) {
	alloc := &label.Allocator{}
	orphan := depgraph.ExprNode(alloc.New())
	g := depgraph.NewGraph()
	g.AddNode(orphan)

	_, ok := report.PathFromTop(g, orphan)
	if ok {
		t.Error("PathFromTop reported a path to a node with no incoming edge")
	}
}
