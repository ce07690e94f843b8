package depgraph

import (
	"testing"

	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/liveness"
)

func TestSolvePropagatesFromTopThroughChain(t *testing.T) {
	alloc := &label.Allocator{}
	a := ExprNode(alloc.New())
	b := ExprNode(alloc.New())
	g := NewGraph()
	g.AddEdge(Top, a, constTop)
	g.AddEdge(a, b, identity)

	m := Solve(g)
	if !liveness.Equal(m[a], liveness.Top()) {
		t.Errorf("a = %v, want Top", m[a])
	}
	if !liveness.Equal(m[b], liveness.Top()) {
		t.Errorf("b = %v, want Top", m[b])
	}
}

func TestSolveLeavesUnreachableNodeBot(t *testing.T) {
	alloc := &label.Allocator{}
	a := ExprNode(alloc.New())
	orphan := ExprNode(alloc.New())
	g := NewGraph()
	g.AddEdge(Top, a, constTop)
	g.AddNode(orphan)

	m := Solve(g)
	if !liveness.Equal(m[orphan], liveness.Bot()) {
		t.Errorf("orphan = %v, want Bot", m[orphan])
	}
}

// A self-referencing cycle reachable only from Top through one of its
// own members (spec end-to-end scenario 5: `let rec loop () = loop ()`)
// must still saturate every member to Top rather than getting stuck at
// Bot because the SCC has no edge entering from outside itself.
func TestSolveSaturatesSelfFeedingCycle(t *testing.T) {
	alloc := &label.Allocator{}
	a := ExprNode(alloc.New())
	b := ExprNode(alloc.New())
	g := NewGraph()
	g.AddEdge(Top, a, constTop)
	g.AddEdge(a, b, identity)
	g.AddEdge(b, a, identity)

	m := Solve(g)
	if !liveness.Equal(m[a], liveness.Top()) {
		t.Errorf("a = %v, want Top", m[a])
	}
	if !liveness.Equal(m[b], liveness.Top()) {
		t.Errorf("b = %v, want Top", m[b])
	}
}

func TestSolveFuncWrapBuildsNestedLive(t *testing.T) {
	alloc := &label.Allocator{}
	a := ExprNode(alloc.New())
	b := ExprNode(alloc.New())
	g := NewGraph()
	g.AddEdge(Top, a, constTop)
	g.AddEdge(a, b, funcWrap(2))

	m := Solve(g)
	want := liveness.Func(liveness.Func(liveness.Top()))
	if !liveness.Equal(m[b], want) {
		t.Errorf("b = %v, want %v", m[b], want)
	}
}

func TestTarjanSCCsOrdersProducerBeforeConsumer(t *testing.T) {
	alloc := &label.Allocator{}
	a := ExprNode(alloc.New())
	b := ExprNode(alloc.New())
	g := NewGraph()
	g.AddEdge(a, b, identity)

	order := sccProcessingOrder(g)
	posOf := func(n Node) int {
		for i, scc := range order {
			for _, x := range scc {
				if x == n {
					return i
				}
			}
		}
		t.Fatalf("node %v missing from SCC order", n)
		return -1
	}
	if posOf(a) >= posOf(b) {
		t.Errorf("a's SCC (index %d) does not precede b's SCC (index %d)", posOf(a), posOf(b))
	}
}
