package depgraph

import (
	"testing"

	"github.com/sumtype/deadval/internal/label"
)

func TestAddEdgeRegistersBothEndpoints(t *testing.T) {
	g := NewGraph()
	a := ExprNode(label.Label{})
	alloc := &label.Allocator{}
	b := ExprNode(alloc.New())
	g.AddEdge(a, b, identity)

	nodes := g.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("got %d registered nodes, want 2: %v", len(nodes), nodes)
	}

	succ := g.Successors(a)
	if len(succ) != 1 || succ[0] != b {
		t.Errorf("Successors(a) = %v, want [b]", succ)
	}
}

func TestAddNodeWithoutEdgeStillRegisters(t *testing.T) {
	g := NewGraph()
	alloc := &label.Allocator{}
	n := IdNode(label.Id{Module: "M", Stamp: 1})
	_ = alloc
	g.AddNode(n)

	found := false
	for _, x := range g.Nodes() {
		if x == n {
			found = true
		}
	}
	if !found {
		t.Error("AddNode'd node missing from Nodes()")
	}
	if succ := g.Successors(n); len(succ) != 0 {
		t.Errorf("isolated node has %d successors, want 0", len(succ))
	}
}

func TestNodeStringDistinguishesKinds(t *testing.T) {
	alloc := &label.Allocator{}
	l := alloc.New()
	id := label.Id{Module: "M", Stamp: 1}

	strs := map[string]bool{}
	for _, n := range []Node{ExprNode(l), IdNode(id), Top} {
		s := n.String()
		if strs[s] {
			t.Errorf("two distinct node kinds produced the same String(): %q", s)
		}
		strs[s] = true
	}
}
