// Package depgraph implements spec §4.5's dependency collector and
// §4.6's liveness solver: the directed graph of flow nodes whose edges
// carry monotone Live→Live transformers, solved over SCCs in reverse
// topological order to propagate liveness back from side-effecting
// sinks to the sources that feed them.
package depgraph

import (
	"github.com/sumtype/deadval/internal/closure"
	"github.com/sumtype/deadval/internal/label"
	"github.com/sumtype/deadval/internal/liveness"
)

// NodeKind discriminates Node's four shapes (spec §3's flow node: "a
// tagged union Expr(L) | Id(Id) | Mem(L) | Top").
type NodeKind int

const (
	NExpr NodeKind = iota
	NId
	NMem
	NTop
)

// Node is a flow node: the dependency graph's vertex type.
type Node struct {
	Kind NodeKind
	L    label.Label
	Id   label.Id
	Mem  closure.MemKey
}

func ExprNode(l label.Label) Node   { return Node{Kind: NExpr, L: l} }
func IdNode(id label.Id) Node       { return Node{Kind: NId, Id: id} }
func MemNode(k closure.MemKey) Node { return Node{Kind: NMem, Mem: k} }

// Top is the distinguished sentinel node representing the ambient
// external world; anything reachable from it is conservatively live.
var Top = Node{Kind: NTop}

func (n Node) String() string {
	switch n.Kind {
	case NExpr:
		return "Expr(" + n.L.String() + ")"
	case NId:
		return "Id(" + n.Id.String() + ")"
	case NMem:
		return "Mem(" + n.Mem.L.String() + "." + n.Mem.Field + ")"
	default:
		return "Top"
	}
}

// Transformer is a monotone Live→Live function carried by one edge.
type Transformer func(liveness.Live) liveness.Live

// outEdge is one forward adjacency entry: "from this node, push f(M[from])
// onto To".
type outEdge struct {
	To Node
	F  Transformer
}

// inEdge is the dual reverse adjacency entry, used directly by the
// liveness solver's "join over incoming reverse edges" step.
type inEdge struct {
	From Node
	F    Transformer
}

// Graph is spec §3's G: every flow node's forward and reverse adjacency
// lists, keyed by Node rather than by a separate id-allocation scheme
// since Node is already a small comparable struct.
type Graph struct {
	forward map[Node][]outEdge
	reverse map[Node][]inEdge
	nodes   map[Node]struct{}
}

func NewGraph() *Graph {
	return &Graph{
		forward: make(map[Node][]outEdge),
		reverse: make(map[Node][]inEdge),
		nodes:   make(map[Node]struct{}),
	}
}

// AddEdge records that from's liveness, pushed through f, contributes
// to to's liveness (spec §4.5's per-rule "edge A → B with transformer").
func (g *Graph) AddEdge(from, to Node, f Transformer) {
	g.touch(from)
	g.touch(to)
	g.forward[from] = append(g.forward[from], outEdge{To: to, F: f})
	g.reverse[to] = append(g.reverse[to], inEdge{From: from, F: f})
}

// AddNode ensures n participates in SCC discovery even if it never
// gains an edge (e.g. an identifier nothing ever references).
func (g *Graph) AddNode(n Node) { g.touch(n) }

func (g *Graph) touch(n Node) {
	if _, ok := g.nodes[n]; !ok {
		g.nodes[n] = struct{}{}
	}
}

// Successors returns every node n has a forward edge to, for
// internal/report's -whyalive/-whydead path search.
func (g *Graph) Successors(n Node) []Node {
	edges := g.forward[n]
	out := make([]Node, len(edges))
	for i, e := range edges {
		out[i] = e.To
	}
	return out
}

func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	return out
}
