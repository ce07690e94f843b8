package depgraph

import "github.com/sumtype/deadval/internal/liveness"

const innerIterations = 5 // spec §4.6: "run k = 5 inner iterations"

// Solve runs the liveness fixed point (spec §4.6): SCCs are found, then
// processed in the order that lets every edge's source finalize before
// its target — Top and the side-effecting roots it feeds first, the
// leaves whose liveness they determine last. A singleton SCC with no
// self-loop needs exactly one join of its incoming reverse edges;
// anything larger iterates a bounded number of passes.
func Solve(g *Graph) map[Node]liveness.Live {
	m := make(map[Node]liveness.Live, len(g.nodes))
	for n := range g.nodes {
		m[n] = liveness.Bot()
	}
	m[Top] = liveness.Top()

	for _, scc := range sccProcessingOrder(g) {
		if len(scc) == 1 && !hasSelfLoop(g, scc[0]) {
			stepNode(g, m, scc[0])
			continue
		}
		for i := 0; i < innerIterations; i++ {
			for _, n := range scc {
				stepNode(g, m, n)
			}
		}
	}
	return m
}

// stepNode joins every incoming reverse edge's transformed source
// liveness into n's current entry.
func stepNode(g *Graph, m map[Node]liveness.Live, n Node) {
	if n == Top {
		return
	}
	for _, e := range g.reverse[n] {
		m[n] = liveness.Join(m[n], e.F(m[e.From]))
	}
}

func hasSelfLoop(g *Graph, n Node) bool {
	for _, e := range g.forward[n] {
		if e.To == n {
			return true
		}
	}
	return false
}

// sccProcessingOrder returns every SCC of g, ordered so that for any
// edge from a node in SCC A to a node in a distinct SCC B, A appears
// before B — the reverse of Tarjan's natural completion order, which
// emits a component only once everything it points to has already been
// completed.
func sccProcessingOrder(g *Graph) [][]Node {
	sccs := tarjanSCCs(g)
	for i, j := 0, len(sccs)-1; i < j; i, j = i+1, j-1 {
		sccs[i], sccs[j] = sccs[j], sccs[i]
	}
	return sccs
}

// tarjanSCCs is an iterative (non-recursive) Tarjan's algorithm, so
// deeply nested expressions don't blow the call stack.
func tarjanSCCs(g *Graph) [][]Node {
	index := make(map[Node]int)
	lowlink := make(map[Node]int)
	onStack := make(map[Node]bool)
	var stack []Node
	var sccs [][]Node
	nextIndex := 0

	type frame struct {
		n       Node
		edgeIdx int
	}

	for n := range g.nodes {
		if _, seen := index[n]; seen {
			continue
		}

		var work []frame
		work = append(work, frame{n: n, edgeIdx: 0})
		index[n] = nextIndex
		lowlink[n] = nextIndex
		nextIndex++
		stack = append(stack, n)
		onStack[n] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			edges := g.forward[top.n]

			if top.edgeIdx < len(edges) {
				w := edges[top.edgeIdx].To
				top.edgeIdx++
				if _, seen := index[w]; !seen {
					index[w] = nextIndex
					lowlink[w] = nextIndex
					nextIndex++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{n: w, edgeIdx: 0})
				} else if onStack[w] {
					if lowlink[w] < lowlink[top.n] {
						lowlink[top.n] = lowlink[w]
					}
				}
				continue
			}

			// Done with top.n's edges.
			v := top.n
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[v] < lowlink[parent.n] {
					lowlink[parent.n] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var scc []Node
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, scc)
			}
		}
	}
	return sccs
}
