package report

import "github.com/sumtype/deadval/internal/depgraph"

// Step is one hop of a liveness explanation path: from's contribution
// reaches to across a dependency-graph edge.
type Step struct {
	From, To depgraph.Node
}

// PathFromTop returns the shortest chain of edges the dependency graph
// offers from Top to target, breadth-first the way cmd/deadcode's
// pathSearch finds the shortest call-graph path from a root to a named
// function. A nil, non-empty-bool result means target is reachable but
// is itself a root (path has zero length); ok is false when nothing
// connects Top to target at all.
func PathFromTop(g *depgraph.Graph, target depgraph.Node) (path []Step, ok bool) {
	if target == depgraph.Top {
		return nil, true
	}
	type frame struct {
		node depgraph.Node
		prev *frame
		via  depgraph.Node // the predecessor that produced this frame
	}
	seen := map[depgraph.Node]bool{depgraph.Top: true}
	queue := []*frame{{node: depgraph.Top}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, to := range g.Successors(f.node) {
			if seen[to] {
				continue
			}
			seen[to] = true
			nf := &frame{node: to, prev: f, via: f.node}
			if to == target {
				var steps []Step
				for cur := nf; cur.prev != nil; cur = cur.prev {
					steps = append(steps, Step{From: cur.via, To: cur.node})
				}
				reverse(steps)
				return steps, true
			}
			queue = append(queue, nf)
		}
	}
	return nil, false
}

func reverse(s []Step) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
