package dag

import "sort"

// Entity is the display metadata carried per node.
type Entity struct {
	ClassType string `json:"class_type,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Edge is one directed dependency: Src must run before Dst.
type Edge struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

// Graph is an immutable dependency graph over string node IDs. Node order is
// the declaration order of whatever the graph was built from and is the tie
// breaker for every query.
type Graph struct {
	nodes    []string
	index    map[string]int
	edges    []Edge
	entities map[string]Entity
}

// New assembles a graph. Edges whose endpoints are not in nodes are dropped;
// duplicate edges collapse.
func New(nodes []string, edges []Edge, entities map[string]Entity) *Graph {
	g := &Graph{
		nodes:    append([]string(nil), nodes...),
		index:    make(map[string]int, len(nodes)),
		entities: map[string]Entity{},
	}
	for i, n := range g.nodes {
		if _, dup := g.index[n]; !dup {
			g.index[n] = i
		}
	}
	seen := map[Edge]bool{}
	for _, e := range edges {
		_, okSrc := g.index[e.Src]
		_, okDst := g.index[e.Dst]
		if !okSrc || !okDst || seen[e] {
			continue
		}
		seen[e] = true
		g.edges = append(g.edges, e)
	}
	g.sortEdges()
	for id, ent := range entities {
		if _, ok := g.index[id]; ok {
			g.entities[id] = ent
		}
	}
	return g
}

func (g *Graph) sortEdges() {
	sort.SliceStable(g.edges, func(i, j int) bool {
		a, b := g.edges[i], g.edges[j]
		if g.index[a.Src] != g.index[b.Src] {
			return g.index[a.Src] < g.index[b.Src]
		}
		return g.index[a.Dst] < g.index[b.Dst]
	})
}

// Nodes returns the node IDs in declaration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Edges returns the edges, ordered by their endpoints' declaration order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Len returns the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// Has reports whether the graph contains a node.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Entity returns a node's display metadata.
func (g *Graph) Entity(id string) (Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Deps returns the direct upstream dependencies of a node.
func (g *Graph) Deps(id string) []string {
	set := map[string]bool{}
	for _, e := range g.edges {
		if e.Dst == id {
			set[e.Src] = true
		}
	}
	return g.ordered(set)
}

// RDeps returns the direct downstream dependents of a node.
func (g *Graph) RDeps(id string) []string {
	set := map[string]bool{}
	for _, e := range g.edges {
		if e.Src == id {
			set[e.Dst] = true
		}
	}
	return g.ordered(set)
}

// Ancestors returns every transitive upstream dependency of a node.
func (g *Graph) Ancestors(id string) []string {
	return g.closure(id, g.Deps)
}

// Descendants returns every transitive downstream dependent of a node.
func (g *Graph) Descendants(id string) []string {
	return g.closure(id, g.RDeps)
}

func (g *Graph) closure(id string, step func(string) []string) []string {
	seen := map[string]bool{}
	queue := step(id)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, next := range step(cur) {
			if !seen[next] {
				queue = append(queue, next)
			}
		}
	}
	return g.ordered(seen)
}

func (g *Graph) ordered(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return g.index[out[i]] < g.index[out[j]] })
	return out
}

// Toposort returns a topological ordering via Kahn's algorithm. When a cycle
// leaves nodes unemitted, the original declaration order is returned instead
// of failing; callers needing a strict guarantee can compare the result
// against Nodes() themselves.
func (g *Graph) Toposort() []string {
	indeg := make(map[string]int, len(g.nodes))
	adj := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = 0
	}
	for _, e := range g.edges {
		adj[e.Src] = append(adj[e.Src], e.Dst)
		indeg[e.Dst]++
	}

	var queue []string
	for _, n := range g.nodes {
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	out := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		for _, m := range adj[n] {
			indeg[m]--
			if indeg[m] == 0 {
				queue = append(queue, m)
			}
		}
	}

	if len(out) != len(g.nodes) {
		return g.Nodes()
	}
	return out
}

// Toposorted returns a copy of the graph whose declaration order is the
// topological order, which makes the renderers emit sources before sinks.
func (g *Graph) Toposorted() *Graph {
	return New(g.Toposort(), g.edges, g.entities)
}
