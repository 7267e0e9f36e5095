package slotflow

// CompiledGraph is an immutable, validated workflow graph ready for
// execution. Create via Graph.Compile().
//
// CompiledGraph is safe for concurrent use: one instance serves all
// conversations, each stepping with its own state.
type CompiledGraph[S any] struct {
	nodes            map[string]NodeFunc[S]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
}

// Entry returns the entry point node ID.
func (cg *CompiledGraph[S]) Entry() string {
	return cg.entryPoint
}

// NodeIDs returns the IDs of all nodes in the graph.
// The order is not guaranteed.
func (cg *CompiledGraph[S]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	return ids
}

// HasNode reports whether a node with the given ID exists.
func (cg *CompiledGraph[S]) HasNode(id string) bool {
	_, ok := cg.nodes[id]
	return ok
}

func (cg *CompiledGraph[S]) getNode(id string) (NodeFunc[S], bool) {
	fn, ok := cg.nodes[id]
	return fn, ok
}

func (cg *CompiledGraph[S]) getRouter(id string) (RouterFunc[S], bool) {
	r, ok := cg.conditionalEdges[id]
	return r, ok
}

func (cg *CompiledGraph[S]) getEdges(id string) []string {
	return cg.edges[id]
}
