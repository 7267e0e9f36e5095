package slotflow

import "context"

// Counter is a minimal state for executor tests.
type Counter struct {
	Value int
}

func increment(_ Context, c Counter) (Counter, error) {
	c.Value++
	return c, nil
}

func testCtx() Context {
	return NewContext(context.Background())
}

// linearGraph builds inc1 -> inc2 -> inc3 -> Completed.
func linearGraph() *Graph[Counter] {
	return NewGraph[Counter]().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddNode("inc3", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", "inc3").
		AddEdge("inc3", Completed).
		SetEntry("inc1")
}
