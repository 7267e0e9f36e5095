package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/rsharan/slotflow/pkg/slotflow"
)

type benchState struct {
	Value int
}

func bump(_ slotflow.Context, s benchState) (benchState, error) {
	s.Value++
	return s, nil
}

// buildLinearGraph builds an n-node chain ending at Completed.
func buildLinearGraph(n int) *slotflow.Graph[benchState] {
	g := slotflow.NewGraph[benchState]()
	for i := 0; i < n; i++ {
		g.AddNode(fmt.Sprintf("n%d", i), bump)
	}
	for i := 0; i < n-1; i++ {
		g.AddEdge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i+1))
	}
	g.AddEdge(fmt.Sprintf("n%d", n-1), slotflow.Completed)
	return g.SetEntry("n0")
}

func mustCompile(g *slotflow.Graph[benchState]) *slotflow.CompiledGraph[benchState] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

func benchmarkLinear(b *testing.B, n int) {
	compiled := mustCompile(buildLinearGraph(n))
	ctx := slotflow.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = compiled.StepFrom(ctx, "", benchState{})
	}
}

func BenchmarkStepFrom_Linear_5(b *testing.B)  { benchmarkLinear(b, 5) }
func BenchmarkStepFrom_Linear_10(b *testing.B) { benchmarkLinear(b, 10) }
func BenchmarkStepFrom_Linear_50(b *testing.B) { benchmarkLinear(b, 50) }

// BenchmarkStepFrom_Branching exercises conditional routing.
func BenchmarkStepFrom_Branching(b *testing.B) {
	g := slotflow.NewGraph[benchState]().
		AddNode("route", bump).
		AddNode("even", bump).
		AddNode("odd", bump).
		AddConditionalEdge("route", func(_ slotflow.Context, s benchState) string {
			if s.Value%2 == 0 {
				return "even"
			}
			return "odd"
		}).
		AddEdge("even", slotflow.Completed).
		AddEdge("odd", slotflow.Completed).
		SetEntry("route")

	compiled := mustCompile(g)
	ctx := slotflow.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = compiled.StepFrom(ctx, "", benchState{Value: i})
	}
}

// BenchmarkStepFrom_AwaitResume measures the pause/resume cycle that
// every conversational turn pays.
func BenchmarkStepFrom_AwaitResume(b *testing.B) {
	g := slotflow.NewGraph[benchState]().
		AddNode("ask", bump).
		AddNode("finish", bump).
		AddConditionalEdge("ask", func(_ slotflow.Context, s benchState) string {
			if s.Value%2 == 0 {
				return slotflow.Await
			}
			return "finish"
		}).
		AddEdge("finish", slotflow.Completed).
		SetEntry("ask")

	compiled := mustCompile(g)
	ctx := slotflow.NewContext(context.Background())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s, cursor, _ := compiled.StepFrom(ctx, "", benchState{})
		_, _, _ = compiled.StepFrom(ctx, cursor, s)
	}
}

// BenchmarkCompile_50 measures graph compilation cost.
func BenchmarkCompile_50(b *testing.B) {
	g := buildLinearGraph(50)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Compile()
	}
}
