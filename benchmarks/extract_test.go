package benchmarks

import (
	"context"
	"testing"
	"time"

	"github.com/rsharan/slotflow/pkg/slotflow/extract"
	"github.com/rsharan/slotflow/pkg/slotflow/merge"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

const benchUtterance = "haan my name is Rohan Sharma, number is 98765 43210, it's a Mahindra, oil change kal please"

func BenchmarkExtract_Phone(b *testing.B) {
	s := extract.Phone()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Extract(ctx, nil, benchUtterance)
	}
}

func BenchmarkExtract_Name(b *testing.B) {
	s := extract.Name()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Extract(ctx, nil, benchUtterance)
	}
}

func BenchmarkExtract_Lexicon(b *testing.B) {
	s := extract.Lexicon(map[string]string{
		"maruti": "Maruti Suzuki", "tata": "Tata", "mahindra": "Mahindra",
		"hyundai": "Hyundai", "honda": "Honda", "toyota": "Toyota",
	})
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Extract(ctx, nil, benchUtterance)
	}
}

func BenchmarkExtract_Date(b *testing.B) {
	s := extract.Date(time.Now)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = s.Extract(ctx, nil, benchUtterance)
	}
}

// BenchmarkMerge_Apply measures one candidate going through the full
// denylist, confidence, and completeness pipeline.
func BenchmarkMerge_Apply(b *testing.B) {
	engine := merge.NewEngine(
		merge.WithRequired("customer.name", "customer.phone"),
		merge.WithDenylist("courtesy", merge.NewDenylist("hello", "thanks", "shukriya")),
		merge.WithFieldCategory("customer.name", "courtesy"),
	)
	rec := state.New("bench", "start")
	rec.AppendTurn(state.SpeakerUser, benchUtterance)
	cand := merge.Candidate{Value: "Rohan Sharma", Confidence: 0.7, Source: state.SourcePrimary}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		engine.Merge(rec, "customer.name", cand)
		cand.Confidence += 0.000001 // keep the strictly-greater path hot
	}
}
