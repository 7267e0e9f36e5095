package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rsharan/slotflow/pkg/slotflow/merge"
	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// FieldSpec names one field the retroactive scanner may try to fill
// and the strategy it should use against the replayed window.
type FieldSpec struct {
	Path     string
	Strategy Strategy
	Ceiling  float64
}

// Scanner re-reads a bounded window of recent user turns looking for
// values that earlier extraction missed. It only ever fills fields
// that are still empty, and everything it writes carries a decayed
// confidence so a later direct answer always wins.
type Scanner struct {
	engine   *merge.Engine
	window   int
	minTurns int
	decay    float64
	timeout  time.Duration
	logger   *slog.Logger
}

// ScannerOption is a functional option for Scanner.
type ScannerOption func(*Scanner)

// WithWindow sets how many recent user turns are replayed.
func WithWindow(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithMinTurns sets the conversation length below which the scanner
// does nothing. Very short conversations have nothing to recover.
func WithMinTurns(n int) ScannerOption {
	return func(s *Scanner) {
		s.minTurns = n
	}
}

// WithDecay sets the multiplier applied to recovered confidence.
func WithDecay(d float64) ScannerOption {
	return func(s *Scanner) {
		if d > 0 && d <= 1 {
			s.decay = d
		}
	}
}

// WithScanTimeout bounds each per-field strategy attempt.
func WithScanTimeout(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		s.timeout = d
	}
}

// WithScanLogger sets the scanner's logger.
func WithScanLogger(l *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = l
	}
}

// NewScanner constructs a Scanner writing through the given engine.
func NewScanner(engine *merge.Engine, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		engine:   engine,
		window:   5,
		minTurns: 2,
		decay:    0.8,
		timeout:  2 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Scan replays the window over every still-empty field in specs and
// merges what it recovers. Strategies run concurrently; merges are
// applied serially on the calling goroutine, so the record is never
// touched from more than one goroutine. Returns the number of fields
// filled.
func (s *Scanner) Scan(ctx context.Context, rec *state.Record, specs ...FieldSpec) int {
	userTurns := 0
	for _, t := range rec.History {
		if t.Speaker == state.SpeakerUser {
			userTurns++
		}
	}
	if rec.TurnCount <= s.minTurns || userTurns == 0 {
		return 0
	}

	recent := rec.RecentUserText(s.window)
	windowText := strings.Join(recent, "\n")

	pending := make([]FieldSpec, 0, len(specs))
	for _, spec := range specs {
		if !rec.Has(spec.Path) {
			pending = append(pending, spec)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	results := make([]Result, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range pending {
		g.Go(func() error {
			actx := gctx
			if s.timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(gctx, s.timeout)
				defer cancel()
			}
			res, err := spec.Strategy.Extract(actx, nil, windowText)
			if err != nil {
				// recovery is best-effort; a failed strategy
				// just leaves its field empty
				if s.logger != nil {
					s.logger.Warn("retroactive scan failed",
						slog.String("field", spec.Path),
						slog.String("error", err.Error()))
				}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	filled := 0
	for i, spec := range pending {
		res := results[i]
		if res.Empty() {
			continue
		}
		if str, ok := res.Value.(string); ok && s.engine.Denied(spec.Path, str) {
			continue
		}
		conf := res.Confidence
		if spec.Ceiling > 0 && conf > spec.Ceiling {
			conf = spec.Ceiling
		}
		conf *= s.decay
		out := s.engine.Merge(rec, spec.Path, merge.Candidate{
			Value:      res.Value,
			Confidence: conf,
			Source:     state.SourceRetroactive,
		})
		if out == merge.OutcomeApplied {
			filled++
			if s.logger != nil {
				s.logger.Info("retroactive fill",
					slog.String("field", spec.Path),
					slog.String("value", fmt.Sprint(res.Value)),
					slog.Float64("confidence", conf))
			}
		}
	}
	return filled
}
