// Package state defines the per-conversation record that flows through
// a slotflow graph: the latest utterance, the bounded turn history, and
// the confidence-scored field cells accumulated so far.
package state

import (
	"sort"
	"strings"
)

// Speaker identifies who produced a turn.
type Speaker string

// Turn speakers.
const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Source identifies where a field value came from.
// It determines merge precedence together with confidence.
type Source string

// Field sources.
const (
	SourcePrimary     Source = "primary"
	SourceFallback    Source = "fallback"
	SourceRetroactive Source = "retroactive"
	SourceCorrection  Source = "user-correction"
	SourceExternal    Source = "external"
)

// Turn is a single conversation turn.
// Turns are immutable once appended to a record's history.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// FieldCell is the atomic unit of extracted data.
// The value is opaque to the engine; confidence and source govern
// whether a later candidate may replace it.
type FieldCell struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Source     Source  `json:"source"`
	Turn       int     `json:"turn"`
}

// Empty reports whether the cell holds no usable value.
func (c FieldCell) Empty() bool {
	return IsEmptyValue(c.Value)
}

// Record is the single mutable structure carrying all accumulated data
// for one conversation. It is owned exclusively by the executor for the
// duration of one step; the persistence layer reads and writes it only
// at step boundaries.
type Record struct {
	// Key is the stable conversation identifier.
	Key string `json:"key"`

	// Utterance is the latest raw input text.
	Utterance string `json:"utterance"`

	// History holds recent turns in order. Older turns may be trimmed;
	// TurnCount keeps the absolute turn index stable across trims.
	History []Turn `json:"history"`

	// TurnCount is the total number of turns ever appended.
	TurnCount int `json:"turn_count"`

	// Fields maps dotted field paths to their cells.
	Fields map[string]FieldCell `json:"fields"`

	// Cursor is the graph node to execute on the next step.
	Cursor string `json:"cursor"`

	// Errors is an append-only list of recoverable-failure tags.
	Errors []string `json:"errors,omitempty"`

	// Response is the text to emit back to the user for this turn.
	Response string `json:"response"`

	// ShouldConfirm asks the channel to render a confirmation affordance.
	ShouldConfirm bool `json:"should_confirm"`

	// Completeness is the derived required-field coverage in [0,1].
	// It is recomputed after every field mutation, never stored ahead.
	Completeness float64 `json:"completeness"`
}

// New creates a record for a conversation key positioned at the given
// entry node.
func New(key, entry string) *Record {
	return &Record{
		Key:    key,
		Fields: make(map[string]FieldCell),
		Cursor: entry,
	}
}

// AppendTurn appends a turn to the history and bumps the absolute turn
// counter. History entries are never modified in place.
func (r *Record) AppendTurn(sp Speaker, text string) {
	r.History = append(r.History, Turn{Speaker: sp, Text: text})
	r.TurnCount++
}

// TrimHistory drops the oldest turns so at most limit remain.
// A limit <= 0 disables trimming. Field cells are unaffected: their
// Turn indices refer to TurnCount, which never rewinds.
func (r *Record) TrimHistory(limit int) {
	if limit <= 0 || len(r.History) <= limit {
		return
	}
	trimmed := make([]Turn, limit)
	copy(trimmed, r.History[len(r.History)-limit:])
	r.History = trimmed
}

// Field returns the cell at path and whether it exists.
func (r *Record) Field(path string) (FieldCell, bool) {
	c, ok := r.Fields[path]
	return c, ok
}

// Has reports whether the field at path holds a non-empty value.
func (r *Record) Has(path string) bool {
	c, ok := r.Fields[path]
	return ok && !c.Empty()
}

// Value returns the field value at path, or nil if absent.
func (r *Record) Value(path string) any {
	return r.Fields[path].Value
}

// StringValue returns the field value at path as a string.
// Non-string values and absent fields yield "".
func (r *Record) StringValue(path string) string {
	if s, ok := r.Fields[path].Value.(string); ok {
		return s
	}
	return ""
}

// Bundle collects all fields under the given dotted prefix, keyed by
// the path remainder. Bundle("customer") returns {"first_name": ...}.
func (r *Record) Bundle(prefix string) map[string]any {
	bundle := make(map[string]any)
	p := prefix + "."
	for path, cell := range r.Fields {
		if strings.HasPrefix(path, p) && !cell.Empty() {
			bundle[strings.TrimPrefix(path, p)] = cell.Value
		}
	}
	return bundle
}

// Fieldset collects non-empty fields under the given dotted prefixes,
// keyed by full path. With no prefixes it returns every non-empty
// field. Validators and external backends work on these maps.
func (r *Record) Fieldset(prefixes ...string) map[string]any {
	out := make(map[string]any)
	for path, cell := range r.Fields {
		if cell.Empty() {
			continue
		}
		if len(prefixes) == 0 {
			out[path] = cell.Value
			continue
		}
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+".") {
				out[path] = cell.Value
				break
			}
		}
	}
	return out
}

// RecentUserText returns the text of up to n most recent user turns
// still held in active history, oldest first.
func (r *Record) RecentUserText(n int) []string {
	if n <= 0 {
		return nil
	}
	var texts []string
	for i := len(r.History) - 1; i >= 0 && len(texts) < n; i-- {
		if r.History[i].Speaker == SpeakerUser {
			texts = append(texts, r.History[i].Text)
		}
	}
	// Collected newest first; reverse to conversation order.
	for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
		texts[i], texts[j] = texts[j], texts[i]
	}
	return texts
}

// AddError appends a recoverable-failure tag for diagnostics.
func (r *Record) AddError(tag string) {
	r.Errors = append(r.Errors, tag)
}

// HasError reports whether the given tag has been recorded.
func (r *Record) HasError(tag string) bool {
	for _, t := range r.Errors {
		if t == tag {
			return true
		}
	}
	return false
}

// Completeness computes the fraction of required paths populated with at
// least minConfidence. It is a pure function; callers store the result
// on the record after every mutation.
func Completeness(fields map[string]FieldCell, required []string, minConfidence float64) float64 {
	if len(required) == 0 {
		return 0
	}
	filled := 0
	for _, path := range required {
		c, ok := fields[path]
		if ok && !c.Empty() && c.Confidence >= minConfidence {
			filled++
		}
	}
	return float64(filled) / float64(len(required))
}

// IsEmptyValue reports whether v counts as "no data" for merge purposes.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// Snapshot is a read-only copy of the observable parts of a record,
// safe to hand to analytics consumers after the step returns.
type Snapshot struct {
	Key          string               `json:"key"`
	Fields       map[string]FieldCell `json:"fields"`
	Completeness float64              `json:"completeness"`
	Errors       []string             `json:"errors,omitempty"`
	Cursor       string               `json:"cursor"`
	TurnCount    int                  `json:"turn_count"`
}

// Snapshot returns a detached copy of the record's observable state.
func (r *Record) Snapshot() Snapshot {
	fields := make(map[string]FieldCell, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	errs := make([]string, len(r.Errors))
	copy(errs, r.Errors)
	return Snapshot{
		Key:          r.Key,
		Fields:       fields,
		Completeness: r.Completeness,
		Errors:       errs,
		Cursor:       r.Cursor,
		TurnCount:    r.TurnCount,
	}
}

// Paths returns the sorted field paths currently present on the record.
func (r *Record) Paths() []string {
	paths := make([]string, 0, len(r.Fields))
	for p := range r.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
