// Package prompt renders response templates against conversation
// records. Placeholders are field paths: "Booking for ${customer.name}
// on ${appointment.date}". A few derived variables are available
// alongside the fields: ${_key}, ${_turn}, and ${_completeness}.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// placeholder matches ${path} where path is a dotted field path.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_.]*)\}`)

// MissingAction specifies how unresolved placeholders render.
type MissingAction int

const (
	// MissingKeep leaves the placeholder in the output.
	MissingKeep MissingAction = iota

	// MissingEmpty renders missing fields as the empty string.
	MissingEmpty

	// MissingError fails the render.
	MissingError
)

// UndefinedFieldError reports placeholders that had no value.
type UndefinedFieldError struct {
	Paths []string
}

// Error implements the error interface.
func (e *UndefinedFieldError) Error() string {
	return "undefined fields: " + strings.Join(e.Paths, ", ")
}

// Renderer expands templates against records. Safe for concurrent use
// after construction.
type Renderer struct {
	missing MissingAction
}

// RendererOption is a functional option for Renderer.
type RendererOption func(*Renderer)

// WithMissingAction sets how unresolved placeholders are handled.
func WithMissingAction(a MissingAction) RendererOption {
	return func(r *Renderer) {
		r.missing = a
	}
}

// NewRenderer creates a Renderer. The default keeps unresolved
// placeholders visible, which makes template mistakes obvious in
// development.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{missing: MissingKeep}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render expands the template against the record's fields.
func (r *Renderer) Render(tmpl string, rec *state.Record) (string, error) {
	if tmpl == "" {
		return "", nil
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		path := match[2 : len(match)-1]
		if val, ok := resolve(rec, path); ok {
			return val
		}
		switch r.missing {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, path)
			return match
		default:
			return match
		}
	})

	if len(missing) > 0 {
		return out, &UndefinedFieldError{Paths: missing}
	}
	return out, nil
}

// Func returns a render closure for use with node constructors. Render
// errors degrade to the raw template rather than failing the step.
func (r *Renderer) Func(tmpl string) func(rec *state.Record) string {
	return func(rec *state.Record) string {
		out, err := r.Render(tmpl, rec)
		if err != nil {
			return tmpl
		}
		return out
	}
}

func resolve(rec *state.Record, path string) (string, bool) {
	switch path {
	case "_key":
		return rec.Key, true
	case "_turn":
		return fmt.Sprintf("%d", rec.TurnCount), true
	case "_completeness":
		return fmt.Sprintf("%.0f%%", rec.Completeness*100), true
	}
	cell, ok := rec.Field(path)
	if !ok || cell.Empty() {
		return "", false
	}
	return fmt.Sprintf("%v", cell.Value), true
}
