// Package validate checks cross-field consistency of extracted field
// bundles. Validators are pure functions over a bundle snapshot: same
// input, same issues, no side effects on conversation state.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Issue flags one field that failed validation.
type Issue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result collects the issues a validator found. A zero Result is a
// pass.
type Result struct {
	Issues []Issue
}

// OK reports whether validation passed.
func (r Result) OK() bool {
	return len(r.Issues) == 0
}

// Paths returns the field paths that failed, in issue order.
func (r Result) Paths() []string {
	paths := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		paths[i] = is.Path
	}
	return paths
}

// Merge appends another result's issues onto this one.
func (r Result) Merge(other Result) Result {
	r.Issues = append(r.Issues, other.Issues...)
	return r
}

func (r *Result) flag(path, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// Validator checks one bundle of field values. Bundles are keyed by
// full field path ("customer.phone"), values as extracted.
type Validator interface {
	Validate(bundle map[string]any) Result
}

// Func adapts a function to the Validator interface.
type Func func(bundle map[string]any) Result

// Validate implements Validator.
func (f Func) Validate(bundle map[string]any) Result {
	return f(bundle)
}

// Chain runs validators in order and merges their issues.
func Chain(vs ...Validator) Validator {
	return Func(func(bundle map[string]any) Result {
		var out Result
		for _, v := range vs {
			out = out.Merge(v.Validate(bundle))
		}
		return out
	})
}

func str(bundle map[string]any, path string) (string, bool) {
	v, ok := bundle[path]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprint(v), true
	}
	return s, true
}

var (
	mobileRe = regexp.MustCompile(`^[6-9]\d{9}$`)
	plateRe  = regexp.MustCompile(`^[A-Z]{2}\d{1,2}[A-Z]{1,2}\d{4}$`)
	digitRe  = regexp.MustCompile(`\d`)
)

// Customer validates the customer identity bundle: a plausible name
// and a ten digit Indian mobile number. Missing fields are not issues;
// the gate decides when the bundle is complete enough to check.
func Customer() Validator {
	return Func(func(bundle map[string]any) Result {
		var out Result
		if name, ok := str(bundle, "customer.name"); ok {
			trimmed := strings.TrimSpace(name)
			switch {
			case len(trimmed) < 2:
				out.flag("customer.name", "name too short")
			case digitRe.MatchString(trimmed):
				out.flag("customer.name", "name contains digits")
			}
		}
		if phone, ok := str(bundle, "customer.phone"); ok {
			if !mobileRe.MatchString(phone) {
				out.flag("customer.phone", "not a valid Indian mobile number")
			}
		}
		return out
	})
}

// Vehicle validates the vehicle bundle: a known-format registration
// plate when present and a non-blank make.
func Vehicle() Validator {
	return Func(func(bundle map[string]any) Result {
		var out Result
		if mk, ok := str(bundle, "vehicle.make"); ok {
			if strings.TrimSpace(mk) == "" {
				out.flag("vehicle.make", "make is blank")
			}
		}
		if plate, ok := str(bundle, "vehicle.plate"); ok {
			if !plateRe.MatchString(strings.ToUpper(plate)) {
				out.flag("vehicle.plate", "not a valid registration number")
			}
		}
		return out
	})
}

// Appointment validates the booking bundle against the injected clock:
// the date must parse and must not be in the past, and the service
// type must be one of the allowed values when a set is given.
func Appointment(now func() time.Time, services ...string) Validator {
	if now == nil {
		now = time.Now
	}
	allowed := make(map[string]bool, len(services))
	for _, s := range services {
		allowed[strings.ToLower(s)] = true
	}
	return Func(func(bundle map[string]any) Result {
		var out Result
		if date, ok := str(bundle, "appointment.date"); ok {
			d, err := time.Parse("2006-01-02", date)
			if err != nil {
				out.flag("appointment.date", "unparseable date %q", date)
			} else {
				today := now()
				midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
				if d.Before(midnight) {
					out.flag("appointment.date", "date %s is in the past", date)
				}
			}
		}
		if svc, ok := str(bundle, "appointment.service"); ok && len(allowed) > 0 {
			if !allowed[strings.ToLower(svc)] {
				out.flag("appointment.service", "unknown service type %q", svc)
			}
		}
		return out
	})
}
