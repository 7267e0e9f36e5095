package merge

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Denylist holds values that must never be accepted into fields of one
// category, regardless of extraction confidence. Typical entries are
// greetings and courtesy tokens ("shukriya") that models misread as
// names, and vehicle brand tokens that collide with the person-name
// domain.
type Denylist struct {
	entries []string
}

// NewDenylist builds a denylist from the given entries.
// Matching is case-insensitive; entries are stored folded.
func NewDenylist(entries ...string) *Denylist {
	d := &Denylist{entries: make([]string, 0, len(entries))}
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			d.entries = append(d.entries, e)
		}
	}
	return d
}

// Add appends entries to the denylist.
func (d *Denylist) Add(entries ...string) {
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			d.entries = append(d.entries, e)
		}
	}
}

// Len returns the number of entries.
func (d *Denylist) Len() int {
	return len(d.entries)
}

// Matches reports whether the candidate value collides with the list.
// A candidate matches when any of its whitespace-separated tokens, or
// the whole folded string, equals an entry — or comes within fuzz
// Jaro-Winkler similarity of one. fuzz <= 0 disables fuzzy matching;
// transliterated chat spellings ("sukriya" for "shukriya") make exact
// matching alone too porous.
func (d *Denylist) Matches(value string, fuzz float64) (string, bool) {
	if d == nil || len(d.entries) == 0 {
		return "", false
	}

	folded := strings.ToLower(strings.TrimSpace(value))
	if folded == "" {
		return "", false
	}

	candidates := strings.Fields(folded)
	candidates = append(candidates, folded)

	for _, entry := range d.entries {
		for _, c := range candidates {
			if c == entry {
				return entry, true
			}
			if fuzz > 0 && matchr.JaroWinkler(c, entry, false) >= fuzz {
				return entry, true
			}
		}
	}
	return "", false
}
