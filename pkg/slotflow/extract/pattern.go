package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

// Deterministic pattern extractors. These are the cheap primary tiers:
// no network, no model, bounded regex work. Confidence values are fixed
// per pattern family and deliberately modest so that explicit user
// corrections and external systems always out-rank them.

const (
	confPhone   = 0.90
	confPlate   = 0.90
	confLexicon = 0.80
	confName    = 0.70
	confDate    = 0.75
	confYesNo   = 0.85
)

// Indian mobile numbers: optional +91 / 0 prefix, then ten digits
// starting 6-9. Separators inside the number are tolerated.
var phoneRe = regexp.MustCompile(`(?:\+91[\-\s]?|(?:^|[^\d])0)?([6-9]\d{9})(?:\D|$)`)

// Phone returns a strategy that extracts a ten digit Indian mobile
// number, normalised to bare digits.
func Phone() Strategy {
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		compact := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(utterance)
		m := phoneRe.FindStringSubmatch(compact)
		if m == nil {
			return Result{}, nil
		}
		return Result{Value: m[1], Confidence: confPhone}, nil
	})
}

// Indian vehicle registration plates, e.g. "MH 12 AB 1234".
var plateRe = regexp.MustCompile(`(?i)\b([A-Z]{2})[\s\-]?(\d{1,2})[\s\-]?([A-Z]{1,2})[\s\-]?(\d{4})\b`)

// Plate returns a strategy that extracts a vehicle registration number
// in the Indian state-district format, normalised to upper case with
// no separators.
func Plate() Strategy {
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		m := plateRe.FindStringSubmatch(utterance)
		if m == nil {
			return Result{}, nil
		}
		plate := strings.ToUpper(fmt.Sprintf("%s%s%s%s", m[1], m[2], m[3], m[4]))
		return Result{Value: plate, Confidence: confPlate}, nil
	})
}

// Lexicon returns a strategy that matches utterance tokens against a
// map of lower-cased variants to canonical values. Longer variants are
// preferred so "maruti suzuki" beats "maruti".
func Lexicon(entries map[string]string) Strategy {
	variants := make([]string, 0, len(entries))
	for v := range entries {
		variants = append(variants, strings.ToLower(v))
	}
	// longest-first so multi-word variants win
	for i := 1; i < len(variants); i++ {
		for j := i; j > 0 && len(variants[j]) > len(variants[j-1]); j-- {
			variants[j], variants[j-1] = variants[j-1], variants[j]
		}
	}
	folded := make(map[string]string, len(entries))
	for v, canon := range entries {
		folded[strings.ToLower(v)] = canon
	}
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		lower := " " + strings.ToLower(utterance) + " "
		for _, v := range variants {
			if strings.Contains(lower, " "+v+" ") || strings.Contains(lower, " "+v+",") || strings.Contains(lower, " "+v+".") {
				return Result{Value: folded[v], Confidence: confLexicon}, nil
			}
		}
		return Result{}, nil
	})
}

// Name phrases. Capture stops at sentence punctuation; a trailing
// honorific-free single or double word is accepted.
// The inner separator is a literal space so a capture never spans the
// newline between replayed turns.
var nameRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is +([A-Za-z]+(?: +[A-Za-z]+){0,2})`),
	regexp.MustCompile(`(?i)\bthis is +([A-Z][a-z]+(?: +[A-Z][a-z]+){0,2})`),
	regexp.MustCompile(`(?i)\bi am +([A-Z][a-z]+(?: +[A-Z][a-z]+){0,2})`),
	regexp.MustCompile(`(?i)\bi'm +([A-Z][a-z]+(?: +[A-Z][a-z]+){0,2})`),
	regexp.MustCompile(`(?i)\bmera naam +([A-Za-z]+(?: +[A-Za-z]+){0,2})`),
	regexp.MustCompile(`(?i)\bnaam hai +([A-Za-z]+(?: +[A-Za-z]+){0,2})`),
}

// Words that follow a name in common phrasings but are not part of it.
var nameStopwords = map[string]bool{
	"hai": true, "hain": true, "ji": true, "speaking": true,
	"here": true, "hoon": true, "bol": true,
}

// Name returns a strategy that extracts a person name from common
// self-introduction phrasings, English and Hinglish.
func Name() Strategy {
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		for _, re := range nameRes {
			m := re.FindStringSubmatch(utterance)
			if m == nil {
				continue
			}
			words := strings.Fields(m[1])
			for len(words) > 0 && nameStopwords[strings.ToLower(words[len(words)-1])] {
				words = words[:len(words)-1]
			}
			if len(words) == 0 {
				continue
			}
			return Result{Value: titleCase(strings.Join(words, " ")), Confidence: confName}, nil
		}
		return Result{}, nil
	})
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var (
	dmyRe    = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?\b`)
	weekdays = map[string]time.Weekday{"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday}
)

// Date returns a strategy resolving relative and numeric date phrases
// against the injected clock. Values are normalised to "2006-01-02".
func Date(now func() time.Time) Strategy {
	if now == nil {
		now = time.Now
	}
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		lower := strings.ToLower(utterance)
		today := now()

		switch {
		case strings.Contains(lower, "day after tomorrow"), strings.Contains(lower, "parso"):
			return dateResult(today.AddDate(0, 0, 2)), nil
		case strings.Contains(lower, "tomorrow"), strings.Contains(lower, "kal "), strings.HasSuffix(lower, "kal"):
			return dateResult(today.AddDate(0, 0, 1)), nil
		case strings.Contains(lower, "today"), strings.Contains(lower, "aaj"):
			return dateResult(today), nil
		}

		for name, wd := range weekdays {
			if !strings.Contains(lower, name) {
				continue
			}
			days := (int(wd) - int(today.Weekday()) + 7) % 7
			if days == 0 {
				days = 7 // "on friday" said on a Friday means next week
			}
			return dateResult(today.AddDate(0, 0, days)), nil
		}

		if m := dmyRe.FindStringSubmatch(lower); m != nil {
			day := atoi(m[1])
			month := atoi(m[2])
			year := today.Year()
			if m[3] != "" {
				year = atoi(m[3])
				if year < 100 {
					year += 2000
				}
			}
			if day >= 1 && day <= 31 && month >= 1 && month <= 12 {
				d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, today.Location())
				if m[3] == "" && d.Before(today) {
					d = d.AddDate(1, 0, 0)
				}
				return dateResult(d), nil
			}
		}
		return Result{}, nil
	})
}

func dateResult(t time.Time) Result {
	return Result{Value: t.Format("2006-01-02"), Confidence: confDate}
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}

var (
	yesWords = []string{"yes", "yeah", "yep", "sure", "confirm", "confirmed", "ok", "okay", "haan", "ha", "ji", "bilkul", "theek"}
	noWords  = []string{"no", "nope", "nah", "cancel", "nahi", "nahin", "mat", "galat"}
)

// YesNo returns a strategy recognising affirmation and denial in
// English and Hinglish. The value is the string "yes" or "no".
func YesNo() Strategy {
	return Func(func(_ context.Context, _ []state.Turn, utterance string) (Result, error) {
		tokens := strings.Fields(strings.ToLower(strings.NewReplacer(",", " ", ".", " ", "!", " ").Replace(utterance)))
		for _, tok := range tokens {
			for _, w := range noWords {
				if tok == w {
					return Result{Value: "no", Confidence: confYesNo}, nil
				}
			}
		}
		for _, tok := range tokens {
			for _, w := range yesWords {
				if tok == w {
					return Result{Value: "yes", Confidence: confYesNo}, nil
				}
			}
		}
		return Result{}, nil
	})
}
