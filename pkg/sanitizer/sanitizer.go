package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reControlChars = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
	reMultiSpace   = regexp.MustCompile(`\s+`)
	reValidID      = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

func trim(s string) string {
	return strings.TrimSpace(s)
}

func stripControl(s string) string {
	return reControlChars.ReplaceAllString(s, " ")
}

func collapseSpaces(s string) string {
	return reMultiSpace.ReplaceAllString(s, " ")
}

// SanitizeNotes normalizes free-text customer notes before storage.
func SanitizeNotes(input string) string {
	p := Pipeline{
		stripControl,
		collapseSpaces,
		trim,
	}
	return p.Apply(input)
}

// SanitizeID trims an identifier and rejects anything outside the
// URL-safe alphabet. Returns "" for invalid input.
func SanitizeID(input string) string {
	s := strings.TrimSpace(input)
	if s == "" || !reValidID.MatchString(s) {
		return ""
	}
	return s
}

// SanitizeIDSlice applies SanitizeID to each value, dropping blanks and
// duplicates while preserving order.
func SanitizeIDSlice(values []string) []string {
	seen := make(map[string]struct{})
	out := []string{}

	for _, v := range values {
		s := SanitizeID(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	return out
}

// SanitizeSearch lowercases and collapses a customer search term.
func SanitizeSearch(input string) string {
	p := Pipeline{
		stripControl,
		collapseSpaces,
		trim,
		strings.ToLower,
	}
	return p.Apply(input)
}
