package parser

import "strings"

// CodeSet is the configured OKPD2 allow-set, loaded once at startup and
// immutable for the run. Matching is exact string equality after trimming
// whitespace — no prefix or wildcard semantics, no normalisation of
// leading zeros or separators.
type CodeSet struct {
	codes map[string]struct{}
}

// NewCodeSet builds a CodeSet from the configured code list.
func NewCodeSet(codes []string) CodeSet {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return CodeSet{codes: set}
}

// Matches reports whether any of the notice's collected codes is in the
// allow-set. A notice with no codes never matches.
func (s CodeSet) Matches(codes []string) bool {
	for _, c := range codes {
		if _, ok := s.codes[strings.TrimSpace(c)]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of configured codes.
func (s CodeSet) Len() int { return len(s.codes) }
