package normalize

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidPerformerName is returned for names too broken or too ambiguous
// to key an identity on.
var ErrInvalidPerformerName = errors.New("invalid performer name")

// performerNameDenylist holds values sources emit in the performer field when
// the performer is unknown or uncredited.
var performerNameDenylist = map[string]struct{}{
	"unknown": {},
	"n/a":     {},
	"---":     {},
	"不明":      {},
	"素人":      {},
	"複数":      {},
	"その他":     {},
}

// PerformerName trims and validates a raw performer name. Single-character
// names are rejected: truncated feed values like a lone "デ" would otherwise
// create a junk identity that later records rail against. Returns the cleaned
// name or ErrInvalidPerformerName.
func PerformerName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", ErrInvalidPerformerName
	}
	if _, ok := performerNameDenylist[strings.ToLower(name)]; ok {
		return "", ErrInvalidPerformerName
	}
	if utf8.RuneCountInString(name) < 2 {
		return "", ErrInvalidPerformerName
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", ErrInvalidPerformerName
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	if !hasLetter {
		return "", ErrInvalidPerformerName
	}
	if strings.Contains(name, "http://") || strings.Contains(name, "https://") {
		return "", ErrInvalidPerformerName
	}
	return name, nil
}
