package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// boilerplateTitles are title strings sources emit when a listing has no real
// title yet. Matched after trimming and lowercasing.
var boilerplateTitles = map[string]struct{}{
	"":            {},
	"-":           {},
	"---":         {},
	"n/a":         {},
	"no title":    {},
	"notitle":     {},
	"untitled":    {},
	"new":         {},
	"coming soon": {},
	"商品詳細":        {},
	"タイトル未定":      {},
	"新作":          {},
}

var (
	codeish      = regexp.MustCompile(`[^A-Za-z0-9]+`)
	paddedDigits = regexp.MustCompile(`0*([1-9][0-9]*|0)`)
)

// flattenCode lowercases, strips separators, and collapses zero padding in
// digit runs so "abw00123" and "ABW-123" compare equal.
func flattenCode(s string) string {
	flat := strings.ToLower(codeish.ReplaceAllString(s, ""))
	return paddedDigits.ReplaceAllString(flat, "$1")
}

// IsPlaceholderTitle reports whether title carries no information beyond the
// product code and must never overwrite a real title. A populated title is
// replaced only when this returns true for it.
func IsPlaceholderTitle(title, sourceProductID string) bool {
	t := strings.TrimSpace(title)
	if _, ok := boilerplateTitles[strings.ToLower(t)]; ok {
		return true
	}
	if utf8.RuneCountInString(t) < 3 {
		return true
	}
	// Some feeds repeat the bare product code as the title, some with the
	// number zero padded.
	flatTitle := flattenCode(t)
	flatCode := flattenCode(sourceProductID)
	if flatCode != "" && flatTitle == flatCode {
		return true
	}
	return false
}
