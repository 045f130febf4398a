// Package normalize turns source-specific product codes, titles and performer
// names into the canonical forms used for cross-source identity resolution.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hikarudo/uwabami/utils"
)

// codePattern matches the shared maker-code form: a letter series followed by
// a number, with an optional separator ("ABW-123", "abw00123", "MIUM 001").
var codePattern = regexp.MustCompile(`([A-Za-z]{2,10})[-_ ]?0*([0-9]{1,6})`)

// dmmCIDPrefix strips DMM channel prefixes from content ids: "h_086abw00123"
// and "118abw00123" both carry the maker code "abw00123". The first group
// captures the code that remains.
var dmmCIDPrefix = regexp.MustCompile(`^(?:[a-z]_)?[0-9]{2,4}([a-z].*)$`)

// mgsPrefix strips the numeric label prefix MGS puts in front of its codes
// ("300MIUM-001" carries "MIUM-001").
var mgsPrefix = regexp.MustCompile(`^[0-9]{2,4}([A-Za-z].*)$`)

// sanitizePattern keeps the characters allowed in a site-qualified fallback key.
var sanitizePattern = regexp.MustCompile(`[^A-Z0-9-]+`)

type codeRule struct {
	strip *regexp.Regexp
	// siteLocal marks sources whose code space is not shared with other
	// sites. Their keys are always site-qualified so they can never collide
	// with a shared maker code.
	siteLocal bool
}

var codeRules = map[string]codeRule{
	"dmm":        {strip: dmmCIDPrefix},
	"mgs":        {strip: mgsPrefix},
	"sokmil":     {siteLocal: true},
	"duga":       {siteLocal: true},
	"adultfesta": {},
}

// ProductCode converts a raw source product code into the normalized product
// id. Sources with a shared maker-code space map to "SERIES-NNN" (uppercase,
// zero-padded to three digits, leading zeros collapsed first so "ABC-0007"
// and "abc007" agree). Codes that cannot be parsed into that form fall back
// to a site-qualified key so the record still resolves deterministically.
// Returns the empty string when no usable code can be derived; callers flag
// those records for review instead of guessing.
func ProductCode(source, raw string) string {
	rule := codeRules[source]

	code := strings.TrimSpace(raw)
	if code == "" {
		return ""
	}
	if rule.strip != nil {
		if m := rule.strip.FindStringSubmatch(code); m != nil {
			code = m[1]
		}
	}

	if !rule.siteLocal {
		if m := codePattern.FindStringSubmatch(code); m != nil {
			return formatSharedCode(m[1], m[2])
		}
	}

	return siteQualified(source, code)
}

func formatSharedCode(series, number string) string {
	n, err := strconv.Atoi(number)
	if err != nil || n == 0 {
		return ""
	}
	return fmt.Sprintf("%s-%0*d", strings.ToUpper(series), utils.MinPaddedCodeDigits, n)
}

// siteQualified builds "SITE:CODE" keys for codes that only mean something on
// one site. Site-local codes in maker form keep their series/number shape
// inside the qualified key so re-fetches of the same listing agree.
func siteQualified(source, code string) string {
	if m := codePattern.FindStringSubmatch(code); m != nil && m[0] == code {
		shared := formatSharedCode(m[1], m[2])
		if shared == "" {
			return ""
		}
		return strings.ToUpper(source) + ":" + shared
	}
	cleaned := sanitizePattern.ReplaceAllString(strings.ToUpper(code), "-")
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		return ""
	}
	return strings.ToUpper(source) + ":" + cleaned
}
