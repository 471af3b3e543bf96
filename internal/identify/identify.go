// Package identify classifies a raw lookup string as a phone number, a
// customer code, or a customer name. The classification picks the search
// strategy: phone and name queries go through the follow-up search fallbacks,
// a code query resolves directly.
package identify

import (
	"regexp"
	"strings"
	"unicode"
)

// Kind is the classified shape of a lookup identifier.
type Kind int

const (
	KindName Kind = iota
	KindPhone
	KindCode
)

func (k Kind) String() string {
	switch k {
	case KindPhone:
		return "phone"
	case KindCode:
		return "code"
	default:
		return "name"
	}
}

var codeTokenRe = regexp.MustCompile(`(?i)^C\d{2,}$`)

// Classify routes an identifier: the phone check runs first, then the
// customer-code check; everything else is treated as a name.
func Classify(text string) Kind {
	switch {
	case LooksLikePhone(text):
		return KindPhone
	case LooksLikeCustomerCode(text):
		return KindCode
	default:
		return KindName
	}
}

// LooksLikePhone reports whether text plausibly holds a phone number: no CJK
// ideographs, at least six digits, and at most three characters outside
// digits and the separator set +, -, space, #.
func LooksLikePhone(text string) bool {
	digits := 0
	others := 0
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FFF {
			return false
		}
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '#':
		default:
			others++
		}
	}
	return digits >= 6 && others <= 3
}

// LooksLikeCustomerCode reports whether text is a customer code: either the
// canonical C-prefixed numeric form, or (after stripping whitespace, hyphens,
// and underscores) a digit-bearing string that is all digits or starts with a
// letter followed by alphanumerics.
func LooksLikeCustomerCode(text string) bool {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return false
	}
	if codeTokenRe.MatchString(cleaned) {
		return true
	}

	var normalized []rune
	for _, r := range strings.ToUpper(cleaned) {
		if r == ' ' || r == '-' || r == '_' || unicode.IsSpace(r) {
			continue
		}
		normalized = append(normalized, r)
	}
	if len(normalized) == 0 {
		return false
	}

	hasDigit := false
	allDigit := true
	allAlnum := true
	for _, r := range normalized {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			allDigit = false
		default:
			allDigit = false
			allAlnum = false
		}
	}
	if !hasDigit {
		return false
	}
	if allDigit {
		return true
	}
	return unicode.IsLetter(normalized[0]) && allAlnum
}

// NormalizeCode uppercases a customer code for comparison. All code equality
// in the pipeline goes through this.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
