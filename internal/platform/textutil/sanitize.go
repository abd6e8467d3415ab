package textutil

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func policy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// CleanLine normalises user supplied single-line text: NFKC, markup removed, runs of whitespace
// collapsed to one space, trimmed.
func CleanLine(value string) string {
	if value == "" {
		return ""
	}
	cleaned := StripMarkup(norm.NFKC.String(value))
	return strings.Join(strings.Fields(cleaned), " ")
}

// maxMarkupPasses bounds how many layers of entity encoding StripMarkup peels off.
const maxMarkupPasses = 8

// StripMarkup removes every HTML element, including elements hidden behind entity encoding, and
// returns plain text. Input that is still changing after maxMarkupPasses is returned in its
// escaped form.
func StripMarkup(value string) string {
	if value == "" {
		return ""
	}
	p := policy()
	for pass := 0; pass < maxMarkupPasses; pass++ {
		plain := html.UnescapeString(p.Sanitize(value))
		if plain == value {
			return strings.TrimSpace(plain)
		}
		value = plain
	}
	return strings.TrimSpace(p.Sanitize(value))
}

// CleanPointer applies CleanLine to an optional value, preserving nil.
func CleanPointer(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := CleanLine(*value)
	return &cleaned
}
