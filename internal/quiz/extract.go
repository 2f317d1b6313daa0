package quiz

import (
	"regexp"
	"strings"
)

var submitURLRe = regexp.MustCompile(`(?i)Post your answer to (https?://[^\s)]+)`)

// trailing characters that end a sentence rather than the URL
const urlTrailingPunct = `.,;:!?'"`

// ExtractSubmitURL finds the first "Post your answer to <url>" phrase in the
// page text and returns the URL.
func ExtractSubmitURL(text string) (string, bool) {
	m := submitURLRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	u := strings.TrimRight(m[1], urlTrailingPunct)
	if strings.HasSuffix(u, "://") {
		return "", false
	}
	return u, true
}

// excerpt returns the first n runes of s.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
