package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the cap, in characters, on any sanitized text.
const MaxContentLength = 500

const (
	codeBlockMarker  = "[code block removed]"
	inlineCodeMarker = "[inline code removed]"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)```.*```")
	inlineCodeRe = regexp.MustCompile("`[^`]*`")
)

// Sanitize escapes angle brackets and strips backtick code spans from user
// supplied text, capping the result at MaxContentLength characters. It never fails.
func Sanitize(text string) string {
	if text == "" {
		return ""
	}
	if !strings.ContainsAny(text, "<>`") {
		return truncate(strings.TrimSpace(text))
	}

	// Escape first so the replacement markers are never escaped themselves.
	s := strings.ReplaceAll(text, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = codeBlockRe.ReplaceAllLiteralString(s, codeBlockMarker)
	s = inlineCodeRe.ReplaceAllLiteralString(s, inlineCodeMarker)

	return strings.TrimSpace(truncate(s))
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxContentLength {
		return s
	}
	return string([]rune(s)[:MaxContentLength])
}
