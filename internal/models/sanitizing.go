package models

import (
	"fmt"
	"html"
	"html/template"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Sanitizer cleans submitted names and bodies according to the board rules
type Sanitizer struct {
	DefaultName   string
	MaxNameLength int // runes
	MaxBodyLength int // runes
}

// Name returns the display name for a submission. Blank names fall back to
// DefaultName, long names are cut at MaxNameLength runes.
func (s Sanitizer) Name(raw string) string {
	name := cleanText(raw, false)
	// collapse internal runs of whitespace, names are single-line
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return s.DefaultName
	}
	if s.MaxNameLength > 0 && utf8.RuneCountInString(name) > s.MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:s.MaxNameLength]))
	}
	return name
}

// Body returns the cleaned message text or a *ValidationError
func (s Sanitizer) Body(raw string) (string, error) {
	body := cleanText(raw, true)
	if body == "" {
		return "", &ValidationError{Field: "post", Reason: "post body is empty"}
	}
	if s.MaxBodyLength > 0 && utf8.RuneCountInString(body) > s.MaxBodyLength {
		return "", &ValidationError{
			Field:  "post",
			Reason: fmt.Sprintf("post body exceeds %d characters", s.MaxBodyLength),
		}
	}
	return body, nil
}

// cleanText normalizes line endings and Unicode composition, drops invalid
// UTF-8 and control characters, and trims surrounding whitespace.
// Newlines and tabs survive only when multiline is set.
func cleanText(raw string, multiline bool) string {
	text := strings.ToValidUTF8(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFC.String(text)

	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			if multiline {
				return r
			}
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)

	return strings.TrimSpace(text)
}

// RenderText escapes stored text for HTML output and turns newlines into <br>
func RenderText(text string) template.HTML {
	escaped := html.EscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>\n"))
}
