package httphandler

import (
	"fmt"
	"html/template"
	"strings"
	"time"
	"unicode/utf8"
)

// TemplateFuncs returns the custom template functions for HTML templates.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// Time formatting
		"formatDateTime": formatDateTime,
		"timeUntil":      timeUntil,

		// String helpers
		"truncate":  truncate,
		"pluralize": pluralize,
		"initials":  initials,

		// Avatars
		"avatarSrc": avatarSrc,
	}
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 15:04")
}

const (
	hoursPerDay  = 24
	ellipsisSize = 3
)

// timeUntil describes how far in the future t is, or "expired".
func timeUntil(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	diff := time.Until(t)
	switch {
	case diff <= 0:
		return "expired"
	case diff < time.Minute:
		return "in under a minute"
	case diff < time.Hour:
		return fmt.Sprintf("in %dm", int(diff.Minutes()))
	case diff < hoursPerDay*time.Hour:
		return fmt.Sprintf("in %dh", int(diff.Hours()))
	default:
		return fmt.Sprintf("in %dd", int(diff.Hours()/hoursPerDay))
	}
}

// truncate truncates a string to n characters, adding "..." if truncated.
// Arguments are (n int, s string) to work with template pipes: {{.Message | truncate 80}}
func truncate(n int, s string) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= ellipsisSize {
		return string(runes[:n])
	}
	return string(runes[:n-ellipsisSize]) + "..."
}

func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

func initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return strings.ToUpper(firstRune(parts[0]))
	default:
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[len(parts)-1]))
	}
}

func firstRune(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// avatarSrc marks an avatar data URI safe for an img src. Anything that is
// not an image data URI yields "" so the page falls back to "(No Avatar)".
func avatarSrc(ref string) template.URL {
	if !strings.HasPrefix(ref, "data:image/") {
		return ""
	}
	return template.URL(ref) //nolint:gosec // restricted to image data URIs
}
