package protocol

import (
	"strconv"
	"strings"
)

// NormalizeAnswer maps a raw menu reply to one of the canonical options.
// An answer is accepted either as the exact option keyword
// (case-insensitive) or as its 1-based index in the menu. Returns the
// canonical keyword and whether the answer was recognized.
func NormalizeAnswer(input string, options []string) (string, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return "", false
	}

	if n, err := strconv.Atoi(trimmed); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], true
		}
		return "", false
	}

	for _, opt := range options {
		if trimmed == opt {
			return opt, true
		}
	}
	return "", false
}

// FormatMenu renders a numbered menu of options with their descriptions,
// so users can answer with either the keyword or the number.
func FormatMenu(options []string, descriptions map[string]string) string {
	var b strings.Builder
	for i, opt := range options {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". `")
		b.WriteString(opt)
		b.WriteString("`")
		if desc, ok := descriptions[opt]; ok && desc != "" {
			b.WriteString(": ")
			b.WriteString(desc)
		}
		if i < len(options)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
