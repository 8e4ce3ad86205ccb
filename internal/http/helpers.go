package http

import (
	"html/template"
	"strings"
	"unicode"

	"sitepay/internal/core"
)

// formatRupees renders an amount the way every page shows money.
func formatRupees(m core.Money) string {
	return "₹ " + m.String()
}

// titleCase upper-cases the first letter of each word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// sanitizeInput trims and strips control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

var templateFuncs = template.FuncMap{
	"rupees": formatRupees,
	"title":  titleCase,
}
