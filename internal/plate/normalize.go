package plate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SanitizeForDisplay uppercases raw OCR text and keeps letters, digits and
// single spaces. The result may be empty, which means "nothing usable".
// Text is composed to NFC first so a letter followed by a combining accent
// survives as one letter. A Caser is stateful, so one is built per call.
func SanitizeForDisplay(raw string) string {
	filtered := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' {
			return r
		}
		return -1
	}, norm.NFC.String(cases.Upper(language.Und).String(raw)))

	return strings.Join(strings.Fields(filtered), " ")
}

// Canonicalize keeps only letters and digits. Two display forms that differ
// only in spacing share the same canonical form.
func Canonicalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		return -1
	}, norm.NFC.String(s))
}
