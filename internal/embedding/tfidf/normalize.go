package tfidf

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	unorm "golang.org/x/text/unicode/norm"
)

// digitZeros lists the zero of each native decimal digit block that NFKC
// leaves alone. Digits in these blocks fold to ASCII so a Hindi "२०२४"
// matches the "2024" of a translated question.
var digitZeros = []rune{
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic
	0x0966, // Devanagari
	0x09E6, // Bengali
	0x0A66, // Gurmukhi
	0x0AE6, // Gujarati
	0x0B66, // Oriya
	0x0BE6, // Tamil
	0x0C66, // Telugu
	0x0CE6, // Kannada
	0x0D66, // Malayalam
	0x0E50, // Thai
	0x0ED0, // Lao
	0x1040, // Myanmar
}

// elisions are French clitics glued to the next word by an apostrophe.
var elisions = map[string]struct{}{
	"c": {}, "d": {}, "j": {}, "l": {}, "m": {}, "n": {}, "s": {}, "t": {},
	"qu": {}, "jusqu": {}, "lorsqu": {}, "puisqu": {},
}

// normalizeText applies NFKC and full case folding. A folded dotted
// capital I drops its combining dot so "İzmir" and "izmir" agree.
func normalizeText(text string) string {
	s := unorm.NFKC.String(text)
	// A Caser is stateful, so each call gets its own.
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "i\u0307", "i")
	return strings.Map(foldRune, s)
}

func foldRune(r rune) rune {
	switch r {
	case '’', 'ʼ', '‘':
		return '\''
	}
	if r < 0x0660 || !unicode.IsDigit(r) {
		return r
	}
	for _, z := range digitZeros {
		if r >= z && r <= z+9 {
			return '0' + (r - z)
		}
	}
	return r
}

// stripElision turns "l'eau" into "eau". Other apostrophes stay.
func stripElision(tok string) string {
	head, rest, ok := strings.Cut(tok, "'")
	if !ok || rest == "" {
		return tok
	}
	if _, ok := elisions[head]; ok {
		return rest
	}
	return tok
}
