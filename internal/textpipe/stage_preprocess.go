package textpipe

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var punctRunPattern = regexp.MustCompile(`([!?.,;:])\1{2,}`)

// applyPreprocess is stage 1: conservative, infallible cleanup that the
// remaining stages can rely on. NFKC-normalizes, strips control characters
// other than \n and \t, collapses whitespace, caps punctuation runs at 3,
// and expands contractions to their full form when ExpandContractions is
// set (distinct from the pronunciation-preserving stage 2).
func applyPreprocess(text string, cfg Config) (string, bool) {
	original := text
	t := norm.NFKC.String(text)
	t = stripControlChars(t)
	t = collapseWhitespace(t)
	t = punctRunPattern.ReplaceAllString(t, "$1$1$1")
	t = splitOverlongTokens(t, 25)

	if cfg.ExpandContractions {
		t = expandContractionsFully(t)
	}

	return t, t != original
}

func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var whitespaceRun = regexp.MustCompile(`[ \t]{2,}`)

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return whitespaceRun.ReplaceAllString(s, " ")
}

// splitOverlongTokens inserts a soft break inside any whitespace-delimited
// token longer than max characters, so the phonemizer never receives an
// unbounded run (e.g. a URL or a repeated-character spam string).
func splitOverlongTokens(s string, max int) string {
	fields := strings.Fields(s)
	changed := false
	for i, f := range fields {
		if len([]rune(f)) > max {
			fields[i] = splitRunes(f, max)
			changed = true
		}
	}
	if !changed {
		return s
	}
	return strings.Join(fields, " ")
}

func splitRunes(s string, max int) string {
	runes := []rune(s)
	var parts []string
	for len(runes) > max {
		parts = append(parts, string(runes[:max]))
		runes = runes[max:]
	}
	parts = append(parts, string(runes))
	return strings.Join(parts, " ")
}

// fullContractionExpansions is the "expand to full form" table used only
// when expand_contractions is explicitly requested; it differs from the
// pronunciation-rules table in stage 2 by favoring grammatical completeness
// over speech-natural phrasing. Ordered so whole-word exceptions are
// substituted before the generic suffix patterns would otherwise clobber
// them.
var fullContractionExpansionOrder = []string{"won't", "can't", "n't", "'re", "'ve", "'ll"}

var fullContractionExpansions = map[string]string{
	"won't": "will not", "can't": "cannot", "n't": " not",
	"'re": " are", "'ve": " have", "'ll": " will",
}

func expandContractionsFully(s string) string {
	for _, k := range fullContractionExpansionOrder {
		if !strings.Contains(strings.ToLower(s), strings.ToLower(k)) {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(k))
		s = re.ReplaceAllString(s, fullContractionExpansions[k])
	}
	return s
}
