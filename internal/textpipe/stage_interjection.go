package textpipe

import (
	"fmt"
	"regexp"
	"strings"
)

// compoundInterjections are protected from the individual-token pass below
// via placeholder substitution, matching the grounding source's two-phase
// approach (Go's RE2 engine has no lookbehind, so placeholder substitution
// is also how the hyphen-adjacency exclusion is achieved here).
var compoundInterjections = []string{
	"mm-hmm", "Mm-hmm", "Mm-Hmm",
	"uh-huh", "Uh-huh", "Uh-Huh",
}

var individualInterjections = map[string]string{
	"hmm": "hmmm", "hm": "hmmm",
	"mm": "mmmm", "mmm": "mmmm",
	"uh": "uhh", "um": "umm", "er": "err",
	"ah": "ahh", "oh": "ohh",
	"mhm": "mm-hmm",
	"haha": "ha ha", "hehe": "he he",
}

var individualInterjectionPatterns = compileInterjectionPatterns()

func compileInterjectionPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(individualInterjections))
	for k := range individualInterjections {
		out[k] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
	}
	return out
}

// applyInterjectionFixes is stage 4: lengthens hesitation/nasal sounds to
// their more naturally pronounced spelling while preserving compounds and
// sentence-initial capitalization.
func applyInterjectionFixes(text string, _ Config) (string, bool) {
	original := text

	placeholders := make(map[string]string)
	protected := text
	for i, compound := range compoundInterjections {
		if !strings.Contains(protected, compound) {
			continue
		}
		key := fmt.Sprintf("__COMPOUND_%d__", i)
		placeholders[key] = compound
		protected = strings.ReplaceAll(protected, compound, key)
	}

	for word, repl := range individualInterjections {
		re := individualInterjectionPatterns[word]
		protected = re.ReplaceAllStringFunc(protected, func(match string) string {
			return preserveCase(match, repl)
		})
	}

	for key, original := range placeholders {
		protected = strings.ReplaceAll(protected, key, original)
	}

	protected = fixInterjectionSpacing(protected)
	return protected, protected != original
}

var interjectionFollowedByLetter = regexp.MustCompile(`(?i)\b(hmmm|uhh|umm|ahh|ohh|err)([a-zA-Z])`)

func fixInterjectionSpacing(s string) string {
	return interjectionFollowedByLetter.ReplaceAllString(s, "$1 $2")
}
