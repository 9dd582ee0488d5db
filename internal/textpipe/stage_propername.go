package textpipe

import (
	"regexp"
	"strings"
)

// properNamePronunciations is a small curated table of names whose default
// grapheme-to-phoneme reading is usually wrong.
var properNamePronunciations = map[string]string{
	"siobhan": "shi-VAWN",
	"xiomara": "see-oh-MAR-ah",
	"sean":    "SHAWN",
}

// contextualWordPronunciations disambiguates homograph-like words by a
// neighboring context keyword, e.g. "resume" (document) vs "resume"
// (continue).
type contextualPronunciation struct {
	word        string
	contextWord string
	pronunciation string
}

var contextualWordTable = []contextualPronunciation{
	{"resume", "my", "REZ-oo-may"},
	{"resume", "your", "REZ-oo-may"},
	{"resume", "his", "REZ-oo-may"},
	{"resume", "her", "REZ-oo-may"},
	{"resume", "work", "rih-ZOOM"},
	{"resume", "operations", "rih-ZOOM"},
}

var wordToken = regexp.MustCompile(`\w+`)

// applyProperNames is stage 6.
func applyProperNames(text string, _ Config) (string, bool) {
	original := text
	words := strings.Fields(text)
	for i, w := range words {
		bare := strings.ToLower(strings.Trim(w, ".,;:!?\"'"))
		if repl, ok := properNamePronunciations[bare]; ok {
			words[i] = strings.Replace(w, strings.Trim(w, ".,;:!?\"'"), repl, 1)
			continue
		}
		for _, ctx := range contextualWordTable {
			if bare != ctx.word {
				continue
			}
			if hasNearbyContext(words, i, ctx.contextWord) {
				words[i] = strings.Replace(w, strings.Trim(w, ".,;:!?\"'"), ctx.pronunciation, 1)
				break
			}
		}
	}
	text = strings.Join(words, " ")
	return text, text != original
}

func hasNearbyContext(words []string, idx int, context string) bool {
	lo, hi := idx-2, idx+2
	if lo < 0 {
		lo = 0
	}
	if hi >= len(words) {
		hi = len(words) - 1
	}
	for i := lo; i <= hi; i++ {
		if i == idx {
			continue
		}
		if strings.EqualFold(strings.Trim(words[i], ".,;:!?\"'"), context) {
			return true
		}
	}
	return false
}
