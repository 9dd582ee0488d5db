package textpipe

import (
	"regexp"
	"strings"
)

// contractionPronunciations is a curated set of contractions whose literal
// pronunciation trips up the phonemizer, mapped to a fully spoken-out
// form. Kept separate from expandContractionsFully (stage 1) so the two
// knobs can be toggled independently.
var contractionPronunciations = map[string]string{
	"wasn't":    "was not",
	"i'll":      "i will",
	"you'll":    "you will",
	"i'd":       "i would",
	"i'm":       "i am",
	"that's":    "that is",
	"what's":    "what is",
	"it's":      "it is",
	"he's":      "he is",
	"she's":     "she is",
	"we're":     "we are",
	"they're":   "they are",
	"don't":     "do not",
	"won't":     "will not",
	"can't":     "cannot",
	"shouldn't": "should not",
	"wouldn't":  "would not",
	"couldn't":  "could not",
}

var pronunciationPatterns = compilePronunciationPatterns()

func compilePronunciationPatterns() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(contractionPronunciations))
	for k := range contractionPronunciations {
		out[k] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
	}
	return out
}

// applyPronunciationRules is stage 2. It must run before any stage that
// deletes apostrophes (the eSpeak symbol stage, much later) so that the
// contraction's apostrophe is still present to match against.
func applyPronunciationRules(text string, _ Config) (string, bool) {
	original := text
	for contraction, pronunciation := range contractionPronunciations {
		re := pronunciationPatterns[contraction]
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			return preserveCase(match, pronunciation)
		})
	}
	return text, text != original
}

// preserveCase applies a three-way case rule: ALL-CAPS stays upper,
// Title-Case stays title, otherwise lowercase.
func preserveCase(original, replacement string) string {
	switch {
	case original == strings.ToUpper(original):
		return strings.ToUpper(replacement)
	case len(original) > 0 && original[0] == strings.ToUpper(string(original[0]))[0]:
		return strings.ToUpper(string(replacement[0])) + replacement[1:]
	default:
		return replacement
	}
}
