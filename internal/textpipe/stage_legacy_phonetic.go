package textpipe

import (
	"regexp"
	"strings"
)

// perfectiveVerbs and adverbsAfterD disambiguate the contracted 'd between
// "had" (followed by a past participle) and "would" (followed by a bare
// infinitive or one of a small adverb set), matching the richer legacy
// table the source project guarded behind an explicit off-by-default flag.
var perfectiveVerbs = map[string]bool{
	"been": true, "done": true, "gone": true, "seen": true, "had": true,
	"known": true, "thought": true, "found": true, "told": true,
}

var adverbsAfterD = map[string]bool{
	"already": true, "just": true, "never": true, "always": true, "often": true,
}

var sDisambiguationVerbs = map[string]bool{
	"been": true, "done": true, "gone": true, "got": true, "had": true,
}

var apostropheDWord = regexp.MustCompile(`(?i)\b(\w+)'d\b(?:\s+(\w+))?`)
var apostropheSWord = regexp.MustCompile(`(?i)\b(\w+)'s\b(?:\s+(\w+))?`)

// applyLegacyPhonetic is stage 3, default off. It performs context-
// sensitive 'd -> {had|would} and 's -> {is|has} disambiguation rather than
// the simpler always-"is"/"would" rules of stage 2.
func applyLegacyPhonetic(text string, _ Config) (string, bool) {
	original := text

	text = apostropheDWord.ReplaceAllStringFunc(text, func(m string) string {
		groups := apostropheDWord.FindStringSubmatch(m)
		subject, next := groups[1], groups[2]
		lowerNext := strings.ToLower(next)
		if perfectiveVerbs[lowerNext] || adverbsAfterD[lowerNext] {
			return subject + " had" + trailingWord(next)
		}
		return subject + " would" + trailingWord(next)
	})

	text = apostropheSWord.ReplaceAllStringFunc(text, func(m string) string {
		groups := apostropheSWord.FindStringSubmatch(m)
		subject, next := groups[1], groups[2]
		if sDisambiguationVerbs[strings.ToLower(next)] {
			return subject + " has" + trailingWord(next)
		}
		return subject + " is" + trailingWord(next)
	})

	return text, text != original
}

func trailingWord(w string) string {
	if w == "" {
		return ""
	}
	return " " + w
}

