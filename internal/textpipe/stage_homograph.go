package textpipe

import "strings"

// homographPronunciations resolves a small set of spelling-identical,
// pronunciation-different words using the same neighboring-context
// approach as the proper-name stage, kept separate because homographs are
// common words rather than names and normally get resolved by an
// external phonemizer — this is the minimal in-process fallback.
var homographPronunciations = []contextualPronunciation{
	{"read", "will", "reed"},
	{"read", "already", "red"},
	{"read", "yesterday", "red"},
	{"lead", "metal", "led"},
	{"lead", "pencil", "led"},
	{"wind", "clock", "wined"},
	{"wind", "up", "wined"},
}

// applyHomographs is stage 11.
func applyHomographs(text string, _ Config) (string, bool) {
	original := text
	words := strings.Fields(text)
	for i, w := range words {
		bare := strings.ToLower(strings.Trim(w, ".,;:!?\"'"))
		for _, h := range homographPronunciations {
			if bare != h.word {
				continue
			}
			if hasNearbyContext(words, i, h.contextWord) {
				words[i] = strings.Replace(w, strings.Trim(w, ".,;:!?\"'"), h.pronunciation, 1)
				break
			}
		}
	}
	text = strings.Join(words, " ")
	return text, text != original
}
