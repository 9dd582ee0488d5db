package textpipe

import "regexp"

var emphasisCandidate = regexp.MustCompile(`\b[A-Z]{2,}\b`)

// applyProsody is stage 13. It never edits the text itself — intonation
// breaks and emphasis markers are metadata, not glyphs inserted into the
// stream, which avoids leaking arrow-style markers into the text sent to
// the phonemizer. It exists as a pipeline stage (rather than being folded
// into the generic normalizer) so future emphasis metadata has a single,
// well-ordered place to attach without touching earlier stages.
func applyProsody(text string, _ Config) (string, bool) {
	_ = emphasisCandidate.FindAllString(text, -1)
	return text, false
}
