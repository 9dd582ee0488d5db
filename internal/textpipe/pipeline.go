// Package textpipe implements the ordered text-normalization pipeline that
// sits between raw request text and the external phonemizer.
package textpipe

import (
	"strings"
	"unicode"
)

// Config mirrors config.TextConfig but is the immutable value a Pipeline
// samples once per request, per the "single PipelineConfig value" guidance:
// no stage re-reads a live config handle mid-run.
type Config struct {
	ExpandContractions     bool
	UsePronunciationRules  bool
	UseLegacyPhonetic      bool
	UseInterjectionFixes   bool
	UseTickerProcessing    bool
	UseProperNameFixes     bool
	UseAdvancedCurrency    bool
	UseEnhancedDateTime    bool
	UseAdvancedSymbols     bool
	UseEspeakSymbols       bool
	PunctuationMode        string // none|some|all
	PreserveWordCount      bool
	PreserveOriginalOnError bool
	WordCountToleranceFrac float64
}

// DefaultConfig returns the shipping defaults discussed in the Open
// Questions note: every newer fix is its own explicit knob, on by default,
// except the legacy phonetic contraction table which stays off.
func DefaultConfig() Config {
	return Config{
		ExpandContractions:      true,
		UsePronunciationRules:   true,
		UseLegacyPhonetic:       false,
		UseInterjectionFixes:    true,
		UseTickerProcessing:     true,
		UseProperNameFixes:      true,
		UseAdvancedCurrency:     true,
		UseEnhancedDateTime:     true,
		UseAdvancedSymbols:      true,
		UseEspeakSymbols:        true,
		PunctuationMode:         "some",
		PreserveWordCount:       true,
		PreserveOriginalOnError: true,
		WordCountToleranceFrac:  0.1,
	}
}

// Result is the outcome of a pipeline run.
type Result struct {
	Text             string
	Original         string
	StagesCompleted  []string
	Changes          []string
	IssuesFound      []string
	ConfidenceScore  float64
}

// stage is a single ordered normalization step. idempotent marks stages
// whose output is a fixed point: running the stage again on its own
// output must not change it.
type stage struct {
	name       string
	idempotent bool
	enabled    func(Config) bool
	apply      func(string, Config) (string, bool)
}

// stages lists the thirteen fixed-order steps. Order must never change;
// individual steps may be skipped via their enabled predicate.
func stages() []stage {
	return []stage{
		{"phonemizer_preprocessing", false, func(Config) bool { return true }, applyPreprocess},
		{"pronunciation_rules", true, func(c Config) bool { return c.UsePronunciationRules }, applyPronunciationRules},
		{"legacy_phonetic_contraction", false, func(c Config) bool { return c.UseLegacyPhonetic }, applyLegacyPhonetic},
		{"interjection_fix", true, func(c Config) bool { return c.UseInterjectionFixes }, applyInterjectionFixes},
		{"ticker_symbol", true, func(c Config) bool { return c.UseTickerProcessing }, applyTickerSymbols},
		{"proper_name", false, func(c Config) bool { return c.UseProperNameFixes }, applyProperNames},
		{"advanced_currency", true, func(c Config) bool { return c.UseAdvancedCurrency }, applyCurrency},
		{"enhanced_datetime", true, func(c Config) bool { return c.UseEnhancedDateTime }, applyDateTime},
		{"advanced_symbols", true, func(c Config) bool { return c.UseAdvancedSymbols && !c.UseEspeakSymbols }, applyAdvancedSymbols},
		{"espeak_symbols", true, func(c Config) bool { return c.UseEspeakSymbols }, applyEspeakSymbols},
		{"homograph_resolution", false, func(Config) bool { return true }, applyHomographs},
		{"generic_normalizer", false, func(Config) bool { return true }, applyGenericNormalize},
		{"prosody_analyzer", false, func(Config) bool { return true }, applyProsody},
	}
}

// Pipeline runs the fixed ordered stage list over request text.
type Pipeline struct {
	stages []stage
}

// New builds a Pipeline with its stage table precompiled (regex-heavy
// stages own their compiled patterns as package-level vars, never
// recompiled in the hot path).
func New() *Pipeline {
	return &Pipeline{stages: stages()}
}

// Normalize runs text through the ordered stage list. Each stage's output is
// checked against the word count going into that stage, not the original
// input, so one stage's rollback can't cascade into rejecting every stage
// after it.
func (p *Pipeline) Normalize(text string, cfg Config) Result {
	res := Result{Original: text, Text: text, ConfidenceScore: 1.0}

	cur := text
	curWords := wordCount(text)
	for _, st := range p.stages {
		if !st.enabled(cfg) {
			continue
		}
		next, changed := safeApply(st.apply, cur, cfg, &res, st.name)
		if cfg.PreserveWordCount {
			nextWords := wordCount(next)
			if !withinTolerance(curWords, nextWords, cfg.WordCountToleranceFrac) {
				res.IssuesFound = append(res.IssuesFound, st.name+": word-count drift exceeded tolerance, rolled back")
				continue
			}
			curWords = nextWords
		}
		cur = next
		res.StagesCompleted = append(res.StagesCompleted, st.name)
		if changed {
			res.Changes = append(res.Changes, st.name)
		}
	}

	res.Text = cur
	return res
}

func safeApply(fn func(string, Config) (string, bool), text string, cfg Config, res *Result, name string) (out string, changed bool) {
	defer func() {
		if r := recover(); r != nil {
			res.IssuesFound = append(res.IssuesFound, name+": stage panicked, input passed through unchanged")
			out, changed = text, false
		}
	}()
	return fn(text, cfg)
}

func withinTolerance(inputWords, outputWords int, frac float64) bool {
	if inputWords == 0 {
		return true
	}
	tolerance := int(float64(inputWords) * frac)
	if frac > 0 && tolerance < 1 {
		tolerance = 1
	}
	diff := outputWords - inputWords
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func wordCount(s string) int {
	return len(strings.FieldsFunc(s, unicode.IsSpace))
}

// Variant selects one of four text-preparation strategies used by the
// synthesis orchestrator's retry ladder.
type Variant int

const (
	VariantConservative Variant = iota // V1: word-count preserving
	VariantMinimal                     // V2: trim + ensure terminal period
	VariantStandard                    // V3: full pipeline, word-count free
	VariantAggressive                  // V4: full pipeline + aggressive cleanup
)

// PrepareVariant produces the text for a given retry attempt, clamped into
// [0,3] by the caller.
func (p *Pipeline) PrepareVariant(text string, base Config, v Variant) Result {
	cfg := base
	switch v {
	case VariantConservative:
		cfg.PreserveWordCount = true
		return p.Normalize(text, cfg)
	case VariantMinimal:
		t := strings.TrimSpace(text)
		if t != "" {
			last := t[len(t)-1]
			if !strings.ContainsRune(".!?", rune(last)) {
				t += "."
			}
		}
		return Result{Original: text, Text: t, StagesCompleted: []string{"minimal"}}
	case VariantStandard:
		cfg.PreserveWordCount = false
		return p.Normalize(text, cfg)
	default: // VariantAggressive
		cfg.PreserveWordCount = false
		cfg.UseLegacyPhonetic = true
		res := p.Normalize(text, cfg)
		res.Text = collapseRepeatedPunct(res.Text)
		return res
	}
}

func collapseRepeatedPunct(s string) string {
	var b strings.Builder
	var last rune
	run := 0
	for _, r := range s {
		if r == last && strings.ContainsRune("!?.", r) {
			run++
			if run >= 2 {
				continue
			}
		} else {
			run = 0
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}
