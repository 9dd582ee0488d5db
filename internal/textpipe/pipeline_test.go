package textpipe

import "testing"

func TestNormalizeScenarios(t *testing.T) {
	p := New()
	cfg := DefaultConfig()

	cases := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{"contraction", "I wasn't ready.", []string{"was not"}, []string{"wAHz"}},
		{"currency-suffix-quarter", "Revenue of $2.5M in Q1", []string{"two point five million", "first quarter"}, nil},
		{"ticker-exclusion", "TSLA stock rose; the CEO spoke.", []string{"T-S-L-A"}, []string{"C-E-O"}},
		{"interjection", "Hmm, what?", []string{"Hmmm"}, []string{"↗", "↘", "arrow"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := p.Normalize(tc.input, cfg)
			for _, want := range tc.contains {
				if !containsFold(res.Text, want) {
					t.Errorf("Normalize(%q) = %q, want substring %q", tc.input, res.Text, want)
				}
			}
			for _, bad := range tc.excludes {
				if containsFold(res.Text, bad) {
					t.Errorf("Normalize(%q) = %q, must not contain %q", tc.input, res.Text, bad)
				}
			}
		})
	}
}

func TestWordCountPreservation(t *testing.T) {
	p := New()
	cfg := DefaultConfig()
	cfg.PreserveWordCount = true

	inputs := []string{
		"The quick brown fox jumps over the lazy dog today",
		"Hello there, how are you doing this fine morning",
		"I wasn't sure if I'll make it on time",
	}
	for _, in := range inputs {
		res := p.Normalize(in, cfg)
		w := wordCount(in)
		got := wordCount(res.Text)
		tolerance := w / 10
		diff := got - w
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			t.Errorf("word count drift for %q: in=%d out=%d tolerance=%d", in, w, got, tolerance)
		}
	}
}

func TestNoArrowLeakage(t *testing.T) {
	p := New()
	cfg := DefaultConfig()
	res := p.Normalize("Sales trend is up and to the right, way up.", cfg)
	for _, glyph := range arrowGlyphs {
		if containsFold(res.Text, glyph) {
			t.Errorf("unexpected arrow glyph %q in %q", glyph, res.Text)
		}
	}
}

func TestTickerExclusionList(t *testing.T) {
	p := New()
	cfg := DefaultConfig()
	for tok := range tickerExclusions {
		res := p.Normalize(tok, cfg)
		if containsFold(res.Text, "-") && tok != "FYI" {
			// letter-spelling would introduce hyphens between every letter
			spelled := letterSpell(tok)
			if containsFold(res.Text, spelled) {
				t.Errorf("excluded token %q was letter-spelled: %q", tok, res.Text)
			}
		}
	}
}

func TestCurrencyBasic(t *testing.T) {
	res := applyCurrencyOnly(t, "It costs $25.50 today.")
	if !containsFold(res, "twenty-five") || !containsFold(res, "fifty") {
		t.Errorf("expected spelled amount, got %q", res)
	}
}

func TestCurrencyNegativeParenSuffix(t *testing.T) {
	res := applyCurrencyOnly(t, "Losses were ($500K) last quarter.")
	if !containsFold(res, "negative") {
		t.Errorf("expected negative prefix, got %q", res)
	}
}

func applyCurrencyOnly(t *testing.T, s string) string {
	t.Helper()
	out, _ := applyCurrency(s, Config{})
	return out
}

func containsFold(haystack, needle string) bool {
	return indexFold(haystack, needle) >= 0
}

func indexFold(haystack, needle string) int {
	h := []rune(haystack)
	n := []rune(needle)
	if len(n) == 0 {
		return 0
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			if toLowerRune(h[i+j]) != toLowerRune(n[j]) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func toLowerRune(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
