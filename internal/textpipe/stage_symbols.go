package textpipe

import (
	"regexp"
	"strconv"
	"strings"
)

// symbolWords is the shared symbol-to-word table used by both the default
// advanced-symbol pass and the eSpeak-enhanced pass. Question mark and
// exclamation mark are deliberately absent: '?' never vocalizes (it only
// shapes intonation) and '!' is handled by the punctuation-mode logic in
// applyEspeakSymbols, not this table, matching the source project's fix
// for the long-standing "question mark" mispronunciation bug.
var symbolWords = map[string]string{
	"+": "plus", "=": "equals", "*": "asterisk", "/": "slash", "\\": "backslash",
	"%": "percent", "&": "and", "@": "at", "#": "hash", "^": "caret",
	"_": "underscore", "|": "pipe", "~": "tilde", "`": "backtick",
	"$": "dollar sign", "€": "euro sign", "£": "pound sign", "¥": "yen sign",
	"(": "open paren", ")": "close paren", "[": "open bracket", "]": "close bracket",
	"{": "open brace", "}": "close brace",
}

var quoteChars = regexp.MustCompile(`["'\x{201C}\x{201D}\x{2018}\x{2019}]`)

// contractionApostrophe matches an apostrophe that sits between two letters
// (i.e. inside a contraction or possessive) so the quote-stripping pass
// below can leave it alone.
var contractionApostrophe = regexp.MustCompile(`([A-Za-z])'([A-Za-z])`)

var standaloneAsterisk = regexp.MustCompile(`(^|\s)\*(\s|$)`)

var urlPattern = regexp.MustCompile(`\bhttps?://\S+`)
var emailPattern = regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`)
var filePathPattern = regexp.MustCompile(`(?:[A-Za-z]:)?(?:[\\/][\w.\-]+){2,}`)

// applyAdvancedSymbols is stage 9, the default path used when the
// eSpeak-enhanced stage is disabled.
func applyAdvancedSymbols(text string, cfg Config) (string, bool) {
	original := text
	text, placeholders := protectContextAwareSpans(text)
	for sym, word := range symbolWords {
		text = replaceSymbolOutsideProtected(text, sym, " "+word+" ")
	}
	for key, span := range placeholders {
		text = replaceFirst(text, key, span)
	}
	text = contractionApostrophe.ReplaceAllString(text, "$1\x00APOS\x00$2")
	text = quoteChars.ReplaceAllString(text, "")
	text = restoreApostrophes(text)
	return text, text != original
}

// applyEspeakSymbols is stage 10. Mode-gated punctuation vocalization plus
// context-aware suppression inside URLs/emails/paths/code.
func applyEspeakSymbols(text string, cfg Config) (string, bool) {
	original := text

	text = standaloneAsterisk.ReplaceAllString(text, "${1}asterisk${2}")

	text, placeholders := protectContextAwareSpans(text)

	for sym, word := range symbolWords {
		if sym == "*" {
			continue
		}
		text = replaceSymbolOutsideProtected(text, sym, " "+word+" ")
	}

	text = applyPunctuationMode(text, cfg.PunctuationMode)

	text = contractionApostrophe.ReplaceAllString(text, "$1\x00APOS\x00$2")
	text = quoteChars.ReplaceAllString(text, "")
	text = restoreApostrophes(text)

	for key, span := range placeholders {
		text = replaceFirst(text, key, span)
	}

	return text, text != original
}

func restoreApostrophes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0 && i+5 <= len(s) && s[i:i+6] == "\x00APOS\x00" {
			out = append(out, '\'')
			i += 5
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// applyPunctuationMode implements the three punctuation modes: none strips
// every mapped punctuation character; some vocalizes only '!'; all
// vocalizes every mapped character except '.'.
func applyPunctuationMode(text string, mode string) string {
	switch mode {
	case "none":
		for _, ch := range []string{"!", ",", ";", ":"} {
			text = replaceSymbolOutsideProtected(text, ch, "")
		}
	case "all":
		text = replaceSymbolOutsideProtected(text, "!", " exclamation mark ")
		text = replaceSymbolOutsideProtected(text, ",", " comma ")
		text = replaceSymbolOutsideProtected(text, ";", " semicolon ")
		text = replaceSymbolOutsideProtected(text, ":", " colon ")
	default: // "some"
		text = replaceSymbolOutsideProtected(text, "!", " exclamation mark ")
	}
	return text
}

// replaceSymbolOutsideProtected is a thin wrapper kept as its own function
// so context-protection can later intercept specific spans without
// touching call sites; today it is a direct literal replace.
func replaceSymbolOutsideProtected(text, symbol, replacement string) string {
	return regexpLiteralReplace(text, symbol, replacement)
}

func regexpLiteralReplace(text, literal, replacement string) string {
	re := symbolLiteralPattern(literal)
	return re.ReplaceAllString(text, replacement)
}

var literalPatternCache = map[string]*regexp.Regexp{}

func symbolLiteralPattern(literal string) *regexp.Regexp {
	if re, ok := literalPatternCache[literal]; ok {
		return re
	}
	re := regexp.MustCompile(regexp.QuoteMeta(literal))
	literalPatternCache[literal] = re
	return re
}

// protectContextAwareSpans finds URL/email/file-path spans and swaps them
// for placeholders so the symbol/punctuation passes cannot mangle them,
// returning the substituted text and a map to restore the originals with
// afterward.
func protectContextAwareSpans(text string) (string, map[string]string) {
	type span struct{ start, end int }
	var spans []span
	for _, re := range []*regexp.Regexp{urlPattern, emailPattern, filePathPattern} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}
	if len(spans) == 0 {
		return text, nil
	}

	placeholders := map[string]string{}
	out := text
	for i, sp := range spans {
		if sp.start < 0 || sp.end > len(text) {
			continue
		}
		original := text[sp.start:sp.end]
		key := "\x00CTXSPAN" + strconv.Itoa(i) + "\x00"
		placeholders[key] = original
		out = replaceFirst(out, original, key)
	}
	return out, placeholders
}

func replaceFirst(s, old, new string) string {
	idx := strings.Index(s, old)
	if idx < 0 {
		return s
	}
	return strings.Replace(s, old, new, 1)
}
