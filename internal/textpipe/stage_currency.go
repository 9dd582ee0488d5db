package textpipe

import (
	"regexp"
	"strconv"
	"strings"
)

type currencyInfo struct {
	name, plural, subunit, subunitPlural, code string
}

var currencySymbols = map[string]currencyInfo{
	"$": {"dollar", "dollars", "cent", "cents", "USD"},
	"€": {"euro", "euros", "cent", "cents", "EUR"},
	"£": {"pound", "pounds", "pence", "pence", "GBP"},
	"¥": {"yen", "yen", "sen", "sen", "JPY"},
	"₹": {"rupee", "rupees", "paisa", "paisa", "INR"},
	"₽": {"ruble", "rubles", "kopek", "kopeks", "RUB"},
	"₩": {"won", "won", "jeon", "jeon", "KRW"},
	"¢": {"cent", "cents", "", "", "USD"},
}

// currencySymbolOrder fixes iteration order so compiled patterns (and
// therefore match precedence among symbols appearing in the same text) are
// deterministic.
var currencySymbolOrder = []string{"$", "€", "£", "¥", "₹", "₽", "₩", "¢"}

type financialSuffix struct {
	multiplier int64
	name       string
}

var financialSuffixes = map[string]financialSuffix{
	"k": {1_000, "thousand"},
	"K": {1_000, "thousand"},
	"m": {1_000_000, "million"},
	"M": {1_000_000, "million"},
	"b": {1_000_000_000, "billion"},
	"B": {1_000_000_000, "billion"},
	"t": {1_000_000_000_000, "trillion"},
	"T": {1_000_000_000_000, "trillion"},
}

var financialTerms = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bbps\b`), "basis points"},
	{regexp.MustCompile(`\bQ1\b`), "first quarter"},
	{regexp.MustCompile(`\bQ2\b`), "second quarter"},
	{regexp.MustCompile(`\bQ3\b`), "third quarter"},
	{regexp.MustCompile(`\bQ4\b`), "fourth quarter"},
	{regexp.MustCompile(`\bYoY\b`), "year over year"},
	{regexp.MustCompile(`\bMoM\b`), "month over month"},
	{regexp.MustCompile(`\bP/E\b`), "price to earnings"},
	{regexp.MustCompile(`\bROI\b`), "return on investment"},
	{regexp.MustCompile(`\bEBITDA\b`), "E B I T D A"},
}

type currencyPatternSet struct {
	symbol                   string
	negParenSuffix, negParen *regexp.Regexp
	leadingMinus, suffix     *regexp.Regexp
	approximate, commaGroup  *regexp.Regexp
	basic                    *regexp.Regexp
}

var currencyPatterns = compileCurrencyPatterns()

func compileCurrencyPatterns() []currencyPatternSet {
	out := make([]currencyPatternSet, 0, len(currencySymbolOrder))
	for _, sym := range currencySymbolOrder {
		q := regexp.QuoteMeta(sym)
		out = append(out, currencyPatternSet{
			symbol:         sym,
			negParenSuffix: regexp.MustCompile(`\(` + q + `(\d+(?:\.\d+)?)([KMBTkmbt])\)`),
			negParen:       regexp.MustCompile(`\(` + q + `(\d+(?:\.\d+)?)\)`),
			leadingMinus:   regexp.MustCompile(`-` + q + `(\d+(?:\.\d+)?)`),
			suffix:         regexp.MustCompile(q + `(\d+(?:\.\d+)?)\s*([KMBTkmbt])\b`),
			approximate:    regexp.MustCompile(`~` + q + `(\d+(?:\.\d+)?)`),
			commaGroup:     regexp.MustCompile(q + `(\d{1,3}(?:,\d{3})+(?:\.\d+)?)`),
			basic:          regexp.MustCompile(q + `(\d+(?:\.\d{1,2})?)`),
		})
	}
	return out
}

// applyCurrency is stage 7: strict specificity order per pattern set,
// applied across all supported symbols before moving to the next pattern
// kind, then the financial-jargon glossary.
func applyCurrency(text string, _ Config) (string, bool) {
	original := text

	for _, ps := range currencyPatterns {
		text = ps.negParenSuffix.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.negParenSuffix.FindStringSubmatch(m)
			return "negative " + suffixedAmountWords(ps.symbol, g[1], g[2])
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.negParen.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.negParen.FindStringSubmatch(m)
			return "negative " + basicAmountWords(ps.symbol, g[1])
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.leadingMinus.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.leadingMinus.FindStringSubmatch(m)
			return "negative " + basicAmountWords(ps.symbol, g[1])
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.suffix.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.suffix.FindStringSubmatch(m)
			return suffixedAmountWords(ps.symbol, g[1], g[2])
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.approximate.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.approximate.FindStringSubmatch(m)
			return "approximately " + basicAmountWords(ps.symbol, g[1])
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.commaGroup.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.commaGroup.FindStringSubmatch(m)
			return basicAmountWords(ps.symbol, strings.ReplaceAll(g[1], ",", ""))
		})
	}
	for _, ps := range currencyPatterns {
		text = ps.basic.ReplaceAllStringFunc(text, func(m string) string {
			g := ps.basic.FindStringSubmatch(m)
			return basicAmountWords(ps.symbol, g[1])
		})
	}

	for _, term := range financialTerms {
		text = term.pattern.ReplaceAllString(text, term.repl)
	}

	return text, text != original
}

func suffixedAmountWords(symbol, amount, suffix string) string {
	info := currencySymbols[symbol]
	fs, ok := financialSuffixes[suffix]
	if !ok {
		return basicAmountWords(symbol, amount)
	}
	whole, frac := splitDecimal(amount)
	var words string
	if frac == "" {
		words = numberToWords(whole) + " " + fs.name + " " + pluralize(info.name, whole)
	} else {
		words = numberToWords(whole) + " " + decimalToWords(frac) + " " + fs.name + " " + pluralize(info.name, whole)
	}
	return words
}

func basicAmountWords(symbol, amount string) string {
	info := currencySymbols[symbol]
	whole, frac := splitDecimal(amount)

	if frac == "" {
		return numberToWords(whole) + " " + pluralize(info.name, whole)
	}
	if len(frac) > 2 || info.subunit == "" {
		return numberToWords(whole) + " " + pluralize(info.name, whole) + " " + decimalToWords(frac)
	}

	cents := frac
	if len(cents) == 1 {
		cents += "0"
	}
	centsVal, _ := strconv.ParseInt(cents, 10, 64)
	if whole == 0 {
		return numberToWords(centsVal) + " " + pluralize(info.subunit, centsVal)
	}
	return numberToWords(whole) + " " + pluralize(info.name, whole) + " and " +
		numberToWords(centsVal) + " " + pluralize(info.subunit, centsVal)
}

func splitDecimal(amount string) (whole int64, frac string) {
	parts := strings.SplitN(amount, ".", 2)
	whole, _ = strconv.ParseInt(parts[0], 10, 64)
	if len(parts) == 2 {
		frac = parts[1]
	}
	return whole, frac
}
