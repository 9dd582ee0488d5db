package textpipe

import (
	"regexp"
	"strings"
)

// knownTickers is a closed set of frequently-quoted symbols; matches are
// letter-spelled regardless of surrounding context.
var knownTickers = buildSet([]string{
	// Large-cap and mega-cap US stocks
	"AAPL", "MSFT", "GOOGL", "GOOG", "AMZN", "TSLA", "META", "NVDA",
	"BRK.A", "BRK.B", "UNH", "JNJ", "XOM", "JPM", "V", "PG", "HD",
	"CVX", "MA", "BAC", "ABBV", "PFE", "AVGO", "KO", "LLY", "PEP",
	"TMO", "COST", "WMT", "DIS", "ABT", "DHR", "VZ", "ADBE", "NFLX",
	"CRM", "NKE", "TXN", "ACN", "LIN", "ORCL", "WFC", "BMY", "PM",
	"RTX", "QCOM", "NEE", "UPS", "T", "SCHW", "HON", "LOW", "INTU",
	"AMD", "IBM", "CAT", "SPGI", "GS", "AMGN", "DE", "AXP", "BLK",
	"ELV", "BKNG", "SYK", "TJX", "MDLZ", "ADP", "GILD", "MMC", "CVS",
	"LRCX", "C", "TMUS", "ADI", "VRTX", "MO", "ZTS", "PYPL", "SO",
	"ISRG", "NOW", "DUK", "TGT", "PLD", "SHW", "REGN", "CB", "CCI",
	"INTC", "CSCO", "MU", "KLAC", "SNPS", "CDNS", "PANW", "FTNT", "ANET",

	// Growth and consumer-tech names
	"UBER", "LYFT", "SNAP", "TWTR", "X", "SPOT", "SQ", "ROKU", "ZOOM",
	"DOCU", "SHOP", "WORK", "OKTA", "CRWD", "ZM", "PTON", "PLTR",
	"RBLX", "COIN", "HOOD", "RIVN", "LCID", "NIO", "XPEV", "LI",
	"DASH", "ABNB", "PINS", "ETSY", "EBAY", "ZG", "W", "CHWY", "DKNG",
	"AFRM", "UPST", "SOFI", "MSTR", "U", "NET", "DDOG", "MDB", "TEAM",
	"TTD", "APP", "ASAN", "PATH", "BILL", "ESTC",

	// ETFs and index funds
	"SPY", "QQQ", "IWM", "VTI", "VOO", "VEA", "VWO", "BND", "AGG",
	"GLD", "SLV", "USO", "TLT", "HYG", "LQD", "EEM", "FXI", "EWJ",
	"EFA", "IEFA", "IEMG", "VGT", "XLK", "XLF", "XLE", "XLV", "XLI",
	"XLP", "XLY", "XLU", "XLRE", "XLB", "XME", "KRE", "SMH", "IBB",
	"DIA", "ARKK", "ARKG", "ARKW", "ARKQ", "SCHD", "VYM", "VUG", "VTV",
	"IVV", "MDY", "IJH", "IJR", "SDY", "DVY", "JEPI", "JEPQ", "SOXX",

	// Crypto-related equities
	"MSTR", "RIOT", "MARA", "BITF", "HUT", "BTBT", "CAN", "CLSK", "WULF",

	// International and ADR listings
	"BABA", "TSM", "ASML", "SAP", "TM", "NVO", "SHEL", "UL", "NESN",
	"RHHBY", "ADYEN", "SE", "GRAB", "DIDI", "PDD", "JD", "BIDU", "NTES",
	"TCEHY", "BILI", "TME", "VIPS", "YUMC", "ZTO", "HMC", "SONY", "MUFG",
	"HSBC", "BCS", "DB", "ING", "BP", "TTE", "RIO", "BHP", "VALE",

	// Indices and benchmarks (often referenced by name)
	"SPX", "NDX", "RUT", "VIX", "DJI", "IXIC", "FTSE", "DAX", "CAC",
	"NIKKEI", "HSI", "KOSPI", "ASX", "TSX", "IBEX", "AEX", "OMX",

	// Other frequently quoted tickers
	"BA", "F", "GM", "GE", "MMM", "UNP", "LMT", "NOC", "GD", "FDX",
	"NSC", "CSX", "DAL", "UAL", "AAL", "LUV", "CCL", "RCL", "NCLH",
	"MAR", "HLT", "EXPE", "TRIP", "YELP", "GRUB", "WYNN", "LVS", "MGM",
	"PEG", "D", "EXC", "AEP", "XEL", "ED", "EIX", "PCG", "SRE", "WEC",
	"KHC", "MDLZ", "HSY", "GIS", "K", "CAG", "CPB", "SJM", "MKC", "HRL",
	"CL", "KMB", "CLX", "CHD", "EL", "KDP", "STZ", "TAP", "BF.B",
	"PNC", "USB", "TFC", "COF", "BK", "STT", "NTRS", "MTB", "FITB",
	"RF", "HBAN", "KEY", "CFG", "ZION", "CMA", "SIVB", "ALLY",
	"AIG", "MET", "PRU", "AFL", "TRV", "PGR", "ALL", "HIG", "CINF",
	"MMC", "AON", "WTW", "BRO", "AJG", "CB",
	"DOW", "DD", "LYB", "APD", "ECL", "PPG", "NUE", "FCX", "NEM", "AA",
	"X", "CLF", "MOS", "CF", "FMC", "ALB", "CE",
	"CMCSA", "CHTR", "PARA", "WBD", "FOXA", "FOX", "NWSA", "NYT", "OMC",
	"IPG", "MTCH", "BMBL",
})

// financialContexts are keywords whose proximity to a bare 2-5 letter
// uppercase token suggests a ticker rather than an acronym.
var financialContexts = []string{
	"stock", "share", "shares", "trading", "traded", "gained", "lost",
	"rose", "fell", "climbed", "dropped", "analyst", "analysts", "bullish",
	"bearish", "rally", "selloff", "earnings", "dividend", "market cap",
}

// tickerExclusions are common words/acronyms that must never be
// letter-spelled even if they match the contextual shape.
var tickerExclusions = buildSet([]string{
	"THE", "AND", "FOR", "ARE", "BUT", "NOT", "YOU", "ALL", "CAN", "HER",
	"WAS", "ONE", "OUR", "OUT", "HAS", "HIS", "HOW", "ITS", "WHO", "DID",
	"YES", "YET", "NOW", "NEW", "OLD", "TOP", "WAY", "WHY", "USE", "TWO",
	"CEO", "CFO", "CTO", "COO", "USA", "USD", "EUR", "GBP",
	"HTTP", "HTTPS", "HTML", "JSON", "JPG", "PNG", "PDF", "CSV", "XML",
	"KG", "LB", "OZ", "MPH", "KPH",
	"EST", "PST", "CST", "MST", "UTC", "GMT",
	"FAQ", "ATM", "DIY", "ASAP", "FYI",
})

func buildSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

var knownTickerPattern = regexp.MustCompile(`\b([A-Z]{1,5})\b`)
var contextualTickerPattern = regexp.MustCompile(`\b([A-Z]{2,5})\b`)
var movementWords = buildSet([]string{"up", "down", "gained", "lost", "fell", "rose", "climbed"})

// applyTickerSymbols is stage 5. Known tickers are spelled letter-by-letter
// first; then a contextual pass looks for bare uppercase tokens adjacent to
// financial-context keywords or movement verbs, skipping anything in
// tickerExclusions or already handled as a known ticker.
func applyTickerSymbols(text string, _ Config) (string, bool) {
	original := text

	text = knownTickerPattern.ReplaceAllStringFunc(text, func(tok string) string {
		if knownTickers[tok] {
			return letterSpell(tok)
		}
		return tok
	})

	lowerText := strings.ToLower(text)
	hasFinancialContext := false
	for _, kw := range financialContexts {
		if strings.Contains(lowerText, kw) {
			hasFinancialContext = true
			break
		}
	}
	if hasFinancialContext {
		words := strings.Fields(text)
		for i, w := range words {
			upper := strings.Trim(w, ".,;:!?")
			if !contextualTickerPattern.MatchString(upper) || upper != strings.ToUpper(upper) {
				continue
			}
			if knownTickers[upper] || tickerExclusions[upper] {
				continue
			}
			nearMovement := (i > 0 && movementWords[strings.ToLower(words[i-1])]) ||
				(i+1 < len(words) && movementWords[strings.ToLower(words[i+1])])
			if nearMovement {
				words[i] = strings.Replace(w, upper, letterSpell(upper), 1)
			}
		}
		text = strings.Join(words, " ")
	}

	return text, text != original
}

func letterSpell(s string) string {
	letters := make([]string, 0, len(s))
	for _, r := range s {
		letters = append(letters, string(r))
	}
	return strings.Join(letters, "-")
}
