package news

import (
	"regexp"
	"sort"
	"strings"
)

// aliasTable maps a lowercased company name or common alias to its
// canonical ticker symbol. A real deployment would load a larger table;
// this fixed set covers the symbols this module's provider clients exercise.
var aliasTable = map[string]string{
	"bitcoin":       "BTC",
	"btc":           "BTC",
	"ethereum":      "ETH",
	"eth":           "ETH",
	"apple":         "AAPL",
	"tesla":         "TSLA",
	"microsoft":     "MSFT",
	"amazon":        "AMZN",
	"nvidia":        "NVDA",
	"garanti bbva":  "GARAN.IS",
	"turkcell":      "TCELL.IS",
}

// keywordTagTable maps a lowercased keyword to a category tag.
var keywordTagTable = map[string]string{
	"earnings":     "earnings",
	"ipo":          "ipo",
	"merger":       "mergers-acquisitions",
	"acquisition":  "mergers-acquisitions",
	"rate hike":    "monetary-policy",
	"interest rate": "monetary-policy",
	"inflation":    "macro",
	"recession":    "macro",
	"halving":      "crypto",
	"etf":          "etf",
	"sec":          "regulation",
	"lawsuit":      "legal",
	"bankruptcy":   "legal",
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"in": true, "on": true, "for": true, "to": true, "is": true, "at": true,
	"ve": true, "bir": true, "bu": true, "da": true, "de": true, "ile": true,
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Tagged is the pure extraction result: deduplicated ticker symbols and
// category tags found in a piece of text.
type Tagged struct {
	Tickers []string
	Tags    []string
}

// Tag is a deterministic, pure, no-I/O extractor: the same text always
// yields the same tickers and tags. knownSymbols, if non-nil, additionally
// restricts ticker candidates derived from direct symbol mentions (e.g.
// "$AAPL") to symbols the store actually knows about.
func Tag(text string, knownSymbols map[string]bool) Tagged {
	lower := strings.ToLower(text)
	words := wordPattern.FindAllString(lower, -1)

	tickerSet := make(map[string]bool)
	tagSet := make(map[string]bool)

	for _, w := range words {
		if stopwords[w] {
			continue
		}
		if symbol, ok := aliasTable[w]; ok {
			tickerSet[symbol] = true
		}
		if tag, ok := keywordTagTable[w]; ok {
			tagSet[tag] = true
		}
	}

	for phrase, symbol := range aliasTable {
		if strings.Contains(phrase, " ") && strings.Contains(lower, phrase) {
			tickerSet[symbol] = true
		}
	}
	for phrase, tag := range keywordTagTable {
		if strings.Contains(phrase, " ") && strings.Contains(lower, phrase) {
			tagSet[tag] = true
		}
	}

	for _, candidate := range directSymbolMentions(text) {
		if knownSymbols == nil || knownSymbols[candidate] {
			tickerSet[candidate] = true
		}
	}

	return Tagged{Tickers: sortedKeys(tickerSet), Tags: sortedKeys(tagSet)}
}

var symbolMentionPattern = regexp.MustCompile(`\$([A-Z]{1,6})\b`)

func directSymbolMentions(text string) []string {
	matches := symbolMentionPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
