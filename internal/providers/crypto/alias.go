package crypto

import "strings"

// aliasTable maps bare ticker shorthand to the exchange's USDT trading pair,
// so a request for "BTC" and a request for "BTCUSDT" hit the same quote
// cache entry and the same upstream call.
var aliasTable = map[string]string{
	"BTC":   "BTCUSDT",
	"ETH":   "ETHUSDT",
	"SOL":   "SOLUSDT",
	"BNB":   "BNBUSDT",
	"XRP":   "XRPUSDT",
	"ADA":   "ADAUSDT",
	"DOGE":  "DOGEUSDT",
	"DOT":   "DOTUSDT",
	"MATIC": "MATICUSDT",
	"LTC":   "LTCUSDT",
	"AVAX":  "AVAXUSDT",
	"LINK":  "LINKUSDT",
	"TRX":   "TRXUSDT",
}

// ResolveAlias maps a bare ticker (BTC) to its exchange trading pair
// (BTCUSDT). Symbols already in pair form, or not present in the table,
// pass through unchanged.
func ResolveAlias(symbol string) string {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if resolved, ok := aliasTable[key]; ok {
		return resolved
	}
	return symbol
}
