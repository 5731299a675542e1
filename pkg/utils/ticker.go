package utils

import (
	"strings"

	"github.com/seenimoa/marketlens/pkg/models"
)

// IndexMarker prefixes index symbols in provider form (e.g. "^HSI").
const IndexMarker = "^"

// cryptoPairSuffix marks crypto/fiat pairs in provider form (e.g. "BTC-USD").
const cryptoPairSuffix = "-USD"

// Well-known index codes and their canonical prefixed form.
var indexAliases = map[string]string{
	"HSI":  "^HSI",  // Hang Seng
	"GSPC": "^GSPC", // S&P 500
	"DJI":  "^DJI",  // Dow Jones Industrial Average
	"IXIC": "^IXIC", // NASDAQ Composite
	"N225": "^N225", // Nikkei 225
}

// ETF and crypto short codes that expand to one or more tradable symbols.
var assetAliases = map[string][]string{
	"NDQ":  {"QQQ"},
	"SPX":  {"SPY"},
	"DJX":  {"DIA"},
	"FTSE": {"ISF.L"},
	"BTC":  {"BTC-USD", "BTC"},
	"ETH":  {"ETH-USD", "ETHE"},
}

// Name fragments that mark a crypto asset.
var cryptoKeywords = []string{"BITCOIN", "ETH", "CRYPTO"}

// NormalizeTicker expands a user-entered symbol into its canonical provider
// symbols. The result is a fresh slice; callers may modify it.
//
//	NormalizeTicker("hsi")  → ["^HSI"]
//	NormalizeTicker("^HSI") → ["^HSI"]
//	NormalizeTicker("BTC")  → ["BTC-USD", "BTC"]
//	NormalizeTicker("aapl") → ["AAPL"]
func NormalizeTicker(symbol string) []string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil
	}

	clean := strings.TrimPrefix(symbol, IndexMarker)

	if idx, ok := indexAliases[clean]; ok {
		return []string{idx}
	}
	if variants, ok := assetAliases[clean]; ok {
		return append([]string(nil), variants...)
	}
	return []string{symbol}
}

// CanonicalSymbol is the form in which article symbols are stored and
// queried: trimmed, upper-cased, with any exchange prefix ("NASDAQ:")
// removed.
//
//	CanonicalSymbol(" nasdaq:googl ") → "GOOGL"
func CanonicalSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.LastIndex(symbol, ":"); i >= 0 {
		symbol = strings.TrimSpace(symbol[i+1:])
	}
	return symbol
}

// IsIndexSymbol reports whether a provider symbol denotes an index.
func IsIndexSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, IndexMarker)
}

// DetermineAssetType classifies a symbol from its provider form and display
// name. quoteType is the provider's own classification when available and is
// only consulted when the symbol and name say nothing.
func DetermineAssetType(symbol, name, quoteType string) models.AssetType {
	symbol = strings.ToUpper(symbol)
	name = strings.ToUpper(name)

	switch {
	case IsIndexSymbol(symbol):
		return models.AssetIndex
	case strings.Contains(symbol, cryptoPairSuffix):
		return models.AssetCrypto
	case strings.Contains(name, "ETF") || strings.Contains(name, "TRUST"):
		return models.AssetETF
	}
	for _, kw := range cryptoKeywords {
		if strings.Contains(name, kw) {
			return models.AssetCrypto
		}
	}

	switch strings.ToUpper(quoteType) {
	case "EQUITY":
		return models.AssetEquity
	case "ETF":
		return models.AssetETF
	case "INDEX":
		return models.AssetIndex
	case "CRYPTOCURRENCY":
		return models.AssetCrypto
	}
	return models.AssetUnknown
}
