package models

// MatchSource records where a ticker candidate was found.
type MatchSource string

const (
	SourceLocal    MatchSource = "local"
	SourceVerified MatchSource = "verified"
)

// AssetType classifies a ticker candidate.
type AssetType string

const (
	AssetIndex   AssetType = "Index"
	AssetCrypto  AssetType = "Crypto"
	AssetETF     AssetType = "ETF"
	AssetEquity  AssetType = "Equity"
	AssetUnknown AssetType = ""
)

// CatalogEntry is one row of the local ticker catalog.
type CatalogEntry struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name"   yaml:"name"`
}

// CandidateMatch is a single ticker search result.
// Symbols are unique within one search response.
type CandidateMatch struct {
	Symbol      string      `json:"symbol"`
	DisplayName string      `json:"name"`
	Source      MatchSource `json:"source"`
	AssetType   AssetType   `json:"type,omitempty"`
}

// Verification is the answer of a live ticker verification provider.
type Verification struct {
	Found     bool   `json:"found"`
	Name      string `json:"name,omitempty"`
	QuoteType string `json:"quote_type,omitempty"` // e.g. "EQUITY", "ETF", "INDEX", "CRYPTOCURRENCY"
}
