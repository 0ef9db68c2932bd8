package models

import "time"

// Scope toggles between filtered vintage browsing and unfiltered browsing.
type Scope string

const (
	ScopeFiltered Scope = "filtered"
	ScopeAll      Scope = "all"
)

// SortMode is one of the closed set of result orderings.
type SortMode string

const (
	SortRelevance SortMode = "relevance"
	SortPriceAsc  SortMode = "price_asc"
	SortPriceDesc SortMode = "price_desc"
	SortDate      SortMode = "date"
	SortAdded     SortMode = "added"
)

// SortModes lists every accepted sort mode.
var SortModes = []SortMode{SortRelevance, SortPriceAsc, SortPriceDesc, SortDate, SortAdded}

// Filters narrow a query by structured fields. Empty strings and nil prices mean "any".
type Filters struct {
	Era          string
	Category     string
	Source       string
	VintageClass VintageClass
	PriceMin     *float64
	PriceMax     *float64
}

// QueryRequest is the transient, parsed form of a search request.
type QueryRequest struct {
	Term     string
	Filters  Filters
	Sort     SortMode
	Scope    Scope
	Page     int
	PageSize int
}

// StoreQuery is a single retrieval round-trip against the listing store.
type StoreQuery struct {
	// Terms are phrases matched against title, description and keywords.
	// Empty means no textual predicate.
	Terms   []string
	Filters Filters
	Scope   Scope
	Sort    SortMode
	From    int
	Size    int
	// Now anchors recency bonuses.
	Now time.Time
}

// CandidateQuery pulls a capped, loosely pre-filtered set for in-process fuzzy ranking.
type CandidateQuery struct {
	Prefixes []string
	Filters  Filters
	Limit    int
}

// ScoredListing pairs a listing with its final ranking score.
type ScoredListing struct {
	Listing
	Score float64 `json:"score"`
}

// ListingPage is one page of results plus the total number of matches.
type ListingPage struct {
	Total int64           `json:"total"`
	Items []ScoredListing `json:"items"`
}
