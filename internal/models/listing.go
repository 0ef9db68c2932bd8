package models

import (
	"strings"
	"time"
)

// VintageClass is the classifier verdict stored on every listing.
type VintageClass string

const (
	ClassOriginal   VintageClass = "vintage_originale"
	ClassRetro      VintageClass = "retro_moderno"
	ClassGeneric    VintageClass = "vintage_generico"
	ClassNonVintage VintageClass = "non_vintage"
)

// EraGeneric is the sentinel era used when no decade can be resolved.
const EraGeneric = "vintage_generico"

// Eras lists the decade buckets in chronological order.
var Eras = []string{
	"anni_20", "anni_30", "anni_40", "anni_50",
	"anni_60", "anni_70", "anni_80", "anni_90",
}

// ValidEra reports whether era is a known decade bucket or the generic sentinel.
func ValidEra(era string) bool {
	if era == EraGeneric {
		return true
	}
	for _, e := range Eras {
		if e == era {
			return true
		}
	}
	return false
}

// Listing is the canonical record stored in Elasticsearch.
type Listing struct {
	Hash         string       `json:"hash"`
	Source       string       `json:"source"`
	SourceID     string       `json:"source_id,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	PriceRaw     string       `json:"price_raw,omitempty"`
	Price        *float64     `json:"price"`
	Currency     string       `json:"currency"`
	URL          string       `json:"url"`
	Image        string       `json:"image,omitempty"`
	Location     string       `json:"location,omitempty"`
	CategoryRaw  string       `json:"category_raw,omitempty"`
	Category     string       `json:"category"`
	Condition    string       `json:"condition,omitempty"`
	Era          string       `json:"era"`
	VintageClass VintageClass `json:"vintage_class"`
	VintageScore int          `json:"vintage_score"`
	Keywords     []string     `json:"keywords"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Removed      bool         `json:"removed"`
	RemovedAt    *time.Time   `json:"removed_at,omitempty"`
	Expired      bool         `json:"expired"`
	ExpiredAt    *time.Time   `json:"expired_at,omitempty"`

	// Candidates carries ambiguous terms from classification; never persisted.
	Candidates []Candidate `json:"-"`
}

// Text returns title and description joined, the text most matchers look at.
func (l Listing) Text() string {
	return strings.TrimSpace(l.Title + " " + l.Description)
}

// Candidate is a term the classifier could not place in any vocabulary.
type Candidate struct {
	Term    string    `json:"term"`
	Context string    `json:"context"`
	Source  string    `json:"source,omitempty"`
	SeenAt  time.Time `json:"seen_at"`
}

// RawListing is a scraper record with loosely named fields.
type RawListing map[string]any

// First returns the first non-empty string value among keys.
func (r RawListing) First(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []byte:
			s = string(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Value returns the first present, non-nil raw value among keys.
func (r RawListing) Value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
