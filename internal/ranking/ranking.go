// Package ranking holds the relevance and recency model shared by the store
// query and the in-process fuzzy stage.
package ranking

import (
	"sort"
	"time"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)

// Tier grants Bonus to listings whose age is at most MaxAge.
type Tier struct {
	MaxAge time.Duration `koanf:"max_age"`
	Bonus  float64       `koanf:"bonus"`
}

// DefaultTiers: full bonus within a day, decaying across 3, 7 and 14 days.
var DefaultTiers = []Tier{
	{MaxAge: 24 * time.Hour, Bonus: 10},
	{MaxAge: 72 * time.Hour, Bonus: 6},
	{MaxAge: 7 * 24 * time.Hour, Bonus: 3},
	{MaxAge: 14 * 24 * time.Hour, Bonus: 1},
}

// EraBonus is added when a listing has a concrete decade.
const EraBonus = 1.0

// RecencyBonus returns the bonus of the first tier whose MaxAge is >= age.
// A listing exactly on a breakpoint gets the higher bonus. Tiers must be
// sorted by MaxAge ascending.
func RecencyBonus(age time.Duration, tiers []Tier) float64 {
	if age < 0 {
		age = 0
	}
	for _, t := range tiers {
		if age <= t.MaxAge {
			return t.Bonus
		}
	}
	return 0
}

// SortTiers orders tiers by MaxAge ascending in place.
func SortTiers(tiers []Tier) {
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MaxAge < tiers[j].MaxAge })
}

// EraWeight is EraBonus for a decade bucket and zero for the generic era.
func EraWeight(era string) float64 {
	if era == "" || era == models.EraGeneric {
		return 0
	}
	return EraBonus
}

// BaseRelevance combines the text match with the listing's own signals.
func BaseRelevance(textScore float64, l models.Listing) float64 {
	return textScore + float64(l.VintageScore) + EraWeight(l.Era)
}

// FinalScore is BaseRelevance plus the recency bonus at now.
func FinalScore(textScore float64, l models.Listing, now time.Time, tiers []Tier) float64 {
	return BaseRelevance(textScore, l) + RecencyBonus(now.Sub(l.CreatedAt), tiers)
}

// Sort orders items by mode. Missing prices sort last in both price
// directions; ties fall back to the hash.
func Sort(items []models.ScoredListing, mode models.SortMode) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch mode {
		case models.SortPriceAsc, models.SortPriceDesc:
			if (a.Price == nil) != (b.Price == nil) {
				return a.Price != nil
			}
			if a.Price != nil && *a.Price != *b.Price {
				if mode == models.SortPriceAsc {
					return *a.Price < *b.Price
				}
				return *a.Price > *b.Price
			}
		case models.SortDate:
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
		case models.SortAdded:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		default:
			if a.Score != b.Score {
				return a.Score > b.Score
			}
		}
		return a.Hash < b.Hash
	})
}

// Page returns the 1-based page of items.
func Page(items []models.ScoredListing, page, size int) []models.ScoredListing {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		return nil
	}
	from := (page - 1) * size
	if from >= len(items) {
		return []models.ScoredListing{}
	}
	to := from + size
	if to > len(items) {
		to = len(items)
	}
	return items[from:to]
}
