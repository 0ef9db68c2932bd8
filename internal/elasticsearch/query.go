package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/ranking"
)

const (
	MaxPageSize = 200
	// stemmedBoost weights stemmed-subfield matches below exact ones.
	stemmedBoost = 0.5
)

// SearchListings runs one store round-trip: text predicate, filters and the
// relevance plus recency score, sorted and paginated.
func (c *Client) SearchListings(ctx context.Context, q models.StoreQuery) (*models.ListingPage, error) {
	body := buildSearchBody(q, c.tiers)
	return c.search(ctx, body)
}

// ScanCandidates returns up to q.Limit visible listings whose title or
// description has a token starting with one of q.Prefixes.
func (c *Client) ScanCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Listing, error) {
	page, err := c.search(ctx, buildScanBody(q))
	if err != nil {
		return nil, err
	}
	out := make([]models.Listing, 0, len(page.Items))
	for _, it := range page.Items {
		out = append(out, it.Listing)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, body map[string]any) (*models.ListingPage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", errorBody(res))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  *float64       `json:"_score"`
				Source models.Listing `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]models.ScoredListing, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		item := models.ScoredListing{Listing: hit.Source}
		if hit.Score != nil {
			item.Score = *hit.Score
		}
		items = append(items, item)
	}

	return &models.ListingPage{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}

func buildSearchBody(q models.StoreQuery, tiers []ranking.Tier) map[string]any {
	size := q.Size
	if size <= 0 {
		size = 20
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	from := q.From
	if from < 0 {
		from = 0
	}

	boolQuery := map[string]any{
		"must_not": visibilityExclusions(q.Scope == models.ScopeAll),
	}
	if q.Scope != models.ScopeAll {
		if filters := filterClauses(q.Filters); len(filters) > 0 {
			boolQuery["filter"] = filters
		}
		if should := textClauses(q.Terms); len(should) > 0 {
			boolQuery["should"] = should
			boolQuery["minimum_should_match"] = 1
		}
	}

	body := map[string]any{
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}

	if q.Scope == models.ScopeAll {
		body["query"] = map[string]any{"bool": boolQuery}
		body["sort"] = []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
			{"updated_at": map[string]any{"order": "desc"}},
			{"hash": map[string]any{"order": "desc"}},
		}
		return body
	}

	body["query"] = map[string]any{
		"function_score": map[string]any{
			"query":      map[string]any{"bool": boolQuery},
			"functions":  scoreFunctions(q.Now, tiers),
			"score_mode": "sum",
			"boost_mode": "sum",
		},
	}
	body["sort"] = sortClauses(q.Sort)
	return body
}

func buildScanBody(q models.CandidateQuery) map[string]any {
	limit := q.Limit
	if limit <= 0 {
		limit = 500
	}

	boolQuery := map[string]any{
		"must_not": visibilityExclusions(false),
	}
	if filters := filterClauses(q.Filters); len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(q.Prefixes) > 0 {
		should := make([]map[string]any, 0, 2*len(q.Prefixes))
		for _, p := range q.Prefixes {
			should = append(should,
				map[string]any{"prefix": map[string]any{"title": map[string]any{"value": p}}},
				map[string]any{"prefix": map[string]any{"description": map[string]any{"value": p}}},
			)
		}
		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}

	return map[string]any{
		"size":             limit,
		"track_total_hits": false,
		"query":            map[string]any{"bool": boolQuery},
		"sort": []map[string]any{
			{"created_at": map[string]any{"order": "desc"}},
			{"hash": map[string]any{"order": "asc"}},
		},
	}
}

// visibilityExclusions hides removed and expired listings, and non-vintage
// ones unless browsing everything.
func visibilityExclusions(all bool) []map[string]any {
	out := []map[string]any{
		{"term": map[string]any{"removed": true}},
		{"term": map[string]any{"expired": true}},
	}
	if !all {
		out = append(out, map[string]any{"term": map[string]any{"vintage_class": string(models.ClassNonVintage)}})
	}
	return out
}

func filterClauses(f models.Filters) []map[string]any {
	var out []map[string]any
	term := func(field, value string) {
		if value != "" {
			out = append(out, map[string]any{"term": map[string]any{field: value}})
		}
	}
	term("era", f.Era)
	term("category", f.Category)
	term("source", f.Source)
	term("vintage_class", string(f.VintageClass))

	if f.PriceMin != nil || f.PriceMax != nil {
		r := map[string]any{}
		if f.PriceMin != nil {
			r["gte"] = *f.PriceMin
		}
		if f.PriceMax != nil {
			r["lte"] = *f.PriceMax
		}
		out = append(out, map[string]any{"range": map[string]any{"price": r}})
	}
	return out
}

func textClauses(terms []string) []map[string]any {
	var out []map[string]any
	for _, t := range terms {
		if t == "" {
			continue
		}
		out = append(out,
			map[string]any{"match_phrase": map[string]any{"title": map[string]any{"query": t, "boost": 2}}},
			map[string]any{"match_phrase": map[string]any{"description": map[string]any{"query": t}}},
			map[string]any{"match_phrase": map[string]any{"title.stemmed": map[string]any{"query": t, "boost": stemmedBoost}}},
			map[string]any{"term": map[string]any{"keywords": t}},
		)
	}
	return out
}

// scoreFunctions mirror ranking.BaseRelevance and ranking.RecencyBonus.
// Recency ranges are disjoint so at most one tier applies; a listing on a
// breakpoint falls in the higher tier.
func scoreFunctions(now time.Time, tiers []ranking.Tier) []map[string]any {
	if now.IsZero() {
		now = time.Now()
	}
	funcs := []map[string]any{
		{
			"field_value_factor": map[string]any{
				"field":   "vintage_score",
				"factor":  1,
				"missing": 0,
			},
		},
		{
			"filter": map[string]any{
				"bool": map[string]any{
					"filter":   []map[string]any{{"exists": map[string]any{"field": "era"}}},
					"must_not": []map[string]any{{"term": map[string]any{"era": models.EraGeneric}}},
				},
			},
			"weight": ranking.EraBonus,
		},
	}

	sorted := append([]ranking.Tier(nil), tiers...)
	ranking.SortTiers(sorted)
	var prev *time.Duration
	for i := range sorted {
		t := sorted[i]
		r := map[string]any{"gte": now.Add(-t.MaxAge).UTC().Format(time.RFC3339Nano)}
		if prev != nil {
			r["lt"] = now.Add(-*prev).UTC().Format(time.RFC3339Nano)
		}
		if t.Bonus > 0 {
			funcs = append(funcs, map[string]any{
				"filter": map[string]any{"range": map[string]any{"created_at": r}},
				"weight": t.Bonus,
			})
		}
		prev = &sorted[i].MaxAge
	}
	return funcs
}

func sortClauses(mode models.SortMode) []map[string]any {
	hash := map[string]any{"hash": map[string]any{"order": "asc"}}
	switch mode {
	case models.SortPriceAsc:
		return []map[string]any{{"price": map[string]any{"order": "asc", "missing": "_last"}}, hash}
	case models.SortPriceDesc:
		return []map[string]any{{"price": map[string]any{"order": "desc", "missing": "_last"}}, hash}
	case models.SortDate:
		return []map[string]any{{"updated_at": map[string]any{"order": "desc"}}, hash}
	case models.SortAdded:
		return []map[string]any{{"created_at": map[string]any{"order": "desc"}}, hash}
	default:
		return []map[string]any{{"_score": map[string]any{"order": "desc"}}, hash}
	}
}
