package search_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/search"
)

var whitelist = search.Whitelist{
	Eras:       models.Eras,
	Categories: []string{"audio", "arredamento"},
	Sources:    []string{"subito", "ebay"},
}

func TestParseRequest(t *testing.T) {
	values := url.Values{
		"q":             {"  radio a valvole "},
		"era":           {"anni_60"},
		"category":      {"Audio"},
		"source":        {"craigslist"},
		"vintage_class": {"vintage_originale"},
		"price_min":     {"1.234,50"},
		"price_max":     {"10"},
		"sort":          {"price_desc"},
		"page":          {"3"},
	}

	req := search.ParseRequest(values, whitelist, 24)

	require.Equal(t, "radio a valvole", req.Term)
	require.Equal(t, "anni_60", req.Filters.Era)
	require.Equal(t, "audio", req.Filters.Category)
	require.Empty(t, req.Filters.Source)
	require.Equal(t, models.ClassOriginal, req.Filters.VintageClass)
	require.InDelta(t, 10.0, *req.Filters.PriceMin, 0.001)
	require.InDelta(t, 1234.5, *req.Filters.PriceMax, 0.001)
	require.Equal(t, models.SortPriceDesc, req.Sort)
	require.Equal(t, models.ScopeFiltered, req.Scope)
	require.Equal(t, 3, req.Page)
	require.Equal(t, 24, req.PageSize)
}

func TestParseRequestDefaults(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
		check  func(t *testing.T, req models.QueryRequest)
	}{
		{
			name:   "unknown sort",
			values: url.Values{"sort": {"random"}},
			check: func(t *testing.T, req models.QueryRequest) {
				require.Equal(t, models.SortRelevance, req.Sort)
			},
		},
		{
			name:   "negative page",
			values: url.Values{"page": {"-3"}},
			check: func(t *testing.T, req models.QueryRequest) {
				require.Equal(t, 1, req.Page)
			},
		},
		{
			name:   "garbage page",
			values: url.Values{"page": {"abc"}},
			check: func(t *testing.T, req models.QueryRequest) {
				require.Equal(t, 1, req.Page)
			},
		},
		{
			name:   "scope all",
			values: url.Values{"scope": {"tutti"}},
			check: func(t *testing.T, req models.QueryRequest) {
				require.Equal(t, models.ScopeAll, req.Scope)
			},
		},
		{
			name:   "unparseable price ignored",
			values: url.Values{"price_min": {"gratis"}, "vintage_class": {"non_vintage"}},
			check: func(t *testing.T, req models.QueryRequest) {
				require.Nil(t, req.Filters.PriceMin)
				require.Empty(t, req.Filters.VintageClass)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, search.ParseRequest(tt.values, whitelist, 24))
		})
	}
}
