package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/processing"
)

// Whitelist holds the closed value sets accepted for structured filters.
type Whitelist struct {
	Eras       []string
	Categories []string
	Sources    []string
}

func (w Whitelist) pick(list []string, raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	for _, allowed := range list {
		if v == allowed {
			return v
		}
	}
	return ""
}

// ParseRequest reads query parameters. Unknown filter values are ignored,
// prices accept comma or dot decimals and are swapped when inverted, and
// invalid pages clamp to 1.
func ParseRequest(values url.Values, wl Whitelist, pageSize int) models.QueryRequest {
	req := models.QueryRequest{
		Term:     strings.TrimSpace(values.Get("q")),
		Sort:     parseSort(values.Get("sort")),
		Scope:    parseScope(values.Get("scope")),
		Page:     1,
		PageSize: pageSize,
	}
	if p, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && p > 1 {
		req.Page = p
	}

	req.Filters = models.Filters{
		Era:      wl.pick(wl.Eras, values.Get("era")),
		Category: wl.pick(wl.Categories, values.Get("category")),
		Source:   wl.pick(wl.Sources, values.Get("source")),
		PriceMin: processing.ParsePrice(values.Get("price_min")),
		PriceMax: processing.ParsePrice(values.Get("price_max")),
	}
	switch vc := models.VintageClass(strings.TrimSpace(values.Get("vintage_class"))); vc {
	case models.ClassOriginal, models.ClassRetro, models.ClassGeneric:
		req.Filters.VintageClass = vc
	}
	if lo, hi := req.Filters.PriceMin, req.Filters.PriceMax; lo != nil && hi != nil && *lo > *hi {
		req.Filters.PriceMin, req.Filters.PriceMax = hi, lo
	}
	return req
}

func parseSort(raw string) models.SortMode {
	mode := models.SortMode(strings.ToLower(strings.TrimSpace(raw)))
	for _, m := range models.SortModes {
		if m == mode {
			return m
		}
	}
	return models.SortRelevance
}

func parseScope(raw string) models.Scope {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(models.ScopeAll), "tutti":
		return models.ScopeAll
	default:
		return models.ScopeFiltered
	}
}
