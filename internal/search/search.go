// Package search runs the staged retrieval: scope override, primary match,
// synonym-widened fallback and fuzzy fallback.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/ranking"
	"github.com/retrofutureitalia25/retrofuture-search/internal/synonyms"
	"github.com/retrofutureitalia25/retrofuture-search/internal/textnorm"
)

// Stage names the step that produced a result.
type Stage string

const (
	StageAll      Stage = "all"
	StagePrimary  Stage = "primary"
	StageSynonyms Stage = "synonyms"
	StageFuzzy    Stage = "fuzzy"
)

const (
	DefaultResultFloor    = 5
	DefaultFuzzyThreshold = 65.0
	DefaultCandidateCap   = 500
	DefaultPageSize       = 24
	DeepExpansionDepth    = 2
	// PrefixRunes is the length of the token prefixes used by the fuzzy pre-filter.
	PrefixRunes = 3
)

// Store is the listing store as seen by the orchestrator.
type Store interface {
	SearchListings(ctx context.Context, q models.StoreQuery) (*models.ListingPage, error)
	ScanCandidates(ctx context.Context, q models.CandidateQuery) ([]models.Listing, error)
}

// Observer receives one call per completed search.
type Observer interface {
	ObserveSearch(stage string, elapsed time.Duration, err error)
}

// Config tunes the fallback thresholds and recency model.
type Config struct {
	ResultFloor    int            `koanf:"result_floor"`
	FuzzyThreshold float64        `koanf:"fuzzy_threshold"`
	CandidateCap   int            `koanf:"candidate_cap"`
	RecencyTiers   []ranking.Tier `koanf:"recency_tiers"`
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	tiers := make([]ranking.Tier, len(ranking.DefaultTiers))
	copy(tiers, ranking.DefaultTiers)
	return Config{
		ResultFloor:    DefaultResultFloor,
		FuzzyThreshold: DefaultFuzzyThreshold,
		CandidateCap:   DefaultCandidateCap,
		RecencyTiers:   tiers,
	}
}

// Result is one page of a staged search.
type Result struct {
	Query        string                 `json:"query"`
	Stage        Stage                  `json:"stage"`
	Terms        []string               `json:"terms,omitempty"`
	FallbackUsed bool                   `json:"fallback_used"`
	FuzzyUsed    bool                   `json:"fuzzy_used"`
	Page         int                    `json:"page"`
	PageSize     int                    `json:"page_size"`
	Total        int64                  `json:"total"`
	Items        []models.ScoredListing `json:"items"`
}

// Orchestrator is safe for concurrent use; it holds no per-query state.
type Orchestrator struct {
	store    Store
	graph    *synonyms.Graph
	cfg      Config
	log      *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// New builds an orchestrator. A nil logger discards output.
func New(store Store, graph *synonyms.Graph, cfg Config, log *slog.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.ResultFloor <= 0 {
		cfg.ResultFloor = DefaultResultFloor
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.CandidateCap <= 0 {
		cfg.CandidateCap = DefaultCandidateCap
	}
	if len(cfg.RecencyTiers) == 0 {
		cfg.RecencyTiers = DefaultConfig().RecencyTiers
	}
	ranking.SortTiers(cfg.RecencyTiers)

	o := &Orchestrator{store: store, graph: graph, cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Search runs the stages for req. Store failures are returned as errors and
// never reported as an empty result.
func (o *Orchestrator) Search(ctx context.Context, req models.QueryRequest) (*Result, error) {
	start := time.Now()
	res, err := o.search(ctx, req)

	stage := ""
	if res != nil {
		stage = string(res.Stage)
	}
	if o.observer != nil {
		o.observer.ObserveSearch(stage, time.Since(start), err)
	}
	return res, err
}

func (o *Orchestrator) search(ctx context.Context, req models.QueryRequest) (*Result, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = DefaultPageSize
	}
	now := o.now().UTC()
	query := textnorm.Normalize(req.Term)

	if req.Scope == models.ScopeAll {
		page, err := o.store.SearchListings(ctx, models.StoreQuery{
			Scope: models.ScopeAll,
			From:  (req.Page - 1) * req.PageSize,
			Size:  req.PageSize,
			Now:   now,
		})
		if err != nil {
			return nil, fmt.Errorf("search all: %w", err)
		}
		return o.result(req, query, StageAll, nil, page), nil
	}

	terms := o.primaryTerms(query)
	page, err := o.store.SearchListings(ctx, o.storeQuery(req, terms, now))
	if err != nil {
		return nil, fmt.Errorf("primary search: %w", err)
	}
	res := o.result(req, query, StagePrimary, terms, page)
	if query == "" {
		return res, nil
	}

	if res.Total == 0 {
		if deep := o.graph.ExpandDeep(query, DeepExpansionDepth); len(deep) > 0 {
			terms = o.widenedTerms(query, deep)
			page, err = o.store.SearchListings(ctx, o.storeQuery(req, terms, now))
			if err != nil {
				return nil, fmt.Errorf("synonym search: %w", err)
			}
			res = o.result(req, query, StageSynonyms, terms, page)
			res.FallbackUsed = true
			o.log.Debug("synonym fallback", slog.String("query", query), slog.Int64("total", res.Total))
		}
	}

	if res.Total < int64(o.cfg.ResultFloor) {
		fuzzy, err := o.fuzzy(ctx, req, query, now)
		if err != nil {
			return nil, fmt.Errorf("fuzzy search: %w", err)
		}
		if fuzzy.Total > res.Total {
			fuzzy.FallbackUsed = res.FallbackUsed
			res = fuzzy
			o.log.Debug("fuzzy fallback", slog.String("query", query), slog.Int64("total", res.Total))
		}
	}

	return res, nil
}

func (o *Orchestrator) storeQuery(req models.QueryRequest, terms []string, now time.Time) models.StoreQuery {
	return models.StoreQuery{
		Terms:   terms,
		Filters: req.Filters,
		Scope:   models.ScopeFiltered,
		Sort:    req.Sort,
		From:    (req.Page - 1) * req.PageSize,
		Size:    req.PageSize,
		Now:     now,
	}
}

func (o *Orchestrator) result(req models.QueryRequest, query string, stage Stage, terms []string, page *models.ListingPage) *Result {
	res := &Result{
		Query:    query,
		Stage:    stage,
		Terms:    terms,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    []models.ScoredListing{},
	}
	if page != nil {
		res.Total = page.Total
		if page.Items != nil {
			res.Items = page.Items
		}
	}
	return res
}

// primaryTerms is the query, its significant tokens and its synonym expansion.
func (o *Orchestrator) primaryTerms(query string) []string {
	if query == "" {
		return nil
	}
	terms := []string{query}
	terms = append(terms, significant(textnorm.Tokenize(query))...)
	terms = append(terms, o.graph.Expand(query)...)
	return textnorm.Unique(terms)
}

// widenedTerms adds stemmed tokens and the deep expansion.
func (o *Orchestrator) widenedTerms(query string, deep []string) []string {
	terms := []string{query}
	terms = append(terms, significant(textnorm.Tokenize(query))...)
	terms = append(terms, significant(textnorm.TokenizeStemmed(query))...)
	terms = append(terms, deep...)
	return textnorm.Unique(terms)
}

func (o *Orchestrator) fuzzy(ctx context.Context, req models.QueryRequest, query string, now time.Time) (*Result, error) {
	candidates, err := o.store.ScanCandidates(ctx, models.CandidateQuery{
		Prefixes: prefixes(query),
		Filters:  req.Filters,
		Limit:    o.cfg.CandidateCap,
	})
	if err != nil {
		return nil, err
	}

	var matches []models.ScoredListing
	for _, l := range candidates {
		ratio := PartialRatio(query, l.Text())
		if ratio < o.cfg.FuzzyThreshold {
			continue
		}
		matches = append(matches, models.ScoredListing{
			Listing: l,
			Score:   ranking.FinalScore(ratio/10, l, now, o.cfg.RecencyTiers),
		})
	}
	ranking.Sort(matches, req.Sort)

	res := o.result(req, query, StageFuzzy, nil, &models.ListingPage{
		Total: int64(len(matches)),
		Items: ranking.Page(matches, req.Page, req.PageSize),
	})
	res.FuzzyUsed = true
	return res, nil
}

var queryStopwords = map[string]struct{}{
	"di": {}, "da": {}, "in": {}, "con": {}, "su": {}, "per": {}, "tra": {}, "fra": {},
	"il": {}, "lo": {}, "la": {}, "le": {}, "gli": {}, "un": {}, "una": {}, "uno": {},
	"del": {}, "della": {}, "dei": {}, "delle": {}, "e": {}, "ed": {}, "o": {}, "the": {},
}

// significant drops single runes and stopwords, which would match almost anything.
func significant(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if utf8.RuneCountInString(t) < 2 {
			continue
		}
		if _, ok := queryStopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

func prefixes(query string) []string {
	var out []string
	for _, t := range significant(textnorm.Tokenize(query)) {
		r := []rune(t)
		if len(r) < PrefixRunes {
			continue
		}
		out = append(out, string(r[:PrefixRunes]))
	}
	return textnorm.Unique(out)
}
