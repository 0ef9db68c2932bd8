package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/retrofutureitalia25/retrofuture-search/internal/config"
	"github.com/retrofutureitalia25/retrofuture-search/internal/elasticsearch"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/search"
)

type searcher interface {
	Search(ctx context.Context, req models.QueryRequest) (*search.Result, error)
}

type listingStore interface {
	Health(ctx context.Context) error
	GetListing(ctx context.Context, hash string) (*models.Listing, error)
	MarkRemoved(ctx context.Context, hash string, at time.Time) error
}

type feedbackLearner interface {
	OnRemoval(ctx context.Context, title string) ([]string, error)
	OnClick(ctx context.Context, query, title string) ([]string, error)
}

type curationLog interface {
	RecordFalsePositive(ctx context.Context, hash, title string) (int, error)
	RecordClick(ctx context.Context, query, title, hash string) (string, error)
}

type server struct {
	log       *slog.Logger
	cfg       *config.API
	store     listingStore
	search    searcher
	learner   feedbackLearner
	curation  curationLog // nil when DATABASE_URL is unset
	whitelist search.Whitelist
	metrics   http.Handler
	now       func() time.Time
}

type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type statusResponse struct {
	Status  string   `json:"status"`
	Learned []string `json:"learned,omitempty"`
}

type removeRequest struct {
	Hash  string `json:"hash"`
	Title string `json:"title"`
}

type clickRequest struct {
	Query string `json:"query"`
	Title string `json:"title"`
	Hash  string `json:"hash"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Post("/remove_item", s.handleRemove)
	r.Post("/click", s.handleClick)
	r.Get("/robots.txt", s.handleRobots)
	r.Get("/sitemap.xml", s.handleSitemap)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Status: "error", Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	req := search.ParseRequest(r.URL.Query(), s.whitelist, s.cfg.DefaultPage)
	result, err := s.search.Search(ctx, req)
	if err != nil {
		s.log.Error("search failed",
			slog.Any("err", err),
			slog.String("query", req.Term),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Status: "error", Error: "search unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var body removeRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}
	body.Hash = strings.TrimSpace(body.Hash)
	body.Title = strings.TrimSpace(body.Title)
	if body.Hash == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "missing hash"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if err := s.store.MarkRemoved(ctx, body.Hash, s.now().UTC()); err != nil {
		if errors.Is(err, elasticsearch.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Status: "error", Error: "item not found"})
			return
		}
		s.log.Error("mark removed", slog.Any("err", err), slog.String("hash", body.Hash))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Status: "error", Error: "remove failed"})
		return
	}

	if body.Title == "" {
		if l, err := s.store.GetListing(ctx, body.Hash); err == nil {
			body.Title = l.Title
		} else {
			s.log.Warn("load removed listing", slog.Any("err", err), slog.String("hash", body.Hash))
		}
	}

	if s.curation != nil {
		if n, err := s.curation.RecordFalsePositive(ctx, body.Hash, body.Title); err != nil {
			s.log.Warn("record false positive", slog.Any("err", err), slog.String("hash", body.Hash))
		} else {
			s.log.Debug("false positive recorded", slog.String("hash", body.Hash), slog.Int("count", n))
		}
	}

	resp := statusResponse{Status: "ok"}
	if body.Title != "" {
		learned, err := s.learner.OnRemoval(ctx, body.Title)
		if err != nil {
			s.log.Warn("modern auto-learn failed", slog.Any("err", err), slog.String("hash", body.Hash))
		}
		resp.Learned = learned
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleClick(w http.ResponseWriter, r *http.Request) {
	var body clickRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: err.Error()})
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Status: "error", Error: "missing title"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	if s.curation != nil {
		if _, err := s.curation.RecordClick(ctx, body.Query, body.Title, body.Hash); err != nil {
			s.log.Warn("record click", slog.Any("err", err))
		}
	}

	learned, err := s.learner.OnClick(ctx, body.Query, body.Title)
	if err != nil {
		s.log.Warn("click auto-learn failed", slog.Any("err", err))
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Learned: learned})
}

func (s *server) handleRobots(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nDisallow: /search\nSitemap: %s/sitemap.xml", s.cfg.SiteURL)
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *server) handleSitemap(w http.ResponseWriter, _ *http.Request) {
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []sitemapURL{{
			Loc:        s.cfg.SiteURL + "/",
			LastMod:    s.now().UTC().Format(time.DateOnly),
			ChangeFreq: "daily",
			Priority:   "1.0",
		}},
	}
	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		s.log.Warn("encode sitemap", slog.Any("err", err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
