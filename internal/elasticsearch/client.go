// Package elasticsearch stores listings and runs the staged search queries.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/ranking"
)

// ErrNotFound is returned when a listing hash is not in the index.
var ErrNotFound = errors.New("listing not found")

// Client wraps go-elasticsearch with the listing index operations.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
	tiers []ranking.Tier
}

// Option customizes a Client.
type Option func(*Client)

// WithRecencyTiers overrides ranking.DefaultTiers for the recency functions.
func WithRecencyTiers(tiers []ranking.Tier) Option {
	return func(c *Client) {
		if len(tiers) == 0 {
			return
		}
		c.tiers = append([]ranking.Tier(nil), tiers...)
		ranking.SortTiers(c.tiers)
	}
}

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger, opts ...Option) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	c := &Client{es: es, index: index, log: log, tiers: ranking.DefaultTiers}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}

	return nil
}

// Health checks the cluster health endpoint.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// EnsureIndex creates the listing index with its mapping unless it exists.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: c.index,
		Body:  bytes.NewReader(payload),
	}
	res, err = req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("index created", slog.String("index", c.index))
	return nil
}

func indexMapping() map[string]any {
	keyword := map[string]any{"type": "keyword"}
	date := map[string]any{"type": "date"}
	boolean := map[string]any{"type": "boolean"}
	text := map[string]any{
		"type":     "text",
		"analyzer": "listing_text",
		"fields": map[string]any{
			"stemmed": map[string]any{"type": "text", "analyzer": "listing_stemmed"},
		},
	}

	return map[string]any{
		"settings": map[string]any{
			"analysis": map[string]any{
				"filter": map[string]any{
					"italian_elision": map[string]any{
						"type":     "elision",
						"articles": []string{"c", "l", "all", "dall", "dell", "nell", "sull", "coll", "pell", "gl", "agl", "dagl", "degl", "negl", "sugl", "un", "m", "t", "s", "v", "d"},
					},
					"italian_light": map[string]any{
						"type":     "stemmer",
						"language": "light_italian",
					},
				},
				"analyzer": map[string]any{
					"listing_text": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"italian_elision", "lowercase", "asciifolding"},
					},
					"listing_stemmed": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"italian_elision", "lowercase", "asciifolding", "italian_light"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"dynamic": "strict",
			"properties": map[string]any{
				"hash":          keyword,
				"source":        keyword,
				"source_id":     keyword,
				"title":         text,
				"description":   text,
				"price_raw":     map[string]any{"type": "keyword", "index": false},
				"price":         map[string]any{"type": "double"},
				"currency":      keyword,
				"url":           keyword,
				"image":         map[string]any{"type": "keyword", "index": false},
				"location":      keyword,
				"category_raw":  keyword,
				"category":      keyword,
				"condition":     keyword,
				"era":           keyword,
				"vintage_class": keyword,
				"vintage_score": map[string]any{"type": "integer"},
				"keywords":      keyword,
				"created_at":    date,
				"updated_at":    date,
				"removed":       boolean,
				"removed_at":    date,
				"expired":       boolean,
				"expired_at":    date,
			},
		},
	}
}

func errorBody(res *esapi.Response) string {
	data, _ := io.ReadAll(res.Body)
	return strings.TrimSpace(string(data))
}
