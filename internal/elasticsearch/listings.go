package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)

// refreshScript runs when the hash already exists. Only updated_at moves;
// a listing seen again after expiry becomes visible again.
const refreshScript = `ctx._source.updated_at = params.updated_at;
if (ctx._source.expired == true) { ctx._source.expired = false; ctx._source.remove('expired_at'); }`

// UpsertListing inserts l when its hash is new and otherwise refreshes
// updated_at. It reports whether a new document was created.
func (c *Client) UpsertListing(ctx context.Context, l models.Listing) (bool, error) {
	body := map[string]any{
		"script": map[string]any{
			"lang":   "painless",
			"source": refreshScript,
			"params": map[string]any{
				"updated_at": l.UpdatedAt.UTC().Format(time.RFC3339Nano),
			},
		},
		"upsert": l,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("marshal upsert: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:           c.index,
		DocumentID:      l.Hash,
		Body:            bytes.NewReader(payload),
		RetryOnConflict: intPtr(3),
		Refresh:         "false",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return false, fmt.Errorf("upsert listing: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, fmt.Errorf("upsert listing failed: %s", errorBody(res))
	}

	var parsed struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode upsert response: %w", err)
	}
	return parsed.Result == "created", nil
}

// GetListing fetches a listing by hash.
func (c *Client) GetListing(ctx context.Context, hash string) (*models.Listing, error) {
	res, err := c.es.Get(c.index, hash, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("get listing failed: %s", errorBody(res))
	}

	var parsed struct {
		Source models.Listing `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &parsed.Source, nil
}

// MarkRemoved soft-deletes the listing. A missing hash yields ErrNotFound.
func (c *Client) MarkRemoved(ctx context.Context, hash string, at time.Time) error {
	body := map[string]any{
		"doc": map[string]any{
			"removed":    true,
			"removed_at": at.UTC().Format(time.RFC3339Nano),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal remove: %w", err)
	}

	req := esapi.UpdateRequest{
		Index:      c.index,
		DocumentID: hash,
		Body:       bytes.NewReader(payload),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("mark removed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if res.IsError() {
		return fmt.Errorf("mark removed failed: %s", errorBody(res))
	}
	return nil
}

// ExpireOlderThan flags listings not seen for maxAge as expired, in batches
// of batchSize, and returns how many were updated.
func (c *Client) ExpireOlderThan(ctx context.Context, maxAge time.Duration, batchSize int, now time.Time) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := now.Add(-maxAge).UTC().Format(time.RFC3339Nano)
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []map[string]any{
					{"range": map[string]any{"updated_at": map[string]any{"lte": cutoff}}},
				},
				"must_not": []map[string]any{
					{"term": map[string]any{"expired": true}},
					{"term": map[string]any{"removed": true}},
				},
			},
		},
		"script": map[string]any{
			"lang":   "painless",
			"source": "ctx._source.expired = true; ctx._source.expired_at = params.at;",
			"params": map[string]any{"at": now.UTC().Format(time.RFC3339Nano)},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal expire body: %w", err)
	}

	res, err := c.es.UpdateByQuery(
		[]string{c.index},
		c.es.UpdateByQuery.WithContext(ctx),
		c.es.UpdateByQuery.WithBody(bytes.NewReader(payload)),
		c.es.UpdateByQuery.WithWaitForCompletion(true),
		c.es.UpdateByQuery.WithConflicts("proceed"),
		c.es.UpdateByQuery.WithScrollSize(batchSize),
		c.es.UpdateByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, fmt.Errorf("update by query: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("update by query failed: %s", errorBody(res))
	}

	var parsed struct {
		Updated int64 `json:"updated"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode expire response: %w", err)
	}
	return parsed.Updated, nil
}

func intPtr(v int) *int { return &v }
