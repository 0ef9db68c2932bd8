package main

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/classifier"
	"github.com/retrofutureitalia25/retrofuture-search/internal/dedupe"
	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
	"github.com/retrofutureitalia25/retrofuture-search/internal/logger"
	"github.com/retrofutureitalia25/retrofuture-search/internal/metrics"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
	"github.com/retrofutureitalia25/retrofuture-search/internal/processing"
	"github.com/retrofutureitalia25/retrofuture-search/internal/synonyms"
)

type stubStore struct {
	listings []models.Listing
	seen     map[string]bool
	err      error
}

func (s *stubStore) UpsertListing(_ context.Context, l models.Listing) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	created := !s.seen[l.Hash]
	s.seen[l.Hash] = true
	s.listings = append(s.listings, l)
	return created, nil
}

func newIngester(t *testing.T, store listingStore) (*ingester, *learning.FileQueue) {
	t.Helper()
	c := classifier.New(classifier.DefaultPolicy(), classifier.Vocabulary{
		Curated: []string{"iphone"},
		Vintage: []string{"vintage", "d'epoca"},
	})
	g := synonyms.New(map[string][]string{"radio vintage": {"radio d'epoca"}})
	queue := learning.NewFileQueue(filepath.Join(t.TempDir(), "queue.json"), nil)
	return &ingester{
		log:        logger.Discard(),
		store:      store,
		normalizer: processing.NewNormalizer(c, g, []string{"replica"}),
		batches:    dedupe.NewBatchSet(100, time.Hour),
		queue:      queue,
		metrics:    metrics.New(),
	}, queue
}

func message(t *testing.T, v any, headers ...kafka.Header) kafka.Message {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Value: data, Headers: headers}
}

var radio = map[string]any{
	"title":       "Radio a valvole Grundig",
	"description": "Mobile in legno, anni 60",
	"price":       "90 €",
	"url":         "https://example.com/a/1",
}

func TestProcessMessageIndexesListing(t *testing.T) {
	store := &stubStore{}
	ing, _ := newIngester(t, store)

	outcome, err := ing.processMessage(context.Background(), message(t, envelope{
		Source: "Subito", BatchID: "b1", Listing: radio,
	}))
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeInserted, outcome)

	require.Len(t, store.listings, 1)
	l := store.listings[0]
	require.Equal(t, "subito", l.Source)
	require.Equal(t, models.ClassOriginal, l.VintageClass)
	require.Equal(t, "anni_60", l.Era)
	require.NotEmpty(t, l.Hash)
}

func TestProcessMessageSkipsDuplicateInBatch(t *testing.T) {
	store := &stubStore{}
	ing, _ := newIngester(t, store)
	msg := message(t, envelope{Source: "subito", BatchID: "b1", Listing: radio})

	outcome, err := ing.processMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeInserted, outcome)

	outcome, err = ing.processMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeDuplicate, outcome)
	require.Len(t, store.listings, 1)

	outcome, err = ing.processMessage(context.Background(), message(t, envelope{Source: "subito", BatchID: "b2", Listing: radio}))
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeUpdated, outcome)
	require.Len(t, store.listings, 2)
}

func TestProcessMessageBareListingUsesHeaders(t *testing.T) {
	store := &stubStore{}
	ing, _ := newIngester(t, store)

	outcome, err := ing.processMessage(context.Background(), message(t, radio,
		kafka.Header{Key: "source", Value: []byte("ebay")},
		kafka.Header{Key: "batch_id", Value: []byte("nightly")},
	))
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeInserted, outcome)
	require.Equal(t, "ebay", store.listings[0].Source)
	require.True(t, ing.batches.Observe("nightly", store.listings[0].Hash))
}

func TestProcessMessageRejectionIsNotAnError(t *testing.T) {
	store := &stubStore{}
	ing, _ := newIngester(t, store)

	outcome, err := ing.processMessage(context.Background(), message(t, envelope{
		Source: "subito",
		Listing: models.RawListing{
			"title": "iPhone 13 come nuovo",
			"url":   "https://example.com/a/2",
		},
	}))
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeRejected, outcome)
	require.Empty(t, store.listings)
}

func TestProcessMessageQueuesCandidates(t *testing.T) {
	store := &stubStore{}
	ing, queue := newIngester(t, store)

	outcome, err := ing.processMessage(context.Background(), message(t, envelope{
		Source: "vinted",
		Listing: models.RawListing{
			"title": "Soprammobile ceramica dipinta",
			"url":   "https://example.com/a/3",
		},
	}))
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeInserted, outcome)

	pending, err := queue.Pending(context.Background())
	require.NoError(t, err)
	terms := make([]string, 0, len(pending))
	for _, c := range pending {
		terms = append(terms, c.Term)
		require.Equal(t, "vinted", c.Source)
	}
	require.ElementsMatch(t, []string{"soprammobile", "ceramica", "dipinta"}, terms)
}

func TestProcessMessageErrors(t *testing.T) {
	ing, _ := newIngester(t, &stubStore{})
	_, err := ing.processMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	require.Error(t, err)

	_, err = ing.processMessage(context.Background(), kafka.Message{Value: []byte("{}")})
	require.Error(t, err)

	store := &stubStore{err: errors.New("es down")}
	failing, _ := newIngester(t, store)
	msg := message(t, envelope{Source: "subito", Listing: radio})

	outcome, err := failing.processMessage(context.Background(), msg)
	require.ErrorContains(t, err, "es down")
	require.Equal(t, metrics.OutcomeError, outcome)

	store.err = nil
	outcome, err = failing.processMessage(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, metrics.OutcomeInserted, outcome)
	require.Equal(t, processing.ContentHash("subito", "Radio a valvole Grundig", ptr(90), "https://example.com/a/1"), store.listings[0].Hash)
}

func TestDecodeEnvelopeDefaults(t *testing.T) {
	env, err := decodeEnvelope(message(t, map[string]any{"title": "x", "url": "u", "price": 12.5}))
	require.NoError(t, err)
	require.Equal(t, unknownSource, env.Source)
	require.Equal(t, defaultBatchID, env.BatchID)
	require.Equal(t, json.Number("12.5"), env.Listing["price"])
}

type flakyWriter struct {
	failures int
	calls    int
	last     kafka.Message
}

func (w *flakyWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	w.last = msgs[0]
	if w.calls <= w.failures {
		return errors.New("broker unavailable")
	}
	return nil
}

func TestSendToDLQAddsHeaders(t *testing.T) {
	w := &flakyWriter{}
	log := logger.Discard()
	msg := kafka.Message{Value: []byte(`{}`), Partition: 2, Offset: 41}

	require.True(t, sendToDLQ(context.Background(), log, w, msg, errors.New("empty listing")))

	headers := map[string]string{}
	for _, h := range w.last.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "2", headers["original_partition"])
	require.Equal(t, "41", headers["original_offset"])
	require.Equal(t, "empty listing", headers["error"])
}

func TestSendToDLQStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &flakyWriter{failures: 10}
	log := logger.Discard()
	require.False(t, sendToDLQ(ctx, log, w, kafka.Message{}, errors.New("x")))
	require.Equal(t, 1, w.calls)
}

func ptr(f float64) *float64 { return &f }
