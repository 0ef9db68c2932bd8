package learning_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrofutureitalia25/retrofuture-search/internal/learning"
	"github.com/retrofutureitalia25/retrofuture-search/internal/models"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *recordingObserver) ObserveLearned(trigger string, added int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string]int{}
	}
	o.calls[trigger] += added
}

type fileState struct {
	Phrases []string         `json:"phrases"`
	Entries []learning.Entry `json:"entries"`
}

func readState(t *testing.T, path string) fileState {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st fileState
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func newLearner(t *testing.T, opts ...learning.Option) (*learning.Learner, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modern_learned.json")
	store := learning.NewFileTermStore(path, nil)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	opts = append([]learning.Option{learning.WithClock(func() time.Time { return fixed })}, opts...)
	return learning.NewLearner(store, learning.NewExtractor(curated, vintage), nil, opts...), path
}

func TestOnRemovalLearnsDetectedTerms(t *testing.T) {
	obs := &recordingObserver{}
	l, path := newLearner(t, learning.WithObserver(obs))
	ctx := context.Background()

	added, err := l.OnRemoval(ctx, "Samsung Galaxy S21 Ultra")
	require.NoError(t, err)
	require.Equal(t, []string{"galaxy s21", "samsung galaxy"}, added)

	added, err = l.OnRemoval(ctx, "Samsung Galaxy S21 Ultra")
	require.NoError(t, err)
	require.Empty(t, added)

	st := readState(t, path)
	require.Equal(t, []string{"galaxy s21", "samsung galaxy"}, st.Phrases)
	require.Len(t, st.Entries, 2)
	require.Equal(t, learning.TriggerRemoval, st.Entries[0].Trigger)
	require.NotEmpty(t, st.Entries[0].ID)
	require.Equal(t, 2, obs.calls[learning.TriggerRemoval])
}

func TestOnRemovalFallsBackToTitle(t *testing.T) {
	l, path := newLearner(t)

	added, err := l.OnRemoval(context.Background(), "Soprammobile Ceramica  dipinta")
	require.NoError(t, err)
	require.Equal(t, []string{"soprammobile ceramica dipinta"}, added)

	st := readState(t, path)
	require.Equal(t, []string{learning.FallbackDetected}, st.Entries[0].Detected)
}

func TestOnRemovalSkipsCuratedPhrases(t *testing.T) {
	l, path := newLearner(t)

	added, err := l.OnRemoval(context.Background(), "Smart TV")
	require.NoError(t, err)
	require.Empty(t, added)

	st := readState(t, path)
	require.Empty(t, st.Phrases)
	require.Equal(t, []string{"smart tv"}, st.Entries[0].Detected)
}

func TestOnClickFallsBackToTitle(t *testing.T) {
	l, path := newLearner(t)
	ctx := context.Background()

	added, err := l.OnClick(ctx, " iPhone ", "Telefono iPhone 11")
	require.NoError(t, err)
	require.Equal(t, []string{"iphone 11"}, added)

	added, err = l.OnClick(ctx, "lampada", "Lampada da tavolo ottone")
	require.NoError(t, err)
	require.Equal(t, []string{"lampada da tavolo ottone"}, added)

	st := readState(t, path)
	require.Equal(t, []string{"iphone 11", "lampada da tavolo ottone"}, st.Phrases)
	require.Len(t, st.Entries, 2)
	require.Equal(t, "iphone", st.Entries[0].Query)
	require.Equal(t, learning.TriggerClick, st.Entries[1].Trigger)
	require.Equal(t, []string{learning.FallbackDetected}, st.Entries[1].Detected)
}

func TestLearnRejectsEmptyTitle(t *testing.T) {
	l, _ := newLearner(t)
	_, err := l.OnRemoval(context.Background(), " !! ")
	require.ErrorIs(t, err, learning.ErrEmptyTitle)
}

func TestUpdateHookReceivesFullSet(t *testing.T) {
	var got []string
	l, _ := newLearner(t, learning.WithUpdateHook(func(p []string) { got = p }))
	ctx := context.Background()

	_, err := l.OnRemoval(ctx, "BMW 320d")
	require.NoError(t, err)
	_, err = l.OnRemoval(ctx, "Audi A4 Avant")
	require.NoError(t, err)

	require.Equal(t, []string{"320d", "audi a4"}, got)
}

func TestFileTermStoreConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned.json")
	stores := []*learning.FileTermStore{
		learning.NewFileTermStore(path, nil),
		learning.NewFileTermStore(path, nil),
	}

	const n = 20
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			term := fmt.Sprintf("term%02d", i)
			_, err := stores[i%2].Record(context.Background(), []string{term}, learning.Entry{ID: term})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	phrases, err := stores[0].Phrases(context.Background())
	require.NoError(t, err)
	require.Len(t, phrases, n)
	require.Len(t, readState(t, path).Entries, n)
}

func TestFileTermStoreCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "learned.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := learning.NewFileTermStore(path, nil)
	phrases, err := store.Phrases(context.Background())
	require.NoError(t, err)
	require.Empty(t, phrases)

	added, err := store.Record(context.Background(), []string{"ps5"}, learning.Entry{ID: "1"})
	require.NoError(t, err)
	require.Equal(t, []string{"ps5"}, added)
	require.Equal(t, []string{"ps5"}, readState(t, path).Phrases)
}

func TestFileQueueDedupesByTerm(t *testing.T) {
	q := learning.NewFileQueue(filepath.Join(t.TempDir(), "queue.json"), nil)
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := q.Enqueue(ctx, []models.Candidate{
		{Term: "soprammobile", SeenAt: t0.Add(time.Minute)},
		{Term: "ceramica", SeenAt: t0},
		{Term: "soprammobile", SeenAt: t0},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = q.Enqueue(ctx, []models.Candidate{{Term: "ceramica", SeenAt: t0}, {Term: "dipinta", SeenAt: t0}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	terms := make([]string, 0, len(pending))
	for _, c := range pending {
		terms = append(terms, c.Term)
	}
	require.Equal(t, []string{"ceramica", "dipinta", "soprammobile"}, terms)
}

func TestFileQueuePendingMissingFile(t *testing.T) {
	q := learning.NewFileQueue(filepath.Join(t.TempDir(), "none.json"), nil)
	pending, err := q.Pending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}
